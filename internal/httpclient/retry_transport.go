// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package httpclient

import (
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/watchbrr/internal/buildinfo"
	"github.com/autobrr/watchbrr/pkg/httphelpers"
	"github.com/autobrr/watchbrr/pkg/redact"
)

const (
	maxRetries       = 3
	initialRetryWait = 50 * time.Millisecond
	maxRetryWait     = 500 * time.Millisecond
)

// RetryTransport retries idempotent requests that fail with a transient network
// error or a 502/503/504 from an upstream gateway.
type RetryTransport struct {
	base      http.RoundTripper
	userAgent string
	sleep     func(time.Duration) <-chan time.Time
}

func NewRetryTransport(base http.RoundTripper) *RetryTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &RetryTransport{
		base:      base,
		userAgent: buildinfo.UserAgent,
		sleep:     time.After,
	}
}

func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	idempotent := isIdempotentMethod(req.Method)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		attemptReq := req.Clone(req.Context())
		if attemptReq.Header.Get("User-Agent") == "" && t.userAgent != "" {
			attemptReq.Header.Set("User-Agent", t.userAgent)
		}

		resp, err := t.base.RoundTrip(attemptReq)
		if err == nil {
			if !idempotent || !isRetryableStatus(resp.StatusCode) || attempt >= maxRetries {
				return resp, nil
			}
			httphelpers.DrainAndClose(resp)
			lastErr = errors.New(resp.Status)
		} else {
			lastErr = err
			if !idempotent || !isRetryableError(err) {
				return nil, err
			}
			t.closeIdleConnections()
			if attempt >= maxRetries {
				log.Warn().
					Err(redact.URLError(err)).
					Str("method", req.Method).
					Int("attempts", attempt+1).
					Msg("httpclient: request failed after max retries")
				return nil, err
			}
		}

		backoff := calculateBackoff(attempt, initialRetryWait, maxRetryWait)
		log.Debug().
			Err(redact.URLError(lastErr)).
			Str("method", req.Method).
			Str("url", redact.URL(req.URL.String())).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("httpclient: transient failure, retrying")

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-t.sleep(backoff):
		}
	}

	return nil, lastErr
}

func (t *RetryTransport) closeIdleConnections() {
	type closeIdler interface {
		CloseIdleConnections()
	}
	if tr, ok := t.base.(closeIdler); ok {
		tr.CloseIdleConnections()
	}
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil && urlErr.Err != err {
		return isRetryableError(urlErr.Err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		// slow upstreams are not retried; the caller's deadline decides
		return false
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && (opErr.Op == "dial" || opErr.Op == "read") {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.EOF) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{"connection refused", "connection reset", "broken pipe", "no such host", "network is unreachable"} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

func isIdempotentMethod(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

func calculateBackoff(attempt int, initial, max time.Duration) time.Duration {
	backoff := initial
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if backoff > max {
			return max
		}
	}
	return backoff
}

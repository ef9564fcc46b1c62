// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package httpclient

import (
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func immediate(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func TestRetryTransportRetriesTransientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	tr := NewRetryTransport(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if calls.Add(1) < 3 {
			return nil, &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}
		}
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("ok"))}, nil
	}))
	tr.sleep = immediate

	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, calls.Load())
}

func TestRetryTransportDoesNotRetryPost(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	tr := NewRetryTransport(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		calls.Add(1)
		return nil, &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}
	}))
	tr.sleep = immediate

	req := httptest.NewRequest(http.MethodPost, "http://example.com", nil)
	_, err := tr.RoundTrip(req)
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestRetryTransportRetriesGatewayStatus(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Contains(t, r.Header.Get("User-Agent"), "watchbrr/")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := NewRetryTransport(http.DefaultTransport)
	tr.sleep = immediate
	client := &http.Client{Transport: tr}

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, calls.Load())
}

func TestRetryTransportReturnsLastGatewayResponse(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	tr := NewRetryTransport(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		calls.Add(1)
		return &http.Response{StatusCode: http.StatusBadGateway, Status: "502 Bad Gateway", Body: io.NopCloser(strings.NewReader(""))}, nil
	}))
	tr.sleep = immediate

	resp, err := tr.RoundTrip(httptest.NewRequest(http.MethodGet, "http://example.com", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.EqualValues(t, maxRetries+1, calls.Load())
}

func TestIsRetryableError(t *testing.T) {
	t.Parallel()

	assert.False(t, isRetryableError(nil))
	assert.True(t, isRetryableError(io.EOF))
	assert.True(t, isRetryableError(errors.New("read: connection reset by peer")))
	assert.False(t, isRetryableError(errors.New("x509: certificate signed by unknown authority")))
}

func TestCalculateBackoff(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 50*time.Millisecond, calculateBackoff(0, initialRetryWait, maxRetryWait))
	assert.Equal(t, 100*time.Millisecond, calculateBackoff(1, initialRetryWait, maxRetryWait))
	assert.Equal(t, 400*time.Millisecond, calculateBackoff(3, initialRetryWait, maxRetryWait))
	assert.Equal(t, maxRetryWait, calculateBackoff(10, initialRetryWait, maxRetryWait))
}

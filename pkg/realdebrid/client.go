// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package realdebrid is a client for the Real-Debrid REST API.
package realdebrid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"

	"github.com/autobrr/watchbrr/pkg/httphelpers"
)

const (
	DefaultBaseURL = "https://api.real-debrid.com/rest/1.0"
	pageSize       = 100
)

type Config struct {
	Token      string
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string
	// RetryAttempts bounds retries of read-only calls that hit 5xx or 429.
	RetryAttempts uint
	RetryDelay    time.Duration
}

type Client struct {
	token         string
	baseURL       string
	httpClient    *http.Client
	userAgent     string
	retryAttempts uint
	retryDelay    time.Duration
}

func NewClient(cfg Config) *Client {
	c := &Client{
		token:         strings.TrimSpace(cfg.Token),
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:    cfg.HTTPClient,
		userAgent:     cfg.UserAgent,
		retryAttempts: cfg.RetryAttempts,
		retryDelay:    cfg.RetryDelay,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.retryAttempts == 0 {
		c.retryAttempts = 3
	}
	if c.retryDelay <= 0 {
		c.retryDelay = 500 * time.Millisecond
	}
	return c
}

// AddMagnet adds the torrent identified by hash.
func (c *Client) AddMagnet(ctx context.Context, hash string) (*AddMagnetResponse, error) {
	form := url.Values{"magnet": {"magnet:?xt=urn:btih:" + strings.TrimSpace(hash)}}

	var out AddMagnetResponse
	if err := c.do(ctx, http.MethodPost, "/torrents/addMagnet", form, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// SelectFiles picks files to download. fileIDs is a comma separated list or "all".
func (c *Client) SelectFiles(ctx context.Context, id, fileIDs string) error {
	if fileIDs == "" {
		fileIDs = "all"
	}
	form := url.Values{"files": {fileIDs}}
	return c.do(ctx, http.MethodPost, "/torrents/selectFiles/"+url.PathEscape(id), form, nil, nil)
}

// TorrentInfo fetches a single torrent, retrying transient failures.
func (c *Client) TorrentInfo(ctx context.Context, id string) (*TorrentInfo, error) {
	var out TorrentInfo
	err := c.retry(ctx, func() error {
		return c.do(ctx, http.MethodGet, "/torrents/info/"+url.PathEscape(id), nil, &out, nil)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UserTorrents pages through the torrent list until X-Total-Count is reached.
func (c *Client) UserTorrents(ctx context.Context) ([]Torrent, error) {
	var all []Torrent
	for offset := 0; ; offset += pageSize {
		var page []Torrent
		var header http.Header
		path := fmt.Sprintf("/torrents?limit=%d&offset=%d", pageSize, offset)

		err := c.retry(ctx, func() error {
			page = page[:0]
			return c.do(ctx, http.MethodGet, path, nil, &page, &header)
		})
		if err != nil {
			return nil, err
		}

		all = append(all, page...)

		total, convErr := strconv.Atoi(header.Get("X-Total-Count"))
		if convErr != nil || len(page) == 0 || len(all) >= total {
			return all, nil
		}
	}
}

// User returns the account behind the token.
func (c *Client) User(ctx context.Context) (*User, error) {
	var out User
	if err := c.retry(ctx, func() error {
		return c.do(ctx, http.MethodGet, "/user", nil, &out, nil)
	}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) retry(ctx context.Context, fn func() error) error {
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(c.retryAttempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var apiErr *APIError
			return errors.As(err, &apiErr) && apiErr.Temporary()
		}),
	)
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, out any, header *http.Header) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("real-debrid: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("real-debrid: %s %s: %w", method, path, err)
	}
	defer httphelpers.DrainAndClose(resp)

	if !httphelpers.IsSuccess(resp.StatusCode) {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if raw := httphelpers.ErrorBody(resp); raw != "" {
			if jsonErr := json.Unmarshal([]byte(raw), apiErr); jsonErr != nil {
				apiErr.Message = raw
			}
		}
		return apiErr
	}

	if header != nil {
		*header = resp.Header
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("real-debrid: decode %s: %w", path, err)
	}
	return nil
}

// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package torznab is a small client for Torznab endpoints such as Jackett
// and Prowlarr.
package torznab

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/autobrr/watchbrr/pkg/httphelpers"
)

const (
	SearchTypeGeneric = "search"
	SearchTypeMovie   = "movie"
	SearchTypeTV      = "tvsearch"
)

// Config holds the options for constructing a Client. Host is the full
// torznab endpoint, e.g. http://jackett:9117/api/v2.0/indexers/all/results/torznab/api.
type Config struct {
	Host       string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	UserAgent  string
}

type Client struct {
	host       string
	apiKey     string
	httpClient *http.Client
	userAgent  string
}

func NewClient(cfg Config) *Client {
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	ua := strings.TrimSpace(cfg.UserAgent)
	if ua == "" {
		ua = "watchbrr"
	}

	return &Client{
		host:       strings.TrimRight(strings.TrimSpace(cfg.Host), "/"),
		apiKey:     cfg.APIKey,
		httpClient: client,
		userAgent:  ua,
	}
}

// Query describes a torznab search.
type Query struct {
	Type       string
	Term       string
	IMDbID     string
	Season     int
	Episode    int
	Categories []int
	Limit      int
}

func (q Query) values() url.Values {
	v := url.Values{}
	t := q.Type
	if t == "" {
		t = SearchTypeGeneric
	}
	v.Set("t", t)
	if q.Term != "" {
		v.Set("q", q.Term)
	}
	if q.IMDbID != "" {
		v.Set("imdbid", q.IMDbID)
	}
	if q.Season > 0 {
		v.Set("season", fmt.Sprint(q.Season))
	}
	if q.Episode > 0 {
		v.Set("ep", fmt.Sprint(q.Episode))
	}
	if len(q.Categories) > 0 {
		cats := make([]string, 0, len(q.Categories))
		for _, c := range q.Categories {
			cats = append(cats, fmt.Sprint(c))
		}
		v.Set("cat", strings.Join(cats, ","))
	}
	if q.Limit > 0 {
		v.Set("limit", fmt.Sprint(q.Limit))
	}
	return v
}

// Search runs q and returns the feed items.
func (c *Client) Search(ctx context.Context, q Query) ([]Item, error) {
	body, err := c.get(ctx, q.values())
	if err != nil {
		return nil, err
	}

	var rss Rss
	if err := xml.Unmarshal(body, &rss); err != nil {
		return nil, fmt.Errorf("failed to decode torznab response: %w", err)
	}
	return rss.Channel.Items, nil
}

// Caps fetches the endpoint capabilities.
func (c *Client) Caps(ctx context.Context) (*Caps, error) {
	body, err := c.get(ctx, url.Values{"t": {"caps"}})
	if err != nil {
		return nil, err
	}

	var caps Caps
	if err := xml.Unmarshal(body, &caps); err != nil {
		return nil, fmt.Errorf("failed to decode torznab caps: %w", err)
	}
	return &caps, nil
}

func (c *Client) get(ctx context.Context, query url.Values) ([]byte, error) {
	if c.host == "" {
		return nil, errors.New("torznab host is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if c.apiKey != "" {
		query.Set("apikey", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build torznab request: %w", err)
	}
	req.URL.RawQuery = query.Encode()
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("torznab request failed: %w", err)
	}
	defer httphelpers.DrainAndClose(resp)

	if !httphelpers.IsSuccess(resp.StatusCode) {
		return nil, fmt.Errorf("torznab returned status %d: %s", resp.StatusCode, httphelpers.ErrorBody(resp))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read torznab response: %w", err)
	}

	if trimmed := bytes.TrimSpace(body); bytes.HasPrefix(trimmed, []byte("<error")) || bytes.Contains(firstElement(trimmed), []byte("<error")) {
		var torznabErr TorznabError
		if err := xml.Unmarshal(body, &torznabErr); err != nil {
			return nil, fmt.Errorf("failed to decode torznab error response: %w", err)
		}
		return nil, &torznabErr
	}

	return body, nil
}

// firstElement skips an XML declaration so "<?xml ...?><error .../>" is detected.
func firstElement(b []byte) []byte {
	if !bytes.HasPrefix(b, []byte("<?xml")) {
		return nil
	}
	if idx := bytes.Index(b, []byte("?>")); idx >= 0 {
		rest := bytes.TrimSpace(b[idx+2:])
		if len(rest) > 16 {
			rest = rest[:16]
		}
		return rest
	}
	return nil
}

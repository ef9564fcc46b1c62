// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package plex reads the Plex Discover watchlist.
package plex

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

	"github.com/rs/zerolog/log"

	"github.com/autobrr/watchbrr/internal/httpclient"
	"github.com/autobrr/watchbrr/internal/models"
)

const (
	Name           = "plex"
	DefaultBaseURL = "https://discover.provider.plex.tv"
	imdbGUIDPrefix = "imdb://"
	pageSize       = 100
)

type Config struct {
	Token      string
	BaseURL    string
	HTTPClient *http.Client
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("plex: token is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = httpclient.New(httpclient.DefaultTimeout)
	}
	return &Client{baseURL: baseURL, token: cfg.Token, http: hc}, nil
}

func (c *Client) Name() string { return Name }

type guid struct {
	ID string `json:"id"`
}

type metadata struct {
	RatingKey string `json:"ratingKey"`
	Title     string `json:"title"`
	Type      string `json:"type"`
	Year      int    `json:"year"`
	Guid      []guid `json:"Guid"`
}

type mediaContainer struct {
	MediaContainer struct {
		Offset    int        `json:"offset"`
		Size      int        `json:"size"`
		TotalSize int        `json:"totalSize"`
		Metadata  []metadata `json:"Metadata"`
	} `json:"MediaContainer"`
}

func imdbID(guids []guid) string {
	for _, g := range guids {
		if strings.HasPrefix(g.ID, imdbGUIDPrefix) {
			return strings.TrimPrefix(g.ID, imdbGUIDPrefix)
		}
	}
	return ""
}

// GetWatchlist pages through the watchlist. Entries without an IMDb guid are
// dropped.
func (c *Client) GetWatchlist(ctx context.Context) ([]models.WatchlistItem, error) {
	var items []models.WatchlistItem

	for start := 0; ; {
		q := url.Values{}
		q.Set("includeGuids", "1")
		q.Set("X-Plex-Container-Start", strconv.Itoa(start))
		q.Set("X-Plex-Container-Size", strconv.Itoa(pageSize))

		var page mediaContainer
		if err := c.do(ctx, http.MethodGet, "/library/sections/watchlist/all?"+q.Encode(), &page); err != nil {
			return nil, fmt.Errorf("plex: watchlist: %w", err)
		}

		for _, m := range page.MediaContainer.Metadata {
			id := imdbID(m.Guid)
			if id == "" {
				log.Debug().Str("title", m.Title).Msg("plex: skipping watchlist entry without imdb guid")
				continue
			}
			item := models.WatchlistItem{
				Title:      m.Title,
				ExternalID: id,
				MediaType:  models.ParseMediaType(m.Type),
				Source:     Name,
				SourceKey:  m.RatingKey,
				Year:       models.YearUnknown,
			}
			if m.Year > 0 {
				item.Year = strconv.Itoa(m.Year)
			}
			items = append(items, item)
		}

		got := len(page.MediaContainer.Metadata)
		start += got
		if got == 0 || start >= page.MediaContainer.TotalSize {
			break
		}
	}

	if items == nil {
		items = make([]models.WatchlistItem, 0)
	}
	return items, nil
}

// GetUserCollection is always empty; Discover has no owned-media view.
func (c *Client) GetUserCollection(context.Context) ([]models.CollectionItem, error) {
	return []models.CollectionItem{}, nil
}

func (c *Client) RemoveFromWatchlist(ctx context.Context, item models.WatchlistItem) (bool, error) {
	if item.SourceKey == "" {
		return false, nil
	}
	path := "/actions/removeFromWatchlist?ratingKey=" + url.QueryEscape(item.SourceKey)
	if err := c.do(ctx, http.MethodPut, path, nil); err != nil {
		return false, fmt.Errorf("plex: remove %s: %w", item.ExternalID, err)
	}
	return true, nil
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Plex-Token", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

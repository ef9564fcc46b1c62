// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package trakt implements the Trakt watchlist source and release-date checks.
package trakt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/watchbrr/internal/httpclient"
	"github.com/autobrr/watchbrr/internal/models"
	"github.com/autobrr/watchbrr/pkg/redact"
)

const (
	Name           = "trakt"
	DefaultBaseURL = "https://api.trakt.tv"
	apiVersion     = "2"
	defaultUser    = "me"
	dateLayout     = "2006-01-02"
)

type Config struct {
	ClientID     string
	ClientSecret string
	// Username whose watchlist is read. Defaults to the authenticated user.
	Username   string
	BaseURL    string
	DataDir    string
	HTTPClient *http.Client
}

type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	username     string
	store        *TokenStore
	base         *http.Client

	mu     sync.Mutex
	authed *http.Client

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errors.New("trakt: client id is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	user := strings.TrimSpace(cfg.Username)
	if user == "" {
		user = defaultUser
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = httpclient.New(httpclient.DefaultTimeout)
	}

	return &Client{
		baseURL:      baseURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		username:     user,
		store:        NewTokenStore(cfg.DataDir),
		base:         hc,
		now:          time.Now,
		after:        time.After,
	}, nil
}

func (c *Client) Name() string { return Name }

// HasCredential reports whether a token is stored.
func (c *Client) HasCredential() bool {
	_, err := c.store.Load()
	return err == nil
}

func (c *Client) TokenPath() string { return c.store.Path() }

type traktIDs struct {
	Trakt int    `json:"trakt,omitempty"`
	Slug  string `json:"slug,omitempty"`
	IMDb  string `json:"imdb,omitempty"`
	TMDB  int    `json:"tmdb,omitempty"`
}

type traktMedia struct {
	Title      string   `json:"title"`
	Year       int      `json:"year"`
	IDs        traktIDs `json:"ids"`
	Released   string   `json:"released,omitempty"`
	FirstAired string   `json:"first_aired,omitempty"`
}

type traktEpisode struct {
	Season     int      `json:"season"`
	Number     int      `json:"number"`
	Title      string   `json:"title"`
	IDs        traktIDs `json:"ids"`
	FirstAired string   `json:"first_aired,omitempty"`
}

type watchlistEntry struct {
	Type    string        `json:"type"`
	Movie   *traktMedia   `json:"movie,omitempty"`
	Show    *traktMedia   `json:"show,omitempty"`
	Episode *traktEpisode `json:"episode,omitempty"`
}

type collectionEntry struct {
	Movie *traktMedia `json:"movie,omitempty"`
	Show  *traktMedia `json:"show,omitempty"`
}

func yearString(y int) string {
	if y <= 0 {
		return models.YearUnknown
	}
	return strconv.Itoa(y)
}

// GetWatchlist returns movies, shows and episodes. Entries without an IMDb id
// cannot be searched and are dropped.
func (c *Client) GetWatchlist(ctx context.Context) ([]models.WatchlistItem, error) {
	hc, err := c.authorizedClient()
	if err != nil {
		return nil, err
	}

	var entries []watchlistEntry
	path := "/users/" + url.PathEscape(c.username) + "/watchlist?extended=full"
	if _, err := c.doJSON(ctx, hc, http.MethodGet, path, nil, &entries); err != nil {
		return nil, fmt.Errorf("trakt: watchlist: %w", err)
	}

	items := make([]models.WatchlistItem, 0, len(entries))
	for _, e := range entries {
		item, ok := entryToItem(e)
		if !ok {
			log.Debug().Str("type", e.Type).Msg("trakt: skipping watchlist entry without imdb id")
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func entryToItem(e watchlistEntry) (models.WatchlistItem, bool) {
	item := models.WatchlistItem{MediaType: models.ParseMediaType(e.Type), Source: Name}

	switch item.MediaType {
	case models.MediaTypeMovie:
		if e.Movie == nil {
			return item, false
		}
		item.Title, item.Year, item.ExternalID = e.Movie.Title, yearString(e.Movie.Year), e.Movie.IDs.IMDb
		item.SourceKey = strconv.Itoa(e.Movie.IDs.Trakt)
	case models.MediaTypeShow:
		if e.Show == nil {
			return item, false
		}
		item.Title, item.Year, item.ExternalID = e.Show.Title, yearString(e.Show.Year), e.Show.IDs.IMDb
		item.SourceKey = strconv.Itoa(e.Show.IDs.Trakt)
	case models.MediaTypeEpisode:
		// Indexers search episodes by the parent show.
		if e.Show == nil {
			return item, false
		}
		item.Title, item.Year, item.ExternalID = e.Show.Title, yearString(e.Show.Year), e.Show.IDs.IMDb
		if e.Episode != nil {
			item.SourceKey = strconv.Itoa(e.Episode.IDs.Trakt)
		}
	default:
		return item, false
	}

	return item, item.ExternalID != ""
}

func (c *Client) GetUserCollection(ctx context.Context) ([]models.CollectionItem, error) {
	hc, err := c.authorizedClient()
	if err != nil {
		return nil, err
	}

	var out []models.CollectionItem
	for _, kind := range []struct {
		path      string
		mediaType models.MediaType
	}{
		{path: "/sync/collection/movies", mediaType: models.MediaTypeMovie},
		{path: "/sync/collection/shows", mediaType: models.MediaTypeShow},
	} {
		var entries []collectionEntry
		if _, err := c.doJSON(ctx, hc, http.MethodGet, kind.path, nil, &entries); err != nil {
			return nil, fmt.Errorf("trakt: collection: %w", err)
		}
		for _, e := range entries {
			m := e.Movie
			if kind.mediaType == models.MediaTypeShow {
				m = e.Show
			}
			if m == nil || m.IDs.IMDb == "" {
				continue
			}
			out = append(out, models.CollectionItem{
				Title:      m.Title,
				Year:       yearString(m.Year),
				ExternalID: m.IDs.IMDb,
				MediaType:  kind.mediaType,
			})
		}
	}
	return out, nil
}

type removeResponse struct {
	Deleted struct {
		Movies   int `json:"movies"`
		Shows    int `json:"shows"`
		Episodes int `json:"episodes"`
	} `json:"deleted"`
}

// RemoveFromWatchlist removes the item by IMDb id. Episodes are removed via
// their show.
func (c *Client) RemoveFromWatchlist(ctx context.Context, item models.WatchlistItem) (bool, error) {
	var key string
	switch item.MediaType {
	case models.MediaTypeMovie:
		key = "movies"
	case models.MediaTypeShow, models.MediaTypeEpisode:
		key = "shows"
	default:
		return false, nil
	}

	hc, err := c.authorizedClient()
	if err != nil {
		return false, err
	}

	body := map[string][]map[string]traktIDs{
		key: {{"ids": {IMDb: item.ExternalID}}},
	}
	var resp removeResponse
	if _, err := c.doJSON(ctx, hc, http.MethodPost, "/sync/watchlist/remove", body, &resp); err != nil {
		return false, fmt.Errorf("trakt: remove %s: %w", item.ExternalID, err)
	}

	removed := resp.Deleted.Movies + resp.Deleted.Shows + resp.Deleted.Episodes
	return removed > 0, nil
}

// IsReleased reports whether the title has a release date on or before today.
// Lookup failures are logged and reported as unreleased.
func (c *Client) IsReleased(ctx context.Context, item models.WatchlistItem) (bool, error) {
	var path string
	switch item.MediaType {
	case models.MediaTypeMovie:
		path = "/movies/" + url.PathEscape(item.ExternalID) + "?extended=full"
	case models.MediaTypeShow, models.MediaTypeEpisode:
		path = "/shows/" + url.PathEscape(item.ExternalID) + "?extended=full"
	default:
		return false, nil
	}

	var media traktMedia
	if _, err := c.doJSON(ctx, c.base, http.MethodGet, path, nil, &media); err != nil {
		log.Warn().Err(redact.URLError(err)).Str("externalId", item.ExternalID).Msg("trakt: release lookup failed")
		return false, nil
	}

	date := media.Released
	if date == "" && media.FirstAired != "" {
		date = media.FirstAired
	}
	if date == "" {
		return false, nil
	}
	if len(date) > len(dateLayout) {
		date = date[:len(dateLayout)]
	}

	released, err := time.Parse(dateLayout, date)
	if err != nil {
		log.Warn().Err(err).Str("externalId", item.ExternalID).Str("date", date).Msg("trakt: invalid release date")
		return false, nil
	}

	now := c.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return !today.Before(released), nil
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("trakt: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("trakt: unexpected status %d: %s", e.StatusCode, e.Body)
}

// doJSON returns the response status alongside any error so callers can
// branch on documented status codes.
func (c *Client) doJSON(ctx context.Context, hc *http.Client, method, path string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("trakt-api-version", apiVersion)
	req.Header.Set("trakt-api-key", c.clientID)

	resp, err := hc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}

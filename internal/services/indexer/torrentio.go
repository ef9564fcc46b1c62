// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/watchbrr/internal/httpclient"
	"github.com/autobrr/watchbrr/internal/models"
	"github.com/autobrr/watchbrr/pkg/hashutil"
	"github.com/autobrr/watchbrr/pkg/httphelpers"
	"github.com/autobrr/watchbrr/pkg/titles"
)

const (
	TorrentioName = "torrentio"

	DefaultTorrentioURL = "https://torrentio.strem.fun/sort=qualitysize&qualityfilter=480p,scr,cam/stream"

	torrentioCooldown = time.Minute
)

type TorrentioConfig struct {
	BaseURL    string
	HTTPClient *http.Client
	Parser     *titles.Parser
	Limiter    *RateLimiter
}

// Torrentio queries the Stremio torrentio addon.
type Torrentio struct {
	baseURL string
	client  *http.Client
	parser  *titles.Parser
	limiter *RateLimiter
}

type torrentioResponse struct {
	Streams []torrentioStream `json:"streams"`
}

type torrentioStream struct {
	Name     string `json:"name"`
	Title    string `json:"title"`
	InfoHash string `json:"infoHash"`
}

func NewTorrentio(cfg TorrentioConfig) *Torrentio {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultTorrentioURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = httpclient.New(httpclient.DefaultTimeout)
	}
	parser := cfg.Parser
	if parser == nil {
		parser = titles.NewParser(nil)
	}
	return &Torrentio{
		baseURL: base,
		client:  client,
		parser:  parser,
		limiter: cfg.Limiter,
	}
}

func (t *Torrentio) Name() string { return TorrentioName }

func (t *Torrentio) FindReleases(ctx context.Context, externalID string, mediaType models.MediaType, title string) ([]models.Release, error) {
	endpoint, err := t.streamURL(externalID, mediaType)
	if err != nil {
		return nil, err
	}

	if err := t.limiter.wait(ctx, TorrentioName); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("torrentio: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("torrentio: request: %w", err)
	}
	defer httphelpers.DrainAndClose(resp)

	if resp.StatusCode == http.StatusTooManyRequests {
		t.limiter.SetCooldown(TorrentioName, time.Now().Add(torrentioCooldown))
	}
	if !httphelpers.IsSuccess(resp.StatusCode) {
		return nil, fmt.Errorf("torrentio: unexpected status %d: %s", resp.StatusCode, httphelpers.ErrorBody(resp))
	}

	var payload torrentioResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("torrentio: decode response: %w", err)
	}

	releases := make([]models.Release, 0, len(payload.Streams))
	for _, stream := range payload.Streams {
		parsed := t.parser.Parse(stream.Title)
		releases = append(releases, models.Release{
			Title:       parsed.DisplayTitle,
			ContentHash: hashutil.Normalize(stream.InfoHash),
			SizeGB:      parsed.SizeGB,
			PeerCount:   parsed.PeerCount,
			Resolution:  parsed.Quality,
			Indexer:     TorrentioName,
		})
	}

	log.Debug().
		Str("indexer", TorrentioName).
		Str("externalId", externalID).
		Str("title", title).
		Int("streams", len(releases)).
		Msg("torrentio: streams fetched")

	return releases, nil
}

func (t *Torrentio) streamURL(externalID string, mediaType models.MediaType) (string, error) {
	if err := ValidateMediaType(mediaType); err != nil {
		return "", err
	}
	id := url.PathEscape(strings.TrimSpace(externalID))
	if id == "" {
		return "", fmt.Errorf("torrentio: external id is required")
	}

	switch mediaType {
	case models.MediaTypeMovie:
		return fmt.Sprintf("%s/movie/%s.json", t.baseURL, id), nil
	case models.MediaTypeShow:
		return fmt.Sprintf("%s/series/%s:1:1.json", t.baseURL, id), nil
	default:
		return fmt.Sprintf("%s/series/%s.json", t.baseURL, id), nil
	}
}

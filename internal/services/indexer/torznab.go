// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/watchbrr/internal/buildinfo"
	"github.com/autobrr/watchbrr/internal/httpclient"
	"github.com/autobrr/watchbrr/internal/models"
	"github.com/autobrr/watchbrr/pkg/hashutil"
	"github.com/autobrr/watchbrr/pkg/redact"
	"github.com/autobrr/watchbrr/pkg/titles"
	"github.com/autobrr/watchbrr/pkg/torznab"
)

const TorznabName = "torznab"

// Torznab categories, newznab numbering.
const (
	CategoryMovies   = 2000
	CategoryMoviesSD = 2030
	CategoryMoviesHD = 2040
	CategoryMovies4K = 2045

	CategoryTV   = 5000
	CategoryTVSD = 5030
	CategoryTVHD = 5040
	CategoryTV4K = 5045
)

type TorznabConfig struct {
	// Name defaults to "torznab". Set it when more than one endpoint is registered.
	Name       string
	Host       string
	APIKey     string
	HTTPClient *http.Client
	Parser     *titles.Parser
	Limiter    *RateLimiter
	// CheckCaps queries t=caps until it succeeds once and falls back to a text
	// search when the endpoint does not accept imdbid.
	CheckCaps bool
}

// Torznab searches a Jackett, Prowlarr or native torznab endpoint.
type Torznab struct {
	name      string
	client    *torznab.Client
	parser    *titles.Parser
	limiter   *RateLimiter
	checkCaps bool

	capsMu sync.Mutex
	caps   *torznab.Caps
}

func NewTorznab(cfg TorznabConfig) (*Torznab, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("torznab: host is required")
	}
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = TorznabName
	}
	client := cfg.HTTPClient
	if client == nil {
		client = httpclient.New(httpclient.DefaultTimeout)
	}
	parser := cfg.Parser
	if parser == nil {
		parser = titles.NewParser(nil)
	}

	return &Torznab{
		name: name,
		client: torznab.NewClient(torznab.Config{
			Host:       cfg.Host,
			APIKey:     cfg.APIKey,
			HTTPClient: client,
			UserAgent:  buildinfo.UserAgent,
		}),
		parser:    parser,
		limiter:   cfg.Limiter,
		checkCaps: cfg.CheckCaps,
	}, nil
}

func (t *Torznab) Name() string { return t.name }

func (t *Torznab) FindReleases(ctx context.Context, externalID string, mediaType models.MediaType, title string) ([]models.Release, error) {
	if err := ValidateMediaType(mediaType); err != nil {
		return nil, err
	}

	query := t.buildQuery(ctx, strings.TrimSpace(externalID), mediaType, strings.TrimSpace(title))
	if query.IMDbID == "" && query.Term == "" {
		return nil, fmt.Errorf("%s: external id or title is required", t.name)
	}

	if err := t.limiter.wait(ctx, t.name); err != nil {
		return nil, err
	}

	items, err := t.client.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: search: %w", t.name, redact.URLError(err))
	}

	releases := make([]models.Release, 0, len(items))
	for _, item := range items {
		releases = append(releases, t.toRelease(item))
	}

	log.Debug().
		Str("indexer", t.name).
		Str("externalId", externalID).
		Str("title", title).
		Str("mode", query.Type).
		Int("results", len(releases)).
		Msg("torznab: search complete")

	return releases, nil
}

func (t *Torznab) buildQuery(ctx context.Context, externalID string, mediaType models.MediaType, title string) torznab.Query {
	q := torznab.Query{Categories: CategoriesForMediaType(mediaType)}
	if mediaType == models.MediaTypeMovie {
		q.Type = torznab.SearchTypeMovie
	} else {
		q.Type = torznab.SearchTypeTV
	}

	if externalID != "" && t.supportsIMDb(ctx, q.Type) {
		q.IMDbID = externalID
		return q
	}

	q.Term = title
	if !t.supportsQuery(ctx, q.Type) {
		q.Type = torznab.SearchTypeGeneric
	}
	return q
}

func (t *Torznab) loadCaps(ctx context.Context) *torznab.Caps {
	if !t.checkCaps {
		return nil
	}

	t.capsMu.Lock()
	defer t.capsMu.Unlock()

	if t.caps != nil {
		return t.caps
	}

	// a failed lookup is retried on the next search
	if err := t.limiter.wait(ctx, t.name); err != nil {
		log.Warn().Err(err).Str("indexer", t.name).Msg("torznab: caps lookup deferred, assuming full support")
		return nil
	}
	caps, err := t.client.Caps(ctx)
	if err != nil {
		log.Warn().Err(redact.URLError(err)).Str("indexer", t.name).Msg("torznab: caps lookup failed, assuming full support")
		return nil
	}
	t.caps = caps
	return caps
}

func (t *Torznab) searchCap(ctx context.Context, searchType string) (torznab.SearchCap, bool) {
	caps := t.loadCaps(ctx)
	if caps == nil {
		return torznab.SearchCap{}, false
	}
	if searchType == torznab.SearchTypeMovie {
		return caps.Searching.Movie, true
	}
	return caps.Searching.TVSearch, true
}

func (t *Torznab) supportsIMDb(ctx context.Context, searchType string) bool {
	c, ok := t.searchCap(ctx, searchType)
	return !ok || c.Supports("imdbid")
}

func (t *Torznab) supportsQuery(ctx context.Context, searchType string) bool {
	c, ok := t.searchCap(ctx, searchType)
	return !ok || c.Supports("q")
}

func (t *Torznab) toRelease(item torznab.Item) models.Release {
	parsed := t.parser.Parse(item.Title)

	hash := hashutil.Normalize(item.Attr("infohash"))
	if hash == "" {
		hash = hashutil.FromMagnet(item.MagnetURL())
	}

	return models.Release{
		Title:       parsed.DisplayTitle,
		ContentHash: hash,
		SizeGB:      bytesToGB(item.SizeBytes()),
		PeerCount:   item.Seeders(),
		Resolution:  parsed.Quality,
		Indexer:     t.name,
	}
}

// CategoriesForMediaType returns the torznab categories searched for a media type.
func CategoriesForMediaType(mediaType models.MediaType) []int {
	switch mediaType {
	case models.MediaTypeMovie:
		return []int{CategoryMovies, CategoryMoviesSD, CategoryMoviesHD, CategoryMovies4K}
	case models.MediaTypeShow, models.MediaTypeEpisode:
		return []int{CategoryTV, CategoryTVSD, CategoryTVHD, CategoryTV4K}
	default:
		return []int{CategoryMovies, CategoryTV}
	}
}

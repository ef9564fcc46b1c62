// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/watchbrr/internal/buildinfo"
	"github.com/autobrr/watchbrr/internal/config"
	"github.com/autobrr/watchbrr/internal/database"
	"github.com/autobrr/watchbrr/internal/domain"
	"github.com/autobrr/watchbrr/internal/httpclient"
	"github.com/autobrr/watchbrr/internal/ledger"
	"github.com/autobrr/watchbrr/internal/metrics"
	"github.com/autobrr/watchbrr/internal/models"
	"github.com/autobrr/watchbrr/internal/qbittorrent"
	"github.com/autobrr/watchbrr/internal/services/debrid"
	"github.com/autobrr/watchbrr/internal/services/indexer"
	"github.com/autobrr/watchbrr/internal/services/pipeline"
	"github.com/autobrr/watchbrr/internal/services/quality"
	"github.com/autobrr/watchbrr/internal/services/watchlist"
	"github.com/autobrr/watchbrr/internal/services/watchlist/plex"
	"github.com/autobrr/watchbrr/internal/services/watchlist/trakt"
	"github.com/autobrr/watchbrr/pkg/realdebrid"
	"github.com/autobrr/watchbrr/pkg/releases"
	"github.com/autobrr/watchbrr/pkg/titles"
)

const indexerMaxWait = time.Minute

// application holds every collaborator of one pipeline.
type application struct {
	cfg    *config.AppConfig
	db     *database.DB
	store  *models.ProcessedItemStore
	parser *releases.Parser

	ledger       *ledger.Ledger
	watchlists   *watchlist.Manager
	trakt        *trakt.Client
	qbt          *qbittorrent.Client
	submitter    *debrid.Submitter
	orchestrator *pipeline.Orchestrator
}

func newApplication(ctx context.Context, cfg *config.AppConfig) (*application, error) {
	conf := cfg.Current()
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &application{
		cfg:    cfg,
		parser: releases.NewDefaultParser(),
	}

	ok := false
	defer func() {
		if !ok {
			app.close()
		}
	}()

	db, err := database.New(cfg.GetDatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db
	app.store = models.NewProcessedItemStore(db)

	if err := app.buildSubmitter(ctx, conf); err != nil {
		return nil, err
	}

	l, err := ledger.NewWithStore(ctx, dryRunAwareStore{Store: app.store, dryRun: app.submitter.DryRun})
	if err != nil {
		return nil, err
	}
	app.ledger = l

	if err := app.buildSources(conf); err != nil {
		return nil, err
	}

	indexers, err := app.buildIndexers(conf)
	if err != nil {
		return nil, err
	}

	policy, ranker, err := buildSelection(conf, app.parser)
	if err != nil {
		return nil, err
	}

	var releaseChecker pipeline.ReleaseChecker = pipeline.AlwaysReleased{}
	if app.trakt != nil {
		releaseChecker = app.trakt
	}

	app.orchestrator, err = pipeline.New(pipeline.Config{
		Ledger:            app.ledger,
		Releases:          releaseChecker,
		Indexer:           indexers,
		Policy:            policy,
		Ranker:            ranker,
		Submitter:         app.submitter,
		Remover:           app.watchlists,
		RemoveAfterAdding: conf.RemoveAfterAdding,
	})
	if err != nil {
		return nil, err
	}

	ok = true
	return app, nil
}

func (app *application) buildSubmitter(ctx context.Context, conf domain.Config) error {
	var backend debrid.Backend

	switch strings.ToLower(strings.TrimSpace(conf.Backend)) {
	case domain.BackendQBittorrent:
		client, err := qbittorrent.NewClient(ctx, qbittorrent.Config{
			Host:     conf.QBittorrentHost,
			Username: conf.QBittorrentUsername,
			Password: conf.QBittorrentPassword,
			Category: conf.QBittorrentCategory,
			SavePath: conf.QBittorrentSavePath,
		})
		if err != nil {
			if !conf.DryRun {
				return err
			}
			log.Warn().Err(err).Msg("qBittorrent unreachable, continuing because dry run is enabled")
		} else {
			if info, err := client.GetAppInfo(ctx); err == nil {
				log.Info().Str("version", info.Version).Str("webAPIVersion", info.WebAPIVersion).Msg("Connected to qBittorrent")
			}
			app.qbt = client
			backend = client
		}
	default:
		backend = debrid.NewRealDebrid(newRealDebridClient(conf))
	}

	app.submitter = debrid.NewSubmitter(backend, conf.DryRun)
	return nil
}

func newRealDebridClient(conf domain.Config) *realdebrid.Client {
	return realdebrid.NewClient(realdebrid.Config{
		Token:      conf.RealDebridToken,
		HTTPClient: httpclient.New(httpclient.DefaultTimeout),
		UserAgent:  buildinfo.UserAgent,
	})
}

func (app *application) buildSources(conf domain.Config) error {
	manager, err := watchlist.NewManager()
	if err != nil {
		return err
	}

	if conf.TraktClientID != "" {
		client, err := newTraktClient(conf, app.cfg.GetDataDir())
		if err != nil {
			return err
		}
		if !client.HasCredential() {
			log.Warn().Str("token", client.TokenPath()).Msg("No Trakt token found, run \"watchbrr auth trakt\" first")
		}
		if err := manager.Register(client); err != nil {
			return err
		}
		app.trakt = client
	}

	if conf.PlexToken != "" {
		client, err := plex.NewClient(plex.Config{Token: conf.PlexToken})
		if err != nil {
			return err
		}
		if err := manager.Register(client); err != nil {
			return err
		}
	}

	log.Info().Strs("sources", manager.Names()).Msg("Watchlist sources registered")
	app.watchlists = manager
	return nil
}

func newTraktClient(conf domain.Config, dataDir string) (*trakt.Client, error) {
	return trakt.NewClient(trakt.Config{
		ClientID:     conf.TraktClientID,
		ClientSecret: conf.TraktClientSecret,
		Username:     conf.TraktUsername,
		DataDir:      dataDir,
	})
}

func (app *application) buildIndexers(conf domain.Config) (*indexer.Manager, error) {
	limiter := indexer.NewRateLimiter(0, indexerMaxWait)
	parser := titles.NewParser(app.parser)

	manager, err := indexer.NewManager()
	if err != nil {
		return nil, err
	}

	for _, name := range conf.EnabledIndexers() {
		var ix indexer.Indexer
		switch name {
		case domain.IndexerTorrentio:
			ix = indexer.NewTorrentio(indexer.TorrentioConfig{
				BaseURL: conf.TorrentioURL,
				Parser:  parser,
				Limiter: limiter,
			})
		case domain.IndexerTorznab:
			ix, err = indexer.NewTorznab(indexer.TorznabConfig{
				Host:      conf.TorznabURL,
				APIKey:    conf.TorznabAPIKey,
				Parser:    parser,
				Limiter:   limiter,
				CheckCaps: true,
			})
			if err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unknown indexer %q", name)
		}

		if err := manager.Register(ix); err != nil {
			return nil, err
		}
	}

	return manager, nil
}

func buildSelection(conf domain.Config, parser *releases.Parser) (quality.Policy, quality.Ranker, error) {
	qp := conf.QualityPolicy()

	policy, err := quality.NewPolicy(qp)
	if err != nil {
		return quality.Policy{}, nil, err
	}

	ranker, err := quality.NewRlsRanker(quality.RankerConfig{
		Require:         conf.RankRequire,
		Exclude:         conf.RankExclude,
		Preferred:       conf.RankPreferred,
		Filter:          conf.RankFilter,
		ResolutionOrder: qp.ResolutionOrder,
	}, parser)
	if err != nil {
		return quality.Policy{}, nil, err
	}

	return policy, ranker, nil
}

// applyReload pushes the settings that may change at runtime into the running pipeline.
func (app *application) applyReload(conf *domain.Config) {
	app.submitter.SetDryRun(conf.DryRun)
	app.orchestrator.SetRemoveAfterAdding(conf.RemoveAfterAdding)

	policy, ranker, err := buildSelection(*conf, app.parser)
	if err != nil {
		log.Error().Err(err).Msg("Keeping previous quality policy, reloaded one is invalid")
		return
	}
	app.orchestrator.SetPolicy(policy, ranker)

	log.Info().
		Bool("dryRun", conf.DryRun).
		Str("strategy", string(conf.QualityPolicy().EffectiveStrategy())).
		Msg("Applied reloaded configuration")
}

// backendHealth returns the backends that report a connection state.
func (app *application) backendHealth() []metrics.HealthReporter {
	if app.qbt == nil {
		return nil
	}
	return []metrics.HealthReporter{app.qbt}
}

func (app *application) close() {
	if app.parser != nil {
		app.parser.Close()
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}
}

// dryRunAwareStore keeps dry-run marks in memory only.
type dryRunAwareStore struct {
	ledger.Store
	dryRun func() bool
}

func (s dryRunAwareStore) Insert(ctx context.Context, item *models.ProcessedItem) error {
	if s.dryRun() {
		log.Debug().Str("externalId", item.ExternalID).Msg("Dry run, not persisting ledger entry")
		return nil
	}
	return s.Store.Insert(ctx, item)
}

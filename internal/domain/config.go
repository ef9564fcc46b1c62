// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/autobrr/watchbrr/internal/models"
)

const (
	BackendRealDebrid  = "realdebrid"
	BackendQBittorrent = "qbittorrent"

	IndexerTorrentio = "torrentio"
	IndexerTorznab   = "torznab"
)

// Config represents the application configuration
type Config struct {
	Version       string
	Host          string `toml:"host" mapstructure:"host"`
	Port          int    `toml:"port" mapstructure:"port"`
	LogLevel      string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath       string `toml:"logPath" mapstructure:"logPath"`
	LogMaxSize    int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`
	DataDir       string `toml:"dataDir" mapstructure:"dataDir"`

	// Interval is the number of seconds between scheduled cycles.
	Interval          int  `toml:"interval" mapstructure:"interval"`
	DryRun            bool `toml:"dryRun" mapstructure:"dryRun"`
	RemoveAfterAdding bool `toml:"removeAfterAdding" mapstructure:"removeAfterAdding"`

	Resolutions        []string `toml:"resolutions" mapstructure:"resolutions"`
	PreferredAttribute string   `toml:"preferredAttribute" mapstructure:"preferredAttribute"`
	MinResolution      string   `toml:"minResolution" mapstructure:"minResolution"`
	Strategy           string   `toml:"strategy" mapstructure:"strategy"`

	// Rank* only apply to the ranked strategy. A missing key keeps the built-in list.
	RankRequire   []string `toml:"rankRequire" mapstructure:"rankRequire"`
	RankExclude   []string `toml:"rankExclude" mapstructure:"rankExclude"`
	RankPreferred []string `toml:"rankPreferred" mapstructure:"rankPreferred"`
	RankFilter    string   `toml:"rankFilter" mapstructure:"rankFilter"`

	Indexers      []string `toml:"indexers" mapstructure:"indexers"`
	TorrentioURL  string   `toml:"torrentioUrl" mapstructure:"torrentioUrl"`
	TorznabURL    string   `toml:"torznabUrl" mapstructure:"torznabUrl"`
	TorznabAPIKey string   `toml:"torznabApiKey" mapstructure:"torznabApiKey"`

	Backend             string `toml:"backend" mapstructure:"backend"`
	RealDebridToken     string `toml:"realDebridToken" mapstructure:"realDebridToken"`
	QBittorrentHost     string `toml:"qbittorrentHost" mapstructure:"qbittorrentHost"`
	QBittorrentUsername string `toml:"qbittorrentUsername" mapstructure:"qbittorrentUsername"`
	QBittorrentPassword string `toml:"qbittorrentPassword" mapstructure:"qbittorrentPassword"`
	QBittorrentCategory string `toml:"qbittorrentCategory" mapstructure:"qbittorrentCategory"`
	QBittorrentSavePath string `toml:"qbittorrentSavePath" mapstructure:"qbittorrentSavePath"`

	TraktClientID     string `toml:"traktClientId" mapstructure:"traktClientId"`
	TraktClientSecret string `toml:"traktClientSecret" mapstructure:"traktClientSecret"`
	TraktUsername     string `toml:"traktUsername" mapstructure:"traktUsername"`
	PlexToken         string `toml:"plexToken" mapstructure:"plexToken"`

	MetricsEnabled        bool   `toml:"metricsEnabled" mapstructure:"metricsEnabled"`
	MetricsHost           string `toml:"metricsHost" mapstructure:"metricsHost"`
	MetricsPort           int    `toml:"metricsPort" mapstructure:"metricsPort"`
	MetricsBasicAuthUsers string `toml:"metricsBasicAuthUsers" mapstructure:"metricsBasicAuthUsers"`
}

// QualityPolicy builds the selection policy from the quality keys.
func (c *Config) QualityPolicy() models.QualityPolicy {
	order := make([]string, 0, len(c.Resolutions))
	for _, res := range c.Resolutions {
		if res = strings.TrimSpace(res); res != "" {
			order = append(order, res)
		}
	}
	if len(order) == 0 {
		order = append(order, models.DefaultResolutionOrder...)
	}

	return models.QualityPolicy{
		ResolutionOrder:    order,
		PreferredAttribute: strings.TrimSpace(c.PreferredAttribute),
		MinResolution:      strings.TrimSpace(c.MinResolution),
		Strategy:           models.SelectionStrategy(strings.ToLower(strings.TrimSpace(c.Strategy))),
	}
}

// CycleInterval returns the scheduler interval. Non-positive values fall back to one hour.
func (c *Config) CycleInterval() time.Duration {
	if c.Interval <= 0 {
		return time.Hour
	}
	return time.Duration(c.Interval) * time.Second
}

// EnabledIndexers returns the normalized indexer names in configured order.
func (c *Config) EnabledIndexers() []string {
	out := make([]string, 0, len(c.Indexers))
	seen := make(map[string]struct{}, len(c.Indexers))
	for _, name := range c.Indexers {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// Validate checks the settings the pipeline cannot start without.
func (c *Config) Validate() error {
	var errs []error

	if err := c.QualityPolicy().Validate(); err != nil {
		errs = append(errs, err)
	}

	indexers := c.EnabledIndexers()
	if len(indexers) == 0 {
		errs = append(errs, errors.New("at least one indexer is required"))
	}
	for _, name := range indexers {
		switch name {
		case IndexerTorrentio:
		case IndexerTorznab:
			if strings.TrimSpace(c.TorznabURL) == "" {
				errs = append(errs, errors.New("torznabUrl is required when the torznab indexer is enabled"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown indexer %q", name))
		}
	}

	switch strings.ToLower(strings.TrimSpace(c.Backend)) {
	case BackendRealDebrid:
		if strings.TrimSpace(c.RealDebridToken) == "" && !c.DryRun {
			errs = append(errs, errors.New("realDebridToken is required for the realdebrid backend"))
		}
	case BackendQBittorrent:
		if strings.TrimSpace(c.QBittorrentHost) == "" {
			errs = append(errs, errors.New("qbittorrentHost is required for the qbittorrent backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}

	if c.TraktClientID == "" && c.PlexToken == "" {
		errs = append(errs, errors.New("configure traktClientId or plexToken as a watchlist source"))
	}

	secrets := []struct{ key, value string }{
		{"torznabApiKey", c.TorznabAPIKey},
		{"realDebridToken", c.RealDebridToken},
		{"qbittorrentPassword", c.QBittorrentPassword},
		{"traktClientSecret", c.TraktClientSecret},
		{"plexToken", c.PlexToken},
		{"metricsBasicAuthUsers", c.MetricsBasicAuthUsers},
	}
	for _, s := range secrets {
		if IsRedactedString(strings.TrimSpace(s.value)) {
			errs = append(errs, fmt.Errorf("%s is set to the redaction placeholder %q", s.key, RedactedStr))
		}
	}

	return errors.Join(errs...)
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	c.TorznabAPIKey = RedactString(c.TorznabAPIKey)
	c.RealDebridToken = RedactString(c.RealDebridToken)
	c.QBittorrentPassword = RedactString(c.QBittorrentPassword)
	c.TraktClientSecret = RedactString(c.TraktClientSecret)
	c.PlexToken = RedactString(c.PlexToken)
	c.MetricsBasicAuthUsers = RedactString(c.MetricsBasicAuthUsers)
	return c
}

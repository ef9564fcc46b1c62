// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/autobrr/watchbrr/internal/domain"
	"github.com/autobrr/watchbrr/internal/models"
	"github.com/autobrr/watchbrr/pkg/debounce"
)

const (
	envPrefix        = "WATCHBRR__"
	databaseFileName = "watchbrr.db"
	configFileName   = "config.toml"
	appDirName       = "watchbrr"

	// editors emit several write events per save
	reloadDelay = 500 * time.Millisecond
)

type AppConfig struct {
	Config  *domain.Config
	viper   *viper.Viper
	dataDir string
	version string

	mu          sync.RWMutex
	listenersMu sync.RWMutex
	listeners   []func(*domain.Config)

	reloads *debounce.Debouncer
}

func New(configDirOrPath string, versions ...string) (*AppConfig, error) {
	version := "dev"
	if len(versions) > 0 && strings.TrimSpace(versions[0]) != "" {
		version = versions[0]
	}

	c := &AppConfig{
		viper:   viper.New(),
		Config:  &domain.Config{},
		version: version,
	}

	c.defaults()

	if err := c.load(configDirOrPath); err != nil {
		return nil, err
	}

	if err := c.loadFromEnv(); err != nil {
		return nil, err
	}

	if err := c.viper.Unmarshal(c.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	c.Config.Version = c.version

	c.resolveDataDir()

	return c, nil
}

func (c *AppConfig) defaults() {
	host := "localhost"
	if detectContainer() {
		host = "0.0.0.0"
	}

	c.viper.SetDefault("host", host)
	c.viper.SetDefault("port", 7480)
	c.viper.SetDefault("logLevel", "INFO")
	c.viper.SetDefault("logPath", "")
	c.viper.SetDefault("logMaxSize", 50)
	c.viper.SetDefault("logMaxBackups", 3)
	c.viper.SetDefault("dataDir", "")

	c.viper.SetDefault("interval", 3600)
	c.viper.SetDefault("dryRun", false)
	c.viper.SetDefault("removeAfterAdding", false)

	c.viper.SetDefault("resolutions", models.DefaultResolutionOrder)
	c.viper.SetDefault("preferredAttribute", "")
	c.viper.SetDefault("minResolution", "")
	c.viper.SetDefault("strategy", string(models.StrategyLadder))
	c.viper.SetDefault("rankFilter", "")

	c.viper.SetDefault("indexers", []string{domain.IndexerTorrentio})
	c.viper.SetDefault("torrentioUrl", "")
	c.viper.SetDefault("torznabUrl", "")
	c.viper.SetDefault("torznabApiKey", "")

	c.viper.SetDefault("backend", domain.BackendRealDebrid)
	c.viper.SetDefault("realDebridToken", "")
	c.viper.SetDefault("qbittorrentHost", "")
	c.viper.SetDefault("qbittorrentUsername", "")
	c.viper.SetDefault("qbittorrentPassword", "")
	c.viper.SetDefault("qbittorrentCategory", "watchbrr")
	c.viper.SetDefault("qbittorrentSavePath", "")

	c.viper.SetDefault("traktClientId", "")
	c.viper.SetDefault("traktClientSecret", "")
	c.viper.SetDefault("traktUsername", "")
	c.viper.SetDefault("plexToken", "")

	c.viper.SetDefault("metricsEnabled", false)
	c.viper.SetDefault("metricsHost", "127.0.0.1")
	c.viper.SetDefault("metricsPort", 9480)
	c.viper.SetDefault("metricsBasicAuthUsers", "")
}

func (c *AppConfig) load(configDirOrPath string) error {
	c.viper.SetConfigType("toml")

	if configDirOrPath != "" {
		configPath := c.resolveConfigPath(configDirOrPath)
		c.viper.SetConfigFile(configPath)

		if err := c.viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
				if err := c.writeDefaultConfig(configPath); err != nil {
					return err
				}
				if err := c.viper.ReadInConfig(); err != nil {
					return fmt.Errorf("failed to read newly created config: %w", err)
				}
				return nil
			}
			return fmt.Errorf("failed to read config: %w", err)
		}
		return nil
	}

	c.viper.SetConfigName("config")
	c.viper.AddConfigPath(".")
	c.viper.AddConfigPath(GetDefaultConfigDir())

	if err := c.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}

		defaultConfigPath := filepath.Join(GetDefaultConfigDir(), configFileName)
		if err := c.writeDefaultConfig(defaultConfigPath); err != nil {
			return err
		}
		c.viper.SetConfigFile(defaultConfigPath)
		if err := c.viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read newly created config: %w", err)
		}
	}

	return nil
}

func (c *AppConfig) loadFromEnv() error {
	// Only bind the variables we know about; AutomaticEnv picks up unrelated
	// WATCHBRR_* values injected by orchestrators.
	binds := map[string]string{
		"host":                "HOST",
		"port":                "PORT",
		"logLevel":            "LOG_LEVEL",
		"logPath":             "LOG_PATH",
		"logMaxSize":          "LOG_MAX_SIZE",
		"logMaxBackups":       "LOG_MAX_BACKUPS",
		"dataDir":             "DATA_DIR",
		"interval":            "INTERVAL",
		"dryRun":              "DRY_RUN",
		"removeAfterAdding":   "REMOVE_AFTER_ADDING",
		"resolutions":         "RESOLUTIONS",
		"preferredAttribute":  "PREFERRED_ATTRIBUTE",
		"minResolution":       "MIN_RESOLUTION",
		"strategy":            "STRATEGY",
		"rankRequire":         "RANK_REQUIRE",
		"rankExclude":         "RANK_EXCLUDE",
		"rankPreferred":       "RANK_PREFERRED",
		"rankFilter":          "RANK_FILTER",
		"indexers":            "INDEXERS",
		"torrentioUrl":        "TORRENTIO_URL",
		"torznabUrl":          "TORZNAB_URL",
		"backend":             "BACKEND",
		"qbittorrentHost":     "QBITTORRENT_HOST",
		"qbittorrentUsername": "QBITTORRENT_USERNAME",
		"qbittorrentCategory": "QBITTORRENT_CATEGORY",
		"qbittorrentSavePath": "QBITTORRENT_SAVE_PATH",
		"traktClientId":       "TRAKT_CLIENT_ID",
		"traktUsername":       "TRAKT_USERNAME",
		"metricsEnabled":      "METRICS_ENABLED",
		"metricsHost":         "METRICS_HOST",
		"metricsPort":         "METRICS_PORT",
	}
	for key, env := range binds {
		if err := c.viper.BindEnv(key, envPrefix+env); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}

	secrets := map[string]string{
		"torznabApiKey":         "TORZNAB_API_KEY",
		"realDebridToken":       "REAL_DEBRID_TOKEN",
		"qbittorrentPassword":   "QBITTORRENT_PASSWORD",
		"traktClientSecret":     "TRAKT_CLIENT_SECRET",
		"plexToken":             "PLEX_TOKEN",
		"metricsBasicAuthUsers": "METRICS_BASIC_AUTH_USERS",
	}
	for key, env := range secrets {
		if err := c.bindOrReadFromFile(key, envPrefix+env); err != nil {
			return err
		}
	}

	return nil
}

// bindOrReadFromFile sets the key from the file named by <envVar>_FILE when present.
func (c *AppConfig) bindOrReadFromFile(viperVar string, envVar string) error {
	if filePath := os.Getenv(envVar + "_FILE"); filePath != "" {
		content, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("could not read %s_FILE: %w", envVar, err)
		}
		c.viper.Set(viperVar, strings.TrimSpace(string(content)))
		return nil
	}
	return c.viper.BindEnv(viperVar, envVar)
}

// Watch starts reloading the configuration when the file changes on disk.
func (c *AppConfig) Watch() {
	c.reloads = debounce.New(reloadDelay)
	c.viper.OnConfigChange(func(e fsnotify.Event) {
		log.Debug().Str("op", e.Op.String()).Msgf("Config file changed: %s", e.Name)
		c.reloads.Do(func() {
			log.Info().Msg("Reloading configuration")
			if err := c.reload(); err != nil {
				log.Error().Err(err).Msg("Failed to reload configuration")
			}
		})
	})
	c.viper.WatchConfig()
}

// StopWatching applies a pending reload and stops debouncing file events.
func (c *AppConfig) StopWatching() {
	if c.reloads != nil {
		c.reloads.Stop()
	}
}

func (c *AppConfig) reload() error {
	fresh := &domain.Config{}
	if err := c.viper.Unmarshal(fresh); err != nil {
		return err
	}
	fresh.Version = c.version

	c.mu.Lock()
	*c.Config = *fresh
	c.mu.Unlock()

	c.ApplyLogConfig()
	c.notifyListeners()
	return nil
}

// Current returns a copy of the active configuration.
func (c *AppConfig) Current() domain.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return *c.Config
}

// RegisterReloadListener registers a callback that's invoked when the configuration file is reloaded.
func (c *AppConfig) RegisterReloadListener(fn func(*domain.Config)) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *AppConfig) notifyListeners() {
	c.listenersMu.RLock()
	listeners := append([]func(*domain.Config){}, c.listeners...)
	c.listenersMu.RUnlock()

	if len(listeners) == 0 {
		return
	}

	copied := c.Current()
	for _, listener := range listeners {
		listener(&copied)
	}
}

const configTemplate = `# config.toml - Auto-generated on first run

# Hostname / IP of the status API
# Default: "localhost" (or "0.0.0.0" in containers)
host = "{{ .host }}"

# Port of the status API
# Default: 7480
port = {{ .port }}

# Log file path
# If not defined, logs to stdout
# Optional
#logPath = "log/watchbrr.log"

# Log rotation
# Maximum log file size in megabytes before rotation
# Default: {{ .logMaxSize }}
#logMaxSize = {{ .logMaxSize }}

# Number of rotated log files to retain (0 keeps all)
# Default: {{ .logMaxBackups }}
#logMaxBackups = {{ .logMaxBackups }}

# Data directory (default: next to config file)
# The ledger database (watchbrr.db) and the Trakt token are stored here
#dataDir = "/var/lib/watchbrr"

# Log level
# Default: "INFO"
# Options: "ERROR", "DEBUG", "INFO", "WARN", "TRACE"
logLevel = "{{ .logLevel }}"

# Seconds between cycles
# Default: {{ .interval }}
interval = {{ .interval }}

# Log what would be submitted without contacting the download backend
#dryRun = false

# Remove items from the source watchlist after a confirmed submission
#removeAfterAdding = false

# Quality policy
# Resolutions from highest to lowest priority
resolutions = [{{ range $i, $r := .resolutions }}{{ if $i }}, {{ end }}"{{ $r }}"{{ end }}]

# Require this attribute (e.g. "HDR") in every eligible release title
#preferredAttribute = ""

# Reject releases below this resolution
#minResolution = "1080p"

# Selection strategy
# Options: "ladder", "allowlist", "ranked"
strategy = "{{ .strategy }}"

# Ranked strategy terms. Leave commented to keep the built-in lists.
#rankRequire = ["1080p", "2160p", "4K"]
#rankExclude = ["CAM", "TS", "TELESYNC", "SCR"]
#rankPreferred = ["HDR", "BluRay"]
# Expression over Title, Resolution, Source, Codec, HDR, Group, Year
#rankFilter = 'Codec != "x264"'

# Indexers, searched in order
# Options: "torrentio", "torznab"
indexers = ["torrentio"]
#torrentioUrl = ""
#torznabUrl = "http://localhost:9696/1/api"
#torznabApiKey = ""

# Download backend
# Options: "realdebrid", "qbittorrent"
backend = "{{ .backend }}"
#realDebridToken = ""

#qbittorrentHost = "http://localhost:8080"
#qbittorrentUsername = "admin"
#qbittorrentPassword = ""
#qbittorrentCategory = "watchbrr"
#qbittorrentSavePath = ""

# Watchlist sources
# Run "watchbrr auth trakt" once after setting the client id and secret
#traktClientId = ""
#traktClientSecret = ""
#traktUsername = ""
#plexToken = ""

# Prometheus Metrics
# Default: false
#metricsEnabled = false

# Default: "127.0.0.1"
#metricsHost = "127.0.0.1"

# Default: 9480
#metricsPort = 9480

# Basic authentication for metrics endpoint (optional)
# Format: "username:password" or "user1:pass1,user2:pass2"
#metricsBasicAuthUsers = ""
`

func (c *AppConfig) writeDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		log.Debug().Msgf("Config file already exists at: %s", path)
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}

	data := map[string]any{
		"host":          c.viper.GetString("host"),
		"port":          c.viper.GetInt("port"),
		"logLevel":      c.viper.GetString("logLevel"),
		"logMaxSize":    c.viper.GetInt("logMaxSize"),
		"logMaxBackups": c.viper.GetInt("logMaxBackups"),
		"interval":      c.viper.GetInt("interval"),
		"resolutions":   c.viper.GetStringSlice("resolutions"),
		"strategy":      c.viper.GetString("strategy"),
		"backend":       c.viper.GetString("backend"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse config template: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := tmpl.Execute(f, data); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Info().Msgf("Created default config file: %s", path)
	return nil
}

// WriteDefaultConfig writes the default config to path unless a file already exists there.
func WriteDefaultConfig(path string) error {
	c := &AppConfig{
		viper: viper.New(),
	}

	c.defaults()

	return c.writeDefaultConfig(path)
}

// GetDefaultConfigDir returns the OS-specific config directory
func GetDefaultConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		// Docker images set XDG_CONFIG_HOME=/config
		if xdgConfig == "/config" {
			return xdgConfig
		}
		return filepath.Join(xdgConfig, appDirName)
	}

	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appDirName)
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "AppData", "Roaming", appDirName)
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", appDirName)
	}
}

func detectContainer() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	if _, err := os.Stat("/dev/.lxc-boot-id"); err == nil {
		return true
	}
	return os.Getpid() == 1
}

func (c *AppConfig) ApplyLogConfig() {
	cfg := c.Current()

	zerolog.TimeFieldFormat = time.RFC3339
	setLogLevel(cfg.LogLevel)

	writer := baseLogWriter(c.version)

	if cfg.LogPath != "" {
		multiWriter, err := setupLogFile(c.resolveLogPath(cfg.LogPath), writer, cfg.LogMaxSize, cfg.LogMaxBackups)
		if err != nil {
			log.Error().Err(err).Msg("Failed to setup log file")
		} else {
			writer = multiWriter
		}
	}

	log.Logger = log.Logger.Output(writer)
}

func (c *AppConfig) resolveLogPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.GetConfigDir(), path)
}

func setLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Logger.Level(lvl)
}

func setupLogFile(path string, base io.Writer, maxSize, maxBackups int) (io.Writer, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	if maxSize <= 0 {
		maxSize = 50
	}

	if maxBackups < 0 {
		maxBackups = 0
	}

	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
	}

	return io.MultiWriter(base, rotator), nil
}

func baseLogWriter(version string) io.Writer {
	if isDevBuild(version) {
		writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		writer.PartsOrder = []string{zerolog.TimestampFieldName, zerolog.LevelFieldName, zerolog.MessageFieldName}
		return writer
	}
	return os.Stderr
}

// InitDefaultLogger configures zerolog before a configuration file is loaded.
func InitDefaultLogger(version string) {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Logger.Output(baseLogWriter(version))
}

func isDevBuild(version string) bool {
	v := strings.ToLower(strings.TrimSpace(version))
	return v == "" || v == "dev" || strings.HasSuffix(v, "-dev")
}

// resolveConfigPath accepts either a config file or the directory holding config.toml.
func (c *AppConfig) resolveConfigPath(configDirOrPath string) string {
	if strings.HasSuffix(strings.ToLower(configDirOrPath), ".toml") {
		return configDirOrPath
	}

	if info, err := os.Stat(configDirOrPath); err == nil && !info.IsDir() {
		return configDirOrPath
	}

	return filepath.Join(configDirOrPath, configFileName)
}

func (c *AppConfig) resolveDataDir() {
	switch {
	case c.Config.DataDir != "":
		c.dataDir = c.Config.DataDir
	case c.viper.ConfigFileUsed() != "":
		c.dataDir = filepath.Dir(c.viper.ConfigFileUsed())
	default:
		c.dataDir = "."
	}
}

// GetDatabasePath returns the path to the ledger database
func (c *AppConfig) GetDatabasePath() string {
	return filepath.Join(c.dataDir, databaseFileName)
}

// GetDataDir returns the resolved data directory path.
func (c *AppConfig) GetDataDir() string {
	return c.dataDir
}

// SetDataDir sets the data directory (used by CLI flags)
func (c *AppConfig) SetDataDir(dir string) {
	c.dataDir = dir
}

// GetConfigDir returns the directory containing the config file
func (c *AppConfig) GetConfigDir() string {
	if c.viper.ConfigFileUsed() != "" {
		return filepath.Dir(c.viper.ConfigFileUsed())
	}
	return GetDefaultConfigDir()
}

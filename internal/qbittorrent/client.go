// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package qbittorrent submits releases to a qBittorrent WebUI.
package qbittorrent

import (
	"context"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	defaultTimeout         = 30 * time.Second
	defaultStatusAttempts  = 5
	defaultStatusPollDelay = 500 * time.Millisecond
)

// stoppedOptionVersion is the first WebAPI release that renamed "paused" to "stopped".
var stoppedOptionVersion = semver.MustParse("2.11.0")

type Config struct {
	Host          string
	Username      string
	Password      string
	BasicUsername string
	BasicPassword string
	Category      string
	SavePath      string
	Timeout       time.Duration

	// StatusAttempts bounds how often Status polls for a freshly added magnet.
	StatusAttempts  uint
	StatusPollDelay time.Duration
}

type Client struct {
	*qbt.Client
	cfg Config

	mu              sync.RWMutex
	webAPIVersion   string
	supportsStopped bool
	lastHealthCheck time.Time
	isHealthy       bool

	appInfoMu        sync.RWMutex
	appInfoCache     *AppInfo
	appInfoFetchedAt time.Time
}

// filteredWriter drops "Unsolicited response received on idle HTTP channel"
// lines that qBittorrent provokes from net/http's stdlib logger.
type filteredWriter struct {
	writer io.Writer
}

func (fw *filteredWriter) Write(p []byte) (n int, err error) {
	if strings.Contains(string(p), "Unsolicited response received on idle HTTP channel") {
		return len(p), nil
	}
	return fw.writer.Write(p)
}

func init() {
	stdlog.SetOutput(&filteredWriter{writer: os.Stderr})
}

// NewClient logs in and records the WebAPI version.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("qbittorrent: host is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.StatusAttempts == 0 {
		cfg.StatusAttempts = defaultStatusAttempts
	}
	if cfg.StatusPollDelay <= 0 {
		cfg.StatusPollDelay = defaultStatusPollDelay
	}

	qbtClient := qbt.NewClient(qbt.Config{
		Host:      cfg.Host,
		Username:  cfg.Username,
		Password:  cfg.Password,
		BasicUser: cfg.BasicUsername,
		BasicPass: cfg.BasicPassword,
		Timeout:   int(cfg.Timeout.Seconds()),
	})

	loginCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if err := qbtClient.LoginCtx(loginCtx); err != nil {
		return nil, errors.Wrap(err, "qbittorrent: failed to connect")
	}

	webAPIVersion, err := qbtClient.GetWebAPIVersionCtx(loginCtx)
	if err != nil {
		webAPIVersion = ""
	}

	client := &Client{
		Client:          qbtClient,
		cfg:             cfg,
		lastHealthCheck: time.Now(),
		isHealthy:       true,
	}
	client.applyCapabilitiesLocked(webAPIVersion)

	log.Debug().
		Str("host", cfg.Host).
		Str("webAPIVersion", webAPIVersion).
		Bool("supportsStopped", client.supportsStopped).
		Msg("qbittorrent: client created")

	return client, nil
}

// applyCapabilitiesLocked must be called with mu held, or before the client is shared.
func (c *Client) applyCapabilitiesLocked(webAPIVersion string) {
	c.webAPIVersion = strings.TrimSpace(webAPIVersion)
	c.supportsStopped = false
	if c.webAPIVersion == "" {
		return
	}
	if v, err := semver.NewVersion(c.webAPIVersion); err == nil {
		c.supportsStopped = !v.LessThan(stoppedOptionVersion)
	}
}

func (c *Client) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isHealthy
}

func (c *Client) LastHealthCheck() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastHealthCheck
}

// HealthCheck pings the API, logging in again once if the session expired.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.GetWebAPIVersionCtx(ctx)
	if err != nil {
		if loginErr := c.LoginCtx(ctx); loginErr != nil {
			c.setHealth(false)
			return errors.Wrap(loginErr, "health check failed: login error")
		}
		if _, err = c.GetWebAPIVersionCtx(ctx); err != nil {
			c.setHealth(false)
			return errors.Wrap(err, "health check failed: api error")
		}
	}

	c.setHealth(true)
	return nil
}

func (c *Client) setHealth(healthy bool) {
	c.mu.Lock()
	c.isHealthy = healthy
	c.lastHealthCheck = time.Now()
	c.mu.Unlock()
}

func (c *Client) SupportsStopped() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.supportsStopped
}

func (c *Client) WebAPIVersion() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.webAPIVersion
}

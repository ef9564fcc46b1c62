// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package qbittorrent

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const appInfoCacheTTL = 5 * time.Minute
const appInfoRequestTimeout = 10 * time.Second

// AppInfo captures the qBittorrent application metadata exposed via the API.
type AppInfo struct {
	Version       string `json:"version"`
	WebAPIVersion string `json:"webAPIVersion,omitempty"`
}

// GetAppInfo returns cached app information, refreshing it when stale. A
// refresh also updates the version-dependent capabilities.
func (c *Client) GetAppInfo(ctx context.Context) (AppInfo, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.appInfoMu.RLock()
	if c.appInfoCache != nil && time.Since(c.appInfoFetchedAt) < appInfoCacheTTL {
		cached := *c.appInfoCache
		c.appInfoMu.RUnlock()
		return cached, nil
	}
	c.appInfoMu.RUnlock()

	return c.refreshAppInfo(ctx)
}

func (c *Client) refreshAppInfo(ctx context.Context) (AppInfo, error) {
	requestCtx, cancel := context.WithTimeout(ctx, appInfoRequestTimeout)
	defer cancel()

	version, err := c.GetAppVersionCtx(requestCtx)
	if err != nil {
		return AppInfo{}, errors.Wrap(err, "get app version")
	}

	webAPIVersion, err := c.GetWebAPIVersionCtx(requestCtx)
	if err != nil {
		return AppInfo{}, errors.Wrap(err, "get web API version")
	}

	webAPIVersion = strings.TrimSpace(webAPIVersion)
	if webAPIVersion == "" {
		return AppInfo{}, errors.New("web API version is empty")
	}

	info := AppInfo{
		Version:       strings.TrimSpace(version),
		WebAPIVersion: webAPIVersion,
	}

	c.mu.Lock()
	previousVersion := c.webAPIVersion
	c.applyCapabilitiesLocked(webAPIVersion)
	c.mu.Unlock()

	if previousVersion != webAPIVersion {
		log.Trace().
			Str("previousWebAPIVersion", previousVersion).
			Str("webAPIVersion", webAPIVersion).
			Msg("qbittorrent: updated capabilities from app info refresh")
	}

	c.appInfoMu.Lock()
	c.appInfoCache = &info
	c.appInfoFetchedAt = time.Now()
	c.appInfoMu.Unlock()

	return info, nil
}

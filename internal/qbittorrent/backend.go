// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package qbittorrent

import (
	"context"
	"strconv"
	"strings"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/watchbrr/pkg/hashutil"
)

const BackendName = "qbittorrent"

var ErrTorrentNotFound = errors.New("torrent not found")

func (c *Client) Name() string { return BackendName }

// AddMagnet adds the release stopped so file priorities can be set before it
// starts. The returned id is the lower-case info-hash.
func (c *Client) AddMagnet(ctx context.Context, hash, displayName string) (string, error) {
	hash = hashutil.Normalize(hash)
	if hash == "" {
		return "", errors.New("qbittorrent: hash is required")
	}

	options := map[string]string{}
	if c.cfg.Category != "" {
		options["category"] = c.cfg.Category
	}
	if c.cfg.SavePath != "" {
		options["savepath"] = c.cfg.SavePath
	}
	if c.SupportsStopped() {
		options["stopped"] = "true"
	} else {
		options["paused"] = "true"
	}

	if err := c.AddTorrentFromUrlCtx(ctx, hashutil.MagnetURI(hash, displayName), options); err != nil {
		return "", errors.Wrapf(err, "qbittorrent: add magnet %s", hash)
	}

	log.Debug().Str("hash", hash).Str("category", c.cfg.Category).Msg("qbittorrent: magnet added")
	return hash, nil
}

// SelectFiles sets the selected files to normal priority and starts the
// torrent. Only "all" is supported; magnets without metadata yet have no files
// and download everything by default.
func (c *Client) SelectFiles(ctx context.Context, id, selector string) error {
	if selector != "" && selector != "all" {
		return errors.Errorf("qbittorrent: unsupported file selector %q", selector)
	}

	files, err := c.GetFilesInformationCtx(ctx, id)
	if err != nil {
		return errors.Wrapf(err, "qbittorrent: list files for %s", id)
	}

	if files != nil && len(*files) > 0 {
		ids := make([]string, 0, len(*files))
		for _, f := range *files {
			ids = append(ids, strconv.Itoa(f.Index))
		}
		if err := c.SetFilePriorityCtx(ctx, id, strings.Join(ids, "|"), 1); err != nil {
			return errors.Wrapf(err, "qbittorrent: set file priority for %s", id)
		}
	}

	if err := c.ResumeCtx(ctx, []string{id}); err != nil {
		return errors.Wrapf(err, "qbittorrent: start %s", id)
	}
	return nil
}

// Status returns the torrent state, polling briefly while qBittorrent registers
// a freshly added magnet.
func (c *Client) Status(ctx context.Context, id string) (string, error) {
	var state string
	err := retry.Do(
		func() error {
			torrents, err := c.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{Hashes: []string{id}})
			if err != nil {
				return retry.Unrecoverable(err)
			}
			if len(torrents) == 0 {
				return ErrTorrentNotFound
			}
			state = string(torrents[0].State)
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.cfg.StatusAttempts),
		retry.Delay(c.cfg.StatusPollDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", errors.Wrapf(err, "qbittorrent: status for %s", id)
	}
	return state, nil
}

// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package indexer resolves watchlist items to candidate releases.
package indexer

import (
	"context"
	"errors"
	"fmt"

	"github.com/autobrr/watchbrr/internal/models"
)

var (
	// ErrUnsupportedMediaType is returned before any request is made.
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrIndexerNotFound      = errors.New("indexer not found")
	ErrNoIndexers           = errors.New("no indexers configured")
)

// Indexer finds releases for one external id.
type Indexer interface {
	Name() string
	FindReleases(ctx context.Context, externalID string, mediaType models.MediaType, title string) ([]models.Release, error)
}

// ValidateMediaType accepts movies, shows and episodes.
func ValidateMediaType(mediaType models.MediaType) error {
	switch mediaType {
	case models.MediaTypeMovie, models.MediaTypeShow, models.MediaTypeEpisode:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedMediaType, string(mediaType))
	}
}

func bytesToGB(size int64) float64 {
	if size <= 0 {
		return 0
	}
	return float64(size) / (1 << 30)
}

// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package timeouts holds the deadlines applied to indexer searches.
package timeouts

import (
	"context"
	"time"
)

const (
	// DefaultSearchTimeout bounds a search against a single indexer.
	DefaultSearchTimeout = 15 * time.Second
	// PerIndexerSearchTimeout is added for every indexer beyond the first when
	// all indexers are searched in one go.
	PerIndexerSearchTimeout = 5 * time.Second
	MaxSearchTimeout        = 60 * time.Second
)

// AdaptiveSearchTimeout scales the search deadline with the number of indexers
// queried sequentially.
func AdaptiveSearchTimeout(indexerCount int) time.Duration {
	if indexerCount <= 1 {
		return DefaultSearchTimeout
	}
	timeout := DefaultSearchTimeout + time.Duration(indexerCount-1)*PerIndexerSearchTimeout
	if timeout > MaxSearchTimeout {
		return MaxSearchTimeout
	}
	return timeout
}

// WithSearchTimeout applies timeout unless ctx already carries a deadline.
func WithSearchTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	if timeout <= 0 {
		timeout = DefaultSearchTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

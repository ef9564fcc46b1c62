// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package stringutils

import (
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
)

const defaultNormalizerTTL = 10 * time.Minute

// Normalizer memoizes a pure transform for a while, so hot titles are only
// folded once per cycle.
type Normalizer[K comparable, V any] struct {
	cache     *ttlcache.Cache[K, V]
	transform func(K) V
}

func NewNormalizer[K comparable, V any](ttl time.Duration, transform func(K) V) *Normalizer[K, V] {
	if ttl <= 0 {
		ttl = defaultNormalizerTTL
	}
	return &Normalizer[K, V]{
		cache:     ttlcache.New(ttlcache.Options[K, V]{}.SetDefaultTTL(ttl)),
		transform: transform,
	}
}

func (n *Normalizer[K, V]) Normalize(key K) V {
	if cached, ok := n.cache.Get(key); ok {
		return cached
	}
	v := n.transform(key)
	n.cache.Set(key, v, ttlcache.DefaultTTL)
	return v
}

func (n *Normalizer[K, V]) Clear(key K) {
	n.cache.Delete(key)
}

// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package releases wraps rls with a short-lived parse cache.
package releases

import (
	"strings"
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	"github.com/moistari/rls"
)

const DefaultCacheTTL = 10 * time.Minute

type Parser struct {
	cache *ttlcache.Cache[string, *rls.Release]
}

func NewParser(ttl time.Duration) *Parser {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Parser{
		cache: ttlcache.New(ttlcache.Options[string, *rls.Release]{}.SetDefaultTTL(ttl)),
	}
}

func NewDefaultParser() *Parser {
	return NewParser(DefaultCacheTTL)
}

// Parse returns the rls parse of name. It never returns nil; a nil parser or a
// blank name yields an empty release.
func (p *Parser) Parse(name string) *rls.Release {
	name = strings.TrimSpace(name)
	if p == nil || name == "" {
		return &rls.Release{}
	}

	if cached, ok := p.cache.Get(name); ok && cached != nil {
		return cached
	}

	release := rls.ParseString(name)
	p.cache.Set(name, &release, ttlcache.DefaultTTL)
	return &release
}

// Clear drops name from the cache.
func (p *Parser) Clear(name string) {
	name = strings.TrimSpace(name)
	if p == nil || name == "" {
		return
	}
	p.cache.Delete(name)
}

// Close stops the cache janitor.
func (p *Parser) Close() {
	if p == nil {
		return
	}
	p.cache.Close()
}

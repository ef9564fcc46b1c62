// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package titles turns the multi-line stream titles published by indexers
// into structured release attributes.
//
// The first line is the release name. Subsequent lines carry metadata markers:
//
//	Movie.Title.2024.1080p.WEB-DL.x264
//	👤 50 💾 2.5 GB ⚙️ RARBG
package titles

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/moistari/rls"

	"github.com/autobrr/watchbrr/pkg/releases"
)

// Some feeds double-encode the emoji markers, so the latin-1 mojibake forms
// are accepted too.
var (
	peersPattern   = regexp.MustCompile(`(?:👤|ðŸ‘¤)\s*(\d+)`)
	sizePattern    = regexp.MustCompile(`(?:💾|ðŸ’¾)\s*([\d.]+)\s*(GB|MB)`)
	qualityPattern = regexp.MustCompile(`(?i)(4K|2160p|1080p|720p|480p)`)
)

// ParsedTitle is the structured form of a raw stream title.
type ParsedTitle struct {
	DisplayTitle string  `json:"displayTitle"`
	PeerCount    int     `json:"peerCount"`
	SizeGB       float64 `json:"sizeGb"`
	Quality      string  `json:"quality,omitempty"`

	// Release is the rls parse of DisplayTitle. It is never nil.
	Release *rls.Release `json:"-"`
}

type Parser struct {
	releases *releases.Parser
}

func NewParser(rp *releases.Parser) *Parser {
	if rp == nil {
		rp = releases.NewDefaultParser()
	}
	return &Parser{releases: rp}
}

var (
	defaultOnce   sync.Once
	defaultParser *Parser
)

// Parse uses a process-wide parser.
func Parse(raw string) ParsedTitle {
	defaultOnce.Do(func() {
		defaultParser = NewParser(nil)
	})
	return defaultParser.Parse(raw)
}

// Parse never fails. Missing or malformed metadata yields zero values.
func (p *Parser) Parse(raw string) ParsedTitle {
	first, rest, _ := strings.Cut(raw, "\n")
	display := strings.TrimSpace(first)

	parsed := ParsedTitle{
		DisplayTitle: display,
		PeerCount:    parsePeers(rest),
		SizeGB:       parseSizeGB(rest),
	}

	if m := qualityPattern.FindStringSubmatch(display); m != nil {
		parsed.Quality = m[1]
	}

	if p != nil && p.releases != nil {
		parsed.Release = p.releases.Parse(display)
	} else {
		parsed.Release = &rls.Release{}
	}

	return parsed
}

func parsePeers(s string) int {
	m := peersPattern.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func parseSizeGB(s string) float64 {
	m := sizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if m[2] == "MB" {
		return math.Round(v/1024*100) / 100
	}
	return v
}

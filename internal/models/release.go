// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

// Release is one candidate download discovered by an indexer.
type Release struct {
	// Title is the display title produced by the title parser, never the raw feed string.
	Title string `json:"title"`
	// ContentHash is the info-hash handed to a download backend.
	ContentHash string  `json:"contentHash"`
	SizeGB      float64 `json:"sizeGb"`
	PeerCount   int     `json:"peerCount"`
	// Rank is zero until a ranker scores the release. Higher is better.
	Rank       float64 `json:"rank,omitempty"`
	Resolution string  `json:"resolution,omitempty"`
	Indexer    string  `json:"indexer,omitempty"`
}

// Submittable reports whether the release carries a hash a backend can accept.
// The hash format is not validated.
func (r Release) Submittable() bool {
	return r.ContentHash != ""
}

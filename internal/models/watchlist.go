// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import "strings"

// YearUnknown is used when a source does not report a release year.
const YearUnknown = "N/A"

type MediaType string

const (
	MediaTypeMovie   MediaType = "movie"
	MediaTypeShow    MediaType = "show"
	MediaTypeEpisode MediaType = "episode"
	MediaTypeUnknown MediaType = "unknown"
)

// ParseMediaType maps a free-form type string onto a MediaType. Unrecognised
// values map to MediaTypeUnknown.
func ParseMediaType(s string) MediaType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "movie", "movies":
		return MediaTypeMovie
	case "show", "shows", "series", "tv":
		return MediaTypeShow
	case "episode", "episodes":
		return MediaTypeEpisode
	default:
		return MediaTypeUnknown
	}
}

func (m MediaType) String() string {
	return string(m)
}

// WatchlistItem is one title a user asked for. Sources produce a fresh set every
// cycle; the pipeline never mutates or persists items.
type WatchlistItem struct {
	Title      string    `json:"title"`
	Year       string    `json:"year"`
	ExternalID string    `json:"externalId"`
	MediaType  MediaType `json:"mediaType"`
	// Source is the name of the watchlist source that produced the item.
	Source string `json:"source,omitempty"`
	// SourceKey is a source specific identifier, e.g. a Plex ratingKey.
	SourceKey string `json:"sourceKey,omitempty"`
	// Origins lists every source that listed the item when several did.
	Origins []Origin `json:"origins,omitempty"`
}

// Origin is one source listing of a watchlist item.
type Origin struct {
	Source    string `json:"source"`
	SourceKey string `json:"sourceKey,omitempty"`
}

// Key identifies an item across sources: the external id plus its media type.
func (i WatchlistItem) Key() string {
	return strings.ToLower(strings.TrimSpace(i.ExternalID)) + ":" + string(i.MediaType)
}

// Listings returns the origins of the item, falling back to its own source.
func (i WatchlistItem) Listings() []Origin {
	if len(i.Origins) > 0 {
		return i.Origins
	}
	if i.Source == "" {
		return nil
	}
	return []Origin{{Source: i.Source, SourceKey: i.SourceKey}}
}

// DisplayYear returns the year or YearUnknown when it is empty.
func (i WatchlistItem) DisplayYear() string {
	if y := strings.TrimSpace(i.Year); y == "" || y == YearUnknown {
		return YearUnknown
	}
	return i.Year
}

// CollectionItem is an entry the user already owns according to a source.
type CollectionItem struct {
	Title      string    `json:"title"`
	Year       string    `json:"year"`
	ExternalID string    `json:"externalId"`
	MediaType  MediaType `json:"mediaType"`
}

// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package hashutil normalizes torrent info-hashes and converts between hashes
// and magnet links.
package hashutil

import (
	"strings"

	"github.com/anacrolix/torrent/metainfo"
)

// Normalize trims and lower-cases hash.
func Normalize(hash string) string {
	return strings.ToLower(strings.TrimSpace(hash))
}

// IsV1Hex reports whether hash is a 40 character hex SHA-1 info-hash.
func IsV1Hex(hash string) bool {
	var h metainfo.Hash
	hash = strings.TrimSpace(hash)
	return len(hash) == 40 && h.FromHexString(hash) == nil
}

// MagnetURI builds a magnet link for hash. Well-formed v1 hashes go through
// metainfo so the display name is encoded; anything else is passed through
// verbatim because backends accept base32 and v2 hashes too.
func MagnetURI(hash, displayName string) string {
	hash = strings.TrimSpace(hash)

	var h metainfo.Hash
	if IsV1Hex(hash) && h.FromHexString(hash) == nil {
		m := metainfo.Magnet{InfoHash: h, DisplayName: strings.TrimSpace(displayName)}
		return m.String()
	}
	return "magnet:?xt=urn:btih:" + hash
}

// FromMagnet extracts the lower-case hex info-hash from a magnet link, or "".
func FromMagnet(link string) string {
	link = strings.TrimSpace(link)
	if !strings.HasPrefix(strings.ToLower(link), "magnet:") {
		return ""
	}
	m, err := metainfo.ParseMagnetURI(link)
	if err != nil || m.InfoHash == (metainfo.Hash{}) {
		return ""
	}
	return m.InfoHash.HexString()
}

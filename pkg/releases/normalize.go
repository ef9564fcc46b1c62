// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package releases

import "strings"

var codecAliases = map[string]string{
	"X264":  "AVC",
	"H.264": "AVC",
	"H264":  "AVC",
	"AVC":   "AVC",
	"X265":  "HEVC",
	"H.265": "HEVC",
	"H265":  "HEVC",
	"HEVC":  "HEVC",
}

// NormalizeCodec folds x264/H.264/AVC and x265/H.265/HEVC spellings together.
// Unknown codecs are returned upper-cased.
func NormalizeCodec(codec string) string {
	upper := strings.ToUpper(strings.TrimSpace(codec))
	if canonical, ok := codecAliases[upper]; ok {
		return canonical
	}
	return upper
}

// NormalizeCodecs normalizes and de-duplicates codecs, keeping first-seen order.
func NormalizeCodecs(codecs []string) []string {
	if len(codecs) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(codecs))
	out := make([]string, 0, len(codecs))
	for _, c := range codecs {
		n := NormalizeCodec(c)
		if _, ok := seen[n]; ok || n == "" {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// NormalizeSource maps WEB-DL spellings to WEBDL and upper-cases everything else.
func NormalizeSource(source string) string {
	upper := strings.ToUpper(strings.TrimSpace(source))
	switch upper {
	case "WEB-DL", "WEBDL":
		return "WEBDL"
	case "BLU-RAY", "BLURAY":
		return "BLURAY"
	}
	return upper
}

// IsUHD reports whether resolution is a 2160p/4K tag.
func IsUHD(resolution string) bool {
	switch strings.ToUpper(strings.TrimSpace(resolution)) {
	case "2160P", "4K", "UHD":
		return true
	}
	return false
}

// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package quality

import (
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/autobrr/watchbrr/pkg/stringutils"
)

// MinTitleSimilarity is the lowest Similarity a ranked release may have.
const MinTitleSimilarity = 0.7

// Similarity returns a normalized Levenshtein similarity in [0,1] after folding
// case, accents and punctuation.
func Similarity(a, b string) float64 {
	fa := stringutils.FoldTitle(a)
	fb := stringutils.FoldTitle(b)

	if fa == fb {
		return 1
	}
	longest := max(utf8.RuneCountInString(fa), utf8.RuneCountInString(fb))
	if longest == 0 {
		return 1
	}

	dist := fuzzy.LevenshteinDistance(fa, fb)
	if dist >= longest {
		return 0
	}
	return 1 - float64(dist)/float64(longest)
}

// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package stringutils

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	accentFolder = NewNormalizer(defaultNormalizerTTL, stripAccents)
	titleFolder  = NewNormalizer(defaultNormalizerTTL, foldTitle)

	// letters that NFKD leaves alone
	ligatures = strings.NewReplacer(
		"æ", "ae", "Æ", "AE",
		"œ", "oe", "Œ", "OE",
		"ø", "o", "Ø", "O",
		"ß", "ss",
		"ð", "d", "Ð", "D",
		"þ", "th", "Þ", "TH",
	)

	apostrophes = strings.NewReplacer("'", "", "’", "", "‘", "", "`", "")
)

func stripAccents(s string) string {
	s = ligatures.Replace(s)
	// transform.Chain is stateful, so one is built per call
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func foldTitle(s string) string {
	s = strings.ToLower(accentFolder.Normalize(s))
	s = apostrophes.Replace(s)
	s = strings.ReplaceAll(s, "&", " and ")

	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		// release separators and any other punctuation become word breaks
		return ' '
	}, s)

	return strings.Join(strings.Fields(s), " ")
}

// StripAccents removes diacritics and expands ligatures: "Amélie" → "Amelie".
func StripAccents(s string) string {
	return accentFolder.Normalize(s)
}

// FoldTitle reduces a title to lower-case ASCII-ish words for comparison:
//
//	"Amélie (2001)"       → "amelie 2001"
//	"Spider-Man.No.Way"   → "spider man no way"
//	"Bob's Burgers"       → "bobs burgers"
//	"Law & Order: SVU"    → "law and order svu"
func FoldTitle(s string) string {
	return titleFolder.Normalize(s)
}

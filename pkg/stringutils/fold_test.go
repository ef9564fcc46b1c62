// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package stringutils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFoldTitle(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"Amélie (2001)":        "amelie 2001",
		"Spider-Man.No.Way":    "spider man no way",
		"Bob's Burgers":        "bobs burgers",
		"Law & Order: SVU":     "law and order svu",
		"  Shōgun   S01  ":     "shogun s01",
		"Smørrebrød":           "smorrebrod",
		"The_Matrix_1999_1080p": "the matrix 1999 1080p",
		"":                     "",
	}

	for in, want := range tests {
		assert.Equal(t, want, FoldTitle(in), "input %q", in)
	}
}

func TestStripAccents(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Amelie", StripAccents("Amélie"))
	assert.Equal(t, "Bjork", StripAccents("Björk"))
	assert.Equal(t, "Strasse", StripAccents("Straße"))
}

func TestNormalizerCaches(t *testing.T) {
	t.Parallel()

	calls := 0
	n := NewNormalizer(time.Minute, func(s string) string {
		calls++
		return strings.ToUpper(s)
	})

	assert.Equal(t, "ABC", n.Normalize("abc"))
	assert.Equal(t, "ABC", n.Normalize("abc"))
	assert.Equal(t, 1, calls)

	n.Clear("abc")
	assert.Equal(t, "ABC", n.Normalize("abc"))
	assert.Equal(t, 2, calls)
}

// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torznab

import (
	"encoding/xml"
	"strconv"
	"strings"
)

type Rss struct {
	XMLName xml.Name `xml:"rss"`
	Channel Channel  `xml:"channel"`
}

type Channel struct {
	Title string `xml:"title"`
	Items []Item `xml:"item"`
}

type Item struct {
	Title     string    `xml:"title"`
	GUID      string    `xml:"guid"`
	Link      string    `xml:"link"`
	Comments  string    `xml:"comments"`
	PubDate   string    `xml:"pubDate"`
	Size      int64     `xml:"size"`
	Indexer   string    `xml:"jackettindexer"`
	Enclosure Enclosure `xml:"enclosure"`
	// Attrs holds the torznab:attr extension elements.
	Attrs []Attr `xml:"attr"`
}

type Enclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

type Attr struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// TorznabError is the body returned by torznab endpoints on failure.
type TorznabError struct {
	Code    string `xml:"code,attr"`
	Message string `xml:"description,attr"`
}

func (e *TorznabError) Error() string {
	return "torznab error " + e.Code + ": " + e.Message
}

// Attr returns the value of the named attribute, or "".
func (i Item) Attr(name string) string {
	for _, a := range i.Attrs {
		if strings.EqualFold(a.Name, name) {
			return a.Value
		}
	}
	return ""
}

func (i Item) attrInt(name string) (int64, bool) {
	v := strings.TrimSpace(i.Attr(name))
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// SizeBytes prefers the size attribute, then the <size> element, then the
// enclosure length.
func (i Item) SizeBytes() int64 {
	if n, ok := i.attrInt("size"); ok && n > 0 {
		return n
	}
	if i.Size > 0 {
		return i.Size
	}
	return i.Enclosure.Length
}

// Seeders returns the seeders attribute, falling back to peers.
func (i Item) Seeders() int {
	if n, ok := i.attrInt("seeders"); ok && n >= 0 {
		return int(n)
	}
	if n, ok := i.attrInt("peers"); ok && n >= 0 {
		return int(n)
	}
	return 0
}

// MagnetURL returns the magneturl attribute or a magnet link / enclosure.
func (i Item) MagnetURL() string {
	if v := i.Attr("magneturl"); v != "" {
		return v
	}
	for _, candidate := range []string{i.Link, i.Enclosure.URL, i.GUID} {
		if strings.HasPrefix(strings.ToLower(candidate), "magnet:") {
			return candidate
		}
	}
	return ""
}

// Caps is the subset of the t=caps response used to pick a search mode.
type Caps struct {
	XMLName   xml.Name `xml:"caps"`
	Searching struct {
		Search   SearchCap `xml:"search"`
		TVSearch SearchCap `xml:"tv-search"`
		Movie    SearchCap `xml:"movie-search"`
	} `xml:"searching"`
}

type SearchCap struct {
	Available       string `xml:"available,attr"`
	SupportedParams string `xml:"supportedParams,attr"`
}

// Supports reports whether the search mode is available and accepts param.
func (c SearchCap) Supports(param string) bool {
	if !strings.EqualFold(c.Available, "yes") {
		return false
	}
	for _, p := range strings.Split(c.SupportedParams, ",") {
		if strings.EqualFold(strings.TrimSpace(p), param) {
			return true
		}
	}
	return false
}

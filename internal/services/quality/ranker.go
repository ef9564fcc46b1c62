// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package quality

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/moistari/rls"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/watchbrr/internal/models"
	"github.com/autobrr/watchbrr/pkg/releases"
)

// Ranking is a ranker's verdict on one release title.
type Ranking struct {
	Fetch       bool    `json:"fetch"`
	Rank        float64 `json:"rank"`
	ParsedTitle string  `json:"parsedTitle"`
	Resolution  string  `json:"resolution"`
}

// Ranker scores a release title.
type Ranker interface {
	Rank(title, hash string) (Ranking, error)
}

const (
	HDRBonus       = 100
	UHDBonus       = 200
	PreferredBonus = 50
	// ladderStep is the score gap between adjacent resolution tiers.
	ladderStep = 50
)

var (
	DefaultRankRequire   = []string{"1080p", "2160p", "4K"}
	DefaultRankExclude   = []string{"CAM", "TS", "TELESYNC", "SCR"}
	DefaultRankPreferred = []string{"HDR", "BluRay"}
)

// RankerConfig configures RlsRanker. A nil slice selects the default list; an
// empty, non-nil slice disables that check.
type RankerConfig struct {
	Require   []string
	Exclude   []string
	Preferred []string
	// Filter is an expr-lang expression over RankEnv that must evaluate to true.
	Filter string
	// ResolutionOrder feeds the ladder score, best first.
	ResolutionOrder []string
}

// RankEnv is the environment exposed to filter expressions.
type RankEnv struct {
	Title      string
	Resolution string
	Source     string
	Codec      string
	HDR        bool
	Group      string
	Year       int
}

// RlsRanker scores releases from their rls parse.
type RlsRanker struct {
	require         []string
	exclude         []string
	preferred       []string
	resolutionOrder []string
	program         *vm.Program
	parser          *releases.Parser
}

func NewRlsRanker(cfg RankerConfig, parser *releases.Parser) (*RlsRanker, error) {
	if parser == nil {
		parser = releases.NewDefaultParser()
	}

	r := &RlsRanker{
		require:         upperTerms(orDefault(cfg.Require, DefaultRankRequire)),
		exclude:         upperTerms(orDefault(cfg.Exclude, DefaultRankExclude)),
		preferred:       upperTerms(orDefault(cfg.Preferred, DefaultRankPreferred)),
		resolutionOrder: orDefault(cfg.ResolutionOrder, models.DefaultResolutionOrder),
		parser:          parser,
	}

	if filter := strings.TrimSpace(cfg.Filter); filter != "" {
		program, err := expr.Compile(filter, expr.Env(RankEnv{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compile rank filter: %w", err)
		}
		r.program = program
	}
	return r, nil
}

func (r *RlsRanker) Rank(title, _ string) (Ranking, error) {
	rel := r.parser.Parse(title)
	tokens := tokenize(title)
	resolution := releaseResolution(rel, tokens)

	ranking := Ranking{
		ParsedTitle: rel.Title,
		Resolution:  resolution,
	}

	for _, term := range r.exclude {
		if hasTerm(tokens, title, term) || strings.EqualFold(rel.Source, term) {
			return ranking, nil
		}
	}

	if len(r.require) > 0 && !r.meetsRequirement(resolution, tokens, title) {
		return ranking, nil
	}

	hdr := len(rel.HDR) > 0 || hasTerm(tokens, title, "HDR")
	if r.program != nil {
		env := RankEnv{
			Title:      rel.Title,
			Resolution: resolution,
			Source:     releases.NormalizeSource(rel.Source),
			Codec:      strings.Join(releases.NormalizeCodecs(rel.Codec), ","),
			HDR:        hdr,
			Group:      rel.Group,
			Year:       rel.Year,
		}
		out, err := expr.Run(r.program, env)
		if err != nil {
			return ranking, fmt.Errorf("evaluate rank filter: %w", err)
		}
		if ok, _ := out.(bool); !ok {
			return ranking, nil
		}
	}

	score := float64(r.ladderScore(resolution))
	for _, term := range r.preferred {
		if hasTerm(tokens, title, term) {
			score += PreferredBonus
		}
	}
	if hdr {
		score += HDRBonus
	}
	if releases.IsUHD(resolution) {
		score += UHDBonus
	}

	ranking.Fetch = true
	ranking.Rank = score
	return ranking, nil
}

func (r *RlsRanker) meetsRequirement(resolution string, tokens []string, title string) bool {
	for _, term := range r.require {
		if strings.EqualFold(resolution, term) || hasTerm(tokens, title, term) {
			return true
		}
		if releases.IsUHD(term) && releases.IsUHD(resolution) {
			return true
		}
	}
	return false
}

// ladderScore mirrors rankFieldValue: earlier entries in the order score higher
// and an absent resolution scores zero.
func (r *RlsRanker) ladderScore(resolution string) int {
	if resolution == "" {
		return 0
	}
	for i, v := range r.resolutionOrder {
		if strings.EqualFold(strings.TrimSpace(v), resolution) ||
			(releases.IsUHD(v) && releases.IsUHD(resolution)) {
			return (len(r.resolutionOrder) - i) * ladderStep
		}
	}
	return 0
}

func releaseResolution(rel *rls.Release, tokens []string) string {
	if rel.Resolution != "" {
		return rel.Resolution
	}
	for _, tok := range tokens {
		switch tok {
		case "2160P", "4K", "UHD":
			return "2160p"
		case "1080P", "720P", "480P":
			return strings.ToLower(tok)
		}
	}
	return ""
}

// tokenize splits a release title into upper-case words so short terms like
// "TS" do not match inside longer words.
func tokenize(title string) []string {
	return strings.FieldsFunc(strings.ToUpper(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// hasTerm matches single-word terms against tokens and multi-word terms as a
// case-insensitive substring.
func hasTerm(tokens []string, title, upperTerm string) bool {
	if strings.ContainsFunc(upperTerm, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) }) {
		return strings.Contains(strings.ToUpper(title), upperTerm)
	}
	return slices.Contains(tokens, upperTerm)
}

func upperTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func orDefault(values, def []string) []string {
	if values == nil {
		return def
	}
	return values
}

func logRankError(item models.WatchlistItem, r models.Release, err error) {
	log.Warn().
		Err(err).
		Str("title", item.Title).
		Str("externalId", item.ExternalID).
		Str("release", r.Title).
		Str("hash", r.ContentHash).
		Msg("quality: ranker failed, discarding release")
}

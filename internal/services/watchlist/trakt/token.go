// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package trakt

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// TokenFileName is the credential file kept in the data directory.
const TokenFileName = "trakt_token.json"

var ErrNotAuthenticated = errors.New("trakt: no stored credential, run `watchbrr auth trakt`")

// TokenStore persists an oauth2 token as JSON.
type TokenStore struct {
	path string
	mu   sync.Mutex
}

func NewTokenStore(dataDir string) *TokenStore {
	return &TokenStore{path: filepath.Join(dataDir, TokenFileName)}
}

func (s *TokenStore) Path() string { return s.path }

// Load returns ErrNotAuthenticated when no token has been stored yet.
func (s *TokenStore) Load() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("read trakt token: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("decode trakt token: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, ErrNotAuthenticated
	}
	return &tok, nil
}

func (s *TokenStore) Save(tok *oauth2.Token) error {
	if tok == nil {
		return errors.New("trakt: nil token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}

	b, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("encode trakt token: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write trakt token: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// persistingTokenSource writes refreshed tokens back to the store.
type persistingTokenSource struct {
	base  oauth2.TokenSource
	store *TokenStore

	mu   sync.Mutex
	last string
}

func newPersistingTokenSource(base oauth2.TokenSource, store *TokenStore, initial *oauth2.Token) oauth2.TokenSource {
	last := ""
	if initial != nil {
		last = initial.AccessToken
	}
	return &persistingTokenSource{base: base, store: store, last: last}
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if tok.AccessToken != p.last {
		if err := p.store.Save(tok); err != nil {
			log.Error().Err(err).Msg("trakt: failed to persist refreshed token")
		} else {
			log.Info().Time("expiry", tok.Expiry).Msg("trakt: token refreshed")
		}
		p.last = tok.AccessToken
	}
	return tok, nil
}

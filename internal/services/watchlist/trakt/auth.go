// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package trakt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

var (
	ErrAuthorizationDenied = errors.New("trakt: authorization denied by user")
	ErrDeviceCodeExpired   = errors.New("trakt: device code expired")
	ErrDeviceCodeInvalid   = errors.New("trakt: device code invalid or already used")
)

const (
	defaultPollInterval = 5 * time.Second
	// slowDownStep is added to the poll interval on every 429.
	slowDownStep = time.Second
)

// DeviceCode is shown to the user while ObtainCredential polls.
type DeviceCode struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURL string `json:"verification_url"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

type deviceTokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	CreatedAt    int64  `json:"created_at"`
}

func (r deviceTokenResponse) token(now time.Time) *oauth2.Token {
	created := now
	if r.CreatedAt > 0 {
		created = time.Unix(r.CreatedAt, 0)
	}
	tok := &oauth2.Token{
		AccessToken:  r.AccessToken,
		TokenType:    r.TokenType,
		RefreshToken: r.RefreshToken,
	}
	if r.ExpiresIn > 0 {
		tok.Expiry = created.Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	return tok
}

// ObtainCredential runs the device-code flow and blocks until the user approves,
// denies, or the code expires. prompt receives the code to show the user.
// The resulting token is stored and used by subsequent requests.
func (c *Client) ObtainCredential(ctx context.Context, prompt func(DeviceCode)) (*oauth2.Token, error) {
	var code DeviceCode
	if _, err := c.doJSON(ctx, c.base, http.MethodPost, "/oauth/device/code", map[string]string{"client_id": c.clientID}, &code); err != nil {
		return nil, fmt.Errorf("trakt: request device code: %w", err)
	}
	if code.DeviceCode == "" {
		return nil, ErrDeviceCodeInvalid
	}

	if prompt != nil {
		prompt(code)
	}

	interval := time.Duration(code.Interval) * time.Second
	if interval <= 0 {
		interval = defaultPollInterval
	}
	deadline := c.now().Add(time.Duration(code.ExpiresIn) * time.Second)

	body := map[string]string{
		"code":          code.DeviceCode,
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
	}

	for {
		if code.ExpiresIn > 0 && !c.now().Before(deadline) {
			return nil, ErrDeviceCodeExpired
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.after(interval):
		}

		var resp deviceTokenResponse
		status, err := c.doJSON(ctx, c.base, http.MethodPost, "/oauth/device/token", body, &resp)
		switch status {
		case http.StatusOK:
			if err != nil {
				return nil, fmt.Errorf("trakt: decode device token: %w", err)
			}
			tok := resp.token(c.now())
			if err := c.store.Save(tok); err != nil {
				return nil, err
			}
			c.resetAuthorizedClient()
			log.Info().Str("path", c.store.Path()).Msg("trakt: device authorized")
			return tok, nil
		case http.StatusBadRequest:
			// authorization pending
			continue
		case http.StatusTooManyRequests:
			interval += slowDownStep
			continue
		case http.StatusNotFound, http.StatusConflict:
			return nil, ErrDeviceCodeInvalid
		case http.StatusGone:
			return nil, ErrDeviceCodeExpired
		case http.StatusTeapot:
			return nil, ErrAuthorizationDenied
		default:
			if err == nil {
				err = fmt.Errorf("unexpected status %d", status)
			}
			return nil, fmt.Errorf("trakt: poll device token: %w", err)
		}
	}
}

func (c *Client) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.baseURL + "/oauth/authorize",
			TokenURL:  c.baseURL + "/oauth/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: "urn:ietf:wg:oauth:2.0:oob",
	}
}

// authorizedClient builds an http.Client whose token source refreshes against
// /oauth/token and persists the result.
func (c *Client) authorizedClient() (*http.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.authed != nil {
		return c.authed, nil
	}

	tok, err := c.store.Load()
	if err != nil {
		return nil, err
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.base)
	ts := newPersistingTokenSource(c.oauthConfig().TokenSource(ctx, tok), c.store, tok)

	c.authed = &http.Client{
		Transport: &oauth2.Transport{Source: ts, Base: c.base.Transport},
		Timeout:   c.base.Timeout,
	}
	return c.authed, nil
}

func (c *Client) resetAuthorizedClient() {
	c.mu.Lock()
	c.authed = nil
	c.mu.Unlock()
}

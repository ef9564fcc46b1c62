// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package redact strips credentials from URLs before they reach logs.
package redact

import (
	"errors"
	"net/url"
	"strings"
)

const placeholder = "REDACTED"

var sensitiveParams = []string{
	"apikey",
	"api_key",
	"token",
	"passkey",
	"password",
	"client_secret",
	"x-plex-token",
}

func isSensitive(key string) bool {
	key = strings.ToLower(key)
	for _, s := range sensitiveParams {
		if key == s {
			return true
		}
	}
	return false
}

// URL returns raw with sensitive query values and userinfo passwords replaced.
// Unparseable input is returned unchanged.
func URL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), placeholder)
		}
	}

	if u.RawQuery == "" {
		return u.String()
	}

	query := u.Query()
	for key := range query {
		if isSensitive(key) {
			query[key] = []string{placeholder}
		}
	}
	// Encode escapes nothing in the placeholder, keeping "apikey=REDACTED" greppable.
	u.RawQuery = query.Encode()
	return u.String()
}

type wrappedURLError struct {
	msg   string
	inner *url.Error
}

func (e *wrappedURLError) Error() string { return e.msg }
func (e *wrappedURLError) Unwrap() error { return e.inner }

// URLError returns err with any *url.Error in its chain redacted. The result
// still satisfies errors.As(*url.Error).
func URLError(err error) error {
	if err == nil {
		return nil
	}

	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}

	redacted := &url.Error{
		Op:  urlErr.Op,
		URL: URL(urlErr.URL),
		Err: urlErr.Err,
	}

	if err == error(urlErr) {
		return redacted
	}

	msg := strings.ReplaceAll(err.Error(), urlErr.Error(), redacted.Error())
	// fall back to a blunt replacement when the wrapper reformatted the message
	if urlErr.URL != redacted.URL {
		msg = strings.ReplaceAll(msg, urlErr.URL, redacted.URL)
	}
	return &wrappedURLError{msg: msg, inner: redacted}
}

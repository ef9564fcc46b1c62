// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package testdb hands out migrated sqlite files for tests.
package testdb

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/autobrr/watchbrr/internal/database"
)

type template struct {
	once sync.Once
	path string
	err  error
}

var (
	mu        sync.Mutex
	templates = map[string]*template{}

	unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9]`)
)

// PathFromTemplate migrates a template database once per key and returns a
// private copy of it inside t.TempDir().
func PathFromTemplate(t *testing.T, key, filename string) string {
	t.Helper()

	tpl := lookup(key)
	tpl.once.Do(func() {
		tpl.path, tpl.err = buildTemplate(key)
	})
	if tpl.err != nil {
		t.Fatalf("prepare template database %q: %v", key, tpl.err)
	}

	dst := filepath.Join(t.TempDir(), filename)
	if err := cloneWithSidecars(tpl.path, dst); err != nil {
		t.Fatalf("clone template database %q: %v", key, err)
	}
	return dst
}

func lookup(key string) *template {
	mu.Lock()
	defer mu.Unlock()

	tpl, ok := templates[key]
	if !ok {
		tpl = &template{}
		templates[key] = tpl
	}
	return tpl
}

func buildTemplate(key string) (string, error) {
	dir, err := os.MkdirTemp("", fmt.Sprintf("watchbrr-%s-", sanitize(key)))
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, "template.db")
	db, err := database.New(path)
	if err != nil {
		return "", err
	}
	return path, db.Close()
}

func sanitize(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "testdb"
	}
	return unsafeKeyChars.ReplaceAllString(key, "-")
}

// cloneWithSidecars copies the main file plus any WAL and shared-memory files.
func cloneWithSidecars(src, dst string) error {
	if err := copyFile(src, dst); err != nil {
		return err
	}

	for _, suffix := range []string{"-wal", "-shm"} {
		if _, err := os.Stat(src + suffix); os.IsNotExist(err) {
			continue
		} else if err != nil {
			return err
		}
		if err := copyFile(src+suffix, dst+suffix); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package qbittorrent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHash = "3b245504cf5f11bbdbe1201cea6a6bf45aee1bc0"

type fakeWebUI struct {
	mu            sync.Mutex
	webAPIVersion string
	added         map[string]string
	filePrio      map[string]string
	started       bool
	registered    bool
	infoCalls     int
	registerAfter int
}

func (f *fakeWebUI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch strings.TrimPrefix(r.URL.Path, "/api/v2/") {
		case "auth/login":
			http.SetCookie(w, &http.Cookie{Name: "SID", Value: "session"})
			_, _ = w.Write([]byte("Ok."))
		case "app/webapiVersion":
			_, _ = w.Write([]byte(f.webAPIVersion))
		case "app/version":
			_, _ = w.Write([]byte("v5.0.2"))
		case "torrents/add":
			// multipart or urlencoded, both end up in r.Form
			_ = r.ParseMultipartForm(1 << 20)
			f.added = map[string]string{}
			for k, v := range r.Form {
				f.added[k] = v[0]
			}
			f.registered = true
			_, _ = w.Write([]byte("Ok."))
		case "torrents/files":
			_, _ = w.Write([]byte(`[{"index":0,"name":"movie.mkv","priority":0},{"index":1,"name":"sample.mkv","priority":0}]`))
		case "torrents/filePrio":
			assert.NoError(t, r.ParseForm())
			f.filePrio = map[string]string{"hash": r.Form.Get("hash"), "id": r.Form.Get("id"), "priority": r.Form.Get("priority")}
		case "torrents/start", "torrents/resume":
			f.started = true
		case "torrents/info":
			f.infoCalls++
			if !f.registered || f.infoCalls <= f.registerAfter {
				_, _ = w.Write([]byte(`[]`))
				return
			}
			_, _ = w.Write([]byte(`[{"hash":"` + testHash + `","name":"Movie","state":"stoppedDL"}]`))
		default:
			http.NotFound(w, r)
		}
	}
}

func newTestClient(t *testing.T, ui *fakeWebUI, cfg Config) *Client {
	t.Helper()

	srv := httptest.NewServer(ui.handler(t))
	t.Cleanup(srv.Close)

	cfg.Host = srv.URL
	cfg.StatusPollDelay = time.Millisecond
	c, err := NewClient(context.Background(), cfg)
	require.NoError(t, err)
	return c
}

func TestNewClientCapabilities(t *testing.T) {
	t.Parallel()

	tests := []struct {
		version string
		stopped bool
	}{
		{version: "2.11.3", stopped: true},
		{version: "2.11.0", stopped: true},
		{version: "2.9.3", stopped: false},
		{version: "garbage", stopped: false},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			t.Parallel()

			c := newTestClient(t, &fakeWebUI{webAPIVersion: tt.version}, Config{})
			assert.Equal(t, tt.stopped, c.SupportsStopped())
			assert.True(t, c.IsHealthy())
			assert.Equal(t, BackendName, c.Name())
		})
	}
}

func TestNewClientRequiresHost(t *testing.T) {
	t.Parallel()

	_, err := NewClient(context.Background(), Config{})
	require.Error(t, err)
}

func TestAddMagnetOptions(t *testing.T) {
	t.Parallel()

	t.Run("stopped on new webapi", func(t *testing.T) {
		t.Parallel()

		ui := &fakeWebUI{webAPIVersion: "2.11.2"}
		c := newTestClient(t, ui, Config{Category: "watchbrr", SavePath: "/downloads/movies"})

		id, err := c.AddMagnet(context.Background(), strings.ToUpper(testHash), "Movie 2023")
		require.NoError(t, err)
		assert.Equal(t, testHash, id)

		ui.mu.Lock()
		defer ui.mu.Unlock()
		assert.Contains(t, ui.added["urls"], "xt=urn:btih:"+testHash)
		assert.Equal(t, "watchbrr", ui.added["category"])
		assert.Equal(t, "/downloads/movies", ui.added["savepath"])
		assert.Equal(t, "true", ui.added["stopped"])
		assert.NotContains(t, ui.added, "paused")
	})

	t.Run("paused on old webapi", func(t *testing.T) {
		t.Parallel()

		ui := &fakeWebUI{webAPIVersion: "2.8.19"}
		c := newTestClient(t, ui, Config{})

		_, err := c.AddMagnet(context.Background(), testHash, "")
		require.NoError(t, err)

		ui.mu.Lock()
		defer ui.mu.Unlock()
		assert.Equal(t, "true", ui.added["paused"])
		assert.NotContains(t, ui.added, "stopped")
		assert.NotContains(t, ui.added, "category")
	})

	t.Run("blank hash", func(t *testing.T) {
		t.Parallel()

		c := newTestClient(t, &fakeWebUI{webAPIVersion: "2.11.2"}, Config{})
		_, err := c.AddMagnet(context.Background(), " ", "")
		require.Error(t, err)
	})
}

func TestSelectFilesAndStatus(t *testing.T) {
	t.Parallel()

	ui := &fakeWebUI{webAPIVersion: "2.11.2", registerAfter: 1}
	c := newTestClient(t, ui, Config{})

	id, err := c.AddMagnet(context.Background(), testHash, "Movie")
	require.NoError(t, err)

	require.NoError(t, c.SelectFiles(context.Background(), id, "all"))
	require.Error(t, c.SelectFiles(context.Background(), id, "0,1"))

	state, err := c.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "stoppedDL", state)

	ui.mu.Lock()
	defer ui.mu.Unlock()
	assert.Equal(t, map[string]string{"hash": testHash, "id": "0|1", "priority": "1"}, ui.filePrio)
	assert.True(t, ui.started)
	assert.Equal(t, 2, ui.infoCalls)
}

func TestStatusNotFound(t *testing.T) {
	t.Parallel()

	ui := &fakeWebUI{webAPIVersion: "2.11.2"}
	c := newTestClient(t, ui, Config{StatusAttempts: 3})

	_, err := c.Status(context.Background(), testHash)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTorrentNotFound)

	ui.mu.Lock()
	defer ui.mu.Unlock()
	assert.Equal(t, 3, ui.infoCalls)
}

func TestGetAppInfoCaches(t *testing.T) {
	t.Parallel()

	ui := &fakeWebUI{webAPIVersion: "2.9.0"}
	c := newTestClient(t, ui, Config{})
	assert.False(t, c.SupportsStopped())

	ui.mu.Lock()
	ui.webAPIVersion = "2.11.4"
	ui.mu.Unlock()

	info, err := c.GetAppInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v5.0.2", info.Version)
	assert.Equal(t, "2.11.4", info.WebAPIVersion)
	assert.True(t, c.SupportsStopped())
	assert.Equal(t, "2.11.4", c.WebAPIVersion())
}

func TestFilteredWriter(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	fw := &filteredWriter{writer: &sb}

	n, err := fw.Write([]byte("http: Unsolicited response received on idle HTTP channel starting with \"\"\n"))
	require.NoError(t, err)
	assert.Positive(t, n)
	_, _ = fw.Write([]byte("keep me\n"))

	assert.Equal(t, "keep me\n", sb.String())
}

// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package realdebrid

import (
	"fmt"
	"time"
)

// Torrent statuses reported by the API.
const (
	StatusMagnetError           = "magnet_error"
	StatusMagnetConversion      = "magnet_conversion"
	StatusWaitingFilesSelection = "waiting_files_selection"
	StatusQueued                = "queued"
	StatusDownloading           = "downloading"
	StatusDownloaded            = "downloaded"
	StatusError                 = "error"
	StatusVirus                 = "virus"
	StatusCompressing           = "compressing"
	StatusUploading             = "uploading"
	StatusDead                  = "dead"
)

type AddMagnetResponse struct {
	ID  string `json:"id"`
	URI string `json:"uri"`
}

type TorrentFile struct {
	ID       int    `json:"id"`
	Path     string `json:"path"`
	Bytes    int64  `json:"bytes"`
	Selected int    `json:"selected"`
}

type TorrentInfo struct {
	ID       string        `json:"id"`
	Filename string        `json:"filename"`
	Hash     string        `json:"hash"`
	Bytes    int64         `json:"bytes"`
	Host     string        `json:"host"`
	Progress float64       `json:"progress"`
	Status   string        `json:"status"`
	Added    time.Time     `json:"added"`
	Files    []TorrentFile `json:"files,omitempty"`
	Links    []string      `json:"links"`
	Seeders  int           `json:"seeders,omitempty"`
}

// Torrent is an entry of the user's torrent list.
type Torrent struct {
	ID       string    `json:"id"`
	Filename string    `json:"filename"`
	Hash     string    `json:"hash"`
	Bytes    int64     `json:"bytes"`
	Progress float64   `json:"progress"`
	Status   string    `json:"status"`
	Added    time.Time `json:"added"`
}

type User struct {
	ID         int       `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Points     int       `json:"points"`
	Type       string    `json:"type"`
	Premium    int       `json:"premium"`
	Expiration time.Time `json:"expiration"`
}

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       int    `json:"error_code"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("real-debrid: status %d", e.StatusCode)
	}
	return fmt.Sprintf("real-debrid: status %d: %s (code %d)", e.StatusCode, e.Message, e.Code)
}

// Temporary reports whether the request may succeed when retried.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

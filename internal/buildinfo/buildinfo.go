// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package buildinfo

import (
	"encoding/json"
	"fmt"
	"runtime"
)

// Set via -ldflags at release time.
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// UserAgent is sent with every outbound request.
var UserAgent string

func init() {
	UserAgent = fmt.Sprintf("watchbrr/%s (%s %s)", Version, runtime.GOOS, runtime.GOARCH)
}

type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

func Get() Info {
	return Info{Version: Version, Commit: Commit, Date: Date}
}

func String() string {
	return fmt.Sprintf("Version: %s\nCommit: %s\nBuild date: %s\n", Version, Commit, Date)
}

func JSON() ([]byte, error) {
	return json.Marshal(Get())
}

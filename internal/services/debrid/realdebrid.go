// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package debrid

import (
	"context"

	"github.com/autobrr/watchbrr/pkg/realdebrid"
)

const RealDebridName = "realdebrid"

// RealDebrid adapts the Real-Debrid REST client to Backend.
type RealDebrid struct {
	client *realdebrid.Client
}

func NewRealDebrid(client *realdebrid.Client) *RealDebrid {
	return &RealDebrid{client: client}
}

func (r *RealDebrid) Name() string { return RealDebridName }

func (r *RealDebrid) AddMagnet(ctx context.Context, hash, _ string) (string, error) {
	resp, err := r.client.AddMagnet(ctx, hash)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (r *RealDebrid) SelectFiles(ctx context.Context, id, selector string) error {
	return r.client.SelectFiles(ctx, id, selector)
}

func (r *RealDebrid) Status(ctx context.Context, id string) (string, error) {
	info, err := r.client.TorrentInfo(ctx, id)
	if err != nil {
		return "", err
	}
	return info.Status, nil
}

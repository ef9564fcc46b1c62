// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultMinRequestInterval = time.Second

// RateLimitWaitError is returned when honouring the limit would exceed MaxWait.
type RateLimitWaitError struct {
	Indexer string
	Wait    time.Duration
	MaxWait time.Duration
}

func (e *RateLimitWaitError) Error() string {
	return fmt.Sprintf("indexer %s blocked by rate limit: requires %s wait but maximum allowed is %s", e.Indexer, e.Wait, e.MaxWait)
}

func (e *RateLimitWaitError) Is(target error) bool {
	_, ok := target.(*RateLimitWaitError)
	return ok
}

type indexerRateState struct {
	lastRequest   time.Time
	cooldownUntil time.Time
}

// RateLimiter spaces requests per indexer name.
type RateLimiter struct {
	mu          sync.Mutex
	minInterval time.Duration
	maxWait     time.Duration
	states      map[string]*indexerRateState

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// NewRateLimiter builds a limiter. maxWait <= 0 waits as long as needed.
func NewRateLimiter(minInterval, maxWait time.Duration) *RateLimiter {
	if minInterval <= 0 {
		minInterval = defaultMinRequestInterval
	}
	return &RateLimiter{
		minInterval: minInterval,
		maxWait:     maxWait,
		states:      make(map[string]*indexerRateState),
		now:         time.Now,
		after:       time.After,
	}
}

// BeforeRequest blocks until the indexer may be queried again.
func (r *RateLimiter) BeforeRequest(ctx context.Context, indexer string) error {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		now := r.now()
		wait := r.computeWaitLocked(indexer, now)
		if wait <= 0 {
			r.getStateLocked(indexer).lastRequest = now
			return nil
		}

		if r.maxWait > 0 && wait > r.maxWait {
			return &RateLimitWaitError{Indexer: indexer, Wait: wait, MaxWait: r.maxWait}
		}

		ch := r.after(wait)
		r.mu.Unlock()
		select {
		case <-ctx.Done():
			r.mu.Lock()
			return ctx.Err()
		case <-ch:
			r.mu.Lock()
		}
	}
}

// SetCooldown blocks the indexer until the given time, for example after a 429.
func (r *RateLimiter) SetCooldown(indexer string, until time.Time) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	state := r.getStateLocked(indexer)
	if until.After(state.cooldownUntil) {
		state.cooldownUntil = until
	}
}

// IsInCooldown checks the cooldown without blocking.
func (r *RateLimiter) IsInCooldown(indexer string) (bool, time.Time) {
	if r == nil {
		return false, time.Time{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	state := r.getStateLocked(indexer)
	if state.cooldownUntil.After(r.now()) {
		return true, state.cooldownUntil
	}
	return false, time.Time{}
}

// wait is BeforeRequest plus a log line when a cooldown is what blocks.
func (r *RateLimiter) wait(ctx context.Context, indexer string) error {
	if cooling, until := r.IsInCooldown(indexer); cooling {
		log.Debug().Str("indexer", indexer).Time("until", until).Msg("indexer: waiting for rate limit cooldown")
	}
	return r.BeforeRequest(ctx, indexer)
}

func (r *RateLimiter) computeWaitLocked(indexer string, now time.Time) time.Duration {
	state := r.getStateLocked(indexer)

	var wait time.Duration
	if state.cooldownUntil.After(now) {
		wait = state.cooldownUntil.Sub(now)
	}
	if !state.lastRequest.IsZero() {
		if next := state.lastRequest.Add(r.minInterval); next.After(now) {
			wait = max(wait, next.Sub(now))
		}
	}
	return wait
}

func (r *RateLimiter) getStateLocked(indexer string) *indexerRateState {
	state, ok := r.states[indexer]
	if !ok {
		state = &indexerRateState{}
		r.states[indexer] = state
	}
	return state
}

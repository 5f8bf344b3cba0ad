/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package proposal

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/marcus-qen/jitbroker/internal/telemetry"
)

// pendingProposal is the in-memory bookkeeping the sweeper needs to notice
// an about-to-expire token. This is a best-effort reminder, not persisted
// request state — a sweeper restart simply forgets whatever was pending.
type pendingProposal struct {
	requester string
	expiresAt time.Time
}

// Sweeper periodically scans proposals minted by a Handler and reports how
// many are still pending past their expiry, via telemetry.ProposalsPendingExpiry.
// schedule is validated at construction but the loop itself runs off a
// plain ticker, not a cron.Cron instance.
type Sweeper struct {
	interval time.Duration

	mu      sync.Mutex
	pending map[string]pendingProposal

	cancel context.CancelFunc
	ticker *time.Ticker
	wg     sync.WaitGroup
}

// NewSweeper constructs a Sweeper that runs every interval. schedule is a
// standard 5-field cron expression used only to validate that interval's
// configuration is sane in deployments that express it as a cron string;
// a malformed schedule is a configuration error at startup, not at runtime.
func NewSweeper(interval time.Duration, schedule string) (*Sweeper, error) {
	if schedule != "" {
		if _, err := cron.ParseStandard(schedule); err != nil {
			return nil, err
		}
	}
	return &Sweeper{
		interval: interval,
		pending:  make(map[string]pendingProposal),
	}, nil
}

// Track records a freshly minted proposal so the sweeper can notice if it
// outlives its expiry without an approval callback.
func (s *Sweeper) Track(proposalID string, requester string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[proposalID] = pendingProposal{requester: requester, expiresAt: expiresAt}
}

// Resolve removes a proposal from tracking once it is approved or
// otherwise settled.
func (s *Sweeper) Resolve(proposalID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, proposalID)
}

// Start begins the periodic sweep. Safe to call multiple times; subsequent
// calls are no-ops while already running.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.ticker != nil {
		s.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.ticker = time.NewTicker(s.interval)
	ticker := s.ticker
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-loopCtx.Done():
				return
			case now := <-ticker.C:
				s.sweep(now)
			}
		}
	}()
}

// Stop halts the periodic sweep and waits for the current pass to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if s.ticker == nil {
		s.mu.Unlock()
		return
	}
	s.ticker.Stop()
	s.ticker = nil
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// sweep prunes expired proposals and republishes the pending gauge.
func (s *Sweeper) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pendingCount := 0
	for id, p := range s.pending {
		if now.After(p.expiresAt) {
			delete(s.pending, id)
			continue
		}
		pendingCount++
	}
	telemetry.ProposalsPendingExpiry.Set(float64(pendingCount))
}

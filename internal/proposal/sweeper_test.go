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
	"testing"
	"time"
)

func TestNewSweeperRejectsMalformedSchedule(t *testing.T) {
	if _, err := NewSweeper(time.Minute, "not a cron expression"); err == nil {
		t.Fatal("expected an error for a malformed cron schedule")
	}
}

func TestNewSweeperAcceptsValidSchedule(t *testing.T) {
	if _, err := NewSweeper(time.Minute, "*/15 * * * *"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSweepPrunesExpiredAndKeepsLive(t *testing.T) {
	s, err := NewSweeper(time.Minute, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	now := time.Now()
	s.Track("expired", "user-a@example.com", now.Add(-time.Minute))
	s.Track("live", "user-b@example.com", now.Add(time.Hour))

	s.sweep(now)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending["expired"]; ok {
		t.Fatal("expected expired proposal to be pruned")
	}
	if _, ok := s.pending["live"]; !ok {
		t.Fatal("expected live proposal to remain tracked")
	}
}

func TestResolveRemovesProposal(t *testing.T) {
	s, err := NewSweeper(time.Minute, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Track("req-1", "user@example.com", time.Now().Add(time.Hour))
	s.Resolve("req-1")

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending["req-1"]; ok {
		t.Fatal("expected resolved proposal to be removed")
	}
}

func TestStartStopIsSafeToCallRepeatedly(t *testing.T) {
	s, err := NewSweeper(10*time.Millisecond, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx)
	s.Start(ctx) // second call is a no-op
	time.Sleep(25 * time.Millisecond)
	s.Stop()
	s.Stop() // second call is a no-op
}

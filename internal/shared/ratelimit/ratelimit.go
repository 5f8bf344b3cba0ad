/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package ratelimit throttles how often a single user may activate
// entitlements, and how many of their activations may be in flight at
// once. It enforces both a cluster-wide ceiling and a per-user ceiling,
// on both the concurrency and hourly-rate axes, independent of the
// activation type (self-approval or MPA).
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// Config configures rate limiting.
type Config struct {
	// MaxConcurrentCluster is the broker-wide limit on in-flight activations.
	MaxConcurrentCluster int

	// MaxConcurrentPerUser is the per-user limit on in-flight activations.
	MaxConcurrentPerUser int

	// MaxActivationsPerHourCluster is the broker-wide limit on activations
	// started per rolling hour.
	MaxActivationsPerHourCluster int

	// MaxActivationsPerHourPerUser is the per-user limit on activations
	// started per rolling hour.
	MaxActivationsPerHourPerUser int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentCluster:         10,
		MaxConcurrentPerUser:         2,
		MaxActivationsPerHourCluster: 200,
		MaxActivationsPerHourPerUser: 30,
	}
}

// Decision represents whether an activation is allowed and why.
type Decision struct {
	Allowed bool
	Reason  string
}

// Limiter tracks activation concurrency and rate per user.
type Limiter struct {
	config Config

	mu sync.Mutex

	// concurrent tracks activations currently in flight, keyed by user.
	concurrent map[string]int
	totalConc  int

	// history tracks started activations for rate calculation.
	history []activationRecord
}

type activationRecord struct {
	userKey string
	time    time.Time
}

// NewLimiter creates a rate limiter.
func NewLimiter(cfg Config) *Limiter {
	return &Limiter{
		config:     cfg,
		concurrent: make(map[string]int),
	}
}

// Allow checks whether a new activation for userKey is permitted.
func (l *Limiter) Allow(userKey string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.pruneHistory(now)

	if l.concurrent[userKey] >= l.config.MaxConcurrentPerUser {
		return Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("per-user concurrency limit reached (%d/%d)", l.concurrent[userKey], l.config.MaxConcurrentPerUser),
		}
	}

	if l.totalConc >= l.config.MaxConcurrentCluster {
		return Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("cluster-wide concurrency limit reached (%d/%d)", l.totalConc, l.config.MaxConcurrentCluster),
		}
	}

	userCount := l.countUser(userKey, now)
	if userCount >= l.config.MaxActivationsPerHourPerUser {
		return Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("per-user rate limit reached (%d activations in last hour, max %d)", userCount, l.config.MaxActivationsPerHourPerUser),
		}
	}

	totalCount := len(l.history)
	if totalCount >= l.config.MaxActivationsPerHourCluster {
		return Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("cluster-wide rate limit reached (%d activations in last hour, max %d)", totalCount, l.config.MaxActivationsPerHourCluster),
		}
	}

	return Decision{Allowed: true}
}

// RecordStart marks an activation as started for userKey.
func (l *Limiter) RecordStart(userKey string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.concurrent[userKey]++
	l.totalConc++
	l.history = append(l.history, activationRecord{userKey: userKey, time: time.Now()})
}

// RecordComplete marks an activation as finished for userKey.
func (l *Limiter) RecordComplete(userKey string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.concurrent[userKey] > 0 {
		l.concurrent[userKey]--
	}
	if l.totalConc > 0 {
		l.totalConc--
	}
}

// Stats returns current limiter state (for metrics/status).
type Stats struct {
	ConcurrentTotal  int
	ConcurrentByUser map[string]int
	ActivationsLastHour int
}

// GetStats returns current limiter statistics.
func (l *Limiter) GetStats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneHistory(time.Now())

	byUser := make(map[string]int, len(l.concurrent))
	for k, v := range l.concurrent {
		byUser[k] = v
	}

	return Stats{
		ConcurrentTotal:     l.totalConc,
		ConcurrentByUser:    byUser,
		ActivationsLastHour: len(l.history),
	}
}

// pruneHistory removes records older than 1 hour.
func (l *Limiter) pruneHistory(now time.Time) {
	cutoff := now.Add(-1 * time.Hour)
	i := 0
	for i < len(l.history) && l.history[i].time.Before(cutoff) {
		i++
	}
	if i > 0 {
		l.history = l.history[i:]
	}
}

// countUser counts how many activations this user has in the history window.
func (l *Limiter) countUser(userKey string, now time.Time) int {
	count := 0
	cutoff := now.Add(-1 * time.Hour)
	for _, r := range l.history {
		if r.userKey == userKey && !r.time.Before(cutoff) {
			count++
		}
	}
	return count
}

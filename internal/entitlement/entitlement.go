/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package entitlement defines the RequesterPrivilege/ReviewerPrivilege value
// objects and the EntitlementSet merge semantics shared by both entitlement
// repository variants and the catalog.
package entitlement

import (
	"sort"
	"time"

	"github.com/marcus-qen/jitbroker/internal/activation"
	"github.com/marcus-qen/jitbroker/internal/jitid"
)

// Status is the lifecycle state of a privilege relative to now.
type Status string

const (
	// Available means the holder may request activation.
	Available Status = "AVAILABLE"
	// Active means the privilege is currently provisioned (validity span
	// straddles now).
	Active Status = "ACTIVE"
	// Expired means a prior provisioning window has ended; retained for UI.
	Expired Status = "EXPIRED"
)

// Window is a half-open activation validity span [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// IsCurrent reports whether now falls inside [Start, End).
func (w Window) IsCurrent(now time.Time) bool {
	return now.Before(w.End)
}

// Privilege is the (ProjectRole, displayName, activationType, status)
// tuple. Window is populated when Status is Active or Expired.
type Privilege struct {
	Role           jitid.ProjectRole
	DisplayName    string
	ActivationType activation.Type
	ForReviewer    bool
	Status         Status
	Window         Window
}

// Set is the three disjoint collections an entitlement fetch produces,
// keyed by the stable ProjectRole id, plus accumulated warnings.
type Set struct {
	available          map[string]Privilege
	currentActivations map[string]Privilege
	expiredActivations map[string]Privilege
	warnings           []string
}

// NewSet returns an empty entitlement set ready for accumulation.
func NewSet() *Set {
	return &Set{
		available:          map[string]Privilege{},
		currentActivations: map[string]Privilege{},
		expiredActivations: map[string]Privilege{},
	}
}

// AddWarning records a non-fatal classification or lookup failure.
func (s *Set) AddWarning(w string) {
	if w == "" {
		return
	}
	s.warnings = append(s.warnings, w)
}

// AddAvailable inserts an AVAILABLE candidate privilege, applying the merge
// rule: at most one entry per role; when both a JIT (SelfApproval) and an
// MPA (PeerApproval/ExternalApproval) candidate exist for the same role,
// the JIT variant is retained.
func (s *Set) AddAvailable(p Privilege) {
	p.Status = Available
	key := p.Role.Id()
	existing, ok := s.available[key]
	if !ok {
		s.available[key] = p
		return
	}
	if existing.ActivationType.Variant != activation.SelfApproval && p.ActivationType.Variant == activation.SelfApproval {
		s.available[key] = p
	}
	// Otherwise keep the existing entry: either it's already JIT, or both
	// are MPA variants and the first one seen wins.
}

// AddActivation records an activation window for a role, classified as
// current or expired relative to now. Duplicate windows for the same role
// in the same bucket are resolved by keeping the latest-ending one.
func (s *Set) AddActivation(role jitid.ProjectRole, window Window, now time.Time) {
	key := role.Id()
	p := Privilege{Role: role, DisplayName: role.Role, Window: window}
	if window.IsCurrent(now) {
		p.Status = Active
		if existing, ok := s.currentActivations[key]; !ok || window.End.After(existing.Window.End) {
			s.currentActivations[key] = p
		}
		return
	}
	p.Status = Expired
	if existing, ok := s.expiredActivations[key]; !ok || window.End.After(existing.Window.End) {
		s.expiredActivations[key] = p
	}
}

// Merge folds other into s in place, applying the same merge rules as the
// single-item accumulators above, and returns s for chaining.
func (s *Set) Merge(other *Set) *Set {
	if other == nil {
		return s
	}
	for _, p := range other.available {
		s.AddAvailable(p)
	}
	for key, p := range other.currentActivations {
		if existing, ok := s.currentActivations[key]; !ok || p.Window.End.After(existing.Window.End) {
			s.currentActivations[key] = p
		}
	}
	for key, p := range other.expiredActivations {
		if existing, ok := s.expiredActivations[key]; !ok || p.Window.End.After(existing.Window.End) {
			s.expiredActivations[key] = p
		}
	}
	s.warnings = append(s.warnings, other.warnings...)
	return s
}

// Available returns the available privileges sorted by ProjectRole id.
func (s *Set) Available() []Privilege { return sortedValues(s.available) }

// CurrentActivations returns current activations sorted by ProjectRole id.
func (s *Set) CurrentActivations() []Privilege { return sortedValues(s.currentActivations) }

// ExpiredActivations returns expired activations sorted by ProjectRole id.
func (s *Set) ExpiredActivations() []Privilege { return sortedValues(s.expiredActivations) }

// Warnings returns the accumulated classification/lookup warnings in the
// order they were recorded.
func (s *Set) Warnings() []string { return s.warnings }

// IsEmpty reports whether the set carries no privileges and no warnings.
func (s *Set) IsEmpty() bool {
	return len(s.available) == 0 && len(s.currentActivations) == 0 &&
		len(s.expiredActivations) == 0 && len(s.warnings) == 0
}

func sortedValues(m map[string]Privilege) []Privilege {
	out := make([]Privilege, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Role.Id() < out[j].Role.Id() })
	return out
}

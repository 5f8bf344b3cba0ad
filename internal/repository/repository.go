/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package repository defines the shared entitlement-repository contract
// and the wire shapes common to both backing implementations. The
// concrete variants live in the analyzer and assetinventory subpackages.
package repository

import (
	"context"
	"sort"
	"strings"

	"github.com/marcus-qen/jitbroker/internal/activation"
	"github.com/marcus-qen/jitbroker/internal/entitlement"
	"github.com/marcus-qen/jitbroker/internal/jitid"
)

// EntitlementRepository is the boundary the catalog depends on — either
// backing implementation satisfies it identically from the catalog's
// point of view.
type EntitlementRepository interface {
	// FindProjectsWithEntitlements returns the sorted set of projects under
	// which user holds at least one eligibility or unconditional binding.
	FindProjectsWithEntitlements(ctx context.Context, user jitid.UserId) ([]jitid.ProjectId, error)

	// FindEntitlements returns the EntitlementSet for user scoped to
	// project, restricted to the given activation types (nil/empty means
	// all types).
	FindEntitlements(ctx context.Context, user jitid.UserId, project jitid.ProjectId, types []activation.Type) (*entitlement.Set, error)

	// FindEntitlementHolders returns the sorted set of users who hold a
	// matching eligibility for role under actType, excluding no one — the
	// catalog is responsible for excluding the caller.
	FindEntitlementHolders(ctx context.Context, role jitid.ProjectRole, actType activation.Type) ([]jitid.UserId, error)
}

// Condition is the wire shape of a single IAM condition (title + CEL-ish
// expression) as returned by either backing policy source.
type Condition struct {
	Title      string
	Expression string
}

// Binding is one (role, members, optional condition) triple attached to a
// resource.
type Binding struct {
	Role      string
	Members   []string
	Condition *Condition
}

// IdentityList enumerates the principals an analysis result actually
// matched, with group membership already expanded by the upstream
// analyzer — this repository layer never expands groups itself in the
// analyzer variant.
type IdentityList struct {
	Users           []string
	Groups          []string
	ServiceAccounts []string
	// GroupMembers maps a matched group's email to its expanded direct
	// user members, as resolved by the analyzer on the caller's behalf.
	GroupMembers map[string][]string
}

// ExpandedUsers returns every user email reachable from the identity
// list: directly matched users, plus the expanded members of every
// matched group.
func (l *IdentityList) ExpandedUsers() []string {
	if l == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	add := func(email string) {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" {
			return
		}
		if _, ok := seen[email]; ok {
			return
		}
		seen[email] = struct{}{}
		out = append(out, email)
	}
	for _, u := range l.Users {
		add(u)
	}
	for _, g := range l.Groups {
		for _, u := range l.GroupMembers[g] {
			add(u)
		}
	}
	return out
}

// Verdict is the per-resource evaluation outcome in an access-control list
// entry.
type Verdict string

const (
	VerdictConditional Verdict = "CONDITIONAL"
	VerdictTrue        Verdict = "TRUE"
	VerdictFalse       Verdict = "FALSE"
)

// ACLEntry is one enumerated effective resource with its evaluation
// verdict, used to discover inherited bindings on folder/org-level
// analysis results.
type ACLEntry struct {
	FullResourceName string
	Verdict          Verdict
}

// projectResourceMarker is the path segment that identifies a project
// within a full resource name, shared by both backing variants.
const projectResourceMarker = "/projects/"

// ExtractProjectId pulls the trailing project id out of a full resource
// name of the form ".../projects/{id}"; ok is false if the resource isn't
// project-shaped.
func ExtractProjectId(fullResourceName string) (jitid.ProjectId, bool) {
	idx := strings.LastIndex(fullResourceName, projectResourceMarker)
	if idx < 0 {
		return jitid.ProjectId{}, false
	}
	id := fullResourceName[idx+len(projectResourceMarker):]
	if id == "" || strings.Contains(id, "/") {
		return jitid.ProjectId{}, false
	}
	return jitid.NewProjectId(id), true
}

// SortUserIds returns a sorted, deduplicated copy of ids.
func SortUserIds(ids []jitid.UserId) []jitid.UserId {
	seen := make(map[string]struct{}, len(ids))
	out := make([]jitid.UserId, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id.String()]; ok {
			continue
		}
		seen[id.String()] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

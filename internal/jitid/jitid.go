/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package jitid defines the identifier and value-object types shared across
// the entitlement catalog and activation engine: project/user/group
// identifiers, role bindings, and the stable ProjectRole id.
package jitid

import (
	"fmt"
	"strings"

	"github.com/marcus-qen/jitbroker/internal/jiterrors"
)

// orgResourcePrefix is the canonical prefix used to build a project's full
// resource path. Real deployments override this via config; it is a plain
// constant here because the transport/backend that resolves organization
// scope is out of scope for the core.
const orgResourcePrefix = "//cloudresourcemanager.googleapis.com/projects/"

// ProjectId is an opaque project slug.
type ProjectId struct {
	id string
}

// NewProjectId constructs a ProjectId from its slug.
func NewProjectId(id string) ProjectId {
	return ProjectId{id: id}
}

// String returns the bare project slug.
func (p ProjectId) String() string { return p.id }

// FullResourceName returns the canonical full-resource path for the project.
func (p ProjectId) FullResourceName() string {
	return orgResourcePrefix + p.id
}

// IsZero reports whether this is the zero-value ProjectId.
func (p ProjectId) IsZero() bool { return p.id == "" }

// principalKind distinguishes the lexical prefix used in policy membership
// strings ("user:", "group:", "serviceAccount:").
type principalKind int

const (
	kindUser principalKind = iota
	kindGroup
	kindServiceAccount
)

// principal is the shared representation behind UserId and GroupId:
// equality is case-insensitive on the local/host parts after normalization
// to lowercase, done once at construction.
type principal struct {
	kind  principalKind
	email string // always lowercase
}

func newPrincipal(kind principalKind, email string) principal {
	return principal{kind: kind, email: strings.ToLower(strings.TrimSpace(email))}
}

// UserId is an email-shaped identifier for an individual user.
type UserId struct{ p principal }

// NewUserId constructs a UserId, normalizing the email to lowercase.
func NewUserId(email string) UserId {
	return UserId{p: newPrincipal(kindUser, email)}
}

// String returns the normalized email.
func (u UserId) String() string { return u.p.email }

// Member returns the policy membership string form, e.g. "user:a@b.com".
func (u UserId) Member() string { return "user:" + u.p.email }

// Equal reports case-insensitive equality (both sides are already
// normalized at construction, so this is a plain comparison).
func (u UserId) Equal(other UserId) bool { return u.p.email == other.p.email }

// GroupId is an email-shaped identifier for a group.
type GroupId struct{ p principal }

// NewGroupId constructs a GroupId, normalizing the email to lowercase.
func NewGroupId(email string) GroupId {
	return GroupId{p: newPrincipal(kindGroup, email)}
}

func (g GroupId) String() string { return g.p.email }

func (g GroupId) Member() string { return "group:" + g.p.email }

func (g GroupId) Equal(other GroupId) bool { return g.p.email == other.p.email }

// ParseMember parses a policy membership string of the form
// "user:x@y.com", "group:x@y.com", or "serviceAccount:x@y.com" and reports
// which variant it is. Unrecognized prefixes return ok=false.
func ParseMember(member string) (email string, kind string, ok bool) {
	switch {
	case strings.HasPrefix(member, "user:"):
		return strings.ToLower(strings.TrimPrefix(member, "user:")), "user", true
	case strings.HasPrefix(member, "group:"):
		return strings.ToLower(strings.TrimPrefix(member, "group:")), "group", true
	case strings.HasPrefix(member, "serviceAccount:"):
		return strings.ToLower(strings.TrimPrefix(member, "serviceAccount:")), "serviceAccount", true
	default:
		return "", "", false
	}
}

// RoleBinding pairs a scope (project) with an opaque role string.
type RoleBinding struct {
	Scope ProjectId
	Role  string
}

// ProjectRole is the triple (projectId, role, optional resource
// sub-condition) that identifies an entitlement.
type ProjectRole struct {
	ProjectId         ProjectId
	Role              string
	ResourceCondition string // empty if none
}

// Id returns the stable string id "iam:{projectId}:{role}". Note the
// resource sub-condition is deliberately excluded from the id:
// two ProjectRoles that differ only by resource condition still identify
// "the same role on the same project" for catalog/dedup purposes.
func (pr ProjectRole) Id() string {
	return fmt.Sprintf("iam:%s:%s", pr.ProjectId.String(), pr.Role)
}

func (pr ProjectRole) String() string { return pr.Id() }

// ParseProjectRole is the inverse of ProjectRole.Id. It fails with a
// MalformedRequest error on anything that isn't exactly "iam:{project}:{role}".
func ParseProjectRole(id string) (ProjectRole, error) {
	const prefix = "iam:"
	if !strings.HasPrefix(id, prefix) {
		return ProjectRole{}, jiterrors.New(jiterrors.MalformedRequest, fmt.Sprintf("malformed project role id %q: missing %q prefix", id, prefix))
	}
	rest := id[len(prefix):]
	idx := strings.Index(rest, ":")
	if idx <= 0 || idx == len(rest)-1 {
		return ProjectRole{}, jiterrors.New(jiterrors.MalformedRequest, fmt.Sprintf("malformed project role id %q", id))
	}
	project := rest[:idx]
	role := rest[idx+1:]
	if project == "" || role == "" {
		return ProjectRole{}, jiterrors.New(jiterrors.MalformedRequest, fmt.Sprintf("malformed project role id %q", id))
	}
	return ProjectRole{ProjectId: NewProjectId(project), Role: role}, nil
}

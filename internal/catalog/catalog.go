/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package catalog implements the user-facing entitlement façade: listing
// scopes and privileges, enumerating eligible reviewers, and
// validating/authorizing activation requests ahead of provisioning.
package catalog

import (
	"context"
	"sort"
	"time"

	"github.com/go-logr/logr"

	"github.com/marcus-qen/jitbroker/internal/activation"
	"github.com/marcus-qen/jitbroker/internal/entitlement"
	"github.com/marcus-qen/jitbroker/internal/jiterrors"
	"github.com/marcus-qen/jitbroker/internal/jitid"
	"github.com/marcus-qen/jitbroker/internal/repository"
)

// ResourceManager is the external project-search boundary used by
// listScopes when a search query is configured.
type ResourceManager interface {
	SearchProjectIds(ctx context.Context, query string) ([]jitid.ProjectId, error)
}

// Options configures catalog-wide bounds.
type Options struct {
	OrgScope              string
	ProjectSearchQuery    string
	MinActivationDuration time.Duration
	MaxActivationDuration time.Duration
	MinReviewers          int
	MaxReviewers          int
}

// Request is the record-like shape both the catalog and the activator
// operate on: it is never mutated once built.
type Request struct {
	Id             string
	RequestingUser jitid.UserId
	Roles          []jitid.ProjectRole
	ActivationType activation.Type
	Reviewers      []jitid.UserId
	Justification  string
	StartTime      time.Time
	Duration       time.Duration
}

// Catalog is the user-facing façade over an EntitlementRepository.
type Catalog struct {
	Repository      repository.EntitlementRepository
	ResourceManager ResourceManager
	Options         Options
	// Logger defaults to logr.Discard() when unset.
	Logger logr.Logger
}

// New constructs a Catalog.
func New(repo repository.EntitlementRepository, rm ResourceManager, opts Options) *Catalog {
	return &Catalog{Repository: repo, ResourceManager: rm, Options: opts}
}

func (c *Catalog) logger() logr.Logger {
	if c.Logger.GetSink() == nil {
		return logr.Discard()
	}
	return c.Logger
}

// requesterActivationTypes are the three activation types a requester can
// hold eligibility for.
func requesterActivationTypes() []activation.Type {
	return []activation.Type{activation.Self(), activation.Peer(""), activation.External("")}
}

// ListScopes delegates to the resource manager search when a query is
// configured, else to the repository; the result is always sorted.
func (c *Catalog) ListScopes(ctx context.Context, user jitid.UserId) ([]jitid.ProjectId, error) {
	var (
		ids []jitid.ProjectId
		err error
	)
	if c.Options.ProjectSearchQuery != "" {
		ids, err = c.ResourceManager.SearchProjectIds(ctx, c.Options.ProjectSearchQuery)
	} else {
		ids, err = c.Repository.FindProjectsWithEntitlements(ctx, user)
	}
	if err != nil {
		return nil, err
	}
	out := append([]jitid.ProjectId(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

// ListRequesterPrivileges returns every activation type, both AVAILABLE and
// ACTIVE statuses, excluding reviewer-only grants.
func (c *Catalog) ListRequesterPrivileges(ctx context.Context, user jitid.UserId, project jitid.ProjectId) (*entitlement.Set, error) {
	set, err := c.Repository.FindEntitlements(ctx, user, project, requesterActivationTypes())
	if err != nil {
		return nil, err
	}
	return filterReviewerPrivileges(set, false), nil
}

// ListReviewerPrivileges mirrors ListRequesterPrivileges but for the
// reviewer-only grants (reviewerPrivilege marker).
func (c *Catalog) ListReviewerPrivileges(ctx context.Context, user jitid.UserId, project jitid.ProjectId) (*entitlement.Set, error) {
	set, err := c.Repository.FindEntitlements(ctx, user, project, []activation.Type{activation.External("")})
	if err != nil {
		return nil, err
	}
	return filterReviewerPrivileges(set, true), nil
}

func filterReviewerPrivileges(set *entitlement.Set, wantReviewer bool) *entitlement.Set {
	filtered := entitlement.NewSet()
	for _, p := range set.Available() {
		if p.ForReviewer == wantReviewer {
			filtered.AddAvailable(p)
		}
	}
	for _, p := range set.CurrentActivations() {
		filtered.AddActivation(p.Role, p.Window, p.Window.Start)
	}
	for _, p := range set.ExpiredActivations() {
		filtered.AddActivation(p.Role, p.Window, p.Window.End.Add(time.Second))
	}
	for _, w := range set.Warnings() {
		filtered.AddWarning(w)
	}
	return filtered
}

// ListReviewers lists the users holding a reviewer privilege for role under
// activationType, excluding the requesting user itself.
func (c *Catalog) ListReviewers(ctx context.Context, user jitid.UserId, role jitid.ProjectRole, activationType activation.Type) ([]jitid.UserId, error) {
	if err := c.VerifyUserCanActivateRequesterPrivileges(ctx, user, role.ProjectId, activationType, []jitid.ProjectRole{role}); err != nil {
		return nil, err
	}
	holders, err := c.Repository.FindEntitlementHolders(ctx, role, activationType)
	if err != nil {
		return nil, err
	}
	out := make([]jitid.UserId, 0, len(holders))
	for _, h := range holders {
		if h.Equal(user) {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

// ValidateRequest applies the structural checks — duration and
// reviewer-count bounds, plus "reviewer must not be the requester".
func (c *Catalog) ValidateRequest(req Request) error {
	if req.Duration < c.Options.MinActivationDuration || req.Duration > c.Options.MaxActivationDuration {
		return jiterrors.New(jiterrors.MalformedRequest, "activation duration out of configured bounds")
	}
	if req.ActivationType.RequiresReviewers() {
		if len(req.Reviewers) < c.Options.MinReviewers || len(req.Reviewers) > c.Options.MaxReviewers {
			return jiterrors.New(jiterrors.MalformedRequest, "reviewer count out of configured bounds")
		}
		for _, rv := range req.Reviewers {
			if rv.Equal(req.RequestingUser) {
				return jiterrors.New(jiterrors.MalformedRequest, "reviewer must not be the requesting user")
			}
		}
	}
	return nil
}

// VerifyUserCanActivateRequesterPrivileges checks that for each role, the
// user holds an AVAILABLE privilege whose activation type matches
// activationType under the topic-wildcard rule.
func (c *Catalog) VerifyUserCanActivateRequesterPrivileges(ctx context.Context, user jitid.UserId, project jitid.ProjectId, activationType activation.Type, roles []jitid.ProjectRole) error {
	set, err := c.Repository.FindEntitlements(ctx, user, project, requesterActivationTypes())
	if err != nil {
		return err
	}
	byRole := make(map[string]entitlement.Privilege)
	for _, p := range set.Available() {
		if !p.ForReviewer {
			byRole[p.Role.Id()] = p
		}
	}
	for _, role := range roles {
		p, ok := byRole[role.Id()]
		if !ok || !p.ActivationType.Matches(activationType) {
			return jiterrors.New(jiterrors.AccessDenied, "user is not eligible to activate role "+role.Id())
		}
	}
	return nil
}

// VerifyUserCanRequest applies request validation plus the requesting
// user's own activation check.
func (c *Catalog) VerifyUserCanRequest(ctx context.Context, req Request) error {
	if err := c.ValidateRequest(req); err != nil {
		return err
	}
	if len(req.Roles) == 0 {
		return jiterrors.New(jiterrors.MalformedRequest, "request carries no roles")
	}
	return c.VerifyUserCanActivateRequesterPrivileges(ctx, req.RequestingUser, req.Roles[0].ProjectId, req.ActivationType, req.Roles)
}

// VerifyUserCanApprove checks that for each role in the request, the
// approver holds a matching ReviewerPrivilege (external) or is a matching
// peer (peer approval).
func (c *Catalog) VerifyUserCanApprove(ctx context.Context, approver jitid.UserId, req Request) error {
	for _, role := range req.Roles {
		holders, err := c.Repository.FindEntitlementHolders(ctx, role, req.ActivationType)
		if err != nil {
			return err
		}
		found := false
		for _, h := range holders {
			if h.Equal(approver) {
				found = true
				break
			}
		}
		if !found {
			c.logger().Info("approval denied: not a valid reviewer", "approver", approver.String(), "role", role.Id())
			return jiterrors.New(jiterrors.AccessDenied, "approver is not a valid reviewer for role "+role.Id())
		}
	}
	return nil
}

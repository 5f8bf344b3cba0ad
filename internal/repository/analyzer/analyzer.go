/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package analyzer implements the policy-analyzer-backed entitlement
// repository variant: it consumes a policy-analysis API that has already
// expanded group membership on the caller's behalf, so this variant never
// talks to a directory service itself.
package analyzer

import (
	"context"
	"sort"
	"time"

	"github.com/go-logr/logr"

	"github.com/marcus-qen/jitbroker/internal/activation"
	"github.com/marcus-qen/jitbroker/internal/condition"
	"github.com/marcus-qen/jitbroker/internal/entitlement"
	"github.com/marcus-qen/jitbroker/internal/jiterrors"
	"github.com/marcus-qen/jitbroker/internal/jitid"
	"github.com/marcus-qen/jitbroker/internal/repository"
	"github.com/marcus-qen/jitbroker/internal/telemetry"
)

const backendName = "analyzer"

// findProjectsPermission is the permission filter used to discover every
// project a user has entitlement-bearing access to.
const findProjectsPermission = "resourcemanager.projects.get"

// AnalysisResult is one entry in an AnalysisResponse: the resource the
// binding is attached to, the binding itself, the set of effective
// resources it enumerates (for inherited folder/org-level bindings), and
// the principals actually matched.
type AnalysisResult struct {
	AttachedResource string
	Binding          repository.Binding
	ACL              []repository.ACLEntry
	Identities       *repository.IdentityList
}

// AnalysisResponse is the analyzer's response envelope. Warnings surface
// analyzer-side issues (e.g. partial scope coverage) that are not fatal.
type AnalysisResponse struct {
	Results  []AnalysisResult
	Warnings []string
}

// Client is the external policy-analyzer boundary.
type Client interface {
	FindAccessibleResourcesByUser(ctx context.Context, scope string, user jitid.UserId, permissionFilter, resourceFilter string, expandGroups bool) (*AnalysisResponse, error)
	FindPermissionedPrincipalsByResource(ctx context.Context, scope, resource, permission string) (*AnalysisResponse, error)
}

// Repository is the policy-analyzer-backed EntitlementRepository.
type Repository struct {
	Client Client
	// OrgScope is the full resource name of the organization or folder the
	// analyzer queries are rooted at.
	OrgScope string
	// Logger defaults to logr.Discard() when unset.
	Logger logr.Logger
}

// New constructs an analyzer-backed repository.
func New(client Client, orgScope string) *Repository {
	return &Repository{Client: client, OrgScope: orgScope}
}

func (r *Repository) logger() logr.Logger {
	if r.Logger.GetSink() == nil {
		return logr.Discard()
	}
	return r.Logger
}

// FindProjectsWithEntitlements returns the sorted set of projects under
// which user holds at least one eligibility-bearing binding.
func (r *Repository) FindProjectsWithEntitlements(ctx context.Context, user jitid.UserId) ([]jitid.ProjectId, error) {
	resp, err := r.Client.FindAccessibleResourcesByUser(ctx, r.OrgScope, user, findProjectsPermission, "", true)
	if err != nil {
		return nil, jiterrors.Wrap(jiterrors.Transient, "analyzer: find accessible resources by user", err)
	}

	seen := make(map[string]jitid.ProjectId)
	for _, res := range resp.Results {
		eligible := res.Binding.Condition == nil
		if !eligible {
			parsed, parseErr := condition.Parse(res.Binding.Condition.Title, res.Binding.Condition.Expression)
			eligible = parseErr == nil && parsed.Kind == condition.KindEligibility
		}
		if !eligible {
			continue
		}
		for _, projectId := range projectIdsFromResult(res) {
			seen[projectId.String()] = projectId
		}
	}

	out := make([]jitid.ProjectId, 0, len(seen))
	for _, p := range seen {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

// FindEntitlements returns the EntitlementSet for user scoped to project,
// restricted to the given activation types.
func (r *Repository) FindEntitlements(ctx context.Context, user jitid.UserId, project jitid.ProjectId, types []activation.Type) (*entitlement.Set, error) {
	ctx, span := telemetry.StartEntitlementFetchSpan(ctx, backendName, project.String())
	started := time.Now()
	defer func() {
		telemetry.RecordEntitlementFetch(backendName, time.Since(started))
		span.End()
	}()

	resp, err := r.Client.FindAccessibleResourcesByUser(ctx, project.FullResourceName(), user, "", "", false)
	if err != nil {
		return nil, jiterrors.Wrap(jiterrors.Transient, "analyzer: find entitlements", err)
	}

	set := entitlement.NewSet()
	for _, w := range resp.Warnings {
		r.logger().Info("analyzer returned a non-fatal warning", "project", project.String(), "warning", w)
		set.AddWarning(w)
	}

	for _, res := range resp.Results {
		applyResultToSet(set, res, types)
	}
	return set, nil
}

// FindEntitlementHolders returns the sorted set of users who hold a
// matching eligibility for role under actType.
func (r *Repository) FindEntitlementHolders(ctx context.Context, role jitid.ProjectRole, actType activation.Type) ([]jitid.UserId, error) {
	resp, err := r.Client.FindPermissionedPrincipalsByResource(ctx, r.OrgScope, role.ProjectId.FullResourceName(), role.Role)
	if err != nil {
		return nil, jiterrors.Wrap(jiterrors.Transient, "analyzer: find entitlement holders", err)
	}

	var holders []jitid.UserId
	for _, res := range resp.Results {
		if res.Binding.Role != role.Role || res.Binding.Condition == nil {
			continue
		}
		parsed, parseErr := condition.Parse(res.Binding.Condition.Title, res.Binding.Condition.Expression)
		if parseErr != nil || parsed.Kind != condition.KindEligibility {
			continue
		}
		if !parsed.Eligibility.ActivationType().Matches(actType) {
			continue
		}
		// ExternalApproval reviewers must hold the distinct reviewerPrivilege
		// marker; PeerApproval reviewers are ordinary requester peers.
		if parsed.Eligibility.ForReviewer != (actType.Variant == activation.ExternalApproval) {
			continue
		}
		for _, email := range res.Identities.ExpandedUsers() {
			holders = append(holders, jitid.NewUserId(email))
		}
	}
	return repository.SortUserIds(holders), nil
}

func applyResultToSet(set *entitlement.Set, res AnalysisResult, types []activation.Type) {
	if res.Binding.Condition == nil {
		return
	}
	parsed, err := condition.Parse(res.Binding.Condition.Title, res.Binding.Condition.Expression)
	if err != nil {
		set.AddWarning(err.Error())
		return
	}

	projectIds := projectIdsFromResult(res)
	if len(projectIds) == 0 {
		return
	}

	switch parsed.Kind {
	case condition.KindNone:
		if parsed.Warning != "" {
			set.AddWarning(parsed.Warning)
		}
	case condition.KindEligibility:
		if !typeRequested(types, parsed.Eligibility.ActivationType()) {
			return
		}
		for _, projectId := range projectIds {
			set.AddAvailable(entitlement.Privilege{
				Role:           jitid.ProjectRole{ProjectId: projectId, Role: res.Binding.Role, ResourceCondition: parsed.Eligibility.ResourceCondition},
				DisplayName:    res.Binding.Role,
				ActivationType: parsed.Eligibility.ActivationType(),
				ForReviewer:    parsed.Eligibility.ForReviewer,
			})
		}
	case condition.KindActivation:
		window := entitlement.Window{Start: parsed.Activation.Start, End: parsed.Activation.End}
		for _, projectId := range projectIds {
			pr := jitid.ProjectRole{ProjectId: projectId, Role: res.Binding.Role, ResourceCondition: parsed.Activation.ResourceCondition}
			set.AddActivation(pr, window, time.Now().UTC())
		}
	}
}

// typeRequested reports whether want matches one of the requested types, or
// whether no filter was supplied at all.
func typeRequested(requested []activation.Type, want activation.Type) bool {
	if len(requested) == 0 {
		return true
	}
	for _, t := range requested {
		if t.Matches(want) || want.Matches(t) {
			return true
		}
	}
	return false
}

// projectIdsFromResult returns the attached resource's project (if
// project-shaped) plus every sibling project enumerated in the ACL with a
// TRUE or CONDITIONAL verdict — this is how an org/folder-level inherited
// binding surfaces the individual projects it actually applies to.
func projectIdsFromResult(res AnalysisResult) []jitid.ProjectId {
	seen := make(map[string]jitid.ProjectId)
	if p, ok := repository.ExtractProjectId(res.AttachedResource); ok {
		seen[p.String()] = p
	}
	for _, acl := range res.ACL {
		if acl.Verdict == repository.VerdictFalse {
			continue
		}
		if p, ok := repository.ExtractProjectId(acl.FullResourceName); ok {
			seen[p.String()] = p
		}
	}
	out := make([]jitid.ProjectId, 0, len(seen))
	for _, p := range seen {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

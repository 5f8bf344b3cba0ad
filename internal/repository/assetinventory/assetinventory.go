/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package assetinventory implements the asset-inventory-backed entitlement
// repository variant: it consumes an effective-IAM-policy snapshot per
// project and performs its own one-hop group expansion via a directory
// service, fanning the two external calls out concurrently.
package assetinventory

import (
	"context"
	"sort"
	"strings"
	"sync"
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

const backendName = "assetinventory"

// PolicyInfo is one attached-resource's effective IAM policy, as returned
// by the asset-inventory client.
type PolicyInfo struct {
	AttachedResource string
	Bindings         []repository.Binding
}

// Client is the external asset-inventory boundary.
type Client interface {
	GetEffectiveIamPolicies(ctx context.Context, scope string, project jitid.ProjectId) ([]PolicyInfo, error)
}

// Directory is the external group-membership boundary. Both methods
// resolve exactly one hop — deeper nesting is out of scope by design.
type Directory interface {
	ListDirectGroupMemberships(ctx context.Context, user jitid.UserId) ([]string, error)
	ListDirectGroupMembers(ctx context.Context, group string) ([]string, error)
}

// defaultMaxConcurrency bounds the per-group expansion fan-out in
// FindEntitlementHolders when MaxConcurrency is unset.
const defaultMaxConcurrency = 16

// Repository is the asset-inventory-backed EntitlementRepository.
type Repository struct {
	Client         Client
	Directory      Directory
	OrgScope       string
	MaxConcurrency int
	Log            logr.Logger
}

// New constructs an asset-inventory-backed repository.
func New(client Client, directory Directory, orgScope string) *Repository {
	return &Repository{Client: client, Directory: directory, OrgScope: orgScope, MaxConcurrency: defaultMaxConcurrency}
}

// FindProjectsWithEntitlements applies the same binding-matching rule as
// findBindings, scanning the org scope.
func (r *Repository) FindProjectsWithEntitlements(ctx context.Context, user jitid.UserId) ([]jitid.ProjectId, error) {
	bindings, err := r.findBindings(ctx, user, jitid.ProjectId{})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]jitid.ProjectId)
	for _, b := range bindings {
		if b.binding.Condition == nil {
			continue
		}
		parsed, parseErr := condition.Parse(b.binding.Condition.Title, b.binding.Condition.Expression)
		if parseErr != nil || parsed.Kind != condition.KindEligibility {
			continue
		}
		if p, ok := repository.ExtractProjectId(b.attachedResource); ok {
			seen[p.String()] = p
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
	bindings, err := r.findBindings(ctx, user, project)
	if err != nil {
		return nil, err
	}

	set := entitlement.NewSet()
	for _, b := range bindings {
		if b.binding.Condition == nil {
			continue
		}
		parsed, parseErr := condition.Parse(b.binding.Condition.Title, b.binding.Condition.Expression)
		if parseErr != nil {
			set.AddWarning(parseErr.Error())
			continue
		}
		switch parsed.Kind {
		case condition.KindNone:
			if parsed.Warning != "" {
				set.AddWarning(parsed.Warning)
			}
		case condition.KindEligibility:
			if !typeRequested(types, parsed.Eligibility.ActivationType()) {
				continue
			}
			set.AddAvailable(entitlement.Privilege{
				Role:           jitid.ProjectRole{ProjectId: project, Role: b.binding.Role, ResourceCondition: parsed.Eligibility.ResourceCondition},
				DisplayName:    b.binding.Role,
				ActivationType: parsed.Eligibility.ActivationType(),
				ForReviewer:    parsed.Eligibility.ForReviewer,
			})
		case condition.KindActivation:
			window := entitlement.Window{Start: parsed.Activation.Start, End: parsed.Activation.End}
			pr := jitid.ProjectRole{ProjectId: project, Role: b.binding.Role, ResourceCondition: parsed.Activation.ResourceCondition}
			set.AddActivation(pr, window, time.Now().UTC())
		}
	}
	return set, nil
}

// FindEntitlementHolders performs one-hop group expansion, fanned out with
// bounded concurrency; a failed expansion for one group is a dropped,
// logged warning rather than a fatal error.
func (r *Repository) FindEntitlementHolders(ctx context.Context, role jitid.ProjectRole, actType activation.Type) ([]jitid.UserId, error) {
	policies, err := r.Client.GetEffectiveIamPolicies(ctx, r.OrgScope, role.ProjectId)
	if err != nil {
		return nil, jiterrors.Wrap(jiterrors.Transient, "assetinventory: get effective iam policies", err)
	}

	var directMembers []string
	groupSet := make(map[string]struct{})
	for _, pi := range policies {
		for _, b := range pi.Bindings {
			if b.Role != role.Role || b.Condition == nil {
				continue
			}
			parsed, parseErr := condition.Parse(b.Condition.Title, b.Condition.Expression)
			if parseErr != nil || parsed.Kind != condition.KindEligibility {
				continue
			}
			if !parsed.Eligibility.ActivationType().Matches(actType) {
				continue
			}
			if parsed.Eligibility.ForReviewer != (actType.Variant == activation.ExternalApproval) {
				continue
			}
			for _, member := range b.Members {
				email, kind, ok := jitid.ParseMember(member)
				if !ok {
					continue
				}
				switch kind {
				case "user":
					directMembers = append(directMembers, email)
				case "group":
					groupSet[email] = struct{}{}
				}
			}
		}
	}

	expanded := r.expandGroups(ctx, groupSet)

	holders := make([]jitid.UserId, 0, len(directMembers)+len(expanded))
	for _, email := range directMembers {
		holders = append(holders, jitid.NewUserId(email))
	}
	for _, email := range expanded {
		holders = append(holders, jitid.NewUserId(email))
	}
	return repository.SortUserIds(holders), nil
}

// expandGroups resolves every group in groups to its direct members,
// concurrently, bounded by MaxConcurrency. A failure on one group logs a
// warning and contributes nothing — it never fails the overall call.
func (r *Repository) expandGroups(ctx context.Context, groups map[string]struct{}) []string {
	concurrency := r.MaxConcurrency
	if concurrency <= 0 {
		concurrency = defaultMaxConcurrency
	}
	sem := make(chan struct{}, concurrency)
	out := make(chan string, len(groups)*8)
	var wg sync.WaitGroup

	for group := range groups {
		wg.Add(1)
		go func(g string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			members, err := r.Directory.ListDirectGroupMembers(ctx, g)
			if err != nil {
				telemetry.RecordGroupLookupFailure(backendName)
				r.Log.Info("group member lookup failed, dropping group's contribution", "group", g, "error", err.Error())
				return
			}
			for _, m := range members {
				select {
				case out <- strings.ToLower(strings.TrimSpace(m)):
				case <-ctx.Done():
					return
				}
			}
		}(group)
	}

	wg.Wait()
	close(out)

	seen := make(map[string]struct{})
	var members []string
	for m := range out {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		members = append(members, m)
	}
	return members
}

type resolvedBinding struct {
	attachedResource string
	binding          repository.Binding
}

// findBindings implements the shared fetch+filter step behind
// FindProjectsWithEntitlements and FindEntitlements: the policy fetch and
// the user's direct-group-membership fetch are launched concurrently and
// both must succeed; a binding is retained iff its member list contains
// the user directly or via one of the user's direct groups.
func (r *Repository) findBindings(ctx context.Context, user jitid.UserId, project jitid.ProjectId) ([]resolvedBinding, error) {
	ctx, span := telemetry.StartEntitlementFetchSpan(ctx, backendName, project.String())
	started := time.Now()
	defer func() {
		telemetry.RecordEntitlementFetch(backendName, time.Since(started))
		span.End()
	}()

	var (
		policies  []PolicyInfo
		groups    []string
		policyErr error
		groupErr  error
		wg        sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		policies, policyErr = r.Client.GetEffectiveIamPolicies(ctx, r.OrgScope, project)
	}()
	go func() {
		defer wg.Done()
		groups, groupErr = r.Directory.ListDirectGroupMemberships(ctx, user)
	}()
	wg.Wait()

	if policyErr != nil {
		return nil, jiterrors.Wrap(jiterrors.Transient, "assetinventory: get effective iam policies", policyErr)
	}
	if groupErr != nil {
		return nil, jiterrors.Wrap(jiterrors.Transient, "assetinventory: list direct group memberships", groupErr)
	}

	userMember := user.Member()
	groupMembers := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		groupMembers[jitid.NewGroupId(g).Member()] = struct{}{}
	}

	var directMatches, groupMatches []resolvedBinding
	for _, pi := range policies {
		for _, b := range pi.Bindings {
			matched := false
			viaGroup := false
			for _, m := range b.Members {
				if strings.EqualFold(m, userMember) {
					matched = true
					break
				}
				if _, ok := groupMembers[strings.ToLower(m)]; ok {
					matched = true
					viaGroup = true
					break
				}
			}
			if !matched {
				continue
			}
			rb := resolvedBinding{attachedResource: pi.AttachedResource, binding: b}
			if viaGroup {
				groupMatches = append(groupMatches, rb)
			} else {
				directMatches = append(directMatches, rb)
			}
		}
	}
	return append(directMatches, groupMatches...), nil
}

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


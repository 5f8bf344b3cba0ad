/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package activator

import (
	"context"
	"testing"
	"time"

	"github.com/marcus-qen/jitbroker/internal/activation"
	"github.com/marcus-qen/jitbroker/internal/catalog"
	"github.com/marcus-qen/jitbroker/internal/entitlement"
	"github.com/marcus-qen/jitbroker/internal/jiterrors"
	"github.com/marcus-qen/jitbroker/internal/jitid"
	"github.com/marcus-qen/jitbroker/internal/shared/ratelimit"
)

type fakeRepo struct {
	sets    map[string]*entitlement.Set
	holders map[string][]jitid.UserId
}

func setKey(user jitid.UserId, project jitid.ProjectId) string {
	return user.String() + "|" + project.String()
}

func (f *fakeRepo) FindProjectsWithEntitlements(ctx context.Context, user jitid.UserId) ([]jitid.ProjectId, error) {
	return nil, nil
}

func (f *fakeRepo) FindEntitlements(ctx context.Context, user jitid.UserId, project jitid.ProjectId, types []activation.Type) (*entitlement.Set, error) {
	if s, ok := f.sets[setKey(user, project)]; ok {
		return s, nil
	}
	return entitlement.NewSet(), nil
}

func (f *fakeRepo) FindEntitlementHolders(ctx context.Context, role jitid.ProjectRole, actType activation.Type) ([]jitid.UserId, error) {
	return f.holders[role.Id()], nil
}

type fakeMutator struct {
	calls []struct {
		project jitid.ProjectId
		binding ConditionalBinding
		options []MutateOption
	}
	failRole string
}

func (m *fakeMutator) AddProjectIamBinding(ctx context.Context, project jitid.ProjectId, binding ConditionalBinding, options []MutateOption) error {
	if binding.Role == m.failRole {
		return jiterrors.New(jiterrors.Transient, "mutator unavailable")
	}
	m.calls = append(m.calls, struct {
		project jitid.ProjectId
		binding ConditionalBinding
		options []MutateOption
	}{project, binding, options})
	return nil
}

type passPolicy struct{}

func (passPolicy) CheckJustification(user jitid.UserId, text string) error { return nil }

func role(name string) jitid.ProjectRole {
	return jitid.ProjectRole{ProjectId: jitid.NewProjectId("project-1"), Role: name}
}

func newTestActivator(repo *fakeRepo, mutator *fakeMutator) *Activator {
	c := catalog.New(repo, nil, catalog.Options{
		MinActivationDuration: time.Minute,
		MaxActivationDuration: 30 * time.Minute,
		MinReviewers:          1,
		MaxReviewers:          1,
	})
	return &Activator{Catalog: c, Justification: passPolicy{}, Mutator: mutator}
}

func TestActivateJitProvisioningExpression(t *testing.T) {
	user := jitid.NewUserId("user@example.com")
	project := jitid.NewProjectId("project-1")
	set := entitlement.NewSet()
	set.AddAvailable(entitlement.Privilege{Role: role("roles/editor"), ActivationType: activation.Self()})
	set.AddAvailable(entitlement.Privilege{Role: role("roles/viewer"), ActivationType: activation.Self()})

	repo := &fakeRepo{sets: map[string]*entitlement.Set{setKey(user, project): set}}
	mutator := &fakeMutator{}
	act := newTestActivator(repo, mutator)

	start := time.Date(2040, 1, 1, 0, 0, 0, 0, time.UTC)
	req := act.CreateJitRequest(user, []jitid.ProjectRole{role("roles/editor"), role("roles/viewer")}, "incident response work", start, 5*time.Minute)

	activation, err := act.Activate(context.Background(), user, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if activation.Window.Start != start || !activation.Window.End.Equal(start.Add(5*time.Minute)) {
		t.Fatalf("unexpected window: %+v", activation.Window)
	}
	if len(mutator.calls) != 2 {
		t.Fatalf("expected two mutator calls, got %d", len(mutator.calls))
	}
	for _, call := range mutator.calls {
		want := `(request.time >= timestamp("2040-01-01T00:00:00Z") && request.time < timestamp("2040-01-01T00:05:00Z"))`
		if call.binding.ConditionExpression != want {
			t.Errorf("unexpected expression: %q", call.binding.ConditionExpression)
		}
		if call.binding.ConditionTitle != "JIT access" {
			t.Errorf("unexpected title: %q", call.binding.ConditionTitle)
		}
		if call.binding.Description != "Self-approved, justification: incident response work" {
			t.Errorf("unexpected description: %q", call.binding.Description)
		}
		if len(call.options) != 1 || call.options[0] != PurgeExistingTemporaryBindings {
			t.Errorf("expected purge option, got %v", call.options)
		}
	}
}

func TestActivateWithResourceSubCondition(t *testing.T) {
	user := jitid.NewUserId("user@example.com")
	project := jitid.NewProjectId("project-1")
	r := role("roles/editor")
	r.ResourceCondition = "resource.name=='x' || resource.name=='y'"

	set := entitlement.NewSet()
	set.AddAvailable(entitlement.Privilege{Role: r, ActivationType: activation.Self()})

	repo := &fakeRepo{sets: map[string]*entitlement.Set{setKey(user, project): set}}
	mutator := &fakeMutator{}
	act := newTestActivator(repo, mutator)

	start := time.Date(2040, 1, 1, 0, 0, 0, 0, time.UTC)
	req := act.CreateJitRequest(user, []jitid.ProjectRole{r}, "incident response work", start, 5*time.Minute)

	if _, err := act.Activate(context.Background(), user, req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `((request.time >= timestamp("2040-01-01T00:00:00Z") && request.time < timestamp("2040-01-01T00:05:00Z"))) && (resource.name=='x' || resource.name=='y')`
	if mutator.calls[0].binding.ConditionExpression != want {
		t.Fatalf("unexpected expression: %q", mutator.calls[0].binding.ConditionExpression)
	}
}

func TestApproveMpaRequest(t *testing.T) {
	requester := jitid.NewUserId("user@example.com")
	approver := jitid.NewUserId("approver@example.com")
	project := jitid.NewProjectId("project-1")
	r := role("roles/editor")

	set := entitlement.NewSet()
	set.AddAvailable(entitlement.Privilege{Role: r, ActivationType: activation.Peer("")})

	repo := &fakeRepo{
		sets:    map[string]*entitlement.Set{setKey(requester, project): set},
		holders: map[string][]jitid.UserId{r.Id(): {approver}},
	}
	mutator := &fakeMutator{}
	act := newTestActivator(repo, mutator)

	start := time.Date(2040, 1, 1, 0, 0, 0, 0, time.UTC)
	req := act.CreateMpaRequest(requester, []jitid.ProjectRole{r}, []jitid.UserId{approver}, activation.Peer(""), "incident response work", start, 5*time.Minute)

	if _, err := act.Approve(context.Background(), approver, req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mutator.calls[0].binding.Description != "Approved by approver@example.com, justification: incident response work" {
		t.Fatalf("unexpected description: %q", mutator.calls[0].binding.Description)
	}
}

func TestActivatePartialFailureAggregates(t *testing.T) {
	user := jitid.NewUserId("user@example.com")
	project := jitid.NewProjectId("project-1")
	set := entitlement.NewSet()
	set.AddAvailable(entitlement.Privilege{Role: role("roles/editor"), ActivationType: activation.Self()})
	set.AddAvailable(entitlement.Privilege{Role: role("roles/viewer"), ActivationType: activation.Self()})

	repo := &fakeRepo{sets: map[string]*entitlement.Set{setKey(user, project): set}}
	mutator := &fakeMutator{failRole: "roles/viewer"}
	act := newTestActivator(repo, mutator)

	start := time.Date(2040, 1, 1, 0, 0, 0, 0, time.UTC)
	req := act.CreateJitRequest(user, []jitid.ProjectRole{role("roles/editor"), role("roles/viewer")}, "incident response work", start, 5*time.Minute)

	_, err := act.Activate(context.Background(), user, req)
	if !jiterrors.HasKind(err, jiterrors.Aggregate) {
		t.Fatalf("expected Aggregate error, got %v", err)
	}
	if len(mutator.calls) != 1 {
		t.Fatalf("expected the non-failing role to still have been applied, got %d calls", len(mutator.calls))
	}
}

func TestActivateDeniesRateLimitedUser(t *testing.T) {
	user := jitid.NewUserId("user@example.com")
	project := jitid.NewProjectId("project-1")
	set := entitlement.NewSet()
	set.AddAvailable(entitlement.Privilege{Role: role("roles/editor"), ActivationType: activation.Self()})

	repo := &fakeRepo{sets: map[string]*entitlement.Set{setKey(user, project): set}}
	mutator := &fakeMutator{}
	act := newTestActivator(repo, mutator)
	act.RateLimiter = ratelimit.NewLimiter(ratelimit.Config{
		MaxConcurrentCluster:         100,
		MaxConcurrentPerUser:         100,
		MaxActivationsPerHourCluster: 100,
		MaxActivationsPerHourPerUser: 1,
	})

	start := time.Date(2040, 1, 1, 0, 0, 0, 0, time.UTC)
	req := act.CreateJitRequest(user, []jitid.ProjectRole{role("roles/editor")}, "incident response work", start, 5*time.Minute)

	if _, err := act.Activate(context.Background(), user, req); err != nil {
		t.Fatalf("unexpected error on first activation: %v", err)
	}

	req2 := act.CreateJitRequest(user, []jitid.ProjectRole{role("roles/editor")}, "incident response work", start, 5*time.Minute)
	_, err := act.Activate(context.Background(), user, req2)
	if !jiterrors.HasKind(err, jiterrors.RateLimited) {
		t.Fatalf("expected RateLimited, got %v", err)
	}
}

func TestActivateDeniesMismatchedUser(t *testing.T) {
	user := jitid.NewUserId("user@example.com")
	other := jitid.NewUserId("other@example.com")
	repo := &fakeRepo{}
	act := newTestActivator(repo, &fakeMutator{})

	req := act.CreateJitRequest(user, []jitid.ProjectRole{role("roles/editor")}, "incident response work", time.Now(), 5*time.Minute)
	_, err := act.Activate(context.Background(), other, req)
	if !jiterrors.HasKind(err, jiterrors.AccessDenied) {
		t.Fatalf("expected AccessDenied, got %v", err)
	}
}

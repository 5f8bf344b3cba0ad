/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package analyzer

import (
	"context"
	"testing"
	"time"

	"github.com/marcus-qen/jitbroker/internal/activation"
	"github.com/marcus-qen/jitbroker/internal/jitid"
	"github.com/marcus-qen/jitbroker/internal/repository"
)

type fakeClient struct {
	byUser     *AnalysisResponse
	byResource *AnalysisResponse
}

func (f *fakeClient) FindAccessibleResourcesByUser(ctx context.Context, scope string, user jitid.UserId, permissionFilter, resourceFilter string, expandGroups bool) (*AnalysisResponse, error) {
	return f.byUser, nil
}

func (f *fakeClient) FindPermissionedPrincipalsByResource(ctx context.Context, scope, resource, permission string) (*AnalysisResponse, error) {
	return f.byResource, nil
}

func TestFindEntitlementsEmptyPolicy(t *testing.T) {
	repo := New(&fakeClient{byUser: &AnalysisResponse{}}, "//cloudresourcemanager.googleapis.com/organizations/1")
	set, err := repo.FindEntitlements(context.Background(), jitid.NewUserId("user-1@example.com"), jitid.NewProjectId("project-1"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !set.IsEmpty() {
		t.Fatalf("expected empty set, got %+v", set)
	}
}

func TestFindEntitlementsCaseFoldedJitMarker(t *testing.T) {
	resp := &AnalysisResponse{
		Results: []AnalysisResult{
			{
				AttachedResource: "//cloudresourcemanager.googleapis.com/projects/project-1",
				Binding: repository.Binding{
					Role: "roles/editor",
					Condition: &repository.Condition{
						Expression: "HAS({}.JitacceSSConstraint)",
					},
				},
			},
		},
	}
	repo := New(&fakeClient{byUser: resp}, "org")
	set, err := repo.FindEntitlements(context.Background(), jitid.NewUserId("user-1@example.com"), jitid.NewProjectId("project-1"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	available := set.Available()
	if len(available) != 1 || available[0].DisplayName != "roles/editor" {
		t.Fatalf("expected one available JIT privilege, got %+v", available)
	}
	if available[0].ActivationType.Variant != activation.SelfApproval {
		t.Fatalf("expected SelfApproval, got %v", available[0].ActivationType)
	}
}

func TestFindEntitlementsInheritedBindingCoversSiblingProjects(t *testing.T) {
	resp := &AnalysisResponse{
		Results: []AnalysisResult{
			{
				AttachedResource: "//cloudresourcemanager.googleapis.com/folders/folder-1",
				Binding: repository.Binding{
					Role:      "roles/editor",
					Condition: &repository.Condition{Expression: "has({}.jitAccessConstraint)"},
				},
				ACL: []repository.ACLEntry{
					{FullResourceName: "//cloudresourcemanager.googleapis.com/projects/project-a", Verdict: repository.VerdictConditional},
					{FullResourceName: "//cloudresourcemanager.googleapis.com/projects/project-b", Verdict: repository.VerdictConditional},
				},
			},
		},
	}
	repo := New(&fakeClient{byUser: resp}, "org")
	set, err := repo.FindEntitlements(context.Background(), jitid.NewUserId("user-1@example.com"), jitid.NewProjectId("project-a"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	available := set.Available()
	if len(available) != 2 {
		t.Fatalf("expected entries for both sibling projects, got %+v", available)
	}
}

func TestFindEntitlementsExpiredAndCurrentActivations(t *testing.T) {
	now := time.Now().UTC()
	resp := &AnalysisResponse{
		Results: []AnalysisResult{
			{
				AttachedResource: "//cloudresourcemanager.googleapis.com/projects/project-1",
				Binding: repository.Binding{
					Role:      "roles/editor",
					Condition: &repository.Condition{Expression: "has({}.jitAccessConstraint)"},
				},
			},
			{
				AttachedResource: "//cloudresourcemanager.googleapis.com/projects/project-1",
				Binding: repository.Binding{
					Role: "roles/editor",
					Condition: &repository.Condition{
						Title: "JIT access",
						Expression: `(request.time >= timestamp("` + now.Add(-2*time.Hour).Format(time.RFC3339) + `") && request.time < timestamp("` + now.Add(-time.Hour).Format(time.RFC3339) + `"))`,
					},
				},
			},
			{
				AttachedResource: "//cloudresourcemanager.googleapis.com/projects/project-1",
				Binding: repository.Binding{
					Role: "roles/editor",
					Condition: &repository.Condition{
						Title: "JIT access",
						Expression: `(request.time >= timestamp("` + now.Add(-time.Minute).Format(time.RFC3339) + `") && request.time < timestamp("` + now.Add(time.Minute).Format(time.RFC3339) + `"))`,
					},
				},
			},
		},
	}
	repo := New(&fakeClient{byUser: resp}, "org")
	set, err := repo.FindEntitlements(context.Background(), jitid.NewUserId("user-1@example.com"), jitid.NewProjectId("project-1"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(set.Available()) != 1 {
		t.Fatalf("expected one available entry, got %+v", set.Available())
	}
	if len(set.CurrentActivations()) != 1 {
		t.Fatalf("expected one current activation, got %+v", set.CurrentActivations())
	}
	if len(set.ExpiredActivations()) != 1 {
		t.Fatalf("expected one expired activation, got %+v", set.ExpiredActivations())
	}
}

func TestFindEntitlementHoldersExcludesNonMatchingTypeAndExpandsGroups(t *testing.T) {
	resp := &AnalysisResponse{
		Results: []AnalysisResult{
			{
				Binding: repository.Binding{
					Role:      "roles/editor",
					Condition: &repository.Condition{Expression: "has({}.multiPartyApprovalConstraint.topic)"},
				},
				Identities: &repository.IdentityList{
					Users:        []string{"peer@example.com"},
					Groups:       []string{"team@example.com"},
					GroupMembers: map[string][]string{"team@example.com": {"teammate@example.com"}},
				},
			},
			{
				Binding: repository.Binding{
					Role:      "roles/editor",
					Condition: &repository.Condition{Expression: "has({}.jitAccessConstraint)"},
				},
				Identities: &repository.IdentityList{Users: []string{"solo@example.com"}},
			},
		},
	}
	repo := New(&fakeClient{byResource: resp}, "org")
	holders, err := repo.FindEntitlementHolders(context.Background(), jitid.ProjectRole{ProjectId: jitid.NewProjectId("project-1"), Role: "roles/editor"}, activation.Peer("topic"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(holders) != 2 {
		t.Fatalf("expected two holders (peer + expanded team member), got %+v", holders)
	}
}

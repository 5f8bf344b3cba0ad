/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package gcpboundary

import (
	"testing"

	"github.com/marcus-qen/jitbroker/internal/repository"
)

func TestWireAnalysisResponseToDomain(t *testing.T) {
	wire := wireAnalysisResponse{
		Warnings: []string{"partial result"},
		Results: []wireAnalysisResult{
			{
				AttachedResource: "//cloudresourcemanager.googleapis.com/projects/123",
				Binding: wireBinding{
					Role:    "roles/editor",
					Members: []string{"user:alice@example.com"},
					Condition: &wireCondition{
						Title:      "jit-access",
						Expression: "request.time < timestamp('2026-01-01T00:00:00Z')",
					},
				},
				ACL: []wireACLEntry{
					{FullResourceName: "//cloudresourcemanager.googleapis.com/projects/123", Verdict: "TRUE"},
				},
				Identities: &wireIdentityList{
					Users:  []string{"alice@example.com"},
					Groups: []string{"team@example.com"},
					GroupMembers: map[string][]string{
						"team@example.com": {"bob@example.com"},
					},
				},
			},
		},
	}

	got := wire.toDomain()
	if len(got.Warnings) != 1 || got.Warnings[0] != "partial result" {
		t.Fatalf("warnings not carried through: %+v", got.Warnings)
	}
	if len(got.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got.Results))
	}

	result := got.Results[0]
	if result.Binding.Role != "roles/editor" {
		t.Fatalf("unexpected role: %q", result.Binding.Role)
	}
	if result.Binding.Condition == nil || result.Binding.Condition.Title != "jit-access" {
		t.Fatalf("condition not carried through: %+v", result.Binding.Condition)
	}
	if len(result.ACL) != 1 || result.ACL[0].Verdict != repository.VerdictTrue {
		t.Fatalf("acl not carried through: %+v", result.ACL)
	}
	if result.Identities == nil || result.Identities.GroupMembers["team@example.com"][0] != "bob@example.com" {
		t.Fatalf("identities not carried through: %+v", result.Identities)
	}
}

func TestWireAnalysisResponseToDomainNoCondition(t *testing.T) {
	wire := wireAnalysisResponse{
		Results: []wireAnalysisResult{
			{Binding: wireBinding{Role: "roles/viewer", Members: []string{"user:bob@example.com"}}},
		},
	}
	got := wire.toDomain()
	if got.Results[0].Binding.Condition != nil {
		t.Fatalf("expected nil condition, got %+v", got.Results[0].Binding.Condition)
	}
	if got.Results[0].Identities != nil {
		t.Fatalf("expected nil identities, got %+v", got.Results[0].Identities)
	}
}

/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package jitid

import (
	"testing"

	"github.com/marcus-qen/jitbroker/internal/jiterrors"
)

func TestUserIdEqualityIsCaseInsensitive(t *testing.T) {
	a := NewUserId("User@Example.COM")
	b := NewUserId("user@example.com")
	if !a.Equal(b) {
		t.Fatalf("expected %q to equal %q", a, b)
	}
	if a.String() != "user@example.com" {
		t.Fatalf("expected normalized lowercase email, got %q", a.String())
	}
}

func TestProjectRoleIdRoundTrip(t *testing.T) {
	pr := ProjectRole{ProjectId: NewProjectId("project-1"), Role: "roles/editor"}
	id := pr.Id()
	if id != "iam:project-1:roles/editor" {
		t.Fatalf("unexpected id: %q", id)
	}
	parsed, err := ParseProjectRole(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.ProjectId.String() != "project-1" || parsed.Role != "roles/editor" {
		t.Fatalf("round trip mismatch: %+v", parsed)
	}
}

func TestParseProjectRoleMalformed(t *testing.T) {
	cases := []string{"", "iam:", "iam:project", "iam::role", "iam:project:", "not-iam:project:role"}
	for _, c := range cases {
		_, err := ParseProjectRole(c)
		if !jiterrors.HasKind(err, jiterrors.MalformedRequest) {
			t.Errorf("ParseProjectRole(%q): expected MalformedRequest, got %v", c, err)
		}
	}
}

func TestParseMember(t *testing.T) {
	email, kind, ok := ParseMember("user:Foo@Bar.com")
	if !ok || email != "foo@bar.com" || kind != "user" {
		t.Fatalf("unexpected parse result: %q %q %v", email, kind, ok)
	}
	if _, _, ok := ParseMember("not-a-member"); ok {
		t.Fatalf("expected ok=false for unrecognized prefix")
	}
}

func TestProjectIdFullResourceName(t *testing.T) {
	p := NewProjectId("project-1")
	if p.FullResourceName() == "" || p.IsZero() {
		t.Fatalf("unexpected FullResourceName/IsZero for non-empty project id")
	}
	if !(ProjectId{}).IsZero() {
		t.Fatalf("expected zero-value ProjectId to be zero")
	}
}

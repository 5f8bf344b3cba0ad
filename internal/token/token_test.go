/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package token

import (
	"context"
	"testing"
	"time"

	"github.com/marcus-qen/jitbroker/internal/activation"
	"github.com/marcus-qen/jitbroker/internal/catalog"
	"github.com/marcus-qen/jitbroker/internal/jitid"
)

func sampleRequest() catalog.Request {
	return catalog.Request{
		Id:             "req-1",
		RequestingUser: jitid.NewUserId("user@example.com"),
		Roles: []jitid.ProjectRole{
			{ProjectId: jitid.NewProjectId("project-1"), Role: "roles/editor"},
		},
		ActivationType: activation.Peer("topic"),
		Reviewers: []jitid.UserId{
			jitid.NewUserId("zeta@example.com"),
			jitid.NewUserId("alpha@example.com"),
		},
		Justification: "incident response",
		StartTime:     time.Date(2040, 1, 1, 0, 0, 0, 0, time.UTC),
		Duration:      5 * time.Minute,
	}
}

func TestCanonicalizeSortsReviewersAndEntitlements(t *testing.T) {
	p := Canonicalize(sampleRequest())
	if p.Reviewers[0] != "alpha@example.com" || p.Reviewers[1] != "zeta@example.com" {
		t.Fatalf("expected sorted reviewers, got %v", p.Reviewers)
	}
	if p.ActivationType != "peer_approval(topic)" {
		t.Fatalf("unexpected activation type encoding: %q", p.ActivationType)
	}
	if p.EndTime-p.StartTime != 300 {
		t.Fatalf("expected 300s duration, got %d", p.EndTime-p.StartTime)
	}
}

func TestCanonicalizeToRequestRoundTrip(t *testing.T) {
	req := sampleRequest()
	payload := Canonicalize(req)
	rebuilt, err := payload.ToRequest()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rebuilt.Id != req.Id || rebuilt.Justification != req.Justification {
		t.Fatalf("round trip mismatch: %+v", rebuilt)
	}
	if !rebuilt.RequestingUser.Equal(req.RequestingUser) {
		t.Fatalf("requesting user mismatch: %v", rebuilt.RequestingUser)
	}
	if rebuilt.ActivationType != req.ActivationType {
		t.Fatalf("activation type mismatch: %v != %v", rebuilt.ActivationType, req.ActivationType)
	}
	if !rebuilt.StartTime.Equal(req.StartTime) || rebuilt.Duration != req.Duration {
		t.Fatalf("time window mismatch: start=%v duration=%v", rebuilt.StartTime, rebuilt.Duration)
	}
	if len(rebuilt.Roles) != 1 || rebuilt.Roles[0].Id() != req.Roles[0].Id() {
		t.Fatalf("roles mismatch: %+v", rebuilt.Roles)
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	oracle := HMACOracle{Secret: []byte("test-signing-secret")}
	signer := &Signer{Oracle: oracle, Identity: "jitbroker-signer@example.iam", KeyFunc: oracle.KeyFunc}

	payload := Canonicalize(sampleRequest())
	tokenString, issueTime, expiryTime, err := signer.Sign(context.Background(), payload, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected sign error: %v", err)
	}
	if tokenString == "" || issueTime.IsZero() || expiryTime.IsZero() {
		t.Fatalf("expected non-empty token and timestamps")
	}

	verified, err := signer.Verify(context.Background(), tokenString)
	if err != nil {
		t.Fatalf("unexpected verify error: %v", err)
	}
	if verified.Id != payload.Id || verified.ActivationType != payload.ActivationType {
		t.Fatalf("verified payload mismatch: %+v", verified)
	}
	if len(verified.Reviewers) != len(payload.Reviewers) {
		t.Fatalf("reviewers mismatch: %+v", verified.Reviewers)
	}
}

func TestVerifyFailsOnExpiredToken(t *testing.T) {
	oracle := HMACOracle{Secret: []byte("test-signing-secret")}
	signer := &Signer{Oracle: oracle, Identity: "jitbroker-signer@example.iam", KeyFunc: oracle.KeyFunc}

	payload := Canonicalize(sampleRequest())
	tokenString, _, _, err := signer.Sign(context.Background(), payload, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("unexpected sign error: %v", err)
	}

	if _, err := signer.Verify(context.Background(), tokenString); err == nil {
		t.Fatalf("expected verification failure for an expired token")
	}
}

func TestVerifyFailsOnWrongIssuer(t *testing.T) {
	oracle := HMACOracle{Secret: []byte("test-signing-secret")}
	signer := &Signer{Oracle: oracle, Identity: "jitbroker-signer@example.iam", KeyFunc: oracle.KeyFunc}
	otherSigner := &Signer{Oracle: oracle, Identity: "someone-else@example.iam", KeyFunc: oracle.KeyFunc}

	payload := Canonicalize(sampleRequest())
	tokenString, _, _, err := otherSigner.Sign(context.Background(), payload, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected sign error: %v", err)
	}

	if _, err := signer.Verify(context.Background(), tokenString); err == nil {
		t.Fatalf("expected verification failure for mismatched issuer")
	}
}

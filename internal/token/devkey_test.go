/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package token

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestDeriveDevSigningKeyIsDeterministic(t *testing.T) {
	master := []byte("master-secret")
	a := DeriveDevSigningKey(master, "signer-a@example.com")
	b := DeriveDevSigningKey(master, "signer-a@example.com")
	if !bytes.Equal(a, b) {
		t.Fatal("expected deterministic derivation for the same identity")
	}
}

func TestDeriveDevSigningKeyVariesByIdentity(t *testing.T) {
	master := []byte("master-secret")
	a := DeriveDevSigningKey(master, "signer-a@example.com")
	b := DeriveDevSigningKey(master, "signer-b@example.com")
	if bytes.Equal(a, b) {
		t.Fatal("expected distinct keys for distinct identities")
	}
}

func TestNewDevHMACOracleSignsAndVerifies(t *testing.T) {
	master := []byte("master-secret")
	oracle := NewDevHMACOracle(master, "jitbroker-signer@example.iam.gserviceaccount.com")

	signer := &Signer{Oracle: oracle, Identity: "jitbroker-signer@example.iam.gserviceaccount.com", KeyFunc: oracle.KeyFunc}
	payload := Payload{Id: "req-1", RequestingUser: "user@example.com", ActivationType: "self_approval"}

	tokenString, _, _, err := signer.Sign(context.Background(), payload, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	got, err := signer.Verify(context.Background(), tokenString)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.Id != payload.Id {
		t.Fatalf("unexpected payload id: %q", got.Id)
	}
}

/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package gcpboundary

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// testJWKSetBody is RFC 7517's textbook-small RSA key (N=3233, E=17,
// base64url-encoded), enough to exercise the decode path without needing a
// real key pair.
const testJWKSetBody = `{"keys":[{"kid":"key-1","kty":"RSA","n":"DKE","e":"EQ"}]}`

func TestRSAPublicKeyFromJWK(t *testing.T) {
	var set jwkSet
	if err := json.Unmarshal([]byte(testJWKSetBody), &set); err != nil {
		t.Fatalf("unmarshal jwkSet: %v", err)
	}
	pub, err := rsaPublicKeyFromJWK(set.Keys[0])
	if err != nil {
		t.Fatalf("rsaPublicKeyFromJWK: %v", err)
	}
	if pub.N.Int64() != 3233 {
		t.Fatalf("expected N=3233, got %v", pub.N)
	}
	if pub.E != 17 {
		t.Fatalf("expected E=17, got %v", pub.E)
	}
}

func TestJWKSKeyFuncFetchesAndCaches(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(testJWKSetBody))
	}))
	defer srv.Close()

	k := &JWKSKeyFunc{URL: srv.URL}
	token := &jwt.Token{Header: map[string]any{"kid": "key-1"}}

	key1, err := k.KeyFunc(token)
	if err != nil {
		t.Fatalf("KeyFunc: %v", err)
	}
	if key1 == nil {
		t.Fatal("expected a resolved key")
	}

	if _, err := k.KeyFunc(token); err != nil {
		t.Fatalf("second KeyFunc call: %v", err)
	}
	if requests != 1 {
		t.Fatalf("expected the key set to be cached, server saw %d requests", requests)
	}
}

func TestJWKSKeyFuncUnknownKid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(testJWKSetBody))
	}))
	defer srv.Close()

	k := &JWKSKeyFunc{URL: srv.URL}
	token := &jwt.Token{Header: map[string]any{"kid": "missing"}}

	if _, err := k.KeyFunc(token); err == nil {
		t.Fatal("expected an error for an unresolvable kid")
	}
}

func TestJWKSKeyFuncNoKidHeader(t *testing.T) {
	k := &JWKSKeyFunc{URL: "http://unused.invalid"}
	token := &jwt.Token{Header: map[string]any{}}
	if _, err := k.KeyFunc(token); err == nil {
		t.Fatal("expected an error when the token carries no kid")
	}
}

func TestJWKSKeyFuncCacheExpires(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(testJWKSetBody))
	}))
	defer srv.Close()

	k := &JWKSKeyFunc{URL: srv.URL}
	token := &jwt.Token{Header: map[string]any{"kid": "key-1"}}
	if _, err := k.KeyFunc(token); err != nil {
		t.Fatalf("KeyFunc: %v", err)
	}

	k.fetchedAt = time.Now().Add(-2 * jwksCacheTTL)
	if _, err := k.KeyFunc(token); err != nil {
		t.Fatalf("KeyFunc after expiry: %v", err)
	}
	if requests != 2 {
		t.Fatalf("expected a refetch after cache expiry, server saw %d requests", requests)
	}
}

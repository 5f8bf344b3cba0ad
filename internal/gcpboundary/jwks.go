/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package gcpboundary

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// jwksCacheTTL bounds how long a fetched key set is trusted before the
// next verification triggers a refetch.
const jwksCacheTTL = 10 * time.Minute

type jwkKey struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwkSet struct {
	Keys []jwkKey `json:"keys"`
}

// JWKSKeyFunc resolves a token's verification key from a JWKS endpoint,
// cached for jwksCacheTTL. There is no JWKS client in this module's
// dependency set, so this parses the small RSA-only subset of RFC 7517
// the IAM Credentials API's published keys use.
type JWKSKeyFunc struct {
	URL        string
	HTTPClient *http.Client

	mu        sync.Mutex
	fetchedAt time.Time
	keys      map[string]*rsa.PublicKey
}

// KeyFunc implements jwt.Keyfunc.
func (k *JWKSKeyFunc) KeyFunc(token *jwt.Token) (any, error) {
	kid, _ := token.Header["kid"].(string)
	if kid == "" {
		return nil, fmt.Errorf("jwks: token carries no kid header")
	}

	key, err := k.lookup(kid)
	if err != nil {
		return nil, err
	}
	return key, nil
}

func (k *JWKSKeyFunc) lookup(kid string) (*rsa.PublicKey, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if key, ok := k.keys[kid]; ok && time.Since(k.fetchedAt) < jwksCacheTTL {
		return key, nil
	}

	keys, err := k.fetch()
	if err != nil {
		return nil, err
	}
	k.keys = keys
	k.fetchedAt = time.Now()

	key, ok := k.keys[kid]
	if !ok {
		return nil, fmt.Errorf("jwks: no key found for kid %q", kid)
	}
	return key, nil
}

func (k *JWKSKeyFunc) fetch() (map[string]*rsa.PublicKey, error) {
	client := k.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Get(k.URL)
	if err != nil {
		return nil, fmt.Errorf("jwks: fetch %s: %w", k.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("jwks: read %s: %w", k.URL, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jwks: fetch %s: status %d", k.URL, resp.StatusCode)
	}

	var set jwkSet
	if err := json.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("jwks: parse %s: %w", k.URL, err)
	}

	out := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, jwk := range set.Keys {
		if jwk.Kty != "RSA" {
			continue
		}
		pub, err := rsaPublicKeyFromJWK(jwk)
		if err != nil {
			continue
		}
		out[jwk.Kid] = pub
	}
	return out, nil
}

func rsaPublicKeyFromJWK(jwk jwkKey) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, err
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, err
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}

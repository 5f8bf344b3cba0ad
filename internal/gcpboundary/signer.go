/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package gcpboundary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	jwt "github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/marcus-qen/jitbroker/internal/jiterrors"
	"github.com/marcus-qen/jitbroker/internal/token"
)

// signJwtScope is the OAuth2 scope requested for the default application
// credentials token source when no TokenSource is configured.
const signJwtScope = "https://www.googleapis.com/auth/cloud-platform"

// signJwtEndpoint is the IAM Credentials API's signJwt method, unlike the
// rest of this package's boundaries this is a plain REST call — the real
// API it fronts is REST, not gRPC.
const signJwtEndpoint = "https://iamcredentials.googleapis.com/v1/projects/-/serviceAccounts/%s:signJwt"

// IAMCredentialsOracle implements token.Oracle against the Google IAM
// Credentials API's signJwt method.
type IAMCredentialsOracle struct {
	HTTPClient  *http.Client
	TokenSource oauth2.TokenSource
}

var _ token.Oracle = (*IAMCredentialsOracle)(nil)

type signJwtRequest struct {
	Payload string `json:"payload"`
}

type signJwtResponse struct {
	KeyID     string `json:"keyId"`
	SignedJwt string `json:"signedJwt"`
}

// SignJwt implements token.Oracle.
func (o *IAMCredentialsOracle) SignJwt(ctx context.Context, serviceAccount string, claims jwt.MapClaims) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", jiterrors.Wrap(jiterrors.Transient, "marshal proposal token claims", err)
	}
	body, err := json.Marshal(signJwtRequest{Payload: string(payload)})
	if err != nil {
		return "", jiterrors.Wrap(jiterrors.Transient, "marshal signJwt request", err)
	}

	url := fmt.Sprintf(signJwtEndpoint, serviceAccount)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", jiterrors.Wrap(jiterrors.Transient, "build signJwt request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	ts, err := o.tokenSource(ctx)
	if err != nil {
		return "", jiterrors.Wrap(jiterrors.Transient, "resolve signJwt oauth token source", err)
	}
	tok, err := ts.Token()
	if err != nil {
		return "", jiterrors.Wrap(jiterrors.Transient, "fetch signJwt oauth token", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)

	resp, err := o.client().Do(req)
	if err != nil {
		return "", jiterrors.Wrap(jiterrors.Transient, "call signJwt", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", jiterrors.Wrap(jiterrors.Transient, "read signJwt response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", jiterrors.New(jiterrors.Transient, fmt.Sprintf("signJwt failed: status %d: %s", resp.StatusCode, string(respBody)))
	}

	var parsed signJwtResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", jiterrors.Wrap(jiterrors.Transient, "unmarshal signJwt response", err)
	}
	return parsed.SignedJwt, nil
}

// JwksUrl implements token.Oracle: every Google-managed service account
// publishes its public keys at this well-known per-account path.
func (o *IAMCredentialsOracle) JwksUrl(serviceAccount string) string {
	return fmt.Sprintf("https://www.googleapis.com/service_accounts/v1/jwk/%s", serviceAccount)
}

func (o *IAMCredentialsOracle) client() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return http.DefaultClient
}

func (o *IAMCredentialsOracle) tokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	if o.TokenSource != nil {
		return o.TokenSource, nil
	}
	creds, err := google.FindDefaultCredentials(ctx, signJwtScope)
	if err != nil {
		return nil, err
	}
	return creds.TokenSource, nil
}

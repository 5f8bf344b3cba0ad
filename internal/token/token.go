/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package token implements the ProposalToken canonicalization and signing
// boundary: a deterministic JSON shape for an ActivationRequest, and a JWT
// signer/verifier keyed to a single signer identity (iss == aud == signer).
package token

import (
	"context"
	"errors"
	"sort"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/marcus-qen/jitbroker/internal/activation"
	"github.com/marcus-qen/jitbroker/internal/catalog"
	"github.com/marcus-qen/jitbroker/internal/jiterrors"
	"github.com/marcus-qen/jitbroker/internal/jitid"
	"github.com/marcus-qen/jitbroker/internal/telemetry"
)

// Payload is the canonical, deterministically-ordered JSON shape of an
// ActivationRequest. json tags fix the wire order explicitly since Go's
// encoding/json does not otherwise guarantee it.
type Payload struct {
	Id             string   `json:"id"`
	RequestingUser string   `json:"requestingUser"`
	Reviewers      []string `json:"reviewers"`
	Entitlements   []string `json:"entitlements"`
	Justification  string   `json:"justification"`
	ActivationType string   `json:"activationType"`
	StartTime      int64    `json:"startTime"`
	EndTime        int64    `json:"endTime"`
}

// Canonicalize converts a catalog.Request into its canonical Payload,
// sorting reviewers and entitlement ids for determinism.
func Canonicalize(req catalog.Request) Payload {
	reviewers := make([]string, 0, len(req.Reviewers))
	for _, r := range req.Reviewers {
		reviewers = append(reviewers, r.String())
	}
	sort.Strings(reviewers)

	entitlements := make([]string, 0, len(req.Roles))
	for _, role := range req.Roles {
		entitlements = append(entitlements, role.Id())
	}
	sort.Strings(entitlements)

	return Payload{
		Id:             req.Id,
		RequestingUser: req.RequestingUser.String(),
		Reviewers:      reviewers,
		Entitlements:   entitlements,
		Justification:  req.Justification,
		ActivationType: req.ActivationType.String(),
		StartTime:      req.StartTime.Unix(),
		EndTime:        req.StartTime.Add(req.Duration).Unix(),
	}
}

// ToRequest is the inverse of Canonicalize: it rebuilds a catalog.Request
// from a Payload. Duration is derived from EndTime-StartTime.
func (p Payload) ToRequest() (catalog.Request, error) {
	actType, err := activation.ParseType(p.ActivationType)
	if err != nil {
		return catalog.Request{}, err
	}

	roles := make([]jitid.ProjectRole, 0, len(p.Entitlements))
	for _, id := range p.Entitlements {
		role, err := jitid.ParseProjectRole(id)
		if err != nil {
			return catalog.Request{}, err
		}
		roles = append(roles, role)
	}

	reviewers := make([]jitid.UserId, 0, len(p.Reviewers))
	for _, email := range p.Reviewers {
		reviewers = append(reviewers, jitid.NewUserId(email))
	}

	start := time.Unix(p.StartTime, 0).UTC()
	end := time.Unix(p.EndTime, 0).UTC()

	return catalog.Request{
		Id:             p.Id,
		RequestingUser: jitid.NewUserId(p.RequestingUser),
		Roles:          roles,
		ActivationType: actType,
		Reviewers:      reviewers,
		Justification:  p.Justification,
		StartTime:      start,
		Duration:       end.Sub(start),
	}, nil
}

// Oracle models the external signing boundary: a managed identity's
// signing API (signJwt) plus the URL at which its public keys are
// published for verification (jwksUrl). Signer treats both methods as
// thread-safe black boxes.
type Oracle interface {
	SignJwt(ctx context.Context, serviceAccount string, claims jwt.MapClaims) (string, error)
	JwksUrl(serviceAccount string) string
}

// Signer issues and verifies ProposalTokens for a single signer identity
// (iss == aud == Identity).
type Signer struct {
	Oracle   Oracle
	Identity string
	// KeyFunc resolves the verification key for a parsed, unverified
	// token — in production this fetches the oracle's JWKS; HMACOracle
	// supplies a constant in-process key instead.
	KeyFunc jwt.Keyfunc
}

// Sign produces a JWT carrying the canonicalized payload as custom claims,
// with iat/exp/iss/aud injected.
func (s *Signer) Sign(ctx context.Context, payload Payload, expiry time.Time) (tokenString string, issueTime time.Time, expiryTime time.Time, err error) {
	ctx, span := telemetry.StartSignSpan(ctx, "sign")
	defer span.End()

	issueTime = time.Now().UTC()
	claims := jwt.MapClaims{
		"iss":            s.Identity,
		"aud":            s.Identity,
		"iat":            jwt.NewNumericDate(issueTime),
		"exp":            jwt.NewNumericDate(expiry),
		"id":             payload.Id,
		"requestingUser": payload.RequestingUser,
		"reviewers":      payload.Reviewers,
		"entitlements":   payload.Entitlements,
		"justification":  payload.Justification,
		"activationType": payload.ActivationType,
		"startTime":      payload.StartTime,
		"endTime":        payload.EndTime,
	}
	tokenString, err = s.Oracle.SignJwt(ctx, s.Identity, claims)
	if err != nil {
		return "", time.Time{}, time.Time{}, jiterrors.Wrap(jiterrors.Transient, "sign proposal token", err)
	}
	return tokenString, issueTime, expiry.UTC(), nil
}

// Verify checks the token's signature, issuer, audience, and expiry, and
// extracts the canonical Payload. Any failure is surfaced as a
// TokenVerification error without leaking the underlying detail.
func (s *Signer) Verify(ctx context.Context, tokenString string) (Payload, error) {
	_, span := telemetry.StartSignSpan(ctx, "verify")
	defer span.End()

	parsed, err := jwt.Parse(tokenString, s.KeyFunc, jwt.WithIssuer(s.Identity), jwt.WithAudience(s.Identity), jwt.WithValidMethods(validSigningMethods))
	if err != nil || !parsed.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			telemetry.RecordTokenVerification("expired")
		} else {
			telemetry.RecordTokenVerification("invalid")
		}
		return Payload{}, jiterrors.New(jiterrors.TokenVerification, "proposal token failed verification")
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		telemetry.RecordTokenVerification("invalid")
		return Payload{}, jiterrors.New(jiterrors.TokenVerification, "proposal token carries malformed claims")
	}
	payload, err := payloadFromClaims(claims)
	if err != nil {
		telemetry.RecordTokenVerification("invalid")
		return Payload{}, jiterrors.New(jiterrors.TokenVerification, "proposal token carries malformed claims")
	}
	telemetry.RecordTokenVerification("ok")
	return payload, nil
}

var validSigningMethods = []string{"HS256", "RS256"}

func payloadFromClaims(claims jwt.MapClaims) (Payload, error) {
	reviewers, err := stringSlice(claims["reviewers"])
	if err != nil {
		return Payload{}, err
	}
	entitlements, err := stringSlice(claims["entitlements"])
	if err != nil {
		return Payload{}, err
	}
	startTime, err := number(claims["startTime"])
	if err != nil {
		return Payload{}, err
	}
	endTime, err := number(claims["endTime"])
	if err != nil {
		return Payload{}, err
	}

	id, _ := claims["id"].(string)
	requestingUser, _ := claims["requestingUser"].(string)
	justification, _ := claims["justification"].(string)
	activationType, _ := claims["activationType"].(string)

	return Payload{
		Id:             id,
		RequestingUser: requestingUser,
		Reviewers:      reviewers,
		Entitlements:   entitlements,
		Justification:  justification,
		ActivationType: activationType,
		StartTime:      startTime,
		EndTime:        endTime,
	}, nil
}

func stringSlice(v any) ([]string, error) {
	raw, ok := v.([]any)
	if !ok {
		if v == nil {
			return nil, nil
		}
		return nil, jiterrors.New(jiterrors.TokenVerification, "expected array claim")
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, jiterrors.New(jiterrors.TokenVerification, "expected string array element")
		}
		out = append(out, s)
	}
	return out, nil
}

func number(v any) (int64, error) {
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case int64:
		return n, nil
	default:
		return 0, jiterrors.New(jiterrors.TokenVerification, "expected numeric claim")
	}
}

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

	jwt "github.com/golang-jwt/jwt/v5"
)

// HMACOracle is a self-contained Oracle implementation backed by a shared
// HS256 secret — suitable for single-process deployments and tests where
// there is no separate signing service to delegate to. JwksUrl returns ""
// since HMAC keys are never published; callers configure Signer.KeyFunc to
// return the same secret directly rather than fetching it over HTTP.
type HMACOracle struct {
	Secret []byte
}

// SignJwt implements Oracle.
func (o HMACOracle) SignJwt(ctx context.Context, serviceAccount string, claims jwt.MapClaims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(o.Secret)
}

// JwksUrl implements Oracle.
func (o HMACOracle) JwksUrl(serviceAccount string) string { return "" }

// KeyFunc returns a jwt.Keyfunc that resolves to this oracle's shared
// secret, for use as Signer.KeyFunc.
func (o HMACOracle) KeyFunc(token *jwt.Token) (any, error) {
	return o.Secret, nil
}

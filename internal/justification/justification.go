/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package justification implements the justification policy boundary:
// CheckJustification(user, text) either passes or fails with
// InvalidJustification.
package justification

import (
	"strings"

	"github.com/marcus-qen/jitbroker/internal/jiterrors"
	"github.com/marcus-qen/jitbroker/internal/jitid"
	"github.com/marcus-qen/jitbroker/internal/shared/security"
)

// Policy is the justification-checking boundary the Activator depends on.
type Policy interface {
	CheckJustification(user jitid.UserId, text string) error
}

// DefaultPolicy enforces a minimum length and rejects justification text
// that appears to carry an embedded credential — a requester pasting a
// token or password into the justification field is almost always a
// mistake, not an explanation.
type DefaultPolicy struct {
	// MinLength is the minimum trimmed length of acceptable justification
	// text. Zero falls back to DefaultMinLength.
	MinLength int
}

// DefaultMinLength is used when DefaultPolicy.MinLength is unset.
const DefaultMinLength = 10

// CheckJustification validates the justification text for user. It never
// inspects the user beyond logging/audit purposes — the check is purely on
// the text.
func (p DefaultPolicy) CheckJustification(user jitid.UserId, text string) error {
	trimmed := strings.TrimSpace(text)
	minLen := p.MinLength
	if minLen <= 0 {
		minLen = DefaultMinLength
	}
	if len(trimmed) < minLen {
		return jiterrors.New(jiterrors.InvalidJustification, "justification is too short")
	}
	if security.ContainsSecret(text) {
		return jiterrors.New(jiterrors.InvalidJustification, "justification appears to contain a credential or secret")
	}
	return nil
}

/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package activation defines the ActivationType closed sum type and the
// topic-wildcard matching rule shared by the catalog, activator, and
// condition classifier.
package activation

import (
	"fmt"
	"strings"

	"github.com/marcus-qen/jitbroker/internal/jiterrors"
)

// Variant enumerates the activation-type kinds. A Variant is never used on
// its own — always paired with a Type{Variant, Topic} — so callers cannot
// forget the topic dimension.
type Variant string

const (
	// SelfApproval is JIT: the requester activates their own eligibility.
	SelfApproval Variant = "self_approval"
	// PeerApproval is MPA: a peer holding a matching PeerApproval privilege
	// on the same role approves.
	PeerApproval Variant = "peer_approval"
	// ExternalApproval is MPA via an out-of-band reviewer pool.
	ExternalApproval Variant = "external_approval"
	// None means not eligible for activation at all.
	None Variant = "none"
)

// Type is an activation type: a Variant plus an optional Topic. Topic only
// carries meaning for PeerApproval and ExternalApproval; SelfApproval and
// None always carry an empty Topic.
type Type struct {
	Variant Variant
	Topic   string // "" is the wildcard sentinel ("any topic")
}

// Self returns the SelfApproval activation type.
func Self() Type { return Type{Variant: SelfApproval} }

// Peer returns a PeerApproval activation type for the given topic ("" for
// the wildcard).
func Peer(topic string) Type { return Type{Variant: PeerApproval, Topic: topic} }

// External returns an ExternalApproval activation type for the given topic.
func External(topic string) Type { return Type{Variant: ExternalApproval, Topic: topic} }

// NoneType returns the "not eligible" sentinel.
func NoneType() Type { return Type{Variant: None} }

// RequiresReviewers reports whether this activation type needs one or more
// reviewers distinct from the requester.
func (t Type) RequiresReviewers() bool {
	return t.Variant == PeerApproval || t.Variant == ExternalApproval
}

// Matches implements the topic-wildcard rule: two activation types match
// iff they are the same Variant AND (either both topics are empty, or the
// topics are equal case-sensitively). An empty stored topic matches any
// requested topic — this method is NOT symmetric in general use: call
// `stored.Matches(requested)`.
func (t Type) Matches(requested Type) bool {
	if t.Variant != requested.Variant {
		return false
	}
	if t.Topic == "" {
		return true
	}
	return t.Topic == requested.Topic
}

func (t Type) String() string {
	if t.Topic == "" {
		return string(t.Variant)
	}
	return fmt.Sprintf("%s(%s)", t.Variant, t.Topic)
}

// IsNone reports whether this is the "not eligible" sentinel.
func (t Type) IsNone() bool { return t.Variant == None }

// ParseType is the inverse of Type.String(), used by the token canonical
// form to round-trip the activation type through a JSON-safe string.
func ParseType(s string) (Type, error) {
	variant := s
	topic := ""
	if idx := strings.IndexByte(s, '('); idx >= 0 && strings.HasSuffix(s, ")") {
		variant = s[:idx]
		topic = s[idx+1 : len(s)-1]
	}
	switch Variant(variant) {
	case SelfApproval, PeerApproval, ExternalApproval, None:
		return Type{Variant: Variant(variant), Topic: topic}, nil
	default:
		return Type{}, jiterrors.New(jiterrors.MalformedRequest, fmt.Sprintf("unrecognized activation type %q", s))
	}
}

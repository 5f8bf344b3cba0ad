/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package gcpboundary

import "testing"

type roundTripPayload struct {
	Name    string   `json:"name"`
	Count   int      `json:"count"`
	Tags    []string `json:"tags,omitempty"`
	Nested  *roundTripNested `json:"nested,omitempty"`
}

type roundTripNested struct {
	Flag bool `json:"flag"`
}

func TestToStructFromStructRoundTrip(t *testing.T) {
	in := roundTripPayload{
		Name:   "project-1",
		Count:  3,
		Tags:   []string{"a", "b"},
		Nested: &roundTripNested{Flag: true},
	}

	s, err := toStruct(in)
	if err != nil {
		t.Fatalf("toStruct: %v", err)
	}

	var out roundTripPayload
	if err := fromStruct(s, &out); err != nil {
		t.Fatalf("fromStruct: %v", err)
	}

	if out.Name != in.Name || out.Count != in.Count || len(out.Tags) != len(in.Tags) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, in)
	}
	if out.Nested == nil || out.Nested.Flag != true {
		t.Fatalf("nested field lost in round trip: got %+v", out.Nested)
	}
}

func TestToStructNil(t *testing.T) {
	s, err := toStruct(nil)
	if err != nil {
		t.Fatalf("toStruct(nil): %v", err)
	}
	if len(s.AsMap()) != 0 {
		t.Fatalf("expected empty struct for nil payload, got %+v", s.AsMap())
	}
}

func TestFromStructEmptyOmitsOptionalFields(t *testing.T) {
	s, err := toStruct(map[string]any{"name": "x"})
	if err != nil {
		t.Fatalf("toStruct: %v", err)
	}

	var out roundTripPayload
	if err := fromStruct(s, &out); err != nil {
		t.Fatalf("fromStruct: %v", err)
	}
	if out.Name != "x" {
		t.Fatalf("expected name to round trip, got %q", out.Name)
	}
	if out.Nested != nil {
		t.Fatalf("expected nested to stay nil, got %+v", out.Nested)
	}
}

/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package gcpboundary wires the broker's external boundary interfaces —
// policy analyzer, asset inventory, directory, resource manager, policy
// mutator — to a single gRPC endpoint. None of these boundaries has a
// vendored generated client in this module, so every call crosses the
// wire as a protobuf Struct keyed the same way the backend's REST/JSON
// surface documents its payloads — the generic shape
// google.golang.org/protobuf ships for exactly this purpose.
package gcpboundary

import (
	"context"
	"encoding/json"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/credentials/oauth"
	"google.golang.org/protobuf/types/known/structpb"
)

// DialOptions configures the shared connection every boundary client in
// this package rides on.
type DialOptions struct {
	// Endpoint is the host:port of the gRPC front door fronting the
	// policy-analyzer, asset-inventory, directory, resource-manager and
	// policy-mutator services.
	Endpoint string
	// Scopes are the OAuth2 scopes requested for the default application
	// credentials token source. Defaults to cloud-platform when empty.
	Scopes []string
	// TokenSource overrides the default application-credentials lookup —
	// tests supply a static source here.
	TokenSource oauth2.TokenSource
	// Insecure skips TLS, for talking to a local test double.
	Insecure bool
}

// Dial opens the shared connection. Every per-RPC call is authenticated
// with an OAuth2 bearer token from TokenSource (or Application Default
// Credentials when unset).
func Dial(ctx context.Context, opts DialOptions) (*grpc.ClientConn, error) {
	ts := opts.TokenSource
	if ts == nil {
		scopes := opts.Scopes
		if len(scopes) == 0 {
			scopes = []string{"https://www.googleapis.com/auth/cloud-platform"}
		}
		creds, err := google.FindDefaultCredentials(ctx, scopes...)
		if err != nil {
			return nil, err
		}
		ts = creds.TokenSource
	}

	var transportCreds credentials.TransportCredentials
	if opts.Insecure {
		transportCreds = insecure.NewCredentials()
	} else {
		transportCreds = credentials.NewTLS(nil)
	}

	return grpc.NewClient(opts.Endpoint,
		grpc.WithTransportCredentials(transportCreds),
		grpc.WithPerRPCCredentials(oauth.TokenSource{TokenSource: ts}),
	)
}

// invoke marshals req through JSON into a protobuf Struct, calls method
// on conn, and unmarshals the reply Struct back through JSON into resp.
// req/resp may be nil when a call takes or returns no payload.
func invoke(ctx context.Context, conn *grpc.ClientConn, method string, req, resp any) error {
	reqStruct, err := toStruct(req)
	if err != nil {
		return err
	}

	var respStruct structpb.Struct
	if err := conn.Invoke(ctx, method, reqStruct, &respStruct); err != nil {
		return err
	}
	if resp == nil {
		return nil
	}
	return fromStruct(&respStruct, resp)
}

func toStruct(v any) (*structpb.Struct, error) {
	if v == nil {
		return structpb.NewStruct(nil)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	m := make(map[string]any)
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func fromStruct(s *structpb.Struct, v any) error {
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

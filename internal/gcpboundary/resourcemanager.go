/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package gcpboundary

import (
	"context"

	"google.golang.org/grpc"

	"github.com/marcus-qen/jitbroker/internal/catalog"
	"github.com/marcus-qen/jitbroker/internal/jitid"
)

const methodSearchProjectIds = "/google.cloud.resourcemanager.v3.Projects/SearchProjects"

// ResourceManager implements catalog.ResourceManager against the resource
// manager gRPC boundary.
type ResourceManager struct {
	Conn *grpc.ClientConn
}

var _ catalog.ResourceManager = (*ResourceManager)(nil)

type searchProjectsRequest struct {
	Query string `json:"query"`
}

type searchProjectsResponse struct {
	ProjectIds []string `json:"projectIds"`
}

// SearchProjectIds implements catalog.ResourceManager.
func (r *ResourceManager) SearchProjectIds(ctx context.Context, query string) ([]jitid.ProjectId, error) {
	req := searchProjectsRequest{Query: query}
	var resp searchProjectsResponse
	if err := invoke(ctx, r.Conn, methodSearchProjectIds, req, &resp); err != nil {
		return nil, err
	}
	out := make([]jitid.ProjectId, 0, len(resp.ProjectIds))
	for _, id := range resp.ProjectIds {
		out = append(out, jitid.NewProjectId(id))
	}
	return out, nil
}

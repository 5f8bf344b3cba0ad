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

	"github.com/marcus-qen/jitbroker/internal/jitid"
	"github.com/marcus-qen/jitbroker/internal/repository"
	"github.com/marcus-qen/jitbroker/internal/repository/assetinventory"
)

const methodGetEffectiveIamPolicies = "/google.cloud.asset.v1.AssetService/BatchGetEffectiveIamPolicies"

// AssetInventoryClient implements assetinventory.Client against the asset
// inventory gRPC boundary.
type AssetInventoryClient struct {
	Conn *grpc.ClientConn
}

var _ assetinventory.Client = (*AssetInventoryClient)(nil)

type effectiveIamPoliciesRequest struct {
	Scope   string `json:"scope"`
	Project string `json:"project"`
}

type wirePolicyInfo struct {
	AttachedResource string        `json:"attachedResource"`
	Bindings         []wireBinding `json:"bindings"`
}

type effectiveIamPoliciesResponse struct {
	Policies []wirePolicyInfo `json:"policies"`
}

// GetEffectiveIamPolicies implements assetinventory.Client.
func (c *AssetInventoryClient) GetEffectiveIamPolicies(ctx context.Context, scope string, project jitid.ProjectId) ([]assetinventory.PolicyInfo, error) {
	req := effectiveIamPoliciesRequest{Scope: scope, Project: project.FullResourceName()}
	var resp effectiveIamPoliciesResponse
	if err := invoke(ctx, c.Conn, methodGetEffectiveIamPolicies, req, &resp); err != nil {
		return nil, err
	}

	out := make([]assetinventory.PolicyInfo, 0, len(resp.Policies))
	for _, p := range resp.Policies {
		info := assetinventory.PolicyInfo{AttachedResource: p.AttachedResource}
		for _, b := range p.Bindings {
			binding := repository.Binding{Role: b.Role, Members: b.Members}
			if b.Condition != nil {
				binding.Condition = &repository.Condition{Title: b.Condition.Title, Expression: b.Condition.Expression}
			}
			info.Bindings = append(info.Bindings, binding)
		}
		out = append(out, info)
	}
	return out, nil
}

const (
	methodListDirectGroupMemberships = "/admin.directory_v1.Members/ListGroupsForMember"
	methodListDirectGroupMembers     = "/admin.directory_v1.Members/ListMembers"
)

// DirectoryClient implements assetinventory.Directory against the
// directory gRPC boundary.
type DirectoryClient struct {
	Conn *grpc.ClientConn
}

var _ assetinventory.Directory = (*DirectoryClient)(nil)

type listGroupMembershipsRequest struct {
	User string `json:"user"`
}

type listGroupMembershipsResponse struct {
	Groups []string `json:"groups"`
}

type listGroupMembersRequest struct {
	Group string `json:"group"`
}

type listGroupMembersResponse struct {
	Members []string `json:"members"`
}

// ListDirectGroupMemberships implements assetinventory.Directory.
func (c *DirectoryClient) ListDirectGroupMemberships(ctx context.Context, user jitid.UserId) ([]string, error) {
	req := listGroupMembershipsRequest{User: user.String()}
	var resp listGroupMembershipsResponse
	if err := invoke(ctx, c.Conn, methodListDirectGroupMemberships, req, &resp); err != nil {
		return nil, err
	}
	return resp.Groups, nil
}

// ListDirectGroupMembers implements assetinventory.Directory.
func (c *DirectoryClient) ListDirectGroupMembers(ctx context.Context, group string) ([]string, error) {
	req := listGroupMembersRequest{Group: group}
	var resp listGroupMembersResponse
	if err := invoke(ctx, c.Conn, methodListDirectGroupMembers, req, &resp); err != nil {
		return nil, err
	}
	return resp.Members, nil
}

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
	"github.com/marcus-qen/jitbroker/internal/repository/analyzer"
)

const (
	methodFindAccessibleResourcesByUser       = "/google.cloud.policyanalyzer.v1.PolicyAnalyzer/FindAccessibleResourcesByUser"
	methodFindPermissionedPrincipalsByResource = "/google.cloud.policyanalyzer.v1.PolicyAnalyzer/FindPermissionedPrincipalsByResource"
)

// AnalyzerClient implements analyzer.Client against the policy-analyzer
// gRPC boundary.
type AnalyzerClient struct {
	Conn *grpc.ClientConn
}

var _ analyzer.Client = (*AnalyzerClient)(nil)

type findAccessibleResourcesRequest struct {
	Scope            string `json:"scope"`
	User             string `json:"user"`
	PermissionFilter string `json:"permissionFilter,omitempty"`
	ResourceFilter   string `json:"resourceFilter,omitempty"`
	ExpandGroups     bool   `json:"expandGroups"`
}

type findPermissionedPrincipalsRequest struct {
	Scope      string `json:"scope"`
	Resource   string `json:"resource"`
	Permission string `json:"permission"`
}

type wireCondition struct {
	Title      string `json:"title"`
	Expression string `json:"expression"`
}

type wireBinding struct {
	Role      string         `json:"role"`
	Members   []string       `json:"members"`
	Condition *wireCondition `json:"condition,omitempty"`
}

type wireACLEntry struct {
	FullResourceName string `json:"fullResourceName"`
	Verdict          string `json:"verdict"`
}

type wireIdentityList struct {
	Users           []string            `json:"users,omitempty"`
	Groups          []string            `json:"groups,omitempty"`
	ServiceAccounts []string            `json:"serviceAccounts,omitempty"`
	GroupMembers    map[string][]string `json:"groupMembers,omitempty"`
}

type wireAnalysisResult struct {
	AttachedResource string            `json:"attachedResource"`
	Binding          wireBinding       `json:"binding"`
	ACL              []wireACLEntry    `json:"acl,omitempty"`
	Identities       *wireIdentityList `json:"identities,omitempty"`
}

type wireAnalysisResponse struct {
	Results  []wireAnalysisResult `json:"results"`
	Warnings []string             `json:"warnings,omitempty"`
}

// FindAccessibleResourcesByUser implements analyzer.Client.
func (c *AnalyzerClient) FindAccessibleResourcesByUser(ctx context.Context, scope string, user jitid.UserId, permissionFilter, resourceFilter string, expandGroups bool) (*analyzer.AnalysisResponse, error) {
	req := findAccessibleResourcesRequest{
		Scope:            scope,
		User:             user.String(),
		PermissionFilter: permissionFilter,
		ResourceFilter:   resourceFilter,
		ExpandGroups:     expandGroups,
	}
	var resp wireAnalysisResponse
	if err := invoke(ctx, c.Conn, methodFindAccessibleResourcesByUser, req, &resp); err != nil {
		return nil, err
	}
	return resp.toDomain(), nil
}

// FindPermissionedPrincipalsByResource implements analyzer.Client.
func (c *AnalyzerClient) FindPermissionedPrincipalsByResource(ctx context.Context, scope, resource, permission string) (*analyzer.AnalysisResponse, error) {
	req := findPermissionedPrincipalsRequest{Scope: scope, Resource: resource, Permission: permission}
	var resp wireAnalysisResponse
	if err := invoke(ctx, c.Conn, methodFindPermissionedPrincipalsByResource, req, &resp); err != nil {
		return nil, err
	}
	return resp.toDomain(), nil
}

func (w wireAnalysisResponse) toDomain() *analyzer.AnalysisResponse {
	out := &analyzer.AnalysisResponse{Warnings: w.Warnings}
	for _, r := range w.Results {
		result := analyzer.AnalysisResult{
			AttachedResource: r.AttachedResource,
			Binding: repository.Binding{
				Role:    r.Binding.Role,
				Members: r.Binding.Members,
			},
		}
		if r.Binding.Condition != nil {
			result.Binding.Condition = &repository.Condition{
				Title:      r.Binding.Condition.Title,
				Expression: r.Binding.Condition.Expression,
			}
		}
		for _, a := range r.ACL {
			result.ACL = append(result.ACL, repository.ACLEntry{
				FullResourceName: a.FullResourceName,
				Verdict:          repository.Verdict(a.Verdict),
			})
		}
		if r.Identities != nil {
			result.Identities = &repository.IdentityList{
				Users:           r.Identities.Users,
				Groups:          r.Identities.Groups,
				ServiceAccounts: r.Identities.ServiceAccounts,
				GroupMembers:    r.Identities.GroupMembers,
			}
		}
		out.Results = append(out.Results, result)
	}
	return out
}

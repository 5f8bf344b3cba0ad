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

	"github.com/marcus-qen/jitbroker/internal/activator"
	"github.com/marcus-qen/jitbroker/internal/jitid"
)

const methodAddProjectIamBinding = "/google.iam.v1.IAMPolicy/AddProjectIamBinding"

// PolicyMutator implements activator.PolicyMutator against the policy
// mutation gRPC boundary.
type PolicyMutator struct {
	Conn *grpc.ClientConn
}

var _ activator.PolicyMutator = (*PolicyMutator)(nil)

type addProjectIamBindingRequest struct {
	Project             string   `json:"project"`
	Member              string   `json:"member"`
	Role                string   `json:"role"`
	ConditionTitle      string   `json:"conditionTitle"`
	ConditionExpression string   `json:"conditionExpression"`
	Description         string   `json:"description"`
	Options             []string `json:"options,omitempty"`
}

// AddProjectIamBinding implements activator.PolicyMutator.
func (m *PolicyMutator) AddProjectIamBinding(ctx context.Context, project jitid.ProjectId, binding activator.ConditionalBinding, options []activator.MutateOption) error {
	opts := make([]string, 0, len(options))
	for _, o := range options {
		opts = append(opts, string(o))
	}
	req := addProjectIamBindingRequest{
		Project:             project.FullResourceName(),
		Member:              binding.Member,
		Role:                binding.Role,
		ConditionTitle:      binding.ConditionTitle,
		ConditionExpression: binding.ConditionExpression,
		Description:         binding.Description,
		Options:             opts,
	}
	return invoke(ctx, m.Conn, methodAddProjectIamBinding, req, nil)
}

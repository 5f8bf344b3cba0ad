/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package activator builds and executes activation requests: composing
// the temporal policy condition, applying the conditional binding through
// the policy mutator, and enforcing the catalog's authorization checks
// ahead of provisioning.
package activator

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/marcus-qen/jitbroker/internal/activation"
	"github.com/marcus-qen/jitbroker/internal/catalog"
	"github.com/marcus-qen/jitbroker/internal/entitlement"
	"github.com/marcus-qen/jitbroker/internal/jiterrors"
	"github.com/marcus-qen/jitbroker/internal/jitid"
	"github.com/marcus-qen/jitbroker/internal/justification"
	"github.com/marcus-qen/jitbroker/internal/shared/ratelimit"
	"github.com/marcus-qen/jitbroker/internal/telemetry"
)

// activationSentinelTitle mirrors condition.activationSentinelTitle — kept
// as its own constant here since this package never imports condition's
// parser (provisioning only ever writes this title, never parses it).
const activationSentinelTitle = "JIT access"

// MutateOption is a boolean flag passed to the policy mutator.
type MutateOption string

// PurgeExistingTemporaryBindings atomically removes any pre-existing
// binding on the (member, role) pair whose condition title is the
// activation sentinel, before applying the new one.
const PurgeExistingTemporaryBindings MutateOption = "PURGE_EXISTING_TEMPORARY_BINDINGS"

// ConditionalBinding is the IAM binding the mutator is asked to apply.
type ConditionalBinding struct {
	Member              string
	Role                string
	ConditionTitle      string
	ConditionExpression string
	Description         string
}

// PolicyMutator is the external policy-mutation boundary.
type PolicyMutator interface {
	AddProjectIamBinding(ctx context.Context, project jitid.ProjectId, binding ConditionalBinding, options []MutateOption) error
}

// Activation is the result of a successful provisioning pass.
type Activation struct {
	Request       catalog.Request
	Window        entitlement.Window
	ProvisionedAt time.Time
}

// Activator builds and provisions activation requests.
type Activator struct {
	Catalog       *catalog.Catalog
	Justification justification.Policy
	Mutator       PolicyMutator
	// RateLimiter throttles activations per requesting user as a guard
	// against runaway or abusive request volume. Nil disables throttling
	// (the zero value is a valid, permissive Activator for tests and for
	// deployments that front the broker with their own quota layer).
	RateLimiter *ratelimit.Limiter
	// Logger defaults to logr.Discard() when unset.
	Logger logr.Logger
	// Now defaults to time.Now when nil; overridable for deterministic tests.
	Now func() time.Time
}

func (a *Activator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *Activator) logger() logr.Logger {
	if a.Logger.GetSink() == nil {
		return logr.Discard()
	}
	return a.Logger
}

// CreateJitRequest builds a self-approval request with no reviewers and a
// freshly minted opaque id.
func (a *Activator) CreateJitRequest(user jitid.UserId, roles []jitid.ProjectRole, just string, startTime time.Time, duration time.Duration) catalog.Request {
	return catalog.Request{
		Id:             uuid.NewString(),
		RequestingUser: user,
		Roles:          roles,
		ActivationType: activation.Self(),
		Justification:  just,
		StartTime:      startTime,
		Duration:       duration,
	}
}

// CreateMpaRequest builds an MPA request (peer or external approval, as
// determined by actType) carrying a non-empty reviewer set.
func (a *Activator) CreateMpaRequest(user jitid.UserId, roles []jitid.ProjectRole, reviewers []jitid.UserId, actType activation.Type, just string, startTime time.Time, duration time.Duration) catalog.Request {
	return catalog.Request{
		Id:             uuid.NewString(),
		RequestingUser: user,
		Roles:          roles,
		ActivationType: actType,
		Reviewers:      reviewers,
		Justification:  just,
		StartTime:      startTime,
		Duration:       duration,
	}
}

// Activate runs the self-approval (JIT) flow: the caller must be the
// requesting user; the justification must pass policy; the catalog must
// authorize the request; then provisioning proceeds.
func (a *Activator) Activate(ctx context.Context, userCtx jitid.UserId, req catalog.Request) (*Activation, error) {
	if !userCtx.Equal(req.RequestingUser) {
		return nil, jiterrors.New(jiterrors.AccessDenied, "activating user does not match the requesting user")
	}
	if err := a.Justification.CheckJustification(req.RequestingUser, req.Justification); err != nil {
		return nil, err
	}
	if err := a.Catalog.VerifyUserCanRequest(ctx, req); err != nil {
		return nil, err
	}
	description := fmt.Sprintf("Self-approved, justification: %s", req.Justification)
	return a.provision(ctx, req, description)
}

// Approve runs the multi-party-approval flow: the justification must still
// pass policy, and the catalog must authorize approver as a valid reviewer
// for every role in the request.
func (a *Activator) Approve(ctx context.Context, approver jitid.UserId, req catalog.Request) (*Activation, error) {
	if err := a.Justification.CheckJustification(req.RequestingUser, req.Justification); err != nil {
		return nil, err
	}
	if err := a.Catalog.VerifyUserCanApprove(ctx, approver, req); err != nil {
		return nil, err
	}
	description := fmt.Sprintf("Approved by %s, justification: %s", approver.String(), req.Justification)
	return a.provision(ctx, req, description)
}

// provision composes the temporal expression, wraps any per-role resource
// sub-condition, builds and applies one conditional binding per role, and
// aggregates partial failures rather than rolling back.
func (a *Activator) provision(ctx context.Context, req catalog.Request, description string) (result *Activation, err error) {
	activationType := req.ActivationType.String()
	ctx, span := telemetry.StartActivationSpan(ctx, activationType, len(req.Roles))
	started := a.now()
	outcome := "provisioned"
	defer func() {
		telemetry.RecordActivation(activationType, outcome, a.now().Sub(started))
		telemetry.EndActivationSpan(span, outcome)
	}()

	if a.RateLimiter != nil {
		userKey := req.RequestingUser.String()
		if d := a.RateLimiter.Allow(userKey); !d.Allowed {
			outcome = "denied"
			return nil, jiterrors.New(jiterrors.RateLimited, d.Reason)
		}
		a.RateLimiter.RecordStart(userKey)
		defer a.RateLimiter.RecordComplete(userKey)
	}

	start := req.StartTime.UTC()
	end := start.Add(req.Duration)
	temporal := fmt.Sprintf(`(request.time >= timestamp("%s") && request.time < timestamp("%s"))`,
		start.Format(time.RFC3339), end.Format(time.RFC3339))

	var errs []error
	for _, role := range req.Roles {
		expression := temporal
		if role.ResourceCondition != "" {
			expression = fmt.Sprintf("(%s) && (%s)", temporal, role.ResourceCondition)
		}
		binding := ConditionalBinding{
			Member:              req.RequestingUser.Member(),
			Role:                role.Role,
			ConditionTitle:      activationSentinelTitle,
			ConditionExpression: expression,
			Description:         description,
		}
		mutateCtx, mutateSpan := telemetry.StartMutatorApplySpan(ctx, role.ProjectId.String(), role.Role)
		mutateErr := a.Mutator.AddProjectIamBinding(mutateCtx, role.ProjectId, binding, []MutateOption{PurgeExistingTemporaryBindings})
		mutateSpan.End()
		if mutateErr != nil {
			a.logger().Error(mutateErr, "mutator apply failed", "role", role.Id(), "requestId", req.Id)
			errs = append(errs, fmt.Errorf("role %s: %w", role.Id(), mutateErr))
		}
	}
	if len(errs) > 0 {
		outcome = "aggregate_failure"
		return nil, jiterrors.NewAggregate(errs)
	}

	a.logger().Info("provisioned activation", "requestId", req.Id, "user", req.RequestingUser.String(), "roleCount", len(req.Roles))
	return &Activation{
		Request:       req,
		Window:        entitlement.Window{Start: start, End: end},
		ProvisionedAt: a.now(),
	}, nil
}

/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package proposal implements the MPA proposal handler: mint a
// ProposalToken for an MPA request, hand it off to reviewers through the
// notification sink, and on approval callback verify the token and drive
// the activator to provision.
package proposal

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/marcus-qen/jitbroker/internal/activator"
	"github.com/marcus-qen/jitbroker/internal/catalog"
	"github.com/marcus-qen/jitbroker/internal/jiterrors"
	"github.com/marcus-qen/jitbroker/internal/jitid"
	"github.com/marcus-qen/jitbroker/internal/notify"
	"github.com/marcus-qen/jitbroker/internal/token"
)

// Handler mediates between an MPA request and its eventual approval.
type Handler struct {
	Signer    *token.Signer
	Notifier  notify.Sink
	Activator *activator.Activator

	// Timeout is how long a minted proposal token remains valid: its
	// expiry is always now + Timeout.
	Timeout time.Duration

	// ApprovalBaseURL is the externally reachable approval endpoint; the
	// token string is appended as a query parameter in the notification.
	ApprovalBaseURL string

	// Sweeper tracks minted proposals for expiry reporting. Nil disables
	// tracking.
	Sweeper *Sweeper

	// Logger defaults to logr.Discard() when unset.
	Logger logr.Logger

	// Now defaults to time.Now when nil; overridable for deterministic tests.
	Now func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handler) logger() logr.Logger {
	if h.Logger.GetSink() == nil {
		return logr.Discard()
	}
	return h.Logger
}

// Propose mints a ProposalToken for req and notifies its reviewers,
// CCing the requester.
func (h *Handler) Propose(ctx context.Context, req catalog.Request) (tokenString string, err error) {
	if !req.ActivationType.RequiresReviewers() {
		return "", jiterrors.New(jiterrors.MalformedRequest, "proposal handler only mediates MPA requests")
	}
	if len(req.Reviewers) == 0 {
		return "", jiterrors.New(jiterrors.MalformedRequest, "MPA request carries no reviewers")
	}

	payload := token.Canonicalize(req)
	expiry := h.now().Add(h.Timeout)
	tokenString, _, _, err = h.Signer.Sign(ctx, payload, expiry)
	if err != nil {
		return "", err
	}

	to := make([]string, 0, len(req.Reviewers))
	for _, r := range req.Reviewers {
		to = append(to, r.String())
	}
	subject := fmt.Sprintf("Access request pending approval: %s", req.Justification)
	approvalURL := fmt.Sprintf("%s?token=%s", h.ApprovalBaseURL, tokenString)
	body := fmt.Sprintf(
		"<p>%s has requested activation of %d role(s).</p><p>Justification: %s</p><p><a href=\"%s\">Review this request</a></p>",
		req.RequestingUser.String(), len(req.Roles), req.Justification, approvalURL,
	)
	flags := map[string]string{
		"proposal_id":  req.Id,
		"approval_url": approvalURL,
	}
	if err := h.Notifier.SendMail(ctx, to, []string{req.RequestingUser.String()}, subject, body, flags); err != nil {
		return "", jiterrors.Wrap(jiterrors.Transient, "send proposal notification", err)
	}

	if h.Sweeper != nil {
		h.Sweeper.Track(req.Id, req.RequestingUser.String(), expiry)
	}

	h.logger().Info("proposal sent", "requestId", req.Id, "reviewerCount", len(req.Reviewers))
	return tokenString, nil
}

// HandleApprovalCallback verifies the token, reconstructs the request,
// invokes Activator.Approve, and notifies both parties of the outcome.
func (h *Handler) HandleApprovalCallback(ctx context.Context, approver jitid.UserId, tokenString string) (*activator.Activation, error) {
	payload, err := h.Signer.Verify(ctx, tokenString)
	if err != nil {
		return nil, err
	}
	req, err := payload.ToRequest()
	if err != nil {
		return nil, err
	}

	result, err := h.Activator.Approve(ctx, approver, req)
	if err != nil {
		return nil, err
	}
	if h.Sweeper != nil {
		h.Sweeper.Resolve(req.Id)
	}

	subject := fmt.Sprintf("Access request approved: %s", req.Justification)
	body := fmt.Sprintf("<p>%s approved activation of %d role(s) for %s.</p>", approver.String(), len(req.Roles), req.RequestingUser.String())
	flags := map[string]string{"proposal_id": req.Id}
	recipients := []string{req.RequestingUser.String(), approver.String()}
	if notifyErr := h.Notifier.SendMail(ctx, recipients, nil, subject, body, flags); notifyErr != nil {
		h.logger().Error(notifyErr, "approval notification failed", "requestId", req.Id)
		return result, jiterrors.Wrap(jiterrors.Transient, "send approval notification", notifyErr)
	}

	h.logger().Info("proposal approved", "requestId", req.Id, "approver", approver.String())
	return result, nil
}

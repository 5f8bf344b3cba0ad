/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/marcus-qen/jitbroker/internal/activation"
	"github.com/marcus-qen/jitbroker/internal/activator"
	"github.com/marcus-qen/jitbroker/internal/catalog"
	"github.com/marcus-qen/jitbroker/internal/entitlement"
	"github.com/marcus-qen/jitbroker/internal/jiterrors"
	"github.com/marcus-qen/jitbroker/internal/jitid"
	"github.com/marcus-qen/jitbroker/internal/proposal"
)

// api holds the wired core the HTTP handlers delegate to.
type api struct {
	catalog   *catalog.Catalog
	activator *activator.Activator
	proposal  *proposal.Handler
}

func registerRoutes(mux *http.ServeMux, a *api) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": version, "commit": commit, "date": date})
	})
	mux.Handle("GET /metrics", metricsHandler())

	mux.HandleFunc("GET /api/v1/scopes", a.handleListScopes)
	mux.HandleFunc("GET /api/v1/entitlements", a.handleListEntitlements)
	mux.HandleFunc("GET /api/v1/reviewers", a.handleListReviewers)
	mux.HandleFunc("POST /api/v1/requests/self", a.handleActivateSelf)
	mux.HandleFunc("POST /api/v1/requests/mpa", a.handlePropose)
	mux.HandleFunc("POST /api/v1/approvals/decide", a.handleApprove)
}

func (a *api) handleListScopes(w http.ResponseWriter, r *http.Request) {
	user := jitid.NewUserId(r.URL.Query().Get("user"))
	if user.String() == "" {
		writeError(w, jiterrors.New(jiterrors.MalformedRequest, "user query parameter is required"))
		return
	}
	scopes, err := a.catalog.ListScopes(r.Context(), user)
	if err != nil {
		writeError(w, err)
		return
	}
	ids := make([]string, 0, len(scopes))
	for _, s := range scopes {
		ids = append(ids, s.String())
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": ids})
}

func (a *api) handleListEntitlements(w http.ResponseWriter, r *http.Request) {
	user := jitid.NewUserId(r.URL.Query().Get("user"))
	project := jitid.NewProjectId(r.URL.Query().Get("project"))
	if user.String() == "" || project.String() == "" {
		writeError(w, jiterrors.New(jiterrors.MalformedRequest, "user and project query parameters are required"))
		return
	}

	requester, err := a.catalog.ListRequesterPrivileges(r.Context(), user, project)
	if err != nil {
		writeError(w, err)
		return
	}
	reviewer, err := a.catalog.ListReviewerPrivileges(r.Context(), user, project)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"requester": privilegesJSON(requester),
		"reviewer":  privilegesJSON(reviewer),
	})
}

func (a *api) handleListReviewers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	user := jitid.NewUserId(q.Get("user"))
	role, err := jitid.ParseProjectRole(q.Get("role"))
	if err != nil {
		writeError(w, jiterrors.Wrap(jiterrors.MalformedRequest, "invalid role id", err))
		return
	}
	actType, err := activation.ParseType(q.Get("activationType"))
	if err != nil {
		writeError(w, jiterrors.Wrap(jiterrors.MalformedRequest, "invalid activation type", err))
		return
	}

	holders, err := a.catalog.ListReviewers(r.Context(), user, role, actType)
	if err != nil {
		writeError(w, err)
		return
	}
	emails := make([]string, 0, len(holders))
	for _, h := range holders {
		emails = append(emails, h.String())
	}
	writeJSON(w, http.StatusOK, map[string]any{"reviewers": emails})
}

// requestBody is the wire shape of a self or MPA activation request.
type requestBody struct {
	User          string   `json:"user"`
	Roles         []string `json:"roles"`
	Reviewers     []string `json:"reviewers,omitempty"`
	ActivationType string  `json:"activationType,omitempty"`
	Justification string   `json:"justification"`
	StartTime     time.Time `json:"startTime"`
	Duration      string   `json:"duration"`
}

func (b requestBody) parseRoles() ([]jitid.ProjectRole, error) {
	roles := make([]jitid.ProjectRole, 0, len(b.Roles))
	for _, id := range b.Roles {
		role, err := jitid.ParseProjectRole(id)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, nil
}

func (a *api) handleActivateSelf(w http.ResponseWriter, r *http.Request) {
	var body requestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, jiterrors.Wrap(jiterrors.MalformedRequest, "decode request body", err))
		return
	}
	roles, err := body.parseRoles()
	if err != nil {
		writeError(w, jiterrors.Wrap(jiterrors.MalformedRequest, "invalid role id", err))
		return
	}
	duration, err := time.ParseDuration(body.Duration)
	if err != nil {
		writeError(w, jiterrors.Wrap(jiterrors.MalformedRequest, "invalid duration", err))
		return
	}

	user := jitid.NewUserId(body.User)
	req := a.activator.CreateJitRequest(user, roles, body.Justification, body.StartTime, duration)
	result, err := a.activator.Activate(r.Context(), user, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, activationJSON(result))
}

func (a *api) handlePropose(w http.ResponseWriter, r *http.Request) {
	var body requestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, jiterrors.Wrap(jiterrors.MalformedRequest, "decode request body", err))
		return
	}
	roles, err := body.parseRoles()
	if err != nil {
		writeError(w, jiterrors.Wrap(jiterrors.MalformedRequest, "invalid role id", err))
		return
	}
	duration, err := time.ParseDuration(body.Duration)
	if err != nil {
		writeError(w, jiterrors.Wrap(jiterrors.MalformedRequest, "invalid duration", err))
		return
	}
	actType, err := activation.ParseType(body.ActivationType)
	if err != nil {
		writeError(w, jiterrors.Wrap(jiterrors.MalformedRequest, "invalid activation type", err))
		return
	}

	reviewers := make([]jitid.UserId, 0, len(body.Reviewers))
	for _, email := range body.Reviewers {
		reviewers = append(reviewers, jitid.NewUserId(email))
	}

	user := jitid.NewUserId(body.User)
	req := a.activator.CreateMpaRequest(user, roles, reviewers, actType, body.Justification, body.StartTime, duration)
	if err := a.catalog.VerifyUserCanRequest(r.Context(), req); err != nil {
		writeError(w, err)
		return
	}

	tokenString, err := a.proposal.Propose(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"requestId": req.Id, "token": tokenString})
}

type decideBody struct {
	Approver string `json:"approver"`
	Token    string `json:"token"`
}

func (a *api) handleApprove(w http.ResponseWriter, r *http.Request) {
	var body decideBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, jiterrors.Wrap(jiterrors.MalformedRequest, "decode request body", err))
		return
	}
	approver := jitid.NewUserId(body.Approver)
	result, err := a.proposal.HandleApprovalCallback(r.Context(), approver, body.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, activationJSON(result))
}

func activationJSON(a *activator.Activation) map[string]any {
	return map[string]any{
		"requestId":     a.Request.Id,
		"provisionedAt": a.ProvisionedAt,
		"start":         a.Window.Start,
		"end":           a.Window.End,
	}
}

func privilegesJSON(set *entitlement.Set) map[string]any {
	return map[string]any{
		"available": privilegeList(set.Available()),
		"active":    privilegeList(set.CurrentActivations()),
		"expired":   privilegeList(set.ExpiredActivations()),
		"warnings":  set.Warnings(),
	}
}

func privilegeList(privileges []entitlement.Privilege) []map[string]any {
	out := make([]map[string]any, 0, len(privileges))
	for _, p := range privileges {
		out = append(out, map[string]any{
			"role":           p.Role.Id(),
			"displayName":    p.DisplayName,
			"activationType": p.ActivationType.String(),
			"forReviewer":    p.ForReviewer,
			"status":         string(p.Status),
			"start":          p.Window.Start,
			"end":            p.Window.End,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorStatus maps a jiterrors.Kind to its HTTP status, the way the
// boundary's REST surface would report the same failure taxonomy.
func errorStatus(kind jiterrors.Kind) int {
	switch kind {
	case jiterrors.AccessDenied, jiterrors.NotAuthenticated:
		return http.StatusForbidden
	case jiterrors.InvalidJustification, jiterrors.MalformedRequest:
		return http.StatusBadRequest
	case jiterrors.ResourceNotFound:
		return http.StatusNotFound
	case jiterrors.TokenVerification:
		return http.StatusUnauthorized
	case jiterrors.RateLimited:
		return http.StatusTooManyRequests
	case jiterrors.Transient, jiterrors.Aggregate:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	var jitErr *jiterrors.Error
	status := http.StatusInternalServerError
	message := err.Error()
	if errors.As(err, &jitErr) {
		status = errorStatus(jitErr.Kind)
	}
	writeJSON(w, status, map[string]string{"error": message})
}

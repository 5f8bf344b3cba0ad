/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type requestBody struct {
	User           string   `json:"user"`
	Roles          []string `json:"roles"`
	Reviewers      []string `json:"reviewers,omitempty"`
	ActivationType string   `json:"activationType,omitempty"`
	Justification  string   `json:"justification"`
	StartTime      time.Time `json:"startTime"`
	Duration       string   `json:"duration"`
}

type activationResponse struct {
	RequestID     string    `json:"requestId"`
	ProvisionedAt time.Time `json:"provisionedAt"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
}

var (
	reqRoles         []string
	reqReviewers     []string
	reqActivationType string
	reqJustification string
	reqStart         string
	reqDuration      string
)

func newRequestCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Request activation of an entitlement",
	}
	self := newRequestSelfCommand()
	mpa := newRequestMpaCommand()
	addRequestFlags(self)
	addRequestFlags(mpa)
	mpa.Flags().StringSliceVar(&reqReviewers, "reviewer", nil, "reviewer email (repeatable)")
	mpa.Flags().StringVar(&reqActivationType, "activation-type", "peer_approval", "activation type (peer_approval or external_approval)")
	cmd.AddCommand(self, mpa)
	return cmd
}

func addRequestFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&reqRoles, "role", nil, "project role id, e.g. my-project/roles/editor (repeatable)")
	cmd.Flags().StringVar(&reqJustification, "justification", "", "justification text")
	cmd.Flags().StringVar(&reqStart, "start", "", "activation start time, RFC3339 (defaults to now)")
	cmd.Flags().StringVar(&reqDuration, "duration", "1h", "activation duration, e.g. 30m, 1h")
}

func parseStart() (time.Time, error) {
	if reqStart == "" {
		return time.Now().UTC(), nil
	}
	return time.Parse(time.RFC3339, reqStart)
}

func newRequestSelfCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "self",
		Short: "Self-activate one or more eligible roles",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			if len(reqRoles) == 0 {
				return fmt.Errorf("at least one --role is required")
			}
			start, err := parseStart()
			if err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}
			body := requestBody{
				User:          user,
				Roles:         reqRoles,
				Justification: reqJustification,
				StartTime:     start,
				Duration:      reqDuration,
			}
			var resp activationResponse
			if err := client().postJSON("/api/v1/requests/self", body, &resp); err != nil {
				return err
			}
			printActivation(resp)
			return nil
		},
	}
}

func newRequestMpaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mpa",
		Short: "Propose a multi-party-approval activation",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			if len(reqRoles) == 0 {
				return fmt.Errorf("at least one --role is required")
			}
			if len(reqReviewers) == 0 {
				return fmt.Errorf("at least one --reviewer is required")
			}
			start, err := parseStart()
			if err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}
			body := requestBody{
				User:           user,
				Roles:          reqRoles,
				Reviewers:      reqReviewers,
				ActivationType: reqActivationType,
				Justification:  reqJustification,
				StartTime:      start,
				Duration:       reqDuration,
			}
			var resp struct {
				RequestID string `json:"requestId"`
				Token     string `json:"token"`
			}
			if err := client().postJSON("/api/v1/requests/mpa", body, &resp); err != nil {
				return err
			}
			fmt.Printf("proposal created: %s\n", resp.RequestID)
			fmt.Printf("approval token: %s\n", resp.Token)
			fmt.Printf("reviewers: %s\n", strings.Join(reqReviewers, ", "))
			return nil
		},
	}
}

func printActivation(resp activationResponse) {
	fmt.Printf("activated: %s\n", resp.RequestID)
	fmt.Printf("window:    %s - %s\n", resp.Start.Format(time.RFC3339), resp.End.Format(time.RFC3339))
}

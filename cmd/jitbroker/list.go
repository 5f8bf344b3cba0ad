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
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type scopesResponse struct {
	Projects []string `json:"projects"`
}

func newListScopesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list-scopes",
		Short: "List the projects the acting user may request access into",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			var resp scopesResponse
			path := "/api/v1/scopes" + buildQuery(map[string]string{"user": user})
			if err := client().getJSON(path, &resp); err != nil {
				return err
			}
			sort.Strings(resp.Projects)
			for _, p := range resp.Projects {
				fmt.Println(p)
			}
			return nil
		},
	}
}

type privilege struct {
	Role           string `json:"role"`
	DisplayName    string `json:"displayName"`
	ActivationType string `json:"activationType"`
	ForReviewer    bool   `json:"forReviewer"`
	Status         string `json:"status"`
	Start          string `json:"start,omitempty"`
	End            string `json:"end,omitempty"`
}

type privilegeSet struct {
	Available []privilege `json:"available"`
	Active    []privilege `json:"active"`
	Expired   []privilege `json:"expired"`
	Warnings  []string    `json:"warnings"`
}

type entitlementsResponse struct {
	Requester privilegeSet `json:"requester"`
	Reviewer  privilegeSet `json:"reviewer"`
}

var project string

func newListEntitlementsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list-entitlements",
		Short: "List the acting user's entitlements for a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			if project == "" {
				return fmt.Errorf("--project is required")
			}
			var resp entitlementsResponse
			path := "/api/v1/entitlements" + buildQuery(map[string]string{"user": user, "project": project})
			if err := client().getJSON(path, &resp); err != nil {
				return err
			}
			printPrivilegeSet("As requester", resp.Requester)
			printPrivilegeSet("As reviewer", resp.Reviewer)
			return nil
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project to list entitlements for")
	return cmd
}

func printPrivilegeSet(heading string, set privilegeSet) {
	fmt.Printf("\n%s\n", heading)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ROLE\tTYPE\tSTATUS\tSTART\tEND")
	for _, group := range [][]privilege{set.Active, set.Available, set.Expired} {
		for _, p := range group {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.Role, p.ActivationType, p.Status, p.Start, p.End)
		}
	}
	_ = w.Flush()
	for _, warning := range set.Warnings {
		fmt.Printf("warning: %s\n", warning)
	}
}

type reviewersResponse struct {
	Reviewers []string `json:"reviewers"`
}

func fetchReviewers(role, activationType string) ([]string, error) {
	var resp reviewersResponse
	path := "/api/v1/reviewers" + buildQuery(map[string]string{"user": user, "role": role, "activationType": activationType})
	if err := client().getJSON(path, &resp); err != nil {
		return nil, err
	}
	return resp.Reviewers, nil
}

var (
	reviewersRole           string
	reviewersActivationType string
)

func newListReviewersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list-reviewers",
		Short: "List who can approve an MPA activation for a role",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			if reviewersRole == "" {
				return fmt.Errorf("--role is required")
			}
			reviewers, err := fetchReviewers(reviewersRole, reviewersActivationType)
			if err != nil {
				return err
			}
			sort.Strings(reviewers)
			for _, r := range reviewers {
				fmt.Println(r)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&reviewersRole, "role", "", "project role id, e.g. my-project/roles/editor")
	cmd.Flags().StringVar(&reviewersActivationType, "activation-type", "peer_approval", "activation type (self_approval, peer_approval or external_approval)")
	return cmd
}

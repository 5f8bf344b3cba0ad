/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// The `jitbroker` CLI is a thin wrapper around the jitbroker-api HTTP
// surface for requesting, approving and browsing privileged-access
// entitlements.
//
// Usage:
//
//	jitbroker list-scopes --user alice@example.com
//	jitbroker list-entitlements --user alice@example.com --project my-project
//	jitbroker request self --user alice@example.com --role my-project/roles/editor --justification "incident INC-123"
//	jitbroker request mpa --user alice@example.com --role my-project/roles/editor --reviewer bob@example.com --justification "..."
//	jitbroker approve --token <proposal-token> --approver bob@example.com
//	jitbroker whoami --user alice@example.com
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	apiURL string
	user   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "jitbroker",
		Short: "jitbroker requests and approves just-in-time privileged access",
	}
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", envOr("JITBROKER_API_URL", "http://localhost:8080"), "jitbroker-api base URL")
	rootCmd.PersistentFlags().StringVar(&user, "user", envOr("JITBROKER_USER", ""), "acting user's email")

	rootCmd.AddCommand(newListScopesCommand())
	rootCmd.AddCommand(newListEntitlementsCommand())
	rootCmd.AddCommand(newRequestCommand())
	rootCmd.AddCommand(newApproveCommand())
	rootCmd.AddCommand(newWhoAmICommand())
	rootCmd.AddCommand(newVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func requireUser() error {
	if user == "" {
		return fmt.Errorf("--user (or JITBROKER_USER) is required")
	}
	return nil
}

func client() *apiClient {
	return newAPIClient(apiURL)
}

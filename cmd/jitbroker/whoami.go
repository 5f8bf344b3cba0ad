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
	"sort"

	"github.com/spf13/cobra"
)

// newWhoAmICommand confirms the configured identity against the broker by
// fetching the projects it is allowed to request access into. There is no
// separate identity endpoint — the broker has no session of its own, every
// call carries the acting user explicitly — so this doubles as a
// reachability check for --api-url/--user.
func newWhoAmICommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the configured identity and its accessible scopes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			var resp scopesResponse
			path := "/api/v1/scopes" + buildQuery(map[string]string{"user": user})
			if err := client().getJSON(path, &resp); err != nil {
				return err
			}
			fmt.Printf("user:    %s\n", user)
			fmt.Printf("api-url: %s\n", apiURL)
			sort.Strings(resp.Projects)
			if len(resp.Projects) == 0 {
				fmt.Println("scopes:  (none)")
				return nil
			}
			fmt.Println("scopes:")
			for _, p := range resp.Projects {
				fmt.Printf("  - %s\n", p)
			}
			return nil
		},
	}
}

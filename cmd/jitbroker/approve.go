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

	"github.com/spf13/cobra"
)

var approveToken string

func newApproveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Decide on an outstanding MPA proposal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			if approveToken == "" {
				return fmt.Errorf("--token is required")
			}
			body := struct {
				Approver string `json:"approver"`
				Token    string `json:"token"`
			}{Approver: user, Token: approveToken}

			var resp activationResponse
			if err := client().postJSON("/api/v1/approvals/decide", body, &resp); err != nil {
				return err
			}
			printActivation(resp)
			return nil
		},
	}
	cmd.Flags().StringVar(&approveToken, "token", "", "proposal token from 'jitbroker request mpa'")
	return cmd
}

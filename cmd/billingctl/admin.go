package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/clubworks/billing-engine/pkg/auth"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a JWT for the billing API (uses JWT_SECRET)",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetUint("user-id")
			username, _ := cmd.Flags().GetString("username")
			role, _ := cmd.Flags().GetString("role")

			token, err := auth.GenerateToken(userID, username, role)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().Uint("user-id", 1, "User ID claim")
	cmd.Flags().String("username", "ops", "Username claim")
	cmd.Flags().String("role", "admin", "Role claim (admin or user)")

	return cmd
}

func dueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "due",
		Short: "Preview installments the next collection batch would pick up",
		RunE: func(cmd *cobra.Command, args []string) error {
			asOf, _ := cmd.Flags().GetString("as-of")
			limit, _ := cmd.Flags().GetInt("limit")

			path := fmt.Sprintf("/api/installments/due?limit=%d", limit)
			if asOf != "" {
				path += "&as_of=" + url.QueryEscape(asOf)
			}
			return clientFrom(cmd).call("GET", path, nil)
		},
	}

	cmd.Flags().String("as-of", "", "Evaluate dueness at this time (RFC3339)")
	cmd.Flags().Int("limit", 100, "Maximum results")

	return cmd
}

func processDueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process-due",
		Short: "Run a collection batch now, or collect one installment",
		RunE: func(cmd *cobra.Command, args []string) error {
			asOf, _ := cmd.Flags().GetString("as-of")
			installmentID, _ := cmd.Flags().GetUint("installment")

			params := url.Values{}
			if asOf != "" {
				params.Set("as_of", asOf)
			}
			if installmentID > 0 {
				params.Set("installment_id", fmt.Sprint(installmentID))
			}

			path := "/api/admin/process-due"
			if len(params) > 0 {
				path += "?" + params.Encode()
			}
			return clientFrom(cmd).call("POST", path, nil)
		},
	}

	cmd.Flags().String("as-of", "", "Evaluate dueness at this time (RFC3339)")
	cmd.Flags().Uint("installment", 0, "Collect this single installment instead of the batch")

	return cmd
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run a reconciliation pass against accounting now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return clientFrom(cmd).call("POST", "/api/admin/sync", nil)
		},
	}
}

func recoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Resolve installments stuck in processing",
		RunE: func(cmd *cobra.Command, args []string) error {
			olderThan, _ := cmd.Flags().GetString("older-than")

			path := "/api/admin/recover"
			if olderThan != "" {
				path += "?older_than=" + url.QueryEscape(olderThan)
			}
			return clientFrom(cmd).call("POST", path, nil)
		},
	}

	cmd.Flags().String("older-than", "", "Only touch claims older than this duration (like 30m)")

	return cmd
}

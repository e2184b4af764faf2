package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func stageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Stage an invoice for a completed registration",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetUint("user-id")
			registrationID, _ := cmd.Flags().GetUint("registration-id")
			total, _ := cmd.Flags().GetInt64("total")
			discount, _ := cmd.Flags().GetInt64("discount")
			installments, _ := cmd.Flags().GetInt("installments")
			firstDue, _ := cmd.Flags().GetString("first-due")
			upfront, _ := cmd.Flags().GetInt64("upfront")
			gatewayRef, _ := cmd.Flags().GetString("gateway-ref")
			draft, _ := cmd.Flags().GetBool("draft")

			return clientFrom(cmd).call("POST", "/api/invoices", map[string]interface{}{
				"user_id":         userID,
				"registration_id": registrationID,
				"total_amount":    total,
				"discount_amount": discount,
				"installments":    installments,
				"first_due_date":  firstDue,
				"upfront_amount":  upfront,
				"gateway_ref":     gatewayRef,
				"draft":           draft,
			})
		},
	}

	cmd.Flags().Uint("user-id", 0, "Member the invoice belongs to")
	cmd.Flags().Uint("registration-id", 0, "Registration being billed")
	cmd.Flags().Int64("total", 0, "Total amount in minor units")
	cmd.Flags().Int64("discount", 0, "Discount amount in minor units")
	cmd.Flags().Int("installments", 1, "Number of installments")
	cmd.Flags().String("first-due", "", "First due date (RFC3339)")
	cmd.Flags().Int64("upfront", 0, "Amount already collected at checkout, in minor units")
	cmd.Flags().String("gateway-ref", "", "Gateway reference of the upfront charge")
	cmd.Flags().Bool("draft", false, "Stage as draft; activate later")
	cmd.MarkFlagRequired("user-id")
	cmd.MarkFlagRequired("registration-id")
	cmd.MarkFlagRequired("total")

	return cmd
}

func invoiceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invoice [id]",
		Short: "Show an invoice with its installments and payments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := strconv.ParseUint(args[0], 10, 32); err != nil {
				return fmt.Errorf("invalid invoice id %q", args[0])
			}
			return clientFrom(cmd).call("GET", "/api/invoices/"+args[0], nil)
		},
	}
}

func invoicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoices",
		Short: "List invoices",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetUint("user-id")
			limit, _ := cmd.Flags().GetInt("limit")
			offset, _ := cmd.Flags().GetInt("offset")

			path := fmt.Sprintf("/api/invoices?limit=%d&offset=%d", limit, offset)
			if userID != 0 {
				path += fmt.Sprintf("&user_id=%d", userID)
			}
			return clientFrom(cmd).call("GET", path, nil)
		},
	}

	cmd.Flags().Uint("user-id", 0, "Filter by member")
	cmd.Flags().Int("limit", 10, "Maximum results")
	cmd.Flags().Int("offset", 0, "Results offset")

	return cmd
}

func scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule [invoice-id]",
		Short: "Schedule an installment plan for an invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, _ := cmd.Flags().GetInt("count")
			firstDue, _ := cmd.Flags().GetString("first-due")

			return clientFrom(cmd).call("POST", "/api/invoices/"+args[0]+"/schedule", map[string]interface{}{
				"count":          count,
				"first_due_date": firstDue,
			})
		},
	}

	cmd.Flags().Int("count", 1, "Number of installments")
	cmd.Flags().String("first-due", "", "First due date (RFC3339)")
	cmd.MarkFlagRequired("count")

	return cmd
}

func activateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate [invoice-id]",
		Short: "Activate a draft invoice so its plan starts collecting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return clientFrom(cmd).call("POST", "/api/invoices/"+args[0]+"/activate", map[string]interface{}{})
		},
	}
}

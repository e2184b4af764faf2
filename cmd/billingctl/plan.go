package main

import (
	"github.com/spf13/cobra"
)

func payoffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "payoff [invoice-id]",
		Short: "Settle all remaining installments with one charge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return clientFrom(cmd).call("POST", "/api/invoices/"+args[0]+"/payoff", map[string]interface{}{})
		},
	}
}

func cancelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel [invoice-id]",
		Short: "Cancel a plan; collected money stays collected",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reason, _ := cmd.Flags().GetString("reason")
			return clientFrom(cmd).call("POST", "/api/invoices/"+args[0]+"/cancel", map[string]interface{}{
				"reason": reason,
			})
		},
	}

	cmd.Flags().String("reason", "", "Cancellation reason")
	cmd.MarkFlagRequired("reason")

	return cmd
}

func refundCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refund [payment-id]",
		Short: "Record a refund against a completed payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, _ := cmd.Flags().GetInt64("amount")
			reason, _ := cmd.Flags().GetString("reason")
			return clientFrom(cmd).call("POST", "/api/payments/"+args[0]+"/refund", map[string]interface{}{
				"amount": amount,
				"reason": reason,
			})
		},
	}

	cmd.Flags().Int64("amount", 0, "Refund amount in minor units")
	cmd.Flags().String("reason", "", "Refund reason")
	cmd.MarkFlagRequired("amount")

	return cmd
}

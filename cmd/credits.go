package main

import (
	"github.com/spf13/cobra"
)

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Inspect and top up inference credit balances",
}

var creditsBalanceCmd = &cobra.Command{
	Use:   "balance <user>",
	Short: "Show a user's balance, granting the default on first use",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		bal, err := env.Ledger.GetBalance(ctx, args[0])
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), map[string]any{"user_id": args[0], "balance": bal})
	},
}

var creditsAddAmount int

var creditsAddCmd = &cobra.Command{
	Use:   "add <user>",
	Short: "Add credits to a user's balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Ledger.Add(ctx, args[0], creditsAddAmount)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	creditsAddCmd.Flags().IntVar(&creditsAddAmount, "amount", 0, "credits to add")
	_ = creditsAddCmd.MarkFlagRequired("amount")
	creditsCmd.AddCommand(creditsBalanceCmd, creditsAddCmd)
	rootCmd.AddCommand(creditsCmd)
}

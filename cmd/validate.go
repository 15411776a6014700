package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var validateUser string

var validateCmd = &cobra.Command{
	Use:   "validate <email>...",
	Short: "Validate email addresses with the validation provider",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Orchestrator.ValidateEmails(ctx, validateUser, args)
		if err != nil {
			return eris.Wrap(err, "validate")
		}
		return writeJSON(cmd.OutOrStdout(), res)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show provider health and account usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		return writeJSON(cmd.OutOrStdout(), map[string]any{
			"services": env.Orchestrator.ServicesStatus(ctx),
			"usage":    env.Orchestrator.Usage(ctx),
		})
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateUser, "user", "", "user charged for the validations")
	rootCmd.AddCommand(validateCmd, statusCmd)
}

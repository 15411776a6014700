package main

import (
	"errors"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadfinder/internal/inference"
	"github.com/sells-group/leadfinder/internal/model"
)

var (
	findReq  inference.Request
	findUser string
)

var findEmailCmd = &cobra.Command{
	Use:   "find-email",
	Short: "Infer the best email address for a domain",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if findReq.Domain == "" {
			return eris.New("find-email: --domain is required")
		}

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		found, err := env.Orchestrator.FindEmail(ctx, findUser, findReq)
		if errors.Is(err, model.ErrInsufficientCredits) {
			bal, _ := env.Ledger.GetBalance(ctx, findUser)
			return eris.Errorf("insufficient credits: %s has %d remaining", findUser, bal)
		}
		if err != nil {
			return eris.Wrap(err, "find-email")
		}
		if found == nil {
			return eris.Errorf("find-email: no address found for %s", findReq.Domain)
		}
		return writeJSON(cmd.OutOrStdout(), found)
	},
}

func init() {
	findEmailCmd.Flags().StringVar(&findReq.Domain, "domain", "", "company domain or website")
	findEmailCmd.Flags().StringVar(&findReq.FirstName, "first", "", "contact first name")
	findEmailCmd.Flags().StringVar(&findReq.LastName, "last", "", "contact last name")
	findEmailCmd.Flags().StringVar(&findReq.CompanyName, "company", "", "company name hint for format lookup")
	findEmailCmd.Flags().StringVar(&findUser, "user", "", "user charged for the lookup")
	rootCmd.AddCommand(findEmailCmd)
}

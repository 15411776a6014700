package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadfinder/internal/leadfinder"
)

var searchQuery leadfinder.Query

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search for business leads by category and location",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if env.Finder == nil {
			return eris.New("search: google.api_key is not configured")
		}
		leads, err := env.Finder.Search(ctx, searchQuery)
		if err != nil {
			return eris.Wrap(err, "search")
		}
		return writeJSON(cmd.OutOrStdout(), leads)
	},
}

func addQueryFlags(cmd *cobra.Command, q *leadfinder.Query) {
	cmd.Flags().StringVar(&q.Category, "category", "", "business category, e.g. dentist")
	cmd.Flags().StringVar(&q.Location, "location", "", "city or region to search")
	cmd.Flags().Float64Var(&q.RadiusMeters, "radius", 0, "search radius in meters")
	cmd.Flags().IntVar(&q.MaxResults, "max-results", 20, "maximum leads to return")
}

func init() {
	addQueryFlags(searchCmd, &searchQuery)
	rootCmd.AddCommand(searchCmd)
}

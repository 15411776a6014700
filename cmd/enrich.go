package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadfinder/internal/config"
	"github.com/sells-group/leadfinder/internal/enrich"
	"github.com/sells-group/leadfinder/internal/leadfinder"
	"github.com/sells-group/leadfinder/internal/leadio"
	"github.com/sells-group/leadfinder/internal/model"
)

var (
	enrichFile        string
	enrichQuery       leadfinder.Query
	enrichUser        string
	enrichNoDiscovery bool
	enrichNoInference bool
	enrichDiscOnly    bool
	enrichEstimate    bool
	enrichMinConf     int
	enrichMaxContacts int
	enrichFormat      string
	enrichOut         string
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich leads from a JSON file or a fresh search",
	Long:  "Runs contact discovery and email inference for every lead. Leads come from --file (.json, .csv or .xlsx) or from --category/--location.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if enrichFile == "" && enrichQuery.Category == "" {
			return eris.New("enrich: either --file or --category/--location is required")
		}

		format, err := leadio.ParseFormat(enrichFormat)
		if err != nil {
			return err
		}

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		opts := enrichOptions(cfg.Enrichment)

		var leads []model.Lead
		if enrichFile != "" {
			leads, err = leadio.Import(ctx, enrichFile)
			if err != nil {
				return err
			}
		}

		if enrichEstimate {
			n := len(leads)
			if enrichFile == "" {
				n = enrichQuery.MaxResults
			}
			return writeJSON(cmd.OutOrStdout(), env.Orchestrator.EstimateCost(n, opts))
		}

		var res *model.EnrichmentResult
		if enrichFile != "" {
			res, err = env.Orchestrator.Enrich(ctx, leads, opts)
		} else {
			res, err = env.Orchestrator.SearchAndEnrich(ctx, enrichQuery, opts)
		}
		if err != nil {
			return eris.Wrap(err, "enrich")
		}

		for _, l := range res.Failed() {
			zap.L().Warn("enrich: lead failed", zap.String("lead", l.Name), zap.String("reason", l.FailureReason))
		}
		return writeResult(cmd.OutOrStdout(), format, enrichOut, res)
	},
}

// writeResult prints the full result as JSON, or exports the enriched leads
// as a sheet. An --out path replaces w.
func writeResult(w io.Writer, format leadio.Format, out string, res *model.EnrichmentResult) error {
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return eris.Wrapf(err, "enrich: create %s", out)
		}
		defer f.Close() //nolint:errcheck
		w = f
	}
	if format == leadio.FormatJSON {
		return writeJSON(w, res)
	}
	return leadio.Export(w, format, res.Leads)
}

// enrichOptions merges config defaults with command flags.
func enrichOptions(ec config.EnrichmentConfig) enrich.Options {
	opts := enrich.DefaultOptions()
	opts.IncludeDiscovery = !enrichNoDiscovery
	opts.IncludeInference = !enrichNoInference
	opts.DiscoveryOnly = enrichDiscOnly
	opts.UserID = enrichUser
	opts.Concurrency = ec.Concurrency
	opts.MinConfidence = ec.MinConfidence
	opts.MaxContactsPerLead = ec.MaxContactsPerLead
	if len(ec.TargetTitles) > 0 {
		opts.TargetTitles = ec.TargetTitles
	}
	if enrichMinConf > 0 {
		opts.MinConfidence = enrichMinConf
	}
	if enrichMaxContacts > 0 {
		opts.MaxContactsPerLead = enrichMaxContacts
	}
	return opts
}

func init() {
	enrichCmd.Flags().StringVar(&enrichFile, "file", "", "lead file (.json array, .csv or .xlsx with a header row)")
	addQueryFlags(enrichCmd, &enrichQuery)
	enrichCmd.Flags().StringVar(&enrichUser, "user", "", "user charged for inference credits")
	enrichCmd.Flags().BoolVar(&enrichNoDiscovery, "no-discovery", false, "skip contact discovery")
	enrichCmd.Flags().BoolVar(&enrichNoInference, "no-inference", false, "skip email inference")
	enrichCmd.Flags().BoolVar(&enrichDiscOnly, "discovery-only", false, "never fall back to inference")
	enrichCmd.Flags().BoolVar(&enrichEstimate, "estimate", false, "print the cost estimate and exit")
	enrichCmd.Flags().IntVar(&enrichMinConf, "min-confidence", 0, "drop emails scored below this (default from config)")
	enrichCmd.Flags().IntVar(&enrichMaxContacts, "max-contacts", 0, "discovery results per lead (default from config)")
	enrichCmd.Flags().StringVar(&enrichFormat, "format", "json", "output format: json, csv or xlsx")
	enrichCmd.Flags().StringVar(&enrichOut, "out", "", "write output to this file instead of stdout")
	rootCmd.AddCommand(enrichCmd)
}

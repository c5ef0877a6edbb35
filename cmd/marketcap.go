package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/carbon-dashboard/internal/dashboard"
	"github.com/sells-group/carbon-dashboard/internal/marketcap"
)

var marketcapCmd = &cobra.Command{
	Use:   "marketcap",
	Short: "Run one market-cap enrichment pass and print its diagnostics",
	Long:  "Loads the full company list, runs market-cap enrichment over it, and prints the diagnostics the API reports under meta.marketCap.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, "marketcap")
		if err != nil {
			return err
		}
		defer env.Close()

		asJSON, _ := cmd.Flags().GetBool("json")
		return runEnrichment(ctx, env.Service, os.Stdout, asJSON)
	},
}

var marketcapLookupCmd = &cobra.Command{
	Use:   "lookup <symbol>...",
	Short: "Ask the market-cap worker for the given symbols",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return lookupSymbols(cmd.Context(), marketcap.NewWorker(cfg.MarketCap), args, os.Stdout)
	},
}

// runEnrichment loads the full dashboard, which enriches every company, and
// prints the resulting diagnostics.
func runEnrichment(ctx context.Context, loader dashboardLoader, w io.Writer, asJSON bool) error {
	res, err := loader.Load(ctx, dashboard.Query{Scope: dashboard.ScopeFull})
	if err != nil {
		return eris.Wrap(err, "marketcap")
	}
	if res.Meta.MarketCap == nil {
		return eris.New("marketcap: enrichment is not configured")
	}
	if asJSON {
		return writeJSON(w, res.Meta.MarketCap)
	}
	return formatDiagnostics(w, *res.Meta.MarketCap)
}

func formatDiagnostics(w io.Writer, d marketcap.Diagnostics) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Status:\t%s\n", d.Status)
	if d.Reason != "" {
		fmt.Fprintf(tw, "Reason:\t%s\n", d.Reason)
	}
	fmt.Fprintf(tw, "Cache hit:\t%t\n", d.CacheHit)
	fmt.Fprintf(tw, "Looked up:\t%d\n", d.LookedUpCompanies)
	fmt.Fprintf(tw, "Eligible:\t%d\n", d.EligibleCompanies)
	fmt.Fprintf(tw, "Overrides:\t%d\n", d.OverrideCompanies)
	fmt.Fprintf(tw, "Symbols requested:\t%d\n", d.SymbolsRequested)
	fmt.Fprintf(tw, "Symbols resolved:\t%d\n", d.SymbolsResolved)
	fmt.Fprintf(tw, "Duplicate symbols:\t%d\n", d.DuplicateResolvedSymbols)
	fmt.Fprintf(tw, "With market cap:\t%d\n", d.CompaniesWithMarketCap)
	fmt.Fprintf(tw, "CSV rows:\t%d (missing code %d, invalid code %d)\n",
		d.CSVRows, d.CSVMissingCodeRows, d.CSVInvalidCodeRows)
	if d.MissingProvider {
		fmt.Fprintln(tw, "Provider:\tnot installed")
	}
	fmt.Fprintf(tw, "Worker:\t%s %s\n", d.WorkerCommand, d.WorkerScript)
	if !d.GeneratedAt.IsZero() {
		fmt.Fprintf(tw, "Generated:\t%s\n", d.GeneratedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

// lookupSymbols normalizes symbols, fetches them in one batch and prints one
// line per symbol. Symbols without a value print "-".
func lookupSymbols(ctx context.Context, f marketcap.Fetcher, symbols []string, w io.Writer) error {
	var batch []string
	seen := map[string]bool{}
	for _, raw := range symbols {
		s := marketcap.NormalizeTicker(raw)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		batch = append(batch, s)
	}
	if len(batch) == 0 {
		return eris.New("marketcap lookup: no usable symbols")
	}

	values, err := f.Fetch(ctx, batch)
	if err != nil {
		return eris.Wrap(err, "marketcap lookup")
	}

	sort.Strings(batch)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tMARKET CAP")
	for _, s := range batch {
		if v, ok := values[s]; ok {
			fmt.Fprintf(tw, "%s\t%.0f\n", s, v)
		} else {
			fmt.Fprintf(tw, "%s\t-\n", s)
		}
	}
	return tw.Flush()
}

func init() {
	marketcapCmd.Flags().Bool("json", false, "print diagnostics as JSON")
	marketcapCmd.AddCommand(marketcapLookupCmd)
	rootCmd.AddCommand(marketcapCmd)
}

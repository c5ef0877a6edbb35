package main

import (
	"context"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/carbon-dashboard/internal/dashboard"
)

// dashboardLoader is the part of dashboard.Service the export uses.
type dashboardLoader interface {
	Load(ctx context.Context, q dashboard.Query) (*dashboard.Result, error)
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Export one dashboard response as JSON or xlsx",
	Long:  "Runs the same load the API serves for /api/dashboard and writes the response to stdout or --out.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		scopeRaw, _ := cmd.Flags().GetString("scope")
		country, _ := cmd.Flags().GetString("country")
		companyID, _ := cmd.Flags().GetString("company")
		out, _ := cmd.Flags().GetString("out")
		format, _ := cmd.Flags().GetString("format")
		if format != formatJSON && format != formatXLSX {
			return eris.Errorf("dashboard: unknown format %q (json or xlsx)", format)
		}

		scope, err := dashboard.ParseScope(scopeRaw)
		if err != nil {
			return err
		}

		env, err := initApp(ctx, "dashboard")
		if err != nil {
			return err
		}
		defer env.Close()

		w := io.Writer(os.Stdout)
		if out != "" {
			f, err := os.Create(out)
			if err != nil {
				return eris.Wrap(err, "dashboard: create output")
			}
			defer f.Close() //nolint:errcheck
			w = f
		}

		return exportDashboard(ctx, env.Service, dashboard.Query{
			Scope:     scope,
			Country:   country,
			CompanyID: companyID,
		}, format, w)
	},
}

const (
	formatJSON = "json"
	formatXLSX = "xlsx"
)

// exportDashboard loads q and writes the response as indented JSON or as an
// xlsx workbook.
func exportDashboard(ctx context.Context, loader dashboardLoader, q dashboard.Query, format string, w io.Writer) error {
	res, err := loader.Load(ctx, q)
	if err != nil {
		return eris.Wrap(err, "dashboard export")
	}
	if format == formatXLSX {
		return writeWorkbook(res, w)
	}
	return writeJSON(w, res)
}

func init() {
	dashboardCmd.Flags().String("scope", "full", "main or full")
	dashboardCmd.Flags().String("country", "", "restrict to KR or JP")
	dashboardCmd.Flags().String("company", "", "company id to resolve for the main scope")
	dashboardCmd.Flags().String("out", "", "write to this file instead of stdout")
	dashboardCmd.Flags().String("format", formatJSON, "json or xlsx")
	rootCmd.AddCommand(dashboardCmd)
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/carbon-dashboard/internal/schema"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Print the schema variant the dashboard queries will use",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, "probe")
		if err != nil {
			return err
		}
		defer env.Close()

		return printStrategy(ctx, env.Resolver, os.Stdout)
	},
}

// printStrategy resolves the schema strategy and prints it as a table
// followed by its variant tags.
func printStrategy(ctx context.Context, resolver *schema.Resolver, w io.Writer) error {
	s, err := resolver.Resolve(ctx)
	if err != nil {
		return eris.Wrap(err, "probe")
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SETTING\tVALUE")
	fmt.Fprintf(tw, "emission link\t%s\n", s.EmissionLink)
	fmt.Fprintf(tw, "denominator link\t%s\n", s.DenominatorLink)
	fmt.Fprintf(tw, "target link\t%s\n", s.TargetLink)
	fmt.Fprintf(tw, "emission unit column\t%s\n", orDash(s.EmissionUnitColumn))
	fmt.Fprintf(tw, "report date column\t%s\n", orDash(s.ReportDateColumn))
	fmt.Fprintf(tw, "framework column\t%s\n", orDash(s.FrameworkColumn))
	fmt.Fprintf(tw, "company country\t%t\n", s.CompanyCountry)
	fmt.Fprintf(tw, "company ticker\t%t\n", s.CompanyTicker)
	fmt.Fprintf(tw, "company i18n\t%t\n", s.CompanyI18n)
	fmt.Fprintf(tw, "industry i18n\t%t\n", s.IndustryI18n)
	fmt.Fprintf(tw, "industry alpha\t%t\n", s.IndustryAlpha)
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	for _, tag := range s.Tags() {
		fmt.Fprintln(w, tag)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

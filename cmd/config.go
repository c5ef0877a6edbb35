package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/carbon-dashboard/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long:  "Prints the configuration after config.yaml, environment and defaults are merged. Credentials are masked.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("config"); err != nil {
			return err
		}
		return printConfig(cfg, os.Stdout)
	},
}

func printConfig(c *config.Config, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c.Redacted()); err != nil {
		return eris.Wrap(err, "config: encode yaml")
	}
	return enc.Close()
}

func init() {
	rootCmd.AddCommand(configCmd)
}

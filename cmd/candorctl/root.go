package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	output string
}

var rootCmd = &cobra.Command{
	Use:   "candorctl",
	Short: "Run case inference offline",
	Long:  "candorctl scans messages and replays evidence fixtures through the\nsuspicion classifier, phase advancer and case updater.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootFlags.output, "output", "o", "json", "output format: json or yaml")
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.Version = version
}

func render(w io.Writer, v interface{}) error {
	switch rootFlags.output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown output format %q", rootFlags.output)
}

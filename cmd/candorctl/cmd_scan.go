package main

import (
	"strings"

	"go-candor/internal/investigation"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan <text>",
	Short: "Scan a message for crisis language and evidence",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runScan,
}

type scanOutput struct {
	Signals   investigation.ScanResult `json:"signals" yaml:"signals"`
	Resources string                   `json:"resources,omitempty" yaml:"resources,omitempty"`
}

func runScan(cmd *cobra.Command, args []string) error {
	res := investigation.Scan(strings.Join(args, " "))
	out := scanOutput{Signals: res}
	if res.Crisis != nil {
		out.Resources = investigation.CrisisResources(*res.Crisis)
	}
	return render(cmd.OutOrStdout(), out)
}

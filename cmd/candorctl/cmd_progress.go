package main

import (
	"fmt"

	"go-candor/internal/investigation"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var progressFlags struct {
	file        string
	createAfter int
	verbose     bool
}

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Run the case updater against an evidence fixture",
	RunE:  runProgress,
}

func init() {
	f := progressCmd.Flags()
	f.StringVarP(&progressFlags.file, "file", "f", "", "YAML evidence fixture (required)")
	f.IntVar(&progressFlags.createAfter, "create-after", investigation.DefaultCreateAfter, "messages needed before a case opens")
	f.BoolVarP(&progressFlags.verbose, "verbose", "v", false, "log updater decisions to stderr")
	_ = progressCmd.MarkFlagRequired("file")
}

type progressOutput struct {
	Case      *investigation.CaseState `json:"case" yaml:"case"`
	PhaseName string                   `json:"phaseName,omitempty" yaml:"phaseName,omitempty"`
	Note      string                   `json:"note,omitempty" yaml:"note,omitempty"`
}

func runProgress(cmd *cobra.Command, _ []string) error {
	fx, err := loadFixture(progressFlags.file)
	if err != nil {
		return err
	}
	log := zap.NewNop()
	if progressFlags.verbose {
		if log, err = zap.NewDevelopment(); err != nil {
			return err
		}
		defer log.Sync()
	}

	store := investigation.NewMemoryStore(fx.Evidence, fx.Messages, fx.Case)
	st, err := investigation.NewUpdater(progressFlags.createAfter, log).Update(cmd.Context(), store)
	if err != nil {
		return err
	}
	out := progressOutput{Case: st}
	if st == nil {
		out.Note = fmt.Sprintf("no case yet: %d of %d messages", fx.Messages, progressFlags.createAfter)
	} else {
		out.PhaseName = st.Phase.Name()
	}
	return render(cmd.OutOrStdout(), out)
}

package main

import (
	"go-candor/internal/investigation"

	"github.com/spf13/cobra"
)

var classifyFlags struct {
	file string
}

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify suspicion and phase for an evidence fixture",
	RunE:  runClassify,
}

func init() {
	f := classifyCmd.Flags()
	f.StringVarP(&classifyFlags.file, "file", "f", "", "YAML evidence fixture (required)")
	_ = classifyCmd.MarkFlagRequired("file")
}

type classifyOutput struct {
	Suspicion investigation.SuspicionLevel `json:"suspicion" yaml:"suspicion"`
	Phase     investigation.Phase          `json:"phase" yaml:"phase"`
	PhaseName string                       `json:"phaseName" yaml:"phaseName"`
	Evidence  int                          `json:"evidence" yaml:"evidence"`
}

func runClassify(cmd *cobra.Command, _ []string) error {
	fx, err := loadFixture(classifyFlags.file)
	if err != nil {
		return err
	}
	phase := investigation.AdvancePhase(fx.Evidence, fx.Messages, fx.Phase)
	return render(cmd.OutOrStdout(), classifyOutput{
		Suspicion: investigation.Classify(fx.Evidence),
		Phase:     phase,
		PhaseName: phase.Name(),
		Evidence:  len(fx.Evidence),
	})
}

package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/studio-archive/internal/core/domain"
)

func newClassifyCommand(deps Deps) *cobra.Command {
	var withText bool
	var minLevel string

	cmd := &cobra.Command{
		Use:   "classify [dir]",
		Short: "Classify every file in a directory",
		Long:  `Extracts each file under dir, classifies it and prints one JSON decision per line. Failures are reported inline and never stop the batch.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps.ClassifyDir == nil {
				return errors.New("classifier not configured")
			}
			threshold := domain.ConfidenceLevel(minLevel)
			switch threshold {
			case "", domain.ConfidenceLow, domain.ConfidenceMedium, domain.ConfidenceHigh:
			default:
				return domain.WrapError(domain.ErrInvalidInput, "classify", fmt.Errorf("unknown level %q", minLevel))
			}

			decisions, err := deps.ClassifyDir(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, d := range decisions {
				if minLevel != "" && d.Method != domain.MethodError && d.ConfidenceLevel.Rank() < threshold.Rank() {
					continue
				}
				if !withText {
					d.ExtractedText = ""
				}
				if err := enc.Encode(d); err != nil {
					return fmt.Errorf("write decision: %w", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&withText, "with-text", false, "Include extracted text in the output")
	cmd.Flags().StringVar(&minLevel, "min-level", "", "Only print decisions at or above this confidence level (low|medium|high)")
	return cmd
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"charsmith/character"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRepairCmd(logger **zap.Logger) *cobra.Command {
	var (
		input    string
		baseline string
		refine   bool
	)
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Recover a character document from a raw model response",
		Long: `Runs the JSON recovery and normalization pipeline on a logged model
response and prints the resulting character document. Use --input - to read
from stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd.InOrStdin(), input)
			if err != nil {
				return err
			}

			var base *character.Document
			if baseline != "" {
				if base, err = character.LoadFile(baseline); err != nil {
					return err
				}
			}
			mode := character.Generate
			if refine {
				mode = character.Refine
			}

			doc, err := repair(string(raw), base, mode)
			if err != nil {
				var extractionErr *character.ExtractionError
				if errors.As(err, &extractionErr) {
					(*logger).Error("Could not extract JSON",
						zap.Int("size", extractionErr.Size),
						zap.String("snippet", extractionErr.Snippet),
						zap.String("cleaned", extractionErr.Cleaned))
				}
				return err
			}

			out, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "File holding the raw model response (- for stdin)")
	cmd.Flags().StringVar(&baseline, "baseline", "", "Current character file, for --refine")
	cmd.Flags().BoolVar(&refine, "refine", false, "Normalize as a refinement of --baseline")
	cmd.MarkFlagRequired("input")
	return cmd
}

func repair(raw string, baseline *character.Document, mode character.Mode) (*character.Document, error) {
	extracted, err := character.Extract(raw)
	if err != nil {
		return nil, err
	}
	return character.Normalize(extracted, baseline, mode)
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return data, nil
}

package main

import (
	"errors"
	"fmt"
	"os"

	"charsmith/character"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check character files before handing them to the agent runtime",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				doc, err := character.LoadFile(path)
				if err == nil {
					err = character.Validate(doc)
				}
				if err != nil {
					failed++
					fmt.Fprintf(out, "FAIL %s: %v\n", path, err)
					continue
				}
				fmt.Fprintf(out, "ok   %s (%s)\n", path, doc.Name)
				if character.NeedsToken(doc.ModelProvider) && character.TokenForProvider(doc, os.Getenv) == "" {
					fmt.Fprintf(out, "     warning: no token configured for %s\n", doc.ModelProvider)
				}
			}
			if failed > 0 {
				return errors.New(pluralize(failed, "invalid character file"))
			}
			return nil
		},
	}
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

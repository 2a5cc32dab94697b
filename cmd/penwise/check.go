package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"penwise/internal/document"
	"penwise/internal/tracker"
)

// errSuggestionsFound makes --strict runs exit non-zero.
var errSuggestionsFound = errors.New("suggestions found")

var checkCmd = &cobra.Command{
	Use:   "check [flags] <file|->",
	Short: "Report spelling, grammar and style suggestions for a text file",
	Long:  "Analyze a plain text file, or stdin when the argument is -, and print every suggestion with its location.",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().String("format", "pretty", "output format (pretty|json)")
	checkCmd.Flags().Bool("highlight", false, "print the text with highlighted suggestion runs")
	checkCmd.Flags().Bool("strict", false, "exit with an error when any suggestion is found")
}

func runCheck(cmd *cobra.Command, args []string) error {
	path := args[0]

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	highlight, err := cmd.Flags().GetBool("highlight")
	if err != nil {
		return err
	}
	strict, err := cmd.Flags().GetBool("strict")
	if err != nil {
		return err
	}
	if format != "pretty" && format != "json" {
		return fmt.Errorf("--format must be pretty or json, got %q", format)
	}
	colored, err := useColor(cmd, os.Stdout)
	if err != nil {
		return err
	}

	text, err := readInput(path, cmd.InOrStdin())
	if err != nil {
		return err
	}
	checker, err := newChecker(cmd)
	if err != nil {
		return err
	}
	res, err := checker.Check(cmd.Context(), text)
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}

	tr := tracker.New(document.NewPlain(text))
	tr.Ingest(res.Suggestions)
	spans := tr.Decorations()

	out := cmd.OutOrStdout()
	if format == "json" {
		if err := renderJSON(out, path, res, spans); err != nil {
			return err
		}
	} else {
		p := newPalette(colored)
		if highlight {
			renderHighlighted(out, text, spans, p)
			fmt.Fprintln(out)
		}
		renderPretty(out, path, text, res, p)
	}

	if strict && len(res.Suggestions) > 0 {
		return errSuggestionsFound
	}
	return nil
}

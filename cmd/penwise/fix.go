package main

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"penwise/internal/document"
	"penwise/internal/tracker"
)

var fixCmd = &cobra.Command{
	Use:   "fix [flags] <file|->",
	Short: "Apply the first replacement of every suggestion",
	Long: `Analyze a plain text file and write the first replacement of each
suggestion into it. Suggestions that overlap an earlier fix are skipped.
The result goes to stdout unless --write is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runFix,
}

func init() {
	fixCmd.Flags().Bool("write", false, "write the result back to the file")
	fixCmd.Flags().StringSlice("only", nil, "restrict fixes to these categories (spelling,grammar,style)")
}

func runFix(cmd *cobra.Command, args []string) error {
	path := args[0]

	write, err := cmd.Flags().GetBool("write")
	if err != nil {
		return err
	}
	only, err := cmd.Flags().GetStringSlice("only")
	if err != nil {
		return err
	}
	if write && path == "-" {
		return fmt.Errorf("--write cannot be used with stdin")
	}
	categories, err := parseCategories(only)
	if err != nil {
		return err
	}
	colored, err := useColor(cmd, os.Stderr)
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
		return fmt.Errorf("fix: %w", err)
	}

	doc := document.NewPlain(text)
	applied, err := applyFixes(doc, res.Suggestions, categories)
	if err != nil {
		return fmt.Errorf("fix: %w", err)
	}

	p := newPalette(colored)
	if write {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("fix: %w", err)
		}
		if err := os.WriteFile(path, []byte(doc.PlainText()), info.Mode().Perm()); err != nil {
			return fmt.Errorf("fix: %w", err)
		}
	} else {
		fmt.Fprint(cmd.OutOrStdout(), doc.PlainText())
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %d of %d suggestions\n", p.ok.Sprint("applied"), len(applied), len(res.Suggestions))
	return nil
}

func parseCategories(names []string) (map[tracker.Category]bool, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make(map[tracker.Category]bool, len(names))
	for _, name := range names {
		c := tracker.Category(strings.ToLower(strings.TrimSpace(name)))
		if !c.Valid() {
			return nil, fmt.Errorf("unknown category %q", name)
		}
		out[c] = true
	}
	return out, nil
}

// applyFixes writes the first replacement of each suggestion into doc in
// offset order. A nil categories map allows every category. Suggestions
// without a replacement, or starting inside text an earlier fix produced,
// are left alone.
func applyFixes(doc tracker.Document, suggestions []tracker.Suggestion, categories map[tracker.Category]bool) ([]tracker.AppliedFix, error) {
	tr := tracker.New(doc)
	tr.Ingest(sortedSuggestions(suggestions))

	var applied []tracker.AppliedFix
	for _, candidate := range tr.Suggestions() {
		s, ok := heldSuggestion(tr, candidate.ID)
		if !ok || len(s.Replacements) == 0 {
			continue
		}
		if categories != nil && !categories[s.Category] {
			continue
		}
		if n := len(applied); n > 0 {
			last := applied[n-1]
			if s.Offset <= last.Offset || s.Offset < last.Offset+utf8.RuneCountInString(last.Replacement) {
				continue
			}
		}
		fix, err := tr.ApplyFix(s.ID, s.Replacements[0])
		if err != nil {
			return applied, err
		}
		applied = append(applied, fix)
	}
	return applied, nil
}

func heldSuggestion(tr *tracker.Tracker, id string) (tracker.Suggestion, bool) {
	for _, s := range tr.Suggestions() {
		if s.ID == id {
			return s, true
		}
	}
	return tracker.Suggestion{}, false
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"penwise/internal/analysis"
	"penwise/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "penwise",
	Short: "Spelling, grammar and style checks from the command line",
	Long: `penwise runs the same analysis providers as the API over plain text
files and prints the suggestions, or applies their first replacement.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(fixCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().String("languagetool", "", "LanguageTool base URL; heuristics only when empty")
	rootCmd.PersistentFlags().String("language", "en-US", "LanguageTool language code")
	rootCmd.PersistentFlags().String("dictionary", "", "file of approved words, one per line")
	rootCmd.PersistentFlags().Duration("timeout", 30*time.Second, "analysis timeout")
	rootCmd.PersistentFlags().String("log-level", "warn", "provider log level")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func useColor(cmd *cobra.Command, out *os.File) (bool, error) {
	colorFlag, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return false, err
	}
	switch colorFlag {
	case "on":
		return true, nil
	case "off":
		return false, nil
	case "auto":
		return isTerminal(out), nil
	default:
		return false, fmt.Errorf("--color must be auto, on or off, got %q", colorFlag)
	}
}

// newChecker builds a checker from the persistent flags. Heuristics always
// run so the command works offline.
func newChecker(cmd *cobra.Command) (*analysis.Checker, error) {
	flags := cmd.Root().PersistentFlags()
	ltURL, err := flags.GetString("languagetool")
	if err != nil {
		return nil, err
	}
	language, err := flags.GetString("language")
	if err != nil {
		return nil, err
	}
	dictPath, err := flags.GetString("dictionary")
	if err != nil {
		return nil, err
	}
	timeout, err := flags.GetDuration("timeout")
	if err != nil {
		return nil, err
	}
	level, err := flags.GetString("log-level")
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(level, "console")
	if err != nil {
		return nil, err
	}

	var providers []analysis.Provider
	if strings.TrimSpace(ltURL) != "" {
		providers = append(providers, analysis.NewLanguageTool(ltURL, language, 0))
	}
	providers = append(providers, analysis.NewHeuristics())

	opts := []analysis.CheckerOption{
		analysis.WithTimeout(timeout),
		analysis.WithLogger(logger),
	}
	if dictPath != "" {
		dict, err := loadDictionary(dictPath, logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, analysis.WithDictionary(dict))
	}
	return analysis.NewChecker(providers, opts...), nil
}

func loadDictionary(path string, logger *zap.SugaredLogger) (*analysis.Dictionary, error) {
	words, err := analysis.LoadDictionaryFile(path)
	if err != nil {
		return nil, err
	}
	logger.Debugw("dictionary loaded", "path", path, "words", len(words))
	return analysis.NewDictionary(words...), nil
}

// readInput reads path, or stdin when path is "-".
func readInput(path string, stdin io.Reader) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

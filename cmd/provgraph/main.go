package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	flagDB      string
	flagFormat  string
	flagVerbose bool
)

// logger is configured by the root command before any subcommand runs.
var logger = slog.New(slog.DiscardHandler)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "provgraph",
	Short:         "Provider dependency graphs for Riverpod-style TypeScript apps",
	Long:          "Provgraph parses TypeScript and TSX sources with tree-sitter, finds providers and consumer components, and renders the watch/listen/read dependencies between them.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = newLogger(cmd.ErrOrStderr(), flagVerbose)
		if flagFormat == "" {
			return nil
		}
		_, err := parseFormat(flagFormat)
		return err
	},
	// No Run; prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database for saved graphs (relative paths resolve against the repo root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "", "output format: "+strings.Join(formatNames(), "|")+" (default from config, else mermaid)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log per-file progress")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(versionCmd)
}

// newLogger returns a tint handler logger writing to w. Verbose enables
// debug records.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
	}))
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the provgraph version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "provgraph %s\n", version)
	},
}

// resolveTargetDir returns the absolute path of the directory to analyse.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the --db path, resolved against repoRoot when
// relative. It returns "" when --db is unset.
func resolveDBPath(repoRoot string) string {
	if flagDB == "" {
		return ""
	}
	if filepath.IsAbs(flagDB) {
		return flagDB
	}
	return filepath.Join(repoRoot, flagDB)
}

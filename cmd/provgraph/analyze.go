package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/provgraph"
	"github.com/jward/provgraph/internal/config"
)

var (
	flagConfig        string
	flagPackages      string
	flagConsumerBases string
	flagBuildMethod   string
	flagExclude       string
	flagOut           string
	flagFilter        string
	flagSerial        bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [path]",
	Short: "Analyse a project and render its provider graph",
	Long: `Discovers the TypeScript and TSX files under path (default "."), builds the
provider dependency graph and writes it in the selected format. With --db the
graph is also saved for later "provgraph render" runs.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&flagConfig, "config", "", "config file (default: <path>/"+config.FileName+")")
	analyzeCmd.Flags().StringVar(&flagPackages, "packages", "", "comma-separated framework packages (e.g. riverpod,@acme/state)")
	analyzeCmd.Flags().StringVar(&flagConsumerBases, "consumer-bases", "", "comma-separated consumer base classes")
	analyzeCmd.Flags().StringVar(&flagBuildMethod, "build-method", "", "notifier method computing a provider's state")
	analyzeCmd.Flags().StringVar(&flagExclude, "exclude", "", "comma-separated directory names to skip")
	analyzeCmd.Flags().StringVarP(&flagOut, "out", "o", "", "write output to a file instead of stdout")
	analyzeCmd.Flags().StringVar(&flagFilter, "filter", "", `Risor expression selecting nodes (e.g. kind == "provider")`)
	analyzeCmd.Flags().BoolVar(&flagSerial, "serial", false, "parse files on a single goroutine")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	start := time.Now()

	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(targetDir)
	if err != nil {
		return err
	}
	applyFlags(&cfg)

	format, err := parseFormat(cfg.Format)
	if err != nil {
		return err
	}
	filter, err := newFilter(cfg.Filter)
	if err != nil {
		return err
	}

	opts := []provgraph.Option{
		provgraph.WithPackages(cfg.Packages...),
		provgraph.WithConsumerBases(cfg.ConsumerBases...),
		provgraph.WithBuildMethod(cfg.BuildMethod),
		provgraph.WithExclude(cfg.Exclude...),
		provgraph.WithParallel(!flagSerial),
		provgraph.WithLogger(logger),
	}
	dbPath := resolveDBPath(findRepoRoot(targetDir))
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
		}
		opts = append(opts, provgraph.WithDatabase(dbPath))
	}

	engine, err := provgraph.New(opts...)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer engine.Close()

	if err := engine.AnalyzeDirectory(cmd.Context(), targetDir); err != nil {
		return fmt.Errorf("analyzing: %w", err)
	}

	snap, err := filter.Apply(cmd.Context(), engine.Snapshot())
	if err != nil {
		return err
	}
	if err := writeOutput(cmd.OutOrStdout(), flagOut, format, snap); err != nil {
		return err
	}

	attrs := []any{
		slog.String("root", targetDir),
		slog.Int("files", len(engine.Files())),
		slog.Int("providers", len(snap.Providers)),
		slog.Int("consumers", len(snap.Consumers)),
		slog.Int("edges", snap.EdgeCount()),
		slog.Duration("elapsed", time.Since(start).Round(time.Millisecond)),
	}
	if dbPath != "" {
		attrs = append(attrs, slog.String("db", dbPath), slog.Bool("changed", engine.Changed()))
	}
	logger.Info("analyzed", attrs...)
	return nil
}

// loadConfig reads --config, or the project's config file when present.
func loadConfig(targetDir string) (config.Config, error) {
	if flagConfig != "" {
		return config.LoadFile(flagConfig)
	}
	return config.Load(targetDir)
}

// applyFlags overrides cfg with the flags set on the command line.
func applyFlags(cfg *config.Config) {
	if list := splitList(flagPackages); len(list) > 0 {
		cfg.Packages = list
	}
	if list := splitList(flagConsumerBases); len(list) > 0 {
		cfg.ConsumerBases = list
	}
	if list := splitList(flagExclude); len(list) > 0 {
		cfg.Exclude = list
	}
	if flagBuildMethod != "" {
		cfg.BuildMethod = flagBuildMethod
	}
	if flagFormat != "" {
		cfg.Format = flagFormat
	}
	if flagFilter != "" {
		cfg.Filter = flagFilter
	}
}

// splitList splits a comma-separated flag value, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/provgraph"
	"github.com/jward/provgraph/internal/store"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a graph saved by analyze --db",
	Long:  "Loads the graph stored in the --db database and writes it in the selected format without re-analysing sources.",
	Args:  cobra.NoArgs,
	RunE:  runRender,
}

func init() {
	renderCmd.Flags().StringVarP(&flagOut, "out", "o", "", "write output to a file instead of stdout")
	renderCmd.Flags().StringVar(&flagFilter, "filter", "", `Risor expression selecting nodes (e.g. class == "Repo")`)
}

func runRender(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	dbPath := resolveDBPath(findRepoRoot(cwd))
	if dbPath == "" {
		return fmt.Errorf("render: --db is required")
	}
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("render: database not found: %s", dbPath)
	}

	format, err := parseFormat(flagFormat)
	if err != nil {
		return err
	}
	filter, err := newFilter(flagFilter)
	if err != nil {
		return err
	}

	s, err := provgraph.OpenStore(dbPath)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	defer s.Close()

	snap, err := s.LoadSnapshot()
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	root, err := s.GetMetadata(store.MetaRoot)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	analyzedAt, err := s.GetMetadata(store.MetaAnalyzedAt)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	snap, err = filter.Apply(cmd.Context(), snap)
	if err != nil {
		return err
	}
	if err := writeOutput(cmd.OutOrStdout(), flagOut, format, snap); err != nil {
		return err
	}
	logger.Debug("rendered",
		slog.String("db", dbPath),
		slog.String("root", root),
		slog.String("analyzed_at", analyzedAt),
		slog.Int("nodes", len(snap.Providers)+len(snap.Consumers)),
	)
	return nil
}

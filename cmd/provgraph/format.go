package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jward/provgraph"
	"github.com/jward/provgraph/internal/filter"
	"github.com/jward/provgraph/internal/render"
)

// formatNames lists accepted values for --format.
func formatNames() []string {
	return render.Formats()
}

// parseFormat validates a --format or config value; "" means mermaid.
func parseFormat(s string) (render.Format, error) {
	f, err := render.ParseFormat(s)
	if err != nil {
		return "", fmt.Errorf("invalid format: %w", err)
	}
	return f, nil
}

// newFilter compiles a node filter expression; "" keeps every node.
func newFilter(expr string) (*filter.Filter, error) {
	f, err := filter.New(expr, filter.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}
	return f, nil
}

// writeOutput renders snap to the file at path, or to stdout when path is
// empty.
func writeOutput(stdout io.Writer, path string, format render.Format, snap provgraph.Snapshot) error {
	if path == "" {
		return render.Write(stdout, format, snap)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := render.Write(f, format, snap); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

package provgraph

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jward/provgraph/internal/classify"
	"github.com/jward/provgraph/internal/frontend"
	"github.com/jward/provgraph/internal/graph"
	"github.com/jward/provgraph/internal/semantic"
	"github.com/jward/provgraph/internal/store"
	"github.com/jward/provgraph/internal/visit"
)

// Engine orchestrates the provgraph pipeline: file discovery, parsing,
// linking, classification and dependency visiting, and optional
// persistence of the resulting graph.
type Engine struct {
	packages      []string
	consumerBases []string
	buildMethod   string
	exclude       map[string]bool
	log           *slog.Logger

	// useParallel enables the parallel parse pool.
	useParallel bool
	workers     int

	dbPath string
	store  *store.Store

	graph   *graph.Graph
	files   []string
	changed bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithPackages sets the framework package specifiers. Declarations
// imported from these packages, or their sub-paths, belong to the
// framework.
func WithPackages(packages ...string) Option {
	return func(e *Engine) {
		if len(packages) > 0 {
			e.packages = packages
		}
	}
}

// WithConsumerBases sets the framework classes that consumer components
// extend.
func WithConsumerBases(bases ...string) Option {
	return func(e *Engine) {
		if len(bases) > 0 {
			e.consumerBases = bases
		}
	}
}

// WithBuildMethod sets the method walked when a provider forwards to a
// notifier class.
func WithBuildMethod(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.buildMethod = name
		}
	}
}

// WithExclude sets directory names skipped during discovery, replacing the
// defaults.
func WithExclude(dirs ...string) Option {
	return func(e *Engine) {
		e.exclude = make(map[string]bool, len(dirs))
		for _, d := range dirs {
			e.exclude[d] = true
		}
	}
}

// WithLogger sets the structured logger. Per-file progress is logged at
// debug level.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithParallel controls parallel parsing. When true (default), files are
// parsed by a worker pool; linking and visiting always run on one
// goroutine. Set to false for serial mode.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// WithWorkers bounds the parse pool. Zero or less means one worker per CPU.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithDatabase persists every finished analysis to the SQLite database at
// path.
func WithDatabase(path string) Option {
	return func(e *Engine) {
		e.dbPath = path
	}
}

// New creates an Engine. It opens and migrates the database when
// WithDatabase is set.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		packages:    semantic.DefaultPackages,
		buildMethod: visit.DefaultBuildMethod,
		log:         slog.New(slog.DiscardHandler),
		useParallel: true,
		graph:       graph.New(),
	}
	WithExclude(frontend.DefaultExclude...)(e)
	for _, opt := range opts {
		opt(e)
	}

	if e.dbPath != "" {
		s, err := store.NewStore(e.dbPath)
		if err != nil {
			return nil, fmt.Errorf("provgraph: create store: %w", err)
		}
		if err := s.Migrate(); err != nil {
			s.Close()
			return nil, fmt.Errorf("provgraph: migrate: %w", err)
		}
		e.store = s
	}
	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

// Store returns the underlying Store, or nil without WithDatabase.
func (e *Engine) Store() *Store {
	return e.store
}

// Snapshot returns a read-only view of the last analysis.
func (e *Engine) Snapshot() Snapshot {
	return e.graph.Snapshot()
}

// Files returns the root-relative paths analysed by the last run, sorted.
func (e *Engine) Files() []string {
	return append([]string(nil), e.files...)
}

// Changed reports whether the last saved graph differs from the one the
// database held before. It is true when nothing was stored yet and false
// without WithDatabase.
func (e *Engine) Changed() bool {
	return e.changed
}

// AnalyzeDirectory discovers the supported source files under root and
// analyses them. If root is inside a git repository, uses git ls-files to
// respect .gitignore; falls back to a filesystem walk otherwise.
func (e *Engine) AnalyzeDirectory(ctx context.Context, root string) error {
	paths, err := e.gitListFiles(root)
	if err != nil {
		// Not a git repo or git not available; fall back to walk.
		paths, err = e.walkListFiles(root)
		if err != nil {
			return fmt.Errorf("provgraph: %w", err)
		}
	}
	return e.AnalyzeFiles(ctx, root, paths)
}

// AnalyzeFiles builds a fresh graph from paths, which are absolute or
// relative to root. Declaration IDs use the slash-separated path relative
// to root.
//
// Files that cannot be read or parsed are skipped and reported together
// once the rest of the project has been analysed. An access argument the
// resolver cannot reduce aborts the run immediately with an error matching
// ErrUnsupported.
func (e *Engine) AnalyzeFiles(ctx context.Context, root string, paths []string) error {
	start := time.Now()
	e.graph = graph.New()
	e.files = nil
	e.changed = false

	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("provgraph: resolve root: %w", err)
	}

	var jobs []parseJob
	for _, p := range paths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		rel, err := filepath.Rel(root, p)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return fmt.Errorf("provgraph: %s is outside %s", p, root)
		}
		rel = filepath.ToSlash(rel)
		if _, ok := frontend.LanguageForFile(rel); !ok {
			continue // unsupported extension
		}
		jobs = append(jobs, parseJob{path: p, rel: rel})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].rel < jobs[j].rel })

	var files []*frontend.File
	var errs []error
	if e.useParallel {
		files, errs, err = e.parseParallel(ctx, jobs)
	} else {
		files, errs, err = e.parseSerial(ctx, jobs)
	}
	if err != nil {
		return fmt.Errorf("provgraph: %w", err)
	}
	for _, f := range files {
		e.files = append(e.files, f.Path)
	}

	if err := e.build(ctx, files); err != nil {
		return fmt.Errorf("provgraph: %w", err)
	}

	e.log.Info("analysis complete",
		slog.String("root", root),
		slog.Int("files", len(files)),
		slog.Int("providers", len(e.graph.Providers())),
		slog.Int("consumers", len(e.graph.Consumers())),
		slog.Int("edges", e.graph.EdgeCount()),
		slog.Duration("elapsed", time.Since(start).Round(time.Millisecond)),
	)

	if e.store != nil {
		if err := e.save(root); err != nil {
			return fmt.Errorf("provgraph: %w", err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("provgraph: analysis had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

// build links the parsed files and runs classification and visiting one
// file at a time.
func (e *Engine) build(ctx context.Context, files []*frontend.File) error {
	fw := semantic.NewFramework(e.packages...)
	units, err := frontend.NewProgram(fw, files, frontend.WithLogger(e.log)).Link(ctx)
	if err != nil {
		return fmt.Errorf("link: %w", err)
	}

	classifier := classify.New(fw, e.consumerBases...)
	visitor := visit.New(fw, e.graph,
		visit.WithBuildMethod(e.buildMethod),
		visit.WithLogger(e.log),
	)
	for _, u := range units {
		if err := ctx.Err(); err != nil {
			return err
		}
		r := classifier.Classify(u)
		for _, d := range r.Providers {
			if err := visitor.VisitProvider(d); err != nil {
				return fmt.Errorf("%s: %w", u.Path, err)
			}
		}
		for _, d := range r.Consumers {
			if err := visitor.VisitConsumer(d); err != nil {
				return fmt.Errorf("%s: %w", u.Path, err)
			}
		}
		e.log.Debug("analyzed file",
			slog.String("path", u.Path),
			slog.Int("providers", len(r.Providers)),
			slog.Int("consumers", len(r.Consumers)),
		)
	}
	return nil
}

// save writes the snapshot and records whether it changed.
func (e *Engine) save(root string) error {
	snap := e.graph.Snapshot()
	previous, err := e.store.GetMetadata(store.MetaGraphHash)
	if err != nil {
		return err
	}
	e.changed = previous != store.SnapshotHash(snap)
	if err := e.store.SaveSnapshot(snap, root); err != nil {
		return err
	}
	e.log.Debug("saved snapshot", slog.String("db", e.dbPath), slog.Bool("changed", e.changed))
	return nil
}

// parseJob is one file to parse.
type parseJob struct {
	path string // absolute
	rel  string // slash-separated, relative to the root
}

func (e *Engine) parseSerial(ctx context.Context, jobs []parseJob) ([]*frontend.File, []error, error) {
	var files []*frontend.File
	var errs []error
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		f, err := e.parseFile(ctx, job)
		if err != nil {
			errs = append(errs, fmt.Errorf("parse %s: %w", job.rel, err))
			continue
		}
		files = append(files, f)
	}
	return files, errs, nil
}

func (e *Engine) parseFile(ctx context.Context, job parseJob) (*frontend.File, error) {
	src, err := os.ReadFile(job.path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	f, err := frontend.Parse(ctx, job.rel, src)
	if err != nil {
		return nil, err
	}
	if f.HasSyntaxErrors() {
		e.log.Warn("syntax errors, analysing recovered tree", slog.String("path", job.rel))
	}
	return f, nil
}

// excluded reports whether any directory of the slash-separated rel path is
// hidden or excluded.
func (e *Engine) excluded(rel string) bool {
	dirs := strings.Split(rel, "/")
	for _, d := range dirs[:len(dirs)-1] {
		if strings.HasPrefix(d, ".") || e.exclude[d] {
			return true
		}
	}
	return false
}

// gitListFiles uses git ls-files to discover tracked and untracked (but not
// ignored) files under root, filtered to supported languages.
func (e *Engine) gitListFiles(root string) ([]string, error) {
	// --cached: tracked files, --others: untracked files,
	// --exclude-standard: respect .gitignore, .git/info/exclude, global excludes.
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || e.excluded(line) {
			continue
		}
		if _, ok := frontend.LanguageForFile(line); ok {
			paths = append(paths, filepath.Join(root, filepath.FromSlash(line)))
		}
	}
	return paths, nil
}

// walkListFiles discovers files by walking the filesystem, used as a fallback
// when git is not available. Skips hidden and excluded directories.
func (e *Engine) walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || e.exclude[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := frontend.LanguageForFile(path); ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return paths, nil
}

// Package provgraph builds the dependency graph of a Riverpod-style
// reactive state codebase written in TypeScript or TSX.
//
// # Pipeline
//
// An analysis runs in four steps:
//
//  1. Discover: list the .ts, .tsx, .mts and .cts files under a root with
//     git ls-files, or a filesystem walk outside a git repository.
//
//  2. Parse: read each file with tree-sitter and collect its imports,
//     exports and declarations. Files are parsed in parallel.
//
//  3. Link: resolve module specifiers, compute declared types, and convert
//     bodies into a resolved expression model.
//
//  4. Visit: file by file, classify declarations into providers and
//     consumers, then walk each provider's defining body and each
//     consumer's members, recording a watch, listen or read edge for every
//     access call.
//
// # Usage
//
//	e, err := provgraph.New(provgraph.WithPackages("riverpod"))
//	if err != nil { ... }
//	defer e.Close()
//
//	if err := e.AnalyzeDirectory(ctx, "path/to/app"); err != nil { ... }
//	snap := e.Snapshot()
//
// A snapshot lists providers and consumers in discovery order, each with
// its edge lists of target node IDs. Node IDs are the declaration's
// root-relative file path and its name: "lib/providers.ts#counter", or
// "lib/repo.ts#Repo.items" for a static class member.
//
// # Failures
//
// Files that cannot be read are skipped and reported after the rest of the
// project is analysed. An argument to watch, listen or read that does not
// reduce to a provider aborts the run with an error matching
// [ErrUnsupported].
package provgraph

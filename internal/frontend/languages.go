package frontend

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	ts "github.com/smacker/go-tree-sitter/typescript/typescript"
)

// extToLanguage maps file extensions to grammar names.
var extToLanguage = map[string]string{
	".ts":  "typescript",
	".mts": "typescript",
	".cts": "typescript",
	".tsx": "tsx",
}

// Lazily initialized on first call via sync.Once.
var (
	langToGrammar map[string]*sitter.Language
	grammarsOnce  sync.Once
)

func initGrammars() {
	grammarsOnce.Do(func() {
		langToGrammar = map[string]*sitter.Language{
			"typescript": ts.GetLanguage(),
			"tsx":        tsx.GetLanguage(),
		}
	})
}

// LanguageForFile returns the grammar name for a file path based on its
// extension. Declaration files (.d.ts) carry no bodies and are rejected.
func LanguageForFile(path string) (string, bool) {
	lower := strings.ToLower(path)
	for _, decl := range []string{".d.ts", ".d.mts", ".d.cts"} {
		if strings.HasSuffix(lower, decl) {
			return "", false
		}
	}
	lang, ok := extToLanguage[filepath.Ext(lower)]
	return lang, ok
}

// GrammarForLanguage returns the tree-sitter Language for a grammar name.
func GrammarForLanguage(lang string) (*sitter.Language, bool) {
	initGrammars()
	l, ok := langToGrammar[lang]
	return l, ok
}

// moduleExtensions are tried, in order, when an import specifier omits the
// extension.
var moduleExtensions = []string{".ts", ".tsx", ".mts", ".cts"}

// DefaultExclude are the dependency and build output directories of a
// TypeScript project, skipped during discovery unless configured otherwise.
var DefaultExclude = []string{"node_modules", "dist", "build", "coverage"}

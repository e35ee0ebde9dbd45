// Package projectdir encapsulates all path knowledge for the .promptchain/
// project directory. It provides a Dir value object with accessors for the
// config file, prompt templates, and local runtime state.
package projectdir

import (
	"os"
	"path/filepath"
	"sort"
)

// DefaultName is the directory name looked up in the working directory.
const DefaultName = ".promptchain"

// Dir is a value object that resolves paths within a .promptchain/ directory.
type Dir struct {
	root string
}

// New creates a Dir rooted at the given path. The path is converted to an
// absolute path. No I/O is performed; use Bootstrap to create the layout.
func New(root string) Dir {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}

	return Dir{root: abs}
}

// Root returns the absolute path to the directory.
func (d Dir) Root() string { return d.root }

// ConfigPath returns the path to the main config file.
func (d Dir) ConfigPath() string { return filepath.Join(d.root, "config.yaml") }

// PromptsDir returns the path to the prompt template directory.
func (d Dir) PromptsDir() string { return filepath.Join(d.root, "prompts") }

// LocalDir returns the path to the local (gitignored) runtime state directory.
func (d Dir) LocalDir() string { return filepath.Join(d.root, "local") }

// HistoryPath returns the default SQLite history database path.
func (d Dir) HistoryPath() string { return filepath.Join(d.root, "local", "history.db") }

// GitignorePath returns the path to the .gitignore file.
func (d Dir) GitignorePath() string { return filepath.Join(d.root, ".gitignore") }

// PromptFiles returns sorted paths of all *.yaml and *.yml files in the
// prompts directory (non-recursive). Returns nil if there are none.
func (d Dir) PromptFiles() []string {
	var matches []string
	for _, ext := range []string{"*.yaml", "*.yml"} {
		m, err := filepath.Glob(filepath.Join(d.PromptsDir(), ext))
		if err == nil {
			matches = append(matches, m...)
		}
	}

	if len(matches) == 0 {
		return nil
	}

	sort.Strings(matches)

	return matches
}

// Exists reports whether the root directory exists on disk.
func (d Dir) Exists() bool {
	info, err := os.Stat(d.root)

	return err == nil && info.IsDir()
}

// ResolveConfigPath picks the config file: explicit wins, then the project
// directory's config.yaml if present, then promptchain.yaml in the working
// directory.
func ResolveConfigPath(explicit string, d Dir) string {
	if explicit != "" {
		return explicit
	}

	if _, err := os.Stat(d.ConfigPath()); err == nil {
		return d.ConfigPath()
	}

	return "promptchain.yaml"
}

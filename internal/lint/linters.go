// Package lint runs the repository's external linters and reports their
// exit codes.
package lint

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
)

// ErrNothingToLint means a linter found no input files and was not run.
var ErrNothingToLint = errors.New("nothing to lint")

// Format selects how yamllint reports problems.
type Format string

const (
	FormatStandard Format = "standard"
	FormatParsable Format = "parsable"
	FormatGitLab   Format = "gitlab" // parsable output converted to code-quality JSON
)

// Linter describes one external linter invocation.
type Linter struct {
	Name     string
	Binary   string
	Optional bool // a missing binary is reported as skipped, not failed
	Args     func(repoDir string) ([]string, error)
}

// MarkdownIgnores are excluded from markdown linting.
var MarkdownIgnores = []string{"node_modules", "charts", "**/charts"}

// Markdown lints every Markdown file with markdownlint-cli2. The tool picks
// up its own config file from the repository root.
func Markdown() Linter {
	return Linter{
		Name:     "markdown",
		Binary:   "markdownlint-cli2",
		Optional: true,
		Args: func(string) ([]string, error) {
			args := []string{"**/*.md"}
			for _, ig := range MarkdownIgnores {
				args = append(args, "#"+ig)
			}
			return args, nil
		},
	}
}

// ShellSkipDirs are never searched for shell scripts.
var ShellSkipDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	"__pycache__":  true,
	"venv":         true,
	".venv":        true,
}

// Shell lints every discovered *.sh file with shellcheck.
func Shell() Linter {
	return Linter{
		Name:   "shell",
		Binary: "shellcheck",
		Args: func(repoDir string) ([]string, error) {
			files, err := FindShellScripts(repoDir)
			if err != nil {
				return nil, err
			}
			if len(files) == 0 {
				return nil, ErrNothingToLint
			}
			return files, nil
		},
	}
}

// YAML lints the repository with yamllint in strict mode.
func YAML(format Format) Linter {
	return Linter{
		Name:   "yaml",
		Binary: "yamllint",
		Args: func(string) ([]string, error) {
			args := []string{".", "--strict"}
			if format == FormatParsable || format == FormatGitLab {
				args = append(args, "--format", "parsable")
			}
			return args, nil
		},
	}
}

// FindShellScripts returns the *.sh files under root, relative to root and
// sorted.
func FindShellScripts(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && ShellSkipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".sh" {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

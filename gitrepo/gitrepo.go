// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package gitrepo provides typed access to the git CLI for the settings
// devenv maintains in a repository. All commands target a specific
// directory via "git -C <dir>".
package gitrepo

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.astrophena.name/devenv/internal/proc"
)

// Repository is a git working tree at a specific directory.
type Repository struct {
	dir    string
	runner proc.Runner
}

// New returns a Repository targeting dir that runs git through r.
func New(dir string, r proc.Runner) *Repository {
	return &Repository{dir: dir, runner: r}
}

// Dir returns the repository directory.
func (r *Repository) Dir() string { return r.dir }

// Run executes a git command in the repository and returns stdout.
func (r *Repository) Run(ctx context.Context, args ...string) (string, error) {
	return r.runner.Run(ctx, proc.Cmd{
		Name: "git",
		Args: append([]string{"-C", r.dir}, args...),
	})
}

// ConfigValues returns all values of key in the local repository
// configuration. An unset key yields no values and no error.
func (r *Repository) ConfigValues(ctx context.Context, key string) ([]string, error) {
	out, err := r.Run(ctx, "config", "--local", "--get-all", key)
	if err != nil {
		// git config exits with 1 when the key is not set.
		if proc.ExitCode(err) == 1 {
			return nil, nil
		}
		return nil, err
	}
	var values []string
	for line := range strings.Lines(out) {
		values = append(values, strings.TrimRight(line, "\n"))
	}
	return values, nil
}

// SetConfig sets the single-valued key to value unless it already has
// exactly that value. It reports whether the configuration was changed.
func (r *Repository) SetConfig(ctx context.Context, key, value string) (bool, error) {
	values, err := r.ConfigValues(ctx, key)
	if err != nil {
		return false, err
	}
	if len(values) == 1 && values[0] == value {
		return false, nil
	}
	if _, err := r.Run(ctx, "config", "--local", "--replace-all", key, value); err != nil {
		return false, err
	}
	return true, nil
}

// AddConfig adds value to the multi-valued key unless it is already
// present. Existing values are kept. It reports whether the configuration
// was changed.
func (r *Repository) AddConfig(ctx context.Context, key, value string) (bool, error) {
	values, err := r.ConfigValues(ctx, key)
	if err != nil {
		return false, err
	}
	if slices.Contains(values, value) {
		return false, nil
	}
	if _, err := r.Run(ctx, "config", "--local", "--add", key, value); err != nil {
		return false, err
	}
	return true, nil
}

// HooksDir returns the absolute path of the directory git runs hooks from.
// It honors core.hooksPath and linked worktrees.
func (r *Repository) HooksDir(ctx context.Context) (string, error) {
	out, err := r.Run(ctx, "rev-parse", "--git-path", "hooks")
	if err != nil {
		return "", err
	}
	dir := strings.TrimSpace(out)
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(r.dir, dir)
	}
	return dir, nil
}

// ErrNotRepository is returned by [FindRoot] when no enclosing git working
// tree is found.
var ErrNotRepository = errors.New("not inside a git working tree")

// FindRoot resolves symlinks in start and walks up to the first directory
// containing a ".git" entry. The result is absolute and symlink-free, so it
// doesn't depend on the invocation directory or on how start was reached.
func FindRoot(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	dir, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	for {
		_, err := os.Lstat(filepath.Join(dir, ".git"))
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNotRepository
		}
		dir = parent
	}
}

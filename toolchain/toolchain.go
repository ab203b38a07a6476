// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package toolchain locates the external commands and the interpreter a
// development environment is built with.
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.astrophena.name/devenv/internal/proc"
	"go.astrophena.name/devenv/logger"
	"go.astrophena.name/devenv/syncx"
)

// MissingError lists required commands that are not on PATH.
type MissingError struct {
	Names []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("required commands not found on PATH: %s", strings.Join(e.Names, ", "))
}

// ErrNoInterpreter is returned when no usable interpreter is found.
var ErrNoInterpreter = errors.New("interpreter not found")

// Source tells how an interpreter was found.
type Source string

const (
	SourceVersionManager Source = "version-manager"
	SourcePath           Source = "path"
)

// Interpreter is a resolved interpreter executable.
type Interpreter struct {
	Path    string `json:"path" yaml:"path"`
	Version string `json:"version" yaml:"version"`
	Source  Source `json:"source" yaml:"source"`
}

// Resolver finds commands through a [proc.Runner]. Lookups are cached for
// the lifetime of the Resolver. The zero value is not usable; set Runner.
type Resolver struct {
	Runner proc.Runner

	cache syncx.Map[string, string]
}

// LookPath returns the path of the named command.
func (r *Resolver) LookPath(name string) (string, error) {
	if path, ok := r.cache.Load(name); ok {
		return path, nil
	}
	path, err := r.Runner.LookPath(name)
	if err != nil {
		return "", err
	}
	path, _ = r.cache.LoadOrStore(name, path)
	return path, nil
}

// Require returns a [*MissingError] naming every command of names that
// can't be found.
func (r *Resolver) Require(ctx context.Context, names ...string) error {
	var missing []string
	for _, name := range names {
		path, err := r.LookPath(name)
		if err != nil {
			missing = append(missing, name)
			continue
		}
		logger.Debug(ctx, "found command", slog.String("command", name), slog.String("path", path))
	}
	if len(missing) > 0 {
		return &MissingError{Names: missing}
	}
	return nil
}

// Interpreter finds "python<version>". If manager is set and on PATH,
// "<manager> which python<version>" is tried first; otherwise, or when the
// manager can't resolve it, PATH is searched. The candidate must report the
// requested major.minor version.
func (r *Resolver) Interpreter(ctx context.Context, version, manager string) (Interpreter, error) {
	name := "python" + version

	if manager != "" {
		if _, err := r.LookPath(manager); err == nil {
			out, err := r.Runner.Run(ctx, proc.Cmd{Name: manager, Args: []string{"which", name}})
			path := strings.TrimSpace(out)
			if err == nil && path != "" {
				got, verr := r.verify(ctx, path, version)
				if verr == nil {
					return Interpreter{Path: path, Version: got, Source: SourceVersionManager}, nil
				}
				err = verr
			}
			logger.Debug(ctx, "version manager could not resolve interpreter",
				slog.String("manager", manager),
				slog.String("interpreter", name),
				slog.Any("err", err),
			)
		}
	}

	path, err := r.LookPath(name)
	if err != nil {
		return Interpreter{}, fmt.Errorf("%w: %s", ErrNoInterpreter, name)
	}
	got, err := r.verify(ctx, path, version)
	if err != nil {
		return Interpreter{}, fmt.Errorf("%w: %v", ErrNoInterpreter, err)
	}
	return Interpreter{Path: path, Version: got, Source: SourcePath}, nil
}

func (r *Resolver) verify(ctx context.Context, path, want string) (string, error) {
	var combined bytes.Buffer
	out, err := r.Runner.Run(ctx, proc.Cmd{Name: path, Args: []string{"--version"}, Output: &combined})
	if err != nil {
		return "", err
	}
	got := ParseVersion(out)
	if got == "" {
		// Python 2 prints its version to stderr.
		got = ParseVersion(combined.String())
	}
	if !MatchVersion(got, want) {
		return "", fmt.Errorf("%s reports version %q, want %s", path, got, want)
	}
	return got, nil
}

// ParseVersion extracts the version number from interpreter output like
// "Python 3.8.10".
func ParseVersion(out string) string {
	for _, f := range strings.Fields(out) {
		if f != "" && f[0] >= '0' && f[0] <= '9' {
			return f
		}
	}
	return ""
}

// MatchVersion reports whether got is want or a patch release of it.
func MatchVersion(got, want string) bool {
	return got == want || strings.HasPrefix(got, want+".")
}

// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package proctest provides a fake [proc.Runner] for tests.
package proctest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"go.astrophena.name/devenv/internal/proc"
)

// System is a [proc.Runner] emulating the commands a development
// environment setup runs: git configuration and path queries, virtualenv,
// pip and a Python interpreter. Create it with [New].
type System struct {
	// Paths maps command names to the paths LookPath returns.
	Paths map[string]string
	// Python is what the interpreter prints for --version.
	Python string
	// Config is the local git configuration.
	Config map[string][]string

	// GitFail makes git configuration writes fail.
	GitFail bool
	// PipFail makes pip fail.
	PipFail bool

	// Calls records every command line run.
	Calls []string
	// GitWrites counts git configuration writes.
	GitWrites int
	// Virtualenv counts virtualenv runs.
	Virtualenv int
	// Pip records pip invocations.
	Pip []proc.Cmd

	mu sync.Mutex
}

// New returns a System with git, virtualenv and python3.8 on PATH.
func New() *System {
	return &System{
		Paths: map[string]string{
			"git":        "/usr/bin/git",
			"virtualenv": "/usr/bin/virtualenv",
			"python3.8":  "/usr/bin/python3.8",
		},
		Python: "Python 3.8.18\n",
		Config: make(map[string][]string),
	}
}

// LookPath implements [proc.Runner].
func (s *System) LookPath(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if path, ok := s.Paths[name]; ok {
		return path, nil
	}
	return "", fmt.Errorf("%s: %w", name, proc.ErrNotFound)
}

// Run implements [proc.Runner].
func (s *System) Run(ctx context.Context, c proc.Cmd) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Calls = append(s.Calls, c.String())
	switch {
	case c.Name == "git":
		return s.git(c)
	case c.Name == "virtualenv":
		s.Virtualenv++
		dir := c.Args[len(c.Args)-1]
		if err := os.MkdirAll(filepath.Join(dir, "bin"), 0o755); err != nil {
			return "", err
		}
		for _, name := range []string{"activate", "pip", "python"} {
			if err := os.WriteFile(filepath.Join(dir, "bin", name), nil, 0o755); err != nil {
				return "", err
			}
		}
		return "created virtual environment\n", nil
	case strings.HasSuffix(c.Name, "/bin/pip"):
		s.Pip = append(s.Pip, c)
		if s.PipFail {
			return "", exit(c, 1, "ERROR: No matching distribution found for pytest==7.4.0")
		}
		return "Successfully installed\n", nil
	case c.Name == s.Paths["python3.8"] && slices.Equal(c.Args, []string{"--version"}):
		return s.Python, nil
	}
	return "", exit(c, 127, "command not found")
}

func (s *System) git(c proc.Cmd) (string, error) {
	if len(c.Args) < 3 || c.Args[0] != "-C" {
		return "", exit(c, 129, "usage: git -C <dir> ...")
	}
	args := c.Args[2:]
	switch {
	case slices.Equal(args, []string{"rev-parse", "--git-path", "hooks"}):
		return ".git/hooks\n", nil
	case len(args) == 4 && args[2] == "--get-all":
		values := s.Config[args[3]]
		if len(values) == 0 {
			return "", exit(c, 1, "")
		}
		return strings.Join(values, "\n") + "\n", nil
	case len(args) == 5 && (args[2] == "--replace-all" || args[2] == "--add"):
		if s.GitFail {
			return "", exit(c, 255, "error: could not lock config file .git/config: File exists")
		}
		s.GitWrites++
		if args[2] == "--add" {
			s.Config[args[3]] = append(s.Config[args[3]], args[4])
		} else {
			s.Config[args[3]] = []string{args[4]}
		}
		return "", nil
	}
	return "", exit(c, 129, "unknown git command")
}

func exit(c proc.Cmd, code int, stderr string) error {
	return &proc.Error{
		Cmd:      c.String(),
		ExitCode: code,
		Stderr:   stderr,
		Err:      fmt.Errorf("exit status %d", code),
	}
}

// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package proc runs external commands on behalf of devenv.
//
// Commands are resolved against the PATH of the environment they run in,
// not the PATH of the devenv process, so callers can run tools from an
// environment overlay.
package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// Cmd describes a single command invocation.
type Cmd struct {
	// Name is the command name or path.
	Name string
	// Args are the command arguments.
	Args []string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env is the complete child environment in "key=value" form.
	Env []string
	// Output, if set, receives stdout and stderr as they are written
	// instead of capturing stderr for the error message.
	Output io.Writer
}

// String returns the command line.
func (c Cmd) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Runner runs commands and looks them up on PATH.
type Runner interface {
	// Run runs c and returns its standard output.
	Run(ctx context.Context, c Cmd) (string, error)
	// LookPath searches for an executable named name.
	LookPath(name string) (string, error)
}

// Error is returned when a command fails to start or exits unsuccessfully.
type Error struct {
	Cmd      string
	ExitCode int // -1 if the command did not exit normally
	Stderr   string
	Err      error
}

func (e *Error) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: %v", e.Cmd, e.Err)
	}
	return fmt.Sprintf("%s: %v (stderr: %s)", e.Cmd, e.Err, e.Stderr)
}

func (e *Error) Unwrap() error { return e.Err }

// ExitCode returns the exit code carried by err, or -1 if err is not an
// [*Error] for an exited process.
func ExitCode(err error) int {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.ExitCode
	}
	return -1
}

// ErrNotFound is returned by LookPath when no executable is found.
var ErrNotFound = errors.New("executable file not found in $PATH")

// Exec is a [Runner] that runs real processes.
type Exec struct {
	// Getenv returns the value of PATH used by LookPath. If nil, the PATH
	// of the current process is used.
	Getenv func(string) string
}

// LookPath searches the directories named by PATH for an executable named
// name. Names containing a path separator are checked directly.
func (e *Exec) LookPath(name string) (string, error) {
	path := os.Getenv("PATH")
	if e.Getenv != nil {
		path = e.Getenv("PATH")
	}
	return lookPath(name, path)
}

func lookPath(name, path string) (string, error) {
	if strings.ContainsRune(name, filepath.Separator) {
		if err := findExecutable(name); err != nil {
			return "", fmt.Errorf("%s: %w", name, err)
		}
		return name, nil
	}
	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, name)
		if err := findExecutable(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s: %w", name, ErrNotFound)
}

func findExecutable(file string) error {
	fi, err := os.Stat(file)
	if err != nil {
		return err
	}
	if m := fi.Mode(); !m.IsDir() && m&0o111 != 0 {
		return nil
	}
	return fs.ErrPermission
}

// Run runs c. The command name is resolved against the PATH found in c.Env
// when c.Env is set.
func (e *Exec) Run(ctx context.Context, c Cmd) (string, error) {
	name := c.Name
	if c.Env != nil && !strings.ContainsRune(name, filepath.Separator) {
		resolved, err := lookPath(name, envValue(c.Env, "PATH"))
		if err != nil {
			return "", &Error{Cmd: c.String(), ExitCode: -1, Err: err}
		}
		name = resolved
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	if c.Output != nil {
		out := &syncWriter{w: c.Output}
		cmd.Stdout = io.MultiWriter(&stdout, out)
		cmd.Stderr = out
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	if err := cmd.Run(); err != nil {
		code := -1
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			code = ee.ExitCode()
		}
		return stdout.String(), &Error{
			Cmd:      c.String(),
			ExitCode: code,
			Stderr:   strings.TrimSpace(stderr.String()),
			Err:      err,
		}
	}
	return stdout.String(), nil
}

// syncWriter serializes writes from the stdout and stderr copiers.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}

// envValue returns the last value of key in environ.
func envValue(environ []string, key string) string {
	var v string
	for _, kv := range environ {
		if k, val, ok := strings.Cut(kv, "="); ok && k == key {
			v = val
		}
	}
	return v
}

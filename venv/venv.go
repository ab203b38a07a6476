// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package venv checks and activates Python virtual environments.
//
// Activation does not touch the environment of the running process.
// [Activate] returns an [Overlay] describing the variables a session must
// change; callers apply it to a child environment with [Overlay.Apply] or
// hand it to a shell with [Overlay.Script].
package venv

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/natefinch/atomic"

	"go.astrophena.name/devenv/internal/proc"
)

// EntryPoint is the activation script inside an environment directory.
var EntryPoint = filepath.Join("bin", "activate")

var (
	// ErrNotFound means the environment directory does not exist.
	ErrNotFound = errors.New("virtual environment not found")
	// ErrCorrupt means the environment directory lacks its activation
	// entry point.
	ErrCorrupt = errors.New("virtual environment is corrupt")
)

// Error describes an environment that can't be activated.
type Error struct {
	// Dir is the environment directory as given by the caller.
	Dir string
	// Reason is ErrNotFound or ErrCorrupt.
	Reason error
	// Err is the underlying file system error, if any.
	Err error
}

func (e *Error) Error() string {
	switch e.Reason {
	case ErrNotFound:
		return fmt.Sprintf("virtual environment %q not found: run \"devenv setup\" first", e.Dir)
	case ErrCorrupt:
		return fmt.Sprintf("virtual environment %q is missing %s: delete it and run \"devenv setup\" again", e.Dir, EntryPoint)
	}
	return fmt.Sprintf("virtual environment %q: %v", e.Dir, e.Err)
}

// Is reports whether target is the reason of e.
func (e *Error) Is(target error) bool { return target == e.Reason }

func (e *Error) Unwrap() error { return e.Err }

// Check verifies that dir is a usable environment directory.
func Check(dir string) error {
	fi, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &Error{Dir: dir, Reason: ErrNotFound, Err: err}
	case err != nil:
		return &Error{Dir: dir, Err: err}
	case !fi.IsDir():
		return &Error{Dir: dir, Reason: ErrCorrupt}
	}

	fi, err = os.Stat(filepath.Join(dir, EntryPoint))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &Error{Dir: dir, Reason: ErrCorrupt, Err: err}
	case err != nil:
		return &Error{Dir: dir, Err: err}
	case fi.IsDir():
		return &Error{Dir: dir, Reason: ErrCorrupt}
	}
	return nil
}

// Exists reports whether dir exists. Any stat error other than "not exist"
// is returned.
func Exists(dir string) (bool, error) {
	_, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// Bin returns the path of the executable name inside the environment.
func Bin(dir, name string) string {
	return filepath.Join(dir, "bin", name)
}

// Create runs virtualenv to create an environment in dir using the given
// interpreter. It does nothing if dir already exists and reports whether
// the environment was created.
func Create(ctx context.Context, r proc.Runner, environ []string, interpreter, dir string) (bool, error) {
	exists, err := Exists(dir)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if _, err := r.Run(ctx, proc.Cmd{
		Name: "virtualenv",
		Args: []string{"-p", interpreter, dir},
		Env:  environ,
	}); err != nil {
		return false, err
	}
	return true, nil
}

// Overlay is a set of changes to a process environment.
type Overlay struct {
	// Set holds variables to set.
	Set map[string]string `json:"set" yaml:"set"`
	// Unset holds variables to remove.
	Unset []string `json:"unset" yaml:"unset"`
	// PathPrepend is prepended to PATH.
	PathPrepend string `json:"path_prepend" yaml:"path_prepend"`
}

// Activate checks dir and returns the overlay that activates it.
func Activate(dir string) (*Overlay, error) {
	if err := Check(dir); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &Overlay{
		Set:         map[string]string{"VIRTUAL_ENV": abs},
		Unset:       []string{"PYTHONHOME"},
		PathPrepend: filepath.Join(abs, "bin"),
	}, nil
}

// Apply returns a copy of environ with the overlay applied. The order of
// untouched variables is preserved; new variables are appended in sorted
// order.
func (o *Overlay) Apply(environ []string) []string {
	out := make([]string, 0, len(environ)+len(o.Set)+1)
	seen := make(map[string]bool)
	var pathSeen bool

	for _, kv := range environ {
		k, v, _ := strings.Cut(kv, "=")
		switch {
		case slices.Contains(o.Unset, k):
			continue
		case k == "PATH" && o.PathPrepend != "":
			if pathSeen {
				continue
			}
			pathSeen = true
			out = append(out, "PATH="+joinPath(o.PathPrepend, v))
			continue
		}
		if nv, ok := o.Set[k]; ok {
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, k+"="+nv)
			continue
		}
		out = append(out, kv)
	}

	for _, k := range sortedKeys(o.Set) {
		if !seen[k] {
			out = append(out, k+"="+o.Set[k])
		}
	}
	if o.PathPrepend != "" && !pathSeen {
		out = append(out, "PATH="+o.PathPrepend)
	}
	return out
}

func joinPath(prefix, path string) string {
	if path == "" {
		return prefix
	}
	return prefix + string(filepath.ListSeparator) + path
}

// Script renders the overlay as POSIX shell commands suitable for eval.
func (o *Overlay) Script() string {
	var sb strings.Builder
	for _, k := range sortedKeys(o.Set) {
		fmt.Fprintf(&sb, "export %s=%s\n", k, shellQuote(o.Set[k]))
	}
	if o.PathPrepend != "" {
		fmt.Fprintf(&sb, "export PATH=%s\"${PATH:+:$PATH}\"\n", shellQuote(o.PathPrepend))
	}
	for _, k := range o.Unset {
		fmt.Fprintf(&sb, "unset %s\n", k)
	}
	return sb.String()
}

// WriteScript atomically writes the overlay script to path.
func (o *Overlay) WriteScript(path string) error {
	return atomic.WriteFile(path, strings.NewReader(o.Script()))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

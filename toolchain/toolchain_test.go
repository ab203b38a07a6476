// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package toolchain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"testing"

	"go.astrophena.name/devenv/internal/proc"
	"go.astrophena.name/devenv/testutil"
)

// fakeRunner knows a fixed set of executables and the output of their
// commands.
type fakeRunner struct {
	paths   map[string]string
	outputs map[string]string // command line -> stdout
	stderr  map[string]string // command line -> stderr
	lookups map[string]int
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	if f.lookups == nil {
		f.lookups = make(map[string]int)
	}
	f.lookups[name]++
	if p, ok := f.paths[name]; ok {
		return p, nil
	}
	return "", fmt.Errorf("%s: %w", name, proc.ErrNotFound)
}

func (f *fakeRunner) Run(ctx context.Context, c proc.Cmd) (string, error) {
	out, ok := f.outputs[c.String()]
	if !ok {
		return "", &proc.Error{Cmd: c.String(), ExitCode: 1, Err: errors.New("exit status 1")}
	}
	if msg := f.stderr[c.String()]; msg != "" && c.Output != nil {
		io.WriteString(c.Output, msg)
	}
	return out, nil
}

func TestRequire(t *testing.T) {
	t.Parallel()

	f := &fakeRunner{paths: map[string]string{"git": "/usr/bin/git"}}
	r := &Resolver{Runner: f}
	ctx := context.Background()

	if err := r.Require(ctx, "git"); err != nil {
		t.Fatalf("Require(git): %v", err)
	}
	if err := r.Require(ctx, "git"); err != nil {
		t.Fatalf("Require(git) again: %v", err)
	}
	testutil.AssertEqual(t, f.lookups["git"], 1)

	err := r.Require(ctx, "git", "virtualenv", "make")
	var me *MissingError
	if !errors.As(err, &me) {
		t.Fatalf("Require(): want *MissingError, got %v", err)
	}
	testutil.AssertEqual(t, me.Names, []string{"virtualenv", "make"})
	testutil.AssertEqual(t, err.Error(), "required commands not found on PATH: virtualenv, make")
}

func TestInterpreter(t *testing.T) {
	t.Parallel()

	pyenvPython := filepath.Join("/home/me/.pyenv/versions/3.8.18/bin", "python3.8")

	cases := map[string]struct {
		runner  *fakeRunner
		manager string
		want    Interpreter
		wantErr bool
	}{
		"version manager preferred": {
			runner: &fakeRunner{
				paths: map[string]string{"pyenv": "/usr/bin/pyenv", "python3.8": "/usr/bin/python3.8"},
				outputs: map[string]string{
					"pyenv which python3.8":    pyenvPython + "\n",
					pyenvPython + " --version": "Python 3.8.18\n",
				},
			},
			manager: "pyenv",
			want:    Interpreter{Path: pyenvPython, Version: "3.8.18", Source: SourceVersionManager},
		},
		"fallback when manager fails": {
			runner: &fakeRunner{
				paths: map[string]string{"pyenv": "/usr/bin/pyenv", "python3.8": "/usr/bin/python3.8"},
				outputs: map[string]string{
					"/usr/bin/python3.8 --version": "Python 3.8.10\n",
				},
			},
			manager: "pyenv",
			want:    Interpreter{Path: "/usr/bin/python3.8", Version: "3.8.10", Source: SourcePath},
		},
		"fallback when manager is absent": {
			runner: &fakeRunner{
				paths: map[string]string{"python3.8": "/usr/bin/python3.8"},
				outputs: map[string]string{
					"/usr/bin/python3.8 --version": "Python 3.8.10\n",
				},
			},
			manager: "pyenv",
			want:    Interpreter{Path: "/usr/bin/python3.8", Version: "3.8.10", Source: SourcePath},
		},
		"manager returns wrong version": {
			runner: &fakeRunner{
				paths: map[string]string{"pyenv": "/usr/bin/pyenv", "python3.8": "/usr/bin/python3.8"},
				outputs: map[string]string{
					"pyenv which python3.8":        "/shims/python3.8\n",
					"/shims/python3.8 --version":   "Python 3.9.1\n",
					"/usr/bin/python3.8 --version": "Python 3.8.2\n",
				},
			},
			manager: "pyenv",
			want:    Interpreter{Path: "/usr/bin/python3.8", Version: "3.8.2", Source: SourcePath},
		},
		"manager disabled": {
			runner: &fakeRunner{
				paths: map[string]string{"pyenv": "/usr/bin/pyenv", "python3.8": "/usr/bin/python3.8"},
				outputs: map[string]string{
					"pyenv which python3.8":        "/shims/python3.8\n",
					"/usr/bin/python3.8 --version": "Python 3.8.2\n",
				},
			},
			want: Interpreter{Path: "/usr/bin/python3.8", Version: "3.8.2", Source: SourcePath},
		},
		"version printed to stderr": {
			runner: &fakeRunner{
				paths:   map[string]string{"python3.8": "/usr/bin/python3.8"},
				outputs: map[string]string{"/usr/bin/python3.8 --version": ""},
				stderr:  map[string]string{"/usr/bin/python3.8 --version": "Python 3.8.5\n"},
			},
			want: Interpreter{Path: "/usr/bin/python3.8", Version: "3.8.5", Source: SourcePath},
		},
		"not found": {
			runner:  &fakeRunner{},
			manager: "pyenv",
			wantErr: true,
		},
		"wrong version on PATH": {
			runner: &fakeRunner{
				paths:   map[string]string{"python3.8": "/usr/bin/python3.8"},
				outputs: map[string]string{"/usr/bin/python3.8 --version": "Python 3.80.0\n"},
			},
			wantErr: true,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			r := &Resolver{Runner: tc.runner}
			got, err := r.Interpreter(context.Background(), "3.8", tc.manager)
			if tc.wantErr {
				if !errors.Is(err, ErrNoInterpreter) {
					t.Fatalf("Interpreter(): want ErrNoInterpreter, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Interpreter(): %v", err)
			}
			testutil.AssertEqual(t, got, tc.want)
		})
	}
}

func TestParseVersion(t *testing.T) {
	cases := map[string]string{
		"Python 3.8.10\n":  "3.8.10",
		"Python 3.12.0rc1": "3.12.0rc1",
		"":                 "",
		"Python (unknown)": "",
		"3.8.1 (pyenv)\n":  "3.8.1",
	}
	for in, want := range cases {
		testutil.AssertEqual(t, ParseVersion(in), want)
	}
}

func TestMatchVersion(t *testing.T) {
	cases := []struct {
		got, want string
		match     bool
	}{
		{"3.8.10", "3.8", true},
		{"3.8", "3.8", true},
		{"3.80.1", "3.8", false},
		{"3.9.0", "3.8", false},
		{"", "3.8", false},
	}
	for _, tc := range cases {
		testutil.AssertEqual(t, MatchVersion(tc.got, tc.want), tc.match)
	}
}

// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package proc

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"go.astrophena.name/devenv/testutil"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	return testutil.WriteFile(t, dir, name, []byte("#!/bin/sh\n"+body), 0o755)
}

func TestLookPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tool := writeScript(t, dir, "bin/tool", "exit 0\n")
	testutil.WriteFile(t, dir, "bin/data", []byte("not executable"), 0o644)

	e := &Exec{Getenv: func(key string) string {
		if key == "PATH" {
			return filepath.Join(dir, "missing") + string(filepath.ListSeparator) + filepath.Join(dir, "bin")
		}
		return ""
	}}

	got, err := e.LookPath("tool")
	if err != nil {
		t.Fatalf("LookPath(tool): %v", err)
	}
	testutil.AssertEqual(t, got, tool)

	if _, err := e.LookPath("data"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LookPath(data): want ErrNotFound, got %v", err)
	}
	if _, err := e.LookPath("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LookPath(nope): want ErrNotFound, got %v", err)
	}

	got, err = e.LookPath(tool)
	if err != nil {
		t.Fatalf("LookPath(%q): %v", tool, err)
	}
	testutil.AssertEqual(t, got, tool)
}

func TestRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	bin := filepath.Join(dir, "bin")
	writeScript(t, dir, "bin/greet", `echo "hello $GREETING from $(pwd)"`+"\n")
	writeScript(t, dir, "bin/fail", "echo partial\necho boom >&2\nexit 3\n")

	env := []string{"PATH=" + bin, "GREETING=world"}
	ctx := context.Background()
	e := new(Exec)

	t.Run("success", func(t *testing.T) {
		out, err := e.Run(ctx, Cmd{Name: "greet", Dir: dir, Env: env})
		if err != nil {
			t.Fatalf("Run(greet): %v", err)
		}
		want := "hello world from "
		if !strings.HasPrefix(out, want) {
			t.Fatalf("Run(greet) = %q, want prefix %q", out, want)
		}
	})

	t.Run("failure", func(t *testing.T) {
		out, err := e.Run(ctx, Cmd{Name: "fail", Args: []string{"-x"}, Env: env})
		testutil.AssertEqual(t, out, "partial\n")
		testutil.AssertEqual(t, ExitCode(err), 3)
		var pe *Error
		if !errors.As(err, &pe) {
			t.Fatalf("want *Error, got %T", err)
		}
		testutil.AssertEqual(t, pe.Cmd, "fail -x")
		testutil.AssertEqual(t, pe.Stderr, "boom")
		if !strings.Contains(err.Error(), "(stderr: boom)") {
			t.Fatalf("error must mention stderr, got %q", err)
		}
	})

	t.Run("streamed output", func(t *testing.T) {
		var buf bytes.Buffer
		_, err := e.Run(ctx, Cmd{Name: "fail", Env: env, Output: &buf})
		testutil.AssertEqual(t, ExitCode(err), 3)
		for _, want := range []string{"partial\n", "boom\n"} {
			if !strings.Contains(buf.String(), want) {
				t.Errorf("streamed output %q must contain %q", buf.String(), want)
			}
		}
	})

	t.Run("not on PATH", func(t *testing.T) {
		_, err := e.Run(ctx, Cmd{Name: "greet", Env: []string{"PATH=" + filepath.Join(dir, "nowhere")}})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("want ErrNotFound, got %v", err)
		}
		testutil.AssertEqual(t, ExitCode(err), -1)
	})
}

func TestExitCodeOfForeignError(t *testing.T) {
	testutil.AssertEqual(t, ExitCode(errors.New("x")), -1)
	testutil.AssertEqual(t, ExitCode(nil), -1)
}

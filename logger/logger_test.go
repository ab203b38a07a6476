// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.astrophena.name/devenv/testutil"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		"debug":      {in: "debug", want: slog.LevelDebug},
		"upper warn": {in: "WARN", want: slog.LevelWarn},
		"spaces":     {in: " error ", want: slog.LevelError},
		"invalid":    {in: "loud", wantErr: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := ParseLevel(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseLevel(%q): want error, got nil", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLevel(%q): %v", tc.in, err)
			}
			testutil.AssertEqual(t, got, tc.want)
		})
	}
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	l := New(nil)
	h := NewConsoleHandler(&buf, l.Level, false)
	l.Attach(h)
	ctx := Put(context.Background(), l)

	Debug(ctx, "hidden")
	Info(ctx, "linked hook", slog.String("name", "pre-commit"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug message must be filtered at info level, got %q", out)
	}
	if !strings.Contains(out, "linked hook") || !strings.Contains(out, "name=pre-commit") {
		t.Errorf("output must contain message and attribute, got %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("output must not contain color escapes, got %q", out)
	}

	l.Level.Set(slog.LevelDebug)
	Debug(ctx, "now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Errorf("debug message must pass after level change, got %q", buf.String())
	}

	var second bytes.Buffer
	l.Attach(NewConsoleHandler(&second, l.Level, false))
	buf.Reset()
	Error(ctx, "install failed")
	if !strings.Contains(buf.String(), "install failed") || !strings.Contains(second.String(), "install failed") {
		t.Errorf("record must reach every attached handler, got %q and %q", buf.String(), second.String())
	}
}

func TestDefaultLogger(t *testing.T) {
	ctx := context.Background()
	testutil.AssertEqual(t, IsDefault(Get(ctx)), true)
	testutil.AssertEqual(t, LevelVar(ctx).Level(), slog.LevelInfo)
}

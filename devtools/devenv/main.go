// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"go.astrophena.name/devenv/bootstrap"
	"go.astrophena.name/devenv/cli"
	"go.astrophena.name/devenv/internal/config"
	"go.astrophena.name/devenv/internal/proc"
	"go.astrophena.name/devenv/logger"
	"go.astrophena.name/devenv/venv"
)

func main() { cli.Main(new(app)) }

type app struct {
	dir        string
	configPath string
	logLevel   string
	dry        bool
	format     string
	output     string

	// runner is set by tests; nil runs real processes.
	runner proc.Runner
}

var errNotReady = errors.New("development environment is not ready")

var formats = []string{"text", "json", "yaml"}

func (a *app) Flags(fs *flag.FlagSet) {
	fs.StringVar(&a.dir, "C", ".", "Run as if started in `dir`.")
	fs.StringVar(&a.configPath, "config", config.DefaultPath, "Read settings from the txtar `archive`, relative to the project root.")
	fs.StringVar(&a.logLevel, "log-level", "", "Log `level`: debug, info, warn or error. Defaults to $DEVENV_LOG_LEVEL or info.")
	fs.BoolVar(&a.dry, "dry", false, "Make setup log what it would do without changing anything.")
	fs.StringVar(&a.format, "format", "text", "Print status in `format`: text, json or yaml.")
	fs.StringVar(&a.output, "o", "", "Make activate write the script to `file` instead of stdout.")
}

func (a *app) Run(ctx context.Context) error {
	env := cli.GetEnv(ctx)

	if len(env.Args) != 1 {
		return fmt.Errorf("%w: want exactly one command: setup, check-env, activate or status", cli.ErrInvalidArgs)
	}
	if a.runner == nil {
		a.runner = &proc.Exec{Getenv: env.Getenv}
	}

	l, err := a.newLogger(env)
	if err != nil {
		return err
	}
	ctx = logger.Put(ctx, l)

	switch cmd := env.Args[0]; cmd {
	case "setup":
		return a.setup(ctx, env)
	case "check-env":
		return a.checkEnv(env)
	case "activate":
		return a.activate(env)
	case "status":
		return a.status(ctx, env)
	default:
		return fmt.Errorf("%w: unknown command %q", cli.ErrInvalidArgs, cmd)
	}
}

func (a *app) newLogger(env *cli.Env) (*logger.Logger, error) {
	name := a.logLevel
	if name == "" {
		name = env.Getenv("DEVENV_LOG_LEVEL")
	}
	if name == "" {
		name = "info"
	}
	level, err := logger.ParseLevel(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cli.ErrInvalidArgs, err)
	}

	lv := new(slog.LevelVar)
	lv.Set(level)
	l := logger.New(lv)
	l.Attach(logger.NewConsoleHandler(env.Stderr, lv, useColor(env)))
	return l, nil
}

func useColor(env *cli.Env) bool {
	return cli.Interactive(env.Stderr) && env.Getenv("NO_COLOR") == ""
}

func environ(env *cli.Env) []string {
	if env.Environ == nil {
		return nil
	}
	return env.Environ()
}

func (a *app) open(env *cli.Env) (*bootstrap.Project, error) {
	return bootstrap.Open(a.dir, a.configPath, env.Getenv)
}

func (a *app) setup(ctx context.Context, env *cli.Env) error {
	b := bootstrap.New(bootstrap.Options{
		Dir:        a.dir,
		ConfigPath: a.configPath,
		Getenv:     env.Getenv,
		Environ:    environ(env),
		Runner:     a.runner,
		DryRun:     a.dry,
		Progress:   env.Stderr,
		Width:      cli.Width(env.Stderr),
		Output:     env.Stderr,
	})
	if err := b.Run(ctx); err != nil {
		return err
	}
	if a.dry {
		env.Logf("Dry run of %d steps finished, nothing was changed.", len(b.Steps()))
		return nil
	}
	activate := filepath.Join(b.Project().VenvDir(), venv.EntryPoint)
	fmt.Fprintf(env.Stdout, "Development environment is ready. Activate it with:\n\n\tsource %s\n", activate)
	return nil
}

func (a *app) checkEnv(env *cli.Env) error {
	p, err := a.open(env)
	if err != nil {
		return err
	}
	_, err = p.Activate()
	return err
}

func (a *app) activate(env *cli.Env) error {
	p, err := a.open(env)
	if err != nil {
		return err
	}
	o, err := p.Activate()
	if err != nil {
		return err
	}
	if a.output != "" {
		return o.WriteScript(a.output)
	}
	_, err = io.WriteString(env.Stdout, o.Script())
	return err
}

func (a *app) status(ctx context.Context, env *cli.Env) error {
	if !slices.Contains(formats, a.format) {
		return fmt.Errorf("%w: unknown format %q, want one of %v", cli.ErrInvalidArgs, a.format, formats)
	}
	p, err := a.open(env)
	if err != nil {
		return err
	}

	r := bootstrap.Status(ctx, p, a.runner)
	switch a.format {
	case "json":
		b, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(env.Stdout, "%s\n", b)
	case "yaml":
		enc := yaml.NewEncoder(env.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
	default:
		printReport(env.Stdout, r, cli.Interactive(env.Stdout) && env.Getenv("NO_COLOR") == "")
	}

	if !r.OK() {
		return fmt.Errorf("%w: %d of %d checks failed", errNotReady, len(r.Failed()), len(r.Checks))
	}
	return nil
}

func printReport(w io.Writer, r *bootstrap.Report, colorize bool) {
	pass := color.New(color.FgGreen, color.Bold)
	fail := color.New(color.FgRed, color.Bold)
	for _, c := range []*color.Color{pass, fail} {
		if colorize {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	fmt.Fprintf(w, "Project: %s\n", r.Root)
	if r.Version != "" {
		fmt.Fprintf(w, "Version: %s\n", r.Version)
	}
	fmt.Fprintln(w)
	for _, c := range r.Checks {
		status := pass.Sprintf("%-4s", c.Status)
		if c.Status != bootstrap.Pass {
			status = fail.Sprintf("%-4s", c.Status)
		}
		fmt.Fprintf(w, "[%s]  %-40s  %s\n", status, c.Name, c.Detail)
	}
}

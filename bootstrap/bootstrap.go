// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package bootstrap prepares the development environment of a project.
//
// A [Bootstrapper] runs a fixed sequence of steps: it resolves the project
// root, checks the required commands, locates the interpreter, applies the
// repository git settings, links the git hooks, creates the virtual
// environment, activates it and installs the project with its development
// requirements. The first failing step stops the run with a [*StepError].
//
// Every step is idempotent, so a run can be repeated at any time and
// picks up where an interrupted or failed run stopped.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"go.astrophena.name/devenv/gitrepo"
	"go.astrophena.name/devenv/hooks"
	"go.astrophena.name/devenv/internal/proc"
	"go.astrophena.name/devenv/logger"
	"go.astrophena.name/devenv/toolchain"
	"go.astrophena.name/devenv/venv"
	"go.astrophena.name/devenv/version"
)

// Options configures a [Bootstrapper].
type Options struct {
	// Dir is where the project root search starts. Empty means the current
	// directory.
	Dir string
	// ConfigPath is the configuration archive. Empty means
	// config.DefaultPath.
	ConfigPath string
	// Getenv supplies configuration overrides. Nil disables them.
	Getenv func(string) string
	// Environ is the environment of child processes. Nil means the
	// environment of the current process.
	Environ []string
	// Runner runs external commands. Nil means real processes.
	Runner proc.Runner
	// DryRun logs what each step would do without changing anything.
	DryRun bool
	// Progress, if set, receives a "[n/N] step" line before each step.
	Progress io.Writer
	// Width is the terminal width progress lines are shortened to. Zero
	// disables shortening.
	Width int
	// Output, if set, receives the output of the installer as it runs.
	Output io.Writer
}

// Bootstrapper runs the bootstrap steps. Create it with [New].
type Bootstrapper struct {
	opts     Options
	resolver *toolchain.Resolver
	steps    []step

	// Filled in by the steps.
	project *Project
	repo    *gitrepo.Repository
	python  toolchain.Interpreter
	overlay *venv.Overlay
}

type step struct {
	name  string
	title string
	kind  Kind
	run   func(context.Context) error
}

// New returns a Bootstrapper for opts.
func New(opts Options) *Bootstrapper {
	if opts.Runner == nil {
		opts.Runner = &proc.Exec{Getenv: opts.Getenv}
	}
	if opts.Environ == nil {
		opts.Environ = os.Environ()
	}
	b := &Bootstrapper{
		opts:     opts,
		resolver: &toolchain.Resolver{Runner: opts.Runner},
	}
	b.steps = []step{
		{"root", "Resolving project root", KindConfig, b.resolveRoot},
		{"prerequisites", "Checking required commands", KindMissingTool, b.checkPrerequisites},
		{"interpreter", "Locating interpreter", KindMissingInterpreter, b.locateInterpreter},
		{"git-config", "Configuring git", KindGitConfig, b.configureGit},
		{"hooks", "Linking git hooks", KindFilesystem, b.linkHooks},
		{"venv", "Creating virtual environment", KindFilesystem, b.createVenv},
		{"activate", "Activating virtual environment", KindEnvironment, b.activate},
		{"install", "Installing dependencies", KindInstall, b.install},
	}
	return b
}

// Steps returns the names of the steps in the order they run.
func (b *Bootstrapper) Steps() []string {
	names := make([]string, len(b.steps))
	for i, s := range b.steps {
		names[i] = s.name
	}
	return names
}

// Project returns the project resolved by the last run, or nil.
func (b *Bootstrapper) Project() *Project { return b.project }

// Overlay returns the activation overlay computed by the last run, or nil.
func (b *Bootstrapper) Overlay() *venv.Overlay { return b.overlay }

// Run runs every step in order and stops at the first failure.
func (b *Bootstrapper) Run(ctx context.Context) error {
	for i, s := range b.steps {
		if b.opts.Progress != nil {
			fmt.Fprintln(b.opts.Progress, progressMessage(i+1, len(b.steps), s.title, b.opts.Width))
		}
		logger.Debug(ctx, "running step", slog.String("step", s.name))
		if err := s.run(ctx); err != nil {
			kind := s.kind
			var ke *kindError
			if errors.As(err, &ke) {
				kind, err = ke.kind, ke.err
			}
			return &StepError{Step: s.name, Kind: kind, Err: err}
		}
	}

	if b.opts.DryRun {
		logger.Info(ctx, "dry run finished, nothing was changed", slog.String("root", b.project.Root))
		return nil
	}
	logger.Info(ctx, "development environment is ready",
		slog.String("root", b.project.Root),
		slog.String("venv", b.project.VenvDir()),
	)
	return nil
}

func (b *Bootstrapper) resolveRoot(ctx context.Context) error {
	p, err := Open(b.opts.Dir, b.opts.ConfigPath, b.opts.Getenv)
	if err != nil {
		return err
	}
	b.project = p
	b.repo = gitrepo.New(p.Root, b.opts.Runner)

	attrs := []slog.Attr{slog.String("root", p.Root)}
	v, err := version.Project(p.Root, p.getenv)
	switch {
	case err == nil:
		attrs = append(attrs, slog.String("version", v))
	case !errors.Is(err, fs.ErrNotExist):
		return withKind(KindFilesystem, err)
	}
	logger.Info(ctx, "resolved project", attrs...)
	return nil
}

func (b *Bootstrapper) checkPrerequisites(ctx context.Context) error {
	return b.resolver.Require(ctx, b.project.Config.RequiredCommands...)
}

func (b *Bootstrapper) locateInterpreter(ctx context.Context) error {
	cfg := b.project.Config
	py, err := b.resolver.Interpreter(ctx, cfg.InterpreterVersion, cfg.VersionManager)
	if err != nil {
		return err
	}
	b.python = py
	logger.Info(ctx, "found interpreter",
		slog.String("path", py.Path),
		slog.String("version", py.Version),
		slog.String("source", string(py.Source)),
	)
	return nil
}

func (b *Bootstrapper) configureGit(ctx context.Context) error {
	for _, s := range GitSettings(b.project.Config) {
		attrs := []slog.Attr{slog.String("key", s.Key), slog.String("value", s.Value)}

		if b.opts.DryRun {
			values, err := b.repo.ConfigValues(ctx, s.Key)
			if err != nil {
				return err
			}
			if !s.Satisfied(values) {
				logger.Info(ctx, "would set git config", attrs...)
			}
			continue
		}

		set := b.repo.SetConfig
		if s.Multi {
			set = b.repo.AddConfig
		}
		changed, err := set(ctx, s.Key, s.Value)
		if err != nil {
			return fmt.Errorf("setting %s: %w", s.Key, err)
		}
		if changed {
			logger.Info(ctx, "set git config", attrs...)
		} else {
			logger.Debug(ctx, "git config up to date", attrs...)
		}
	}
	return nil
}

func (b *Bootstrapper) linkHooks(ctx context.Context) error {
	dir, err := b.repo.HooksDir(ctx)
	if err != nil {
		return withKind(KindGitConfig, err)
	}
	links, err := hooks.Reconcile(b.project.HooksSource(), dir, b.opts.DryRun)
	for _, l := range links {
		attrs := []slog.Attr{slog.String("hook", l.Name), slog.String("path", l.Path), slog.String("source", l.Source)}
		switch l.State {
		case hooks.Created, hooks.Replaced:
			logger.Info(ctx, "linked hook", append(attrs, slog.String("state", string(l.State)))...)
		case hooks.Missing, hooks.Stale:
			logger.Info(ctx, "would link hook", append(attrs, slog.String("state", string(l.State)))...)
		case hooks.Conflict:
			logger.Warn(ctx, "hook path is taken by a regular file", attrs...)
		default:
			logger.Debug(ctx, "hook up to date", attrs...)
		}
	}
	return err
}

func (b *Bootstrapper) createVenv(ctx context.Context) error {
	dir := b.project.VenvDir()
	if b.opts.DryRun {
		exists, err := b.venvExists()
		if err != nil {
			return err
		}
		if !exists {
			logger.Info(ctx, "would create virtual environment",
				slog.String("path", dir),
				slog.String("interpreter", b.python.Path),
			)
		}
		return nil
	}

	created, err := venv.Create(ctx, b.opts.Runner, b.opts.Environ, b.python.Path, dir)
	if err != nil {
		return err
	}
	if created {
		logger.Info(ctx, "created virtual environment", slog.String("path", dir))
	} else {
		logger.Debug(ctx, "virtual environment exists", slog.String("path", dir))
	}
	return nil
}

func (b *Bootstrapper) venvExists() (bool, error) {
	exists, err := venv.Exists(b.project.VenvDir())
	if err != nil {
		return false, withKind(KindFilesystem, err)
	}
	return exists, nil
}

func (b *Bootstrapper) activate(ctx context.Context) error {
	if b.opts.DryRun {
		exists, err := b.venvExists()
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}
	}
	o, err := b.project.Activate()
	if err != nil {
		return err
	}
	b.overlay = o
	logger.Debug(ctx, "activated virtual environment", slog.String("path", o.Set["VIRTUAL_ENV"]))
	return nil
}

func (b *Bootstrapper) install(ctx context.Context) error {
	manifest := b.project.Requirements()
	reqs, err := ReadRequirements(manifest)
	if err != nil {
		return withKind(KindFilesystem, err)
	}
	logger.Info(ctx, "installing requirements",
		slog.String("manifest", b.project.Config.Requirements),
		slog.Int("count", len(reqs)),
	)

	pip := venv.Bin(b.project.VenvDir(), "pip")
	installs := [][]string{
		{"install", "-e", "."},
		{"install", "-r", manifest},
	}
	if b.opts.DryRun || b.overlay == nil {
		for _, args := range installs {
			logger.Info(ctx, "would run", slog.String("command", proc.Cmd{Name: pip, Args: args}.String()))
		}
		return nil
	}

	env := b.overlay.Apply(b.opts.Environ)
	for _, args := range installs {
		if _, err := b.opts.Runner.Run(ctx, proc.Cmd{
			Name:   pip,
			Args:   args,
			Dir:    b.project.Root,
			Env:    env,
			Output: b.opts.Output,
		}); err != nil {
			return err
		}
	}
	return nil
}

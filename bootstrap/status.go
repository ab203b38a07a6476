// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"go.astrophena.name/devenv/gitrepo"
	"go.astrophena.name/devenv/hooks"
	"go.astrophena.name/devenv/internal/proc"
	"go.astrophena.name/devenv/toolchain"
	"go.astrophena.name/devenv/version"
)

// CheckStatus is the outcome of a single status check.
type CheckStatus string

const (
	Pass CheckStatus = "PASS"
	Fail CheckStatus = "FAIL"
)

// Check is a single line of a status report.
type Check struct {
	Name   string      `json:"name" yaml:"name"`
	Status CheckStatus `json:"status" yaml:"status"`
	Detail string      `json:"detail" yaml:"detail"`
}

// Report describes how far a project is from a completed setup.
type Report struct {
	Root    string  `json:"root" yaml:"root"`
	Version string  `json:"version,omitempty" yaml:"version,omitempty"`
	Checks  []Check `json:"checks" yaml:"checks"`
}

// OK reports whether every check passed.
func (r *Report) OK() bool {
	for _, c := range r.Checks {
		if c.Status != Pass {
			return false
		}
	}
	return true
}

// Failed returns the failed checks.
func (r *Report) Failed() []Check {
	var failed []Check
	for _, c := range r.Checks {
		if c.Status != Pass {
			failed = append(failed, c)
		}
	}
	return failed
}

func (r *Report) add(name string, err error, detail string) {
	c := Check{Name: name, Status: Pass, Detail: detail}
	if err != nil {
		c.Status = Fail
		c.Detail = err.Error()
	}
	r.Checks = append(r.Checks, c)
}

// Status inspects p without changing anything and reports every fact a
// setup run establishes.
func Status(ctx context.Context, p *Project, runner proc.Runner) *Report {
	r := &Report{Root: p.Root}
	if v, err := version.Project(p.Root, p.getenv); err == nil {
		r.Version = v
	}
	cfg := p.Config
	resolver := &toolchain.Resolver{Runner: runner}

	for _, name := range cfg.RequiredCommands {
		path, err := resolver.LookPath(name)
		r.add("command "+name, err, path)
	}

	py, err := resolver.Interpreter(ctx, cfg.InterpreterVersion, cfg.VersionManager)
	r.add("interpreter "+cfg.Interpreter(), err, fmt.Sprintf("%s (%s, via %s)", py.Path, py.Version, py.Source))

	repo := gitrepo.New(p.Root, runner)
	for _, s := range GitSettings(cfg) {
		name := "git " + s.Key
		values, err := repo.ConfigValues(ctx, s.Key)
		switch {
		case err != nil:
			r.add(name, err, "")
		case !s.Satisfied(values):
			r.add(name, fmt.Errorf("want %q, have %s", s.Value, describeValues(values)), "")
		default:
			r.add(name, nil, s.Value)
		}
	}

	if dir, err := repo.HooksDir(ctx); err != nil {
		r.add("hooks", err, "")
	} else if links, err := hooks.Inspect(p.HooksSource(), dir); err != nil {
		r.add("hooks", err, "")
	} else {
		for _, l := range links {
			var err error
			if !l.OK() {
				err = fmt.Errorf("%s is %s", l.Path, l.State)
			}
			r.add("hook "+l.Name, err, l.Source)
		}
	}

	_, err = p.Activate()
	r.add("venv "+cfg.VenvDir, err, p.VenvDir())

	reqs, err := ReadRequirements(p.Requirements())
	r.add("requirements "+cfg.Requirements, err, fmt.Sprintf("%d requirements", len(reqs)))

	return r
}

func describeValues(values []string) string {
	if len(values) == 0 {
		return "none"
	}
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return strings.Join(quoted, ", ")
}

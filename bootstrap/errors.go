// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package bootstrap

import (
	"errors"
	"fmt"
)

// Kind classifies bootstrap failures. Every kind is fatal.
type Kind string

const (
	KindConfig             Kind = "config"
	KindMissingTool        Kind = "missing-tool"
	KindMissingInterpreter Kind = "missing-interpreter"
	KindGitConfig          Kind = "git-config"
	KindFilesystem         Kind = "filesystem"
	KindEnvironment        Kind = "environment"
	KindInstall            Kind = "install"
)

// Sentinel errors matching a [*StepError] of the corresponding kind with
// [errors.Is].
var (
	ErrConfig             = errors.New("invalid configuration")
	ErrMissingTool        = errors.New("missing prerequisite tool")
	ErrMissingInterpreter = errors.New("missing interpreter")
	ErrGitConfig          = errors.New("git configuration failed")
	ErrFilesystem         = errors.New("file system operation failed")
	ErrEnvironment        = errors.New("environment missing or corrupt")
	ErrInstall            = errors.New("dependency installation failed")
)

var sentinels = map[Kind]error{
	KindConfig:             ErrConfig,
	KindMissingTool:        ErrMissingTool,
	KindMissingInterpreter: ErrMissingInterpreter,
	KindGitConfig:          ErrGitConfig,
	KindFilesystem:         ErrFilesystem,
	KindEnvironment:        ErrEnvironment,
	KindInstall:            ErrInstall,
}

// StepError reports which step of a bootstrap run failed and why.
type StepError struct {
	Step string
	Kind Kind
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel error of e's kind.
func (e *StepError) Is(target error) bool {
	return target != nil && sentinels[e.Kind] == target
}

// kindError overrides the default kind of the step that returns it.
type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

func withKind(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: err}
}

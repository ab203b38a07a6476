// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package config loads the devenv project configuration.
//
// The configuration lives in the devtools archive of the project root
// (.devtools/config.txtar by default). The archive member devenv.toml is
// decoded onto [Default]; a missing archive or member means the defaults
// apply unchanged.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/tools/txtar"
)

// DefaultPath is the archive location relative to the project root.
const DefaultPath = ".devtools/config.txtar"

// Member is the archive member holding the devenv configuration.
const Member = "devenv.toml"

// PullRequestRefspec makes "git fetch" also fetch pull request heads as
// origin/pr/<number>.
const PullRequestRefspec = "+refs/pull/*/head:refs/remotes/origin/pr/*"

// Config is the devenv project configuration.
type Config struct {
	// VenvDir is the environment directory, relative to the project root.
	VenvDir string `toml:"venv_dir"`
	// InterpreterVersion is the major.minor version of the interpreter.
	InterpreterVersion string `toml:"interpreter_version"`
	// VersionManager is the command consulted first to locate the
	// interpreter. Empty disables it.
	VersionManager string `toml:"version_manager"`
	// RequiredCommands must be present on PATH.
	RequiredCommands []string `toml:"required_commands"`
	// HooksDir holds the canonical git hook scripts.
	HooksDir string `toml:"hooks_dir"`
	// Requirements is the development requirements manifest.
	Requirements string `toml:"requirements"`
	// Git holds repository settings applied on every setup.
	Git Git `toml:"git"`
}

// Git holds repository settings.
type Git struct {
	PullRebase    bool     `toml:"pull_rebase"`
	FetchRefspecs []string `toml:"fetch_refspecs"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		VenvDir:            "venv",
		InterpreterVersion: "3.8",
		VersionManager:     "pyenv",
		RequiredCommands:   []string{"git", "virtualenv"},
		HooksDir:           "githooks",
		Requirements:       "requirements-dev.txt",
		Git: Git{
			PullRebase:    true,
			FetchRefspecs: []string{PullRequestRefspec},
		},
	}
}

// Interpreter returns the interpreter command name, e.g. "python3.8".
func (c *Config) Interpreter() string {
	return "python" + c.InterpreterVersion
}

// Load reads the configuration archive at path, which is resolved relative
// to root unless absolute. getenv supplies DEVENV_* overrides and may be nil.
func Load(root, path string, getenv func(string) string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}

	cfg := Default()

	ar, err := txtar.ParseFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		for _, f := range ar.Files {
			if f.Name != Member {
				continue
			}
			if err := Parse(cfg, f.Data); err != nil {
				return nil, fmt.Errorf("%s: %s: %w", path, Member, err)
			}
		}
	}

	if getenv != nil {
		applyEnv(cfg, getenv)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML data onto cfg. Unknown keys are an error.
func Parse(cfg *Config, data []byte) error {
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv("DEVENV_VENV_DIR"); v != "" {
		cfg.VenvDir = v
	}
	if v := getenv("DEVENV_PYTHON_VERSION"); v != "" {
		cfg.InterpreterVersion = v
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.VenvDir) == "":
		return errors.New("venv_dir must not be empty")
	case strings.TrimSpace(c.InterpreterVersion) == "":
		return errors.New("interpreter_version must not be empty")
	case strings.TrimSpace(c.HooksDir) == "":
		return errors.New("hooks_dir must not be empty")
	case strings.TrimSpace(c.Requirements) == "":
		return errors.New("requirements must not be empty")
	}
	for _, name := range c.RequiredCommands {
		if strings.TrimSpace(name) == "" {
			return errors.New("required_commands must not contain empty names")
		}
	}
	if len(c.Git.FetchRefspecs) == 0 {
		return errors.New("git.fetch_refspecs must not be empty")
	}
	for _, spec := range c.Git.FetchRefspecs {
		if !strings.Contains(spec, ":") {
			return fmt.Errorf("fetch refspec %q must have the form src:dst", spec)
		}
	}
	return nil
}

// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package bootstrap

import (
	"errors"
	"path/filepath"
	"slices"
	"strconv"

	"go.astrophena.name/devenv/gitrepo"
	"go.astrophena.name/devenv/internal/config"
	"go.astrophena.name/devenv/venv"
)

// Project is a resolved project root together with its configuration.
type Project struct {
	// Root is the absolute, symlink-free project root.
	Root   string
	Config *config.Config

	getenv func(string) string
}

// Open resolves the project root containing dir and loads its
// configuration. configPath and getenv are passed to [config.Load].
func Open(dir, configPath string, getenv func(string) string) (*Project, error) {
	if dir == "" {
		dir = "."
	}
	root, err := gitrepo.FindRoot(dir)
	if err != nil {
		return nil, withKind(KindFilesystem, err)
	}
	cfg, err := config.Load(root, configPath, getenv)
	if err != nil {
		return nil, withKind(KindConfig, err)
	}
	return &Project{Root: root, Config: cfg, getenv: getenv}, nil
}

// Path resolves a configured path against the project root.
func (p *Project) Path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(p.Root, rel)
}

// VenvDir returns the environment directory.
func (p *Project) VenvDir() string { return p.Path(p.Config.VenvDir) }

// HooksSource returns the directory holding the canonical hook scripts.
func (p *Project) HooksSource() string { return p.Path(p.Config.HooksDir) }

// Requirements returns the development requirements manifest.
func (p *Project) Requirements() string { return p.Path(p.Config.Requirements) }

// Activate checks the project's environment and returns its activation
// overlay. Errors name the environment directory as configured.
func (p *Project) Activate() (*venv.Overlay, error) {
	o, err := venv.Activate(p.VenvDir())
	var ve *venv.Error
	if errors.As(err, &ve) {
		ve.Dir = p.Config.VenvDir
	}
	return o, err
}

// GitSetting is a repository configuration value applied by setup.
type GitSetting struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
	// Multi marks keys that may hold several values. The value is added
	// next to existing ones instead of replacing them.
	Multi bool `json:"multi" yaml:"multi"`
}

// Satisfied reports whether the current values of the key already hold
// the setting.
func (s GitSetting) Satisfied(values []string) bool {
	if s.Multi {
		return slices.Contains(values, s.Value)
	}
	return len(values) == 1 && values[0] == s.Value
}

// GitSettings returns the repository settings described by cfg.
func GitSettings(cfg *config.Config) []GitSetting {
	settings := []GitSetting{
		{Key: "pull.rebase", Value: strconv.FormatBool(cfg.Git.PullRebase)},
	}
	for _, spec := range cfg.Git.FetchRefspecs {
		settings = append(settings, GitSetting{Key: "remote.origin.fetch", Value: spec, Multi: true})
	}
	return settings
}

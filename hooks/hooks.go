// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package hooks links version-controlled git hook scripts into a
// repository's hooks directory.
//
// Every regular file directly inside the source directory gets a symlink
// of the same name in the hooks directory whose target is the canonical
// (absolute, symlink-free) path of the file. Linking is idempotent:
// correct links are left alone and stale symlinks are replaced. Other
// files in the hooks directory are never touched, so a hook that exists as
// a regular file is reported as a conflict instead of being overwritten.
package hooks

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// State describes a hook link.
type State string

const (
	// Linked means the link exists and resolves to the source.
	Linked State = "linked"
	// Created means the link was missing and has been created.
	Created State = "created"
	// Replaced means a symlink pointing elsewhere has been replaced.
	Replaced State = "replaced"
	// Missing means the link does not exist.
	Missing State = "missing"
	// Stale means a symlink exists but resolves elsewhere.
	Stale State = "stale"
	// Conflict means a non-symlink file occupies the link name.
	Conflict State = "conflict"
)

// Link is the state of a single hook.
type Link struct {
	Name   string `json:"name" yaml:"name"`
	Source string `json:"source" yaml:"source"`
	Path   string `json:"path" yaml:"path"`
	State  State  `json:"state" yaml:"state"`
}

// OK reports whether the link resolves to its source.
func (l Link) OK() bool {
	return l.State == Linked || l.State == Created || l.State == Replaced
}

// ConflictError is returned when a hook name is taken by a file that is
// not a symlink.
type ConflictError struct {
	Path string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s exists and is not a symlink; move it away to let devenv manage it", e.Path)
}

// Source is a hook script in the source directory.
type Source struct {
	// Name is the file name inside the source directory.
	Name string
	// Path is the canonical path of the file.
	Path string
}

// Sources returns the regular files directly inside dir, sorted by name.
// Symlinks to regular files are included with their resolved path.
func Sources(dir string) ([]Source, error) {
	canonical, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return nil, err
	}
	canonical, err = filepath.Abs(canonical)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(canonical)
	if err != nil {
		return nil, err
	}
	var sources []Source
	for _, e := range entries {
		path := filepath.Join(canonical, e.Name())
		fi, err := os.Stat(path)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		resolved, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil, err
		}
		sources = append(sources, Source{Name: e.Name(), Path: resolved})
	}
	return sources, nil
}

// Inspect reports the state of every hook without changing anything.
func Inspect(srcDir, hooksDir string) ([]Link, error) {
	return walk(srcDir, hooksDir, false)
}

// Reconcile creates or replaces hook links so that every hook resolves to
// its source. When dryRun is true nothing is written, but the returned
// states describe what would happen. It stops at the first error; links
// handled before it are returned.
func Reconcile(srcDir, hooksDir string, dryRun bool) ([]Link, error) {
	return walk(srcDir, hooksDir, !dryRun)
}

func walk(srcDir, hooksDir string, write bool) ([]Link, error) {
	sources, err := Sources(srcDir)
	if err != nil {
		return nil, err
	}

	// A hooks directory that already is a link to the source directory
	// makes every hook resolve to its source.
	if legacy, err := sameDir(srcDir, hooksDir); err != nil {
		return nil, err
	} else if legacy {
		links := make([]Link, len(sources))
		for i, src := range sources {
			links[i] = Link{Name: src.Name, Source: src.Path, Path: filepath.Join(hooksDir, src.Name), State: Linked}
		}
		return links, nil
	}

	if write {
		if err := os.MkdirAll(hooksDir, 0o755); err != nil {
			return nil, err
		}
	}

	var links []Link
	for _, src := range sources {
		link := Link{Name: src.Name, Source: src.Path, Path: filepath.Join(hooksDir, src.Name)}

		state, err := stateOf(link.Path, src.Path)
		if err != nil {
			return links, err
		}

		switch state {
		case Linked:
		case Conflict:
			link.State = Conflict
			links = append(links, link)
			if write {
				return links, &ConflictError{Path: link.Path}
			}
			continue
		case Missing:
			if write {
				if err := os.Symlink(src.Path, link.Path); err != nil {
					return links, err
				}
				state = Created
			}
		case Stale:
			if write {
				if err := replaceSymlink(src.Path, link.Path); err != nil {
					return links, err
				}
				state = Replaced
			}
		}
		link.State = state
		links = append(links, link)
	}
	return links, nil
}

func stateOf(path, src string) (State, error) {
	fi, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Missing, nil
	}
	if err != nil {
		return "", err
	}
	if fi.Mode()&fs.ModeSymlink == 0 {
		return Conflict, nil
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		// Dangling symlink.
		return Stale, nil
	}
	if resolved != src {
		return Stale, nil
	}
	return Linked, nil
}

// replaceSymlink points path at target by renaming a fresh symlink over it.
func replaceSymlink(target, path string) error {
	tmp := path + ".devenv-tmp"
	os.Remove(tmp)
	if err := os.Symlink(target, tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func sameDir(a, b string) (bool, error) {
	ra, err := filepath.EvalSymlinks(a)
	if err != nil {
		return false, err
	}
	rb, err := filepath.EvalSymlinks(b)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return ra == rb, nil
}

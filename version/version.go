// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package version provides build and project version information.
package version

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"go.astrophena.name/devenv/syncx"
)

// Info contains version information of the running binary.
type Info struct {
	// Name is the command name.
	Name string `json:"name"`
	// Commit is the VCS revision the binary was built from.
	Commit string `json:"commit"`
	// Dirty reports whether the working tree had local modifications.
	Dirty bool `json:"dirty"`
	// Built is the time of the commit.
	Built time.Time `json:"built"`
	// Go is the version of Go used to build the binary.
	Go string `json:"go"`
	// OS and Arch are the target platform.
	OS   string `json:"os"`
	Arch string `json:"arch"`
}

// String returns a multi-line human-readable representation of i.
func (i Info) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s ", i.Name)
	if i.Commit == "" {
		sb.WriteString("devel")
	} else {
		fmt.Fprintf(&sb, "%s", i.Commit)
		if i.Dirty {
			sb.WriteString("-dirty")
		}
	}
	sb.WriteString("\n")
	if !i.Built.IsZero() {
		fmt.Fprintf(&sb, "built at %s\n", i.Built.Format(time.RFC1123))
	}
	fmt.Fprintf(&sb, "%s %s/%s\n", i.Go, i.OS, i.Arch)
	return sb.String()
}

var info syncx.Lazy[Info]

// Version returns version information of the running binary.
func Version() Info {
	return info.Get(func() Info {
		i := Info{
			Name: CmdName(),
			Go:   runtime.Version(),
			OS:   runtime.GOOS,
			Arch: runtime.GOARCH,
		}
		bi, ok := debug.ReadBuildInfo()
		if !ok {
			return i
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				i.Commit = s.Value
			case "vcs.modified":
				i.Dirty = s.Value == "true"
			case "vcs.time":
				i.Built, _ = time.Parse(time.RFC3339, s.Value)
			}
		}
		return i
	})
}

// CmdName returns the base name of the running executable.
func CmdName() string {
	return strings.TrimSuffix(filepath.Base(os.Args[0]), ".exe")
}

// Project returns the project version in the local version form accepted
// by Python packaging (see [Local]). A non-empty VERSION variable from
// getenv takes precedence over the VERSION file in the project root.
// getenv may be nil.
func Project(root string, getenv func(string) string) (string, error) {
	if getenv != nil {
		if v := strings.TrimSpace(getenv("VERSION")); v != "" {
			return Local(v), nil
		}
	}
	b, err := os.ReadFile(filepath.Join(root, "VERSION"))
	if err != nil {
		return "", err
	}
	return Local(string(b)), nil
}

// Local converts a git-describe style version ("1.2-3-gabcdef") into a
// local version ("1.2+3.gabcdef"). Versions without a dash are returned
// trimmed and unchanged.
func Local(raw string) string {
	parts := strings.Split(strings.TrimSpace(raw), "-")
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + "+" + strings.Join(parts[1:], ".")
}

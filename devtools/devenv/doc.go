// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Devenv prepares and checks the development environment of a Python project
checked out with git.

Usage:

	$ devenv [flags] <command>

Commands:

  - setup: resolve the project root, check that the required commands are
    on PATH, locate the interpreter, configure git (pull.rebase and fetching
    of pull request heads into origin/pr), link the hooks from the githooks
    directory into the git hooks directory, create the virtual environment
    if it does not exist and install the project with its development
    requirements. Running it again is safe and only repairs what is
    missing.
  - check-env: fail unless the virtual environment exists and can be
    activated. Prints nothing on success.
  - activate: print shell commands that activate the virtual environment,
    for use as eval "$(devenv activate)". With -o, write them to a file.
  - status: report every fact setup establishes without changing anything.
    Exits with a non-zero status if any check fails.

Settings are read from the devenv.toml member of the .devtools/config.txtar
archive in the project root:

	-- devenv.toml --
	venv_dir = "venv"
	interpreter_version = "3.8"
	version_manager = "pyenv"
	required_commands = ["git", "virtualenv"]
	hooks_dir = "githooks"
	requirements = "requirements-dev.txt"

	[git]
	pull_rebase = true

The git table also takes fetch_refspecs, a list of refspecs added to
remote.origin.fetch. It defaults to the pull request heads refspec and
must not be empty.

DEVENV_VENV_DIR and DEVENV_PYTHON_VERSION override the matching settings
and DEVENV_LOG_LEVEL sets the default log level. The project version is
taken from $VERSION, or from the VERSION file in the project root.
*/
package main

import (
	_ "embed"

	"go.astrophena.name/devenv/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }

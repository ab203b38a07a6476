// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package bootstrap

import (
	"bufio"
	"os"
	"strings"
)

// ReadRequirements returns the package specifiers listed in a requirements
// manifest. Blank lines, comments and option lines ("-r other.txt",
// "--index-url ...") are skipped; only the first field of a line is kept,
// which drops trailing comments and hash options.
func ReadRequirements(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var reqs []string
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		reqs = append(reqs, strings.Fields(line)[0])
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return reqs, nil
}

// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package bootstrap

import (
	"fmt"
	"strings"
)

const ellipsis = "..."

// progressMessage formats "[current/total] title", shortened to fit
// terminalWidth columns. A width of zero disables shortening. The counter
// prefix is never cut; if it alone does not fit, only the prefix is
// returned.
func progressMessage(current, total int, title string, terminalWidth int) string {
	prefix := fmt.Sprintf("[%d/%d] ", current, total)
	title = strings.ReplaceAll(title, "\t", " ")
	if terminalWidth <= 0 {
		return prefix + title
	}

	available := terminalWidth - len(prefix)
	if available <= 0 {
		return prefix
	}
	if len(title) <= available {
		return prefix + title
	}
	if available <= len(ellipsis) {
		return prefix + title[:available]
	}
	return prefix + title[:available-len(ellipsis)] + ellipsis
}

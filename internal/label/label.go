// Package label renders and recovers the identity labels attached to
// forwarded end-user messages. The label is the only link between an
// operator's threaded reply and the original sender, so the `ID:` field
// must survive round-tripping through Telegram message text.
package label

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const unknownName = "Unknown"

var idPattern = regexp.MustCompile(`ID:\s*(\d+)`)

// Render produces the label sent to operators after a forwarded message.
// The second line carries the machine-parseable identity; the first line is
// display-only.
func Render(userID int64, displayName, username string) string {
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = unknownName
	}
	handle := strings.TrimSpace(username)
	if handle != "" {
		return fmt.Sprintf("From: %s @%s\nID: %d", name, strings.TrimPrefix(handle, "@"), userID)
	}
	return fmt.Sprintf("From: %s\nID: %d", name, userID)
}

// ExtractID recovers the identity embedded by Render from arbitrary text.
// A missing or unparseable label is a normal outcome, not an error.
func ExtractID(text string) (int64, bool) {
	m := idPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Package strings holds small string helpers shared by config parsing.
package strings

import (
	"strings"
)

// SplitList splits a comma separated value into trimmed entries, dropping
// blanks and later duplicates. Order is preserved so ordered lists such as
// gateway URLs keep their priority.
func SplitList(raw string) []string {
	var out []string
	seen := make(map[string]struct{})
	for item := range strings.SplitSeq(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

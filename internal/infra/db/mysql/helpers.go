package mysql

import "strings"

// stringOrDash keeps event rows queryable when a transition has no case id.
func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}


package rules

import "strings"

// MatchWildcard reports whether value matches pattern. Without '*' the
// pattern must equal value. Otherwise every literal segment between the
// stars must occur in value, in order and without overlapping.
func MatchWildcard(pattern, value string) bool {
	if !strings.Contains(pattern, "*") {
		return pattern == value
	}

	pos := 0
	for _, seg := range strings.Split(pattern, "*") {
		if seg == "" {
			continue
		}
		i := strings.Index(value[pos:], seg)
		if i < 0 {
			return false
		}
		pos += i + len(seg)
	}
	return true
}

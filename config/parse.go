package config

import "strings"

// ParseCSV splits a comma-separated list into trimmed, non-empty entries,
// tolerating repeated commas and surrounding whitespace. Adapted from the
// teacher lineage's rule-id list parsing (gosec's goanalysis.parseRuleIDs).
// cmd/funky does not currently call it.
func ParseCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

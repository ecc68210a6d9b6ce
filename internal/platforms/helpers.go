package platforms

import "time"

// pageLimit clamps a requested page size to the provider's maximum,
// falling back to a sensible default when unset.
func pageLimit(requested, fallback, max int) int {
	if requested <= 0 {
		return fallback
	}
	if requested > max {
		return max
	}
	return requested
}

// parseRFC3339 parses a provider timestamp, returning the zero time on
// malformed input rather than failing the whole page.
func parseRFC3339(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

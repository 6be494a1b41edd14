package device

import (
	"errors"
	"fmt"
	"strings"
)

// Name resolution errors.
var (
	// ErrNameNotFound indicates no list entry matches the given name.
	ErrNameNotFound = errors.New("no entry matches name")

	// ErrAmbiguousName indicates a partial name matching more than one
	// list entry.
	ErrAmbiguousName = errors.New("name matches multiple entries")
)

// matchName resolves query against names and returns the position of the
// match. A case-insensitive exact match wins outright; otherwise the
// query must be a substring of exactly one name.
func matchName(names []string, query string) (int, error) {
	q := strings.ToLower(query)

	for i, n := range names {
		if strings.ToLower(n) == q {
			return i, nil
		}
	}

	found := -1
	for i, n := range names {
		if strings.Contains(strings.ToLower(n), q) {
			if found >= 0 {
				return 0, fmt.Errorf("%w: %q (%q, %q)",
					ErrAmbiguousName, query, names[found], n)
			}
			found = i
		}
	}
	if found < 0 {
		return 0, fmt.Errorf("%w: %q", ErrNameNotFound, query)
	}
	return found, nil
}

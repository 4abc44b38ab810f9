// Package classifier flags battles between test or internal accounts so they
// can be excluded from public stats.
package classifier

import "strings"

// IsTestPair reports whether a battle between artist A (nameA) and artist B
// (nameB) is a test battle. Matching is case-insensitive substring matching.
//
// The first rule is positional: it only matches with hurric4n3ike on side A.
func IsTestPair(nameA, nameB string) bool {
	a := strings.ToLower(nameA)
	b := strings.ToLower(nameB)

	switch {
	case strings.Contains(a, "hurric4n3ike") && strings.Contains(b, "zaal"):
		return true
	case strings.Contains(a, "joov") || strings.Contains(b, "joov"):
		return true
	case strings.Contains(a, "test") || strings.Contains(b, "test"):
		return true
	case strings.Contains(a, "zaal wavewarz") && strings.Contains(b, "zaal wavewarz"):
		return true
	}
	return false
}

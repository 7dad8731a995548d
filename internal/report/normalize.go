package report

import "strings"

// NormalizePluginName reduces a plugin file identifier to its short name:
// "akismet/akismet.php" becomes "akismet" and "hello.php" becomes "hello".
func NormalizePluginName(raw string) string {
	if i := strings.Index(raw, "/"); i >= 0 {
		return raw[:i]
	}
	return strings.TrimSuffix(raw, ".php")
}

// Set is a set of normalized plugin names.
type Set map[string]struct{}

// NewSet normalizes every raw identifier and collects the results.
func NewSet(raw ...string) Set {
	s := make(Set, len(raw))
	for _, r := range raw {
		s[NormalizePluginName(r)] = struct{}{}
	}
	return s
}

// Has reports whether name is in the set.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// normalizeAll normalizes raw identifiers in order, keeping the first
// occurrence of every name.
func normalizeAll(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	names := make([]string, 0, len(raw))
	for _, r := range raw {
		n := NormalizePluginName(r)
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		names = append(names, n)
	}
	return names
}

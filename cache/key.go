package cache

import "strings"

// KeySeparator joins the parts of a composite key
const KeySeparator = ":"

// Key builds a composite key from a resource name and its parameters, e.g. Key("stats", "week") == "stats:week".
// Empty parameters are skipped.
func Key(resource string, params ...string) string {
	if len(params) == 0 {
		return resource
	}
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, resource)
	for _, p := range params {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, KeySeparator)
}

// Prefix returns the prefix shared by every composite key of resource
func Prefix(resource string) string {
	return resource + KeySeparator
}

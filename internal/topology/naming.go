package topology

import "strings"

var nameReplacer = strings.NewReplacer("/", "-", ".", "-", "_", "-", " ", "-", ":", "-")

// NormalizeID returns the form of an identifier used in provisioned
// resource names: lower case, with separators folded to "-". Two
// identifiers of one declaration may not share a normalized form.
func NormalizeID(id string) string {
	return nameReplacer.Replace(strings.ToLower(id))
}

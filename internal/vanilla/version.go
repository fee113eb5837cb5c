package vanilla

import (
	"strings"

	"golang.org/x/mod/semver"
)

// normalizeVersion ensures the version string has a "v" prefix as required
// by semver. Snapshot ids such as "23w13a" are not valid and report false.
func normalizeVersion(v string) (string, bool) {
	norm := v
	if !strings.HasPrefix(norm, "v") {
		norm = "v" + norm
	}
	if !semver.IsValid(norm) {
		return "", false
	}
	return norm, true
}

// Compare compares two release ids. The second result is false when either
// id is not a release version.
func Compare(a, b string) (int, bool) {
	na, ok := normalizeVersion(a)
	if !ok {
		return 0, false
	}
	nb, ok := normalizeVersion(b)
	if !ok {
		return 0, false
	}
	return semver.Compare(na, nb), true
}

// Before reports whether release id a is older than b. Ids that are not
// release versions are never before anything.
func Before(a, b string) bool {
	c, ok := Compare(a, b)
	return ok && c < 0
}

// IsRelease reports whether id is a release version such as "1.20.1".
func IsRelease(id string) bool {
	_, ok := normalizeVersion(id)
	return ok
}

package validation

import "regexp"

// Scope and field name rules:
// - Lowercase only.
// - Start and end with [a-z0-9].
// - Middle chars may include [a-z0-9:_.-].
// - Length 1..64.
// - Excludes semicolon and whitespace explicitly.
//
// Scopes granted to clients and observable field names share this grammar:
// both end up as keys in sync status rows and notification payloads.
//
// Examples valid: first_name, emails, profile:read, a_b-c.d:scope2
// Examples invalid: ;hack, BAD, bad space, :leader, trailer:, "", 65+ chars.
var scopeNameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9:_\.-]{0,62}[a-z0-9])?$`)

// ValidScopeName returns true if the provided scope name matches the allowed pattern.
func ValidScopeName(name string) bool {
	return scopeNameRe.MatchString(name)
}

// ValidFieldName reports whether an observable field name is acceptable.
// Same grammar as scopes; kept as a separate name for call-site clarity.
func ValidFieldName(name string) bool {
	return scopeNameRe.MatchString(name)
}

// Package sanitize turns builder names into tokens that are safe to use as
// URL path segments.
//
// Two rules exist because result storage and the artifact buckets were
// populated by different uploaders. BuilderToken matches the layout of the
// test-results server; URLToken matches the bucket layout used with
// arbitrary base URLs. Both replace one character with one underscore, so
// "WebKit Mac10.8 (dbg)" keeps the double underscore in "__dbg_".
package sanitize

import "regexp"

var (
	// Anything outside [A-Za-z0-9_].
	unsafeChar = regexp.MustCompile(`[^A-Za-z0-9_]`)

	// Whitespace, parentheses and dots.
	delimiterChar = regexp.MustCompile(`[\s().]`)
)

// BuilderToken replaces every character that is not a letter, digit or
// underscore with an underscore.
func BuilderToken(name string) string {
	return unsafeChar.ReplaceAllString(name, "_")
}

// URLToken replaces whitespace, parentheses and dots with underscores and
// leaves every other character alone.
func URLToken(name string) string {
	return delimiterChar.ReplaceAllString(name, "_")
}

// Package sqltext provides lightweight, best-effort classification of raw
// SQL statement text. It is not a SQL parser; callers must tolerate
// misclassification of exotic statements.
package sqltext

import "strings"

// LeadingKeyword returns the first whitespace-delimited token of the
// statement, upper-cased. Empty statements return "".
func LeadingKeyword(statement string) string {
	fields := strings.Fields(statement)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

// ReadOnly reports whether the statement is classified as non-mutating.
// A statement is read-only iff its trimmed, case-insensitive leading
// token is SELECT. Everything else is treated as mutating.
func ReadOnly(statement string) bool {
	return LeadingKeyword(statement) == "SELECT"
}

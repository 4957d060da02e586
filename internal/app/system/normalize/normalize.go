// Package normalize canonicalizes user-supplied strings before they are
// stored or compared.
package normalize

import "strings"

// Email trims and lowercases an address. Stored emails are always in this form.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims and collapses internal whitespace, preserving case.
func Name(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// FullName joins normalized first and last names.
func FullName(first, last string) string {
	return Name(Name(first) + " " + Name(last))
}

// AuthMethod lowercases a sign-in method name.
func AuthMethod(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

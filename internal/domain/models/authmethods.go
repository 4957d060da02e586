// internal/domain/models/authmethods.go
package models

import "strings"

const (
	AuthMethodPassword = "password"
	AuthMethodGoogle   = "google"
)

// IsValidAuthMethod reports whether m is a supported sign-in method.
func IsValidAuthMethod(m string) bool {
	switch strings.ToLower(strings.TrimSpace(m)) {
	case AuthMethodPassword, AuthMethodGoogle:
		return true
	}
	return false
}

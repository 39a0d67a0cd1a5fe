package models

import "slices"

const (
	ScopeOpenID        = "openid"
	ScopeEmail         = "email"
	ScopeProfile       = "profile"
	ScopeOfflineAccess = "offline_access"
)

// SupportedScopes lists every scope the server understands.
var SupportedScopes = []string{ScopeOpenID, ScopeEmail, ScopeProfile, ScopeOfflineAccess}

// IsSupportedScope reports whether s is a known scope.
func IsSupportedScope(s string) bool {
	return slices.Contains(SupportedScopes, s)
}

// HasScope reports whether scopes contains s.
func HasScope(scopes []string, s string) bool {
	return slices.Contains(scopes, s)
}

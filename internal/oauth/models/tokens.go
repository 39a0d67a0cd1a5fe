package models

import (
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	codePrefix         = "BF/C/"
	accessTokenPrefix  = "BF/A/"
	refreshTokenPrefix = "BF/R/"
	randomPartLength   = 32
)

// NewCode mints an authorization code.
func NewCode() string {
	return codePrefix + randomString(randomPartLength)
}

// NewAccessToken mints an access token bound to an encrypted flow id.
func NewAccessToken(encFlowID string) string {
	return accessTokenPrefix + encFlowID + "/" + randomString(randomPartLength)
}

// NewRefreshToken mints a refresh token bound to an encrypted flow id.
func NewRefreshToken(encFlowID string) string {
	return refreshTokenPrefix + encFlowID + "/" + randomString(randomPartLength)
}

// RefreshTokenFlowID returns the encrypted flow id segment of a refresh token.
// Only the position is checked; the caller decrypts and matches the token.
func RefreshTokenFlowID(token string) (string, bool) {
	parts := strings.Split(token, "/")
	if len(parts) < 3 {
		return "", false
	}
	return parts[2], true
}

func randomString(n int) string {
	return gonanoid.Must(n)
}

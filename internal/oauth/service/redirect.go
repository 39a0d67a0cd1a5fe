package service

import (
	"net/url"
	"strings"

	dErrors "idp/pkg/domain-errors"
)

// codeRedirect appends code, iss and (when supplied) state to the client's
// redirect URI.
func (s *Service) codeRedirect(redirectURI, code string, state *string) (string, error) {
	return s.buildRedirect(redirectURI, "code", code, state)
}

// errorRedirect is codeRedirect for an error outcome.
func (s *Service) errorRedirect(redirectURI, errorCode string, state *string) (string, error) {
	return s.buildRedirect(redirectURI, "error", errorCode, state)
}

// buildRedirect keeps any query the client registered and appends after it,
// so parameter order on the wire is stable.
func (s *Service) buildRedirect(redirectURI, key, value string, state *string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "stored redirect_uri is not a valid url")
	}

	pairs := [][2]string{{key, value}, {"iss", s.cfg.Issuer}}
	if state != nil {
		pairs = append(pairs, [2]string{"state", *state})
	}

	var b strings.Builder
	b.WriteString(u.RawQuery)
	for _, p := range pairs {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p[0]))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p[1]))
	}
	u.RawQuery = b.String()
	return u.String(), nil
}

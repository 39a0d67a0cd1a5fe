package models

import "time"

// Client is a registered relying party. Clients are provisioned elsewhere and
// are read-only here.
type Client struct {
	ID                   int64
	OwnerID              int64
	ClientID             string
	ClientSecret         string
	RedirectURIs         []string
	DisplayName          string
	PrivacyURL           *string
	TosURL               *string
	Official             bool
	AllowedScopes        []string
	EnforceCodeChallenge bool
	CreatedAt            time.Time
}

// RPInfo is the public face of a client shown on the consent page.
type RPInfo struct {
	ClientID    string  `json:"client_id"`
	DisplayName string  `json:"display_name"`
	PrivacyURL  *string `json:"privacy_url,omitempty"`
	TosURL      *string `json:"tos_url,omitempty"`
	Official    bool    `json:"official"`
}

// Info projects the client onto its consent page details.
func (c *Client) Info() RPInfo {
	return RPInfo{
		ClientID:    c.ClientID,
		DisplayName: c.DisplayName,
		PrivacyURL:  c.PrivacyURL,
		TosURL:      c.TosURL,
		Official:    c.Official,
	}
}

// HasRedirectURI reports whether uri is registered verbatim.
func (c *Client) HasRedirectURI(uri string) bool {
	for _, u := range c.RedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}

// Package httpclient implements the collaborator ports over JSON HTTP APIs.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"idp/internal/oauth/ports"
	"idp/pkg/platform/sentinel"
	"idp/pkg/requestcontext"
)

const defaultTimeout = 3 * time.Second

// Client is a minimal JSON GET client bound to one service base URL.
type Client struct {
	baseURL string
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid collaborator url %q: %w", baseURL, err)
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if id := requestcontext.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return sentinel.ErrNotFound
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", sentinel.ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// IdentityClient implements ports.IdentityPort.
type IdentityClient struct{ *Client }

func NewIdentityClient(c *Client) *IdentityClient { return &IdentityClient{c} }

func (c *IdentityClient) GetUserByID(ctx context.Context, userID int64) (*ports.User, error) {
	var user ports.User
	if err := c.getJSON(ctx, "/users/"+strconv.FormatInt(userID, 10), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ProfileClient implements ports.ProfilePort.
type ProfileClient struct{ *Client }

func NewProfileClient(c *Client) *ProfileClient { return &ProfileClient{c} }

func (c *ProfileClient) GetProfileByID(ctx context.Context, userID int64) (*ports.Profile, error) {
	var profile ports.Profile
	if err := c.getJSON(ctx, "/profiles/"+strconv.FormatInt(userID, 10), nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ImageClient implements ports.ImagePort.
type ImageClient struct{ *Client }

func NewImageClient(c *Client) *ImageClient { return &ImageClient{c} }

func (c *ImageClient) GetImage(ctx context.Context, imageID int64, ref string) (*ports.Image, error) {
	var image ports.Image
	q := url.Values{"ref": {ref}}
	if err := c.getJSON(ctx, "/images/"+strconv.FormatInt(imageID, 10), q, &image); err != nil {
		return nil, err
	}
	return &image, nil
}

var (
	_ ports.IdentityPort = (*IdentityClient)(nil)
	_ ports.ProfilePort  = (*ProfileClient)(nil)
	_ ports.ImagePort    = (*ImageClient)(nil)
)

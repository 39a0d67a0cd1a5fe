// Package claims builds the standard OIDC claims released for a user.
package claims

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"idp/internal/oauth/models"
	"idp/internal/oauth/ports"
	"idp/pkg/idcodec"
	"idp/pkg/requestcontext"
)

// Assembler resolves claims from the identity, profile and image services.
// Lookups are best effort: any failure drops the affected claims and is
// logged, never returned.
type Assembler struct {
	codec        *idcodec.Codec
	identity     ports.IdentityPort
	profiles     ports.ProfilePort
	images       ports.ImagePort
	frontendRoot string
	logger       *slog.Logger
}

type Option func(*Assembler)

func WithLogger(l *slog.Logger) Option {
	return func(a *Assembler) { a.logger = l }
}

func New(
	codec *idcodec.Codec,
	identity ports.IdentityPort,
	profiles ports.ProfilePort,
	images ports.ImagePort,
	frontendRoot string,
	opts ...Option,
) *Assembler {
	a := &Assembler{
		codec:        codec,
		identity:     identity,
		profiles:     profiles,
		images:       images,
		frontendRoot: frontendRoot,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble returns the claims for userID gated by scopes. sub is always set.
func (a *Assembler) Assemble(ctx context.Context, userID int64, scopes []string) models.Claims {
	subject := a.codec.Encrypt(idcodec.User, userID)
	out := models.Claims{Subject: subject}

	wantEmail := models.HasScope(scopes, models.ScopeEmail)
	wantProfile := models.HasScope(scopes, models.ScopeProfile)

	var (
		user    *ports.User
		profile *ports.Profile
	)
	g, gctx := errgroup.WithContext(ctx)
	if wantEmail && a.identity != nil {
		g.Go(func() error {
			u, err := a.identity.GetUserByID(gctx, userID)
			if err != nil {
				a.warn(ctx, "getting user for claims", userID, err)
				return nil
			}
			user = u
			return nil
		})
	}
	if wantProfile && a.profiles != nil {
		g.Go(func() error {
			p, err := a.profiles.GetProfileByID(gctx, userID)
			if err != nil {
				a.warn(ctx, "getting profile for claims", userID, err)
				return nil
			}
			profile = p
			return nil
		})
	}
	_ = g.Wait()

	if user != nil {
		out.Email = user.Email
		verified := user.Active
		out.EmailVerified = &verified
	}
	if profile != nil {
		name := profile.Name()
		username := profile.Username
		profileURL := fmt.Sprintf("%s/user/%s", a.frontendRoot, a.codec.Encrypt(idcodec.User, profile.UserID))
		out.Name = &name
		out.PreferredUsername = &username
		out.Profile = &profileURL
		out.Picture = a.avatarURL(ctx, profile)
	}
	return out
}

func (a *Assembler) avatarURL(ctx context.Context, profile *ports.Profile) *string {
	if profile.Avatar == nil || a.images == nil {
		return nil
	}
	ref := fmt.Sprintf("profile:%d:avatar", profile.UserID)
	img, err := a.images.GetImage(ctx, *profile.Avatar, ref)
	if err != nil {
		a.logger.WarnContext(ctx, "failed to get avatar for profile",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", profile.UserID,
			"image_id", *profile.Avatar,
			"error", err.Error(),
		)
		return nil
	}
	switch {
	case img == nil:
		return nil
	case img.Full != nil:
		return &img.Full.URL
	case img.Thumbnail != nil:
		return &img.Thumbnail.URL
	}
	return nil
}

func (a *Assembler) warn(ctx context.Context, msg string, userID int64, err error) {
	a.logger.WarnContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID,
		"error", err.Error(),
	)
}

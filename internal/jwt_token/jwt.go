package jwttoken

import (
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"

	"idp/internal/oauth/models"
	dErrors "idp/pkg/domain-errors"
)

// IDTokenClaims is the OIDC ID token payload. Registered claims are spelled
// out rather than embedded because the standard user claims also own "sub".
type IDTokenClaims struct {
	Issuer    string           `json:"iss"`
	Audience  jwt.ClaimStrings `json:"aud"`
	ExpiresAt *jwt.NumericDate `json:"exp"`
	IssuedAt  *jwt.NumericDate `json:"iat"`
	models.Claims
	AuthorizedParty string  `json:"azp"`
	Nonce           *string `json:"nonce,omitempty"`
	AccessTokenHash string  `json:"at_hash"`
	CodeHash        string  `json:"c_hash,omitempty"`
}

func (c IDTokenClaims) GetExpirationTime() (*jwt.NumericDate, error) { return c.ExpiresAt, nil }
func (c IDTokenClaims) GetIssuedAt() (*jwt.NumericDate, error)       { return c.IssuedAt, nil }
func (c IDTokenClaims) GetNotBefore() (*jwt.NumericDate, error)      { return nil, nil }
func (c IDTokenClaims) GetIssuer() (string, error)                   { return c.Issuer, nil }
func (c IDTokenClaims) GetSubject() (string, error)                  { return c.Subject, nil }
func (c IDTokenClaims) GetAudience() (jwt.ClaimStrings, error)       { return c.Audience, nil }

// IDTokenInput is everything needed to mint one ID token.
type IDTokenInput struct {
	ClientID    string
	Claims      models.Claims
	Nonce       *string
	AccessToken string
	// Code is set only when the token answers an authorization code exchange.
	Code      *string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// JWTService signs ID tokens with a single RS256 key and publishes the
// matching public key.
type JWTService struct {
	key    *rsa.PrivateKey
	keyID  string
	issuer string
}

// NewJWTService builds a signer. An empty keyID is replaced by the key's
// RFC 7638 thumbprint.
func NewJWTService(key *rsa.PrivateKey, keyID, issuer string) (*JWTService, error) {
	if key == nil {
		return nil, errors.New("signing key is required")
	}
	if keyID == "" {
		derived, err := DeriveKeyID(key)
		if err != nil {
			return nil, err
		}
		keyID = derived
	}
	return &JWTService{key: key, keyID: keyID, issuer: issuer}, nil
}

func (s *JWTService) KeyID() string { return s.keyID }

// SignIDToken produces a compact RS256 JWS.
func (s *JWTService) SignIDToken(in IDTokenInput) (string, error) {
	claims := IDTokenClaims{
		Issuer:          s.issuer,
		Audience:        jwt.ClaimStrings{in.ClientID},
		ExpiresAt:       jwt.NewNumericDate(in.ExpiresAt),
		IssuedAt:        jwt.NewNumericDate(in.IssuedAt),
		Claims:          in.Claims,
		AuthorizedParty: in.ClientID,
		Nonce:           in.Nonce,
		AccessTokenHash: HalfHash(in.AccessToken),
	}
	if in.Code != nil {
		claims.CodeHash = HalfHash(*in.Code)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.keyID

	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign id token")
	}
	return signed, nil
}

// ParseIDToken verifies an ID token issued by this service. Relying parties
// do this themselves; it exists for diagnostics and tests.
func (s *JWTService) ParseIDToken(tokenString string) (*IDTokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &IDTokenClaims{}, func(token *jwt.Token) (any, error) {
		return &s.key.PublicKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(s.issuer),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*IDTokenClaims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// JWKS returns the public verification key set.
func (s *JWTService) JWKS() jose.JSONWebKeySet {
	return jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
		Key:       &s.key.PublicKey,
		KeyID:     s.keyID,
		Algorithm: string(jose.RS256),
		Use:       "sig",
	}}}
}

// HalfHash is the at_hash/c_hash construction for RS256: the left half of
// the SHA-256 digest, base64url without padding.
func HalfHash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2])
}

func (s *JWTService) String() string {
	return fmt.Sprintf("JWTService{kid=%s}", s.keyID)
}

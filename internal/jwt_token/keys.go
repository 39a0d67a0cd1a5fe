package jwttoken

import (
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/go-jose/go-jose/v4"
)

// LoadRSAKeyFile reads a PEM encoded RSA private key (PKCS1 or PKCS8).
func LoadRSAKeyFile(path string) (*rsa.PrivateKey, error) {
	keyPEM, err := os.ReadFile(path) // #nosec G304 -- path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}
	return ParseRSAKey(keyPEM)
}

// ParseRSAKey decodes a PEM encoded RSA private key (PKCS1 or PKCS8).
func ParseRSAKey(keyPEM []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, errors.New("decode PEM block from signing key")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("signing key is %T, want RSA", key)
	}
	return rsaKey, nil
}

// DeriveKeyID computes the RFC 7638 JWK thumbprint of the public key.
func DeriveKeyID(key *rsa.PrivateKey) (string, error) {
	jwk := jose.JSONWebKey{Key: key.Public()}
	thumbprint, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("compute key thumbprint: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(thumbprint), nil
}

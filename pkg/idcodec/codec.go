// Package idcodec turns internal int64 identifiers into opaque, type-bound
// strings and back.
//
// Encryption is deterministic: the same (type, id) pair always yields the same
// 44-character string. The nonce is derived from the id itself, and
// AES-256-GCM-SIV keeps that reuse safe. The type byte is authenticated as
// additional data, so a string minted for one type never decodes as another.
package idcodec

import (
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	siv "github.com/secure-io/siv-go"
	"golang.org/x/crypto/hkdf"

	dErrors "idp/pkg/domain-errors"
)

// IDType tags the entity an encrypted id belongs to. Values are part of the
// wire format and must not be renumbered.
type IDType uint8

const (
	User IDType = iota + 1
	Session
	LoginAttempt
	OAuthFlow
	OAuthClient
	Image
	AuthSource
)

const (
	keySize       = 32
	nonceSaltSize = 16
	nonce1Size    = 8
	nonce2Size    = 12
	plaintextSize = 8
	// type byte + nonce1 + sealed 8-byte id with a 16-byte tag
	encodedSize = 1 + nonce1Size + plaintextSize + 16
)

// ErrInvalidID is returned for every decryption failure. Callers cannot tell
// a malformed string from a forged or mistyped one.
var ErrInvalidID = dErrors.New(dErrors.CodeInvalidID, "invalid id")

var encoding = base64.RawURLEncoding

// Codec encrypts and decrypts ids. It is safe for concurrent use.
type Codec struct {
	aead      cipher.AEAD
	nonceSalt [nonceSaltSize]byte
}

// New derives the encryption key and nonce salt from secret.
func New(secret []byte) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("id encryption secret is required")
	}

	key := make([]byte, keySize)
	if err := expand(secret, "id-encryption-key", key); err != nil {
		return nil, fmt.Errorf("derive id encryption key: %w", err)
	}

	c := &Codec{}
	if err := expand(secret, "nonce-salt", c.nonceSalt[:]); err != nil {
		return nil, fmt.Errorf("derive nonce salt: %w", err)
	}

	aead, err := siv.NewGCM(key)
	if err != nil {
		return nil, fmt.Errorf("init aes-gcm-siv: %w", err)
	}
	c.aead = aead
	return c, nil
}

// Encrypt returns the opaque form of id for the given type.
func (c *Codec) Encrypt(t IDType, id int64) string {
	var data [plaintextSize]byte
	binary.BigEndian.PutUint64(data[:], uint64(id))

	material := make([]byte, 0, 1+plaintextSize+nonceSaltSize)
	material = append(material, byte(t))
	material = append(material, data[:]...)
	material = append(material, c.nonceSalt[:]...)

	var nonce1 [nonce1Size]byte
	mustExpand(material, "nonce1", nonce1[:])
	nonce2 := deriveNonce2(nonce1[:])

	out := make([]byte, 0, encodedSize)
	out = append(out, byte(t))
	out = append(out, nonce1[:]...)
	out = c.aead.Seal(out, nonce2, data[:], []byte{byte(t)})
	return encoding.EncodeToString(out)
}

// Decrypt recovers the id from s, which must have been produced for type t.
func (c *Codec) Decrypt(t IDType, s string) (int64, error) {
	data, err := encoding.DecodeString(s)
	if err != nil || len(data) != encodedSize {
		return 0, ErrInvalidID
	}
	if data[0] != byte(t) {
		return 0, ErrInvalidID
	}

	nonce2 := deriveNonce2(data[1 : 1+nonce1Size])
	plaintext, err := c.aead.Open(nil, nonce2, data[1+nonce1Size:], data[:1])
	if err != nil || len(plaintext) != plaintextSize {
		return 0, ErrInvalidID
	}
	return int64(binary.BigEndian.Uint64(plaintext)), nil
}

func deriveNonce2(nonce1 []byte) []byte {
	nonce2 := make([]byte, nonce2Size)
	mustExpand(nonce1, "nonce2", nonce2)
	return nonce2
}

// expand runs HKDF-SHA256 with an empty salt.
func expand(ikm []byte, info string, out []byte) error {
	_, err := io.ReadFull(hkdf.New(sha256.New, ikm, nil, []byte(info)), out)
	return err
}

// mustExpand is for fixed small outputs, where HKDF cannot fail.
func mustExpand(ikm []byte, info string, out []byte) {
	if err := expand(ikm, info, out); err != nil {
		panic(err)
	}
}

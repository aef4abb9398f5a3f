package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// Layout of a sealed document blob: Salt ‖ IV ‖ AuthTag ‖ Ciphertext.
const (
	BlobSaltSize = 32
	BlobIVSize   = 16
	BlobTagSize  = 16

	// BlobOverhead is the number of bytes Seal adds to a plaintext.
	BlobOverhead = BlobSaltSize + BlobIVSize + BlobTagSize

	blobKeySize    = 32
	blobIterations = 100_000
)

var (
	// ErrKeyNotConfigured means no master secret is available. It is an
	// operator problem and retrying after fixing config will succeed.
	ErrKeyNotConfigured = errors.New("cryptox: encryption key not configured")

	// ErrIntegrity means the authentication tag did not verify: the blob
	// is corrupted or has been tampered with.
	ErrIntegrity = errors.New("cryptox: corrupted or tampered data")

	// ErrMalformedBlob is returned for blobs too short to hold the header.
	// It wraps ErrIntegrity so callers can treat both the same way.
	ErrMalformedBlob = fmt.Errorf("%w: blob shorter than header", ErrIntegrity)
)

// Sealer encrypts and decrypts document blobs under a single master secret.
// Every Seal derives a fresh key from a random per-blob salt.
//
// A Sealer built from an empty secret is valid but every call fails with
// ErrKeyNotConfigured, so a misconfigured deployment reports itself instead
// of storing plaintext.
type Sealer struct {
	secret []byte
}

// NewSealer returns a Sealer for the given master secret.
func NewSealer(secret []byte) *Sealer {
	s := make([]byte, len(secret))
	copy(s, secret)
	return &Sealer{secret: s}
}

// Configured reports whether a master secret is present.
func (s *Sealer) Configured() bool {
	return s != nil && len(s.secret) > 0
}

// Seal encrypts plaintext and returns Salt ‖ IV ‖ AuthTag ‖ Ciphertext.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	if !s.Configured() {
		return nil, ErrKeyNotConfigured
	}

	out := make([]byte, BlobOverhead, BlobOverhead+len(plaintext)+BlobTagSize)
	salt := out[:BlobSaltSize]
	iv := out[BlobSaltSize : BlobSaltSize+BlobIVSize]
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("cryptox: generate salt: %w", err)
	}
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("cryptox: generate iv: %w", err)
	}

	gcm, err := s.aead(salt)
	if err != nil {
		return nil, err
	}

	// GCM appends the tag after the ciphertext, the blob keeps the tag
	// in front of it.
	sealed := gcm.Seal(nil, iv, plaintext, nil)
	ctLen := len(sealed) - BlobTagSize
	copy(out[BlobSaltSize+BlobIVSize:], sealed[ctLen:])
	out = append(out, sealed[:ctLen]...)

	return out, nil
}

// Open verifies and decrypts a blob produced by Seal.
func (s *Sealer) Open(blob []byte) ([]byte, error) {
	if !s.Configured() {
		return nil, ErrKeyNotConfigured
	}
	if len(blob) < BlobOverhead {
		return nil, ErrMalformedBlob
	}

	salt := blob[:BlobSaltSize]
	iv := blob[BlobSaltSize : BlobSaltSize+BlobIVSize]
	tag := blob[BlobSaltSize+BlobIVSize : BlobOverhead]
	ct := blob[BlobOverhead:]

	gcm, err := s.aead(salt)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, len(ct)+BlobTagSize)
	buf = append(buf, ct...)
	buf = append(buf, tag...)

	plaintext, err := gcm.Open(nil, iv, buf, nil)
	if err != nil {
		return nil, ErrIntegrity
	}
	return plaintext, nil
}

func (s *Sealer) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(s.secret, salt, blobIterations, blobKeySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, BlobIVSize)
	if err != nil {
		return nil, fmt.Errorf("cryptox: new gcm: %w", err)
	}
	return gcm, nil
}

// Package blob stores encrypted document bytes. Keys are relative,
// slash-separated paths such as "<owner>/<uuid>.enc".
package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("blob: not found")
	ErrPathEscape = errors.New("blob: path escapes storage root")
)

// Store is implemented by LocalStore and S3Store.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Pinger is implemented by stores that can report their own health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewKey returns a fresh key for an owner's document.
func NewKey(ownerID string) string {
	return fmt.Sprintf("%s/%s.enc", ownerID, uuid.NewString())
}

// ValidateKey rejects keys that are empty, absolute, contain parent
// segments, backslashes or NUL bytes.
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.ContainsAny(key, "\\\x00") {
		return fmt.Errorf("%w: %q", ErrPathEscape, key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: %q", ErrPathEscape, key)
		}
	}
	return nil
}

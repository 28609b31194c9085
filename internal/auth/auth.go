package auth

import (
	"errors"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// KeyPrefix all API keys must carry.
const KeyPrefix = "sgk_"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidKey   = errors.New("invalid API key")
)

// KeyVerifier validates bearer API keys against a bcrypt hash configured at
// startup. Verified tokens are cached in a sync.Map so the bcrypt compare
// (tens of milliseconds) runs once per key, not per request.
//
// When no hash is configured the verifier is disabled and accepts every
// request, which is the local development mode.
type KeyVerifier struct {
	hash     []byte
	verified sync.Map // map[string]struct{}
}

// NewKeyVerifier creates a verifier. An empty hash disables verification.
func NewKeyVerifier(bcryptHash string) *KeyVerifier {
	return &KeyVerifier{hash: []byte(bcryptHash)}
}

// Enabled reports whether key verification is active.
func (v *KeyVerifier) Enabled() bool {
	return len(v.hash) > 0
}

// Verify checks a bearer token. Format errors and hash mismatches both
// return ErrInvalidKey; empty tokens return ErrMissingToken.
func (v *KeyVerifier) Verify(token string) error {
	if !v.Enabled() {
		return nil
	}
	if token == "" {
		return ErrMissingToken
	}
	if len(token) < 8 || !strings.HasPrefix(token, KeyPrefix) {
		return ErrInvalidKey
	}

	if _, ok := v.verified.Load(token); ok {
		return nil
	}

	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(token)); err != nil {
		return ErrInvalidKey
	}

	v.verified.Store(token, struct{}{})
	return nil
}

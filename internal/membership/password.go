// internal/membership/password.go
package membership

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"

	"golang.org/x/crypto/argon2"
)

// Gate decides whether a request may reach the API.
type Gate func(r *http.Request) bool

// AllowAll is the gate used when no admin password is configured.
func AllowAll(*http.Request) bool { return true }

// PasswordHash is a salted Argon2id hash, base64 encoded.
type PasswordHash struct {
	Hash string
	Salt string
}

// HashPassword generates a salted Argon2id hash of the password.
func HashPassword(password string) (PasswordHash, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return PasswordHash{}, err
	}

	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)

	return PasswordHash{
		Hash: base64.StdEncoding.EncodeToString(hash),
		Salt: base64.StdEncoding.EncodeToString(salt),
	}, nil
}

// Verify compares a password with the salted hash.
func (p PasswordHash) Verify(password string) (bool, error) {
	decodedSalt, err := base64.StdEncoding.DecodeString(p.Salt)
	if err != nil {
		return false, fmt.Errorf("failed to decode salt: %w", err)
	}

	decodedHash, err := base64.StdEncoding.DecodeString(p.Hash)
	if err != nil {
		return false, fmt.Errorf("failed to decode hash: %w", err)
	}

	comparisonHash := argon2.IDKey([]byte(password), decodedSalt, 1, 64*1024, 4, 32)

	return subtle.ConstantTimeCompare(decodedHash, comparisonHash) == 1, nil
}

// BasicAuthGate admits requests carrying the admin user and a password that
// matches hash.
func BasicAuthGate(user string, hash PasswordHash) Gate {
	return func(r *http.Request) bool {
		u, password, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 {
			return false
		}
		valid, err := hash.Verify(password)
		return err == nil && valid
	}
}

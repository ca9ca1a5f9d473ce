package secrets

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/bcrypt"

	dErrors "presale/pkg/domain-errors"
)

// sessionAlphabet matches the characters the provider accepts in a form's
// user_id query parameter.
const sessionAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// sessionCutoff is the largest multiple of the alphabet size that fits in a
// byte. Bytes at or above it are discarded so every character is equally
// likely.
const sessionCutoff = 256 - 256%len(sessionAlphabet)

// SessionKey returns a random uppercase alphanumeric key of length n. It
// identifies a general-flow form session and comes back in the callback as
// the submitter identifier.
func SessionKey(n int) (string, error) {
	return sessionKey(rand.Reader, n)
}

func sessionKey(r io.Reader, n int) (string, error) {
	key := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(key) < n {
		chunk := buf[:n-len(key)]
		if _, err := io.ReadFull(r, chunk); err != nil {
			return "", fmt.Errorf("could not generate session key: %w", err)
		}
		for _, b := range chunk {
			if int(b) < sessionCutoff {
				key = append(key, sessionAlphabet[int(b)%len(sessionAlphabet)])
			}
		}
	}
	return string(key), nil
}

// Hash creates a bcrypt hash of the provided secret.
func Hash(secret string) (string, error) {
	if secret == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "secret cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "secret is too long")
		}
		return "", fmt.Errorf("could not hash secret: %w", err)
	}
	return string(hashed), nil
}

// Verify checks if a plaintext secret matches a bcrypt hash.
func Verify(secret, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return dErrors.New(dErrors.CodeUnauthorized, "invalid secret")
		}
		return fmt.Errorf("could not verify secret: %w", err)
	}
	return nil
}

// Users maps operator names to bcrypt hashes and satisfies the admin gate's
// credential checker.
type Users map[string]string

// dummyHash is compared against when the username is unknown so a miss
// costs the same bcrypt work as a wrong password.
var dummyHash = sync.OnceValue(func() []byte {
	secret := make([]byte, 32)
	_, _ = rand.Read(secret)
	hash, err := bcrypt.GenerateFromPassword(secret, bcrypt.DefaultCost)
	if err != nil {
		panic(fmt.Sprintf("secrets: generate dummy hash: %v", err))
	}
	return hash
})

var compareHash = bcrypt.CompareHashAndPassword

// Check reports whether password matches the stored hash for username.
func (u Users) Check(username, password string) bool {
	if password == "" {
		return false
	}
	hash, ok := u[username]
	if !ok {
		_ = compareHash(dummyHash(), []byte(password))
		return false
	}
	return compareHash([]byte(hash), []byte(password)) == nil
}

// Package auth verifies operator credentials for operations that
// mutate historical money records (the void path). Credentials are
// stored as bcrypt hashes; where the hash comes from (env, operator
// table) is the caller's concern.
package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredential is returned for an unknown actor or a
// non-matching credential. Deliberately indistinguishable.
var ErrInvalidCredential = errors.New("invalid credential")

// HashCredential produces a bcrypt hash suitable for storage.
func HashCredential(credential string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// BcryptVerifier checks credentials against bcrypt hashes resolved
// through a lookup function.
type BcryptVerifier struct {
	lookup func(actor string) (hash string, ok bool)
}

func NewBcryptVerifier(lookup func(actor string) (string, bool)) *BcryptVerifier {
	return &BcryptVerifier{lookup: lookup}
}

// NewSingleOperatorVerifier accepts one shared hash for every actor,
// the smallest setup a community install runs with.
func NewSingleOperatorVerifier(hash string) *BcryptVerifier {
	return NewBcryptVerifier(func(string) (string, bool) { return hash, hash != "" })
}

func (v *BcryptVerifier) Verify(actor, credential string) error {
	hash, ok := v.lookup(actor)
	if !ok {
		return ErrInvalidCredential
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(credential)); err != nil {
		return ErrInvalidCredential
	}
	return nil
}

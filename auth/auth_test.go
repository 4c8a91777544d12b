package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RodrigoEnd/sistema-digital-comunidad-sub000/auth"
)

func TestBcryptVerifier_RoundTrip(t *testing.T) {
	hash, err := auth.HashCredential("secreto123")
	require.NoError(t, err)
	assert.NotEqual(t, "secreto123", hash, "hash must not be the plaintext")

	v := auth.NewSingleOperatorVerifier(hash)

	assert.NoError(t, v.Verify("admin", "secreto123"))
	assert.ErrorIs(t, v.Verify("admin", "incorrecta"), auth.ErrInvalidCredential)
	assert.ErrorIs(t, v.Verify("admin", ""), auth.ErrInvalidCredential)
}

func TestSingleOperatorVerifier_EmptyHash_RejectsEverything(t *testing.T) {
	// An unconfigured install has no operator hash; the void path must
	// stay closed rather than open.
	v := auth.NewSingleOperatorVerifier("")
	assert.ErrorIs(t, v.Verify("admin", "cualquiera"), auth.ErrInvalidCredential)
}

func TestBcryptVerifier_PerActorLookup(t *testing.T) {
	adminHash, err := auth.HashCredential("clave-admin")
	require.NoError(t, err)

	v := auth.NewBcryptVerifier(func(actor string) (string, bool) {
		if actor == "admin" {
			return adminHash, true
		}
		return "", false
	})

	assert.NoError(t, v.Verify("admin", "clave-admin"))
	// Unknown actor and wrong credential are indistinguishable.
	assert.ErrorIs(t, v.Verify("desconocido", "clave-admin"), auth.ErrInvalidCredential)
	assert.ErrorIs(t, v.Verify("admin", "clave-otra"), auth.ErrInvalidCredential)
}

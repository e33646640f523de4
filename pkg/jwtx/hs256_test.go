package jwtx

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testIssuer = "aihub-test"

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func mint(t *testing.T, ttl time.Duration) (string, Claims) {
	t.Helper()

	claims := NewSessionClaims(
		"01J0000000000000000000TEST",
		"jane.doe@example.com",
		"admin",
		"Jane Doe",
		ttl,
		testIssuer,
		time.Now().UTC(),
	)

	signer := &HS256Signer{Secret: testSecret}
	token, err := signer.Sign(claims)
	require.NoError(t, err)

	return token, claims
}

func TestSignVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	token, want := mint(t, time.Hour)

	verifier := &HS256Verifier{Secret: testSecret, Issuer: testIssuer}
	got, err := verifier.Verify(token)
	require.NoError(t, err)

	require.Equal(t, want.Subject, got.Subject)
	require.Equal(t, want.Email, got.Email)
	require.Equal(t, want.Role, got.Role)
	require.Equal(t, want.Name, got.Name)
	require.NoError(t, got.ValidateExpiry())
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	t.Parallel()

	token, _ := mint(t, time.Hour)

	// Flip a character in the payload segment.
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	payload := []byte(parts[1])
	if payload[0] == 'A' {
		payload[0] = 'B'
	} else {
		payload[0] = 'A'
	}
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	verifier := &HS256Verifier{Secret: testSecret, Issuer: testIssuer}
	_, err := verifier.Verify(tampered)
	require.Error(t, err)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	t.Parallel()

	token, _ := mint(t, time.Hour)

	verifier := &HS256Verifier{Secret: []byte("another-secret-entirely-32-bytes"), Issuer: testIssuer}
	_, err := verifier.Verify(token)
	require.ErrorIs(t, err, ErrInvalidSig)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	t.Parallel()

	token, _ := mint(t, -time.Minute)

	verifier := &HS256Verifier{Secret: testSecret, Issuer: testIssuer}
	_, err := verifier.Verify(token)
	require.ErrorIs(t, err, ErrExpired)
}

func TestVerifyRejectsMalformedToken(t *testing.T) {
	t.Parallel()

	verifier := &HS256Verifier{Secret: testSecret, Issuer: testIssuer}
	for _, tok := range []string{"", "garbage", "a.b", "a.b.c.d"} {
		_, err := verifier.Verify(tok)
		require.ErrorIs(t, err, ErrMalformed, "token %q", tok)
	}
}

func TestVerifyRejectsIssuerMismatch(t *testing.T) {
	t.Parallel()

	token, _ := mint(t, time.Hour)

	verifier := &HS256Verifier{Secret: testSecret, Issuer: "someone-else"}
	_, err := verifier.Verify(token)
	require.ErrorIs(t, err, ErrIssuer)
}

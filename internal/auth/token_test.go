package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(accessTTL time.Duration) *TokenService {
	return NewTokenService("access-secret", "refresh-secret", accessTTL, 720*time.Hour, NewMemoryRevocationStore())
}

func validPayload() TokenPayload {
	return TokenPayload{SubjectID: "42", Email: "pat@example.com", Role: RolePatient}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := newTestService(15 * time.Minute)

	token, exp, err := svc.SignAccessToken(validPayload())
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), exp, 2*time.Second)

	got, err := svc.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "42", got.SubjectID)
	assert.Equal(t, "pat@example.com", got.Email)
	assert.Equal(t, RolePatient, got.Role)
	assert.False(t, got.IssuedAt.IsZero())
	assert.False(t, got.ExpiresAt.IsZero())
}

func TestSignStripsSignerTimestamps(t *testing.T) {
	svc := newTestService(15 * time.Minute)

	// Caller-supplied expiry must be ignored: the signer always stamps its own.
	p := validPayload()
	p.ExpiresAt = time.Now().Add(-time.Hour)
	p.IssuedAt = time.Now().Add(-time.Hour)

	token, _, err := svc.SignAccessToken(p)
	require.NoError(t, err)

	got, err := svc.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.True(t, got.ExpiresAt.After(time.Now()))
}

func TestSignRejectsInvalidPayload(t *testing.T) {
	svc := newTestService(15 * time.Minute)

	cases := map[string]TokenPayload{
		"empty subject":      {SubjectID: "", Email: "a@b.com", Role: RolePatient},
		"blank subject":      {SubjectID: "   ", Email: "a@b.com", Role: RolePatient},
		"malformed email":    {SubjectID: "1", Email: "not-an-email", Role: RoleDoctor},
		"empty email":        {SubjectID: "1", Email: "", Role: RoleDoctor},
		"unknown role":       {SubjectID: "1", Email: "a@b.com", Role: "SUPERUSER"},
		"lowercase role":     {SubjectID: "1", Email: "a@b.com", Role: "admin"},
		"empty role":         {SubjectID: "1", Email: "a@b.com", Role: ""},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := svc.SignAccessToken(p)
			assert.ErrorIs(t, err, ErrInvalidPayload)
			_, _, err = svc.SignRefreshToken(p)
			assert.ErrorIs(t, err, ErrInvalidPayload)
		})
	}
}

func TestCrossVerificationFails(t *testing.T) {
	svc := newTestService(15 * time.Minute)

	access, _, err := svc.SignAccessToken(validPayload())
	require.NoError(t, err)
	refresh, _, err := svc.SignRefreshToken(validPayload())
	require.NoError(t, err)

	_, err = svc.VerifyRefreshToken(access)
	assert.ErrorIs(t, err, ErrTokenMalformed)
	_, err = svc.VerifyAccessToken(refresh)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestVerifyExpiredToken(t *testing.T) {
	svc := newTestService(-time.Minute) // already expired at signing time

	token, _, err := svc.SignAccessToken(validPayload())
	require.NoError(t, err)

	_, err = svc.VerifyAccessToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyGarbage(t *testing.T) {
	svc := newTestService(15 * time.Minute)

	for _, tok := range []string{"", "garbage", "a.b.c", "eyJhbGciOiJIUzI1NiJ9.e30."} {
		_, err := svc.VerifyAccessToken(tok)
		assert.ErrorIs(t, err, ErrTokenMalformed, "token %q", tok)
	}
}

func TestRevocation(t *testing.T) {
	svc := newTestService(15 * time.Minute)
	ctx := context.Background()

	tok1, _, err := svc.SignAccessToken(validPayload())
	require.NoError(t, err)
	p2 := validPayload()
	p2.SubjectID = "43"
	tok2, _, err := svc.SignAccessToken(p2)
	require.NoError(t, err)

	revoked, err := svc.IsRevoked(ctx, tok1)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, svc.Revoke(ctx, tok1))
	// Revocation is idempotent.
	require.NoError(t, svc.Revoke(ctx, tok1))

	revoked, err = svc.IsRevoked(ctx, tok1)
	require.NoError(t, err)
	assert.True(t, revoked)

	// A different token of the same class stays usable.
	revoked, err = svc.IsRevoked(ctx, tok2)
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRevokeExpiredTokenIsNoop(t *testing.T) {
	svc := newTestService(-time.Minute)
	ctx := context.Background()

	token, _, err := svc.SignAccessToken(validPayload())
	require.NoError(t, err)

	// Nothing to store: the token could not verify anyway.
	require.NoError(t, svc.Revoke(ctx, token))
	revoked, err := svc.IsRevoked(ctx, token)
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestPurgeRevocationRecords(t *testing.T) {
	svc := newTestService(15 * time.Minute)
	ctx := context.Background()

	token, _, err := svc.SignAccessToken(validPayload())
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(ctx, token))

	require.NoError(t, svc.PurgeRevocationRecords(ctx))

	revoked, err := svc.IsRevoked(ctx, token)
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestSignPair(t *testing.T) {
	svc := newTestService(15 * time.Minute)

	pair, err := svc.SignPair(validPayload())
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	assert.True(t, pair.RefreshExp.After(pair.AccessExp))

	_, err = svc.VerifyAccessToken(pair.AccessToken)
	assert.NoError(t, err)
	_, err = svc.VerifyRefreshToken(pair.RefreshToken)
	assert.NoError(t, err)
}

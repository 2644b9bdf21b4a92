package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating and parsing signed tokens
)

// Role enumerates the account roles recognized by the platform. The role is
// embedded in every token and drives the authorization middleware.
type Role string

const (
	RolePatient Role = "PATIENT"
	RoleDoctor  Role = "DOCTOR"
	RoleAdmin   Role = "ADMIN"
)

// ValidRole reports whether r belongs to the closed role enumeration.
func ValidRole(r Role) bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

// TokenPayload carries the identity claims embedded in a signed token.
// Only SubjectID, Email and Role are ever written into a new token; IssuedAt
// and ExpiresAt are populated by the signer and stripped when a payload is
// re-signed. Whatever extra claims a caller-supplied token may carry are
// dropped on both the sign and verify paths, so the service never
// round-trips claims it did not put there itself.
type TokenPayload struct {
	SubjectID string    // opaque account identifier, never empty
	Email     string    // validated email address
	Role      Role      // one of PATIENT, DOCTOR, ADMIN
	IssuedAt  time.Time // set by the signer
	ExpiresAt time.Time // set by the signer
}

// validate checks the payload against the contract shared by every sign and
// verify operation.
func (p TokenPayload) validate() error {
	if strings.TrimSpace(p.SubjectID) == "" {
		return ErrInvalidPayload
	}
	if _, err := mail.ParseAddress(p.Email); err != nil {
		return ErrInvalidPayload
	}
	if !ValidRole(p.Role) {
		return ErrInvalidPayload
	}
	return nil
}

// TokenPair bundles the two credentials returned to a client after
// authentication. The access token is short-lived and authorizes individual
// requests; the refresh token is long-lived and is used solely to mint new
// pairs. The two are signed with distinct secrets so possession of one can
// never verify as, or forge, the other.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	AccessExp    time.Time `json:"access_expires"`
	RefreshExp   time.Time `json:"refresh_expires"`
}

// TokenService mints and validates bearer credentials and tracks revoked
// tokens through a time-indexed revocation store. Construct one per process
// with NewTokenService; all methods are safe for concurrent use.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	revoked       RevocationStore
}

// NewTokenService builds a TokenService. The two secrets must differ so that
// a compromise of one secret does not let an attacker mint tokens of the
// other class.
func NewTokenService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, revoked RevocationStore) *TokenService {
	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		revoked:       revoked,
	}
}

// SignAccessToken validates and sanitizes the payload, then signs an HS256
// access token with the configured access lifetime.
func (s *TokenService) SignAccessToken(p TokenPayload) (string, time.Time, error) {
	return sign(p, s.accessSecret, s.accessTTL)
}

// SignRefreshToken is the refresh-class counterpart of SignAccessToken: same
// payload contract, refresh secret, longer lifetime.
func (s *TokenService) SignRefreshToken(p TokenPayload) (string, time.Time, error) {
	return sign(p, s.refreshSecret, s.refreshTTL)
}

// SignPair issues a fresh access/refresh pair for the same identity.
func (s *TokenService) SignPair(p TokenPayload) (TokenPair, error) {
	access, accessExp, err := s.SignAccessToken(p)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.SignRefreshToken(p)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

// VerifyAccessToken checks the token against the access secret and returns
// the sanitized payload. It fails with ErrTokenExpired when the embedded
// expiry has passed, ErrTokenMalformed when the signature or structure is
// invalid, and ErrInvalidPayload when the decoded claims fail the whitelist
// check.
func (s *TokenService) VerifyAccessToken(token string) (TokenPayload, error) {
	return verify(token, s.accessSecret)
}

// VerifyRefreshToken is the refresh-class counterpart of VerifyAccessToken.
func (s *TokenService) VerifyRefreshToken(token string) (TokenPayload, error) {
	return verify(token, s.refreshSecret)
}

// Revoke adds the literal token string to the revocation store. The entry
// lives exactly as long as the token itself would: its TTL is derived from
// the token's own expiry claim, so the store never accumulates entries for
// tokens that could no longer verify anyway. Revoking an already-revoked or
// already-expired token is a no-op.
func (s *TokenService) Revoke(ctx context.Context, token string) error {
	ttl := s.remainingLifetime(token)
	if ttl <= 0 {
		return nil
	}
	return s.revoked.Revoke(ctx, hashToken(token), ttl)
}

// IsRevoked reports whether the token has been revoked. Callers must consult
// this in addition to signature verification: a valid signature alone does
// not imply the token is still usable.
func (s *TokenService) IsRevoked(ctx context.Context, token string) (bool, error) {
	return s.revoked.IsRevoked(ctx, hashToken(token))
}

// PurgeRevocationRecords clears every revocation entry. Administrative hook;
// entries normally evict on their own when their token's lifetime lapses.
func (s *TokenService) PurgeRevocationRecords(ctx context.Context) error {
	return s.revoked.Purge(ctx)
}

// remainingLifetime extracts the exp claim without verifying the signature
// (the token may belong to either class) and returns how long the token is
// still valid for. Tokens without a readable expiry are pinned to the
// refresh lifetime, the longest any token of ours can live.
func (s *TokenService) remainingLifetime(token string) time.Duration {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return s.refreshTTL
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return s.refreshTTL
	}
	return time.Until(exp.Time)
}

// sign validates the payload, strips it to the three whitelisted claims and
// signs it with the given secret. The exp and iat claims are always set
// fresh here, never copied from the input payload.
func sign(p TokenPayload, secret []byte, ttl time.Duration) (string, time.Time, error) {
	if err := p.validate(); err != nil {
		return "", time.Time{}, err
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":   p.SubjectID,
		"email": p.Email,
		"role":  string(p.Role),
		"exp":   exp.Unix(),
		"iat":   now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// verify parses the token with the given secret and maps library failures
// onto the package's error taxonomy. The decoded claims pass through the
// same whitelist as signing, so unexpected extra claims are never echoed
// back to callers.
func verify(token string, secret []byte) (TokenPayload, error) {
	tok, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		// Reject tokens signed with anything other than HMAC before the
		// signature is even checked.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenMalformed
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return TokenPayload{}, ErrTokenExpired
		}
		return TokenPayload{}, ErrTokenMalformed
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return TokenPayload{}, ErrTokenMalformed
	}

	p := TokenPayload{}
	if sub, ok := claims["sub"].(string); ok {
		p.SubjectID = sub
	}
	if email, ok := claims["email"].(string); ok {
		p.Email = email
	}
	if role, ok := claims["role"].(string); ok {
		p.Role = Role(role)
	}
	if err := p.validate(); err != nil {
		return TokenPayload{}, err
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		p.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		p.ExpiresAt = exp.Time
	}
	return p, nil
}

// hashToken returns the SHA-256 hash of the token as a hex string. Only the
// hash is ever stored, so a dump of the revocation store cannot be replayed
// as live credentials.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

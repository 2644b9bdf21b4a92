package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/clinic-auth/internal/auth"
	"github.com/iliyamo/clinic-auth/internal/handler"
	"github.com/iliyamo/clinic-auth/internal/maintenance"
	"github.com/iliyamo/clinic-auth/internal/router"
)

// memStore is a minimal maintenance.Store for exercising the admin surface
// end to end through the router.
type memStore struct {
	users map[uint64]time.Time
	otps  map[uint64]time.Time
}

func (s *memStore) FindUnverifiedUsersOlderThan(_ context.Context, cutoff time.Time) ([]maintenance.UnverifiedUser, error) {
	var out []maintenance.UnverifiedUser
	for id, createdAt := range s.users {
		if createdAt.Before(cutoff) {
			out = append(out, maintenance.UnverifiedUser{ID: id, CreatedAt: createdAt})
		}
	}
	return out, nil
}

func (s *memStore) DeleteUsers(_ context.Context, ids []uint64) error {
	for _, id := range ids {
		delete(s.users, id)
	}
	return nil
}

func (s *memStore) FindExpiredOTPRequests(_ context.Context, now time.Time) ([]uint64, error) {
	var out []uint64
	for id, exp := range s.otps {
		if exp.Before(now) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *memStore) DeleteOTPRequests(_ context.Context, ids []uint64) error {
	for _, id := range ids {
		delete(s.otps, id)
	}
	return nil
}

func setupAdmin(t *testing.T) (*echo.Echo, *auth.TokenService, *memStore) {
	t.Helper()
	store := &memStore{
		users: map[uint64]time.Time{
			1: time.Now().UTC().Add(-2 * time.Hour),
			2: time.Now().UTC(),
		},
		otps: map[uint64]time.Time{
			10: time.Now().UTC().Add(-time.Minute),
		},
	}
	tokens := auth.NewTokenService("acc", "ref", 15*time.Minute, time.Hour, auth.NewMemoryRevocationStore())
	scheduler := maintenance.NewScheduler(maintenance.NewEngine(store, time.Hour), nil)

	e := echo.New()
	router.RegisterAdmin(e, handler.NewMaintenanceHandler(scheduler, tokens))
	return e, tokens, store
}

func bearerFor(t *testing.T, tokens *auth.TokenService, role auth.Role) string {
	t.Helper()
	token, _, err := tokens.SignAccessToken(auth.TokenPayload{
		SubjectID: "7",
		Email:     "admin@example.com",
		Role:      role,
	})
	require.NoError(t, err)
	return "Bearer " + token
}

func doReq(e *echo.Echo, method, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAdminEndpointsRequireToken(t *testing.T) {
	e, _, _ := setupAdmin(t)
	rec := doReq(e, http.MethodGet, "/v1/admin/cleanup/stats", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminEndpointsRejectNonAdmin(t *testing.T) {
	e, tokens, _ := setupAdmin(t)
	bearer := bearerFor(t, tokens, auth.RolePatient)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/v1/admin/cleanup/stats"},
		{http.MethodGet, "/v1/admin/cleanup/candidates"},
		{http.MethodPost, "/v1/admin/cleanup/run"},
		{http.MethodGet, "/v1/admin/scheduler"},
		{http.MethodPost, "/v1/admin/revocations/purge"},
	} {
		rec := doReq(e, tc.method, tc.path, bearer)
		assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestAdminStats(t *testing.T) {
	e, tokens, _ := setupAdmin(t)
	rec := doReq(e, http.MethodGet, "/v1/admin/cleanup/stats", bearerFor(t, tokens, auth.RoleAdmin))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"unverified_users":1`)
	assert.Contains(t, body, `"expired_otp_requests":1`)
}

func TestAdminRunNowDeletes(t *testing.T) {
	e, tokens, store := setupAdmin(t)
	bearer := bearerFor(t, tokens, auth.RoleAdmin)

	rec := doReq(e, http.MethodPost, "/v1/admin/cleanup/run", bearer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"deleted_count":1`)

	// The stale user and the expired OTP are gone, the fresh user remains.
	assert.Len(t, store.users, 1)
	assert.Empty(t, store.otps)

	// A second run finds nothing.
	rec = doReq(e, http.MethodPost, "/v1/admin/cleanup/run", bearer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"deleted_count":0`)
}

func TestAdminCandidatesDoesNotDelete(t *testing.T) {
	e, tokens, store := setupAdmin(t)
	rec := doReq(e, http.MethodGet, "/v1/admin/cleanup/candidates", bearerFor(t, tokens, auth.RoleAdmin))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":1`)
	assert.Len(t, store.users, 2)
	assert.Len(t, store.otps, 1)
}

func TestAdminSchedulerStatus(t *testing.T) {
	e, tokens, _ := setupAdmin(t)
	rec := doReq(e, http.MethodGet, "/v1/admin/scheduler", bearerFor(t, tokens, auth.RoleAdmin))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"running":false`)
	assert.Contains(t, body, `"next_run_at":null`)
}

func TestRevokedAdminTokenRejected(t *testing.T) {
	e, tokens, _ := setupAdmin(t)
	bearer := bearerFor(t, tokens, auth.RoleAdmin)

	raw := strings.TrimPrefix(bearer, "Bearer ")
	require.NoError(t, tokens.Revoke(context.Background(), raw))

	rec := doReq(e, http.MethodGet, "/v1/admin/cleanup/stats", bearer)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "token revoked")
}

package handler

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/clinic-auth/internal/auth"
	"github.com/iliyamo/clinic-auth/internal/config"
	"github.com/iliyamo/clinic-auth/internal/repository"
	"github.com/iliyamo/clinic-auth/internal/utils"
)

// AuthHandler bundles dependencies for the auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	OTPs   *repository.OTPRepo
	Tokens *auth.TokenService
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, o *repository.OTPRepo, t *auth.TokenService) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, OTPs: o, Tokens: t}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"` // PATIENT | DOCTOR
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type verifyReq struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}
type otpReq struct {
	Email string `json:"email"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type userPart struct {
	ID         uint64 `json:"id"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	IsVerified bool   `json:"is_verified"`
}
type authResp struct {
	User   userPart       `json:"user"`
	Tokens auth.TokenPair `json:"tokens"`
}

// Register creates an unverified user, issues a verification code and
// returns a token pair immediately. The account stays usable during the
// grace period; if it is never verified the maintenance scheduler removes it.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}
	// ADMIN is never self-assignable through registration.
	role := auth.Role(strings.ToUpper(strings.TrimSpace(req.Role)))
	if role != auth.RoleDoctor && role != auth.RolePatient {
		role = auth.RolePatient
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Email, req.Password, string(role), h.Cfg.BcryptCost)
	if err != nil {
		if err == repository.ErrEmailExists {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}

	if err := h.issueOTP(ctx, uid, req.Email); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue verification code failed"})
	}

	pair, err := h.Tokens.SignPair(auth.TokenPayload{
		SubjectID: strconv.FormatUint(uid, 10),
		Email:     req.Email,
		Role:      role,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}

	return c.JSON(http.StatusCreated, authResp{
		User:   userPart{ID: uid, Email: req.Email, Role: string(role)},
		Tokens: pair,
	})
}

// Verify consumes a one-time code and marks the account verified, taking it
// out of the cleanup candidate set for good.
func (h *AuthHandler) Verify(c echo.Context) error {
	var req verifyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Code = strings.TrimSpace(req.Code)
	if req.Email == "" || req.Code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/code required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid code"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if u.IsVerified {
		return c.JSON(http.StatusConflict, echo.Map{"error": "already verified"})
	}
	if err := h.OTPs.Consume(ctx, u.ID, utils.HashOTPCode(req.Code)); err != nil {
		switch err {
		case repository.ErrOTPNotFound, repository.ErrOTPMismatch:
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid code"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "verify failed"})
		}
	}
	if err := h.Users.MarkVerified(ctx, u.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "verify failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// RequestOTP re-issues a verification code for an unverified account.
func (h *AuthHandler) RequestOTP(c echo.Context) error {
	var req otpReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if err == sql.ErrNoRows {
			// Do not reveal whether the address is registered.
			return c.NoContent(http.StatusNoContent)
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if u.IsVerified {
		return c.JSON(http.StatusConflict, echo.Map{"error": "already verified"})
	}
	if err := h.issueOTP(ctx, u.ID, u.Email); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue verification code failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Login verifies credentials and returns a fresh token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	pair, err := h.Tokens.SignPair(auth.TokenPayload{
		SubjectID: strconv.FormatUint(u.ID, 10),
		Email:     u.Email,
		Role:      auth.Role(u.Role),
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}

	return c.JSON(http.StatusOK, authResp{
		User:   userPart{ID: u.ID, Email: u.Email, Role: u.Role, IsVerified: u.IsVerified},
		Tokens: pair,
	})
}

// Refresh validates a refresh token, revokes it and issues a new pair
// (rotation: a refresh token is single-use). The 401 body distinguishes an
// expired refresh token so clients know a re-login is needed rather than a
// retry.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	raw := strings.TrimSpace(req.RefreshToken)

	payload, err := h.Tokens.VerifyRefreshToken(raw)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "refresh token expired"})
		}
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	revoked, err := h.Tokens.IsRevoked(ctx, raw)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "revocation check failed"})
	}
	if revoked {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}

	// Retire the presented token before handing out its replacement.
	if err := h.Tokens.Revoke(ctx, raw); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "rotate failed"})
	}

	pair, err := h.Tokens.SignPair(payload)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"tokens": pair})
}

// Logout revokes the presented credentials: the refresh token from the body,
// the access token from the Authorization header, or both. Revocation is
// idempotent, so logging out twice is harmless.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	refresh := strings.TrimSpace(req.RefreshToken)

	access := ""
	if header := c.Request().Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		access = strings.TrimPrefix(header, "Bearer ")
	}

	if refresh == "" && access == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "provide Authorization header or refresh_token"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if refresh != "" {
		if err := h.Tokens.Revoke(ctx, refresh); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
		}
	}
	if access != "" {
		if err := h.Tokens.Revoke(ctx, access); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
		}
	}
	return c.NoContent(http.StatusNoContent)
}

// Me is a simple protected endpoint echoing the authenticated identity.
func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"user_id": c.Get("user_id"),
		"email":   c.Get("email"),
		"role":    c.Get("role"),
	})
}

// issueOTP stores a fresh verification code for the user. Mail delivery is
// handled by an external notification service watching the users table; in
// dev the code is logged so the flow can be exercised locally.
func (h *AuthHandler) issueOTP(ctx context.Context, userID uint64, email string) error {
	code, err := utils.NewOTPCode()
	if err != nil {
		return err
	}
	exp := time.Now().UTC().Add(h.Cfg.OTPTTL)
	if err := h.OTPs.Create(ctx, userID, utils.HashOTPCode(code), exp); err != nil {
		return err
	}
	if h.Cfg.Env == "dev" {
		log.Printf("auth: verification code for %s: %s (expires %s)", email, code, exp.Format(time.RFC3339))
	}
	return nil
}

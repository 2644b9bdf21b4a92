package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/clinic-auth/internal/auth"
	"github.com/iliyamo/clinic-auth/internal/maintenance"
)

// MaintenanceHandler exposes the administrative surface of the maintenance
// scheduler. Route registration gates every endpoint behind
// RequireRole("ADMIN"); the handler itself assumes the caller is authorized
// and reports engine failures as "operation failed" responses, distinct from
// the role gate's 403.
type MaintenanceHandler struct {
	Scheduler *maintenance.Scheduler
	Tokens    *auth.TokenService
}

func NewMaintenanceHandler(s *maintenance.Scheduler, t *auth.TokenService) *MaintenanceHandler {
	return &MaintenanceHandler{Scheduler: s, Tokens: t}
}

// Stats returns a fresh cleanup preview: how many records a pass would
// delete right now and when the next scheduled pass runs. Nothing is
// mutated.
func (h *MaintenanceHandler) Stats(c echo.Context) error {
	stats, err := h.Scheduler.Statistics(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error":  "operation failed",
			"detail": err.Error(),
		})
	}
	return c.JSON(http.StatusOK, stats)
}

// Candidates lists the records eligible for deletion without deleting them,
// so an administrator can inspect what RunNow would remove.
func (h *MaintenanceHandler) Candidates(c echo.Context) error {
	users, otpIDs, err := h.Scheduler.Preview(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error":  "operation failed",
			"detail": err.Error(),
		})
	}
	if users == nil {
		users = []maintenance.UnverifiedUser{}
	}
	if otpIDs == nil {
		otpIDs = []uint64{}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"unverified_users":     users,
		"expired_otp_requests": otpIDs,
	})
}

// RunNow triggers an immediate cleanup pass and returns its result. A
// partial failure still reports what was deleted by the rule that succeeded.
func (h *MaintenanceHandler) RunNow(c echo.Context) error {
	res, err := h.Scheduler.RunNow(c.Request().Context())
	if err != nil {
		var partial *maintenance.PartialError
		if errors.As(err, &partial) {
			return c.JSON(http.StatusInternalServerError, echo.Map{
				"error":  "operation failed",
				"detail": partial.Error(),
				"result": partial.Result,
			})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error":  "operation failed",
			"detail": err.Error(),
		})
	}
	return c.JSON(http.StatusOK, res)
}

// Status reports the scheduler state: running flag, interval, next scheduled
// run and the outcome of the most recent pass.
func (h *MaintenanceHandler) Status(c echo.Context) error {
	resp := echo.Map{
		"running":     h.Scheduler.IsRunning(),
		"interval_ms": h.Scheduler.Interval().Milliseconds(),
	}
	if next := h.Scheduler.NextRunAt(); !next.IsZero() {
		resp["next_run_at"] = next.Format(time.RFC3339)
	} else {
		resp["next_run_at"] = nil
	}
	last, lastErr := h.Scheduler.LastResult()
	resp["last_result"] = last
	if lastErr != nil {
		resp["last_error"] = lastErr.Error()
	}
	return c.JSON(http.StatusOK, resp)
}

// PurgeRevocations clears the token revocation store. Entries evict on their
// own when their token expires; this hook exists for incident response.
func (h *MaintenanceHandler) PurgeRevocations(c echo.Context) error {
	if err := h.Tokens.PurgeRevocationRecords(c.Request().Context()); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error":  "operation failed",
			"detail": err.Error(),
		})
	}
	return c.NoContent(http.StatusNoContent)
}

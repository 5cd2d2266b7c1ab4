package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/onnwee/reviewrank/internal/audit"
	"github.com/onnwee/reviewrank/internal/auth"
	"github.com/onnwee/reviewrank/internal/middleware"
	"github.com/onnwee/reviewrank/internal/popular"
)

// TokenValidator validates bearer tokens for admin endpoints.
// Implemented by auth.JWTService.
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.Claims, error)
}

// subjectKey is the context key carrying the authenticated subject.
type subjectContextKey struct{}

// GetSubject retrieves the authenticated subject from the context.
func GetSubject(ctx context.Context) string {
	if sub, ok := ctx.Value(subjectContextKey{}).(string); ok {
		return sub
	}
	return ""
}

// RequireAuth wraps a handler with bearer token authentication.
// The validated subject is placed on the request context.
func RequireAuth(validator TokenValidator, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
			WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Missing or malformed Authorization header")
			return
		}

		claims, err := validator.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
			WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), subjectContextKey{}, claims.Subject)
		next(w, r.WithContext(ctx))
	}
}

// AdminHandler serves operator endpoints for the ranking pipeline.
type AdminHandler struct {
	runner  popular.Runner
	audits  audit.Repository
	timeout time.Duration
	logger  *slog.Logger
}

// NewAdminHandler creates an admin handler that drives the given runner.
// Each triggered recompute runs under the given timeout and is recorded
// in the audit repository.
func NewAdminHandler(runner popular.Runner, audits audit.Repository, timeout time.Duration, logger *slog.Logger) *AdminHandler {
	if timeout <= 0 {
		timeout = popular.DefaultAggregationTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{runner: runner, audits: audits, timeout: timeout, logger: logger}
}

// RecomputeRequest is the optional body of a recompute trigger.
// An absent or empty period recomputes every period.
type RecomputeRequest struct {
	Period string `json:"period,omitempty"`
}

// RecomputeResponse reports the entry counts written per period.
type RecomputeResponse struct {
	Recomputed map[string]int `json:"recomputed"`
	Pruned     int64          `json:"pruned"`
}

// RecomputePopular handles POST /api/admin/popular/recompute.
//
// Runs aggregation synchronously for the requested period, or for every
// period when none is given, then prunes snapshot rows for deleted reviews.
func (h *AdminHandler) RecomputePopular(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	var req RecomputeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
			return
		}
	}

	periods := popular.Periods
	if req.Period != "" {
		p, err := popular.ParsePeriod(req.Period)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "period must be one of daily, weekly, monthly, all_time")
			return
		}
		periods = []popular.Period{p}
	}

	entityID := "all"
	if req.Period != "" {
		entityID = req.Period
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	recomputed := make(map[string]int, len(periods))
	for _, p := range periods {
		entries, err := h.runner.Run(ctx, p)
		if err != nil {
			h.logger.Error("operator-triggered recompute failed",
				"period", string(p),
				"subject", GetSubject(r.Context()),
				"error", err)
			h.recordAudit(r, entityID, audit.ActionRecompute, "failure")
			errCtx := middleware.SetErrorCode(r.Context(), ErrCodeAggregationFailed)
			WriteError(w, errCtx, http.StatusInternalServerError, ErrCodeAggregationFailed, "Recompute failed for period "+string(p))
			return
		}
		recomputed[string(p)] = entries
	}
	h.recordAudit(r, entityID, audit.ActionRecompute, "success")

	pruned, err := h.runner.PruneDeleted(ctx)
	if err != nil {
		h.logger.Warn("failed to prune deleted reviews after recompute", "error", err)
		h.recordAudit(r, entityID, audit.ActionPrune, "failure")
	} else {
		h.recordAudit(r, entityID, audit.ActionPrune, "success")
	}

	h.logger.Info("operator-triggered recompute completed",
		"subject", GetSubject(r.Context()),
		"periods", len(periods),
		"pruned", pruned)

	writeJSON(w, r.Context(), http.StatusOK, RecomputeResponse{
		Recomputed: recomputed,
		Pruned:     pruned,
	})
}

// recordAudit writes an operator audit entry. An unavailable audit store
// must not take down the admin surface, so failures are only logged.
func (h *AdminHandler) recordAudit(r *http.Request, entityID, action, outcome string) {
	if h.audits == nil {
		return
	}
	err := audit.LogFromRequest(r, h.audits, GetSubject(r.Context()),
		audit.EntityPopularSnapshot, entityID, action, outcome)
	if err != nil {
		h.logger.Warn("failed to record audit entry",
			"action", action,
			"outcome", outcome,
			"error", err)
	}
}

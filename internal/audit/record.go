package audit

import (
	"net"
	"net/http"
	"strings"

	"github.com/onnwee/reviewrank/internal/middleware"
)

// extractIPAddress resolves the client IP from X-Forwarded-For, X-Real-IP,
// or RemoteAddr, in that order, with any port stripped.
func extractIPAddress(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := xff
		if idx := strings.Index(xff, ","); idx != -1 {
			first = xff[:idx]
		}
		first = strings.TrimSpace(first)
		if first != "" {
			if host, _, err := net.SplitHostPort(first); err == nil {
				return host
			}
			return first
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if host, _, err := net.SplitHostPort(xri); err == nil {
			return host
		}
		return xri
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// LogFromRequest records an operator action with request metadata attached.
//
// Fail-closed: an audit write failure is returned to the caller so the
// action is never silently unaccounted for.
func LogFromRequest(r *http.Request, repo Repository, subject, entityType, entityID, action, outcome string) error {
	if repo == nil {
		return ErrNilRepository
	}

	_, err := repo.Log(r.Context(), Record{
		Subject:    subject,
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Outcome:    outcome,
		RequestID:  middleware.GetRequestID(r.Context()),
		IPAddress:  extractIPAddress(r),
	})
	return err
}

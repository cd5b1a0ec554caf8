package httpapi

import (
	"errors"
	"net/http"

	"github.com/riskibarqy/dashboard-bootstrap/internal/domain/onboarding"
	"github.com/riskibarqy/dashboard-bootstrap/internal/usecase"
)

type bootstrapDTO struct {
	UserID         string `json:"user_id"`
	ShowOnboarding bool   `json:"show_onboarding"`
	RevealDelayMS  int64  `json:"reveal_delay_ms"`
}

// Dashboard answers one page load: anonymous callers are redirected to login, everyone
// else receives the onboarding decision.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Dashboard")
	defer span.End()

	result, err := h.bootstrapService.Bootstrap(ctx, sessionCredential(r, h.session.CookieNames))
	if err != nil && !errors.Is(err, usecase.ErrIdentityAbsent) {
		h.logger.WarnContext(ctx, "dashboard bootstrap failed", "path", r.URL.Path, "error", err)
		writeError(ctx, w, err)
		return
	}

	switch result.Outcome {
	case onboarding.OutcomeRedirectToLogin:
		location := h.loginRedirect(r)
		h.logger.DebugContext(ctx, "anonymous dashboard request redirected", "path", r.URL.Path, "location", location)
		http.Redirect(w, r, location, http.StatusFound)
	default:
		w.Header().Set("Cache-Control", "no-store")
		writeSuccess(ctx, w, http.StatusOK, bootstrapDTO{
			UserID:         result.UserID,
			ShowOnboarding: result.Outcome == onboarding.OutcomeDashboardWithOnboarding,
			RevealDelayMS:  result.RevealDelay.Milliseconds(),
		})
	}
}

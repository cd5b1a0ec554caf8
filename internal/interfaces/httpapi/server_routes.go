package httpapi

import (
	"net/http"

	"github.com/riskibarqy/dashboard-bootstrap/internal/usecase"
)

func registerSystemRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
}

// Dashboard routes resolve the session themselves so an anonymous caller is redirected
// instead of rejected.
func registerDashboardRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /dashboard", handler.Dashboard)
	mux.HandleFunc("GET /v1/dashboard/bootstrap", handler.Dashboard)
}

func registerAuthorizedOnboardingRoutes(mux *http.ServeMux, handler *Handler, identity usecase.IdentityProvider) {
	cookies := handler.session.CookieNames
	mux.Handle("GET /v1/onboarding", RequireIdentity(identity, cookies, http.HandlerFunc(handler.GetOnboarding)))
	mux.Handle("POST /v1/onboarding/complete", RequireIdentity(identity, cookies, http.HandlerFunc(handler.CompleteOnboarding)))
	mux.Handle("POST /v1/onboarding/skip", RequireIdentity(identity, cookies, http.HandlerFunc(handler.SkipOnboarding)))
}

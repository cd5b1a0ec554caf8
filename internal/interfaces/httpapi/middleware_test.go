package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/riskibarqy/dashboard-bootstrap/internal/platform/id"
	"github.com/riskibarqy/dashboard-bootstrap/internal/platform/logging"
)

func TestSessionCredential(t *testing.T) {
	cookies := []string{"sb-access-token", "access_token"}
	tests := []struct {
		name    string
		cookies map[string]string
		auth    string
		want    string
	}{
		{name: "none", want: ""},
		{name: "first cookie", cookies: map[string]string{"sb-access-token": "a", "access_token": "b"}, want: "a"},
		{name: "second cookie", cookies: map[string]string{"access_token": "b"}, want: "b"},
		{name: "bearer fallback", auth: "Bearer xyz", want: "xyz"},
		{name: "bearer case insensitive", auth: "bearer xyz ", want: "xyz"},
		{name: "basic ignored", auth: "Basic abc", want: ""},
		{name: "cookie wins", cookies: map[string]string{"access_token": "c"}, auth: "Bearer xyz", want: "c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
			for name, value := range tt.cookies {
				req.AddCookie(&http.Cookie{Name: name, Value: value})
			}
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			if got := sessionCredential(req, cookies); got != tt.want {
				t.Fatalf("sessionCredential()=%q want=%q", got, tt.want)
			}
		})
	}
}

func TestRequestID_EchoesValidAndReplacesInvalid(t *testing.T) {
	var seen string
	handler := RequestID(id.NewUUIDGenerator(), http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	inbound := "6f1c1d2e-3b4a-4c5d-8e9f-0a1b2c3d4e5f"
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set(requestIDHeader, inbound)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, inbound, seen)
	assert.Equal(t, inbound, rec.Header().Get(requestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set(requestIDHeader, "not a uuid; drop table")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.True(t, id.Valid(seen), "generated id %q", seen)
	assert.NotEqual(t, inbound, seen)
	assert.Equal(t, seen, rec.Header().Get(requestIDHeader))
}

func TestRequestLogging_RecordsStatusAndRequestID(t *testing.T) {
	core, logs := observer.New(logging.LevelInfo)
	logger := logging.FromZap(zap.New(core))

	handler := RequestID(id.NewUUIDGenerator(), RequestLogging(logger, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	req := httptest.NewRequest(http.MethodPost, "/v1/onboarding/skip", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.EqualValues(t, http.StatusTeapot, fields["status"])
	assert.Equal(t, "/v1/onboarding/skip", fields["path"])
	assert.Equal(t, rec.Header().Get(requestIDHeader), fields["request_id"])
}

func TestShouldTraceRequest(t *testing.T) {
	for _, path := range []string{"/healthz", "/HEALTH", "/livez", "/readyz", " /healthz "} {
		assert.False(t, shouldTraceRequest(path), "probe path %q", path)
	}
	for _, path := range []string{"/dashboard", "/v1/dashboard/bootstrap", "/v1/onboarding/skip", "/"} {
		assert.True(t, shouldTraceRequest(path), "route %q", path)
	}
}

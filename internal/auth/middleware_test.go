package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testConfig = Config{Secret: "test-secret", Issuer: "fitlog-test"}

func serve(t *testing.T, m Middleware, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := FromContext(r.Context())
		if r.URL.Path != "/healthz" {
			require.True(t, ok)
			require.Equal(t, "user-1", claims.Subject)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	m.Wrap(next).ServeHTTP(rec, req)
	return rec
}

func TestMiddlewareEnforcesScopes(t *testing.T) {
	m := NewMiddleware(testConfig)

	readOnly, err := IssueToken(testConfig, "user-1", []string{ScopeEntriesRead}, time.Hour)
	require.NoError(t, err)

	require.Equal(t, http.StatusNoContent, serve(t, m, http.MethodGet, "/api/entries", readOnly).Code)

	rec := serve(t, m, http.MethodPost, "/api/entries", readOnly)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.JSONEq(t, `{"type":"forbidden","message":"missing scope entries:write"}`, rec.Body.String())

	writer, err := IssueToken(testConfig, "user-1", []string{ScopeEntriesRead, ScopeEntriesWrite}, time.Hour)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, serve(t, m, http.MethodPost, "/api/entries", writer).Code)
}

func TestMiddlewareRejectsBadTokens(t *testing.T) {
	m := NewMiddleware(testConfig)

	require.Equal(t, http.StatusUnauthorized, serve(t, m, http.MethodGet, "/api/entries", "").Code)
	require.Equal(t, http.StatusUnauthorized, serve(t, m, http.MethodGet, "/api/entries", "not-a-jwt").Code)

	otherIssuer, err := IssueToken(Config{Secret: testConfig.Secret, Issuer: "someone-else"}, "user-1", []string{ScopeEntriesRead}, time.Hour)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, serve(t, m, http.MethodGet, "/api/entries", otherIssuer).Code)

	expired, err := IssueToken(testConfig, "user-1", []string{ScopeEntriesRead}, -time.Minute)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, serve(t, m, http.MethodGet, "/api/entries", expired).Code)
}

func TestMiddlewareSkipsHealth(t *testing.T) {
	require.Equal(t, http.StatusNoContent, serve(t, NewMiddleware(testConfig), http.MethodGet, "/healthz", "").Code)
}

func TestNormalizeScopes(t *testing.T) {
	require.Len(t, normalizeScopes([]interface{}{"a", "", 3, "b"}), 2)
	require.Len(t, normalizeScopes("a  b c"), 3)
	require.Empty(t, normalizeScopes(nil))

	var claims *Claims
	require.False(t, claims.HasScope(ScopeEntriesRead))
}

func TestMiddlewareSkipsOnlyRealPreflight(t *testing.T) {
	m := NewMiddleware(testConfig)
	reached := false
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		reached = true
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name     string
		headers  map[string]string
		expected int
		reached  bool
	}{
		{name: "bare options", expected: http.StatusUnauthorized},
		{name: "origin only", headers: map[string]string{"Origin": "http://localhost:3000"}, expected: http.StatusUnauthorized},
		{name: "preflight", headers: map[string]string{
			"Origin":                        "http://localhost:3000",
			"Access-Control-Request-Method": http.MethodPost,
		}, expected: http.StatusNoContent, reached: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached = false
			req := httptest.NewRequest(http.MethodOptions, "/api/entries", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			m.Wrap(next).ServeHTTP(rec, req)
			require.Equal(t, tt.expected, rec.Code)
			require.Equal(t, tt.reached, reached)
		})
	}
}

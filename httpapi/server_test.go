package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	voicegrant "github.com/MrEthical07/voicegrant"
	"github.com/MrEthical07/voicegrant/token"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const referenceToken = "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCIsImN0eSI6InR3aWxpby1mcGE7dj0xIn0." +
	"eyJqdGkiOiJTSzEtMTcwMDAwMDAwMCIsImlzcyI6IlNLMSIsInN1YiI6IkFDMSIsImV4cCI6MTcwMDAwMzYwMCwiZ3JhbnRzIjp7ImlkZW50aXR5IjoiYWxpY2VAZXhhbXBsZS5jb20iLCJ2b2ljZSI6eyJpbmNvbWluZyI6eyJhbGxvdyI6dHJ1ZX0sIm91dGdvaW5nIjp7ImFwcGxpY2F0aW9uX3NpZCI6IkFQMSJ9fX19." +
	"ozAXxnnQO9xM1aM_h8TIm38bL8ljqGpflJgBAEEpHlc"

func testKeys() voicegrant.KeyMaterial {
	return voicegrant.KeyMaterial{
		AccountID:         "AC1",
		KeyID:             "SK1",
		Secret:            "s3cr3t",
		ApplicationTarget: "AP1",
	}
}

func newEngine(t *testing.T, keys voicegrant.KeyMaterial) *voicegrant.Engine {
	t.Helper()
	engine, err := voicegrant.New().
		WithKeys(keys).
		WithClock(func() time.Time { return time.Unix(1700000000, 0) }).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	return engine
}

func do(t *testing.T, h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func assertCORS(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestTokenSuccess(t *testing.T) {
	srv := New(newEngine(t, testKeys()), DefaultConfig(), zerolog.Nop())

	rec := do(t, srv, http.MethodPost, "/api/token",
		`{"identity":"alice@example.com","userId":"u-1","userName":"Alice"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assertCORS(t, rec)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, referenceToken, body["token"])
	assert.Equal(t, "alice@example.com", body["identity"])
	assert.Equal(t, "u-1", body["userId"])
	assert.Equal(t, "Alice", body["userName"])
	assert.Equal(t, float64(3600), body["expiresIn"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestTokenSuccessAlwaysEchoesUserFields(t *testing.T) {
	srv := New(newEngine(t, testKeys()), DefaultConfig(), zerolog.Nop())

	tests := []struct {
		name     string
		body     string
		userID   string
		userName string
	}{
		{"absent", `{"identity":"alice@example.com"}`, "", ""},
		{"empty strings", `{"identity":"alice@example.com","userId":"","userName":""}`, "", ""},
		{"one set", `{"identity":"alice@example.com","userName":"Alice"}`, "", "Alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/token", tt.body)
			require.Equal(t, http.StatusOK, rec.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Contains(t, body, "userId")
			require.Contains(t, body, "userName")
			assert.Equal(t, tt.userID, body["userId"])
			assert.Equal(t, tt.userName, body["userName"])
		})
	}
}

func TestTokenRequestErrors(t *testing.T) {
	srv := New(newEngine(t, testKeys()), DefaultConfig(), zerolog.Nop())

	tests := []struct {
		name   string
		method string
		body   string
		status int
		want   string
	}{
		{"preflight", http.MethodOptions, "", http.StatusOK, ""},
		{"get", http.MethodGet, "", http.StatusMethodNotAllowed, `{"error":"Method not allowed"}`},
		{"put", http.MethodPut, `{"identity":"a"}`, http.StatusMethodNotAllowed, `{"error":"Method not allowed"}`},
		{"empty body", http.MethodPost, "", http.StatusBadRequest, `{"error":"Identity is required"}`},
		{"malformed json", http.MethodPost, `{"identity":`, http.StatusBadRequest, `{"error":"Identity is required"}`},
		{"wrong type", http.MethodPost, `{"identity":42}`, http.StatusBadRequest, `{"error":"Identity is required"}`},
		{"empty identity", http.MethodPost, `{"identity":""}`, http.StatusBadRequest, `{"error":"Identity is required"}`},
		{"blank identity", http.MethodPost, `{"identity":"   "}`, http.StatusBadRequest, `{"error":"Identity is required"}`},
		{"null body", http.MethodPost, `null`, http.StatusBadRequest, `{"error":"Identity is required"}`},
		{"empty object", http.MethodPost, `{}`, http.StatusBadRequest, `{"error":"Identity is required"}`},
		{"null identity", http.MethodPost, `{"identity":null}`, http.StatusBadRequest, `{"error":"Identity is required"}`},
		{"only user fields", http.MethodPost, `{"userId":"u-1","userName":"Alice"}`, http.StatusBadRequest, `{"error":"Identity is required"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, tt.method, "/api/token", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assertCORS(t, rec)
			if tt.want == "" {
				assert.Empty(t, rec.Body.String())
				return
			}
			assert.JSONEq(t, tt.want, rec.Body.String())
		})
	}
}

func TestTokenMisconfigured(t *testing.T) {
	keys := testKeys()
	keys.Secret = ""
	srv := New(newEngine(t, keys), DefaultConfig(), zerolog.Nop())

	// Keys are checked before the body is looked at.
	for _, body := range []string{`{"identity":"alice"}`, `{}`, `not json`} {
		rec := do(t, srv, http.MethodPost, "/api/token", body)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"success":false,"error":"Missing Twilio env vars on server"}`, rec.Body.String())
		assertCORS(t, rec)
	}

	rec := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTokenBodyLimit(t *testing.T) {
	srv := New(newEngine(t, testKeys()), DefaultConfig(), zerolog.Nop())

	big := `{"identity":"` + strings.Repeat("a", 20*1024) + `"}`
	rec := do(t, srv, http.MethodPost, "/api/token", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assertCORS(t, rec)
}

type stubEngine struct {
	issueErr error
	expose   bool
}

func (s stubEngine) Issue(context.Context, voicegrant.CredentialRequest) (*voicegrant.IssuedToken, error) {
	return nil, s.issueErr
}

func (s stubEngine) Verify(context.Context, string) (*token.VerifiedClaims, error) {
	return nil, voicegrant.ErrTokenInvalid
}

func (stubEngine) Ready() error                 { return nil }
func (s stubEngine) ExposeInternalErrors() bool { return s.expose }
func (stubEngine) MetricsSnapshot() voicegrant.MetricsSnapshot {
	return voicegrant.MetricsSnapshot{}
}
func (stubEngine) AuditDropped() uint64 { return 0 }

func TestTokenIssueFailureMapping(t *testing.T) {
	internal := fmt.Errorf("%w: encode claims: boom", voicegrant.ErrIssuanceFailed)

	tests := []struct {
		name   string
		engine stubEngine
		status int
		want   string
	}{
		{"rate limited", stubEngine{issueErr: voicegrant.ErrRateLimited}, http.StatusTooManyRequests,
			`{"success":false,"error":"Too many requests"}`},
		{"limiter down", stubEngine{issueErr: voicegrant.ErrIssuanceUnavailable}, http.StatusServiceUnavailable,
			`{"success":false,"error":"Token service unavailable"}`},
		{"internal hidden", stubEngine{issueErr: internal}, http.StatusInternalServerError,
			`{"success":false,"error":"Token error"}`},
		{"internal exposed", stubEngine{issueErr: internal, expose: true}, http.StatusInternalServerError,
			`{"success":false,"error":"` + internal.Error() + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New(tt.engine, DefaultConfig(), zerolog.Nop())
			rec := do(t, srv, http.MethodPost, "/api/token", `{"identity":"alice"}`)
			assert.Equal(t, tt.status, rec.Code)
			assert.JSONEq(t, tt.want, rec.Body.String())
			assertCORS(t, rec)
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	engine := newEngine(t, testKeys())
	srv := New(engine, DefaultConfig(), zerolog.Nop())

	rec := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	do(t, srv, http.MethodPost, "/api/token", `{"identity":"alice"}`)

	rec = do(t, srv, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `voicegrant_issue_total{outcome="success"} 1`)
}

func TestMetricsRouteDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableMetrics = false
	srv := New(newEngine(t, testKeys()), cfg, zerolog.Nop())

	rec := do(t, srv, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIntrospect(t *testing.T) {
	srv := New(newEngine(t, testKeys()), DefaultConfig(), zerolog.Nop())

	rec := do(t, srv, http.MethodGet, "/api/token/introspect", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/token/introspect", "", "Authorization", "Bearer "+referenceToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"identity":"alice@example.com",
		"jti":"SK1-1700000000",
		"iss":"SK1",
		"sub":"AC1",
		"exp":1700003600,
		"incoming":true,
		"applicationTarget":"AP1"
	}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), referenceToken)
}

func TestRequestLogNeverCarriesToken(t *testing.T) {
	var buf bytes.Buffer
	srv := New(newEngine(t, testKeys()), DefaultConfig(), zerolog.New(&buf))

	rec := do(t, srv, http.MethodPost, "/api/token", `{"identity":"alice@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	out := buf.String()
	assert.Contains(t, out, `"path":"/api/token"`)
	assert.Contains(t, out, `"status":200`)
	assert.NotContains(t, out, referenceToken)
	assert.NotContains(t, out, "s3cr3t")
}

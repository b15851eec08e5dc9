package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/ably-labs/webcli/internal/credential"
)

func signRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewSignHandler(credential.NewSigner(secret))
	r.POST("/sign", h.Sign)
	r.NoMethod(h.MethodNotAllowed)
	r.HandleMethodNotAllowed = true
	return r
}

func doRequest(t *testing.T, r *gin.Engine, method, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, "/sign", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSign_Success(t *testing.T) {
	t.Parallel()

	r := signRouter("test-secret")
	w := doRequest(t, r, http.MethodPost, `{"apiKey":"appid.keyid:keysecret","bypassRateLimit":true}`)
	require.Equal(t, http.StatusOK, w.Code)

	var cred credential.SignedCredential
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cred))
	require.NotEmpty(t, cred.SignedConfig)
	require.True(t, credential.Verify(cred.SignedConfig, cred.Signature, "test-secret"))
	require.Contains(t, cred.SignedConfig, `"bypassRateLimit":true`)
}

func TestSign_BadRequests(t *testing.T) {
	t.Parallel()

	r := signRouter("test-secret")

	tests := []struct {
		name string
		body string
	}{
		{name: "empty body", body: ""},
		{name: "malformed json", body: `{"apiKey":`},
		{name: "missing api key", body: `{"accessToken":"tok"}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := doRequest(t, r, http.MethodPost, tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestSign_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	r := signRouter("test-secret")
	w := doRequest(t, r, http.MethodGet, "")
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestSign_NoSecretConfigured(t *testing.T) {
	t.Parallel()

	r := signRouter("")
	w := doRequest(t, r, http.MethodPost, `{"apiKey":"appid.keyid:keysecret"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
}

package auth

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jwttoken "certvault/internal/jwt_token"
	"certvault/pkg/requestcontext"
)

const (
	testKey      = "test-signing-key"
	testIssuer   = "certvault"
	testAudience = "certvault-api"
)

func TestRequireIssuer(t *testing.T) {
	svc := jwttoken.NewJWTService(testKey, testIssuer, testAudience)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var issuer string
	h := RequireIssuer(svc, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		issuer = requestcontext.Issuer(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	valid, err := svc.GenerateIssuerToken("registrar", time.Hour)
	require.NoError(t, err)
	unscoped := signUnscoped(t)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "valid token", header: "Bearer " + valid, status: http.StatusNoContent},
		{name: "missing header", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "missing scope", header: "Bearer " + unscoped, status: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issuer = ""
			req := httptest.NewRequest(http.MethodPost, "/certificates", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.status, rr.Code)
			if tt.status == http.StatusNoContent {
				assert.Equal(t, "registrar", issuer)
			} else {
				assert.Empty(t, issuer)
			}
		})
	}
}

func signUnscoped(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwttoken.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "reader",
			Issuer:    testIssuer,
			Audience:  []string{testAudience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testKey))
	require.NoError(t, err)
	return signed
}

package auth

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-testing"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func signed(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestGenerateToken(t *testing.T) {
	am := NewAuthMiddleware(testSecret, time.Hour)

	token, err := am.GenerateToken("alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := am.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims["username"])

	exp, ok := claims["exp"].(float64)
	require.True(t, ok)
	assert.Greater(t, exp, float64(time.Now().Unix()))
}

func TestGenerateToken_NoSecret(t *testing.T) {
	am := NewAuthMiddleware("", 0)

	_, err := am.GenerateToken("alice")
	assert.Error(t, err)
	assert.Equal(t, defaultTokenTTL, am.TTL())
}

func TestValidateToken(t *testing.T) {
	am := NewAuthMiddleware(testSecret, time.Hour)
	now := time.Now()

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{
			name:  "valid token",
			token: signed(t, jwt.MapClaims{"username": "bob", "exp": now.Add(time.Hour).Unix()}, testSecret),
		},
		{
			name:    "expired token",
			token:   signed(t, jwt.MapClaims{"username": "bob", "exp": now.Add(-time.Hour).Unix()}, testSecret),
			wantErr: true,
		},
		{
			name:    "wrong secret",
			token:   signed(t, jwt.MapClaims{"username": "bob", "exp": now.Add(time.Hour).Unix()}, "other"),
			wantErr: true,
		},
		{
			name:    "missing username claim",
			token:   signed(t, jwt.MapClaims{"exp": now.Add(time.Hour).Unix()}, testSecret),
			wantErr: true,
		},
		{
			name:    "garbage",
			token:   "invalid.token.format",
			wantErr: true,
		},
		{
			name:    "empty",
			token:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := am.ValidateToken(tt.token)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "bob", claims["username"])
		})
	}
}

func TestAuthMiddleware_RequireAuth(t *testing.T) {
	am := NewAuthMiddleware(testSecret, time.Hour)
	validToken, err := am.GenerateToken("carol")
	require.NoError(t, err)

	router := gin.New()
	router.Use(am.RequireAuth())
	router.GET("/protected", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"username": c.GetString("username")})
	})

	tests := []struct {
		name           string
		setupRequest   func(req *http.Request)
		expectedStatus int
	}{
		{
			name: "bearer header",
			setupRequest: func(req *http.Request) {
				req.Header.Set("Authorization", "Bearer "+validToken)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "cookie",
			setupRequest: func(req *http.Request) {
				req.AddCookie(&http.Cookie{Name: "token", Value: validToken})
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing token",
			setupRequest:   func(req *http.Request) {},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "malformed header",
			setupRequest: func(req *http.Request) {
				req.Header.Set("Authorization", "Token "+validToken)
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "invalid cookie",
			setupRequest: func(req *http.Request) {
				req.AddCookie(&http.Cookie{Name: "token", Value: "invalid-token"})
			},
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			tt.setupRequest(req)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				assert.Contains(t, w.Body.String(), `"username":"carol"`)
			}
		})
	}
}

package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenTTL = 24 * time.Hour

// AuthMiddleware issues and checks the HS256 tokens that guard the admin API.
type AuthMiddleware struct {
	secret []byte
	ttl    time.Duration
}

func NewAuthMiddleware(secret string, ttl time.Duration) *AuthMiddleware {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &AuthMiddleware{secret: []byte(secret), ttl: ttl}
}

func (am *AuthMiddleware) TTL() time.Duration {
	return am.ttl
}

func (am *AuthMiddleware) GenerateToken(username string) (string, error) {
	if len(am.secret) == 0 {
		return "", errors.New("token secret is not configured")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"username": username,
		"exp":      now.Add(am.ttl).Unix(),
		"iat":      now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(am.secret)
}

func (am *AuthMiddleware) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return am.secret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		if _, ok := claims["username"].(string); !ok {
			return nil, jwt.ErrTokenInvalidClaims
		}
		return claims, nil
	}

	return nil, jwt.ErrTokenInvalidClaims
}

// tokenFromRequest prefers an Authorization: Bearer header and falls back to
// the "token" cookie.
func tokenFromRequest(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok && token != "" {
			return token, true
		}
	}
	if token, err := c.Cookie("token"); err == nil && token != "" {
		return token, true
	}
	return "", false
}

// RequireAuth rejects requests without a valid token and stores the
// authenticated username under "username".
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := tokenFromRequest(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Token is missing"})
			c.Abort()
			return
		}

		claims, err := am.ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Set("username", claims["username"].(string))

		c.Next()
	}
}

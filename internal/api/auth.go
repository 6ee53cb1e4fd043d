package api

import (
	"log/slog"
	"net/http"

	a "linechat/internal/auth"

	"github.com/gin-gonic/gin"
)

type AuthHandlers struct {
	creds   a.Authenticator
	am      *a.AuthMiddleware
	isAdmin func(username string) bool
	logger  *slog.Logger
}

func NewAuthHandlers(creds a.Authenticator, am *a.AuthMiddleware, isAdmin func(string) bool, logger *slog.Logger) *AuthHandlers {
	return &AuthHandlers{
		creds:   creds,
		am:      am,
		isAdmin: isAdmin,
		logger:  logger,
	}
}

type UserLoginInput struct {
	Username string `json:"username" binding:"required" example:"alice"`
	Password string `json:"password" binding:"required" example:"securePassword123"`
}

type LoginResponse struct {
	Message string `json:"message" example:"Login successful"`
	Token   string `json:"token"`
}

type ErrorResponse struct {
	Error string `json:"error" example:"Invalid credentials"`
}

// LoginHandler exchanges chat credentials for an admin token
// @Summary Admin login
// @Description Check username and password against the chat credential store and issue a JWT
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body UserLoginInput true "Login request"
// @Success 200 {object} LoginResponse "Login successful"
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Invalid credentials"
// @Failure 403 {object} ErrorResponse "Not an administrator"
// @Failure 429 {object} ErrorResponse "Rate limit exceeded"
// @Router /login [post]
func (h *AuthHandlers) LoginHandler(c *gin.Context) {
	var input UserLoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.creds.Authenticate(input.Username, input.Password) {
		h.logger.Warn("admin login failed", "user", input.Username, "remote", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if !h.isAdmin(input.Username) {
		h.logger.Warn("admin login refused", "user", input.Username, "remote", c.ClientIP())
		c.JSON(http.StatusForbidden, gin.H{"error": "Not an administrator"})
		return
	}

	token, err := h.am.GenerateToken(input.Username)
	if err != nil {
		h.logger.Error("token generation failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Token generation failed"})
		return
	}

	c.SetCookie("token", token, int(h.am.TTL().Seconds()), "/", "", c.Request.TLS != nil, true)
	c.JSON(http.StatusOK, LoginResponse{
		Message: "Login successful",
		Token:   token,
	})
}

package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/David567rs/LoginAna/internal/core/domain"
	"github.com/David567rs/LoginAna/internal/transport/http/middleware"
	"github.com/David567rs/LoginAna/internal/usecase"
)

// AuthHandler exposes registration, login and second-factor endpoints.
type AuthHandler struct {
	auth *usecase.AuthService
	now  func() time.Time
}

func NewAuthHandler(auth *usecase.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth, now: time.Now}
}

// Register creates an account and sends the verification secrets.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c)
		return
	}

	res, err := h.auth.Register(c.Request.Context(), usecase.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
	})
	if err != nil {
		RespondWithMappedError(c, err, registerErrors, http.StatusInternalServerError, "failed to register user")
		return
	}

	c.JSON(http.StatusCreated, RegisterResponse{OK: res.OK, Message: res.Message})
}

// Login answers with a session token, or with a challenge id when method is set.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c)
		return
	}

	res, err := h.auth.Login(c.Request.Context(), usecase.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Method:   req.Method,
	})
	if err != nil {
		RespondWithMappedError(c, err, loginErrors, http.StatusInternalServerError, "login failed")
		return
	}

	if res.TwoFactorRequired {
		c.JSON(http.StatusOK, TwoFactorResponse{
			TwoFactorRequired: true,
			Method:            string(res.Method),
			ChallengeID:       res.ChallengeID,
		})
		return
	}
	c.JSON(http.StatusOK, h.tokenResponse(*res.Session))
}

// VerifyTwoFactor completes a login challenge.
func (h *AuthHandler) VerifyTwoFactor(c *gin.Context) {
	var req TwoFactorVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c)
		return
	}

	token, err := h.auth.VerifySecondFactor(c.Request.Context(), req.ChallengeID, req.Code, req.Email)
	if err != nil {
		RespondWithMappedError(c, err, challengeErrors, http.StatusInternalServerError, "verification failed")
		return
	}
	c.JSON(http.StatusOK, h.tokenResponse(*token))
}

// Me returns the identity carried by the session token.
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := middleware.SessionClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid or expired token"))
		return
	}
	c.JSON(http.StatusOK, MeResponse{ID: claims.Subject, Email: claims.Email, Name: claims.Name})
}

func (h *AuthHandler) tokenResponse(token domain.IssuedToken) TokenResponse {
	expiresIn := int64(token.ExpiresAt.Sub(h.now()).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}
	return TokenResponse{AccessToken: token.Token, TokenType: "Bearer", ExpiresIn: expiresIn}
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}

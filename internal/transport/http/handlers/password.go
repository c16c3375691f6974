package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/David567rs/LoginAna/internal/usecase"
)

// PasswordHandler drives the forgot / verify code / reset flow.
type PasswordHandler struct {
	auth *usecase.AuthService
}

func NewPasswordHandler(auth *usecase.AuthService) *PasswordHandler {
	return &PasswordHandler{auth: auth}
}

func (h *PasswordHandler) Forgot(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c)
		return
	}

	res, err := h.auth.ForgotPassword(c.Request.Context(), req.Email, req.Method)
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "password recovery failed")
		return
	}
	c.JSON(http.StatusOK, ForgotPasswordResponse{OK: res.OK, ChallengeID: res.ChallengeID})
}

// VerifyCode exchanges a recovery code for a short-lived reset token.
func (h *PasswordHandler) VerifyCode(c *gin.Context) {
	var req VerifyResetCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c)
		return
	}

	token, err := h.auth.VerifyResetCode(c.Request.Context(), req.ChallengeID, req.Code)
	if err != nil {
		RespondWithMappedError(c, err, challengeErrors, http.StatusInternalServerError, "verification failed")
		return
	}
	c.JSON(http.StatusOK, ResetTokenResponse{ResetToken: token.Token})
}

func (h *PasswordHandler) Reset(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c)
		return
	}

	if err := h.auth.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		RespondWithMappedError(c, err, resetErrors, http.StatusInternalServerError, "password reset failed")
		return
	}
	c.JSON(http.StatusOK, OKResponse{OK: true})
}

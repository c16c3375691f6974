package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/David567rs/LoginAna/internal/usecase"
)

// VerificationHandler confirms email and phone ownership and resends secrets.
type VerificationHandler struct {
	auth       *usecase.AuthService
	clientURL  string
	allowDebug bool
}

// NewVerificationHandler builds the handler. allowDebug enables the debug=1 token
// inspection on verify-email and must be off in production.
func NewVerificationHandler(auth *usecase.AuthService, clientURL string, allowDebug bool) *VerificationHandler {
	return &VerificationHandler{
		auth:       auth,
		clientURL:  strings.TrimRight(strings.TrimSpace(clientURL), "/"),
		allowDebug: allowDebug,
	}
}

// VerifyEmail confirms the token from the emailed link. Browsers are redirected back to
// the web client; json=1 answers with JSON instead.
func (h *VerificationHandler) VerifyEmail(c *gin.Context) {
	token := trimmed(c.Query("token"))
	wantJSON := c.Query("json") == "1"

	var details *EmailTokenDetails
	if wantJSON && h.allowDebug && c.Query("debug") == "1" {
		inspection, err := h.auth.InspectEmailToken(c.Request.Context(), token)
		if err != nil {
			RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "verification failed")
			return
		}
		details = &EmailTokenDetails{
			Exists:    inspection.Exists,
			Expired:   inspection.Expired,
			ExpiresAt: inspection.ExpiresAt,
			Now:       inspection.Now,
			Email:     inspection.Email,
		}
	}

	ok, err := h.auth.VerifyEmail(c.Request.Context(), token)
	if err != nil {
		if wantJSON {
			RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "verification failed")
			return
		}
		_ = c.Error(err)
		ok = false
	}

	if wantJSON {
		c.JSON(http.StatusOK, VerifyEmailResponse{OK: ok, Details: details})
		return
	}

	flag := "0"
	if ok {
		flag = "1"
	}
	c.Redirect(http.StatusFound, h.clientURL+"/?emailVerified="+flag)
}

// VerifySMS confirms the phone code sent at registration.
func (h *VerificationHandler) VerifySMS(c *gin.Context) {
	var req VerifySMSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c)
		return
	}

	ok, err := h.auth.VerifyPhone(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "verification failed")
		return
	}
	c.JSON(http.StatusOK, OKResponse{OK: ok})
}

// ResendEmail always answers ok so that account existence is not disclosed.
func (h *VerificationHandler) ResendEmail(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c)
		return
	}

	if err := h.auth.ResendEmail(c.Request.Context(), req.Email); err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "resend failed")
		return
	}
	c.JSON(http.StatusOK, OKResponse{OK: true})
}

// ResendSMS always answers ok so that account existence is not disclosed.
func (h *VerificationHandler) ResendSMS(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c)
		return
	}

	if err := h.auth.ResendSMS(c.Request.Context(), req.Email); err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "resend failed")
		return
	}
	c.JSON(http.StatusOK, OKResponse{OK: true})
}

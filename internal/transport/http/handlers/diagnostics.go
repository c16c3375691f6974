package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/David567rs/LoginAna/internal/repository"
	"github.com/David567rs/LoginAna/internal/usecase"
)

// DiagnosticsHandler serves the liveness ping and the non-production account lookup.
type DiagnosticsHandler struct {
	auth *usecase.AuthService
	now  func() time.Time
}

func NewDiagnosticsHandler(auth *usecase.AuthService) *DiagnosticsHandler {
	return &DiagnosticsHandler{auth: auth, now: time.Now}
}

func (h *DiagnosticsHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, PingResponse{OK: true, Now: h.now().UnixMilli(), Msg: "Auth API alive"})
}

// DebugUser returns the sanitized verification status of an account.
func (h *DiagnosticsHandler) DebugUser(c *gin.Context) {
	email := trimmed(c.Query("email"))
	if email == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email required"))
		return
	}

	status, err := h.auth.AccountStatus(c.Request.Context(), email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, NewErrorResponse(c, "user not found"))
			return
		}
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "lookup failed")
		return
	}
	c.JSON(http.StatusOK, status)
}

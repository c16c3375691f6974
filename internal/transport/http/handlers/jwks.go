package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/David567rs/LoginAna/internal/infra/security"
)

const jwksCacheControl = "public, max-age=3600"

// JWKSHandler publishes the RSA verification keys. With HS256 signing there is nothing
// to publish and the key set is empty.
type JWKSHandler struct {
	manager *security.JWTManager
}

func NewJWKSHandler(manager *security.JWTManager) *JWKSHandler {
	return &JWKSHandler{manager: manager}
}

func (h *JWKSHandler) Keys(c *gin.Context) {
	if h == nil || h.manager == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "jwks not available"))
		return
	}

	payload, err := h.manager.JWKS()
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to render jwks"))
		return
	}

	c.Header("Cache-Control", jwksCacheControl)
	c.Data(http.StatusOK, "application/json", payload)
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/David567rs/LoginAna/internal/infra/security"
)

const claimsKey = "session_claims"

// SessionVerifier validates bearer session tokens.
type SessionVerifier interface {
	VerifySessionToken(token string) (*security.SessionClaims, error)
}

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

func newErrorResponse(c *gin.Context, msg string) ErrorResponse {
	return ErrorResponse{Error: msg, TraceID: GetTraceID(c)}
}

// RequireSession rejects requests without a valid "Bearer <session token>" header.
func RequireSession(verifier SessionVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, token, found := strings.Cut(strings.TrimSpace(c.GetHeader("Authorization")), " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "missing bearer token"))
			return
		}

		claims, err := verifier.VerifySessionToken(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "invalid or expired token"))
			return
		}

		c.Set(UserIDKey, claims.Subject)
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// SessionClaims returns the claims stored by RequireSession.
func SessionClaims(c *gin.Context) (*security.SessionClaims, bool) {
	val, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := val.(*security.SessionClaims)
	return claims, ok
}

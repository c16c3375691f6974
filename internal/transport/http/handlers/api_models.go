package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/David567rs/LoginAna/internal/transport/http/middleware"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, msg string) ErrorResponse {
	return ErrorResponse{Error: msg, TraceID: middleware.GetTraceID(c)}
}

type OKResponse struct {
	OK bool `json:"ok"`
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=2"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Phone    string `json:"phone" binding:"required"`
}

type RegisterResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Method   string `json:"method" binding:"omitempty,oneof=email sms"`
}

// TokenResponse carries a session token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// TwoFactorResponse is returned by login when a second factor was requested.
type TwoFactorResponse struct {
	TwoFactorRequired bool   `json:"two_factor_required"`
	Method            string `json:"method"`
	ChallengeID       string `json:"challengeId"`
}

type TwoFactorVerifyRequest struct {
	ChallengeID string `json:"challengeId" binding:"required,min=4"`
	Code        string `json:"code" binding:"required,len=6,numeric"`
	Email       string `json:"email" binding:"omitempty,email"`
}

type VerifySMSRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required,len=6,numeric"`
}

type EmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ForgotPasswordRequest struct {
	Email  string `json:"email" binding:"required,email"`
	Method string `json:"method" binding:"required,oneof=email sms"`
}

type ForgotPasswordResponse struct {
	OK          bool   `json:"ok"`
	ChallengeID string `json:"challengeId,omitempty"`
}

type VerifyResetCodeRequest struct {
	ChallengeID string `json:"challengeId" binding:"required,min=4"`
	Code        string `json:"code" binding:"required,len=6,numeric"`
}

type ResetTokenResponse struct {
	ResetToken string `json:"reset_token"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

// EmailTokenDetails is the debug view of a pending email token.
type EmailTokenDetails struct {
	Exists    bool       `json:"exists"`
	Expired   bool       `json:"expired"`
	ExpiresAt *time.Time `json:"expiresAt"`
	Now       time.Time  `json:"now"`
	Email     string     `json:"email,omitempty"`
}

type VerifyEmailResponse struct {
	OK      bool               `json:"ok"`
	Details *EmailTokenDetails `json:"details,omitempty"`
}

type PingResponse struct {
	OK  bool   `json:"ok"`
	Now int64  `json:"now"`
	Msg string `json:"msg"`
}

type MeResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// HealthResponse is returned by the liveness and readiness probes.
type HealthResponse struct {
	Status    string            `json:"status"`
	StartedAt time.Time         `json:"started_at"`
	Checks    map[string]string `json:"checks,omitempty"`
}

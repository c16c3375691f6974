package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/David567rs/LoginAna/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// RespondWithMappedError resolves err against cases or falls back to a generic response.
// Validation errors always answer 400 with their reason.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	var vErr *usecase.ValidationError
	if errors.As(err, &vErr) {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, vErr.Reason))
		return
	}

	for _, cs := range cases {
		if cs.Err != nil && errors.Is(err, cs.Err) {
			c.JSON(cs.Status, NewErrorResponse(c, cs.Message))
			return
		}
	}

	_ = c.Error(err)
	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}

func respondBadRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request body"))
}

var (
	registerErrors = []ErrorCase{
		{Err: usecase.ErrEmailTaken, Status: http.StatusConflict, Message: "email already registered"},
	}
	loginErrors = []ErrorCase{
		{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid credentials"},
	}
	challengeErrors = []ErrorCase{
		{Err: usecase.ErrInvalidChallenge, Status: http.StatusUnauthorized, Message: "invalid code"},
	}
	resetErrors = []ErrorCase{
		{Err: usecase.ErrInvalidToken, Status: http.StatusUnauthorized, Message: "invalid or expired token"},
	}
)

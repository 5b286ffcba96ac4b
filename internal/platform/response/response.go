package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/serviceloop/service-booking/internal/domain"
)

// envelope is the uniform JSON shape for all responses.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Field   string      `json:"field,omitempty"`
}

// Success writes a 200 response with the given payload.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, envelope{Success: true, Data: data})
}

// Created writes a 201 response with the given payload.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, envelope{Success: true, Data: data})
}

// Paginated writes a 200 response with pagination metadata.
func Paginated(c *gin.Context, items interface{}, total int64, page, limit int) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    items,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

// BadRequest writes a 400 response with the given message.
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, envelope{Success: false, Message: message})
}

// Error maps a domain failure to its HTTP status. Unknown errors are masked
// as 500 so internals never leak to clients.
func Error(c *gin.Context, err error) {
	var (
		validationErr *domain.ValidationError
		transitionErr *domain.InvalidTransitionError
		stateErr      *domain.InvalidStateError
		forbiddenErr  *domain.ForbiddenError
		conflictErr   *domain.ConflictError
		notFoundErr   *domain.NotFoundError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, envelope{Success: false, Message: validationErr.Message, Field: validationErr.Field})
	case errors.As(err, &transitionErr):
		c.JSON(http.StatusUnprocessableEntity, envelope{Success: false, Message: transitionErr.Error()})
	case errors.As(err, &stateErr):
		c.JSON(http.StatusUnprocessableEntity, envelope{Success: false, Message: stateErr.Error()})
	case errors.As(err, &forbiddenErr):
		c.JSON(http.StatusForbidden, envelope{Success: false, Message: forbiddenErr.Error()})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, envelope{Success: false, Message: conflictErr.Error()})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, envelope{Success: false, Message: notFoundErr.Error()})
	default:
		c.JSON(http.StatusInternalServerError, envelope{Success: false, Message: "internal server error"})
	}
}

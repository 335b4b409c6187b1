// Package response holds the JSON envelope helpers and the domain-error to
// HTTP-status translation used by every handler.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/learnsphere/service-payment/internal/domain"
)

// Success writes a 200 envelope.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"data": data})
}

// Created writes a 201 envelope.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, gin.H{"data": data})
}

// Paginated writes a 200 envelope with paging metadata.
func Paginated(c *gin.Context, data any, total int64, page, limit int) {
	c.JSON(http.StatusOK, gin.H{
		"data": data,
		"meta": gin.H{"total": total, "page": page, "limit": limit},
	})
}

// BadRequest writes a 400 with the given message.
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

// Error translates a domain error into an HTTP response. Domain messages are
// human-readable and pass through unmodified.
func Error(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	var domErr *domain.DomainError
	if errors.As(err, &domErr) {
		message = domErr.Message
		switch {
		case errors.Is(err, domain.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrBelowMinimum):
			status = http.StatusBadRequest
		case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrIneligible):
			status = http.StatusUnprocessableEntity
		case errors.Is(err, domain.ErrUnauthorized):
			status = http.StatusForbidden
		case errors.Is(err, domain.ErrSignature):
			status = http.StatusBadRequest
		case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrInconsistent):
			status = http.StatusConflict
		case errors.Is(err, domain.ErrGatewayUnavailable):
			status = http.StatusServiceUnavailable
		case errors.Is(err, domain.ErrGateway):
			status = http.StatusBadGateway
		}
	}

	c.JSON(status, gin.H{"error": message})
}

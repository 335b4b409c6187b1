package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/learnsphere/service-payment/internal/application"
	"github.com/learnsphere/service-payment/internal/platform/auth"
	"github.com/learnsphere/service-payment/internal/platform/middleware"
	"github.com/learnsphere/service-payment/internal/platform/response"
)

// PaymentHandler handles HTTP requests for checkout and payment operations.
type PaymentHandler struct {
	service *application.CheckoutService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(service *application.CheckoutService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// RegisterRoutes registers all payment routes.
func (h *PaymentHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	payments := r.Group("/payments")
	payments.Use(middleware.AuthMiddleware(jwtManager))
	{
		payments.POST("/checkout", h.InitiateCheckout)
		payments.GET("/my", h.GetMyPayments)
		payments.GET("/:id", h.GetPayment)
		payments.POST("/:id/verify", h.VerifyPayment)
	}
}

// InitiateCheckout handles POST /api/v1/payments/checkout.
func (h *PaymentHandler) InitiateCheckout(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req application.InitiateCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.InitiateCheckout(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// GetMyPayments handles GET /api/v1/payments/my.
func (h *PaymentHandler) GetMyPayments(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	result, err := h.service.GetUserPayments(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetPayment handles GET /api/v1/payments/:id. Owners see their own payments;
// admins see everything.
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid payment id")
		return
	}

	result, err := h.service.GetPayment(c.Request.Context(), paymentID)
	if err != nil {
		response.Error(c, err)
		return
	}

	role, _ := middleware.GetUserRole(c)
	if result.UserID != userID && role != auth.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "payment belongs to another user"})
		return
	}

	response.Success(c, result)
}

// VerifyPayment handles POST /api/v1/payments/:id/verify. The buyer lands here
// after returning from the provider; it runs a synchronous status check and
// returns the reconciled payment.
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid payment id")
		return
	}

	current, err := h.service.GetPayment(c.Request.Context(), paymentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	role, _ := middleware.GetUserRole(c)
	if current.UserID != userID && role != auth.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "payment belongs to another user"})
		return
	}

	result, err := h.service.VerifyPayment(c.Request.Context(), paymentID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

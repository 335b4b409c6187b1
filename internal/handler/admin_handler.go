package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/learnsphere/service-payment/internal/application"
	"github.com/learnsphere/service-payment/internal/platform/auth"
	"github.com/learnsphere/service-payment/internal/platform/middleware"
	"github.com/learnsphere/service-payment/internal/platform/response"
)

// AdminHandler handles the back-office endpoints: promo management, payment
// oversight and refunds.
type AdminHandler struct {
	checkout *application.CheckoutService
	promos   *application.PromoService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(checkout *application.CheckoutService, promos *application.PromoService) *AdminHandler {
	return &AdminHandler{checkout: checkout, promos: promos}
}

// RegisterRoutes registers all admin routes behind the admin role gate.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(jwtManager), middleware.RequireRole(auth.RoleAdmin))
	{
		admin.GET("/payments", h.ListPayments)
		admin.GET("/payments/stats", h.GetPaymentStats)
		admin.POST("/payments/:id/refund", h.RefundPayment)

		admin.POST("/promos", h.CreatePromo)
		admin.GET("/promos", h.ListPromos)
		admin.PUT("/promos/:id", h.UpdatePromo)
		admin.POST("/promos/:id/deactivate", h.DeactivatePromo)
		admin.DELETE("/promos/:id", h.DeletePromo)
	}
}

// ListPayments handles GET /api/v1/admin/payments.
func (h *AdminHandler) ListPayments(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	payments, total, err := h.checkout.ListAllPayments(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, payments, total, page, limit)
}

// GetPaymentStats handles GET /api/v1/admin/payments/stats.
func (h *AdminHandler) GetPaymentStats(c *gin.Context) {
	stats, err := h.checkout.GetPaymentStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}

type refundRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// RefundPayment handles POST /api/v1/admin/payments/:id/refund.
func (h *AdminHandler) RefundPayment(c *gin.Context) {
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid payment id")
		return
	}

	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.checkout.RefundPayment(c.Request.Context(), paymentID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CreatePromo handles POST /api/v1/admin/promos.
func (h *AdminHandler) CreatePromo(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req application.CreatePromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.promos.CreatePromo(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListPromos handles GET /api/v1/admin/promos.
func (h *AdminHandler) ListPromos(c *gin.Context) {
	result, err := h.promos.ListAllPromos(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// UpdatePromo handles PUT /api/v1/admin/promos/:id.
func (h *AdminHandler) UpdatePromo(c *gin.Context) {
	promoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid promo id")
		return
	}

	var req application.UpdatePromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.promos.UpdatePromo(c.Request.Context(), promoID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// DeactivatePromo handles POST /api/v1/admin/promos/:id/deactivate.
func (h *AdminHandler) DeactivatePromo(c *gin.Context) {
	promoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid promo id")
		return
	}

	result, err := h.promos.DeactivatePromo(c.Request.Context(), promoID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// DeletePromo handles DELETE /api/v1/admin/promos/:id. Hard deletion; the
// recommended retirement path is deactivation.
func (h *AdminHandler) DeletePromo(c *gin.Context) {
	promoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid promo id")
		return
	}

	if err := h.promos.DeletePromo(c.Request.Context(), promoID); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"deleted": true})
}

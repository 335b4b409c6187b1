package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/learnsphere/service-payment/internal/application"
	"github.com/learnsphere/service-payment/internal/platform/auth"
	"github.com/learnsphere/service-payment/internal/platform/middleware"
	"github.com/learnsphere/service-payment/internal/platform/response"
)

// PromoHandler handles HTTP requests for promo code operations.
type PromoHandler struct {
	service *application.PromoService
}

// NewPromoHandler creates a new PromoHandler.
func NewPromoHandler(service *application.PromoService) *PromoHandler {
	return &PromoHandler{service: service}
}

// RegisterRoutes registers all promo routes. Validation is public so the cart
// can preview prices before sign-in; knowing the caller only tightens the
// one-use-per-user check.
func (h *PromoHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	promos := r.Group("/promos")
	{
		promos.POST("/validate", middleware.OptionalAuthMiddleware(jwtManager), h.ValidatePromo)
		promos.GET("/active", h.GetActivePromos)
	}
}

// ValidatePromo handles POST /api/v1/promos/validate.
func (h *PromoHandler) ValidatePromo(c *gin.Context) {
	var req application.ValidatePromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	var userID *uuid.UUID
	if id, ok := middleware.GetUserID(c); ok {
		userID = &id
	}

	result, err := h.service.Validate(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetActivePromos handles GET /api/v1/promos/active.
func (h *PromoHandler) GetActivePromos(c *gin.Context) {
	result, err := h.service.GetActivePromos(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

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

// SubscriptionHandler handles HTTP requests for membership subscriptions.
type SubscriptionHandler struct {
	service *application.SubscriptionService
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(service *application.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{service: service}
}

// RegisterRoutes registers all subscription routes.
func (h *SubscriptionHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	subs := r.Group("/subscriptions")
	{
		subs.GET("/plans", h.GetPlans)

		authed := subs.Group("")
		authed.Use(middleware.AuthMiddleware(jwtManager))
		{
			authed.POST("", h.Subscribe)
			authed.GET("/my", h.GetMySubscription)
			authed.POST("/:id/cancel", h.CancelSubscription)
		}
	}
}

// GetPlans handles GET /api/v1/subscriptions/plans.
func (h *SubscriptionHandler) GetPlans(c *gin.Context) {
	response.Success(c, h.service.GetPlans(c.Request.Context()))
}

// Subscribe handles POST /api/v1/subscriptions.
func (h *SubscriptionHandler) Subscribe(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req application.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.Subscribe(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// GetMySubscription handles GET /api/v1/subscriptions/my.
func (h *SubscriptionHandler) GetMySubscription(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	result, err := h.service.GetMySubscription(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CancelSubscription handles POST /api/v1/subscriptions/:id/cancel.
func (h *SubscriptionHandler) CancelSubscription(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	subscriptionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid subscription id")
		return
	}

	result, err := h.service.CancelSubscription(c.Request.Context(), userID, subscriptionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/learnsphere/service-payment/internal/application"
	"github.com/learnsphere/service-payment/internal/platform/response"
)

// WebhookHandler receives provider callbacks. Routes are unauthenticated by
// nature; trust is established per provider inside the adapters (signature
// verification where the provider supports it).
type WebhookHandler struct {
	service *application.CheckoutService
	logger  *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(service *application.CheckoutService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{service: service, logger: logger}
}

// RegisterRoutes registers the webhook routes.
func (h *WebhookHandler) RegisterRoutes(r *gin.RouterGroup) {
	webhooks := r.Group("/webhooks")
	{
		webhooks.POST("/:provider", h.HandleWebhook)
	}
}

// HandleWebhook handles POST /api/v1/webhooks/:provider. The body is read raw:
// signature verification runs over the exact bytes the provider sent.
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	provider := c.Param("provider")

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.BadRequest(c, "failed to read webhook body")
		return
	}

	// Stripe sends its signature in a dedicated header; other providers are
	// unsigned and ignore this value.
	signature := c.GetHeader("Stripe-Signature")

	if err := h.service.HandleWebhook(c.Request.Context(), provider, payload, signature); err != nil {
		h.logger.Warn("webhook rejected",
			zap.String("provider", provider),
			zap.Error(err),
		)
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// Package adapter is the Anti-Corruption Layer between the payment domain and
// the external payment providers. Each provider gets its own implementation of
// the shared capability interface; nothing outside this package depends on
// provider field names, event taxonomies or unit conventions.
package adapter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/learnsphere/service-payment/internal/domain"
)

// NormalizedStatus is the provider-independent payment outcome vocabulary.
type NormalizedStatus string

const (
	StatusCompleted NormalizedStatus = "completed"
	StatusFailed    NormalizedStatus = "failed"
	StatusPending   NormalizedStatus = "pending"
	StatusCancelled NormalizedStatus = "cancelled"
	// StatusError marks a transport/communication failure: the outcome is
	// inconclusive and the call is retryable, unlike an authoritative failed.
	StatusError NormalizedStatus = "error"
	// StatusUnknown marks a provider response that could not be mapped to any
	// known outcome. Callers must park the payment for review, never coerce.
	StatusUnknown NormalizedStatus = "unknown"
)

// InitiateRequest carries everything a provider needs to open a checkout.
// Amount is a TND major-unit decimal; each adapter converts to its provider's
// minor unit itself. OrderID round-trips through the provider verbatim and is
// the correlation key for webhooks and verification.
type InitiateRequest struct {
	OrderID   string
	Amount    float64
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Note      string
}

// InitiateResult is the normalized outcome of a successful initiate call.
type InitiateResult struct {
	ProviderRef string // provider-assigned reference: payment token or session id
	CheckoutURL string
	OrderID     string
	Amount      float64 // provider-native major units
	Currency    string
	Method      string
}

// VerifyResult is the normalized outcome of a status check.
//
// Success=false with Status=failed is an authoritative terminal outcome from the
// provider; Success=false with Status=error is a communication failure and must
// be treated as inconclusive.
type VerifyResult struct {
	Success       bool
	Status        NormalizedStatus
	Amount        float64 // provider-native major units
	Currency      string
	OrderID       string
	TransactionID string
	PaymentDate   *time.Time
	Message       string
	Raw           json.RawMessage
}

// WebhookEvent is the normalized form of one provider webhook delivery. The
// same field set comes out regardless of which underlying provider event
// triggered it.
type WebhookEvent struct {
	Provider      string
	EventType     string // provider-native event name, kept for audit
	Status        NormalizedStatus
	ProviderRef   string
	OrderID       string
	TransactionID string
	Amount        float64
	Currency      string
	Raw           json.RawMessage
}

// PaymentGateway is the capability contract every provider adapter implements.
type PaymentGateway interface {
	// Name returns the provider key used for dispatch and persistence.
	Name() string

	// InitiatePayment opens a provider checkout. Provider rejections and
	// transport failures surface as GatewayError.
	InitiatePayment(ctx context.Context, req InitiateRequest) (*InitiateResult, error)

	// VerifyPayment checks the outcome of a payment by provider reference.
	VerifyPayment(ctx context.Context, providerRef string) (*VerifyResult, error)

	// ProcessWebhook verifies (where the provider supports it) and normalizes a
	// raw webhook delivery. Fails closed on signature mismatch.
	ProcessWebhook(payload []byte, signature string) (*WebhookEvent, error)

	// ValidateWebhookSignature checks a payload/signature pair without side
	// effects, independently of ProcessWebhook.
	ValidateWebhookSignature(payload []byte, signature string) bool
}

// Registry dispatches to the adapter configured for a provider name. Adapters
// are composed side by side rather than sharing a base implementation; their
// event taxonomies differ too much for a common hierarchy.
type Registry struct {
	gateways map[string]PaymentGateway
}

// NewRegistry builds a registry over the given adapters.
func NewRegistry(gateways ...PaymentGateway) *Registry {
	m := make(map[string]PaymentGateway, len(gateways))
	for _, g := range gateways {
		m[g.Name()] = g
	}
	return &Registry{gateways: m}
}

// Get returns the adapter for a provider name.
func (r *Registry) Get(name string) (PaymentGateway, error) {
	g, ok := r.gateways[name]
	if !ok {
		return nil, domain.NewValidationError("unsupported payment gateway: " + name)
	}
	return g, nil
}

// Names lists the configured provider names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	return names
}

package adapter

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/learnsphere/service-payment/internal/domain"
	"github.com/learnsphere/service-payment/internal/money"
)

// ProviderStripe is the registry key for the card-network gateway.
const ProviderStripe = "stripe"

// StripeConfig holds the configuration for the Stripe adapter.
type StripeConfig struct {
	APIBaseURL    string
	SecretKey     string
	WebhookSecret string // empty disables signature verification: explicit insecure mode
	SuccessURL    string
	CancelURL     string
	// USDToTNDRate is the approximate TND-per-USD rate used to price TND
	// checkouts in USD cents. Configuration constant, never computed, and never
	// used for refund-exact accounting.
	USDToTNDRate float64
	Timeout      time.Duration
}

// StripeAdapter integrates the card-network gateway through checkout sessions.
// Stripe cannot settle TND, so amounts are bridged to USD cents through the
// configured approximate rate; refunds go by provider reference, never by
// re-converting amounts.
type StripeAdapter struct {
	cfg        StripeConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewStripeAdapter creates a new Stripe adapter.
func NewStripeAdapter(cfg StripeConfig, logger *zap.Logger) *StripeAdapter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.WebhookSecret == "" {
		logger.Warn("stripe webhook secret is empty; signature verification is DISABLED")
	}
	return &StripeAdapter{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Name returns the provider key.
func (a *StripeAdapter) Name() string { return ProviderStripe }

type stripeSession struct {
	ID                string `json:"id"`
	URL               string `json:"url"`
	Status            string `json:"status"`         // open | complete | expired
	PaymentStatus     string `json:"payment_status"` // paid | unpaid | no_payment_required
	PaymentIntent     string `json:"payment_intent"`
	AmountTotal       int64  `json:"amount_total"` // cents
	Currency          string `json:"currency"`
	ClientReferenceID string `json:"client_reference_id"`
	Created           int64  `json:"created"`
}

type stripeError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// InitiatePayment creates a checkout session priced in USD cents.
func (a *StripeAdapter) InitiatePayment(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	usdAmount := money.TNDToUSD(req.Amount, a.cfg.USDToTNDRate)
	if usdAmount <= 0 {
		return nil, domain.NewGatewayError(ProviderStripe, "amount converts to zero: check CARD_USD_TO_TND_RATE")
	}
	cents := money.ToCents(usdAmount)

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("client_reference_id", req.OrderID)
	form.Set("customer_email", req.Email)
	form.Set("success_url", a.cfg.SuccessURL)
	form.Set("cancel_url", a.cfg.CancelURL)
	form.Set("line_items[0][price_data][currency]", "usd")
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(cents, 10))
	form.Set("line_items[0][price_data][product_data][name]", req.Note)
	form.Set("line_items[0][quantity]", "1")
	form.Set("metadata[order_id]", req.OrderID)

	raw, status, err := a.do(ctx, http.MethodPost, "/v1/checkout/sessions", form)
	if err != nil {
		// Transport failure: the session may or may not exist provider-side.
		// Callers must not record a terminal state off this.
		return nil, domain.NewGatewayUnavailableError(ProviderStripe, err.Error())
	}
	if status < 200 || status >= 300 {
		return nil, domain.NewGatewayError(ProviderStripe, decodeStripeError(raw, status))
	}

	var session stripeSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, domain.NewGatewayError(ProviderStripe, "malformed session response: "+err.Error())
	}
	if session.ID == "" || session.URL == "" {
		return nil, domain.NewGatewayError(ProviderStripe, "session response missing id or url")
	}

	a.logger.Info("stripe checkout session created",
		zap.String("session_id", session.ID),
		zap.String("order_id", req.OrderID),
		zap.Int64("amount_cents", cents),
		zap.Float64("amount_tnd", req.Amount),
	)

	return &InitiateResult{
		ProviderRef: session.ID,
		CheckoutURL: session.URL,
		OrderID:     req.OrderID,
		Amount:      usdAmount,
		Currency:    money.USD,
		Method:      "card",
	}, nil
}

// VerifyPayment retrieves a checkout session and maps its status.
func (a *StripeAdapter) VerifyPayment(ctx context.Context, providerRef string) (*VerifyResult, error) {
	raw, status, err := a.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+providerRef, nil)
	if err != nil {
		return &VerifyResult{Success: false, Status: StatusError, Message: err.Error()}, nil
	}
	if status < 200 || status >= 300 {
		return &VerifyResult{
			Success: false,
			Status:  StatusError,
			Message: decodeStripeError(raw, status),
			Raw:     raw,
		}, nil
	}

	var session stripeSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return &VerifyResult{Success: false, Status: StatusError, Message: "malformed session: " + err.Error(), Raw: raw}, nil
	}

	result := &VerifyResult{
		Amount:        money.FromCents(session.AmountTotal),
		Currency:      strings.ToUpper(session.Currency),
		OrderID:       session.ClientReferenceID,
		TransactionID: session.PaymentIntent,
		Raw:           raw,
	}
	if session.Created > 0 {
		t := time.Unix(session.Created, 0).UTC()
		result.PaymentDate = &t
	}

	switch {
	case session.Status == "complete" && session.PaymentStatus == "paid":
		result.Success = true
		result.Status = StatusCompleted
	case session.Status == "expired":
		result.Success = false
		result.Status = StatusCancelled
		result.Message = "checkout session expired"
	case session.Status == "open":
		result.Success = false
		result.Status = StatusPending
		result.Message = "checkout session still open"
	case session.Status == "complete" && session.PaymentStatus != "paid":
		result.Success = false
		result.Status = StatusFailed
		result.Message = "session complete but payment not collected"
	default:
		result.Success = false
		result.Status = StatusUnknown
		result.Message = fmt.Sprintf("unmapped session state %q/%q", session.Status, session.PaymentStatus)
	}
	return result, nil
}

type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type stripePaymentIntent struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Metadata struct {
		OrderID string `json:"order_id"`
	} `json:"metadata"`
	LastPaymentError struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

// ProcessWebhook verifies the signature and normalizes one of the session /
// payment-intent events into the shared event shape. Fails closed: a bad
// signature never yields a best-effort event.
func (a *StripeAdapter) ProcessWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if a.cfg.WebhookSecret != "" && !a.ValidateWebhookSignature(payload, signature) {
		return nil, domain.NewSignatureError(ProviderStripe)
	}

	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, domain.NewGatewayError(ProviderStripe, "malformed webhook payload: "+err.Error())
	}

	out := &WebhookEvent{
		Provider:  ProviderStripe,
		EventType: event.Type,
		Raw:       append(json.RawMessage(nil), payload...),
	}

	switch event.Type {
	case "checkout.session.completed":
		var session stripeSession
		if err := json.Unmarshal(event.Data.Object, &session); err != nil {
			return nil, domain.NewGatewayError(ProviderStripe, "malformed session object: "+err.Error())
		}
		out.ProviderRef = session.ID
		out.OrderID = session.ClientReferenceID
		out.TransactionID = session.PaymentIntent
		out.Amount = money.FromCents(session.AmountTotal)
		out.Currency = strings.ToUpper(session.Currency)
		if session.PaymentStatus == "paid" {
			out.Status = StatusCompleted
		} else {
			// Async payment methods complete the session before funds settle.
			out.Status = StatusPending
		}

	case "checkout.session.expired":
		var session stripeSession
		if err := json.Unmarshal(event.Data.Object, &session); err != nil {
			return nil, domain.NewGatewayError(ProviderStripe, "malformed session object: "+err.Error())
		}
		out.ProviderRef = session.ID
		out.OrderID = session.ClientReferenceID
		out.Status = StatusCancelled

	case "payment_intent.succeeded":
		var intent stripePaymentIntent
		if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
			return nil, domain.NewGatewayError(ProviderStripe, "malformed payment intent: "+err.Error())
		}
		out.TransactionID = intent.ID
		out.OrderID = intent.Metadata.OrderID
		out.Amount = money.FromCents(intent.Amount)
		out.Currency = strings.ToUpper(intent.Currency)
		out.Status = StatusCompleted

	case "payment_intent.payment_failed":
		var intent stripePaymentIntent
		if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
			return nil, domain.NewGatewayError(ProviderStripe, "malformed payment intent: "+err.Error())
		}
		out.TransactionID = intent.ID
		out.OrderID = intent.Metadata.OrderID
		out.Status = StatusFailed

	default:
		// Never coerce an unrecognized event into completed or failed.
		out.Status = StatusUnknown
	}

	return out, nil
}

// ValidateWebhookSignature checks the "t=<ts>,v1=<hex>" signature header:
// HMAC-SHA256 over "<ts>.<payload>" with the webhook secret. Side-effect-free.
func (a *StripeAdapter) ValidateWebhookSignature(payload []byte, signature string) bool {
	if a.cfg.WebhookSecret == "" {
		return false
	}

	var timestamp string
	var candidates []string
	for _, part := range strings.Split(signature, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			timestamp = v
		case "v1":
			candidates = append(candidates, v)
		}
	}
	if timestamp == "" || len(candidates) == 0 {
		return false
	}

	mac := hmac.New(sha256.New, []byte(a.cfg.WebhookSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, candidate := range candidates {
		if hmac.Equal([]byte(candidate), []byte(expected)) {
			return true
		}
	}
	return false
}

func (a *StripeAdapter) do(ctx context.Context, method, path string, form url.Values) (json.RawMessage, int, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, a.cfg.APIBaseURL+path, body)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.SecretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return raw, resp.StatusCode, nil
}

func decodeStripeError(raw []byte, status int) string {
	var e stripeError
	if err := json.Unmarshal(raw, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return fmt.Sprintf("unexpected status %d", status)
}

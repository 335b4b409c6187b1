package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/learnsphere/service-payment/internal/domain"
	"github.com/learnsphere/service-payment/internal/money"
)

// ProviderPaymee is the registry key for the Tunisian-market gateway.
const ProviderPaymee = "paymee"

// PaymeeConfig holds the configuration for the Paymee adapter.
type PaymeeConfig struct {
	APIBaseURL string
	APIKey     string
	ReturnURL  string
	CancelURL  string
	Timeout    time.Duration
}

// PaymeeAdapter integrates the Tunisian-market gateway. Paymee charges native
// TND and speaks integer millimes on the wire; the platform's TND decimals are
// converted at this boundary and nowhere else.
//
// Paymee offers no webhook signature scheme. Deliveries are accepted as-is and
// cross-checked against a server-side verify call by the reconciliation layer;
// this is a known trust gap, not an oversight.
type PaymeeAdapter struct {
	cfg        PaymeeConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewPaymeeAdapter creates a new Paymee adapter.
func NewPaymeeAdapter(cfg PaymeeConfig, logger *zap.Logger) *PaymeeAdapter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	logger.Warn("paymee webhooks carry no signature; deliveries are cross-checked via verify")
	return &PaymeeAdapter{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Name returns the provider key.
func (a *PaymeeAdapter) Name() string { return ProviderPaymee }

type paymeeCreateRequest struct {
	Amount    int64  `json:"amount"` // millimes
	Note      string `json:"note"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	OrderID   string `json:"order_id"`
	ReturnURL string `json:"return_url"`
	CancelURL string `json:"cancel_url"`
}

type paymeeEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type paymeeCreateData struct {
	Token      string `json:"token"`
	OrderID    string `json:"order_id"`
	PaymentURL string `json:"payment_url"`
	Amount     int64  `json:"amount"`
}

type paymeeCheckData struct {
	PaymentStatus  bool   `json:"payment_status"`
	Token          string `json:"token"`
	OrderID        string `json:"order_id"`
	TransactionID  int64  `json:"transaction_id"`
	Amount         int64  `json:"amount"` // millimes
	ReceivedAmount int64  `json:"received_amount"`
	PaymentDate    string `json:"payment_date"`
}

// InitiatePayment opens a Paymee checkout and returns the payment token and
// redirect URL.
func (a *PaymeeAdapter) InitiatePayment(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	body := paymeeCreateRequest{
		Amount:    money.ToMillimes(req.Amount),
		Note:      req.Note,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		OrderID:   req.OrderID,
		ReturnURL: a.cfg.ReturnURL,
		CancelURL: a.cfg.CancelURL,
	}

	env, err := a.post(ctx, "/api/v2/payments/create", body)
	if err != nil {
		return nil, err
	}
	if !env.Status {
		return nil, domain.NewGatewayError(ProviderPaymee, "payment creation rejected: "+env.Message)
	}

	var data paymeeCreateData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, domain.NewGatewayError(ProviderPaymee, "malformed create response: "+err.Error())
	}
	if data.Token == "" || data.PaymentURL == "" {
		return nil, domain.NewGatewayError(ProviderPaymee, "create response missing token or payment url")
	}

	a.logger.Info("paymee payment initiated",
		zap.String("token", data.Token),
		zap.String("order_id", req.OrderID),
		zap.Int64("amount_millimes", body.Amount),
	)

	return &InitiateResult{
		ProviderRef: data.Token,
		CheckoutURL: data.PaymentURL,
		OrderID:     req.OrderID,
		Amount:      money.FromMillimes(body.Amount),
		Currency:    money.TND,
		Method:      "paymee",
	}, nil
}

// VerifyPayment checks a payment by token. A reachable provider answering
// "not paid" yields an authoritative failed; a transport problem yields
// status error, which callers treat as inconclusive and retryable.
func (a *PaymeeAdapter) VerifyPayment(ctx context.Context, providerRef string) (*VerifyResult, error) {
	raw, status, err := a.get(ctx, "/api/v2/payments/"+providerRef+"/check")
	if err != nil {
		return &VerifyResult{Success: false, Status: StatusError, Message: err.Error()}, nil
	}
	if status != http.StatusOK {
		return &VerifyResult{
			Success: false,
			Status:  StatusError,
			Message: fmt.Sprintf("unexpected status %d from paymee check", status),
			Raw:     raw,
		}, nil
	}

	var env paymeeEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &VerifyResult{Success: false, Status: StatusError, Message: "malformed check response: " + err.Error(), Raw: raw}, nil
	}
	if !env.Status {
		return &VerifyResult{Success: false, Status: StatusError, Message: env.Message, Raw: raw}, nil
	}

	var data paymeeCheckData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return &VerifyResult{Success: false, Status: StatusError, Message: "malformed check data: " + err.Error(), Raw: raw}, nil
	}

	result := &VerifyResult{
		Amount:        money.FromMillimes(data.Amount),
		Currency:      money.TND,
		OrderID:       data.OrderID,
		TransactionID: fmt.Sprintf("%d", data.TransactionID),
		Raw:           raw,
	}
	if t, err := time.Parse("2006-01-02 15:04:05", data.PaymentDate); err == nil {
		result.PaymentDate = &t
	}

	if data.PaymentStatus {
		result.Success = true
		result.Status = StatusCompleted
	} else {
		result.Success = false
		result.Status = StatusFailed
		result.Message = "payment not completed"
	}
	return result, nil
}

// paymeeWebhookPayload is the unsigned webhook body Paymee delivers on payment
// settlement.
type paymeeWebhookPayload struct {
	Token         string `json:"token"`
	OrderID       string `json:"order_id"`
	PaymentStatus bool   `json:"payment_status"`
	TransactionID int64  `json:"transaction_id"`
	Amount        int64  `json:"amount"`
}

// ProcessWebhook normalizes a Paymee webhook delivery.
func (a *PaymeeAdapter) ProcessWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	var body paymeeWebhookPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, domain.NewGatewayError(ProviderPaymee, "malformed webhook payload: "+err.Error())
	}
	if body.Token == "" {
		return nil, domain.NewGatewayError(ProviderPaymee, "webhook payload missing payment token")
	}

	status := StatusFailed
	eventType := "payment.failed"
	if body.PaymentStatus {
		status = StatusCompleted
		eventType = "payment.completed"
	}

	return &WebhookEvent{
		Provider:      ProviderPaymee,
		EventType:     eventType,
		Status:        status,
		ProviderRef:   body.Token,
		OrderID:       body.OrderID,
		TransactionID: fmt.Sprintf("%d", body.TransactionID),
		Amount:        money.FromMillimes(body.Amount),
		Currency:      money.TND,
		Raw:           append(json.RawMessage(nil), payload...),
	}, nil
}

// ValidateWebhookSignature always reports true: Paymee has no signature scheme.
func (a *PaymeeAdapter) ValidateWebhookSignature(payload []byte, signature string) bool {
	return true
}

func (a *PaymeeAdapter) post(ctx context.Context, path string, body any) (*paymeeEnvelope, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, domain.NewGatewayError(ProviderPaymee, "encode request: "+err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.APIBaseURL+path, bytes.NewReader(buf))
	if err != nil {
		return nil, domain.NewGatewayError(ProviderPaymee, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+a.cfg.APIKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		// Transport failure: the provider may or may not have registered the
		// payment. Callers must not record a terminal state off this.
		return nil, domain.NewGatewayUnavailableError(ProviderPaymee, err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewGatewayError(ProviderPaymee, "read response: "+err.Error())
	}

	var env paymeeEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, domain.NewGatewayError(ProviderPaymee, fmt.Sprintf("malformed response (status %d)", resp.StatusCode))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := env.Message
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, domain.NewGatewayError(ProviderPaymee, msg)
	}
	return &env, nil
}

func (a *PaymeeAdapter) get(ctx context.Context, path string) (json.RawMessage, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.APIBaseURL+path, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Token "+a.cfg.APIKey)

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

package application

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/learnsphere/service-payment/internal/adapter"
	"github.com/learnsphere/service-payment/internal/domain"
	paymentDomain "github.com/learnsphere/service-payment/internal/domain/payment"
	promoDomain "github.com/learnsphere/service-payment/internal/domain/promo"
	subDomain "github.com/learnsphere/service-payment/internal/domain/subscription"
	txnDomain "github.com/learnsphere/service-payment/internal/domain/transaction"
)

// fakePromoRepo is an in-memory promo.Repository. IncrementUsage mirrors the
// production conditional-UPDATE semantics under a mutex.
type fakePromoRepo struct {
	mu          sync.Mutex
	promos      map[uuid.UUID]*promoDomain.PromoCode
	redemptions []*promoDomain.Redemption
}

func newFakePromoRepo() *fakePromoRepo {
	return &fakePromoRepo{promos: make(map[uuid.UUID]*promoDomain.PromoCode)}
}

func (r *fakePromoRepo) Save(ctx context.Context, p *promoDomain.PromoCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.promos[p.ID()] = p
	return nil
}

func (r *fakePromoRepo) Update(ctx context.Context, p *promoDomain.PromoCode) error {
	return r.Save(ctx, p)
}

func (r *fakePromoRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.promos[id]; !ok {
		return domain.NewNotFoundError("PromoCode", id.String())
	}
	delete(r.promos, id)
	return nil
}

func (r *fakePromoRepo) FindByCode(ctx context.Context, code string) (*promoDomain.PromoCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.promos {
		if p.Code() == code {
			return p, nil
		}
	}
	return nil, domain.NewNotFoundError("PromoCode", code)
}

func (r *fakePromoRepo) FindByID(ctx context.Context, id uuid.UUID) (*promoDomain.PromoCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.promos[id]
	if !ok {
		return nil, domain.NewNotFoundError("PromoCode", id.String())
	}
	return p, nil
}

func (r *fakePromoRepo) FindActive(ctx context.Context) ([]*promoDomain.PromoCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*promoDomain.PromoCode
	for _, p := range r.promos {
		if p.IsActive() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePromoRepo) FindAll(ctx context.Context) ([]*promoDomain.PromoCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*promoDomain.PromoCode, 0, len(r.promos))
	for _, p := range r.promos {
		out = append(out, p)
	}
	return out, nil
}

func (r *fakePromoRepo) FindByCourse(ctx context.Context, courseID uuid.UUID) ([]*promoDomain.PromoCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*promoDomain.PromoCode
	for _, p := range r.promos {
		if p.IsActive() && p.CanApplyToCourse(courseID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePromoRepo) IncrementUsage(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.promos[id]
	if !ok {
		return domain.NewNotFoundError("PromoCode", id.String())
	}
	if p.MaxUses() > 0 && p.UsedCount() >= p.MaxUses() {
		return domain.NewConflictError("promo code usage limit reached")
	}
	p.IncrementUsage()
	return nil
}

func (r *fakePromoRepo) SaveRedemption(ctx context.Context, red *promoDomain.Redemption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.redemptions {
		if existing.PromoID == red.PromoID && existing.UserID == red.UserID {
			return domain.NewConflictError("promo code already redeemed by this user")
		}
	}
	r.redemptions = append(r.redemptions, red)
	return nil
}

func (r *fakePromoRepo) HasUserRedeemed(ctx context.Context, promoID, userID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, red := range r.redemptions {
		if red.PromoID == promoID && red.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

// fakePaymentRepo is an in-memory payment.Repository with optimistic locking.
type fakePaymentRepo struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*paymentDomain.Payment
	versions map[uuid.UUID]int64
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{
		payments: make(map[uuid.UUID]*paymentDomain.Payment),
		versions: make(map[uuid.UUID]int64),
	}
}

func (r *fakePaymentRepo) FindByID(ctx context.Context, id uuid.UUID) (*paymentDomain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, domain.NewNotFoundError("Payment", id.String())
	}
	return p, nil
}

func (r *fakePaymentRepo) FindByGatewayRef(ctx context.Context, gatewayRef string) (*paymentDomain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.GatewayRef() == gatewayRef && gatewayRef != "" {
			return p, nil
		}
	}
	return nil, domain.NewNotFoundError("Payment", gatewayRef)
}

func (r *fakePaymentRepo) FindByUser(ctx context.Context, userID uuid.UUID) ([]*paymentDomain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*paymentDomain.Payment
	for _, p := range r.payments {
		if p.UserID() == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) ListAll(ctx context.Context, page, limit int) ([]*paymentDomain.Payment, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*paymentDomain.Payment, 0, len(r.payments))
	for _, p := range r.payments {
		out = append(out, p)
	}
	return out, int64(len(out)), nil
}

func (r *fakePaymentRepo) GetRevenueStats(ctx context.Context) (float64, map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var revenue float64
	counts := make(map[string]int64)
	for _, p := range r.payments {
		counts[string(p.Status())]++
		if p.Status() == paymentDomain.StatusCompleted {
			revenue += p.Amount()
		}
	}
	return revenue, counts, nil
}

func (r *fakePaymentRepo) Save(ctx context.Context, p *paymentDomain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments[p.ID()] = p
	r.versions[p.ID()] = p.Version()
	return nil
}

func (r *fakePaymentRepo) Update(ctx context.Context, p *paymentDomain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.versions[p.ID()]
	if !ok {
		return domain.NewNotFoundError("Payment", p.ID().String())
	}
	if stored != p.Version()-1 {
		return domain.NewConflictError("payment was modified by another transaction")
	}
	r.payments[p.ID()] = p
	r.versions[p.ID()] = p.Version()
	return nil
}

// fakeTxnRepo is an in-memory transaction.Repository.
type fakeTxnRepo struct {
	mu   sync.Mutex
	txns map[uuid.UUID]*txnDomain.Transaction // keyed by payment id
}

func newFakeTxnRepo() *fakeTxnRepo {
	return &fakeTxnRepo{txns: make(map[uuid.UUID]*txnDomain.Transaction)}
}

func (r *fakeTxnRepo) Save(ctx context.Context, t *txnDomain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.txns[t.PaymentID]; ok {
		return domain.NewConflictError("transaction already exists for payment")
	}
	r.txns[t.PaymentID] = t
	return nil
}

func (r *fakeTxnRepo) FindByPaymentID(ctx context.Context, paymentID uuid.UUID) (*txnDomain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txns[paymentID]
	if !ok {
		return nil, domain.NewNotFoundError("Transaction", paymentID.String())
	}
	return t, nil
}

func (r *fakeTxnRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*txnDomain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*txnDomain.Transaction
	for _, t := range r.txns {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTxnRepo) MarkRefunded(ctx context.Context, paymentID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txns[paymentID]
	if !ok {
		return domain.NewNotFoundError("Transaction", paymentID.String())
	}
	t.Status = "refunded"
	return nil
}

// fakeSubRepo is an in-memory subscription.Repository.
type fakeSubRepo struct {
	mu   sync.Mutex
	subs map[uuid.UUID]*subDomain.Subscription
}

func newFakeSubRepo() *fakeSubRepo {
	return &fakeSubRepo{subs: make(map[uuid.UUID]*subDomain.Subscription)}
}

func (r *fakeSubRepo) Save(ctx context.Context, s *subDomain.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[s.ID()] = s
	return nil
}

func (r *fakeSubRepo) Update(ctx context.Context, s *subDomain.Subscription) error {
	return r.Save(ctx, s)
}

func (r *fakeSubRepo) FindByID(ctx context.Context, id uuid.UUID) (*subDomain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok {
		return nil, domain.NewNotFoundError("Subscription", id.String())
	}
	return s, nil
}

func (r *fakeSubRepo) FindByPaymentID(ctx context.Context, paymentID uuid.UUID) (*subDomain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subs {
		if s.PaymentID() != nil && *s.PaymentID() == paymentID {
			return s, nil
		}
	}
	return nil, domain.NewNotFoundError("Subscription", paymentID.String())
}

func (r *fakeSubRepo) FindActiveByUserID(ctx context.Context, userID uuid.UUID) (*subDomain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subs {
		if s.UserID() == userID && s.Status() == subDomain.StatusActive {
			return s, nil
		}
	}
	return nil, domain.NewNotFoundError("Subscription", userID.String())
}

// fakeGateway is a programmable adapter.PaymentGateway.
type fakeGateway struct {
	name string

	initiateResult *adapter.InitiateResult
	initiateErr    error
	verifyResult   *adapter.VerifyResult
	webhookEvent   *adapter.WebhookEvent
	webhookErr     error

	initiateCalls int
	verifyCalls   int
}

func newFakeGateway(name string) *fakeGateway {
	return &fakeGateway{name: name}
}

func (g *fakeGateway) Name() string { return g.name }

func (g *fakeGateway) InitiatePayment(ctx context.Context, req adapter.InitiateRequest) (*adapter.InitiateResult, error) {
	g.initiateCalls++
	if g.initiateErr != nil {
		return nil, g.initiateErr
	}
	if g.initiateResult != nil {
		return g.initiateResult, nil
	}
	return &adapter.InitiateResult{
		ProviderRef: "ref-" + req.OrderID,
		CheckoutURL: "https://pay.test/" + req.OrderID,
		OrderID:     req.OrderID,
		Amount:      req.Amount,
		Currency:    "TND",
		Method:      g.name,
	}, nil
}

func (g *fakeGateway) VerifyPayment(ctx context.Context, providerRef string) (*adapter.VerifyResult, error) {
	g.verifyCalls++
	return g.verifyResult, nil
}

func (g *fakeGateway) ProcessWebhook(payload []byte, signature string) (*adapter.WebhookEvent, error) {
	if g.webhookErr != nil {
		return nil, g.webhookErr
	}
	return g.webhookEvent, nil
}

func (g *fakeGateway) ValidateWebhookSignature(payload []byte, signature string) bool {
	return g.webhookErr == nil
}

//go:build integration

package main_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnsphere/service-payment/internal/application"
	billingEvents "github.com/learnsphere/service-payment/internal/events"
	"github.com/learnsphere/service-payment/internal/repository"
)

// TestPaymeeWebhook_CompletesCheckout drives a full checkout against the
// Paymee sandbox: initiation, the paid webhook, the transaction record, the
// promo redemption and the CheckoutCompleted event on billing.events.
func TestPaymeeWebhook_CompletesCheckout(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	paymeeURL, _ := startPaymeeSandbox(t)
	stack := setupBillingStack(t, infra.DB, infra.KafkaBrokers, paymeeURL)
	defer stack.Cleanup()

	ctx := context.Background()
	userID := uuid.New()
	courseID := uuid.New().String()
	admin := uuid.New()

	_, err := stack.Promos.CreatePromo(ctx, admin, application.CreatePromoRequest{
		Code:          "INTTEST20",
		DiscountType:  "percentage",
		DiscountValue: 20,
		MaxUses:       10,
	})
	require.NoError(t, err)

	payment, err := stack.Checkout.InitiateCheckout(ctx, userID, application.InitiateCheckoutRequest{
		Gateway:     "paymee",
		PaymentType: "course_purchase",
		CourseID:    &courseID,
		Amount:      150.0,
		PromoCode:   "INTTEST20",
		Email:       "student@example.tn",
	})
	require.NoError(t, err)
	assert.Equal(t, "pending", payment.Status)
	assert.Equal(t, 120.0, payment.Amount)
	require.NotEmpty(t, payment.GatewayRef)

	// Deliver the paid webhook the way Paymee would.
	webhook := fmt.Sprintf(
		`{"token":%q,"order_id":%q,"payment_status":true,"transaction_id":424242,"amount":120000}`,
		payment.GatewayRef, payment.ID.String(),
	)
	require.NoError(t, stack.Checkout.HandleWebhook(ctx, "paymee", []byte(webhook), ""))

	// Assert: payment row completed.
	model := waitForPaymentStatus(t, infra.DB, payment.ID, "completed", 10*time.Second)
	assert.Equal(t, "424242", model.GatewayTxnID)
	assert.NotNil(t, model.CompletedAt)

	// Assert: immutable transaction record written.
	var txn repository.TransactionModel
	require.NoError(t, infra.DB.Where("payment_id = ?", payment.ID).First(&txn).Error)
	assert.Equal(t, 120.0, txn.Amount)
	assert.Equal(t, "completed", txn.Status)

	// Assert: promo use consumed exactly once, with a redemption row.
	var promo repository.PromoModel
	require.NoError(t, infra.DB.Where("code = ?", "INTTEST20").First(&promo).Error)
	assert.Equal(t, 1, promo.UsedCount)
	var redemptions int64
	infra.DB.Model(&repository.RedemptionModel{}).Where("user_id = ?", userID).Count(&redemptions)
	assert.Equal(t, int64(1), redemptions)

	// Assert: CheckoutCompleted on billing.events.
	ce := consumeOneEvent(t, infra.KafkaBrokers, billingEvents.TopicBillingEvents,
		billingEvents.CheckoutCompleted, 15*time.Second)

	var completed billingEvents.CheckoutCompletedEvent
	require.NoError(t, ce.ParseData(&completed))
	assert.Equal(t, payment.ID, completed.PaymentID)
	assert.Equal(t, userID, completed.UserID)
	assert.Equal(t, 120.0, completed.Amount)
	assert.Equal(t, "INTTEST20", completed.PromoCode)

	// A late conflicting failure must never overwrite the stored completion.
	lateFailure := fmt.Sprintf(`{"token":%q,"order_id":%q,"payment_status":false}`,
		payment.GatewayRef, payment.ID.String())
	require.Error(t, stack.Checkout.HandleWebhook(ctx, "paymee", []byte(lateFailure), ""))
	var after repository.PaymentModel
	require.NoError(t, infra.DB.Where("id = ?", payment.ID).First(&after).Error)
	assert.Equal(t, "completed", after.Status)
}

// TestVerifyPayment_AgainstSandbox covers the synchronous reconciliation path:
// the provider flips to paid and a verify call drives the payment to completed.
func TestVerifyPayment_AgainstSandbox(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	paymeeURL, markPaid := startPaymeeSandbox(t)
	stack := setupBillingStack(t, infra.DB, infra.KafkaBrokers, paymeeURL)
	defer stack.Cleanup()

	ctx := context.Background()
	userID := uuid.New()
	courseID := uuid.New().String()

	payment, err := stack.Checkout.InitiateCheckout(ctx, userID, application.InitiateCheckoutRequest{
		Gateway:     "paymee",
		PaymentType: "course_purchase",
		CourseID:    &courseID,
		Amount:      89.5,
		Email:       "student@example.tn",
	})
	require.NoError(t, err)

	// Unpaid check is authoritative and fails the payment; verify only after
	// the sandbox reports paid.
	markPaid(payment.GatewayRef)

	verified, err := stack.Checkout.VerifyPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", verified.Status)

	waitForPaymentStatus(t, infra.DB, payment.ID, "completed", 10*time.Second)
}

// TestRefundCommand_RefundsPayment verifies that a RefundRequested command on
// billing.commands refunds a completed payment and announces it.
func TestRefundCommand_RefundsPayment(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	paymeeURL, _ := startPaymeeSandbox(t)
	stack := setupBillingStack(t, infra.DB, infra.KafkaBrokers, paymeeURL)
	defer stack.Cleanup()

	userID := uuid.New()
	paymentID := seedCompletedPayment(t, infra.DB, userID, 150.0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = stack.Consumer.Start(ctx) }()
	time.Sleep(3 * time.Second) // Wait for consumer group join.

	evt := billingEvents.RefundRequestedEvent{
		PaymentID:   paymentID,
		RequestedBy: uuid.New(),
		Reason:      "course withdrawn from catalog",
		OccurredAt:  time.Now().UTC(),
	}
	publishTestEvent(t, infra.KafkaBrokers, billingEvents.TopicBillingCommands,
		"service-admin", billingEvents.RefundRequested, evt)

	// Assert: DB transitions to "refunded".
	model := waitForPaymentStatus(t, infra.DB, paymentID, "refunded", 15*time.Second)
	assert.NotNil(t, model.RefundedAt, "refunded_at should be set")
	assert.Contains(t, model.FailureReason, "course withdrawn")

	// Assert: transaction record follows.
	var txn repository.TransactionModel
	require.NoError(t, infra.DB.Where("payment_id = ?", paymentID).First(&txn).Error)
	assert.Equal(t, "refunded", txn.Status)

	// Assert: PaymentRefunded on billing.events.
	ce := consumeOneEvent(t, infra.KafkaBrokers, billingEvents.TopicBillingEvents,
		billingEvents.PaymentRefunded, 15*time.Second)

	var refunded billingEvents.PaymentRefundedEvent
	require.NoError(t, ce.ParseData(&refunded))
	assert.Equal(t, paymentID, refunded.PaymentID)
	assert.Equal(t, userID, refunded.UserID)
	assert.Equal(t, 150.0, refunded.Amount)
}

// TestRefundCommand_UnknownPayment_Skips verifies that a refund command for a
// payment this service has never seen is dropped without wedging the consumer.
func TestRefundCommand_UnknownPayment_Skips(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	paymeeURL, _ := startPaymeeSandbox(t)
	stack := setupBillingStack(t, infra.DB, infra.KafkaBrokers, paymeeURL)
	defer stack.Cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = stack.Consumer.Start(ctx) }()
	time.Sleep(3 * time.Second)

	ghostID := uuid.New()
	evt := billingEvents.RefundRequestedEvent{
		PaymentID:   ghostID,
		RequestedBy: uuid.New(),
		Reason:      "no such payment",
		OccurredAt:  time.Now().UTC(),
	}
	publishTestEvent(t, infra.KafkaBrokers, billingEvents.TopicBillingCommands,
		"service-admin", billingEvents.RefundRequested, evt)

	// Give the consumer time to process. No crash expected.
	time.Sleep(5 * time.Second)

	var count int64
	infra.DB.Model(&repository.PaymentModel{}).Where("id = ?", ghostID).Count(&count)
	assert.Equal(t, int64(0), count, "no payment should be created")
}

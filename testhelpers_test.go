//go:build integration

package main_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/learnsphere/service-payment/internal/adapter"
	"github.com/learnsphere/service-payment/internal/application"
	billingEvents "github.com/learnsphere/service-payment/internal/events"
	"github.com/learnsphere/service-payment/internal/platform/kafka"
	"github.com/learnsphere/service-payment/internal/repository"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// billingStack holds the wired-up billing service components.
type billingStack struct {
	Checkout *application.CheckoutService
	Promos   *application.PromoService
	Consumer *billingEvents.BillingCommandConsumer
	Cleanup  func()
}

// setupContainers starts PostgreSQL and Kafka testcontainers and returns a connected GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_billing",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=test_billing sslmode=disable", pgHost, pgPort.Port())

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
		if err != nil {
			return false
		}
		sqlDB, err := db.DB()
		if err != nil {
			return false
		}
		return sqlDB.Ping() == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	// Enable uuid-ossp extension and auto-migrate.
	require.NoError(t, db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error)
	require.NoError(t, db.AutoMigrate(
		&repository.PaymentModel{},
		&repository.TransactionModel{},
		&repository.PromoModel{},
		&repository.RedemptionModel{},
		&repository.SubscriptionModel{},
	))

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	// Pre-create required topics.
	createTopics(t, kafkaBrokers, billingEvents.TopicBillingEvents, billingEvents.TopicBillingCommands)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// startPaymeeSandbox runs an in-process Paymee lookalike. Checkouts opened
// against it are marked paid once markPaid is called with their token, which
// lets verify-based tests flip the provider-side outcome mid-test.
func startPaymeeSandbox(t *testing.T) (baseURL string, markPaid func(token string)) {
	t.Helper()

	var mu sync.Mutex
	paid := make(map[string]bool)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/payments/create", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			OrderID string `json:"order_id"`
			Amount  int64  `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		token := "tok_" + body.OrderID
		json.NewEncoder(w).Encode(map[string]any{
			"status":  true,
			"message": "success",
			"data": map[string]any{
				"token":       token,
				"order_id":    body.OrderID,
				"payment_url": "https://sandbox.paymee.tn/gateway/" + token,
				"amount":      body.Amount,
			},
		})
	})
	mux.HandleFunc("/api/v2/payments/", func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Path[len("/api/v2/payments/"):]
		token = token[:len(token)-len("/check")]
		mu.Lock()
		isPaid := paid[token]
		mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{
			"status":  true,
			"message": "success",
			"data": map[string]any{
				"payment_status": isPaid,
				"token":          token,
				"transaction_id": 424242,
			},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv.URL, func(token string) {
		mu.Lock()
		paid[token] = true
		mu.Unlock()
	}
}

// setupBillingStack wires the full service stack against real containers and
// the Paymee sandbox.
func setupBillingStack(t *testing.T, db *gorm.DB, brokers []string, paymeeURL string) *billingStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	paymentRepo := repository.NewPaymentRepository(db)
	txnRepo := repository.NewTransactionRepository(db)
	promoRepo := repository.NewPromoRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)

	paymee := adapter.NewPaymeeAdapter(adapter.PaymeeConfig{
		APIBaseURL: paymeeURL,
		APIKey:     "test-key",
		ReturnURL:  "https://app.test/return",
		CancelURL:  "https://app.test/cancel",
	}, logger)

	producer := kafka.NewProducer(brokers, logger)
	publisher := billingEvents.NewPublisher(producer, logger)

	promoSvc := application.NewPromoService(promoRepo, publisher, logger)
	checkoutSvc := application.NewCheckoutService(
		paymentRepo, txnRepo, subRepo, promoSvc,
		adapter.NewRegistry(paymee), publisher, logger,
	)

	groupID := fmt.Sprintf("test-billing-%s", uuid.New().String()[:8])
	consumer := billingEvents.NewBillingCommandConsumer(brokers, groupID, checkoutSvc, logger)

	return &billingStack{
		Checkout: checkoutSvc,
		Promos:   promoSvc,
		Consumer: consumer,
		Cleanup: func() {
			_ = consumer.Close()
			_ = producer.Close()
		},
	}
}

// seedCompletedPayment inserts a completed payment with its transaction record.
func seedCompletedPayment(t *testing.T, db *gorm.DB, userID uuid.UUID, amount float64) uuid.UUID {
	t.Helper()
	paymentID := uuid.New()
	courseID := uuid.New()
	now := time.Now().UTC()

	payment := repository.PaymentModel{
		ID:             paymentID,
		UserID:         userID,
		CourseID:       &courseID,
		PaymentType:    "course_purchase",
		Amount:         amount,
		OriginalAmount: amount,
		Currency:       "TND",
		Gateway:        "paymee",
		Status:         "completed",
		GatewayRef:     "tok_" + paymentID.String(),
		GatewayTxnID:   "424242",
		CompletedAt:    &now,
		Version:        3,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, db.Create(&payment).Error, "failed to seed payment")

	txn := repository.TransactionModel{
		ID:           uuid.New(),
		PaymentID:    paymentID,
		UserID:       userID,
		CourseID:     &courseID,
		Amount:       amount,
		Currency:     "TND",
		Status:       "completed",
		Gateway:      "paymee",
		GatewayTxnID: "424242",
		CreatedAt:    now,
		UpdatedAt:    now,
		CompletedAt:  &now,
	}
	require.NoError(t, db.Create(&txn).Error, "failed to seed transaction")
	return paymentID
}

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, source, eventType string, data interface{}) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := kafka.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()

	ce, err := kafka.NewCloudEvent(source, eventType, data)
	require.NoError(t, err, "failed to create cloud event")

	err = producer.PublishEvent(context.Background(), topic, ce)
	require.NoError(t, err, "failed to publish event")
}

// waitForPaymentStatus polls the payments table until the status matches.
func waitForPaymentStatus(t *testing.T, db *gorm.DB, paymentID uuid.UUID, expectedStatus string, timeout time.Duration) repository.PaymentModel {
	t.Helper()
	var result repository.PaymentModel
	require.Eventually(t, func() bool {
		var model repository.PaymentModel
		err := db.Where("id = ?", paymentID).First(&model).Error
		if err != nil {
			return false
		}
		if model.Status == expectedStatus {
			result = model
			return true
		}
		return false
	}, timeout, 200*time.Millisecond, "payment did not transition to %s", expectedStatus)
	return result
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}

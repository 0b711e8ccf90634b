package paymentrepo_test

import (
	"context"
	"testing"
	"time"

	"fulfillment/internal/adapters/out/postgres/paymentrepo"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/payment"
	"fulfillment/internal/pkg/errs"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	postgresdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type MockAggregateTracker struct {
	mock.Mock
}

func (m *MockAggregateTracker) TrackAggregate(id kernel.UUID, aggregate any) {
	m.Called(id, aggregate)
}

type PaymentRepositoryIntegrationTestSuite struct {
	suite.Suite
	container  *postgres.PostgresContainer
	db         *gorm.DB
	repository *paymentrepo.GormPaymentRepository
	tracker    *MockAggregateTracker
	methods    payment.Methods
}

func TestPaymentRepositoryIntegrationTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PaymentRepositoryIntegrationTestSuite))
}

func (suite *PaymentRepositoryIntegrationTestSuite) SetupSuite() {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	suite.Require().NoError(err)
	suite.container = container

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	suite.Require().NoError(err)

	db, err := gorm.Open(postgresdriver.Open(connStr), &gorm.Config{TranslateError: true})
	suite.Require().NoError(err)
	suite.db = db

	suite.Require().NoError(db.AutoMigrate(&paymentrepo.PaymentDTO{}, &paymentrepo.AttemptDTO{}, &paymentrepo.RefundDTO{}))

	suite.methods, err = payment.NewMethods(payment.DefaultMethods())
	suite.Require().NoError(err)
}

func (suite *PaymentRepositoryIntegrationTestSuite) SetupTest() {
	suite.Require().NoError(suite.db.Exec("TRUNCATE TABLE payments, payment_attempts, refunds").Error)

	suite.tracker = new(MockAggregateTracker)
	suite.tracker.On("TrackAggregate", mock.Anything, mock.Anything)
	suite.repository = paymentrepo.NewGormPaymentRepository(suite.db, suite.tracker)
}

func (suite *PaymentRepositoryIntegrationTestSuite) TearDownSuite() {
	if suite.container != nil {
		suite.Require().NoError(suite.container.Terminate(context.Background()))
	}
}

func (suite *PaymentRepositoryIntegrationTestSuite) TestAddAndGet() {
	ctx := context.Background()

	suite.Run("should persist a pending payment and track it", func() {
		p := suite.newPayment(payment.MethodUPI, "640.00")

		suite.Require().NoError(suite.repository.Add(ctx, p))

		stored, err := suite.repository.Get(ctx, p.ID())
		suite.Require().NoError(err)
		suite.Equal(p.Number(), stored.Number())
		suite.Equal(p.OrderID(), stored.OrderID())
		suite.Equal(payment.MethodUPI, stored.Method())
		suite.Equal(payment.StatusPending, stored.Status())
		suite.True(p.Total().Equal(stored.Total()))
		suite.Empty(stored.GatewayRef())
		suite.tracker.AssertCalled(suite.T(), "TrackAggregate", p.ID(), p)
	})

	suite.Run("should refuse a duplicated payment number", func() {
		p := suite.newPayment(payment.MethodUPI, "100.00")
		suite.Require().NoError(suite.repository.Add(ctx, p))

		twin, err := payment.NewPayment(kernel.NewUUID(), p.Number(), p.OrderID(), p.CustomerID(),
			suite.method(payment.MethodUPI), decimal.RequireFromString("100.00"), time.Now())
		suite.Require().NoError(err)

		suite.Require().ErrorIs(suite.repository.Add(ctx, twin), errs.ErrAlreadyExists)
	})

	suite.Run("should report an unknown payment as not found", func() {
		_, err := suite.repository.Get(ctx, kernel.NewUUID())
		suite.Require().ErrorIs(err, errs.ErrObjectNotFound)

		_, err = suite.repository.GetByGatewayRef(ctx, "gw_missing")
		suite.Require().ErrorIs(err, errs.ErrObjectNotFound)
	})

	suite.Run("should list an order's payments oldest first", func() {
		orderID := kernel.NewUUID()
		first := suite.newPaymentFor(orderID, time.Now().Add(-time.Minute))
		second := suite.newPaymentFor(orderID, time.Now())
		suite.Require().NoError(suite.repository.Add(ctx, second))
		suite.Require().NoError(suite.repository.Add(ctx, first))
		suite.Require().NoError(suite.repository.Add(ctx, suite.newPayment(payment.MethodUPI, "10.00")))

		listed, err := suite.repository.ListByOrder(ctx, orderID)
		suite.Require().NoError(err)
		suite.Require().Len(listed, 2)
		suite.Equal(first.ID(), listed[0].ID())
		suite.Equal(second.ID(), listed[1].ID())
	})
}

func (suite *PaymentRepositoryIntegrationTestSuite) TestAttempts() {
	ctx := context.Background()

	suite.Run("should append every logged interaction with its payload and timing", func() {
		p := suite.newPayment(payment.MethodUPI, "500.00")
		suite.Require().NoError(suite.repository.Add(ctx, p))

		suite.Require().NoError(p.StartProcessing("gw_ref_attempts", payment.Exchange{
			Request:  `{"number":1,"amount":"500"}`,
			Response: `{"reference":"gw_ref_attempts"}`,
			Duration: 180 * time.Millisecond,
		}, time.Now()))
		suite.Require().NoError(suite.repository.Update(ctx, p))

		suite.Require().NoError(p.Succeed("gw_pay_9", payment.OperationCallback,
			payment.Exchange{Response: `{"status":"captured"}`}, time.Now()))
		p.RecordAttempt(payment.OperationRefund, payment.Exchange{
			Request:  `{"number":3,"amount":"50"}`,
			Duration: 2 * time.Second,
		}, "refund_window_closed", time.Now())
		suite.Require().NoError(suite.repository.Update(ctx, p))
		suite.Empty(p.PendingAttempts())

		attempts, err := suite.repository.Attempts(ctx, p.ID())
		suite.Require().NoError(err)
		suite.Require().Len(attempts, 3)

		suite.Equal(1, attempts[0].Number)
		suite.Equal(payment.OperationInitiate, attempts[0].Operation)
		suite.Equal(payment.StatusProcessing, attempts[0].Status)
		suite.True(attempts[0].Success)
		suite.Equal(`{"number":1,"amount":"500"}`, attempts[0].RequestPayload)
		suite.Equal(`{"reference":"gw_ref_attempts"}`, attempts[0].GatewayResponse)
		suite.Equal(180*time.Millisecond, attempts[0].Duration)

		suite.Equal(payment.OperationCallback, attempts[1].Operation)
		suite.Equal(payment.StatusSuccess, attempts[1].Status)
		suite.True(attempts[1].Success)

		suite.Equal(3, attempts[2].Number)
		suite.Equal(payment.OperationRefund, attempts[2].Operation)
		suite.False(attempts[2].Success)
		suite.Equal("refund_window_closed", attempts[2].ErrorMessage)
		suite.Equal(2*time.Second, attempts[2].Duration)

		stored, err := suite.repository.Get(ctx, p.ID())
		suite.Require().NoError(err)
		suite.Equal(3, stored.AttemptCount())
	})

	suite.Run("should log a cancellation", func() {
		p := suite.newPayment(payment.MethodCashOnDelivery, "220.00")
		suite.Require().NoError(suite.repository.Add(ctx, p))
		suite.Require().NoError(p.Cancel("order_cancelled", time.Now()))
		suite.Require().NoError(suite.repository.Update(ctx, p))

		attempts, err := suite.repository.Attempts(ctx, p.ID())
		suite.Require().NoError(err)
		suite.Require().Len(attempts, 1)
		suite.Equal(payment.OperationCancel, attempts[0].Operation)
		suite.Equal(payment.StatusCancelled, attempts[0].Status)
		suite.Equal("order_cancelled", attempts[0].RequestPayload)
	})
}

func (suite *PaymentRepositoryIntegrationTestSuite) TestUpdate() {
	ctx := context.Background()

	suite.Run("should find a payment by its gateway reference", func() {
		p := suite.newPayment(payment.MethodCreditCard, "900.00")
		suite.Require().NoError(suite.repository.Add(ctx, p))
		suite.Require().NoError(p.StartProcessing("gw_ref_lookup", payment.Exchange{}, time.Now()))
		suite.Require().NoError(suite.repository.Update(ctx, p))

		stored, err := suite.repository.GetByGatewayRef(ctx, "gw_ref_lookup")
		suite.Require().NoError(err)
		suite.Equal(p.ID(), stored.ID())
		suite.Equal(payment.StatusProcessing, stored.Status())
		suite.Equal(p.Version(), stored.Version())
	})

	suite.Run("should keep gateway references unique", func() {
		first := suite.newPayment(payment.MethodUPI, "100.00")
		second := suite.newPayment(payment.MethodUPI, "100.00")
		suite.Require().NoError(suite.repository.Add(ctx, first))
		suite.Require().NoError(suite.repository.Add(ctx, second))
		suite.Require().NoError(first.StartProcessing("gw_ref_shared", payment.Exchange{}, time.Now()))
		suite.Require().NoError(suite.repository.Update(ctx, first))

		suite.Require().NoError(second.StartProcessing("gw_ref_shared", payment.Exchange{}, time.Now()))
		suite.Require().ErrorIs(suite.repository.Update(ctx, second), errs.ErrAlreadyExists)
	})

	suite.Run("should reject a stale copy", func() {
		p := suite.newPayment(payment.MethodUPI, "300.00")
		suite.Require().NoError(suite.repository.Add(ctx, p))
		stale, err := suite.repository.Get(ctx, p.ID())
		suite.Require().NoError(err)

		suite.Require().NoError(p.StartProcessing("gw_ref_race", payment.Exchange{}, time.Now()))
		suite.Require().NoError(suite.repository.Update(ctx, p))
		suite.Require().NoError(stale.Cancel("customer_abandoned", time.Now()))

		suite.Require().ErrorIs(suite.repository.Update(ctx, stale), errs.ErrConflict)

		stored, err := suite.repository.Get(ctx, p.ID())
		suite.Require().NoError(err)
		suite.Equal(payment.StatusProcessing, stored.Status())
		attempts, err := suite.repository.Attempts(ctx, p.ID())
		suite.Require().NoError(err)
		suite.Len(attempts, 1)
	})
}

func (suite *PaymentRepositoryIntegrationTestSuite) TestRefunds() {
	ctx := context.Background()

	suite.Run("should complete a refund exactly once", func() {
		p := suite.capturedPayment("800.00")
		refund := suite.newRefund(p, "300.00", time.Now())
		suite.Require().NoError(suite.repository.AddRefund(ctx, refund))
		suite.Require().NoError(suite.repository.Update(ctx, p))

		stale, err := suite.repository.GetRefund(ctx, refund.ID())
		suite.Require().NoError(err)
		suite.Equal(payment.RefundInitiated, stale.Status())

		suite.Require().NoError(refund.Complete("gw_rf_1", false, time.Now()))
		suite.Require().NoError(suite.repository.UpdateRefund(ctx, refund))

		suite.Require().NoError(stale.Fail("gateway_timeout", time.Now()))
		suite.Require().ErrorIs(suite.repository.UpdateRefund(ctx, stale), errs.ErrConflict)

		stored, err := suite.repository.GetRefund(ctx, refund.ID())
		suite.Require().NoError(err)
		suite.Equal(payment.RefundCompleted, stored.Status())
		suite.Equal("gw_rf_1", stored.GatewayRef())
		suite.NotNil(stored.CompletedAt())

		storedPayment, err := suite.repository.Get(ctx, p.ID())
		suite.Require().NoError(err)
		suite.Equal(payment.StatusPartiallyRefunded, storedPayment.Status())
		suite.True(storedPayment.Refunded().Equal(decimal.RequireFromString("300.00")))
	})

	suite.Run("should list a payment's refunds oldest first", func() {
		p := suite.capturedPayment("800.00")
		first := suite.newRefund(p, "100.00", time.Now().Add(-time.Minute))
		second := suite.newRefund(p, "50.00", time.Now())
		suite.Require().NoError(suite.repository.AddRefund(ctx, first))
		suite.Require().NoError(suite.repository.AddRefund(ctx, second))

		refunds, err := suite.repository.ListRefunds(ctx, p.ID())
		suite.Require().NoError(err)
		suite.Require().Len(refunds, 2)
		suite.Equal(first.ID(), refunds[0].ID())
		suite.Equal(second.ID(), refunds[1].ID())
		suite.Equal("damaged item", refunds[0].Reason())
		suite.Equal(payment.DestinationFor(p.Method()), refunds[0].Destination())
	})

	suite.Run("should report an unknown refund as not found", func() {
		_, err := suite.repository.GetRefund(ctx, kernel.NewUUID())

		suite.Require().ErrorIs(err, errs.ErrObjectNotFound)
	})
}

func (suite *PaymentRepositoryIntegrationTestSuite) method(mt payment.MethodType) payment.Method {
	m, err := suite.methods.Lookup(mt)
	suite.Require().NoError(err)
	return m
}

func (suite *PaymentRepositoryIntegrationTestSuite) newPayment(mt payment.MethodType, total string) *payment.Payment {
	now := time.Now()
	p, err := payment.NewPayment(kernel.NewUUID(), kernel.NewReference(payment.NumberPrefix, now, payment.NumberSuffixLength),
		kernel.NewUUID(), kernel.NewUUID(), suite.method(mt), decimal.RequireFromString(total), now)
	suite.Require().NoError(err)
	return p
}

func (suite *PaymentRepositoryIntegrationTestSuite) newPaymentFor(orderID kernel.UUID, at time.Time) *payment.Payment {
	p, err := payment.NewPayment(kernel.NewUUID(), kernel.NewReference(payment.NumberPrefix, at, payment.NumberSuffixLength),
		orderID, kernel.NewUUID(), suite.method(payment.MethodUPI), decimal.RequireFromString("150.00"), at)
	suite.Require().NoError(err)
	return p
}

func (suite *PaymentRepositoryIntegrationTestSuite) capturedPayment(total string) *payment.Payment {
	ctx := context.Background()
	p := suite.newPayment(payment.MethodUPI, total)
	suite.Require().NoError(suite.repository.Add(ctx, p))
	suite.Require().NoError(p.StartProcessing("gw_ref_"+p.ID().String(), payment.Exchange{}, time.Now()))
	suite.Require().NoError(p.Succeed("gw_pay_"+p.ID().String(), payment.OperationCallback, payment.Exchange{}, time.Now()))
	suite.Require().NoError(suite.repository.Update(ctx, p))
	return p
}

func (suite *PaymentRepositoryIntegrationTestSuite) newRefund(p *payment.Payment, amount string, now time.Time) *payment.Refund {
	value := decimal.RequireFromString(amount)
	suite.Require().NoError(p.ReserveRefund(value))
	r, err := payment.NewRefund(kernel.NewUUID(),
		kernel.NewReference(payment.RefundNumberPrefix, now, payment.RefundNumberSuffixLength),
		p, value, "damaged item", kernel.SystemActor("support"), now)
	suite.Require().NoError(err)
	return r
}

package orderrepo_test

import (
	"context"
	"testing"
	"time"

	"fulfillment/internal/adapters/out/postgres/orderrepo"
	"fulfillment/internal/core/domain/model/cart"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/order"
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

type OrderRepositoryIntegrationTestSuite struct {
	suite.Suite
	container  *postgres.PostgresContainer
	db         *gorm.DB
	repository *orderrepo.GormOrderRepository
	tracker    *MockAggregateTracker
}

func TestOrderRepositoryIntegrationTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(OrderRepositoryIntegrationTestSuite))
}

func (suite *OrderRepositoryIntegrationTestSuite) SetupSuite() {
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

	suite.Require().NoError(db.AutoMigrate(&orderrepo.OrderDTO{}, &orderrepo.LineDTO{}, &orderrepo.HistoryDTO{}))
}

func (suite *OrderRepositoryIntegrationTestSuite) SetupTest() {
	suite.Require().NoError(suite.db.Exec("TRUNCATE TABLE orders, order_items, order_status_history").Error)

	suite.tracker = new(MockAggregateTracker)
	suite.repository = orderrepo.NewGormOrderRepository(suite.db, suite.tracker)
}

func (suite *OrderRepositoryIntegrationTestSuite) TearDownSuite() {
	if suite.container != nil {
		suite.Require().NoError(suite.container.Terminate(context.Background()))
	}
}

func (suite *OrderRepositoryIntegrationTestSuite) TestAdd() {
	ctx := context.Background()

	suite.Run("should persist the frozen snapshot and the first history entry", func() {
		o := suite.newOrder("ORD-0001")
		suite.tracker.On("TrackAggregate", o.ID(), o).Once()

		suite.Require().NoError(suite.repository.Add(ctx, o))

		stored, err := suite.repository.Get(ctx, o.ID())
		suite.Require().NoError(err)
		suite.Equal(o.Number(), stored.Number())
		suite.Equal(order.Pending, stored.Status())
		suite.True(o.Total().Equal(stored.Total()))
		suite.Require().Len(stored.Lines(), 2)
		suite.Equal("Salmon fillet", stored.Lines()[0].ProductName())
		suite.Len(stored.Lines()[0].AddOns(), 1)
		suite.Equal(o.Address().Zip(), stored.Address().Zip())

		history, err := suite.repository.History(ctx, o.ID())
		suite.Require().NoError(err)
		suite.Require().Len(history, 1)
		suite.Equal(order.Pending, history[0].To)
		suite.Empty(o.PendingHistory())
		suite.tracker.AssertExpectations(suite.T())
	})

	suite.Run("should reject a duplicate order number", func() {
		first := suite.newOrder("ORD-0002")
		second := suite.newOrder("ORD-0002")
		suite.tracker.On("TrackAggregate", first.ID(), first).Once()

		suite.Require().NoError(suite.repository.Add(ctx, first))
		err := suite.repository.Add(ctx, second)

		suite.Require().ErrorIs(err, errs.ErrAlreadyExists)
	})
}

func (suite *OrderRepositoryIntegrationTestSuite) TestUpdate() {
	ctx := context.Background()

	suite.Run("should store the new status and append history", func() {
		o := suite.newOrder("ORD-0100")
		suite.tracker.On("TrackAggregate", o.ID(), o).Twice()
		suite.Require().NoError(suite.repository.Add(ctx, o))

		suite.Require().NoError(o.Cancel(kernel.SystemActor("test"), "store closed", time.Now()))
		suite.Require().NoError(suite.repository.Update(ctx, o))

		stored, err := suite.repository.Get(ctx, o.ID())
		suite.Require().NoError(err)
		suite.Equal(order.Cancelled, stored.Status())
		suite.Equal("store closed", stored.CancellationReason())
		suite.Equal(1, stored.Version())

		history, err := suite.repository.History(ctx, o.ID())
		suite.Require().NoError(err)
		suite.Require().Len(history, 2)
		suite.Equal(order.Pending, history[1].From)
		suite.Equal(order.Cancelled, history[1].To)
	})

	suite.Run("should fail with a conflict when the stored version moved on", func() {
		o := suite.newOrder("ORD-0101")
		suite.tracker.On("TrackAggregate", o.ID(), o).Once()
		suite.Require().NoError(suite.repository.Add(ctx, o))

		first, err := suite.repository.Get(ctx, o.ID())
		suite.Require().NoError(err)
		second, err := suite.repository.Get(ctx, o.ID())
		suite.Require().NoError(err)
		suite.tracker.On("TrackAggregate", first.ID(), first).Once()

		suite.Require().NoError(first.Cancel(kernel.SystemActor("test"), "first", time.Now()))
		suite.Require().NoError(suite.repository.Update(ctx, first))

		suite.Require().NoError(second.Cancel(kernel.SystemActor("test"), "second", time.Now()))
		err = suite.repository.Update(ctx, second)

		suite.Require().ErrorIs(err, errs.ErrConflict)
	})
}

func (suite *OrderRepositoryIntegrationTestSuite) TestGet() {
	suite.Run("should return not found for an unknown id", func() {
		_, err := suite.repository.Get(context.Background(), kernel.NewUUID())

		suite.Require().ErrorIs(err, errs.ErrObjectNotFound)
	})
}

func (suite *OrderRepositoryIntegrationTestSuite) newOrder(number string) *order.Order {
	location, err := kernel.NewGeoPoint(12.9716, 77.5946)
	suite.Require().NoError(err)
	address, err := cart.NewAddress("12 Harbour Road", "", "Bengaluru", "560001", location)
	suite.Require().NoError(err)

	addOn, err := cart.NewAddOn(kernel.NewUUID(), "Lemon butter", 1, decimal.RequireFromString("30.00"))
	suite.Require().NoError(err)
	salmon, err := cart.NewLineItem(kernel.NewUUID(), "Salmon fillet", 2, decimal.RequireFromString("450.00"), []cart.AddOn{addOn}, "skin off")
	suite.Require().NoError(err)
	prawns, err := cart.NewLineItem(kernel.NewUUID(), "Tiger prawns", 1, decimal.RequireFromString("320.00"), nil, "")
	suite.Require().NoError(err)

	snapshot, err := cart.NewSnapshot(
		kernel.NewUUID(), kernel.NewUUID(),
		address,
		[]cart.LineItem{salmon, prawns},
		cart.Charges{DeliveryFee: decimal.RequireFromString("40.00"), Tax: decimal.RequireFromString("62.50")},
		"ring the bell",
		time.Now(),
	)
	suite.Require().NoError(err)

	customer, err := kernel.NewActor("customer-1", kernel.RoleCustomer)
	suite.Require().NoError(err)
	o, err := order.NewOrder(kernel.NewUUID(), number, snapshot, customer, time.Now())
	suite.Require().NoError(err)
	return o
}

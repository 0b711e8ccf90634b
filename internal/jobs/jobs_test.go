package jobs_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"fulfillment/internal/adapters/out/catalog"
	"fulfillment/internal/adapters/out/distance"
	"fulfillment/internal/adapters/out/events"
	"fulfillment/internal/adapters/out/gateway"
	"fulfillment/internal/adapters/out/memory"
	cartapp "fulfillment/internal/core/application/cart"
	"fulfillment/internal/core/application/ledger"
	"fulfillment/internal/core/application/usecases/commands"
	"fulfillment/internal/core/application/usecases/queries"
	"fulfillment/internal/core/domain/model/delivery"
	"fulfillment/internal/core/domain/model/inventory"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/core/domain/model/payment"
	"fulfillment/internal/core/domain/model/wallet"
	"fulfillment/internal/core/domain/services"
	"fulfillment/internal/core/ports"
	"fulfillment/internal/jobs"
	"fulfillment/internal/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zaptest"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type MockDispatcher struct{ mock.Mock }

func (m *MockDispatcher) Dispatch(ctx context.Context, orderID kernel.UUID) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

type env struct {
	uow       ports.UnitOfWorkFactory
	carts     *catalog.MemoryCartSource
	clock     *clock
	logger    *slog.Logger
	metrics   *metrics.Metrics
	bus       *events.Bus
	inventory *ledger.Inventory
	wallets   *ledger.Wallet
	policy    commands.DispatchPolicy
	catalog   *catalog.StaticCatalog

	createOrder commands.CreateOrderCommandHandler
	initiate    commands.InitiatePaymentCommandHandler

	storeID    kernel.UUID
	productID  kernel.UUID
	customerID kernel.UUID
	customer   kernel.Actor
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		uow:        memory.NewUnitOfWorkFactory(memory.NewStore()),
		carts:      catalog.NewMemoryCartSource(),
		catalog:    catalog.NewStaticCatalog(),
		clock:      &clock{now: time.Date(2024, 5, 2, 7, 0, 0, 0, time.UTC)},
		logger:     slog.New(zapslog.NewHandler(zaptest.NewLogger(t).Core())),
		metrics:    metrics.New(prometheus.NewRegistry()),
		storeID:    kernel.NewUUID(),
		productID:  kernel.NewUUID(),
		customerID: kernel.NewUUID(),
		policy:     commands.DefaultDispatchPolicy(),
	}
	e.bus = events.NewBus(e.logger, e.metrics)

	var err error
	e.customer, err = kernel.NewActor(e.customerID.String(), kernel.RoleCustomer)
	require.NoError(t, err)
	e.inventory, err = ledger.NewInventory(15*time.Minute, e.logger, e.metrics)
	require.NoError(t, err)
	e.wallets, err = ledger.NewWallet(e.logger, e.metrics)
	require.NoError(t, err)
	methods, err := payment.NewMethods(payment.DefaultMethods())
	require.NoError(t, err)
	location, err := kernel.NewGeoPoint(19.0760, 72.8777)
	require.NoError(t, err)

	e.catalog.PutStore(ports.Store{
		ID: e.storeID, Name: "Bandra Fresh", Active: true, Location: location,
		DeliveryFee: decimal.RequireFromString("40.00"), MinOrderAmount: decimal.RequireFromString("100.00"),
	})
	e.catalog.PutCoverage(ports.Coverage{StoreID: e.storeID, Zip: "400050", Active: true})
	e.catalog.PutProduct(ports.StoreProduct{
		ID: e.productID, StoreID: e.storeID, Name: "Pomfret",
		Price: decimal.RequireFromString("380.00"), Available: true,
	})
	s, err := inventory.NewStock(e.productID, e.storeID, 20)
	require.NoError(t, err)
	require.NoError(t, e.uow.Create().StockRepository().Add(t.Context(), s))

	aggregator, err := cartapp.NewAggregator(e.catalog, e.carts)
	require.NoError(t, err)
	e.createOrder = commands.NewCreateOrderCommandHandler(e.uow, aggregator, e.inventory, e.carts, e.bus, e.clock, e.logger, e.metrics)
	e.initiate = commands.NewInitiatePaymentCommandHandler(
		e.uow, gateway.NewSandboxGateway(), e.wallets, methods, 3, e.bus, e.clock, e.logger, e.metrics)
	return e
}

func (e *env) placeOrder(t *testing.T) *order.Order {
	t.Helper()
	require.NoError(t, e.carts.Save(t.Context(), ports.Cart{
		CustomerID: e.customerID,
		StoreID:    e.storeID,
		Address:    ports.DeliveryAddress{Line1: "Hill Road", City: "Mumbai", Zip: "400050"},
		Items:      []ports.CartItem{{StoreProductID: e.productID, Quantity: 1}},
	}))
	cmd, err := commands.NewCreateOrderCommand(e.customerID, e.storeID, e.customer)
	require.NoError(t, err)
	o, err := e.createOrder.Handle(t.Context(), cmd)
	require.NoError(t, err)
	return o
}

func (e *env) pay(t *testing.T, orderID kernel.UUID, method payment.MethodType) {
	t.Helper()
	cmd, err := commands.NewInitiatePaymentCommand(orderID, method, e.customer)
	require.NoError(t, err)
	_, err = e.initiate.Handle(t.Context(), cmd)
	require.NoError(t, err)
}

func (e *env) order(t *testing.T, id kernel.UUID) *order.Order {
	t.Helper()
	o, err := e.uow.Create().OrderRepository().Get(t.Context(), id)
	require.NoError(t, err)
	return o
}

func (e *env) cancelHandler() commands.CancelOrderCommandHandler {
	return commands.NewCancelOrderCommandHandler(e.uow, e.inventory, e.bus, e.clock, e.logger, e.metrics)
}

func TestReservationExpiryJob_Run(t *testing.T) {
	t.Run("should cancel orders whose hold lapsed before payment", func(t *testing.T) {
		e := newEnv(t)
		o := e.placeOrder(t)
		e.clock.Advance(16 * time.Minute)
		job := jobs.NewReservationExpiryJob(
			commands.NewExpireReservationsCommandHandler(e.uow, e.inventory, e.clock, e.logger),
			e.cancelHandler(), e.logger)

		job.Run(t.Context())

		stored := e.order(t, o.ID())
		assert.Equal(t, order.Cancelled, stored.Status())
		assert.Equal(t, "reservation_expired", stored.CancellationReason())
		s, err := e.uow.Create().StockRepository().Get(t.Context(), e.productID)
		require.NoError(t, err)
		assert.Equal(t, 0, s.ReservedQuantity())
	})

	t.Run("should keep an order paid from the wallet", func(t *testing.T) {
		e := newEnv(t)
		credit, err := commands.NewCreditWalletCommand(e.customerID, decimal.RequireFromString("1000.00"), "refund credit", "credit-1")
		require.NoError(t, err)
		_, err = commands.NewCreditWalletCommandHandler(e.uow, e.wallets, e.clock).Handle(t.Context(), credit)
		require.NoError(t, err)
		o := e.placeOrder(t)
		e.pay(t, o.ID(), payment.MethodWallet)
		e.clock.Advance(16 * time.Minute)
		job := jobs.NewReservationExpiryJob(
			commands.NewExpireReservationsCommandHandler(e.uow, e.inventory, e.clock, e.logger),
			e.cancelHandler(), e.logger)

		job.Run(t.Context())

		stored := e.order(t, o.ID())
		assert.Equal(t, order.Pending, stored.Status())
		assert.Equal(t, order.PaymentPaid, stored.PaymentStatus())
	})

	t.Run("should leave fresh holds alone", func(t *testing.T) {
		e := newEnv(t)
		o := e.placeOrder(t)
		e.clock.Advance(5 * time.Minute)
		job := jobs.NewReservationExpiryJob(
			commands.NewExpireReservationsCommandHandler(e.uow, e.inventory, e.clock, e.logger),
			e.cancelHandler(), e.logger)

		job.Run(t.Context())

		assert.Equal(t, order.Pending, e.order(t, o.ID()).Status())
	})
}

func TestAssignmentTimeoutJob_Run(t *testing.T) {
	e := newEnv(t)
	o := e.placeOrder(t)
	e.pay(t, o.ID(), payment.MethodCashOnDelivery)
	confirm, err := commands.NewConfirmOrderCommand(o.ID(), kernel.SystemActor("test"))
	require.NoError(t, err)
	require.NoError(t, commands.NewConfirmOrderCommandHandler(e.uow, e.inventory, e.bus, e.clock, e.metrics).Handle(t.Context(), confirm))

	agent, err := delivery.NewAgent(kernel.NewUUID(), e.storeID, "M-4", "Sameer")
	require.NoError(t, err)
	require.NoError(t, agent.ChangeStatus(delivery.AgentActive))
	point, err := kernel.NewGeoPoint(19.0700, 72.8700)
	require.NoError(t, err)
	require.NoError(t, agent.UpdateLocation(point, e.clock.Now()))
	require.NoError(t, e.uow.Create().AgentRepository().Add(t.Context(), agent))

	estimator, err := distance.NewStraightLineEstimator(20)
	require.NoError(t, err)
	assign, err := commands.NewAssignAgentCommand(o.ID())
	require.NoError(t, err)
	a, err := commands.NewAssignAgentCommandHandler(
		e.uow, e.catalog, estimator, services.NewAgentDispatcher(), e.policy,
		e.bus, e.clock, e.logger, e.metrics).Handle(t.Context(), assign)
	require.NoError(t, err)

	job := jobs.NewAssignmentTimeoutJob(commands.NewTimeoutAssignmentsCommandHandler(e.uow, e.bus, e.clock, e.logger), e.logger)

	job.Run(t.Context())
	stored, err := e.uow.Create().AssignmentRepository().Get(t.Context(), a.ID())
	require.NoError(t, err)
	assert.Equal(t, delivery.AssignmentAssigned, stored.Status(), "the offer is still inside its window")

	e.clock.Advance(e.policy.ResponseWindow + time.Second)
	job.Run(t.Context())

	stored, err = e.uow.Create().AssignmentRepository().Get(t.Context(), a.ID())
	require.NoError(t, err)
	assert.Equal(t, delivery.AssignmentCancelled, stored.Status())
	assert.Equal(t, delivery.ReasonResponseTimeout, stored.Reason())
	freed, err := e.uow.Create().AgentRepository().Get(t.Context(), agent.ID())
	require.NoError(t, err)
	assert.True(t, freed.IsFree())
	assert.Nil(t, e.order(t, o.ID()).ActiveAssignmentID())
}

func TestDispatchRetryJob_Run(t *testing.T) {
	e := newEnv(t)
	ctx := t.Context()
	now := e.clock.Now()
	repo := e.uow.Create().DispatchRequestRepository()

	due, err := delivery.NewDispatchRequest(kernel.NewUUID(), e.storeID, now.Add(-time.Minute))
	require.NoError(t, err)
	failing, err := delivery.NewDispatchRequest(kernel.NewUUID(), e.storeID, now.Add(-2*time.Minute))
	require.NoError(t, err)
	later, err := delivery.NewDispatchRequest(kernel.NewUUID(), e.storeID, now.Add(time.Minute))
	require.NoError(t, err)
	exhausted, err := delivery.NewDispatchRequest(kernel.NewUUID(), e.storeID, now.Add(-time.Minute))
	require.NoError(t, err)
	exhausted.RecordFailure(errors.New("no agent"), time.Minute, 1, now)
	for _, r := range []*delivery.DispatchRequest{due, failing, later, exhausted} {
		require.NoError(t, repo.Save(ctx, r))
	}

	dispatcher := new(MockDispatcher)
	mock.InOrder(
		dispatcher.On("Dispatch", mock.Anything, failing.OrderID()).Return(errors.New("catalog unavailable")).Once(),
		dispatcher.On("Dispatch", mock.Anything, due.OrderID()).Return(nil).Once(),
	)
	job := jobs.NewDispatchRetryJob(queries.NewGetDueDispatchesQueryHandler(e.uow, e.clock), dispatcher, e.logger)

	job.Run(ctx)

	dispatcher.AssertExpectations(t)
	dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, later.OrderID())
	dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, exhausted.OrderID())
}

func TestWalletReconcileJob_Run(t *testing.T) {
	e := newEnv(t)
	reg := prometheus.NewRegistry()
	wallets, err := ledger.NewWallet(e.logger, metrics.New(reg))
	require.NoError(t, err)
	credit := commands.NewCreditWalletCommandHandler(e.uow, wallets, e.clock)

	healthy, drifted := kernel.NewUUID(), kernel.NewUUID()
	for _, customerID := range []kernel.UUID{healthy, drifted} {
		cmd, err := commands.NewCreditWalletCommand(customerID, decimal.RequireFromString("300.00"), "top up", "topup-"+customerID.String())
		require.NoError(t, err)
		_, err = credit.Handle(t.Context(), cmd)
		require.NoError(t, err)
	}

	// The balance moves but the transaction never reaches the log.
	repo := e.uow.Create().WalletRepository()
	w, err := repo.GetByCustomer(t.Context(), drifted)
	require.NoError(t, err)
	_, err = w.Apply(kernel.NewUUID(), wallet.Entry{
		Type:           wallet.TransactionCredit,
		Amount:         decimal.RequireFromString("50.00"),
		IdempotencyKey: "lost-entry",
	}, e.clock.Now())
	require.NoError(t, err)
	require.NoError(t, repo.Update(t.Context(), w))

	job := jobs.NewWalletReconcileJob(commands.NewReconcileWalletsCommandHandler(e.uow, wallets, e.logger), e.logger)

	result := job.Run(t.Context())

	assert.Equal(t, 2, result.Checked)
	require.Len(t, result.Mismatched, 1)
	assert.True(t, result.Mismatched[0].IsEqual(drifted))
	count, err := testutil.GatherAndCount(reg, "fulfillment_invariant_violations_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestJobManager_StartAll(t *testing.T) {
	e := newEnv(t)
	manager := jobs.NewJobManager(
		jobs.NewReservationExpiryJob(
			commands.NewExpireReservationsCommandHandler(e.uow, e.inventory, e.clock, e.logger),
			e.cancelHandler(), e.logger),
		jobs.NewAssignmentTimeoutJob(commands.NewTimeoutAssignmentsCommandHandler(e.uow, e.bus, e.clock, e.logger), e.logger),
		jobs.NewDispatchRetryJob(queries.NewGetDueDispatchesQueryHandler(e.uow, e.clock), new(MockDispatcher), e.logger),
		jobs.NewWalletReconcileJob(commands.NewReconcileWalletsCommandHandler(e.uow, e.wallets, e.logger), e.logger),
	)

	require.NoError(t, manager.StartAll())
	manager.StopAll()
}

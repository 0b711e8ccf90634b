package commands_test

import (
	"context"
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
	"fulfillment/internal/core/domain/model/delivery"
	"fulfillment/internal/core/domain/model/inventory"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/core/domain/model/payment"
	"fulfillment/internal/core/domain/model/wallet"
	"fulfillment/internal/core/domain/services"
	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zaptest"
)

const (
	serviceZip      = "560001"
	salmonStock     = 10
	prawnsStock     = 1
	reservationTTL  = 15 * time.Minute
	agentSpeedKmh   = 20
	responseWindow  = 2 * time.Minute
	freshnessWindow = 5 * time.Minute
)

// fixedClock is a settable ports.Clock.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recorder collects the names of published events.
type recorder struct {
	mu    sync.Mutex
	names []string
}

func (r *recorder) handle(_ context.Context, event kernel.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, event.EventName())
	return nil
}

func (r *recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

// fixture is one store with fish on the shelf, served over the in-memory adapters.
// A delivery of two salmon fillets costs exactly 1000.00.
type fixture struct {
	uow       ports.UnitOfWorkFactory
	catalog   *catalog.StaticCatalog
	carts     *catalog.MemoryCartSource
	gateway   *gateway.SandboxGateway
	estimator ports.DistanceEstimator
	clock     *fixedClock
	logger    *slog.Logger
	metrics   *metrics.Metrics
	bus       *events.Bus
	events    *recorder
	inventory *ledger.Inventory
	wallets   *ledger.Wallet
	methods   payment.Methods
	policy    commands.DispatchPolicy

	storeID       kernel.UUID
	storeLocation kernel.GeoPoint
	salmonID      kernel.UUID
	prawnsID      kernel.UUID
	customerID    kernel.UUID
	customer      kernel.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		uow:        memory.NewUnitOfWorkFactory(memory.NewStore()),
		catalog:    catalog.NewStaticCatalog(),
		carts:      catalog.NewMemoryCartSource(),
		gateway:    gateway.NewSandboxGateway(),
		clock:      &fixedClock{now: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)},
		logger:     slog.New(zapslog.NewHandler(zaptest.NewLogger(t).Core())),
		metrics:    metrics.New(prometheus.NewRegistry()),
		events:     &recorder{},
		storeID:    kernel.NewUUID(),
		salmonID:   kernel.NewUUID(),
		prawnsID:   kernel.NewUUID(),
		customerID: kernel.NewUUID(),
	}
	f.bus = events.NewBus(f.logger, f.metrics)
	f.bus.SubscribeAll(f.events.handle)

	var err error
	f.storeLocation, err = kernel.NewGeoPoint(12.9716, 77.5946)
	require.NoError(t, err)
	f.customer, err = kernel.NewActor(f.customerID.String(), kernel.RoleCustomer)
	require.NoError(t, err)
	f.inventory, err = ledger.NewInventory(reservationTTL, f.logger, f.metrics)
	require.NoError(t, err)
	f.wallets, err = ledger.NewWallet(f.logger, f.metrics)
	require.NoError(t, err)
	f.methods, err = payment.NewMethods(payment.DefaultMethods())
	require.NoError(t, err)
	f.estimator, err = distance.NewStraightLineEstimator(agentSpeedKmh)
	require.NoError(t, err)

	f.policy = commands.DefaultDispatchPolicy()
	f.policy.ResponseWindow = responseWindow
	f.policy.FreshnessWindow = freshnessWindow
	f.policy.MaxAttempts = 2

	f.catalog.PutStore(ports.Store{
		ID:             f.storeID,
		Name:           "Koramangala Fresh",
		Active:         true,
		Location:       f.storeLocation,
		DeliveryFee:    decimal.RequireFromString("55.00"),
		MinOrderAmount: decimal.RequireFromString("200.00"),
		TaxRate:        decimal.RequireFromString("5"),
	})
	f.catalog.PutCoverage(ports.Coverage{StoreID: f.storeID, Zip: serviceZip, Active: true})
	f.catalog.PutProduct(ports.StoreProduct{
		ID: f.salmonID, StoreID: f.storeID, Name: "Salmon fillet",
		Price: decimal.RequireFromString("450.00"), Available: true, MaxQuantityPerOrder: 8,
	})
	f.catalog.PutProduct(ports.StoreProduct{
		ID: f.prawnsID, StoreID: f.storeID, Name: "Tiger prawns",
		Price: decimal.RequireFromString("300.00"), Available: true,
	})

	f.seedStock(t, f.salmonID, salmonStock)
	f.seedStock(t, f.prawnsID, prawnsStock)
	return f
}

func (f *fixture) seedStock(t *testing.T, storeProductID kernel.UUID, qty int) {
	t.Helper()
	s, err := inventory.NewStock(storeProductID, f.storeID, qty)
	require.NoError(t, err)
	require.NoError(t, f.uow.Create().StockRepository().Add(t.Context(), s))
}

func (f *fixture) createOrderHandler() commands.CreateOrderCommandHandler {
	aggregator, err := cartapp.NewAggregator(f.catalog, f.carts)
	if err != nil {
		panic(err)
	}
	return commands.NewCreateOrderCommandHandler(
		f.uow, aggregator, f.inventory, f.carts, f.bus, f.clock, f.logger, f.metrics)
}

func (f *fixture) initiatePaymentHandler() commands.InitiatePaymentCommandHandler {
	return commands.NewInitiatePaymentCommandHandler(
		f.uow, f.gateway, f.wallets, f.methods, 3, f.bus, f.clock, f.logger, f.metrics)
}

func (f *fixture) capturePaymentHandler() commands.CapturePaymentCommandHandler {
	return commands.NewCapturePaymentCommandHandler(f.uow, f.bus, f.clock, f.logger, f.metrics)
}

func (f *fixture) refundPaymentHandler() commands.RefundPaymentCommandHandler {
	return commands.NewRefundPaymentCommandHandler(f.uow, f.gateway, f.wallets, f.bus, f.clock, f.logger, f.metrics)
}

func (f *fixture) confirmHandler() commands.ConfirmOrderCommandHandler {
	return commands.NewConfirmOrderCommandHandler(f.uow, f.inventory, f.bus, f.clock, f.metrics)
}

func (f *fixture) advanceHandler() commands.AdvanceOrderCommandHandler {
	return commands.NewAdvanceOrderCommandHandler(f.uow, f.bus, f.clock, f.logger, f.metrics)
}

func (f *fixture) cancelHandler() commands.CancelOrderCommandHandler {
	return commands.NewCancelOrderCommandHandler(f.uow, f.inventory, f.bus, f.clock, f.logger, f.metrics)
}

func (f *fixture) refundOrderHandler() commands.RefundOrderCommandHandler {
	return commands.NewRefundOrderCommandHandler(f.uow, f.inventory, f.bus, f.clock, f.metrics)
}

func (f *fixture) assignHandler() commands.AssignAgentCommandHandler {
	return commands.NewAssignAgentCommandHandler(
		f.uow, f.catalog, f.estimator, services.NewAgentDispatcher(), f.policy,
		f.bus, f.clock, f.logger, f.metrics)
}

// placeOrder puts items in the customer's cart and turns it into an order.
func (f *fixture) placeOrder(t *testing.T, items ...ports.CartItem) (*order.Order, error) {
	t.Helper()
	if len(items) == 0 {
		items = []ports.CartItem{{StoreProductID: f.salmonID, Quantity: 2}}
	}
	require.NoError(t, f.carts.Save(t.Context(), ports.Cart{
		CustomerID: f.customerID,
		StoreID:    f.storeID,
		Address:    ports.DeliveryAddress{Line1: "4th Block", City: "Bengaluru", Zip: serviceZip},
		Items:      items,
	}))

	cmd, err := commands.NewCreateOrderCommand(f.customerID, f.storeID, f.customer)
	require.NoError(t, err)
	return f.createOrderHandler().Handle(t.Context(), cmd)
}

func (f *fixture) mustPlaceOrder(t *testing.T, items ...ports.CartItem) *order.Order {
	t.Helper()
	o, err := f.placeOrder(t, items...)
	require.NoError(t, err)
	return o
}

func (f *fixture) pay(t *testing.T, orderID kernel.UUID, method payment.MethodType) (commands.InitiatePaymentResult, error) {
	t.Helper()
	cmd, err := commands.NewInitiatePaymentCommand(orderID, method, f.customer)
	require.NoError(t, err)
	return f.initiatePaymentHandler().Handle(t.Context(), cmd)
}

func (f *fixture) callback(t *testing.T, gatewayRef string, status ports.CallbackStatus) (*payment.Payment, error) {
	t.Helper()
	cb := ports.GatewayCallback{
		GatewayRef: gatewayRef,
		Status:     status,
		RawPayload: `{"event":"payment.` + string(status) + `"}`,
	}
	if status == ports.CallbackSuccess {
		cb.GatewayPaymentID = "pay_" + gatewayRef
	} else {
		cb.FailureCode = "card_declined"
		cb.FailureReason = "issuer declined"
	}
	cmd, err := commands.NewCapturePaymentCommand(cb)
	require.NoError(t, err)
	return f.capturePaymentHandler().Handle(t.Context(), cmd)
}

// paidOrder places an order and captures a UPI payment for it.
func (f *fixture) paidOrder(t *testing.T) (*order.Order, *payment.Payment) {
	t.Helper()
	o := f.mustPlaceOrder(t)
	res, err := f.pay(t, o.ID(), payment.MethodUPI)
	require.NoError(t, err)
	p, err := f.callback(t, res.Payment.GatewayRef(), ports.CallbackSuccess)
	require.NoError(t, err)
	return o, p
}

func (f *fixture) confirm(t *testing.T, orderID kernel.UUID) error {
	t.Helper()
	cmd, err := commands.NewConfirmOrderCommand(orderID, kernel.SystemActor("test"))
	require.NoError(t, err)
	return f.confirmHandler().Handle(t.Context(), cmd)
}

// confirmedOrder is a paid order whose stock is committed.
func (f *fixture) confirmedOrder(t *testing.T) (*order.Order, *payment.Payment) {
	t.Helper()
	o, p := f.paidOrder(t)
	require.NoError(t, f.confirm(t, o.ID()))
	return f.order(t, o.ID()), p
}

func (f *fixture) advance(t *testing.T, orderID kernel.UUID, target order.Status, role kernel.ActorRole) error {
	t.Helper()
	actor, err := kernel.NewActor("staff-1", role)
	require.NoError(t, err)
	cmd, err := commands.NewAdvanceOrderCommand(orderID, target, actor, "", false)
	require.NoError(t, err)
	return f.advanceHandler().Handle(t.Context(), cmd)
}

// addAgent registers an active agent of the store standing at lat, lng.
func (f *fixture) addAgent(t *testing.T, code string, lat, lng float64) *delivery.Agent {
	t.Helper()
	a, err := delivery.NewAgent(kernel.NewUUID(), f.storeID, code, "Agent "+code)
	require.NoError(t, err)
	require.NoError(t, a.ChangeStatus(delivery.AgentActive))
	point, err := kernel.NewGeoPoint(lat, lng)
	require.NoError(t, err)
	require.NoError(t, a.UpdateLocation(point, f.clock.Now()))
	require.NoError(t, f.uow.Create().AgentRepository().Add(t.Context(), a))
	return a
}

func (f *fixture) assign(t *testing.T, orderID kernel.UUID, exclude ...kernel.UUID) (*delivery.Assignment, error) {
	t.Helper()
	cmd, err := commands.NewAssignAgentCommand(orderID, exclude...)
	require.NoError(t, err)
	return f.assignHandler().Handle(t.Context(), cmd)
}

func (f *fixture) order(t *testing.T, id kernel.UUID) *order.Order {
	t.Helper()
	o, err := f.uow.Create().OrderRepository().Get(t.Context(), id)
	require.NoError(t, err)
	return o
}

func (f *fixture) payment(t *testing.T, id kernel.UUID) *payment.Payment {
	t.Helper()
	p, err := f.uow.Create().PaymentRepository().Get(t.Context(), id)
	require.NoError(t, err)
	return p
}

func (f *fixture) attempts(t *testing.T, paymentID kernel.UUID) []payment.Attempt {
	t.Helper()
	attempts, err := f.uow.Create().PaymentRepository().Attempts(t.Context(), paymentID)
	require.NoError(t, err)
	return attempts
}

func (f *fixture) stock(t *testing.T, storeProductID kernel.UUID) *inventory.Stock {
	t.Helper()
	s, err := f.uow.Create().StockRepository().Get(t.Context(), storeProductID)
	require.NoError(t, err)
	return s
}

func (f *fixture) reservations(t *testing.T, orderID kernel.UUID) []*inventory.Reservation {
	t.Helper()
	rs, err := f.uow.Create().ReservationRepository().ListByOrder(t.Context(), orderID)
	require.NoError(t, err)
	return rs
}

func (f *fixture) agent(t *testing.T, id kernel.UUID) *delivery.Agent {
	t.Helper()
	a, err := f.uow.Create().AgentRepository().Get(t.Context(), id)
	require.NoError(t, err)
	return a
}

func (f *fixture) assignment(t *testing.T, id kernel.UUID) *delivery.Assignment {
	t.Helper()
	a, err := f.uow.Create().AssignmentRepository().Get(t.Context(), id)
	require.NoError(t, err)
	return a
}

func (f *fixture) wallet(t *testing.T) *wallet.Wallet {
	t.Helper()
	w, err := f.uow.Create().WalletRepository().GetByCustomer(t.Context(), f.customerID)
	require.NoError(t, err)
	return w
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

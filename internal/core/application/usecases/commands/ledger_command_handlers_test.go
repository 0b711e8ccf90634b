package commands_test

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"fulfillment/internal/core/application/usecases/commands"
	"fulfillment/internal/core/domain/model/inventory"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/core/domain/model/payment"
	"fulfillment/internal/core/domain/model/wallet"
	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStockRepository struct{ mock.Mock }

func (m *MockStockRepository) Add(_ context.Context, _ *inventory.Stock) error { return nil }
func (m *MockStockRepository) Update(ctx context.Context, s *inventory.Stock) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}
func (m *MockStockRepository) Get(_ context.Context, _ kernel.UUID) (*inventory.Stock, error) {
	return nil, errors.New("not implemented in mock")
}
func (m *MockStockRepository) GetForUpdate(ctx context.Context, ids []kernel.UUID) ([]*inventory.Stock, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]*inventory.Stock), args.Error(1)
}

// MockStockUoW only hands out the stock repository; the other repositories are
// never reached by the restock path.
type MockStockUoW struct {
	mock.Mock
	ports.UnitOfWork
}

func (m *MockStockUoW) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockStockUoW) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockStockUoW) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockStockUoW) CommittedEvents() []kernel.DomainEvent { return nil }
func (m *MockStockUoW) StockRepository() ports.StockRepository {
	args := m.Called()
	return args.Get(0).(ports.StockRepository)
}

type MockUoWFactory struct{ mock.Mock }

func (m *MockUoWFactory) Create() ports.UnitOfWork {
	args := m.Called()
	return args.Get(0).(ports.UnitOfWork)
}

func newRestockHandler(t *testing.T, factory ports.UnitOfWorkFactory) commands.RestockCommandHandler {
	t.Helper()
	f := newFixture(t)
	return commands.NewRestockCommandHandler(factory, f.inventory)
}

func TestRestockCommandHandler_Handle_Success(t *testing.T) {
	ctx := t.Context()
	productID := kernel.NewUUID()
	stock, err := inventory.NewStock(productID, kernel.NewUUID(), 3)
	require.NoError(t, err)
	cmd, err := commands.NewRestockCommand(productID, 7)
	require.NoError(t, err)

	repo := new(MockStockRepository)
	uow := new(MockStockUoW)
	mock.InOrder(
		uow.On("Begin", ctx).Return(nil).Once(),
		uow.On("StockRepository").Return(repo).Once(),
		repo.On("GetForUpdate", ctx, []kernel.UUID{productID}).Return([]*inventory.Stock{stock}, nil).Once(),
		uow.On("StockRepository").Return(repo).Once(),
		repo.On("Update", ctx, stock).Return(nil).Once(),
		uow.On("Commit", ctx).Return(nil).Once(),
		uow.On("Rollback", ctx).Return(nil).Once(),
	)
	factory := new(MockUoWFactory)
	factory.On("Create").Return(uow).Once()

	restocked, err := newRestockHandler(t, factory).Handle(ctx, cmd)

	require.NoError(t, err)
	assert.Equal(t, 10, restocked.StockQuantity())
	repo.AssertExpectations(t)
	uow.AssertExpectations(t)
	factory.AssertExpectations(t)
}

func TestRestockCommandHandler_Handle_ValidationError(t *testing.T) {
	factory := new(MockUoWFactory)

	_, err := newRestockHandler(t, factory).Handle(t.Context(), commands.RestockCommand{})

	require.ErrorIs(t, err, commands.ErrRestockCommandIsNotConstructed)
	factory.AssertNotCalled(t, "Create")
}

func TestRestockCommandHandler_Handle_BeginError(t *testing.T) {
	ctx := t.Context()
	cmd, err := commands.NewRestockCommand(kernel.NewUUID(), 1)
	require.NoError(t, err)

	uow := new(MockStockUoW)
	factory := new(MockUoWFactory)
	mock.InOrder(
		factory.On("Create").Return(uow).Once(),
		uow.On("Begin", ctx).Return(errors.New("begin error")).Once(),
	)

	_, err = newRestockHandler(t, factory).Handle(ctx, cmd)

	require.Error(t, err)
	uow.AssertNotCalled(t, "Commit", mock.Anything)
	uow.AssertExpectations(t)
}

func TestRestockCommandHandler_Handle_UnknownProduct(t *testing.T) {
	ctx := t.Context()
	productID := kernel.NewUUID()
	cmd, err := commands.NewRestockCommand(productID, 5)
	require.NoError(t, err)

	repo := new(MockStockRepository)
	uow := new(MockStockUoW)
	mock.InOrder(
		uow.On("Begin", ctx).Return(nil).Once(),
		uow.On("StockRepository").Return(repo).Once(),
		repo.On("GetForUpdate", ctx, []kernel.UUID{productID}).Return([]*inventory.Stock{}, nil).Once(),
		uow.On("Rollback", ctx).Return(nil).Once(),
	)
	factory := new(MockUoWFactory)
	factory.On("Create").Return(uow).Once()

	_, err = newRestockHandler(t, factory).Handle(ctx, cmd)

	require.ErrorIs(t, err, errs.ErrObjectNotFound)
	uow.AssertNotCalled(t, "Commit", mock.Anything)
	uow.AssertExpectations(t)
}

func TestRestockCommandHandler_Handle_UpdateError(t *testing.T) {
	ctx := t.Context()
	productID := kernel.NewUUID()
	stock, err := inventory.NewStock(productID, kernel.NewUUID(), 0)
	require.NoError(t, err)
	cmd, err := commands.NewRestockCommand(productID, 4)
	require.NoError(t, err)

	repo := new(MockStockRepository)
	uow := new(MockStockUoW)
	mock.InOrder(
		uow.On("Begin", ctx).Return(nil).Once(),
		uow.On("StockRepository").Return(repo).Once(),
		repo.On("GetForUpdate", ctx, []kernel.UUID{productID}).Return([]*inventory.Stock{stock}, nil).Once(),
		uow.On("StockRepository").Return(repo).Once(),
		repo.On("Update", ctx, stock).Return(errs.NewConflictError("stock", productID.String())).Once(),
		uow.On("Rollback", ctx).Return(nil).Once(),
	)
	factory := new(MockUoWFactory)
	factory.On("Create").Return(uow).Once()

	_, err = newRestockHandler(t, factory).Handle(ctx, cmd)

	require.ErrorIs(t, err, errs.ErrConflict)
	uow.AssertNotCalled(t, "Commit", mock.Anything)
	repo.AssertExpectations(t)
	uow.AssertExpectations(t)
}

func TestCreditWalletCommandHandler(t *testing.T) {
	t.Run("should open the wallet on the first credit", func(t *testing.T) {
		f := newFixture(t)

		f.creditWallet(t, "250.00", "promo-march")

		w := f.wallet(t)
		assert.True(t, amount("250.00").Equal(w.Balance()))
		assert.Equal(t, 1, w.Sequence())
	})

	t.Run("should apply a replayed key only once", func(t *testing.T) {
		f := newFixture(t)
		cmd, err := commands.NewCreditWalletCommand(f.customerID, amount("250.00"), "top up", "topup-42")
		require.NoError(t, err)
		handler := commands.NewCreditWalletCommandHandler(f.uow, f.wallets, f.clock)

		first, err := handler.Handle(t.Context(), cmd)
		require.NoError(t, err)
		replayed, err := handler.Handle(t.Context(), cmd)
		require.NoError(t, err)

		assert.Equal(t, first.ID(), replayed.ID())
		assert.Equal(t, wallet.TransactionCredit, replayed.Type())
		w := f.wallet(t)
		assert.True(t, amount("250.00").Equal(w.Balance()))
		assert.Equal(t, 1, w.Sequence())
	})

	t.Run("should keep the log consistent with the balance", func(t *testing.T) {
		f := newFixture(t)
		f.creditWallet(t, "1200.00", "topup-1")
		o := f.mustPlaceOrder(t)
		_, err := f.pay(t, o.ID(), payment.MethodWallet)
		require.NoError(t, err)

		uow := f.uow.Create()
		require.NoError(t, uow.Begin(t.Context()))
		defer func() { _ = uow.Rollback(t.Context()) }()
		assert.NoError(t, f.wallets.Reconcile(t.Context(), uow, f.customerID))
	})
}

func TestExpireReservationsCommandHandler(t *testing.T) {
	t.Run("should release only holds past their expiry", func(t *testing.T) {
		f := newFixture(t)
		early := f.mustPlaceOrder(t)
		f.clock.Advance(10 * time.Minute)
		f.customerID = kernel.NewUUID()
		var err error
		f.customer, err = kernel.NewActor(f.customerID.String(), kernel.RoleCustomer)
		require.NoError(t, err)
		late := f.mustPlaceOrder(t)
		f.clock.Advance(6 * time.Minute)

		expired, err := commands.NewExpireReservationsCommandHandler(f.uow, f.inventory, f.clock, f.logger).Handle(t.Context(), 10)

		require.NoError(t, err)
		assert.Equal(t, []kernel.UUID{early.ID()}, expired)
		assert.Equal(t, inventory.ReservationExpired, f.reservations(t, early.ID())[0].Status())
		assert.Equal(t, inventory.ReservationActive, f.reservations(t, late.ID())[0].Status())
		assert.Equal(t, 2, f.stock(t, f.salmonID).ReservedQuantity())
		assert.Equal(t, order.Pending, f.order(t, early.ID()).Status(), "cancelling the order is left to the caller")
	})

	t.Run("should do nothing when no hold is due", func(t *testing.T) {
		f := newFixture(t)
		f.mustPlaceOrder(t)

		expired, err := commands.NewExpireReservationsCommandHandler(f.uow, f.inventory, f.clock, f.logger).Handle(t.Context(), 10)

		require.NoError(t, err)
		assert.Empty(t, expired)
		assert.Equal(t, 2, f.stock(t, f.salmonID).ReservedQuantity())
	})
}

func TestReconcileWalletsCommandHandler(t *testing.T) {
	t.Run("should page through every wallet", func(t *testing.T) {
		f := newFixture(t)
		for i := range 5 {
			f.customerID = kernel.NewUUID()
			f.creditWallet(t, "100.00", "topup-"+strconv.Itoa(i))
		}
		handler := commands.NewReconcileWalletsCommandHandler(f.uow, f.wallets, f.logger)

		result, err := handler.Handle(t.Context(), 2)

		require.NoError(t, err)
		assert.Equal(t, 5, result.Checked)
		assert.Empty(t, result.Mismatched)
	})

	t.Run("should keep going past a wallet that drifted", func(t *testing.T) {
		f := newFixture(t)
		f.creditWallet(t, "400.00", "topup-1")
		drifted := f.customerID
		f.customerID = kernel.NewUUID()
		f.creditWallet(t, "90.00", "topup-2")

		repo := f.uow.Create().WalletRepository()
		w, err := repo.GetByCustomer(t.Context(), drifted)
		require.NoError(t, err)
		_, err = w.Apply(kernel.NewUUID(), wallet.Entry{
			Type:           wallet.TransactionDebit,
			Amount:         amount("40.00"),
			IdempotencyKey: "unlogged-debit",
		}, f.clock.Now())
		require.NoError(t, err)
		require.NoError(t, repo.Update(t.Context(), w))

		result, err := commands.NewReconcileWalletsCommandHandler(f.uow, f.wallets, f.logger).Handle(t.Context(), 1)

		require.NoError(t, err)
		assert.Equal(t, 2, result.Checked)
		require.Len(t, result.Mismatched, 1)
		assert.True(t, result.Mismatched[0].IsEqual(drifted))
	})

	t.Run("should reject an empty batch", func(t *testing.T) {
		f := newFixture(t)

		_, err := commands.NewReconcileWalletsCommandHandler(f.uow, f.wallets, f.logger).Handle(t.Context(), 0)

		assert.ErrorIs(t, err, errs.ErrValueIsOutOfRange)
	})
}

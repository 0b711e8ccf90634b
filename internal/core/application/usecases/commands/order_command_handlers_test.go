package commands_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"fulfillment/internal/core/application/usecases/commands"
	"fulfillment/internal/core/domain/model/inventory"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/core/domain/model/payment"
	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrderCommandHandler(t *testing.T) {
	t.Run("should create a pending order and reserve its stock", func(t *testing.T) {
		f := newFixture(t)

		o, err := f.placeOrder(t)

		require.NoError(t, err)
		assert.Equal(t, order.Pending, o.Status())
		assert.True(t, amount("900.00").Equal(o.Subtotal()))
		assert.True(t, amount("55.00").Equal(o.DeliveryFee()))
		assert.True(t, amount("45.00").Equal(o.Tax()))
		assert.True(t, amount("1000.00").Equal(o.Total()))

		s := f.stock(t, f.salmonID)
		assert.Equal(t, salmonStock, s.StockQuantity())
		assert.Equal(t, 2, s.ReservedQuantity())
		assert.Equal(t, salmonStock-2, s.Available())

		rs := f.reservations(t, o.ID())
		require.Len(t, rs, 1)
		assert.Equal(t, inventory.ReservationActive, rs[0].Status())
		assert.Equal(t, f.clock.Now().Add(reservationTTL), rs[0].ExpiresAt())

		_, err = f.carts.ActiveCart(t.Context(), f.customerID, f.storeID)
		assert.ErrorIs(t, err, errs.ErrObjectNotFound)
		assert.Contains(t, f.events.Names(), order.CreatedEventName)
	})

	t.Run("should leave nothing behind when a line is out of stock", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.placeOrder(t,
			ports.CartItem{StoreProductID: f.salmonID, Quantity: 2},
			ports.CartItem{StoreProductID: f.prawnsID, Quantity: 2},
		)

		var outOfStock *errs.OutOfStockError
		require.ErrorAs(t, err, &outOfStock)
		assert.Equal(t, 2, outOfStock.Requested)
		assert.Equal(t, 1, outOfStock.Available)

		assert.Zero(t, f.stock(t, f.salmonID).ReservedQuantity())
		assert.Zero(t, f.stock(t, f.prawnsID).ReservedQuantity())
		assert.Empty(t, f.events.Names())

		_, err = f.carts.ActiveCart(t.Context(), f.customerID, f.storeID)
		assert.NoError(t, err, "a rejected cart is kept for the customer to fix")
	})

	t.Run("should reject more than the per-order limit of a product", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.placeOrder(t, ports.CartItem{StoreProductID: f.salmonID, Quantity: 9})

		assert.ErrorIs(t, err, errs.ErrValueIsOutOfRange)
		assert.Zero(t, f.stock(t, f.salmonID).ReservedQuantity())
	})

	t.Run("should let only one of two racing carts take the last units", func(t *testing.T) {
		f := newFixture(t)
		handler := f.createOrderHandler()

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			results []error
		)
		for range 2 {
			customerID := kernel.NewUUID()
			actor, err := kernel.NewActor(customerID.String(), kernel.RoleCustomer)
			require.NoError(t, err)
			require.NoError(t, f.carts.Save(t.Context(), ports.Cart{
				CustomerID: customerID,
				StoreID:    f.storeID,
				Address:    ports.DeliveryAddress{Line1: "80 Feet Road", City: "Bengaluru", Zip: serviceZip},
				Items:      []ports.CartItem{{StoreProductID: f.salmonID, Quantity: 6}},
			}))
			cmd, err := commands.NewCreateOrderCommand(customerID, f.storeID, actor)
			require.NoError(t, err)

			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := handler.Handle(t.Context(), cmd)
				mu.Lock()
				results = append(results, err)
				mu.Unlock()
			}()
		}
		wg.Wait()

		succeeded, rejected := 0, 0
		for _, err := range results {
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, errs.ErrOutOfStock):
				rejected++
			}
		}
		assert.Equal(t, 1, succeeded)
		assert.Equal(t, 1, rejected)

		s := f.stock(t, f.salmonID)
		assert.Equal(t, 6, s.ReservedQuantity())
		assert.Equal(t, 4, s.Available())
	})

	t.Run("should reject a command not built by its constructor", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.createOrderHandler().Handle(t.Context(), commands.CreateOrderCommand{})

		assert.ErrorIs(t, err, commands.ErrCreateOrderCommandIsNotConstructed)
	})
}

func TestConfirmOrderCommandHandler(t *testing.T) {
	t.Run("should commit the reserved stock of a paid order", func(t *testing.T) {
		f := newFixture(t)
		o, _ := f.paidOrder(t)

		require.NoError(t, f.confirm(t, o.ID()))

		assert.Equal(t, order.Confirmed, f.order(t, o.ID()).Status())
		s := f.stock(t, f.salmonID)
		assert.Equal(t, salmonStock-2, s.StockQuantity())
		assert.Zero(t, s.ReservedQuantity())
		rs := f.reservations(t, o.ID())
		require.Len(t, rs, 1)
		assert.Equal(t, inventory.ReservationCommitted, rs[0].Status())
	})

	t.Run("should refuse an order without settled payment", func(t *testing.T) {
		f := newFixture(t)
		o := f.mustPlaceOrder(t)

		err := f.confirm(t, o.ID())

		assert.ErrorIs(t, err, errs.ErrInvalidTransition)
		assert.Equal(t, order.Pending, f.order(t, o.ID()).Status())
		assert.Equal(t, 2, f.stock(t, f.salmonID).ReservedQuantity())
	})

	t.Run("should confirm cash on delivery before any money moved", func(t *testing.T) {
		f := newFixture(t)
		o := f.mustPlaceOrder(t)
		res, err := f.pay(t, o.ID(), payment.MethodCashOnDelivery)
		require.NoError(t, err)
		require.Equal(t, payment.StatusPending, res.Payment.Status())

		require.NoError(t, f.confirm(t, o.ID()))

		confirmed := f.order(t, o.ID())
		assert.Equal(t, order.Confirmed, confirmed.Status())
		assert.Equal(t, order.PaymentPending, confirmed.PaymentStatus())
	})

	t.Run("should revive an expired reservation while stock allows", func(t *testing.T) {
		f := newFixture(t)
		o, _ := f.paidOrder(t)
		f.clock.Advance(reservationTTL + time.Minute)
		expired, err := commands.NewExpireReservationsCommandHandler(f.uow, f.inventory, f.clock, f.logger).Handle(t.Context(), 10)
		require.NoError(t, err)
		require.Equal(t, []kernel.UUID{o.ID()}, expired)
		require.Zero(t, f.stock(t, f.salmonID).ReservedQuantity())

		require.NoError(t, f.confirm(t, o.ID()))

		assert.Equal(t, salmonStock-2, f.stock(t, f.salmonID).StockQuantity())
		assert.Equal(t, inventory.ReservationCommitted, f.reservations(t, o.ID())[0].Status())
	})

	t.Run("should fail with out of stock when the expired units were sold", func(t *testing.T) {
		f := newFixture(t)
		first := f.mustPlaceOrder(t, ports.CartItem{StoreProductID: f.prawnsID, Quantity: 1})
		res, err := f.pay(t, first.ID(), payment.MethodUPI)
		require.NoError(t, err)
		_, err = f.callback(t, res.Payment.GatewayRef(), ports.CallbackSuccess)
		require.NoError(t, err)

		f.clock.Advance(reservationTTL + time.Minute)
		_, err = commands.NewExpireReservationsCommandHandler(f.uow, f.inventory, f.clock, f.logger).Handle(t.Context(), 10)
		require.NoError(t, err)
		f.customerID = kernel.NewUUID()
		f.customer, err = kernel.NewActor(f.customerID.String(), kernel.RoleCustomer)
		require.NoError(t, err)
		f.mustPlaceOrder(t, ports.CartItem{StoreProductID: f.prawnsID, Quantity: 1})

		err = f.confirm(t, first.ID())

		assert.ErrorIs(t, err, errs.ErrOutOfStock)
		assert.Equal(t, order.Pending, f.order(t, first.ID()).Status())
		assert.Equal(t, 1, f.stock(t, f.prawnsID).ReservedQuantity())
	})
}

func TestAdvanceOrderCommandHandler(t *testing.T) {
	t.Run("should walk the fulfillment path with the right roles", func(t *testing.T) {
		f := newFixture(t)
		o, _ := f.confirmedOrder(t)

		require.NoError(t, f.advance(t, o.ID(), order.Processing, kernel.RoleStoreOperator))
		require.NoError(t, f.advance(t, o.ID(), order.ReadyForPickup, kernel.RoleStoreOperator))
		require.NoError(t, f.advance(t, o.ID(), order.OutForDelivery, kernel.RoleAgent))
		require.NoError(t, f.advance(t, o.ID(), order.Delivered, kernel.RoleAgent))

		delivered := f.order(t, o.ID())
		assert.Equal(t, order.Delivered, delivered.Status())
		assert.NotNil(t, delivered.DeliveredAt())

		history, err := f.uow.Create().OrderRepository().History(t.Context(), o.ID())
		require.NoError(t, err)
		require.Len(t, history, 6)
		for i, entry := range history {
			assert.Equal(t, i+1, entry.Sequence)
		}
		assert.Equal(t, order.Delivered, history[5].To)
	})

	t.Run("should refuse a role that does not own the stage", func(t *testing.T) {
		f := newFixture(t)
		o, _ := f.confirmedOrder(t)

		err := f.advance(t, o.ID(), order.Processing, kernel.RoleCustomer)

		assert.ErrorIs(t, err, errs.ErrNotPermitted)
		assert.Equal(t, order.Confirmed, f.order(t, o.ID()).Status())
	})

	t.Run("should refuse to skip a stage without override", func(t *testing.T) {
		f := newFixture(t)
		o, _ := f.confirmedOrder(t)

		err := f.advance(t, o.ID(), order.ReadyForPickup, kernel.RoleAdmin)

		assert.ErrorIs(t, err, errs.ErrInvalidTransition)
	})

	t.Run("should let an admin override with an audited note", func(t *testing.T) {
		f := newFixture(t)
		o, _ := f.confirmedOrder(t)
		admin, err := kernel.NewActor("ops-7", kernel.RoleAdmin)
		require.NoError(t, err)
		cmd, err := commands.NewAdvanceOrderCommand(o.ID(), order.Delivered, admin, "handed over at the counter", true)
		require.NoError(t, err)

		require.NoError(t, f.advanceHandler().Handle(t.Context(), cmd))

		history, err := f.uow.Create().OrderRepository().History(t.Context(), o.ID())
		require.NoError(t, err)
		last := history[len(history)-1]
		assert.Equal(t, order.Delivered, last.To)
		assert.True(t, last.Override)
		assert.Equal(t, "handed over at the counter", last.Note)
	})
}

func TestCancelOrderCommandHandler(t *testing.T) {
	cancel := func(t *testing.T, f *fixture, orderID kernel.UUID) error {
		t.Helper()
		cmd, err := commands.NewCancelOrderCommand(orderID, f.customer, "changed my mind")
		require.NoError(t, err)
		return f.cancelHandler().Handle(t.Context(), cmd)
	}

	t.Run("should release the reservation of a pending order", func(t *testing.T) {
		f := newFixture(t)
		o := f.mustPlaceOrder(t)

		require.NoError(t, cancel(t, f, o.ID()))

		cancelled := f.order(t, o.ID())
		assert.Equal(t, order.Cancelled, cancelled.Status())
		assert.Equal(t, "changed my mind", cancelled.CancellationReason())
		assert.Equal(t, salmonStock, f.stock(t, f.salmonID).Available())
		assert.Equal(t, inventory.ReservationReleased, f.reservations(t, o.ID())[0].Status())
	})

	t.Run("should restock committed units of a confirmed order", func(t *testing.T) {
		f := newFixture(t)
		o, _ := f.confirmedOrder(t)
		require.Equal(t, salmonStock-2, f.stock(t, f.salmonID).StockQuantity())

		require.NoError(t, cancel(t, f, o.ID()))

		s := f.stock(t, f.salmonID)
		assert.Equal(t, salmonStock, s.StockQuantity())
		assert.Zero(t, s.ReservedQuantity())
	})

	t.Run("should refuse once the order left the kitchen", func(t *testing.T) {
		f := newFixture(t)
		o, _ := f.confirmedOrder(t)
		require.NoError(t, f.advance(t, o.ID(), order.Processing, kernel.RoleStoreOperator))
		require.NoError(t, f.advance(t, o.ID(), order.ReadyForPickup, kernel.RoleStoreOperator))

		err := cancel(t, f, o.ID())

		assert.ErrorIs(t, err, errs.ErrInvalidTransition)
		assert.Equal(t, salmonStock-2, f.stock(t, f.salmonID).StockQuantity())
	})

	t.Run("should skip an unpaid-only cancellation of a paid order", func(t *testing.T) {
		f := newFixture(t)
		o, _ := f.paidOrder(t)
		cmd, err := commands.NewCancelUnpaidOrderCommand(o.ID(), kernel.SystemActor("test"), "reservation_expired")
		require.NoError(t, err)

		require.NoError(t, f.cancelHandler().Handle(t.Context(), cmd))

		assert.Equal(t, order.Pending, f.order(t, o.ID()).Status())
		assert.Equal(t, 2, f.stock(t, f.salmonID).ReservedQuantity())
	})
}

func TestRefundOrderCommandHandler(t *testing.T) {
	refund := func(t *testing.T, f *fixture, orderID kernel.UUID) error {
		t.Helper()
		cmd, err := commands.NewRefundOrderCommand(orderID, kernel.SystemActor("test"), "delivery_failed")
		require.NoError(t, err)
		return f.refundOrderHandler().Handle(t.Context(), cmd)
	}

	t.Run("should give stock back when goods never left the store", func(t *testing.T) {
		f := newFixture(t)
		o, _ := f.confirmedOrder(t)
		require.NoError(t, f.advance(t, o.ID(), order.Processing, kernel.RoleStoreOperator))

		require.NoError(t, refund(t, f, o.ID()))

		assert.Equal(t, order.Refunded, f.order(t, o.ID()).Status())
		assert.Equal(t, salmonStock, f.stock(t, f.salmonID).StockQuantity())
	})

	t.Run("should keep stock out once the goods are on the road", func(t *testing.T) {
		f := newFixture(t)
		o, _ := f.confirmedOrder(t)
		require.NoError(t, f.advance(t, o.ID(), order.Processing, kernel.RoleStoreOperator))
		require.NoError(t, f.advance(t, o.ID(), order.ReadyForPickup, kernel.RoleStoreOperator))
		require.NoError(t, f.advance(t, o.ID(), order.OutForDelivery, kernel.RoleAgent))

		require.NoError(t, refund(t, f, o.ID()))

		assert.Equal(t, order.Refunded, f.order(t, o.ID()).Status())
		assert.Equal(t, salmonStock-2, f.stock(t, f.salmonID).StockQuantity())
	})

	t.Run("should refuse a terminal order", func(t *testing.T) {
		f := newFixture(t)
		o := f.mustPlaceOrder(t)
		require.NoError(t, refund(t, f, o.ID()))

		err := refund(t, f, o.ID())

		assert.ErrorIs(t, err, errs.ErrInvalidTransition)
	})
}

package memory

import (
	"fulfillment/internal/core/domain/model/delivery"
	"fulfillment/internal/core/domain/model/inventory"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/core/domain/model/payment"
	"fulfillment/internal/core/domain/model/wallet"
)

// The store never hands out the instances it holds. Every read and write goes
// through one of the copy functions below, which rebuild the aggregate from its
// persisted state exactly as a database round trip would: pending history,
// pending attempts and recorded events are not part of that state.

func copyOrder(o *order.Order) (*order.Order, error) {
	return order.RestoreOrder(order.RestoreParams{
		ID:                  o.ID(),
		Number:              o.Number(),
		CustomerID:          o.CustomerID(),
		StoreID:             o.StoreID(),
		Address:             o.Address(),
		Lines:               o.Lines(),
		Subtotal:            o.Subtotal(),
		DeliveryFee:         o.DeliveryFee(),
		Tax:                 o.Tax(),
		Discount:            o.Discount(),
		Total:               o.Total(),
		SpecialInstructions: o.SpecialInstructions(),
		Status:              o.Status(),
		PaymentStatus:       o.PaymentStatus(),
		PaymentMethod:       o.PaymentMethod(),
		ActivePaymentID:     copyID(o.ActivePaymentID()),
		ActiveAssignmentID:  copyID(o.ActiveAssignmentID()),
		CancellationReason:  o.CancellationReason(),
		CreatedAt:           o.CreatedAt(),
		ConfirmedAt:         o.ConfirmedAt(),
		ReadyAt:             o.ReadyAt(),
		OutForDeliveryAt:    o.OutForDeliveryAt(),
		DeliveredAt:         o.DeliveredAt(),
		CancelledAt:         o.CancelledAt(),
		HistorySequence:     o.HistorySequence(),
		Version:             o.Version(),
	})
}

func copyPayment(p *payment.Payment) (*payment.Payment, error) {
	return payment.RestorePayment(payment.RestoreParams{
		ID:               p.ID(),
		Number:           p.Number(),
		OrderID:          p.OrderID(),
		CustomerID:       p.CustomerID(),
		Method:           p.Method(),
		Amount:           p.Amount(),
		Fee:              p.Fee(),
		Total:            p.Total(),
		Refunded:         p.Refunded(),
		Status:           p.Status(),
		GatewayRef:       p.GatewayRef(),
		GatewayPaymentID: p.GatewayPaymentID(),
		FailureCode:      p.FailureCode(),
		FailureReason:    p.FailureReason(),
		CreatedAt:        p.CreatedAt(),
		CompletedAt:      p.CompletedAt(),
		AttemptCount:     p.AttemptCount(),
		Version:          p.Version(),
	})
}

func copyRefund(r *payment.Refund) (*payment.Refund, error) {
	return payment.RestoreRefund(payment.RefundRestoreParams{
		ID:          r.ID(),
		Number:      r.Number(),
		PaymentID:   r.PaymentID(),
		OrderID:     r.OrderID(),
		Amount:      r.Amount(),
		Reason:      r.Reason(),
		RequestedBy: r.RequestedBy(),
		Destination: r.Destination(),
		Status:      r.Status(),
		GatewayRef:  r.GatewayRef(),
		Failure:     r.Failure(),
		CreatedAt:   r.CreatedAt(),
		CompletedAt: r.CompletedAt(),
	})
}

func copyAgent(a *delivery.Agent) (*delivery.Agent, error) {
	return delivery.RestoreAgent(delivery.AgentRestoreParams{
		ID:                     a.ID(),
		StoreID:                a.StoreID(),
		Code:                   a.Code(),
		Name:                   a.Name(),
		Status:                 a.Status(),
		Location:               a.Location(),
		LastLocationUpdate:     a.LastLocationUpdate(),
		ActiveAssignmentID:     copyID(a.ActiveAssignmentID()),
		TotalDeliveries:        a.TotalDeliveries(),
		SuccessfulDeliveries:   a.SuccessfulDeliveries(),
		AverageDeliveryMinutes: a.AverageDeliveryMinutes(),
		AverageRating:          a.AverageRating(),
		RatingCount:            a.RatingCount(),
		Version:                a.Version(),
	})
}

func copyAssignment(a *delivery.Assignment) (*delivery.Assignment, error) {
	var proof *delivery.ProofOfDelivery
	if p := a.Proof(); p != nil {
		cp := *p
		proof = &cp
	}
	return delivery.RestoreAssignment(delivery.AssignmentRestoreParams{
		ID:               a.ID(),
		OrderID:          a.OrderID(),
		StoreID:          a.StoreID(),
		AgentID:          a.AgentID(),
		Status:           a.Status(),
		Estimate:         a.Estimate(),
		AssignedAt:       a.AssignedAt(),
		ResponseDeadline: a.ResponseDeadline(),
		AcceptedAt:       a.AcceptedAt(),
		PickedUpAt:       a.PickedUpAt(),
		InTransitAt:      a.InTransitAt(),
		DeliveredAt:      a.DeliveredAt(),
		ClosedAt:         a.ClosedAt(),
		Reason:           a.Reason(),
		ActualMinutes:    a.ActualMinutes(),
		Proof:            proof,
		Rating:           a.Rating(),
		Feedback:         a.Feedback(),
		Version:          a.Version(),
	})
}

func copyDispatchRequest(r *delivery.DispatchRequest) (*delivery.DispatchRequest, error) {
	return delivery.RestoreDispatchRequest(
		r.OrderID(), r.StoreID(),
		r.Attempts(), r.NextAttemptAt(), r.LastError(), r.Exhausted(),
		r.CreatedAt(), r.Version(),
	)
}

func copyStock(s *inventory.Stock) (*inventory.Stock, error) {
	return inventory.RestoreStock(
		s.StoreProductID(), s.StoreID(),
		s.StockQuantity(), s.ReservedQuantity(), s.Frozen(),
		s.Version(),
	)
}

func copyReservation(r *inventory.Reservation) (*inventory.Reservation, error) {
	return inventory.RestoreReservation(
		r.ID(), r.OrderID(), r.StoreProductID(),
		r.Quantity(), r.Status(),
		r.CreatedAt(), r.ExpiresAt(),
		r.Version(),
	)
}

func copyWallet(w *wallet.Wallet) (*wallet.Wallet, error) {
	return wallet.RestoreWallet(w.ID(), w.CustomerID(), w.Balance(), w.Active(), w.Sequence(), w.Version())
}

func copyID(id *kernel.UUID) *kernel.UUID {
	if id == nil {
		return nil
	}
	cp := *id
	return &cp
}

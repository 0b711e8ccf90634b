package events

import (
	"encoding/json"
	"time"

	"fulfillment/internal/core/domain/model/delivery"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/core/domain/model/payment"
)

// Message is the wire form of a notification.
type Message struct {
	Event      string         `json:"event"`
	OccurredAt time.Time      `json:"occurred_at"`
	Key        string         `json:"key"`
	Data       map[string]any `json:"data"`
}

// NewMessage flattens a domain event. The key is the order id where the event has
// one, so all notifications of an order land on the same partition.
func NewMessage(event kernel.DomainEvent) Message {
	m := Message{Event: event.EventName(), OccurredAt: event.OccurredAt().UTC(), Data: map[string]any{}}

	switch e := event.(type) {
	case order.CreatedEvent:
		m.Key = e.OrderID.String()
		m.Data["order_number"] = e.Number
		m.Data["customer_id"] = e.CustomerID.String()
		m.Data["store_id"] = e.StoreID.String()
		m.Data["total"] = e.Total.StringFixed(2)
	case order.StatusChangedEvent:
		m.Key = e.OrderID.String()
		m.Data["order_number"] = e.Number
		m.Data["from"] = e.From.String()
		m.Data["to"] = e.To.String()
		m.Data["actor"] = e.Actor.String()
		m.Data["override"] = e.Override
		if e.Note != "" {
			m.Data["note"] = e.Note
		}
	case payment.InitiatedEvent:
		m.Key = e.OrderID.String()
		m.Data["payment_id"] = e.PaymentID.String()
		m.Data["method"] = e.Method.String()
		m.Data["status"] = e.Status.String()
	case payment.CapturedEvent:
		m.Key = e.OrderID.String()
		m.Data["payment_id"] = e.PaymentID.String()
		m.Data["method"] = e.Method.String()
		m.Data["amount"] = e.Amount.StringFixed(2)
	case payment.FailedEvent:
		m.Key = e.OrderID.String()
		m.Data["payment_id"] = e.PaymentID.String()
		m.Data["code"] = e.Code
		m.Data["reason"] = e.Reason
	case payment.CancelledEvent:
		m.Key = e.OrderID.String()
		m.Data["payment_id"] = e.PaymentID.String()
		m.Data["reason"] = e.Reason
	case payment.RefundCompletedEvent:
		m.Key = e.OrderID.String()
		m.Data["refund_id"] = e.RefundID.String()
		m.Data["payment_id"] = e.PaymentID.String()
		m.Data["amount"] = e.Amount.StringFixed(2)
		m.Data["fully_refunded"] = e.FullyRefunded
	case payment.RefundFailedEvent:
		m.Key = e.OrderID.String()
		m.Data["refund_id"] = e.RefundID.String()
		m.Data["payment_id"] = e.PaymentID.String()
		m.Data["amount"] = e.Amount.StringFixed(2)
		m.Data["reason"] = e.Reason
	case delivery.AssignmentChangedEvent:
		m.Key = e.OrderID.String()
		m.Data["assignment_id"] = e.AssignmentID.String()
		m.Data["agent_id"] = e.AgentID.String()
		m.Data["from"] = e.From.String()
		m.Data["to"] = e.To.String()
		if e.Reason != "" {
			m.Data["reason"] = e.Reason
		}
	case delivery.LocationUpdatedEvent:
		m.Key = e.AgentID.String()
		m.Data["agent_id"] = e.AgentID.String()
		m.Data["lat"] = e.Location.Lat()
		m.Data["lng"] = e.Location.Lng()
		if e.AssignmentID != nil {
			m.Data["assignment_id"] = e.AssignmentID.String()
		}
	}
	return m
}

func (m Message) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

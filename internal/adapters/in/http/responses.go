package http

import (
	"time"

	"fulfillment/internal/core/application/usecases/queries"
	"fulfillment/internal/core/domain/model/delivery"
	"fulfillment/internal/core/domain/model/inventory"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/core/domain/model/payment"
	"fulfillment/internal/core/domain/model/wallet"

	"github.com/google/uuid"
)

type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type AddOn struct {
	IngredientID uuid.UUID `json:"ingredientId"`
	Name         string    `json:"name"`
	Quantity     int       `json:"quantity"`
	UnitPrice    string    `json:"unitPrice"`
}

type OrderLine struct {
	StoreProductID      uuid.UUID `json:"storeProductId"`
	ProductName         string    `json:"productName"`
	Quantity            int       `json:"quantity"`
	UnitPrice           string    `json:"unitPrice"`
	Total               string    `json:"total"`
	AddOns              []AddOn   `json:"addOns"`
	SpecialInstructions string    `json:"specialInstructions,omitempty"`
}

type Order struct {
	ID                  uuid.UUID   `json:"id"`
	Number              string      `json:"number"`
	CustomerID          uuid.UUID   `json:"customerId"`
	StoreID             uuid.UUID   `json:"storeId"`
	Status              string      `json:"status"`
	PaymentStatus       string      `json:"paymentStatus"`
	PaymentMethod       string      `json:"paymentMethod,omitempty"`
	Subtotal            string      `json:"subtotal"`
	DeliveryFee         string      `json:"deliveryFee"`
	Tax                 string      `json:"tax"`
	Discount            string      `json:"discount"`
	Total               string      `json:"total"`
	Lines               []OrderLine `json:"lines"`
	ActivePaymentID     *uuid.UUID  `json:"activePaymentId,omitempty"`
	ActiveAssignmentID  *uuid.UUID  `json:"activeAssignmentId,omitempty"`
	CancellationReason  string      `json:"cancellationReason,omitempty"`
	SpecialInstructions string      `json:"specialInstructions,omitempty"`
	CreatedAt           time.Time   `json:"createdAt"`
	ConfirmedAt         *time.Time  `json:"confirmedAt,omitempty"`
	DeliveredAt         *time.Time  `json:"deliveredAt,omitempty"`
	CancelledAt         *time.Time  `json:"cancelledAt,omitempty"`
	Version             int         `json:"version"`
}

type OrderDetails struct {
	Order       Order        `json:"order"`
	Payments    []Payment    `json:"payments"`
	Assignments []Assignment `json:"assignments"`
}

type HistoryEntry struct {
	Sequence int       `json:"sequence"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	Actor    string    `json:"actor"`
	Note     string    `json:"note,omitempty"`
	Override bool      `json:"override,omitempty"`
	At       time.Time `json:"at"`
}

type ActiveOrder struct {
	ID                 uuid.UUID  `json:"id"`
	Number             string     `json:"number"`
	Status             string     `json:"status"`
	PaymentStatus      string     `json:"paymentStatus"`
	Total              string     `json:"total"`
	ActiveAssignmentID *uuid.UUID `json:"activeAssignmentId,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

type Payment struct {
	ID               uuid.UUID  `json:"id"`
	Number           string     `json:"number"`
	OrderID          uuid.UUID  `json:"orderId"`
	Method           string     `json:"method"`
	Amount           string     `json:"amount"`
	Fee              string     `json:"fee"`
	Total            string     `json:"total"`
	Refunded         string     `json:"refunded"`
	Status           string     `json:"status"`
	GatewayRef       string     `json:"gatewayRef,omitempty"`
	GatewayPaymentID string     `json:"gatewayPaymentId,omitempty"`
	FailureReason    string     `json:"failureReason,omitempty"`
	AttemptCount     int        `json:"attemptCount"`
	CreatedAt        time.Time  `json:"createdAt"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
}

type PaymentInitiated struct {
	Payment       Payment `json:"payment"`
	RedirectToken string  `json:"redirectToken,omitempty"`
}

type Refund struct {
	ID          uuid.UUID  `json:"id"`
	Number      string     `json:"number"`
	PaymentID   uuid.UUID  `json:"paymentId"`
	OrderID     uuid.UUID  `json:"orderId"`
	Amount      string     `json:"amount"`
	Reason      string     `json:"reason"`
	Destination string     `json:"destination"`
	Status      string     `json:"status"`
	GatewayRef  string     `json:"gatewayRef,omitempty"`
	Failure     string     `json:"failure,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

type Agent struct {
	ID                   uuid.UUID  `json:"id"`
	StoreID              uuid.UUID  `json:"storeId"`
	Code                 string     `json:"code"`
	Name                 string     `json:"name"`
	Status               string     `json:"status"`
	Location             *Location  `json:"location,omitempty"`
	ActiveAssignmentID   *uuid.UUID `json:"activeAssignmentId,omitempty"`
	TotalDeliveries      int        `json:"totalDeliveries"`
	SuccessfulDeliveries int        `json:"successfulDeliveries"`
	AverageRating        float64    `json:"averageRating"`
}

type Assignment struct {
	ID               uuid.UUID  `json:"id"`
	OrderID          uuid.UUID  `json:"orderId"`
	AgentID          uuid.UUID  `json:"agentId"`
	Status           string     `json:"status"`
	DistanceKm       float64    `json:"distanceKm"`
	EtaMinutes       float64    `json:"etaMinutes"`
	AssignedAt       time.Time  `json:"assignedAt"`
	ResponseDeadline time.Time  `json:"responseDeadline"`
	AcceptedAt       *time.Time `json:"acceptedAt,omitempty"`
	DeliveredAt      *time.Time `json:"deliveredAt,omitempty"`
	ClosedAt         *time.Time `json:"closedAt,omitempty"`
	Reason           string     `json:"reason,omitempty"`
	Rating           *int       `json:"rating,omitempty"`
}

type TrackingPoint struct {
	Location   Location  `json:"location"`
	Accuracy   *float64  `json:"accuracy,omitempty"`
	Speed      *float64  `json:"speed,omitempty"`
	Bearing    *float64  `json:"bearing,omitempty"`
	RecordedAt time.Time `json:"recordedAt"`
}

type AssignmentDetails struct {
	Assignment Assignment      `json:"assignment"`
	Tracking   []TrackingPoint `json:"tracking"`
}

type Stock struct {
	StoreProductID uuid.UUID `json:"storeProductId"`
	StockQuantity  int       `json:"stockQuantity"`
	Reserved       int       `json:"reservedQuantity"`
	Available      int       `json:"available"`
	Frozen         bool      `json:"frozen"`
}

type WalletTransaction struct {
	ID            uuid.UUID  `json:"id"`
	Sequence      int        `json:"sequence"`
	Type          string     `json:"type"`
	Amount        string     `json:"amount"`
	BalanceBefore string     `json:"balanceBefore"`
	BalanceAfter  string     `json:"balanceAfter"`
	Description   string     `json:"description"`
	OrderID       *uuid.UUID `json:"orderId,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

type WalletStatement struct {
	CustomerID   uuid.UUID           `json:"customerId"`
	Balance      string              `json:"balance"`
	Transactions []WalletTransaction `json:"transactions"`
}

func optionalID(id *kernel.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	b := id.Bytes()
	return &b
}

func toOrder(o *order.Order) Order {
	lines := make([]OrderLine, 0, len(o.Lines()))
	for _, l := range o.Lines() {
		addOns := make([]AddOn, 0, len(l.AddOns()))
		for _, a := range l.AddOns() {
			addOns = append(addOns, AddOn{
				IngredientID: a.IngredientID().Bytes(),
				Name:         a.Name(),
				Quantity:     a.Quantity(),
				UnitPrice:    a.UnitPrice().StringFixed(2),
			})
		}
		lines = append(lines, OrderLine{
			StoreProductID:      l.StoreProductID().Bytes(),
			ProductName:         l.ProductName(),
			Quantity:            l.Quantity(),
			UnitPrice:           l.UnitPrice().StringFixed(2),
			Total:               l.Total().StringFixed(2),
			AddOns:              addOns,
			SpecialInstructions: l.SpecialInstructions(),
		})
	}

	return Order{
		ID:                  o.ID().Bytes(),
		Number:              o.Number(),
		CustomerID:          o.CustomerID().Bytes(),
		StoreID:             o.StoreID().Bytes(),
		Status:              o.Status().String(),
		PaymentStatus:       o.PaymentStatus().String(),
		PaymentMethod:       o.PaymentMethod(),
		Subtotal:            o.Subtotal().StringFixed(2),
		DeliveryFee:         o.DeliveryFee().StringFixed(2),
		Tax:                 o.Tax().StringFixed(2),
		Discount:            o.Discount().StringFixed(2),
		Total:               o.Total().StringFixed(2),
		Lines:               lines,
		ActivePaymentID:     optionalID(o.ActivePaymentID()),
		ActiveAssignmentID:  optionalID(o.ActiveAssignmentID()),
		CancellationReason:  o.CancellationReason(),
		SpecialInstructions: o.SpecialInstructions(),
		CreatedAt:           o.CreatedAt(),
		ConfirmedAt:         o.ConfirmedAt(),
		DeliveredAt:         o.DeliveredAt(),
		CancelledAt:         o.CancelledAt(),
		Version:             o.Version(),
	}
}

func toOrderDetails(resp queries.GetOrderQueryResponse) OrderDetails {
	payments := make([]Payment, 0, len(resp.Payments))
	for _, p := range resp.Payments {
		payments = append(payments, toPayment(p))
	}
	assignments := make([]Assignment, 0, len(resp.Assignments))
	for _, a := range resp.Assignments {
		assignments = append(assignments, toAssignment(a))
	}
	return OrderDetails{Order: toOrder(resp.Order), Payments: payments, Assignments: assignments}
}

func toHistory(entries []order.HistoryEntry) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryEntry{
			Sequence: e.Sequence,
			From:     e.From.String(),
			To:       e.To.String(),
			Actor:    e.Actor.String(),
			Note:     e.Note,
			Override: e.Override,
			At:       e.At,
		})
	}
	return out
}

func toActiveOrders(rows []queries.GetActiveOrdersQueryResponse) []ActiveOrder {
	out := make([]ActiveOrder, 0, len(rows))
	for _, r := range rows {
		out = append(out, ActiveOrder{
			ID:                 r.ID.Bytes(),
			Number:             r.Number,
			Status:             r.Status,
			PaymentStatus:      r.PaymentStatus,
			Total:              r.Total.StringFixed(2),
			ActiveAssignmentID: optionalID(r.ActiveAssignmentID),
			CreatedAt:          r.CreatedAt,
		})
	}
	return out
}

func toPayment(p *payment.Payment) Payment {
	return Payment{
		ID:               p.ID().Bytes(),
		Number:           p.Number(),
		OrderID:          p.OrderID().Bytes(),
		Method:           p.Method().String(),
		Amount:           p.Amount().StringFixed(2),
		Fee:              p.Fee().StringFixed(2),
		Total:            p.Total().StringFixed(2),
		Refunded:         p.Refunded().StringFixed(2),
		Status:           p.Status().String(),
		GatewayRef:       p.GatewayRef(),
		GatewayPaymentID: p.GatewayPaymentID(),
		FailureReason:    p.FailureReason(),
		AttemptCount:     p.AttemptCount(),
		CreatedAt:        p.CreatedAt(),
		CompletedAt:      p.CompletedAt(),
	}
}

func toRefund(r *payment.Refund) Refund {
	return Refund{
		ID:          r.ID().Bytes(),
		Number:      r.Number(),
		PaymentID:   r.PaymentID().Bytes(),
		OrderID:     r.OrderID().Bytes(),
		Amount:      r.Amount().StringFixed(2),
		Reason:      r.Reason(),
		Destination: r.Destination().String(),
		Status:      r.Status().String(),
		GatewayRef:  r.GatewayRef(),
		Failure:     r.Failure(),
		CreatedAt:   r.CreatedAt(),
		CompletedAt: r.CompletedAt(),
	}
}

func toAgent(a *delivery.Agent) Agent {
	resp := Agent{
		ID:                   a.ID().Bytes(),
		StoreID:              a.StoreID().Bytes(),
		Code:                 a.Code(),
		Name:                 a.Name(),
		Status:               a.Status().String(),
		ActiveAssignmentID:   optionalID(a.ActiveAssignmentID()),
		TotalDeliveries:      a.TotalDeliveries(),
		SuccessfulDeliveries: a.SuccessfulDeliveries(),
		AverageRating:        a.AverageRating(),
	}
	if a.HasLocation() {
		resp.Location = &Location{Lat: a.Location().Lat(), Lng: a.Location().Lng()}
	}
	return resp
}

func toAssignment(a *delivery.Assignment) Assignment {
	return Assignment{
		ID:               a.ID().Bytes(),
		OrderID:          a.OrderID().Bytes(),
		AgentID:          a.AgentID().Bytes(),
		Status:           a.Status().String(),
		DistanceKm:       a.Estimate().DistanceKm,
		EtaMinutes:       a.Estimate().EtaMinutes,
		AssignedAt:       a.AssignedAt(),
		ResponseDeadline: a.ResponseDeadline(),
		AcceptedAt:       a.AcceptedAt(),
		DeliveredAt:      a.DeliveredAt(),
		ClosedAt:         a.ClosedAt(),
		Reason:           a.Reason(),
		Rating:           a.Rating(),
	}
}

func toAssignmentDetails(resp queries.GetAssignmentQueryResponse) AssignmentDetails {
	tracking := make([]TrackingPoint, 0, len(resp.Tracking))
	for _, p := range resp.Tracking {
		tracking = append(tracking, TrackingPoint{
			Location:   Location{Lat: p.Location.Lat(), Lng: p.Location.Lng()},
			Accuracy:   p.Accuracy,
			Speed:      p.Speed,
			Bearing:    p.Bearing,
			RecordedAt: p.RecordedAt,
		})
	}
	return AssignmentDetails{Assignment: toAssignment(resp.Assignment), Tracking: tracking}
}

func toStock(s *inventory.Stock) Stock {
	return Stock{
		StoreProductID: s.StoreProductID().Bytes(),
		StockQuantity:  s.StockQuantity(),
		Reserved:       s.ReservedQuantity(),
		Available:      s.Available(),
		Frozen:         s.Frozen(),
	}
}

func toWalletTransaction(t *wallet.Transaction) WalletTransaction {
	return WalletTransaction{
		ID:            t.ID().Bytes(),
		Sequence:      t.Sequence(),
		Type:          t.Type().String(),
		Amount:        t.Amount().StringFixed(2),
		BalanceBefore: t.BalanceBefore().StringFixed(2),
		BalanceAfter:  t.BalanceAfter().StringFixed(2),
		Description:   t.Description(),
		OrderID:       optionalID(t.OrderID()),
		CreatedAt:     t.CreatedAt(),
	}
}

func toWalletStatement(customerID kernel.UUID, resp queries.GetWalletStatementQueryResponse) WalletStatement {
	statement := WalletStatement{
		CustomerID:   customerID.Bytes(),
		Balance:      "0.00",
		Transactions: make([]WalletTransaction, 0, len(resp.Transactions)),
	}
	if resp.Wallet != nil {
		statement.Balance = resp.Wallet.Balance().StringFixed(2)
	}
	for _, t := range resp.Transactions {
		statement.Transactions = append(statement.Transactions, toWalletTransaction(t))
	}
	return statement
}

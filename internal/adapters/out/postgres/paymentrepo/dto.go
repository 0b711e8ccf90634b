// Package paymentrepo persists payments with their numbered attempt log and their
// refunds.
package paymentrepo

import (
	"time"

	"fulfillment/internal/adapters/out/postgres/pgconv"
	"fulfillment/internal/core/domain/model/payment"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentDTO struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Number           string          `gorm:"size:32;uniqueIndex"`
	OrderID          uuid.UUID       `gorm:"type:uuid;index"`
	CustomerID       uuid.UUID       `gorm:"type:uuid"`
	Method           int
	Amount           decimal.Decimal `gorm:"type:numeric(12,2)"`
	Fee              decimal.Decimal `gorm:"type:numeric(12,2)"`
	Total            decimal.Decimal `gorm:"type:numeric(12,2)"`
	Refunded         decimal.Decimal `gorm:"type:numeric(12,2)"`
	Status           int
	GatewayRef       *string `gorm:"size:128;uniqueIndex"`
	GatewayPaymentID string
	FailureCode      string
	FailureReason    string
	CreatedAt        time.Time
	CompletedAt      *time.Time
	AttemptCount     int
	Version          int
}

func (PaymentDTO) TableName() string {
	return "payments"
}

type AttemptDTO struct {
	PaymentID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	Number          int       `gorm:"primaryKey"`
	Operation       string    `gorm:"size:32"`
	Status          int
	Success         bool
	RequestPayload  string `gorm:"type:text"`
	GatewayResponse string `gorm:"type:text"`
	ErrorMessage    string
	DurationMs      int64
	At              time.Time
}

func (AttemptDTO) TableName() string {
	return "payment_attempts"
}

type RefundDTO struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Number           string          `gorm:"size:32;uniqueIndex"`
	PaymentID        uuid.UUID       `gorm:"type:uuid;index"`
	OrderID          uuid.UUID       `gorm:"type:uuid;index"`
	Amount           decimal.Decimal `gorm:"type:numeric(12,2)"`
	Reason           string
	RequestedByID    string
	RequestedByRole  string `gorm:"size:32"`
	Destination      int
	Status           int
	GatewayRef       string
	Failure          string
	CreatedAt        time.Time
	CompletedAt      *time.Time
}

func (RefundDTO) TableName() string {
	return "refunds"
}

func fromDomain(p *payment.Payment) PaymentDTO {
	// NULL keeps the unique index from colliding on payments that never reached the gateway.
	var gatewayRef *string
	if ref := p.GatewayRef(); ref != "" {
		gatewayRef = &ref
	}
	return PaymentDTO{
		ID:               p.ID().Bytes(),
		Number:           p.Number(),
		OrderID:          p.OrderID().Bytes(),
		CustomerID:       p.CustomerID().Bytes(),
		Method:           int(p.Method()),
		Amount:           p.Amount(),
		Fee:              p.Fee(),
		Total:            p.Total(),
		Refunded:         p.Refunded(),
		Status:           int(p.Status()),
		GatewayRef:       gatewayRef,
		GatewayPaymentID: p.GatewayPaymentID(),
		FailureCode:      p.FailureCode(),
		FailureReason:    p.FailureReason(),
		CreatedAt:        p.CreatedAt(),
		CompletedAt:      p.CompletedAt(),
		AttemptCount:     p.AttemptCount(),
		Version:          p.Version(),
	}
}

func toDomain(dto PaymentDTO) (*payment.Payment, error) {
	id, err := pgconv.FromUUID(dto.ID)
	if err != nil {
		return nil, err
	}
	orderID, err := pgconv.FromUUID(dto.OrderID)
	if err != nil {
		return nil, err
	}
	customerID, err := pgconv.FromUUID(dto.CustomerID)
	if err != nil {
		return nil, err
	}
	var gatewayRef string
	if dto.GatewayRef != nil {
		gatewayRef = *dto.GatewayRef
	}
	return payment.RestorePayment(payment.RestoreParams{
		ID:               id,
		Number:           dto.Number,
		OrderID:          orderID,
		CustomerID:       customerID,
		Method:           payment.MethodType(dto.Method),
		Amount:           dto.Amount,
		Fee:              dto.Fee,
		Total:            dto.Total,
		Refunded:         dto.Refunded,
		Status:           payment.Status(dto.Status),
		GatewayRef:       gatewayRef,
		GatewayPaymentID: dto.GatewayPaymentID,
		FailureCode:      dto.FailureCode,
		FailureReason:    dto.FailureReason,
		CreatedAt:        dto.CreatedAt,
		CompletedAt:      dto.CompletedAt,
		AttemptCount:     dto.AttemptCount,
		Version:          dto.Version,
	})
}

func attemptsFromDomain(p *payment.Payment, attempts []payment.Attempt) []AttemptDTO {
	dtos := make([]AttemptDTO, 0, len(attempts))
	for _, a := range attempts {
		dtos = append(dtos, AttemptDTO{
			PaymentID:       p.ID().Bytes(),
			Number:          a.Number,
			Operation:       string(a.Operation),
			Status:          int(a.Status),
			Success:         a.Success,
			RequestPayload:  a.RequestPayload,
			GatewayResponse: a.GatewayResponse,
			ErrorMessage:    a.ErrorMessage,
			DurationMs:      a.Duration.Milliseconds(),
			At:              a.At,
		})
	}
	return dtos
}

func attemptToDomain(dto AttemptDTO) payment.Attempt {
	return payment.Attempt{
		Number:          dto.Number,
		Operation:       payment.Operation(dto.Operation),
		Status:          payment.Status(dto.Status),
		Success:         dto.Success,
		RequestPayload:  dto.RequestPayload,
		GatewayResponse: dto.GatewayResponse,
		ErrorMessage:    dto.ErrorMessage,
		Duration:        time.Duration(dto.DurationMs) * time.Millisecond,
		At:              dto.At.UTC(),
	}
}

func refundFromDomain(r *payment.Refund) RefundDTO {
	return RefundDTO{
		ID:              r.ID().Bytes(),
		Number:          r.Number(),
		PaymentID:       r.PaymentID().Bytes(),
		OrderID:         r.OrderID().Bytes(),
		Amount:          r.Amount(),
		Reason:          r.Reason(),
		RequestedByID:   r.RequestedBy().ID(),
		RequestedByRole: r.RequestedBy().Role().String(),
		Destination:     int(r.Destination()),
		Status:          int(r.Status()),
		GatewayRef:      r.GatewayRef(),
		Failure:         r.Failure(),
		CreatedAt:       r.CreatedAt(),
		CompletedAt:     r.CompletedAt(),
	}
}

func refundToDomain(dto RefundDTO) (*payment.Refund, error) {
	id, err := pgconv.FromUUID(dto.ID)
	if err != nil {
		return nil, err
	}
	paymentID, err := pgconv.FromUUID(dto.PaymentID)
	if err != nil {
		return nil, err
	}
	orderID, err := pgconv.FromUUID(dto.OrderID)
	if err != nil {
		return nil, err
	}
	actor, err := pgconv.Actor(dto.RequestedByID, dto.RequestedByRole)
	if err != nil {
		return nil, err
	}
	return payment.RestoreRefund(payment.RefundRestoreParams{
		ID:          id,
		Number:      dto.Number,
		PaymentID:   paymentID,
		OrderID:     orderID,
		Amount:      dto.Amount,
		Reason:      dto.Reason,
		RequestedBy: actor,
		Destination: payment.Destination(dto.Destination),
		Status:      payment.RefundStatus(dto.Status),
		GatewayRef:  dto.GatewayRef,
		Failure:     dto.Failure,
		CreatedAt:   dto.CreatedAt,
		CompletedAt: dto.CompletedAt,
	})
}

package paymentrepo

import (
	"context"

	"fulfillment/internal/adapters/out/postgres/pgconv"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/payment"
	"fulfillment/internal/pkg/errs"

	"gorm.io/gorm"
)

// GormPaymentRepository implements PaymentRepository using GORM.
type GormPaymentRepository struct {
	db      *gorm.DB
	tracker aggregateTracker
}

type aggregateTracker interface {
	TrackAggregate(id kernel.UUID, aggregate any)
}

func NewGormPaymentRepository(db *gorm.DB, tracker aggregateTracker) *GormPaymentRepository {
	return &GormPaymentRepository{db: db, tracker: tracker}
}

func (r *GormPaymentRepository) Add(ctx context.Context, aggregate *payment.Payment) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	dto := fromDomain(aggregate)
	db := r.db.WithContext(ctx)
	if err := db.Create(&dto).Error; err != nil {
		return pgconv.Translate(err, "payment", aggregate.Number())
	}
	if err := r.appendAttempts(db, aggregate); err != nil {
		return err
	}

	r.tracker.TrackAggregate(aggregate.ID(), aggregate)
	return nil
}

func (r *GormPaymentRepository) Update(ctx context.Context, aggregate *payment.Payment) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	expected, _ := aggregate.AdvanceVersion()
	dto := fromDomain(aggregate)
	db := r.db.WithContext(ctx)
	result := db.Model(&PaymentDTO{}).
		Where("id = ? AND version = ?", dto.ID, expected).
		Select("*").
		Omit("id", "number", "created_at").
		Updates(&dto)
	if result.Error != nil {
		return pgconv.Translate(result.Error, "payment", aggregate.Number())
	}
	if result.RowsAffected == 0 {
		return errs.NewConflictError("payment", aggregate.ID().String())
	}
	if err := r.appendAttempts(db, aggregate); err != nil {
		return err
	}

	r.tracker.TrackAggregate(aggregate.ID(), aggregate)
	return nil
}

func (r *GormPaymentRepository) Get(ctx context.Context, id kernel.UUID) (*payment.Payment, error) {
	var dto PaymentDTO
	if err := r.db.WithContext(ctx).First(&dto, "id = ?", id.Bytes()).Error; err != nil {
		return nil, pgconv.Translate(err, "payment", id.String())
	}
	return toDomain(dto)
}

func (r *GormPaymentRepository) GetByGatewayRef(ctx context.Context, gatewayRef string) (*payment.Payment, error) {
	var dto PaymentDTO
	if err := r.db.WithContext(ctx).First(&dto, "gateway_ref = ?", gatewayRef).Error; err != nil {
		return nil, pgconv.Translate(err, "payment with gateway reference", gatewayRef)
	}
	return toDomain(dto)
}

func (r *GormPaymentRepository) ListByOrder(ctx context.Context, orderID kernel.UUID) ([]*payment.Payment, error) {
	var dtos []PaymentDTO
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID.Bytes()).
		Order("created_at, id").
		Find(&dtos).Error
	if err != nil {
		return nil, err
	}

	payments := make([]*payment.Payment, 0, len(dtos))
	for _, dto := range dtos {
		p, err := toDomain(dto)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, nil
}

func (r *GormPaymentRepository) Attempts(ctx context.Context, paymentID kernel.UUID) ([]payment.Attempt, error) {
	var dtos []AttemptDTO
	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID.Bytes()).
		Order("number").
		Find(&dtos).Error
	if err != nil {
		return nil, err
	}

	attempts := make([]payment.Attempt, 0, len(dtos))
	for _, dto := range dtos {
		attempts = append(attempts, attemptToDomain(dto))
	}
	return attempts, nil
}

func (r *GormPaymentRepository) AddRefund(ctx context.Context, refund *payment.Refund) error {
	if err := refund.Validate(); err != nil {
		return err
	}
	dto := refundFromDomain(refund)
	if err := r.db.WithContext(ctx).Create(&dto).Error; err != nil {
		return pgconv.Translate(err, "refund", refund.Number())
	}
	r.tracker.TrackAggregate(refund.ID(), refund)
	return nil
}

// UpdateRefund only touches rows that are still initiated, which makes completing
// or failing a refund a one-shot transition.
func (r *GormPaymentRepository) UpdateRefund(ctx context.Context, refund *payment.Refund) error {
	if err := refund.Validate(); err != nil {
		return err
	}
	dto := refundFromDomain(refund)
	result := r.db.WithContext(ctx).Model(&RefundDTO{}).
		Where("id = ? AND status = ?", dto.ID, int(payment.RefundInitiated)).
		Updates(map[string]any{
			"status":       dto.Status,
			"gateway_ref":  dto.GatewayRef,
			"failure":      dto.Failure,
			"completed_at": dto.CompletedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.NewConflictError("refund", refund.ID().String())
	}
	r.tracker.TrackAggregate(refund.ID(), refund)
	return nil
}

func (r *GormPaymentRepository) GetRefund(ctx context.Context, id kernel.UUID) (*payment.Refund, error) {
	var dto RefundDTO
	if err := r.db.WithContext(ctx).First(&dto, "id = ?", id.Bytes()).Error; err != nil {
		return nil, pgconv.Translate(err, "refund", id.String())
	}
	return refundToDomain(dto)
}

func (r *GormPaymentRepository) ListRefunds(ctx context.Context, paymentID kernel.UUID) ([]*payment.Refund, error) {
	var dtos []RefundDTO
	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID.Bytes()).
		Order("created_at, id").
		Find(&dtos).Error
	if err != nil {
		return nil, err
	}

	refunds := make([]*payment.Refund, 0, len(dtos))
	for _, dto := range dtos {
		rf, err := refundToDomain(dto)
		if err != nil {
			return nil, err
		}
		refunds = append(refunds, rf)
	}
	return refunds, nil
}

func (r *GormPaymentRepository) appendAttempts(db *gorm.DB, aggregate *payment.Payment) error {
	pending := aggregate.PendingAttempts()
	if len(pending) == 0 {
		return nil
	}
	rows := attemptsFromDomain(aggregate, pending)
	if err := db.Create(&rows).Error; err != nil {
		return pgconv.Translate(err, "payment attempt", aggregate.Number())
	}
	aggregate.MarkAttemptsPersisted()
	return nil
}

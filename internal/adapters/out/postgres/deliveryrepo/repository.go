package deliveryrepo

import (
	"context"
	"time"

	"fulfillment/internal/adapters/out/postgres/pgconv"
	"fulfillment/internal/core/domain/model/delivery"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/pkg/errs"

	"gorm.io/gorm"
)

type aggregateTracker interface {
	TrackAggregate(id kernel.UUID, aggregate any)
}

// GormAgentRepository implements AgentRepository using GORM.
type GormAgentRepository struct {
	db      *gorm.DB
	tracker aggregateTracker
}

func NewGormAgentRepository(db *gorm.DB, tracker aggregateTracker) *GormAgentRepository {
	return &GormAgentRepository{db: db, tracker: tracker}
}

func (r *GormAgentRepository) Add(ctx context.Context, agent *delivery.Agent) error {
	if err := agent.Validate(); err != nil {
		return err
	}
	dto := agentFromDomain(agent)
	if err := r.db.WithContext(ctx).Create(&dto).Error; err != nil {
		return pgconv.Translate(err, "agent", agent.Code())
	}
	r.tracker.TrackAggregate(agent.ID(), agent)
	return nil
}

func (r *GormAgentRepository) Update(ctx context.Context, agent *delivery.Agent) error {
	if err := agent.Validate(); err != nil {
		return err
	}
	expected, _ := agent.AdvanceVersion()
	dto := agentFromDomain(agent)
	result := r.db.WithContext(ctx).Model(&AgentDTO{}).
		Where("id = ? AND version = ?", dto.ID, expected).
		Select("*").
		Omit("id", "store_id", "code").
		Updates(&dto)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.NewConflictError("agent", agent.ID().String())
	}
	r.tracker.TrackAggregate(agent.ID(), agent)
	return nil
}

func (r *GormAgentRepository) Get(ctx context.Context, id kernel.UUID) (*delivery.Agent, error) {
	var dto AgentDTO
	if err := r.db.WithContext(ctx).First(&dto, "id = ?", id.Bytes()).Error; err != nil {
		return nil, pgconv.Translate(err, "agent", id.String())
	}
	return agentToDomain(dto)
}

func (r *GormAgentRepository) ListByStore(ctx context.Context, storeID kernel.UUID) ([]*delivery.Agent, error) {
	var dtos []AgentDTO
	if err := r.db.WithContext(ctx).Where("store_id = ?", storeID.Bytes()).Order("id").Find(&dtos).Error; err != nil {
		return nil, err
	}
	agents := make([]*delivery.Agent, 0, len(dtos))
	for _, dto := range dtos {
		a, err := agentToDomain(dto)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, nil
}

// GormAssignmentRepository implements AssignmentRepository using GORM.
type GormAssignmentRepository struct {
	db      *gorm.DB
	tracker aggregateTracker
}

func NewGormAssignmentRepository(db *gorm.DB, tracker aggregateTracker) *GormAssignmentRepository {
	return &GormAssignmentRepository{db: db, tracker: tracker}
}

func (r *GormAssignmentRepository) Add(ctx context.Context, assignment *delivery.Assignment) error {
	if err := assignment.Validate(); err != nil {
		return err
	}
	dto := assignmentFromDomain(assignment)
	if err := r.db.WithContext(ctx).Create(&dto).Error; err != nil {
		return pgconv.Translate(err, "open assignment of order", assignment.OrderID().String())
	}
	r.tracker.TrackAggregate(assignment.ID(), assignment)
	return nil
}

func (r *GormAssignmentRepository) Update(ctx context.Context, assignment *delivery.Assignment) error {
	if err := assignment.Validate(); err != nil {
		return err
	}
	expected, _ := assignment.AdvanceVersion()
	dto := assignmentFromDomain(assignment)
	result := r.db.WithContext(ctx).Model(&AssignmentDTO{}).
		Where("id = ? AND version = ?", dto.ID, expected).
		Select("*").
		Omit("id", "order_id", "store_id", "agent_id", "assigned_at").
		Updates(&dto)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.NewConflictError("assignment", assignment.ID().String())
	}
	r.tracker.TrackAggregate(assignment.ID(), assignment)
	return nil
}

func (r *GormAssignmentRepository) Get(ctx context.Context, id kernel.UUID) (*delivery.Assignment, error) {
	var dto AssignmentDTO
	if err := r.db.WithContext(ctx).First(&dto, "id = ?", id.Bytes()).Error; err != nil {
		return nil, pgconv.Translate(err, "assignment", id.String())
	}
	return assignmentToDomain(dto)
}

func (r *GormAssignmentRepository) ListByOrder(ctx context.Context, orderID kernel.UUID) ([]*delivery.Assignment, error) {
	return r.find(r.db.WithContext(ctx).Where("order_id = ?", orderID.Bytes()).Order("assigned_at, id"))
}

func (r *GormAssignmentRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]*delivery.Assignment, error) {
	q := r.db.WithContext(ctx).
		Where("status = ? AND response_deadline < ?", int(delivery.AssignmentAssigned), now).
		Order("response_deadline, id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return r.find(q)
}

func (r *GormAssignmentRepository) AppendTracking(ctx context.Context, point delivery.TrackingPoint) error {
	dto := trackingFromDomain(point)
	return r.db.WithContext(ctx).Create(&dto).Error
}

func (r *GormAssignmentRepository) Tracking(ctx context.Context, assignmentID kernel.UUID) ([]delivery.TrackingPoint, error) {
	var dtos []TrackingPointDTO
	err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID.Bytes()).
		Order("recorded_at, id").
		Find(&dtos).Error
	if err != nil {
		return nil, err
	}
	points := make([]delivery.TrackingPoint, 0, len(dtos))
	for _, dto := range dtos {
		p, err := trackingToDomain(dto)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

func (r *GormAssignmentRepository) find(q *gorm.DB) ([]*delivery.Assignment, error) {
	var dtos []AssignmentDTO
	if err := q.Find(&dtos).Error; err != nil {
		return nil, err
	}
	assignments := make([]*delivery.Assignment, 0, len(dtos))
	for _, dto := range dtos {
		a, err := assignmentToDomain(dto)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, nil
}

// GormDispatchRequestRepository implements DispatchRequestRepository using GORM.
type GormDispatchRequestRepository struct {
	db *gorm.DB
}

func NewGormDispatchRequestRepository(db *gorm.DB) *GormDispatchRequestRepository {
	return &GormDispatchRequestRepository{db: db}
}

// Save inserts a request seen for the first time and otherwise updates it with a
// version check.
func (r *GormDispatchRequestRepository) Save(ctx context.Context, request *delivery.DispatchRequest) error {
	expected, _ := request.AdvanceVersion()
	dto := dispatchFromDomain(request)
	db := r.db.WithContext(ctx)

	if expected == 0 {
		if err := db.Create(&dto).Error; err != nil {
			return pgconv.Translate(err, "dispatch request", request.OrderID().String())
		}
		return nil
	}

	result := db.Model(&DispatchRequestDTO{}).
		Where("order_id = ? AND version = ?", dto.OrderID, expected).
		Select("*").
		Omit("order_id", "store_id", "created_at").
		Updates(&dto)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.NewConflictError("dispatch request", request.OrderID().String())
	}
	return nil
}

func (r *GormDispatchRequestRepository) Get(ctx context.Context, orderID kernel.UUID) (*delivery.DispatchRequest, error) {
	var dto DispatchRequestDTO
	if err := r.db.WithContext(ctx).First(&dto, "order_id = ?", orderID.Bytes()).Error; err != nil {
		return nil, pgconv.Translate(err, "dispatch request", orderID.String())
	}
	return dispatchToDomain(dto)
}

func (r *GormDispatchRequestRepository) Delete(ctx context.Context, orderID kernel.UUID) error {
	return r.db.WithContext(ctx).Delete(&DispatchRequestDTO{}, "order_id = ?", orderID.Bytes()).Error
}

func (r *GormDispatchRequestRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*delivery.DispatchRequest, error) {
	q := r.db.WithContext(ctx).
		Where("exhausted = ? AND next_attempt_at <= ?", false, now).
		Order("next_attempt_at, order_id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var dtos []DispatchRequestDTO
	if err := q.Find(&dtos).Error; err != nil {
		return nil, err
	}
	requests := make([]*delivery.DispatchRequest, 0, len(dtos))
	for _, dto := range dtos {
		req, err := dispatchToDomain(dto)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, nil
}

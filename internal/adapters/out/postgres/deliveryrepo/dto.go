// Package deliveryrepo persists delivery agents, assignments with their tracking
// stream, and the dispatch retry schedule.
package deliveryrepo

import (
	"time"

	"fulfillment/internal/adapters/out/postgres/pgconv"
	"fulfillment/internal/core/domain/model/delivery"

	"github.com/google/uuid"
)

type AgentDTO struct {
	ID                     uuid.UUID `gorm:"type:uuid;primaryKey"`
	StoreID                uuid.UUID `gorm:"type:uuid;uniqueIndex:ux_agents_store_code"`
	Code                   string    `gorm:"size:32;uniqueIndex:ux_agents_store_code"`
	Name                   string
	Status                 int
	Lat                    *float64
	Lng                    *float64
	LastLocationUpdate     *time.Time
	ActiveAssignmentID     *uuid.UUID `gorm:"type:uuid"`
	TotalDeliveries        int
	SuccessfulDeliveries   int
	AverageDeliveryMinutes float64
	AverageRating          float64
	RatingCount            int
	Version                int
}

func (AgentDTO) TableName() string {
	return "delivery_agents"
}

// AssignmentDTO is one assignment. The partial unique index allows a single
// non-terminal assignment per order.
type AssignmentDTO struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrderID          uuid.UUID `gorm:"type:uuid;index:idx_assignments_order;uniqueIndex:ux_assignments_open_order,where:status <= 4"`
	StoreID          uuid.UUID `gorm:"type:uuid"`
	AgentID          uuid.UUID `gorm:"type:uuid;index"`
	Status           int       `gorm:"index"`
	DistanceKm       float64
	EtaMinutes       float64
	AssignedAt       time.Time
	ResponseDeadline time.Time `gorm:"index"`
	AcceptedAt       *time.Time
	PickedUpAt       *time.Time
	InTransitAt      *time.Time
	DeliveredAt      *time.Time
	ClosedAt         *time.Time
	Reason           string
	ActualMinutes    *float64
	Proof            ProofDTO `gorm:"embedded;embeddedPrefix:proof_"`
	Rating           *int
	Feedback         string
	Version          int
}

func (AssignmentDTO) TableName() string {
	return "delivery_assignments"
}

type ProofDTO struct {
	Method        int
	PhotoRef      string
	OTP           string
	SignatureData string `gorm:"type:text"`
	Notes         string
	CollectedAt   *time.Time
}

type TrackingPointDTO struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"`
	AssignmentID uuid.UUID `gorm:"type:uuid;index"`
	AgentID      uuid.UUID `gorm:"type:uuid"`
	Lat          float64
	Lng          float64
	Accuracy     *float64
	Speed        *float64
	Bearing      *float64
	RecordedAt   time.Time
}

func (TrackingPointDTO) TableName() string {
	return "delivery_tracking_points"
}

type DispatchRequestDTO struct {
	OrderID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	StoreID       uuid.UUID `gorm:"type:uuid"`
	Attempts      int
	NextAttemptAt time.Time `gorm:"index"`
	LastError     string
	Exhausted     bool
	CreatedAt     time.Time
	Version       int
}

func (DispatchRequestDTO) TableName() string {
	return "dispatch_requests"
}

func agentFromDomain(a *delivery.Agent) AgentDTO {
	lat, lng := pgconv.GeoColumns(a.Location())
	return AgentDTO{
		ID:                     a.ID().Bytes(),
		StoreID:                a.StoreID().Bytes(),
		Code:                   a.Code(),
		Name:                   a.Name(),
		Status:                 int(a.Status()),
		Lat:                    lat,
		Lng:                    lng,
		LastLocationUpdate:     a.LastLocationUpdate(),
		ActiveAssignmentID:     pgconv.UUIDPtr(a.ActiveAssignmentID()),
		TotalDeliveries:        a.TotalDeliveries(),
		SuccessfulDeliveries:   a.SuccessfulDeliveries(),
		AverageDeliveryMinutes: a.AverageDeliveryMinutes(),
		AverageRating:          a.AverageRating(),
		RatingCount:            a.RatingCount(),
		Version:                a.Version(),
	}
}

func agentToDomain(dto AgentDTO) (*delivery.Agent, error) {
	id, err := pgconv.FromUUID(dto.ID)
	if err != nil {
		return nil, err
	}
	storeID, err := pgconv.FromUUID(dto.StoreID)
	if err != nil {
		return nil, err
	}
	location, err := pgconv.GeoPoint(dto.Lat, dto.Lng)
	if err != nil {
		return nil, err
	}
	activeAssignmentID, err := pgconv.FromUUIDPtr(dto.ActiveAssignmentID)
	if err != nil {
		return nil, err
	}
	return delivery.RestoreAgent(delivery.AgentRestoreParams{
		ID:                     id,
		StoreID:                storeID,
		Code:                   dto.Code,
		Name:                   dto.Name,
		Status:                 delivery.AgentStatus(dto.Status),
		Location:               location,
		LastLocationUpdate:     dto.LastLocationUpdate,
		ActiveAssignmentID:     activeAssignmentID,
		TotalDeliveries:        dto.TotalDeliveries,
		SuccessfulDeliveries:   dto.SuccessfulDeliveries,
		AverageDeliveryMinutes: dto.AverageDeliveryMinutes,
		AverageRating:          dto.AverageRating,
		RatingCount:            dto.RatingCount,
		Version:                dto.Version,
	})
}

func assignmentFromDomain(a *delivery.Assignment) AssignmentDTO {
	dto := AssignmentDTO{
		ID:               a.ID().Bytes(),
		OrderID:          a.OrderID().Bytes(),
		StoreID:          a.StoreID().Bytes(),
		AgentID:          a.AgentID().Bytes(),
		Status:           int(a.Status()),
		DistanceKm:       a.Estimate().DistanceKm,
		EtaMinutes:       a.Estimate().EtaMinutes,
		AssignedAt:       a.AssignedAt(),
		ResponseDeadline: a.ResponseDeadline(),
		AcceptedAt:       a.AcceptedAt(),
		PickedUpAt:       a.PickedUpAt(),
		InTransitAt:      a.InTransitAt(),
		DeliveredAt:      a.DeliveredAt(),
		ClosedAt:         a.ClosedAt(),
		Reason:           a.Reason(),
		ActualMinutes:    a.ActualMinutes(),
		Rating:           a.Rating(),
		Feedback:         a.Feedback(),
		Version:          a.Version(),
	}
	if p := a.Proof(); p != nil {
		collectedAt := p.CollectedAt
		dto.Proof = ProofDTO{
			Method:        int(p.Method),
			PhotoRef:      p.PhotoRef,
			OTP:           p.OTP,
			SignatureData: p.SignatureData,
			Notes:         p.Notes,
			CollectedAt:   &collectedAt,
		}
	}
	return dto
}

func assignmentToDomain(dto AssignmentDTO) (*delivery.Assignment, error) {
	id, err := pgconv.FromUUID(dto.ID)
	if err != nil {
		return nil, err
	}
	orderID, err := pgconv.FromUUID(dto.OrderID)
	if err != nil {
		return nil, err
	}
	storeID, err := pgconv.FromUUID(dto.StoreID)
	if err != nil {
		return nil, err
	}
	agentID, err := pgconv.FromUUID(dto.AgentID)
	if err != nil {
		return nil, err
	}
	var proof *delivery.ProofOfDelivery
	if dto.Proof.Method != int(delivery.ProofUnknown) {
		proof = &delivery.ProofOfDelivery{
			Method:        delivery.ProofMethod(dto.Proof.Method),
			PhotoRef:      dto.Proof.PhotoRef,
			OTP:           dto.Proof.OTP,
			SignatureData: dto.Proof.SignatureData,
			Notes:         dto.Proof.Notes,
		}
		if dto.Proof.CollectedAt != nil {
			proof.CollectedAt = dto.Proof.CollectedAt.UTC()
		}
	}
	return delivery.RestoreAssignment(delivery.AssignmentRestoreParams{
		ID:               id,
		OrderID:          orderID,
		StoreID:          storeID,
		AgentID:          agentID,
		Status:           delivery.AssignmentStatus(dto.Status),
		Estimate:         delivery.Estimate{DistanceKm: dto.DistanceKm, EtaMinutes: dto.EtaMinutes},
		AssignedAt:       dto.AssignedAt,
		ResponseDeadline: dto.ResponseDeadline,
		AcceptedAt:       dto.AcceptedAt,
		PickedUpAt:       dto.PickedUpAt,
		InTransitAt:      dto.InTransitAt,
		DeliveredAt:      dto.DeliveredAt,
		ClosedAt:         dto.ClosedAt,
		Reason:           dto.Reason,
		ActualMinutes:    dto.ActualMinutes,
		Proof:            proof,
		Rating:           dto.Rating,
		Feedback:         dto.Feedback,
		Version:          dto.Version,
	})
}

func trackingFromDomain(p delivery.TrackingPoint) TrackingPointDTO {
	return TrackingPointDTO{
		AssignmentID: p.AssignmentID.Bytes(),
		AgentID:      p.AgentID.Bytes(),
		Lat:          p.Location.Lat(),
		Lng:          p.Location.Lng(),
		Accuracy:     p.Accuracy,
		Speed:        p.Speed,
		Bearing:      p.Bearing,
		RecordedAt:   p.RecordedAt,
	}
}

func trackingToDomain(dto TrackingPointDTO) (delivery.TrackingPoint, error) {
	assignmentID, err := pgconv.FromUUID(dto.AssignmentID)
	if err != nil {
		return delivery.TrackingPoint{}, err
	}
	agentID, err := pgconv.FromUUID(dto.AgentID)
	if err != nil {
		return delivery.TrackingPoint{}, err
	}
	location, err := pgconv.GeoPoint(&dto.Lat, &dto.Lng)
	if err != nil {
		return delivery.TrackingPoint{}, err
	}
	return delivery.NewTrackingPoint(assignmentID, agentID, location, dto.Accuracy, dto.Speed, dto.Bearing, dto.RecordedAt)
}

func dispatchFromDomain(r *delivery.DispatchRequest) DispatchRequestDTO {
	return DispatchRequestDTO{
		OrderID:       r.OrderID().Bytes(),
		StoreID:       r.StoreID().Bytes(),
		Attempts:      r.Attempts(),
		NextAttemptAt: r.NextAttemptAt(),
		LastError:     r.LastError(),
		Exhausted:     r.Exhausted(),
		CreatedAt:     r.CreatedAt(),
		Version:       r.Version(),
	}
}

func dispatchToDomain(dto DispatchRequestDTO) (*delivery.DispatchRequest, error) {
	orderID, err := pgconv.FromUUID(dto.OrderID)
	if err != nil {
		return nil, err
	}
	storeID, err := pgconv.FromUUID(dto.StoreID)
	if err != nil {
		return nil, err
	}
	return delivery.RestoreDispatchRequest(
		orderID, storeID,
		dto.Attempts, dto.NextAttemptAt, dto.LastError, dto.Exhausted,
		dto.CreatedAt, dto.Version,
	)
}

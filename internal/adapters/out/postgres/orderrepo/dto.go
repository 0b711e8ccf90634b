// Package orderrepo persists order aggregates: the order row, its frozen line items
// and the append-only status history.
package orderrepo

import (
	"encoding/json"
	"time"

	"fulfillment/internal/adapters/out/postgres/pgconv"
	"fulfillment/internal/core/domain/model/cart"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/order"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderDTO is the orders row. Status columns hold the enum ordinals.
type OrderDTO struct {
	ID                  uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Number              string     `gorm:"size:32;uniqueIndex"`
	CustomerID          uuid.UUID  `gorm:"type:uuid;index"`
	StoreID             uuid.UUID  `gorm:"type:uuid;index"`
	Address             AddressDTO `gorm:"embedded;embeddedPrefix:address_"`
	Subtotal            decimal.Decimal `gorm:"type:numeric(12,2)"`
	DeliveryFee         decimal.Decimal `gorm:"type:numeric(12,2)"`
	Tax                 decimal.Decimal `gorm:"type:numeric(12,2)"`
	Discount            decimal.Decimal `gorm:"type:numeric(12,2)"`
	Total               decimal.Decimal `gorm:"type:numeric(12,2)"`
	SpecialInstructions string
	Status              int `gorm:"index"`
	PaymentStatus       int
	PaymentMethod       string     `gorm:"size:32"`
	ActivePaymentID     *uuid.UUID `gorm:"type:uuid"`
	ActiveAssignmentID  *uuid.UUID `gorm:"type:uuid"`
	CancellationReason  string
	CreatedAt           time.Time `gorm:"index"`
	ConfirmedAt         *time.Time
	ReadyAt             *time.Time
	OutForDeliveryAt    *time.Time
	DeliveredAt         *time.Time
	CancelledAt         *time.Time
	HistorySequence     int
	Version             int

	Lines []LineDTO `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (OrderDTO) TableName() string {
	return "orders"
}

type AddressDTO struct {
	Line1 string
	Line2 string
	City  string
	Zip   string `gorm:"size:16"`
	Lat   *float64
	Lng   *float64
}

// LineDTO is one frozen line item. Add-ons are kept as a JSON array because they
// are only ever read together with their line.
type LineDTO struct {
	OrderID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	Position            int       `gorm:"primaryKey"`
	StoreProductID      uuid.UUID `gorm:"type:uuid"`
	ProductName         string
	Quantity            int
	UnitPrice           decimal.Decimal `gorm:"type:numeric(12,2)"`
	SpecialInstructions string
	AddOns              string `gorm:"type:text"`
}

func (LineDTO) TableName() string {
	return "order_items"
}

type addOnJSON struct {
	IngredientID string          `json:"ingredient_id"`
	Name         string          `json:"name"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
}

// HistoryDTO is one status change. Rows are inserted, never updated.
type HistoryDTO struct {
	OrderID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sequence   int       `gorm:"primaryKey"`
	FromStatus int
	ToStatus   int
	ActorID    string
	ActorRole  string `gorm:"size:32"`
	Note       string
	Override   bool
	At         time.Time
}

func (HistoryDTO) TableName() string {
	return "order_status_history"
}

func fromDomain(o *order.Order) (OrderDTO, error) {
	lat, lng := pgconv.GeoColumns(o.Address().Location())
	dto := OrderDTO{
		ID:         o.ID().Bytes(),
		Number:     o.Number(),
		CustomerID: o.CustomerID().Bytes(),
		StoreID:    o.StoreID().Bytes(),
		Address: AddressDTO{
			Line1: o.Address().Line1(),
			Line2: o.Address().Line2(),
			City:  o.Address().City(),
			Zip:   o.Address().Zip(),
			Lat:   lat,
			Lng:   lng,
		},
		Subtotal:            o.Subtotal(),
		DeliveryFee:         o.DeliveryFee(),
		Tax:                 o.Tax(),
		Discount:            o.Discount(),
		Total:               o.Total(),
		SpecialInstructions: o.SpecialInstructions(),
		Status:              int(o.Status()),
		PaymentStatus:       int(o.PaymentStatus()),
		PaymentMethod:       o.PaymentMethod(),
		ActivePaymentID:     pgconv.UUIDPtr(o.ActivePaymentID()),
		ActiveAssignmentID:  pgconv.UUIDPtr(o.ActiveAssignmentID()),
		CancellationReason:  o.CancellationReason(),
		CreatedAt:           o.CreatedAt(),
		ConfirmedAt:         o.ConfirmedAt(),
		ReadyAt:             o.ReadyAt(),
		OutForDeliveryAt:    o.OutForDeliveryAt(),
		DeliveredAt:         o.DeliveredAt(),
		CancelledAt:         o.CancelledAt(),
		HistorySequence:     o.HistorySequence(),
		Version:             o.Version(),
	}

	for i, line := range o.Lines() {
		addOns := make([]addOnJSON, 0, len(line.AddOns()))
		for _, a := range line.AddOns() {
			addOns = append(addOns, addOnJSON{
				IngredientID: a.IngredientID().String(),
				Name:         a.Name(),
				Quantity:     a.Quantity(),
				UnitPrice:    a.UnitPrice(),
			})
		}
		raw, err := json.Marshal(addOns)
		if err != nil {
			return OrderDTO{}, err
		}
		dto.Lines = append(dto.Lines, LineDTO{
			OrderID:             dto.ID,
			Position:            i,
			StoreProductID:      line.StoreProductID().Bytes(),
			ProductName:         line.ProductName(),
			Quantity:            line.Quantity(),
			UnitPrice:           line.UnitPrice(),
			SpecialInstructions: line.SpecialInstructions(),
			AddOns:              string(raw),
		})
	}
	return dto, nil
}

func toDomain(dto OrderDTO) (*order.Order, error) {
	id, err := pgconv.FromUUID(dto.ID)
	if err != nil {
		return nil, err
	}
	customerID, err := pgconv.FromUUID(dto.CustomerID)
	if err != nil {
		return nil, err
	}
	storeID, err := pgconv.FromUUID(dto.StoreID)
	if err != nil {
		return nil, err
	}
	activePaymentID, err := pgconv.FromUUIDPtr(dto.ActivePaymentID)
	if err != nil {
		return nil, err
	}
	activeAssignmentID, err := pgconv.FromUUIDPtr(dto.ActiveAssignmentID)
	if err != nil {
		return nil, err
	}
	location, err := pgconv.GeoPoint(dto.Address.Lat, dto.Address.Lng)
	if err != nil {
		return nil, err
	}
	address, err := cart.NewAddress(dto.Address.Line1, dto.Address.Line2, dto.Address.City, dto.Address.Zip, location)
	if err != nil {
		return nil, err
	}
	lines, err := linesToDomain(dto.Lines)
	if err != nil {
		return nil, err
	}

	return order.RestoreOrder(order.RestoreParams{
		ID:                  id,
		Number:              dto.Number,
		CustomerID:          customerID,
		StoreID:             storeID,
		Address:             address,
		Lines:               lines,
		Subtotal:            dto.Subtotal,
		DeliveryFee:         dto.DeliveryFee,
		Tax:                 dto.Tax,
		Discount:            dto.Discount,
		Total:               dto.Total,
		SpecialInstructions: dto.SpecialInstructions,
		Status:              order.Status(dto.Status),
		PaymentStatus:       order.PaymentStatus(dto.PaymentStatus),
		PaymentMethod:       dto.PaymentMethod,
		ActivePaymentID:     activePaymentID,
		ActiveAssignmentID:  activeAssignmentID,
		CancellationReason:  dto.CancellationReason,
		CreatedAt:           dto.CreatedAt,
		ConfirmedAt:         dto.ConfirmedAt,
		ReadyAt:             dto.ReadyAt,
		OutForDeliveryAt:    dto.OutForDeliveryAt,
		DeliveredAt:         dto.DeliveredAt,
		CancelledAt:         dto.CancelledAt,
		HistorySequence:     dto.HistorySequence,
		Version:             dto.Version,
	})
}

func linesToDomain(dtos []LineDTO) ([]cart.LineItem, error) {
	lines := make([]cart.LineItem, 0, len(dtos))
	for _, l := range dtos {
		productID, err := pgconv.FromUUID(l.StoreProductID)
		if err != nil {
			return nil, err
		}
		var stored []addOnJSON
		if l.AddOns != "" {
			if err = json.Unmarshal([]byte(l.AddOns), &stored); err != nil {
				return nil, err
			}
		}
		addOns := make([]cart.AddOn, 0, len(stored))
		for _, a := range stored {
			ingredientID, err := kernel.UUIDFromString(a.IngredientID)
			if err != nil {
				return nil, err
			}
			addOn, err := cart.NewAddOn(ingredientID, a.Name, a.Quantity, a.UnitPrice)
			if err != nil {
				return nil, err
			}
			addOns = append(addOns, addOn)
		}
		line, err := cart.NewLineItem(productID, l.ProductName, l.Quantity, l.UnitPrice, addOns, l.SpecialInstructions)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func historyFromDomain(orderID kernel.UUID, entries []order.HistoryEntry) []HistoryDTO {
	dtos := make([]HistoryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, HistoryDTO{
			OrderID:    orderID.Bytes(),
			Sequence:   e.Sequence,
			FromStatus: int(e.From),
			ToStatus:   int(e.To),
			ActorID:    e.Actor.ID(),
			ActorRole:  e.Actor.Role().String(),
			Note:       e.Note,
			Override:   e.Override,
			At:         e.At,
		})
	}
	return dtos
}

func historyToDomain(dto HistoryDTO) (order.HistoryEntry, error) {
	actor, err := pgconv.Actor(dto.ActorID, dto.ActorRole)
	if err != nil {
		return order.HistoryEntry{}, err
	}
	return order.HistoryEntry{
		Sequence: dto.Sequence,
		From:     order.Status(dto.FromStatus),
		To:       order.Status(dto.ToStatus),
		Actor:    actor,
		Note:     dto.Note,
		Override: dto.Override,
		At:       dto.At.UTC(),
	}, nil
}

// Package pgconv converts between kernel values and the column types the gorm
// repositories persist.
package pgconv

import (
	"errors"
	"fmt"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/pkg/errs"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func UUIDPtr(id *kernel.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	raw := id.Bytes()
	return &raw
}

func FromUUID(raw uuid.UUID) (kernel.UUID, error) {
	return kernel.UUIDFromBytes(raw[:])
}

func FromUUIDPtr(raw *uuid.UUID) (*kernel.UUID, error) {
	if raw == nil {
		return nil, nil
	}
	id, err := kernel.UUIDFromBytes(raw[:])
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func Actor(id, role string) (kernel.Actor, error) {
	parsed, err := kernel.ParseActorRole(role)
	if err != nil {
		return kernel.Actor{}, err
	}
	return kernel.NewActor(id, parsed)
}

// GeoColumns splits a point into nullable columns; an unset point stores NULLs.
func GeoColumns(p kernel.GeoPoint) (lat, lng *float64) {
	if !p.IsSet() {
		return nil, nil
	}
	la, ln := p.Lat(), p.Lng()
	return &la, &ln
}

func GeoPoint(lat, lng *float64) (kernel.GeoPoint, error) {
	if lat == nil || lng == nil {
		return kernel.GeoPoint{}, nil
	}
	return kernel.NewGeoPoint(*lat, *lng)
}

// Translate maps driver errors to the error taxonomy. The connection must be opened
// with gorm.Config.TranslateError for unique violations to be recognized.
func Translate(err error, entity string, id any) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %s %v", errs.ErrAlreadyExists, entity, id)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errs.NewObjectNotFoundError(entity, id)
	default:
		return err
	}
}

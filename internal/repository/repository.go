// Package repository implements the facility store: facility metadata, live
// sensor values and the append-only reservation list of every facility.
//
// The store makes no admission decisions. It offers a per-facility critical
// section (WithFacility) inside which the caller reads state and appends.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Shivanand-hulikatti/gym-capacity/internal/model"
)

// ErrNotFound is returned when a requested facility does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateReservation is returned by backings that enforce a unique
// (facility, user) index when an append would violate it.
var ErrDuplicateReservation = errors.New("reservation already exists for this user")

// ErrConflict is returned when an optimistic transaction could not commit
// within its retry budget.
var ErrConflict = errors.New("concurrent modification, retries exhausted")

// FacilityTx is the view of one facility inside its critical section.
// Appends become visible only if the enclosing function returns nil.
type FacilityTx interface {
	Facility() model.Facility
	Reservations() []model.Reservation
	AppendReservation(ctx context.Context, r model.Reservation) error
}

// FacilityStore is the only holder of facility and reservation state.
type FacilityStore interface {
	// PutFacility creates a facility or replaces its metadata, keeping its
	// reservations.
	PutFacility(ctx context.Context, f model.Facility) error
	GetFacility(ctx context.Context, id string) (*model.Facility, error)
	ListFacilities(ctx context.Context) ([]model.Facility, error)
	// ListReservations returns reservations in creation order, or an empty
	// slice for an unknown facility.
	ListReservations(ctx context.Context, facilityID string) ([]model.Reservation, error)
	// AppendReservation appends unconditionally.
	AppendReservation(ctx context.Context, r model.Reservation) error
	SetSensorFullness(ctx context.Context, facilityID string, fullness int, at time.Time) error
	// Snapshot reads a facility and its reservations as of one instant.
	Snapshot(ctx context.Context, facilityID string) (*model.Facility, []model.Reservation, error)
	// WithFacility runs fn while no other WithFacility call for the same
	// facility can observe or change its state.
	WithFacility(ctx context.Context, facilityID string, fn func(tx FacilityTx) error) error
	Close() error
}

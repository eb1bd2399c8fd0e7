// Package service implements the admission controller: capacity queries,
// the book-or-reject decision and the facility/sensor maintenance that feeds
// it.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/gym-capacity/internal/logger"
	"github.com/Shivanand-hulikatti/gym-capacity/internal/metrics"
	"github.com/Shivanand-hulikatti/gym-capacity/internal/model"
	"github.com/Shivanand-hulikatti/gym-capacity/internal/occupancy"
	"github.com/Shivanand-hulikatti/gym-capacity/internal/repository"
	"github.com/google/uuid"
)

// ErrNotFound is returned when the referenced facility does not exist.
var ErrNotFound = errors.New("facility not found")

// ErrCapacityExceeded is returned when no slot remains for a reservation.
var ErrCapacityExceeded = errors.New("facility is at max capacity")

// ErrDuplicateBooking is returned when the user already holds a reservation
// at the facility.
var ErrDuplicateBooking = errors.New("user already has a booking for this facility")

// ErrInvalidRequest is returned for malformed input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrStoreUnavailable wraps any failure of the underlying store. It is never
// used for business rejections.
var ErrStoreUnavailable = errors.New("storage unavailable")

// Notifier is told about every admitted reservation after it is committed.
// It is called once per admission and its error is only logged.
type Notifier interface {
	ReservationAdmitted(ctx context.Context, r model.Reservation) error
}

// AdmissionController decides whether reservations may be admitted.
type AdmissionController struct {
	store     repository.FacilityStore
	validator *Validator
	notifier  Notifier
	metrics   *metrics.Metrics
	log       *logger.Logger
	now       func() time.Time
	newID     func() string
}

// Option configures an AdmissionController.
type Option func(*AdmissionController)

// WithNotifier publishes every admitted reservation through n.
func WithNotifier(n Notifier) Option {
	return func(c *AdmissionController) { c.notifier = n }
}

// WithMetrics records decisions and occupancy in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *AdmissionController) { c.metrics = m }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *logger.Logger) Option {
	return func(c *AdmissionController) { c.log = log }
}

// WithClock replaces time.Now for reservation and sensor timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *AdmissionController) { c.now = now }
}

// WithIDFunc replaces the random UUID source for reservation ids.
func WithIDFunc(newID func() string) Option {
	return func(c *AdmissionController) { c.newID = newID }
}

// NewAdmissionController constructs an AdmissionController over store.
func NewAdmissionController(store repository.FacilityStore, opts ...Option) *AdmissionController {
	c := &AdmissionController{
		store:     store,
		validator: NewValidator(),
		log:       logger.Discard(),
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterFacilities creates or updates the given facilities. It is the
// explicit initialization path; nothing is seeded implicitly.
func (c *AdmissionController) RegisterFacilities(ctx context.Context, defs []model.FacilityDefinition) error {
	seen := make(map[string]struct{}, len(defs))
	for i := range defs {
		defs[i].ID = strings.TrimSpace(defs[i].ID)
		defs[i].Name = strings.TrimSpace(defs[i].Name)
		if err := c.validator.Struct(defs[i]); err != nil {
			return fmt.Errorf("%w: facility %d: %v", ErrInvalidRequest, i, err)
		}
		if _, dup := seen[defs[i].ID]; dup {
			return fmt.Errorf("%w: facility %q defined twice", ErrInvalidRequest, defs[i].ID)
		}
		seen[defs[i].ID] = struct{}{}
	}

	for _, d := range defs {
		f := model.Facility{
			ID:             d.ID,
			Name:           d.Name,
			MaxCapacity:    d.MaxCapacity,
			SensorFullness: d.SensorFullness,
			UpdatedAt:      c.now().UTC(),
		}
		if err := c.store.PutFacility(ctx, f); err != nil {
			return c.translate(err)
		}
		c.log.Info("Facility registered",
			"facility_id", f.ID,
			"max_capacity", f.MaxCapacity,
			"sensor_fullness", f.SensorFullness,
		)
	}
	return nil
}

// Query returns the current capacity reading of a facility, computed from a
// single consistent snapshot.
func (c *AdmissionController) Query(ctx context.Context, facilityID string) (*model.Capacity, error) {
	if facilityID == "" {
		return nil, fmt.Errorf("%w: facility id is required", ErrInvalidRequest)
	}

	f, reservations, err := c.store.Snapshot(ctx, facilityID)
	if err != nil {
		return nil, c.translate(err)
	}

	capacity := occupancy.Compute(*f, len(reservations))
	c.metrics.SetOccupancy(f.ID, capacity.CapacityPercentage)
	return &capacity, nil
}

// Book admits a reservation for userID at facilityID or rejects it.
//
// The capacity check, the duplicate check and the append run inside the
// store's per-facility critical section, so two concurrent calls for the
// same facility can never both pass the checks on a stale list. A rejection
// leaves no trace in the store.
func (c *AdmissionController) Book(ctx context.Context, userID, facilityID string) (*model.Reservation, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrInvalidRequest)
	}
	if facilityID == "" {
		return nil, fmt.Errorf("%w: facility id is required", ErrInvalidRequest)
	}

	start := time.Now()
	var admitted model.Reservation
	err := c.store.WithFacility(ctx, facilityID, func(tx repository.FacilityTx) error {
		f := tx.Facility()
		reservations := tx.Reservations()

		if !occupancy.HasRoom(f, len(reservations)) {
			return ErrCapacityExceeded
		}
		for _, r := range reservations {
			if r.UserID == userID {
				return ErrDuplicateBooking
			}
		}

		admitted = model.Reservation{
			ID:         c.newID(),
			UserID:     userID,
			FacilityID: f.ID,
			CreatedAt:  c.now().UTC(),
		}
		return tx.AppendReservation(ctx, admitted)
	})
	err = c.translate(err)
	c.metrics.ObserveDecision(facilityID, outcome(err), time.Since(start))

	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			c.log.Error("Booking failed", "facility_id", facilityID, "user_id", userID, "error", err)
		} else {
			c.log.Info("Booking rejected", "facility_id", facilityID, "user_id", userID, "reason", err.Error())
		}
		return nil, err
	}

	c.log.Info("Booking admitted",
		"id", admitted.ID,
		"facility_id", admitted.FacilityID,
		"user_id", admitted.UserID,
	)

	// Delivery is at most once: the reservation is already committed, so a
	// failed publish is logged and not retried. A client that disconnects
	// does not cancel the publish.
	if c.notifier != nil {
		if nerr := c.notifier.ReservationAdmitted(context.WithoutCancel(ctx), admitted); nerr != nil {
			c.log.Warn("Failed to publish admitted reservation", "id", admitted.ID, "error", nerr)
		}
	}
	return &admitted, nil
}

// UpdateSensor applies one reading from the external occupancy feed.
func (c *AdmissionController) UpdateSensor(ctx context.Context, reading model.SensorReading) error {
	if err := c.validator.Struct(reading); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if reading.ObservedAt.IsZero() {
		reading.ObservedAt = c.now()
	}

	if err := c.store.SetSensorFullness(ctx, reading.FacilityID, reading.Fullness, reading.ObservedAt.UTC()); err != nil {
		return c.translate(err)
	}
	c.metrics.SensorReading(reading.FacilityID)
	c.log.Debug("Sensor reading applied",
		"facility_id", reading.FacilityID,
		"fullness", reading.Fullness,
		"source", reading.Source,
	)
	return nil
}

// GetFacility returns a single facility.
func (c *AdmissionController) GetFacility(ctx context.Context, id string) (*model.Facility, error) {
	f, err := c.store.GetFacility(ctx, id)
	if err != nil {
		return nil, c.translate(err)
	}
	return f, nil
}

// ListFacilities returns every registered facility.
func (c *AdmissionController) ListFacilities(ctx context.Context) ([]model.Facility, error) {
	facilities, err := c.store.ListFacilities(ctx)
	if err != nil {
		return nil, c.translate(err)
	}
	return facilities, nil
}

// ListReservations returns the reservations of a facility in creation order.
func (c *AdmissionController) ListReservations(ctx context.Context, facilityID string) ([]model.Reservation, error) {
	if _, err := c.store.GetFacility(ctx, facilityID); err != nil {
		return nil, c.translate(err)
	}
	reservations, err := c.store.ListReservations(ctx, facilityID)
	if err != nil {
		return nil, c.translate(err)
	}
	return reservations, nil
}

// translate maps store errors onto the controller's taxonomy. Business
// rejections pass through untouched.
func (c *AdmissionController) translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrCapacityExceeded),
		errors.Is(err, ErrDuplicateBooking),
		errors.Is(err, ErrInvalidRequest):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrDuplicateReservation):
		return ErrDuplicateBooking
	default:
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeAdmitted
	case errors.Is(err, ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrCapacityExceeded):
		return metrics.OutcomeCapacityExceeded
	case errors.Is(err, ErrDuplicateBooking):
		return metrics.OutcomeDuplicate
	default:
		return metrics.OutcomeError
	}
}

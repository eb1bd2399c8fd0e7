// Package model defines the core domain types for the facility occupancy and
// reservation system.
package model

import "time"

// Facility is a bookable venue with a fixed ceiling and a live sensor estimate.
type Facility struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	MaxCapacity    int       `json:"maxCapacity"`
	SensorFullness int       `json:"sensorFullness"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Reservation is a confirmed slot held by one user at one facility.
type Reservation struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	FacilityID string    `json:"facilityId"`
	CreatedAt  time.Time `json:"timestamp"`
}

// Capacity is the occupancy reading returned to callers.
type Capacity struct {
	FacilityID         string `json:"facilityId"`
	CapacityPercentage int    `json:"capacityPercentage"`
	MaxCapacity        int    `json:"maxCapacity"`
	CurrentCount       int    `json:"currentCount"`
}

// SensorReading is one value reported by the external occupancy feed.
type SensorReading struct {
	FacilityID string    `json:"facilityId" bson:"facility_id" validate:"required,max=128"`
	Fullness   int       `json:"fullness" bson:"fullness" validate:"min=0,max=100"`
	ObservedAt time.Time `json:"observedAt" bson:"observed_at"`
	Source     string    `json:"source,omitempty" bson:"source,omitempty"`
}

// FacilityDefinition is the seeding input accepted by the controller.
type FacilityDefinition struct {
	ID             string `json:"id" validate:"required,max=128"`
	Name           string `json:"name" validate:"max=200"`
	MaxCapacity    int    `json:"maxCapacity" validate:"required,min=1,max=1000000"`
	SensorFullness int    `json:"sensorFullness" validate:"min=0,max=100"`
}

// BookRequest is the payload for reserving a slot.
type BookRequest struct {
	UserID string `json:"userId" validate:"required,max=128"`
}

// SensorUpdateRequest is the payload for reporting a sensor value over HTTP.
type SensorUpdateRequest struct {
	Fullness *int   `json:"fullness" validate:"required,min=0,max=100"`
	Source   string `json:"source,omitempty" validate:"max=64"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// BookingResult summarises the outcome of a single booking attempt.
// Used by the concurrent test harnesses.
type BookingResult struct {
	UserID  string
	Success bool
	Error   error
}

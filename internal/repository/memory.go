package repository

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/gym-capacity/internal/model"
)

// MemoryStore keeps all state in process memory. Each facility carries its
// own lock; the outer lock only guards the facility index.
type MemoryStore struct {
	mu         sync.RWMutex
	facilities map[string]*facilityState
}

type facilityState struct {
	mu           sync.RWMutex
	facility     model.Facility
	reservations []model.Reservation
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{facilities: make(map[string]*facilityState)}
}

func (s *MemoryStore) state(id string) (*facilityState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.facilities[id]
	return st, ok
}

// PutFacility creates the facility or replaces its metadata in place.
func (s *MemoryStore) PutFacility(_ context.Context, f model.Facility) error {
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	st, ok := s.facilities[f.ID]
	if !ok {
		s.facilities[f.ID] = &facilityState{facility: f}
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	st.mu.Lock()
	st.facility = f
	st.mu.Unlock()
	return nil
}

// GetFacility returns a copy of the facility or ErrNotFound.
func (s *MemoryStore) GetFacility(_ context.Context, id string) (*model.Facility, error) {
	st, ok := s.state(id)
	if !ok {
		return nil, ErrNotFound
	}
	st.mu.RLock()
	f := st.facility
	st.mu.RUnlock()
	return &f, nil
}

// ListFacilities returns all facilities ordered by id.
func (s *MemoryStore) ListFacilities(_ context.Context) ([]model.Facility, error) {
	s.mu.RLock()
	states := make([]*facilityState, 0, len(s.facilities))
	for _, st := range s.facilities {
		states = append(states, st)
	}
	s.mu.RUnlock()

	out := make([]model.Facility, 0, len(states))
	for _, st := range states {
		st.mu.RLock()
		out = append(out, st.facility)
		st.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListReservations returns a copy of the reservation list.
func (s *MemoryStore) ListReservations(_ context.Context, facilityID string) ([]model.Reservation, error) {
	st, ok := s.state(facilityID)
	if !ok {
		return []model.Reservation{}, nil
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return slices.Clone(st.reservations), nil
}

// AppendReservation appends r to its facility's list.
func (s *MemoryStore) AppendReservation(_ context.Context, r model.Reservation) error {
	st, ok := s.state(r.FacilityID)
	if !ok {
		return ErrNotFound
	}
	st.mu.Lock()
	st.reservations = append(st.reservations, r)
	st.mu.Unlock()
	return nil
}

// SetSensorFullness records a new sensor value.
func (s *MemoryStore) SetSensorFullness(_ context.Context, facilityID string, fullness int, at time.Time) error {
	st, ok := s.state(facilityID)
	if !ok {
		return ErrNotFound
	}
	st.mu.Lock()
	st.facility.SensorFullness = fullness
	st.facility.UpdatedAt = at
	st.mu.Unlock()
	return nil
}

// Snapshot copies the facility and its reservations under one read lock.
func (s *MemoryStore) Snapshot(_ context.Context, facilityID string) (*model.Facility, []model.Reservation, error) {
	st, ok := s.state(facilityID)
	if !ok {
		return nil, nil, ErrNotFound
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	f := st.facility
	return &f, slices.Clone(st.reservations), nil
}

// WithFacility holds the facility's write lock for the duration of fn.
func (s *MemoryStore) WithFacility(ctx context.Context, facilityID string, fn func(tx FacilityTx) error) error {
	st, ok := s.state(facilityID)
	if !ok {
		return ErrNotFound
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	tx := &memoryTx{facility: st.facility, reservations: st.reservations}
	if err := fn(tx); err != nil {
		return err
	}
	if len(tx.pending) > 0 {
		st.reservations = append(st.reservations, tx.pending...)
	}
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

type memoryTx struct {
	facility     model.Facility
	reservations []model.Reservation
	pending      []model.Reservation
}

func (t *memoryTx) Facility() model.Facility { return t.facility }

func (t *memoryTx) Reservations() []model.Reservation {
	if len(t.pending) == 0 {
		return t.reservations
	}
	return append(slices.Clone(t.reservations), t.pending...)
}

func (t *memoryTx) AppendReservation(_ context.Context, r model.Reservation) error {
	if r.FacilityID != t.facility.ID {
		return ErrNotFound
	}
	t.pending = append(t.pending, r)
	return nil
}

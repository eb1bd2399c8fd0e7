package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/gym-capacity/internal/model"
)

// runStoreContract exercises the FacilityStore contract against any backing.
func runStoreContract(t *testing.T, newStore func(t *testing.T) FacilityStore) {
	t.Helper()

	t.Run("unknown facility", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if _, err := s.GetFacility(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, _, err := s.Snapshot(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound from Snapshot, got %v", err)
		}
		list, err := s.ListReservations(ctx, "missing")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(list) != 0 {
			t.Fatalf("expected empty list, got %d", len(list))
		}
		err = s.WithFacility(ctx, "missing", func(tx FacilityTx) error {
			t.Fatal("fn must not run for an unknown facility")
			return nil
		})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound from WithFacility, got %v", err)
		}
		if err := s.SetSensorFullness(ctx, "missing", 10, time.Now()); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound from SetSensorFullness, got %v", err)
		}
	})

	t.Run("put get and list", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		mustPut(t, s, model.Facility{ID: "b", Name: "Beta", MaxCapacity: 10, SensorFullness: 20})
		mustPut(t, s, model.Facility{ID: "a", Name: "Alpha", MaxCapacity: 50, SensorFullness: 0})

		f, err := s.GetFacility(ctx, "b")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if f.Name != "Beta" || f.MaxCapacity != 10 || f.SensorFullness != 20 {
			t.Errorf("unexpected facility: %+v", f)
		}

		all, err := s.ListFacilities(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(all) != 2 || all[0].ID != "a" || all[1].ID != "b" {
			t.Fatalf("expected facilities a, b in order, got %+v", all)
		}
	})

	t.Run("reservations keep creation order", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		mustPut(t, s, model.Facility{ID: "gym", MaxCapacity: 10})

		for i := range 3 {
			r := newReservation("gym", fmt.Sprintf("user-%d", i))
			if err := s.AppendReservation(ctx, r); err != nil {
				t.Fatalf("append %d: %v", i, err)
			}
		}

		list, err := s.ListReservations(ctx, "gym")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(list) != 3 {
			t.Fatalf("expected 3 reservations, got %d", len(list))
		}
		for i, r := range list {
			if want := fmt.Sprintf("user-%d", i); r.UserID != want {
				t.Errorf("position %d: expected %s, got %s", i, want, r.UserID)
			}
		}
	})

	t.Run("put keeps reservations", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		mustPut(t, s, model.Facility{ID: "gym", MaxCapacity: 10})
		if err := s.AppendReservation(ctx, newReservation("gym", "u1")); err != nil {
			t.Fatalf("append: %v", err)
		}
		mustPut(t, s, model.Facility{ID: "gym", Name: "Renamed", MaxCapacity: 20})

		f, list, err := s.Snapshot(ctx, "gym")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if f.Name != "Renamed" || f.MaxCapacity != 20 {
			t.Errorf("metadata not replaced: %+v", f)
		}
		if len(list) != 1 {
			t.Errorf("expected reservation to survive, got %d", len(list))
		}
	})

	t.Run("sensor update", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		mustPut(t, s, model.Facility{ID: "gym", MaxCapacity: 10, SensorFullness: 10})

		at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		if err := s.SetSensorFullness(ctx, "gym", 90, at); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		f, err := s.GetFacility(ctx, "gym")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if f.SensorFullness != 90 {
			t.Errorf("expected fullness 90, got %d", f.SensorFullness)
		}
		if !f.UpdatedAt.Equal(at) {
			t.Errorf("expected updated_at %v, got %v", at, f.UpdatedAt)
		}
	})

	t.Run("failed section has no side effects", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		mustPut(t, s, model.Facility{ID: "gym", MaxCapacity: 10})

		rejected := errors.New("rejected")
		err := s.WithFacility(ctx, "gym", func(tx FacilityTx) error {
			if err := tx.AppendReservation(ctx, newReservation("gym", "u1")); err != nil {
				return err
			}
			return rejected
		})
		if !errors.Is(err, rejected) {
			t.Fatalf("expected fn error to propagate, got %v", err)
		}

		list, err := s.ListReservations(ctx, "gym")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(list) != 0 {
			t.Fatalf("expected no reservations after rejected section, got %d", len(list))
		}
	})

	t.Run("committed section appends", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		mustPut(t, s, model.Facility{ID: "gym", MaxCapacity: 10, SensorFullness: 50})

		err := s.WithFacility(ctx, "gym", func(tx FacilityTx) error {
			if tx.Facility().SensorFullness != 50 {
				t.Errorf("expected fullness 50 inside section, got %d", tx.Facility().SensorFullness)
			}
			if err := tx.AppendReservation(ctx, newReservation("gym", "u1")); err != nil {
				return err
			}
			if n := len(tx.Reservations()); n != 1 {
				t.Errorf("expected pending append to be visible inside section, got %d", n)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		_, list, err := s.Snapshot(ctx, "gym")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(list) != 1 || list[0].UserID != "u1" {
			t.Fatalf("expected u1 committed, got %+v", list)
		}
	})

	t.Run("concurrent sections do not lose updates", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		mustPut(t, s, model.Facility{ID: "gym", MaxCapacity: 1000})

		const workers = 12
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := range workers {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- s.WithFacility(ctx, "gym", func(tx FacilityTx) error {
					return tx.AppendReservation(ctx, newReservation("gym", fmt.Sprintf("user-%d", i)))
				})
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		list, err := s.ListReservations(ctx, "gym")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(list) != workers {
			t.Fatalf("expected %d reservations, got %d", workers, len(list))
		}
	})
}

func mustPut(t *testing.T, s FacilityStore, f model.Facility) {
	t.Helper()
	if err := s.PutFacility(context.Background(), f); err != nil {
		t.Fatalf("put facility %s: %v", f.ID, err)
	}
}

var reservationSeq atomic.Int64

func newReservation(facilityID, userID string) model.Reservation {
	return model.Reservation{
		ID:         fmt.Sprintf("%s-%s-%d", facilityID, userID, reservationSeq.Add(1)),
		UserID:     userID,
		FacilityID: facilityID,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
}

package repository

import (
	"context"
	"testing"

	"github.com/Shivanand-hulikatti/gym-capacity/internal/model"
)

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) FacilityStore {
		return NewMemoryStore()
	})
}

func TestMemoryStore_ListReservationsReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	mustPut(t, s, model.Facility{ID: "gym", MaxCapacity: 5})
	if err := s.AppendReservation(ctx, newReservation("gym", "u1")); err != nil {
		t.Fatalf("append: %v", err)
	}

	list, _ := s.ListReservations(ctx, "gym")
	list[0].UserID = "tampered"

	again, _ := s.ListReservations(ctx, "gym")
	if again[0].UserID != "u1" {
		t.Fatalf("store state leaked through returned slice: %s", again[0].UserID)
	}
}

func TestMemoryStore_AppendToUnknownFacility(t *testing.T) {
	s := NewMemoryStore()
	if err := s.AppendReservation(context.Background(), newReservation("nope", "u1")); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

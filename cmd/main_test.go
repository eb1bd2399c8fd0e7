package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Shivanand-hulikatti/gym-capacity/internal/repository"
	"github.com/Shivanand-hulikatti/gym-capacity/internal/service"
)

func TestSeed_Default(t *testing.T) {
	ctrl := service.NewAdmissionController(repository.NewMemoryStore())
	if err := seed(context.Background(), ctrl, ""); err != nil {
		t.Fatalf("seed: %v", err)
	}

	capacity, err := ctrl.Query(context.Background(), "gym-123")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if capacity.CapacityPercentage != 75 || capacity.MaxCapacity != 100 {
		t.Errorf("unexpected default facility %+v", capacity)
	}
}

func TestSeed_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facilities.json")
	data := `[{"id":"north","name":"North Gym","maxCapacity":40,"sensorFullness":50},
	          {"id":"south","name":"South Gym","maxCapacity":10}]`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	ctrl := service.NewAdmissionController(repository.NewMemoryStore())
	if err := seed(context.Background(), ctrl, path); err != nil {
		t.Fatalf("seed: %v", err)
	}

	facilities, _ := ctrl.ListFacilities(context.Background())
	if len(facilities) != 2 {
		t.Fatalf("expected 2 facilities, got %d", len(facilities))
	}
	if _, err := ctrl.Query(context.Background(), "gym-123"); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("default facility must not be seeded when a file is given, got %v", err)
	}
}

func TestSeed_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facilities.json")
	if err := os.WriteFile(path, []byte(`[{"id":"x","maxCapacity":0}]`), 0o600); err != nil {
		t.Fatal(err)
	}

	ctrl := service.NewAdmissionController(repository.NewMemoryStore())
	if err := seed(context.Background(), ctrl, path); !errors.Is(err, service.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
	if err := seed(context.Background(), ctrl, filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

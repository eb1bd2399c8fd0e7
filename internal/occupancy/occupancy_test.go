package occupancy

import (
	"testing"

	"github.com/Shivanand-hulikatti/gym-capacity/internal/model"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name        string
		max         int
		fullness    int
		reserved    int
		wantPercent int
		wantCount   int
	}{
		{name: "sensor only", max: 100, fullness: 75, reserved: 0, wantPercent: 75, wantCount: 75},
		{name: "one reservation", max: 100, fullness: 75, reserved: 1, wantPercent: 76, wantCount: 76},
		{name: "empty facility", max: 40, fullness: 0, reserved: 0, wantPercent: 0, wantCount: 0},
		{name: "sensor floors", max: 30, fullness: 50, reserved: 0, wantPercent: 50, wantCount: 15},
		{name: "floor on odd capacity", max: 7, fullness: 50, reserved: 0, wantPercent: 43, wantCount: 3},
		{name: "round half up", max: 8, fullness: 0, reserved: 1, wantPercent: 13, wantCount: 1},
		{name: "clamped at max", max: 100, fullness: 100, reserved: 12, wantPercent: 100, wantCount: 100},
		{name: "near full sensor plus many reservations", max: 10, fullness: 99, reserved: 50, wantPercent: 100, wantCount: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := model.Facility{ID: "f", MaxCapacity: tt.max, SensorFullness: tt.fullness}
			got := Compute(f, tt.reserved)
			if got.CapacityPercentage != tt.wantPercent {
				t.Errorf("percentage: expected %d, got %d", tt.wantPercent, got.CapacityPercentage)
			}
			if got.CurrentCount != tt.wantCount {
				t.Errorf("count: expected %d, got %d", tt.wantCount, got.CurrentCount)
			}
			if got.MaxCapacity != tt.max || got.FacilityID != "f" {
				t.Errorf("unexpected identity fields: %+v", got)
			}
		})
	}
}

func TestCompute_BoundsHoldForAllInputs(t *testing.T) {
	for _, maxCap := range []int{1, 2, 3, 7, 10, 99, 100, 101, 1000} {
		for fullness := 0; fullness <= 100; fullness++ {
			for _, reserved := range []int{0, 1, 5, maxCap, 3 * maxCap} {
				f := model.Facility{MaxCapacity: maxCap, SensorFullness: fullness}
				got := Compute(f, reserved)
				if got.CurrentCount > maxCap || got.CurrentCount < 0 {
					t.Fatalf("max=%d fullness=%d reserved=%d: count %d out of range", maxCap, fullness, reserved, got.CurrentCount)
				}
				if got.CapacityPercentage < 0 || got.CapacityPercentage > 100 {
					t.Fatalf("max=%d fullness=%d reserved=%d: percentage %d out of range", maxCap, fullness, reserved, got.CapacityPercentage)
				}
			}
		}
	}
}

func TestAvailableSlots(t *testing.T) {
	tests := []struct {
		max, fullness, want int
	}{
		{100, 75, 25},
		{100, 100, 0},
		{100, 0, 100},
		{3, 50, 2},
		{1, 99, 1},
	}
	for _, tt := range tests {
		if got := AvailableSlots(tt.fullness, tt.max); got != tt.want {
			t.Errorf("AvailableSlots(%d, %d): expected %d, got %d", tt.fullness, tt.max, tt.want, got)
		}
	}
}

func TestHasRoom(t *testing.T) {
	f := model.Facility{MaxCapacity: 100, SensorFullness: 75}
	if !HasRoom(f, 24) {
		t.Error("expected room with 24 of 25 slots taken")
	}
	if HasRoom(f, 25) {
		t.Error("expected no room with all 25 slots taken")
	}

	full := model.Facility{MaxCapacity: 10, SensorFullness: 100}
	if HasRoom(full, 0) {
		t.Error("expected no room when the sensor reports a full facility")
	}
}

// Package occupancy holds the pure arithmetic that blends a sensor estimate
// with confirmed reservations. Nothing here touches state.
package occupancy

import "github.com/Shivanand-hulikatti/gym-capacity/internal/model"

// SensorCount is floor(fullness/100 * maxCapacity) computed on integers.
func SensorCount(sensorFullness, maxCapacity int) int {
	if maxCapacity <= 0 || sensorFullness <= 0 {
		return 0
	}
	return sensorFullness * maxCapacity / 100
}

// AvailableSlots is the room left for reservations once the sensor estimate
// is subtracted. Never negative.
func AvailableSlots(sensorFullness, maxCapacity int) int {
	return max(0, maxCapacity-SensorCount(sensorFullness, maxCapacity))
}

// EffectiveCount is the sensor estimate plus reservations, capped at maxCapacity.
func EffectiveCount(sensorFullness, maxCapacity, reserved int) int {
	return min(maxCapacity, SensorCount(sensorFullness, maxCapacity)+max(0, reserved))
}

// Percentage rounds count/maxCapacity*100 half up and caps it at 100.
func Percentage(count, maxCapacity int) int {
	if maxCapacity <= 0 || count <= 0 {
		return 0
	}
	return min(100, (count*200+maxCapacity)/(2*maxCapacity))
}

// Compute returns the capacity reading for f given the number of reservations.
func Compute(f model.Facility, reserved int) model.Capacity {
	count := EffectiveCount(f.SensorFullness, f.MaxCapacity, reserved)
	return model.Capacity{
		FacilityID:         f.ID,
		CapacityPercentage: Percentage(count, f.MaxCapacity),
		MaxCapacity:        f.MaxCapacity,
		CurrentCount:       count,
	}
}

// HasRoom reports whether another reservation fits next to reserved ones.
func HasRoom(f model.Facility, reserved int) bool {
	return reserved < AvailableSlots(f.SensorFullness, f.MaxCapacity)
}

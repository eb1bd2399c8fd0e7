// Package sensorfeed applies external occupancy readings to facilities,
// either from a Kafka topic or from the local HTTP ingestion path.
package sensorfeed

import (
	"context"

	"github.com/Shivanand-hulikatti/gym-capacity/internal/logger"
	"github.com/Shivanand-hulikatti/gym-capacity/internal/model"
)

// SensorUpdater applies a reading to the facility it names.
type SensorUpdater interface {
	UpdateSensor(ctx context.Context, reading model.SensorReading) error
}

// Recorder keeps a history of applied readings.
type Recorder interface {
	Record(ctx context.Context, reading model.SensorReading) error
}

// Ingestor applies readings and, when a recorder is configured, archives them.
type Ingestor struct {
	updater  SensorUpdater
	recorder Recorder
	log      *logger.Logger
}

// NewIngestor returns an Ingestor. recorder may be nil.
func NewIngestor(updater SensorUpdater, recorder Recorder, log *logger.Logger) *Ingestor {
	return &Ingestor{updater: updater, recorder: recorder, log: log}
}

// Ingest applies reading. Archive failures are logged and do not undo the
// applied value.
func (i *Ingestor) Ingest(ctx context.Context, reading model.SensorReading) error {
	if err := i.updater.UpdateSensor(ctx, reading); err != nil {
		return err
	}
	if i.recorder == nil {
		return nil
	}
	if err := i.recorder.Record(ctx, reading); err != nil {
		i.log.Warn("Failed to archive sensor reading",
			"facility_id", reading.FacilityID,
			"error", err,
		)
	}
	return nil
}

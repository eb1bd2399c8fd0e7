// Package archive stores received sensor readings in MongoDB so recent
// history per facility can be inspected.
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/gym-capacity/internal/logger"
	"github.com/Shivanand-hulikatti/gym-capacity/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	CollectionName = "SensorReadings"
	DefaultLimit   = 50
	MaxLimit       = 500
)

// MongoArchive appends sensor readings to a single collection.
type MongoArchive struct {
	client     *mongo.Client
	collection *mongo.Collection
	timeout    time.Duration
}

// Connect dials uri, verifies the connection and ensures the lookup index.
func Connect(ctx context.Context, uri, database string, timeout time.Duration, log *logger.Logger) (*MongoArchive, error) {
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	a := &MongoArchive{
		client:     client,
		collection: client.Database(database).Collection(CollectionName),
		timeout:    timeout,
	}
	if err := a.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	log.Info("Connected to MongoDB", "database", database, "collection", CollectionName)
	return a, nil
}

func (a *MongoArchive) ensureIndexes(ctx context.Context) error {
	_, err := a.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "facility_id", Value: 1},
			{Key: "observed_at", Value: -1},
		},
		Options: options.Index().SetName("facility_observed_at"),
	})
	if err != nil {
		return fmt.Errorf("create sensor reading index: %w", err)
	}
	return nil
}

// Record stores one reading.
func (a *MongoArchive) Record(ctx context.Context, reading model.SensorReading) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	reading.ObservedAt = reading.ObservedAt.UTC().Truncate(time.Millisecond)
	if _, err := a.collection.InsertOne(ctx, reading); err != nil {
		return fmt.Errorf("failed to archive sensor reading: %w", err)
	}
	return nil
}

// Recent returns up to limit readings for facilityID, newest first.
func (a *MongoArchive) Recent(ctx context.Context, facilityID string, limit int) ([]model.SensorReading, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	opts := options.Find().
		SetLimit(int64(ClampLimit(limit))).
		SetSort(bson.D{{Key: "observed_at", Value: -1}})

	cursor, err := a.collection.Find(ctx, bson.M{"facility_id": facilityID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query sensor readings: %w", err)
	}
	defer cursor.Close(ctx)

	readings := []model.SensorReading{}
	if err := cursor.All(ctx, &readings); err != nil {
		return nil, fmt.Errorf("failed to decode sensor readings: %w", err)
	}
	return readings, nil
}

// Close disconnects the client.
func (a *MongoArchive) Close(ctx context.Context) error {
	return a.client.Disconnect(ctx)
}

// ClampLimit maps a requested page size onto [1, MaxLimit], using
// DefaultLimit for non-positive values.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/gym-capacity/internal/model"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each facility in a hash and its reservations in a list.
//
// Critical sections are optimistic: the facility hash and reservation list
// are WATCHed, fn decides on what was read, and MULTI/EXEC commits. EXEC
// aborts if either key changed in between, in which case the whole section
// is retried, up to maxRetries times.
type RedisStore struct {
	rdb        *redis.Client
	prefix     string
	maxRetries int
	backoff    time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisPrefix sets the namespace prepended to every key.
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = strings.Trim(prefix, ":") }
}

// WithRedisMaxRetries bounds how often a transaction is retried after a
// WATCH conflict before ErrConflict is returned. Values below 1 are ignored.
func WithRedisMaxRetries(n int) RedisOption {
	return func(s *RedisStore) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// WithRedisBackoff sets the pause between conflicting attempts.
func WithRedisBackoff(d time.Duration) RedisOption {
	return func(s *RedisStore) { s.backoff = d }
}

// NewRedisStore constructs a RedisStore over an existing client.
func NewRedisStore(rdb *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		rdb:        rdb,
		prefix:     "gym",
		maxRetries: 64,
		backoff:    time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) indexKey() string { return s.prefix + ":facilities" }

func (s *RedisStore) facilityKey(id string) string { return s.prefix + ":facility:" + id }

func (s *RedisStore) reservationsKey(id string) string {
	return s.prefix + ":facility:" + id + ":reservations"
}

// PutFacility writes facility metadata and indexes the id.
func (s *RedisStore) PutFacility(ctx context.Context, f model.Facility) error {
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = time.Now().UTC()
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.facilityKey(f.ID), facilityFields(f))
		pipe.SAdd(ctx, s.indexKey(), f.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("put facility: %w", err)
	}
	return nil
}

// GetFacility returns a single facility or ErrNotFound.
func (s *RedisStore) GetFacility(ctx context.Context, id string) (*model.Facility, error) {
	fields, err := s.rdb.HGetAll(ctx, s.facilityKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get facility: %w", err)
	}
	return parseFacility(fields)
}

// ListFacilities returns all indexed facilities ordered by id.
func (s *RedisStore) ListFacilities(ctx context.Context) ([]model.Facility, error) {
	ids, err := s.rdb.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list facilities: %w", err)
	}
	sort.Strings(ids)

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.facilityKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list facilities: %w", err)
	}

	facilities := make([]model.Facility, 0, len(ids))
	for _, cmd := range cmds {
		f, err := parseFacility(cmd.Val())
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		facilities = append(facilities, *f)
	}
	return facilities, nil
}

// ListReservations returns reservations in append order.
func (s *RedisStore) ListReservations(ctx context.Context, facilityID string) ([]model.Reservation, error) {
	raw, err := s.rdb.LRange(ctx, s.reservationsKey(facilityID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return decodeReservations(raw)
}

// AppendReservation pushes r onto its facility's list.
func (s *RedisStore) AppendReservation(ctx context.Context, r model.Reservation) error {
	return s.optimistic(ctx, []string{s.facilityKey(r.FacilityID)}, func(tx *redis.Tx) (func(redis.Pipeliner), error) {
		n, err := tx.Exists(ctx, s.facilityKey(r.FacilityID)).Result()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, ErrNotFound
		}
		data, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("encode reservation: %w", err)
		}
		return func(pipe redis.Pipeliner) {
			pipe.RPush(ctx, s.reservationsKey(r.FacilityID), data)
		}, nil
	})
}

// SetSensorFullness updates the live sensor value if the facility exists.
func (s *RedisStore) SetSensorFullness(ctx context.Context, facilityID string, fullness int, at time.Time) error {
	key := s.facilityKey(facilityID)
	return s.optimistic(ctx, []string{key}, func(tx *redis.Tx) (func(redis.Pipeliner), error) {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, ErrNotFound
		}
		return func(pipe redis.Pipeliner) {
			pipe.HSet(ctx, key,
				"sensor_fullness", fullness,
				"updated_at", at.UTC().Format(time.RFC3339Nano),
			)
		}, nil
	})
}

// Snapshot reads the hash and the list inside one MULTI block.
func (s *RedisStore) Snapshot(ctx context.Context, facilityID string) (*model.Facility, []model.Reservation, error) {
	var (
		fields *redis.MapStringStringCmd
		list   *redis.StringSliceCmd
	)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		fields = pipe.HGetAll(ctx, s.facilityKey(facilityID))
		list = pipe.LRange(ctx, s.reservationsKey(facilityID), 0, -1)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot: %w", err)
	}

	f, err := parseFacility(fields.Val())
	if err != nil {
		return nil, nil, err
	}
	reservations, err := decodeReservations(list.Val())
	if err != nil {
		return nil, nil, err
	}
	return f, reservations, nil
}

// WithFacility runs fn against a WATCHed read of the facility. Rejections
// returned by fn are also confirmed through EXEC, so they are never based on
// a read that another writer invalidated.
func (s *RedisStore) WithFacility(ctx context.Context, facilityID string, fn func(tx FacilityTx) error) error {
	fk, rk := s.facilityKey(facilityID), s.reservationsKey(facilityID)

	var fnErr error
	err := s.optimistic(ctx, []string{fk, rk}, func(tx *redis.Tx) (func(redis.Pipeliner), error) {
		fields, err := tx.HGetAll(ctx, fk).Result()
		if err != nil {
			return nil, err
		}
		f, err := parseFacility(fields)
		if err != nil {
			return nil, err
		}
		raw, err := tx.LRange(ctx, rk, 0, -1).Result()
		if err != nil {
			return nil, err
		}
		reservations, err := decodeReservations(raw)
		if err != nil {
			return nil, err
		}

		rt := &redisTx{facility: *f, reservations: reservations}
		fnErr = fn(rt)
		if fnErr != nil {
			return nil, nil
		}

		payloads := make([][]byte, 0, len(rt.pending))
		for _, r := range rt.pending {
			data, err := json.Marshal(r)
			if err != nil {
				return nil, fmt.Errorf("encode reservation: %w", err)
			}
			payloads = append(payloads, data)
		}
		return func(pipe redis.Pipeliner) {
			for _, p := range payloads {
				pipe.RPush(ctx, rk, p)
			}
		}, nil
	})
	if err != nil {
		return err
	}
	return fnErr
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// optimistic runs read under WATCH on keys and commits the writes it returns
// with MULTI/EXEC. A nil write set still goes through EXEC so the read is
// validated. TxFailedErr triggers a retry.
func (s *RedisStore) optimistic(ctx context.Context, keys []string, read func(tx *redis.Tx) (func(redis.Pipeliner), error)) error {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			write, err := read(tx)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if write == nil {
					pipe.Ping(ctx)
					return nil
				}
				write(pipe)
				return nil
			})
			return err
		}, keys...)

		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}

		if s.backoff > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt+1) * s.backoff):
			}
		}
	}
	return ErrConflict
}

type redisTx struct {
	facility     model.Facility
	reservations []model.Reservation
	pending      []model.Reservation
}

func (t *redisTx) Facility() model.Facility { return t.facility }

func (t *redisTx) Reservations() []model.Reservation {
	if len(t.pending) == 0 {
		return t.reservations
	}
	out := make([]model.Reservation, 0, len(t.reservations)+len(t.pending))
	out = append(out, t.reservations...)
	return append(out, t.pending...)
}

func (t *redisTx) AppendReservation(_ context.Context, r model.Reservation) error {
	if r.FacilityID != t.facility.ID {
		return ErrNotFound
	}
	t.pending = append(t.pending, r)
	return nil
}

func facilityFields(f model.Facility) map[string]any {
	return map[string]any{
		"id":              f.ID,
		"name":            f.Name,
		"max_capacity":    f.MaxCapacity,
		"sensor_fullness": f.SensorFullness,
		"updated_at":      f.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func parseFacility(fields map[string]string) (*model.Facility, error) {
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	maxCapacity, err := strconv.Atoi(fields["max_capacity"])
	if err != nil {
		return nil, fmt.Errorf("parse max_capacity: %w", err)
	}
	fullness, err := strconv.Atoi(fields["sensor_fullness"])
	if err != nil {
		return nil, fmt.Errorf("parse sensor_fullness: %w", err)
	}
	f := &model.Facility{
		ID:             fields["id"],
		Name:           fields["name"],
		MaxCapacity:    maxCapacity,
		SensorFullness: fullness,
	}
	if ts := fields["updated_at"]; ts != "" {
		if f.UpdatedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}
	}
	return f, nil
}

func decodeReservations(raw []string) ([]model.Reservation, error) {
	reservations := make([]model.Reservation, 0, len(raw))
	for _, item := range raw {
		var r model.Reservation
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, fmt.Errorf("decode reservation: %w", err)
		}
		reservations = append(reservations, r)
	}
	return reservations, nil
}

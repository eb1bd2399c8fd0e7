package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/gym-capacity/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// PostgresStore persists facilities and reservations with pgx (no ORM).
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore. The schema is expected to
// exist; see database.Migrate.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// PutFacility upserts facility metadata. Reservations are untouched.
func (s *PostgresStore) PutFacility(ctx context.Context, f model.Facility) error {
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO facilities (id, name, max_capacity, sensor_fullness, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE
		 SET name = EXCLUDED.name,
		     max_capacity = EXCLUDED.max_capacity,
		     sensor_fullness = EXCLUDED.sensor_fullness,
		     updated_at = EXCLUDED.updated_at`,
		f.ID, f.Name, f.MaxCapacity, f.SensorFullness, f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert facility: %w", err)
	}
	return nil
}

// GetFacility returns a single facility or ErrNotFound.
func (s *PostgresStore) GetFacility(ctx context.Context, id string) (*model.Facility, error) {
	return getFacility(ctx, s.db, id, false)
}

// ListFacilities returns all facilities ordered by id.
func (s *PostgresStore) ListFacilities(ctx context.Context) ([]model.Facility, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, max_capacity, sensor_fullness, updated_at
		 FROM facilities
		 ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list facilities: %w", err)
	}
	defer rows.Close()

	facilities := []model.Facility{}
	for rows.Next() {
		var f model.Facility
		if err := rows.Scan(&f.ID, &f.Name, &f.MaxCapacity, &f.SensorFullness, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan facility: %w", err)
		}
		facilities = append(facilities, f)
	}
	return facilities, rows.Err()
}

// ListReservations returns all reservations for a facility in creation order.
func (s *PostgresStore) ListReservations(ctx context.Context, facilityID string) ([]model.Reservation, error) {
	return listReservations(ctx, s.db, facilityID)
}

// AppendReservation inserts a reservation row.
func (s *PostgresStore) AppendReservation(ctx context.Context, r model.Reservation) error {
	return insertReservation(ctx, s.db, r)
}

// SetSensorFullness updates the live sensor value of a facility.
func (s *PostgresStore) SetSensorFullness(ctx context.Context, facilityID string, fullness int, at time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE facilities SET sensor_fullness = $2, updated_at = $3 WHERE id = $1`,
		facilityID, fullness, at,
	)
	if err != nil {
		return fmt.Errorf("update sensor fullness: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Snapshot reads the facility and its reservations inside one read-only
// REPEATABLE READ transaction so both come from the same database snapshot.
func (s *PostgresStore) Snapshot(ctx context.Context, facilityID string) (*model.Facility, []model.Reservation, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, nil, fmt.Errorf("begin snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	f, err := getFacility(ctx, tx, facilityID, false)
	if err != nil {
		return nil, nil, err
	}
	reservations, err := listReservations(ctx, tx, facilityID)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit snapshot: %w", err)
	}
	return f, reservations, nil
}

// WithFacility runs fn inside a transaction holding a row-level lock on the
// facility.
//
// SELECT … FOR UPDATE blocks every other WithFacility call for the same
// facility until this transaction commits or rolls back, so the
// read-check-append sequence in fn can never interleave with another one.
// Different facilities lock different rows and do not contend.
func (s *PostgresStore) WithFacility(ctx context.Context, facilityID string, fn func(tx FacilityTx) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	f, err := getFacility(ctx, tx, facilityID, true)
	if err != nil {
		return err
	}
	reservations, err := listReservations(ctx, tx, facilityID)
	if err != nil {
		return err
	}

	if err = fn(&postgresTx{tx: tx, facility: *f, reservations: reservations}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

type postgresTx struct {
	tx           pgx.Tx
	facility     model.Facility
	reservations []model.Reservation
}

func (t *postgresTx) Facility() model.Facility { return t.facility }

func (t *postgresTx) Reservations() []model.Reservation { return t.reservations }

func (t *postgresTx) AppendReservation(ctx context.Context, r model.Reservation) error {
	if err := insertReservation(ctx, t.tx, r); err != nil {
		return err
	}
	t.reservations = append(t.reservations, r)
	return nil
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getFacility(ctx context.Context, q querier, id string, forUpdate bool) (*model.Facility, error) {
	query := `SELECT id, name, max_capacity, sensor_fullness, updated_at
		 FROM facilities WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var f model.Facility
	err := q.QueryRow(ctx, query, id).Scan(&f.ID, &f.Name, &f.MaxCapacity, &f.SensorFullness, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get facility: %w", err)
	}
	return &f, nil
}

func listReservations(ctx context.Context, q querier, facilityID string) ([]model.Reservation, error) {
	rows, err := q.Query(ctx,
		`SELECT id, facility_id, user_id, created_at
		 FROM reservations
		 WHERE facility_id = $1
		 ORDER BY seq ASC`,
		facilityID,
	)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	reservations := []model.Reservation{}
	for rows.Next() {
		var r model.Reservation
		if err := rows.Scan(&r.ID, &r.FacilityID, &r.UserID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

func insertReservation(ctx context.Context, q querier, r model.Reservation) error {
	_, err := q.Exec(ctx,
		`INSERT INTO reservations (id, facility_id, user_id, created_at)
		 VALUES ($1, $2, $3, $4)`,
		r.ID, r.FacilityID, r.UserID, r.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case uniqueViolation:
				return ErrDuplicateReservation
			case foreignKeyViolation:
				return ErrNotFound
			}
		}
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

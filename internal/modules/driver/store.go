// README: Driver assignment store backed by PostgreSQL.
package driver

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"saferide/internal/types"
)

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Get(ctx context.Context, driverID, eventID types.ID) (*Assignment, error) {
	row := s.db.QueryRow(ctx, `
        SELECT driver_id, event_id, availability_state, availability_since,
               inactive_toggle_count, total_rides_completed, photo_url, vehicle_description
        FROM driver_assignments
        WHERE driver_id = $1 AND event_id = $2`,
		string(driverID), string(eventID),
	)
	var a Assignment
	err := row.Scan(
		&a.DriverID, &a.EventID, &a.Availability.State, &a.Availability.Since,
		&a.InactiveToggleCount, &a.TotalRidesCompleted, &a.PhotoURL, &a.VehicleDescription,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PGStore) SetAvailability(ctx context.Context, driverID, eventID types.ID, av Availability, toggleCount int) error {
	tag, err := s.db.Exec(ctx, `
        UPDATE driver_assignments
        SET availability_state = $1,
            availability_since = $2,
            inactive_toggle_count = $3
        WHERE driver_id = $4 AND event_id = $5`,
		string(av.State), av.Since, toggleCount,
		string(driverID), string(eventID),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) ListActiveByEvent(ctx context.Context, eventID types.ID) ([]Assignment, error) {
	rows, err := s.db.Query(ctx, `
        SELECT driver_id, event_id, availability_state, availability_since,
               inactive_toggle_count, total_rides_completed, photo_url, vehicle_description
        FROM driver_assignments
        WHERE event_id = $1 AND availability_state = 'active'
        ORDER BY driver_id`,
		string(eventID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(
			&a.DriverID, &a.EventID, &a.Availability.State, &a.Availability.Since,
			&a.InactiveToggleCount, &a.TotalRidesCompleted, &a.PhotoURL, &a.VehicleDescription,
		); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListInactiveForActiveEvents feeds the monitor's periodic idle sweep.
func (s *PGStore) ListInactiveForActiveEvents(ctx context.Context) ([]Assignment, error) {
	rows, err := s.db.Query(ctx, `
        SELECT a.driver_id, a.event_id, a.availability_state, a.availability_since,
               a.inactive_toggle_count, a.total_rides_completed, a.photo_url, a.vehicle_description
        FROM driver_assignments a
        JOIN events e ON e.id = a.event_id
        WHERE a.availability_state = 'inactive' AND e.status = 'active'
        ORDER BY a.driver_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(
			&a.DriverID, &a.EventID, &a.Availability.State, &a.Availability.Since,
			&a.InactiveToggleCount, &a.TotalRidesCompleted, &a.PhotoURL, &a.VehicleDescription,
		); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PGStore) IncrementCompleted(ctx context.Context, driverID, eventID types.ID) error {
	tag, err := s.db.Exec(ctx, `
        UPDATE driver_assignments
        SET total_rides_completed = total_rides_completed + 1
        WHERE driver_id = $1 AND event_id = $2`,
		string(driverID), string(eventID),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) ResetToggleCount(ctx context.Context, driverID, eventID types.ID) error {
	_, err := s.db.Exec(ctx, `
        UPDATE driver_assignments
        SET inactive_toggle_count = 0
        WHERE driver_id = $1 AND event_id = $2`,
		string(driverID), string(eventID),
	)
	return err
}

// README: Ride store backed by PostgreSQL with compare-and-swap status updates.
package ride

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"saferide/internal/types"
)

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, r *Ride) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO rides (
            id, rider_id, driver_id, chapter_id, event_id, status, status_version,
            pickup_lat, pickup_lng, pickup_address,
            priority, is_emergency, estimated_wait_minutes, requested_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7,
            $8, $9, $10,
            $11, $12, $13, $14
        )`,
		string(r.ID),
		string(r.RiderID),
		idPtr(r.DriverID),
		string(r.ChapterID),
		string(r.EventID),
		string(r.Status),
		r.StatusVersion,
		r.Pickup.Lat, r.Pickup.Lng, r.PickupAddress,
		r.Priority,
		r.IsEmergency,
		r.EstimatedWaitMinutes,
		r.RequestedAt,
	)
	return err
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Ride, error) {
	row := s.db.QueryRow(ctx, `
        SELECT id, rider_id, driver_id, chapter_id, event_id, status, status_version,
               pickup_lat, pickup_lng, pickup_address,
               priority, is_emergency,
               driver_name, driver_phone, driver_vehicle, estimated_wait_minutes,
               requested_at, assigned_at, enroute_at, completed_at, cancelled_at, cancel_reason
        FROM rides
        WHERE id = $1`, string(id),
	)

	var r Ride
	var driverID, driverName, driverPhone, driverVehicle, cancelReason sql.NullString
	var assignedAt, enrouteAt, completedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&r.ID, &r.RiderID, &driverID, &r.ChapterID, &r.EventID, &r.Status, &r.StatusVersion,
		&r.Pickup.Lat, &r.Pickup.Lng, &r.PickupAddress,
		&r.Priority, &r.IsEmergency,
		&driverName, &driverPhone, &driverVehicle, &r.EstimatedWaitMinutes,
		&r.RequestedAt, &assignedAt, &enrouteAt, &completedAt, &cancelledAt, &cancelReason,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if driverID.Valid {
		d := types.ID(driverID.String)
		r.DriverID = &d
	}
	r.DriverName = driverName.String
	r.DriverPhone = driverPhone.String
	r.DriverVehicle = driverVehicle.String
	r.AssignedAt = timePtr(assignedAt)
	r.EnrouteAt = timePtr(enrouteAt)
	r.CompletedAt = timePtr(completedAt)
	r.CancelledAt = timePtr(cancelledAt)
	if cancelReason.Valid {
		r.CancelReason = &cancelReason.String
	}
	return &r, nil
}

// UpdateStatus performs the compare-and-swap hand-off: the row moves from
// `from` to `to` only when both status and status_version still match, which
// serialises racing dispatchers and driver actions. Entry timestamps are
// stamped by the target status and never re-stamped.
func (s *PGStore) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, patch StatusPatch) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE rides
        SET status = $1,
            status_version = status_version + 1,
            driver_id = COALESCE($2, driver_id),
            driver_name = COALESCE($3, driver_name),
            driver_phone = COALESCE($4, driver_phone),
            driver_vehicle = COALESCE($5, driver_vehicle),
            estimated_wait_minutes = COALESCE($6, estimated_wait_minutes),
            cancel_reason = COALESCE($7, cancel_reason),
            assigned_at = CASE WHEN $1 = 'assigned' THEN NOW() ELSE assigned_at END,
            enroute_at = CASE WHEN $1 = 'enroute' THEN NOW() ELSE enroute_at END,
            completed_at = CASE WHEN $1 = 'completed' THEN NOW() ELSE completed_at END,
            cancelled_at = CASE WHEN $1 = 'cancelled' THEN NOW() ELSE cancelled_at END
        WHERE id = $8 AND status = $9 AND status_version = $10`,
		string(to),
		idPtr(patch.DriverID),
		patch.DriverName,
		patch.DriverPhone,
		patch.DriverVehicle,
		patch.EstimatedWaitMinutes,
		patch.CancelReason,
		string(id),
		string(from),
		version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO ride_state_events (
            ride_id, from_status, to_status, actor_type, actor_id, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.RideID),
		string(e.FromStatus),
		string(e.ToStatus),
		e.ActorType,
		idPtr(e.ActorID),
		e.CreatedAt,
	)
	return err
}

func (s *PGStore) ListActiveByEvent(ctx context.Context, eventID types.ID) ([]*Ride, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, priority, is_emergency, requested_at, status
        FROM rides
        WHERE event_id = $1
          AND status IN ('queued','assigned','enroute')
        ORDER BY requested_at`,
		string(eventID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Ride
	for rows.Next() {
		var r Ride
		if err := rows.Scan(&r.ID, &r.Priority, &r.IsEmergency, &r.RequestedAt, &r.Status); err != nil {
			return nil, err
		}
		r.EventID = eventID
		out = append(out, &r)
	}
	return out, rows.Err()
}

// CountActiveByDriver counts a driver's personal backlog: rides assigned to
// them that are not yet terminal. Queued rides have no driver and never count.
func (s *PGStore) CountActiveByDriver(ctx context.Context, driverID, eventID types.ID) (int, error) {
	row := s.db.QueryRow(ctx, `
        SELECT COUNT(*)
        FROM rides
        WHERE driver_id = $1 AND event_id = $2
          AND status IN ('assigned','enroute')`,
		string(driverID), string(eventID),
	)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

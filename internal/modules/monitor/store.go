// README: Operator alert store backed by PostgreSQL.
package monitor

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"saferide/internal/types"
)

var ErrAlertNotFound = errors.New("alert not found")

type PGAlertStore struct {
	db *pgxpool.Pool
}

func NewPGAlertStore(db *pgxpool.Pool) *PGAlertStore {
	return &PGAlertStore{db: db}
}

func (s *PGAlertStore) Create(ctx context.Context, a *Alert) error {
	if a.ID == "" {
		a.ID = newAlertID()
	}
	_, err := s.db.Exec(ctx, `
        INSERT INTO operator_alerts (
            id, chapter_id, type, message, driver_id, ride_id, is_read, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(a.ID),
		string(a.ChapterID),
		string(a.Type),
		a.Message,
		idPtr(a.DriverID),
		idPtr(a.RideID),
		a.IsRead,
		a.CreatedAt,
	)
	return err
}

func (s *PGAlertStore) ListByChapter(ctx context.Context, chapterID types.ID) ([]Alert, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, chapter_id, type, message, driver_id, ride_id, is_read, created_at
        FROM operator_alerts
        WHERE chapter_id = $1
        ORDER BY created_at DESC`,
		string(chapterID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Alert
	for rows.Next() {
		var a Alert
		var driverID, rideID sql.NullString
		if err := rows.Scan(&a.ID, &a.ChapterID, &a.Type, &a.Message, &driverID, &rideID, &a.IsRead, &a.CreatedAt); err != nil {
			return nil, err
		}
		if driverID.Valid {
			d := types.ID(driverID.String)
			a.DriverID = &d
		}
		if rideID.Valid {
			r := types.ID(rideID.String)
			a.RideID = &r
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PGAlertStore) MarkRead(ctx context.Context, id types.ID) error {
	tag, err := s.db.Exec(ctx, `
        UPDATE operator_alerts SET is_read = TRUE WHERE id = $1`, string(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlertNotFound
	}
	return nil
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func newAlertID() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}

// README: Directory store backed by PostgreSQL (read-only).
package directory

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"saferide/internal/types"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrEventNotFound = errors.New("event not found")
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) GetUser(ctx context.Context, id types.ID) (*User, error) {
	row := s.db.QueryRow(ctx, `
        SELECT id, name, phone, chapter_id, class_year, role
        FROM users
        WHERE id = $1`, string(id),
	)
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Phone, &u.ChapterID, &u.ClassYear, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetEvent(ctx context.Context, id types.ID) (*Event, error) {
	row := s.db.QueryRow(ctx, `
        SELECT id, chapter_id, open_to_all, allowed_chapter_ids, status
        FROM events
        WHERE id = $1`, string(id),
	)
	var e Event
	var allowed []string
	err := row.Scan(&e.ID, &e.ChapterID, &e.OpenToAll, &allowed, &e.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	e.AllowedChapterIDs = make([]types.ID, len(allowed))
	for i, a := range allowed {
		e.AllowedChapterIDs[i] = types.ID(a)
	}
	return &e, nil
}

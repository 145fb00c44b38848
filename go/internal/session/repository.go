package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mcdev12/focusnest/go/internal/models"
	"github.com/mcdev12/focusnest/go/internal/sqlutil"
)

const uniqueViolation = "23505"

const sessionColumns = `id, creator_id, task, duration_minutes, status, created_at, start_time, completed_at,
	creator_status, friend_status, friend_id, friend_task, creator_violations, friend_violations, updated_at`

// PostgresRepository stores session records in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

func (r *PostgresRepository) CreateSession(ctx context.Context, s *models.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		s.ID, s.CreatorID, s.Task, s.DurationMinutes, string(s.Status), s.CreatedAt,
		sqlutil.ToSqlTime(s.StartTime), sqlutil.ToSqlTime(s.CompletedAt),
		string(s.CreatorStatus), string(s.FriendStatus),
		sqlutil.ToSqlString(s.FriendID), sqlutil.ToSqlString(s.FriendTask),
		s.CreatorViolations, s.FriendViolations, s.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrSessionExists
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetSession(ctx context.Context, id string) (*models.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// UpdateSession locks the row, applies fn, and writes the mutable columns back
// when fn reports a change. Immutable columns are never part of the UPDATE.
func (r *PostgresRepository) UpdateSession(ctx context.Context, id string, fn MutateFunc) (*models.Session, bool, error) {
	var (
		result  *models.Session
		changed bool
	)

	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1 FOR UPDATE`, id)
		s, err := scanSession(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrSessionNotFound
			}
			return fmt.Errorf("failed to lock session: %w", err)
		}

		changed, err = fn(s)
		if err != nil {
			return err
		}
		result = s
		if !changed {
			return nil
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE sessions SET
				status = $2,
				start_time = $3,
				completed_at = $4,
				creator_status = $5,
				friend_status = $6,
				friend_id = $7,
				friend_task = $8,
				creator_violations = $9,
				friend_violations = $10,
				updated_at = $11
			WHERE id = $1`,
			s.ID, string(s.Status),
			sqlutil.ToSqlTime(s.StartTime), sqlutil.ToSqlTime(s.CompletedAt),
			string(s.CreatorStatus), string(s.FriendStatus),
			sqlutil.ToSqlString(s.FriendID), sqlutil.ToSqlString(s.FriendTask),
			s.CreatorViolations, s.FriendViolations, s.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, changed, nil
}

func (r *PostgresRepository) DeleteWaitingBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`DELETE FROM sessions WHERE status = $1 AND created_at < $2 RETURNING id`,
		string(models.SessionStatusWaiting), cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan expired session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expired sessions: %w", err)
	}
	return ids, nil
}

func (r *PostgresRepository) ListActiveSessions(ctx context.Context) ([]*models.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE status = $1 ORDER BY start_time`,
		string(models.SessionStatusActive),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan active session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate active sessions: %w", err)
	}
	return sessions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Helper function to convert a DB row to model
func scanSession(row rowScanner) (*models.Session, error) {
	var (
		s                           models.Session
		status                      string
		creatorStatus, friendStatus string
		startTime, completedAt      sql.NullTime
		friendID, friendTask        sql.NullString
	)
	if err := row.Scan(
		&s.ID, &s.CreatorID, &s.Task, &s.DurationMinutes, &status, &s.CreatedAt,
		&startTime, &completedAt, &creatorStatus, &friendStatus,
		&friendID, &friendTask, &s.CreatorViolations, &s.FriendViolations, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}

	s.Status = models.SessionStatus(status)
	s.CreatorStatus = models.ParticipantStatus(creatorStatus)
	s.FriendStatus = models.ParticipantStatus(friendStatus)
	s.StartTime = sqlutil.FromSqlTime(startTime)
	s.CompletedAt = sqlutil.FromSqlTime(completedAt)
	s.FriendID = sqlutil.FromSqlStringPtr(friendID)
	s.FriendTask = sqlutil.FromSqlStringPtr(friendTask)
	return &s, nil
}

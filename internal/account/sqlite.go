package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/p-n-ai/academy/internal/progress"
)

// SQLiteStore keeps users in a users table and their progress as one row
// per completion key in user_progress.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore uses a database opened by sqlite.OpenDB.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Create(ctx context.Context, u *User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, username, username_key, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Username, NormalizeUsername(u.Username), u.PasswordHash, formatTime(u.CreatedAt),
	)
	if err != nil {
		if isSQLiteUnique(err) {
			return fmt.Errorf("create %q: %w", u.Username, ErrUsernameTaken)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	if err := insertProgress(ctx, tx, u.ID, u.Progress); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*User, error) {
	return s.get(ctx, `WHERE id = ?`, id)
}

func (s *SQLiteStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.get(ctx, `WHERE username_key = ?`, NormalizeUsername(username))
}

func (s *SQLiteStore) get(ctx context.Context, where string, arg string) (*User, error) {
	var u User
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users `+where, arg,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", arg, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	u.CreatedAt = parseTime(created)

	u.Progress, err = s.loadProgress(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SQLiteStore) loadProgress(ctx context.Context, userID string) (progress.Completion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, course_id, lesson_id, sublesson_id, exercise_id, completed_at
		 FROM user_progress WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	defer rows.Close()

	var records []progress.Record
	for rows.Next() {
		var r progress.Record
		var kind, completed string
		if err := rows.Scan(&kind, &r.CourseID, &r.LessonID, &r.SublessonID, &r.ExerciseID, &completed); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		r.Kind = progress.Kind(kind)
		r.CompletedAt = parseTime(completed)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate progress: %w", err)
	}
	return progress.FromRecords(records), nil
}

// Save rewrites the user row and all of its progress rows in one
// transaction.
func (s *SQLiteStore) Save(ctx context.Context, u *User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET username = ?, username_key = ?, password_hash = ? WHERE id = ?`,
		u.Username, NormalizeUsername(u.Username), u.PasswordHash, u.ID,
	)
	if err != nil {
		if isSQLiteUnique(err) {
			return fmt.Errorf("rename %q: %w", u.Username, ErrUsernameTaken)
		}
		return fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", u.ID, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_progress WHERE user_id = ?`, u.ID); err != nil {
		return fmt.Errorf("clear progress: %w", err)
	}
	if err := insertProgress(ctx, tx, u.ID, u.Progress); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) List(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM users`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	users := make([]*User, 0, len(ids))
	for _, id := range ids {
		u, err := s.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	sortUsers(users)
	return users, nil
}

func insertProgress(ctx context.Context, tx *sql.Tx, userID string, c progress.Completion) error {
	if len(c) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO user_progress (user_id, kind, course_id, lesson_id, sublesson_id, exercise_id, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare progress insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range c.Records() {
		if _, err := stmt.ExecContext(ctx,
			userID, string(r.Kind), r.CourseID, r.LessonID, r.SublessonID, r.ExerciseID, formatTime(r.CompletedAt),
		); err != nil {
			return fmt.Errorf("insert progress %s: %w", r.Key.String(), err)
		}
	}
	return nil
}

func isSQLiteUnique(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

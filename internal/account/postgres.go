package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	dbTimeout       = 5 * time.Second
	uniqueViolation = "23505"
)

// PostgresStore keeps users in PostgreSQL with progress as a JSONB column.
// It also serves Supabase, which is PostgreSQL behind a pooler.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore uses a pool whose schema was applied by database.Migrate.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Create(ctx context.Context, u *User) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	prog, err := json.Marshal(u.Progress)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO users (id, username, username_key, password_hash, progress, created_at)
		 VALUES ($1::uuid, $2, $3, $4, $5::jsonb, $6)`,
		u.ID, u.Username, NormalizeUsername(u.Username), u.PasswordHash, string(prog), u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create %q: %w", u.Username, ErrUsernameTaken)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*User, error) {
	return s.get(ctx, `WHERE id::text = $1`, id)
}

func (s *PostgresStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.get(ctx, `WHERE username_key = $1`, NormalizeUsername(username))
}

func (s *PostgresStore) get(ctx context.Context, where, arg string) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT id::text, username, password_hash, progress, created_at FROM users `+where, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", arg, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) Save(ctx context.Context, u *User) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	prog, err := json.Marshal(u.Progress)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	cmd, err := s.pool.Exec(ctx,
		`UPDATE users
		 SET username = $2, username_key = $3, password_hash = $4, progress = $5::jsonb, updated_at = now()
		 WHERE id = $1::uuid`,
		u.ID, u.Username, NormalizeUsername(u.Username), u.PasswordHash, string(prog),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("rename %q: %w", u.Username, ErrUsernameTaken)
		}
		return fmt.Errorf("update user: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", u.ID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*User, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT id::text, username, password_hash, progress, created_at FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var prog []byte
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &prog, &u.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(prog, &u.Progress); err != nil {
		return nil, fmt.Errorf("decode progress of %s: %w", u.ID, err)
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

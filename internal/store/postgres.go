package store

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/ayush/research-hub/internal/apperr"
	"github.com/ayush/research-hub/internal/models"
)

// Unique constraints on the users table.
const (
	usernameConstraint = "users_username_key"
	emailConstraint    = "users_email_key"
)

// pgxPool is the subset of *pgxpool.Pool used by PostgresStore; pgxmock
// satisfies it in tests.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

// PostgresStore handles user CRUD against PostgreSQL.
type PostgresStore struct {
	pool pgxPool
}

func NewPostgresStore(pool pgxPool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateUser inserts a user. Username and email collisions are reported as
// DUPLICATE errors naming the field.
func (s *PostgresStore) CreateUser(ctx context.Context, username, email, category, passwordHash string) (*models.User, error) {
	u := models.User{PasswordHash: passwordHash}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (username, email, category, password_hash)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, username, email, category, created_at`,
		username, email, category, passwordHash,
	).Scan(&u.ID, &u.Username, &u.Email, &u.Category, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			switch pgErr.ConstraintName {
			case usernameConstraint:
				return nil, apperr.Duplicate("Username already taken")
			case emailConstraint:
				return nil, apperr.Duplicate("Email already registered")
			}
			return nil, apperr.Duplicate("User already exists")
		}
		return nil, oops.In("postgres").With("operation", "create user").Wrap(err)
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, "username", `WHERE username = $1`, username)
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email", `WHERE email = $1`, email)
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, "id", `WHERE id::text = $1`, id)
}

// GetUsersByIDs returns the users that exist among ids, keyed by id.
func (s *PostgresStore) GetUsersByIDs(ctx context.Context, ids []string) (map[string]models.User, error) {
	found := make(map[string]models.User, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, username, email, category, password_hash, created_at FROM users WHERE id::text = ANY($1)`, ids)
	if err != nil {
		return nil, oops.In("postgres").With("operation", "get users by ids").Wrap(err)
	}
	defer rows.Close()

	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.Category, &u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, oops.In("postgres").With("operation", "scan user").Wrap(err)
		}
		found[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, oops.In("postgres").With("operation", "get users by ids").Wrap(err)
	}
	return found, nil
}

func (s *PostgresStore) getUser(ctx context.Context, by, where string, arg string) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, email, category, password_hash, created_at FROM users `+where, arg,
	).Scan(&u.ID, &u.Username, &u.Email, &u.Category, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, oops.In("postgres").With("operation", "get user", "by", by).Wrap(err)
	}
	return &u, nil
}

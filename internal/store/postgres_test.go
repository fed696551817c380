package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/research-hub/internal/apperr"
)

var userColumns = []string{"id", "username", "email", "category", "password_hash", "created_at"}

func TestPostgresStore_CreateUser(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantCode  string
		wantMsg   string
	}{
		{
			name: "inserted",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO users`).
					WithArgs("alice_99", "alice@example.org", "PHYSICS", "hash").
					WillReturnRows(pgxmock.NewRows([]string{"id", "username", "email", "category", "created_at"}).
						AddRow("u-1", "alice_99", "alice@example.org", "PHYSICS", created))
			},
		},
		{
			name: "duplicate username",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO users`).
					WithArgs("alice_99", "alice@example.org", "PHYSICS", "hash").
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_username_key"})
			},
			wantCode: apperr.CodeDuplicate,
			wantMsg:  "Username already taken",
		},
		{
			name: "duplicate email",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO users`).
					WithArgs("alice_99", "alice@example.org", "PHYSICS", "hash").
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_email_key"})
			},
			wantCode: apperr.CodeDuplicate,
			wantMsg:  "Email already registered",
		},
		{
			name: "connection failure",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO users`).
					WithArgs("alice_99", "alice@example.org", "PHYSICS", "hash").
					WillReturnError(errors.New("connection refused"))
			},
			wantCode: apperr.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()
			tt.setupMock(mock)

			s := NewPostgresStore(mock)
			user, err := s.CreateUser(context.Background(), "alice_99", "alice@example.org", "PHYSICS", "hash")

			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.Equal(t, "u-1", user.ID)
				assert.Equal(t, "PHYSICS", user.Category)
				assert.Equal(t, "hash", user.PasswordHash)
				assert.Equal(t, created, user.CreatedAt)
			} else {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, apperr.Code(err))
				if tt.wantMsg != "" {
					assert.Equal(t, tt.wantMsg, apperr.PublicMessage(err))
				}
			}
			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestPostgresStore_GetUser(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	row := func() *pgxmock.Rows {
		return pgxmock.NewRows(userColumns).AddRow("u-1", "alice_99", "alice@example.org", "PHYSICS", "hash", created)
	}

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	s := NewPostgresStore(mock)
	ctx := context.Background()

	mock.ExpectQuery(`FROM users WHERE username = \$1`).WithArgs("alice_99").WillReturnRows(row())
	u, err := s.GetUserByUsername(ctx, "alice_99")
	require.NoError(t, err)
	assert.Equal(t, "hash", u.PasswordHash)

	mock.ExpectQuery(`FROM users WHERE email = \$1`).WithArgs("alice@example.org").WillReturnRows(row())
	u, err = s.GetUserByEmail(ctx, "alice@example.org")
	require.NoError(t, err)
	assert.Equal(t, "alice_99", u.Username)

	mock.ExpectQuery(`FROM users WHERE id::text = \$1`).WithArgs("u-1").WillReturnRows(row())
	u, err = s.GetUserByID(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.ID)

	mock.ExpectQuery(`FROM users WHERE username = \$1`).WithArgs("ghost").WillReturnRows(pgxmock.NewRows(userColumns))
	_, err = s.GetUserByUsername(ctx, "ghost")
	assert.Equal(t, apperr.CodeNotFound, apperr.Code(err))

	mock.ExpectQuery(`FROM users WHERE email = \$1`).WithArgs("x@y.z").WillReturnError(errors.New("timeout"))
	_, err = s.GetUserByEmail(ctx, "x@y.z")
	assert.Equal(t, apperr.CodeInternal, apperr.Code(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetUsersByIDs(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	s := NewPostgresStore(mock)
	ctx := context.Background()

	empty, err := s.GetUsersByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	mock.ExpectQuery(`FROM users WHERE id::text = ANY\(\$1\)`).
		WithArgs([]string{"u-1", "u-2", "gone"}).
		WillReturnRows(pgxmock.NewRows(userColumns).
			AddRow("u-1", "alice_99", "alice@example.org", "PHYSICS", "h1", created).
			AddRow("u-2", "bob_42", "bob@example.org", "BIOLOGY", "h2", created))
	users, err := s.GetUsersByIDs(ctx, []string{"u-1", "u-2", "gone"})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "bob_42", users["u-2"].Username)
	assert.NotContains(t, users, "gone")

	mock.ExpectQuery(`FROM users WHERE id::text = ANY\(\$1\)`).WillReturnError(errors.New("timeout"))
	_, err = s.GetUsersByIDs(ctx, []string{"u-1"})
	assert.Equal(t, apperr.CodeInternal, apperr.Code(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

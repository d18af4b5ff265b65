package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophreview/internal/common"
	"github.com/dmitrijs2005/gophreview/internal/server/models"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

const insertQ = `(?s)^INSERT\s+INTO\s+users\s*\(id,\s*email,\s*username,\s*password_hash,\s*salt\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\)\s*RETURNING\s+created_at\s*$`

var userCols = []string{"id", "email", "username", "password_hash", "salt", "created_at"}

func sampleUser() *models.User {
	return &models.User{
		ID:           "u-1",
		Email:        "a@x.com",
		UserName:     "alice",
		PasswordHash: "$argon2id$v=19$m=1024,t=1,p=1$AAAA",
		Salt:         []byte("salt"),
	}
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	u := sampleUser()
	mock.ExpectQuery(insertQ).
		WithArgs(u.ID, u.Email, u.UserName, u.PasswordHash, u.Salt).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	require.NoError(t, repo.Create(context.Background(), u))
	assert.Equal(t, created, u.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_UniqueViolations(t *testing.T) {
	tests := []struct {
		constraint string
		want       error
	}{
		{constraintEmail, common.ErrDuplicateEmail},
		{constraintUsername, common.ErrDuplicateUsername},
	}

	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			mock.ExpectQuery(insertQ).
				WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: tt.constraint})

			err := repo.Create(context.Background(), sampleUser())
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreate_OtherUniqueViolationIsDBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	// users_pkey: id collision, which the caller already guards against
	mock.ExpectQuery(insertQ).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_pkey"})

	err := repo.Create(context.Background(), sampleUser())
	require.Error(t, err)
	assert.False(t, errors.Is(err, common.ErrDuplicateEmail))
	assert.Regexp(t, `db error: `, err.Error())
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), sampleUser())
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestFind_Found(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name  string
		where string
		arg   string
		call  func(r *PostgresRepository, ctx context.Context, v string) (*models.User, error)
	}{
		{"by email", "email", "a@x.com", (*PostgresRepository).FindByEmail},
		{"by username", "username", "alice", (*PostgresRepository).FindByUsername},
		{"by id", "id", "u-1", (*PostgresRepository).FindByID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			q := `(?s)^SELECT\s+id,\s*email,\s*username,\s*password_hash,\s*salt,\s*created_at\s+FROM\s+users\s+WHERE\s+` + tt.where + `\s*=\s*\$1\s*$`
			mock.ExpectQuery(q).
				WithArgs(tt.arg).
				WillReturnRows(sqlmock.NewRows(userCols).AddRow("u-1", "a@x.com", "alice", "hash", []byte("salt"), created))

			got, err := tt.call(repo, context.Background(), tt.arg)
			require.NoError(t, err)
			assert.Equal(t, &models.User{
				ID: "u-1", Email: "a@x.com", UserName: "alice", PasswordHash: "hash", Salt: []byte("salt"), CreatedAt: created,
			}, got)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestFind_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`WHERE\s+email\s*=\s*\$1`).
		WithArgs("ghost@x.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByEmail(context.Background(), "ghost@x.com")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestFind_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`WHERE\s+id\s*=\s*\$1`).
		WithArgs("u-1").
		WillReturnError(errors.New("db err"))

	_, err := repo.FindByID(context.Background(), "u-1")
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

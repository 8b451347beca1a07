package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/ogurasousui/codex-library-loans/internal/core/user"
)

type stubRow struct {
	scanFn func(dest ...interface{}) error
}

func (s stubRow) Scan(dest ...interface{}) error {
	return s.scanFn(dest...)
}

func TestScanUser_Success(t *testing.T) {
	t.Parallel()

	createdAt := time.Now().UTC()

	row := stubRow{scanFn: func(dest ...interface{}) error {
		if len(dest) != 3 {
			return errors.New("unexpected dest length")
		}
		*(dest[0].(*string)) = "u-0001"
		*(dest[1].(*int16)) = int16(user.CategoryGuest)
		*(dest[2].(*time.Time)) = createdAt
		return nil
	}}

	u, err := scanUser(row)
	if err != nil {
		t.Fatalf("scanUser returned error: %v", err)
	}

	if u.ID != "u-0001" || u.Category != user.CategoryGuest || !u.CreatedAt.Equal(createdAt) {
		t.Fatalf("unexpected user %+v", u)
	}
}

func TestScanUser_NoRows(t *testing.T) {
	t.Parallel()

	row := stubRow{scanFn: func(dest ...interface{}) error {
		return pgx.ErrNoRows
	}}

	_, err := scanUser(row)
	if !errors.Is(err, user.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestTranslateUserPgError(t *testing.T) {
	t.Parallel()

	if !errors.Is(translateUserPgError(&pgconn.PgError{Code: uniqueViolationCode}), user.ErrUserAlreadyExists) {
		t.Fatalf("expected already exists mapping")
	}
	if !errors.Is(translateUserPgError(&pgconn.PgError{Code: checkViolationCode}), user.ErrInvalidCategory) {
		t.Fatalf("expected invalid category mapping")
	}

	otherErr := errors.New("random")
	if translateUserPgError(otherErr) != otherErr {
		t.Fatalf("unexpected translation for generic error")
	}
}

func TestUserRepository_FindCategory(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)
	query := regexp.QuoteMeta(`SELECT category FROM users WHERE id = $1`)

	mock.ExpectQuery(query).
		WithArgs("u-0001").
		WillReturnRows(pgxmock.NewRows([]string{"category"}).AddRow(int16(user.CategoryEmployee)))
	mock.ExpectQuery(query).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"category"}))

	category, err := repo.FindCategory(context.Background(), "u-0001")
	if err != nil {
		t.Fatalf("FindCategory returned error: %v", err)
	}
	if category != user.CategoryEmployee {
		t.Fatalf("expected employee, got %s", category)
	}

	if _, err := repo.FindCategory(context.Background(), "missing"); !errors.Is(err, user.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_Create_Duplicate(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("u-0001", int16(user.CategoryGuest), now).
		WillReturnError(&pgconn.PgError{Code: uniqueViolationCode})

	_, err = repo.Create(context.Background(), &user.User{ID: "u-0001", Category: user.CategoryGuest, CreatedAt: now})
	if !errors.Is(err, user.ErrUserAlreadyExists) {
		t.Fatalf("expected ErrUserAlreadyExists, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_List_WithNextToken(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"id", "category", "created_at"}).
		AddRow("u-0001", int16(user.CategoryAffiliated), now).
		AddRow("u-0002", int16(user.CategoryEmployee), now).
		AddRow("u-0003", int16(user.CategoryGuest), now)

	mock.ExpectQuery(`SELECT (.+) FROM "users" (.*)ORDER BY "id" ASC`).
		WillReturnRows(rows)

	users, nextToken, err := repo.List(context.Background(), user.ListUsersFilter{Limit: 2, Offset: 0})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}

	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}

	if nextToken != "2" {
		t.Fatalf("expected next token '2', got %s", nextToken)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_List_WithCategoryFilter(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)
	guest := user.CategoryGuest

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"id", "category", "created_at"}).
		AddRow("u-0005", int16(user.CategoryGuest), now)

	mock.ExpectQuery(`FROM "users" WHERE (.*)"category" = \$1`).
		WillReturnRows(rows)

	users, nextToken, err := repo.List(context.Background(), user.ListUsersFilter{Limit: 2, Offset: 0, Category: &guest})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}

	if len(users) != 1 || users[0].Category != user.CategoryGuest {
		t.Fatalf("expected 1 guest, got %+v", users)
	}

	if nextToken != "" {
		t.Fatalf("expected empty next token, got %s", nextToken)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_List_InvalidArguments(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	if _, _, err := repo.List(context.Background(), user.ListUsersFilter{Limit: 0, Offset: 0}); !errors.Is(err, user.ErrInvalidPageSize) {
		t.Fatalf("expected ErrInvalidPageSize, got %v", err)
	}

	if _, _, err := repo.List(context.Background(), user.ListUsersFilter{Limit: 1, Offset: -1}); !errors.Is(err, user.ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}
}

package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/ogurasousui/codex-library-loans/internal/core/book"
)

func TestBookRepository_FindByISBN(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewBookRepository(mock)
	query := regexp.QuoteMeta(`WHERE isbn = $1`)
	now := time.Now().UTC()

	mock.ExpectQuery(query).
		WithArgs("978-1").
		WillReturnRows(pgxmock.NewRows([]string{"isbn", "name", "created_at"}).AddRow("978-1", "Rayuela", now))
	mock.ExpectQuery(query).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"isbn", "name", "created_at"}))

	found, err := repo.FindByISBN(context.Background(), "978-1")
	if err != nil {
		t.Fatalf("FindByISBN returned error: %v", err)
	}
	if found.Name != "Rayuela" {
		t.Fatalf("unexpected book %+v", found)
	}

	if _, err := repo.FindByISBN(context.Background(), "missing"); !errors.Is(err, book.ErrBookNotFound) {
		t.Fatalf("expected ErrBookNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBookRepository_Create_Duplicate(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewBookRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(`INSERT INTO books`).
		WithArgs("978-1", "Rayuela", now).
		WillReturnError(&pgconn.PgError{Code: uniqueViolationCode})

	_, err = repo.Create(context.Background(), &book.Book{ISBN: "978-1", Name: "Rayuela", CreatedAt: now})
	if !errors.Is(err, book.ErrBookAlreadyExists) {
		t.Fatalf("expected ErrBookAlreadyExists, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBookRepository_List_WithNextToken(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewBookRepository(mock)

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"isbn", "name", "created_at"}).
		AddRow("isbn-2", "Andes", now).
		AddRow("isbn-3", "Moby Dick", now)

	mock.ExpectQuery(`SELECT (.+) FROM "books" (.*)ORDER BY "name" ASC, "isbn" ASC`).
		WillReturnRows(rows)

	books, nextToken, err := repo.List(context.Background(), book.ListBooksFilter{Limit: 1, Offset: 4})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}

	if len(books) != 1 || books[0].ISBN != "isbn-2" {
		t.Fatalf("unexpected books %+v", books)
	}
	if nextToken != "5" {
		t.Fatalf("expected next token '5', got %s", nextToken)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBookRepository_List_InvalidArguments(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewBookRepository(mock)

	if _, _, err := repo.List(context.Background(), book.ListBooksFilter{Limit: 0}); !errors.Is(err, book.ErrInvalidPageSize) {
		t.Fatalf("expected ErrInvalidPageSize, got %v", err)
	}
	if _, _, err := repo.List(context.Background(), book.ListBooksFilter{Limit: 1, Offset: -1}); !errors.Is(err, book.ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}
}

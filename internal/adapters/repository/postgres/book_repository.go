package postgres

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ogurasousui/codex-library-loans/internal/core/book"
	pgdb "github.com/ogurasousui/codex-library-loans/internal/platform/db/postgres"
)

// BookRepository は PostgreSQL を利用した蔵書永続化の実装です。
type BookRepository struct {
	pool pgdb.Queryer
}

// NewBookRepository は BookRepository を生成します。
func NewBookRepository(pool pgdb.Queryer) *BookRepository {
	return &BookRepository{pool: pool}
}

// Create は蔵書を登録します。
func (r *BookRepository) Create(ctx context.Context, b *book.Book) (*book.Book, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO books (isbn, name, created_at)
        VALUES ($1, $2, $3)
        RETURNING isbn, name, created_at
    `, b.ISBN, b.Name, b.CreatedAt)

	created, err := scanBook(row)
	if err != nil {
		return nil, translateBookPgError(err)
	}
	return created, nil
}

// FindByISBN は ISBN で蔵書を取得します。
func (r *BookRepository) FindByISBN(ctx context.Context, isbn string) (*book.Book, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT isbn, name, created_at
          FROM books
         WHERE isbn = $1
         LIMIT 1
    `, isbn)

	found, err := scanBook(row)
	if err != nil {
		return nil, translateBookPgError(err)
	}
	return found, nil
}

// List は蔵書を書名の昇順で取得します。
func (r *BookRepository) List(ctx context.Context, filter book.ListBooksFilter) ([]*book.Book, string, error) {
	if filter.Limit <= 0 {
		return nil, "", book.ErrInvalidPageSize
	}
	if filter.Offset < 0 {
		return nil, "", book.ErrInvalidPageToken
	}

	limitWithBuffer := filter.Limit + 1

	query, args, err := goqu.Dialect(dialectPostgres).
		From("books").
		Select("isbn", "name", "created_at").
		Order(goqu.I("name").Asc(), goqu.I("isbn").Asc()).
		Limit(uint(limitWithBuffer)).
		Offset(uint(filter.Offset)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, "", err
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, "", translateBookPgError(err)
	}
	defer rows.Close()

	books := make([]*book.Book, 0, filter.Limit)
	for rows.Next() {
		found, err := scanBook(rows)
		if err != nil {
			return nil, "", translateBookPgError(err)
		}
		books = append(books, found)
	}

	if err := rows.Err(); err != nil {
		return nil, "", translateBookPgError(err)
	}

	var nextToken string
	if len(books) == limitWithBuffer {
		books = books[:filter.Limit]
		nextToken = strconv.Itoa(filter.Offset + filter.Limit)
	}

	return books, nextToken, nil
}

func scanBook(row pgx.Row) (*book.Book, error) {
	var (
		isbn      string
		name      string
		createdAt time.Time
	)

	if err := row.Scan(&isbn, &name, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, book.ErrBookNotFound
		}
		return nil, err
	}

	return &book.Book{
		ISBN:      isbn,
		Name:      name,
		CreatedAt: createdAt,
	}, nil
}

func translateBookPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == uniqueViolationCode {
			return book.ErrBookAlreadyExists
		}
	}
	return err
}

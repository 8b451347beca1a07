package postgres

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ogurasousui/codex-library-loans/internal/core/user"
	pgdb "github.com/ogurasousui/codex-library-loans/internal/platform/db/postgres"
)

const (
	dialectPostgres         = "postgres"
	uniqueViolationCode     = "23505"
	foreignKeyViolationCode = "23503"
	checkViolationCode      = "23514"
)

// UserRepository は PostgreSQL を利用した利用者永続化の実装です。
type UserRepository struct {
	pool pgdb.Queryer
}

// NewUserRepository は UserRepository を生成します。
func NewUserRepository(pool pgdb.Queryer) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create は利用者を新規作成します。
func (r *UserRepository) Create(ctx context.Context, u *user.User) (*user.User, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO users (id, category, created_at)
        VALUES ($1, $2, $3)
        RETURNING id, category, created_at
    `, u.ID, int16(u.Category), u.CreatedAt)

	created, err := scanUser(row)
	if err != nil {
		return nil, translateUserPgError(err)
	}
	return created, nil
}

// FindByID は ID で利用者を取得します。
func (r *UserRepository) FindByID(ctx context.Context, id string) (*user.User, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT id, category, created_at
          FROM users
         WHERE id = $1
         LIMIT 1
    `, id)

	found, err := scanUser(row)
	if err != nil {
		return nil, translateUserPgError(err)
	}
	return found, nil
}

// FindCategory は利用者の区分のみを取得します。
func (r *UserRepository) FindCategory(ctx context.Context, id string) (user.Category, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)

	var category int16
	if err := exec.QueryRow(ctx, `SELECT category FROM users WHERE id = $1`, id).Scan(&category); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, user.ErrUserNotFound
		}
		return 0, translateUserPgError(err)
	}
	return user.Category(category), nil
}

// List は利用者を ID の昇順で取得します。
func (r *UserRepository) List(ctx context.Context, filter user.ListUsersFilter) ([]*user.User, string, error) {
	if filter.Limit <= 0 {
		return nil, "", user.ErrInvalidPageSize
	}
	if filter.Offset < 0 {
		return nil, "", user.ErrInvalidPageToken
	}

	limitWithBuffer := filter.Limit + 1

	stmt := goqu.Dialect(dialectPostgres).
		From("users").
		Select("id", "category", "created_at").
		Order(goqu.I("id").Asc()).
		Limit(uint(limitWithBuffer)).
		Offset(uint(filter.Offset)).
		Prepared(true)

	if filter.Category != nil {
		stmt = stmt.Where(goqu.Ex{"category": int16(*filter.Category)})
	}

	query, args, err := stmt.ToSQL()
	if err != nil {
		return nil, "", err
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, "", translateUserPgError(err)
	}
	defer rows.Close()

	users := make([]*user.User, 0, filter.Limit)
	for rows.Next() {
		found, err := scanUser(rows)
		if err != nil {
			return nil, "", translateUserPgError(err)
		}
		users = append(users, found)
	}

	if err := rows.Err(); err != nil {
		return nil, "", translateUserPgError(err)
	}

	var nextToken string
	if len(users) == limitWithBuffer {
		users = users[:filter.Limit]
		nextToken = strconv.Itoa(filter.Offset + filter.Limit)
	}

	return users, nextToken, nil
}

func scanUser(row pgx.Row) (*user.User, error) {
	var (
		id        string
		category  int16
		createdAt time.Time
	)

	if err := row.Scan(&id, &category, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrUserNotFound
		}
		return nil, err
	}

	return &user.User{
		ID:        id,
		Category:  user.Category(category),
		CreatedAt: createdAt,
	}, nil
}

func translateUserPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			return user.ErrUserAlreadyExists
		case checkViolationCode:
			return user.ErrInvalidCategory
		}
	}
	return err
}

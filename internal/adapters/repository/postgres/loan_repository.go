package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ogurasousui/codex-library-loans/internal/core/loan"
	"github.com/ogurasousui/codex-library-loans/internal/core/user"
	pgdb "github.com/ogurasousui/codex-library-loans/internal/platform/db/postgres"
)

const (
	loanBookForeignKey = "loans_book_id_fkey"

	logMsgSaveLoanFailed = "failed to save loan"
	logAttrLoanID        = "loan_id"
	logAttrBookID        = "book_id"
	logAttrUserID        = "user_id"
	logAttrError         = "error"
)

// LoanRepository は PostgreSQL を利用した貸出記録永続化の実装です。
type LoanRepository struct {
	pool     pgdb.Queryer
	logger   *slog.Logger
	location *time.Location
}

// LoanRepositoryOption は LoanRepository の設定を変更します。
type LoanRepositoryOption func(*LoanRepository)

// WithDueDateLocation は返却期限日を返す際のタイムゾーンを指定します。既定は UTC です。
func WithDueDateLocation(loc *time.Location) LoanRepositoryOption {
	return func(r *LoanRepository) {
		if loc != nil {
			r.location = loc
		}
	}
}

// NewLoanRepository は LoanRepository を生成します。
func NewLoanRepository(pool pgdb.Queryer, logger *slog.Logger, opts ...LoanRepositoryOption) *LoanRepository {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &LoanRepository{pool: pool, logger: logger, location: time.UTC}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Save は貸出を保存し、書名と利用者区分を結合して返します。
func (r *LoanRepository) Save(ctx context.Context, l *loan.Loan) (*loan.Loan, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        WITH inserted AS (
            INSERT INTO loans (id, book_id, user_id, loan_date, due_date)
            VALUES ($1, $2, $3, $4, $5)
            RETURNING id, book_id, user_id, loan_date, due_date
        )
        SELECT i.id::text, i.book_id, i.user_id, i.loan_date, i.due_date, b.name, u.category
          FROM inserted i
          JOIN books b ON b.isbn = i.book_id
          JOIN users u ON u.id = i.user_id
    `, l.ID, l.BookID, l.UserID, l.LoanDate, dateOnly(l.DueDate))

	saved, err := scanLoan(row, r.location)
	if err != nil {
		if isBookReferenceViolation(err) {
			return nil, loan.ErrBookNotFound
		}
		r.logger.ErrorContext(ctx, logMsgSaveLoanFailed,
			logAttrLoanID, l.ID,
			logAttrBookID, l.BookID,
			logAttrUserID, l.UserID,
			logAttrError, err.Error(),
		)
		return nil, loan.ErrStorage
	}
	return saved, nil
}

// FindByID は ID で貸出を取得します。UUID として解釈できない ID は存在しない扱いです。
func (r *LoanRepository) FindByID(ctx context.Context, id string) (*loan.Loan, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, loan.ErrLoanNotFound
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT l.id::text, l.book_id, l.user_id, l.loan_date, l.due_date, b.name, u.category
          FROM loans l
          JOIN books b ON b.isbn = l.book_id
          JOIN users u ON u.id = l.user_id
         WHERE l.id = $1
         LIMIT 1
    `, id)

	return scanLoan(row, r.location)
}

// CountActiveLoansByUser は利用者の貸出件数を返します。
func (r *LoanRepository) CountActiveLoansByUser(ctx context.Context, userID string) (int, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)

	var count int
	if err := exec.QueryRow(ctx, `SELECT COUNT(*) FROM loans WHERE user_id = $1`, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// FindAll は全貸出を貸出日時の降順で取得します。
func (r *LoanRepository) FindAll(ctx context.Context) ([]*loan.Loan, error) {
	query, args, err := goqu.Dialect(dialectPostgres).
		From(goqu.T("loans").As("l")).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.isbn").Eq(goqu.I("l.book_id")))).
		Join(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("l.user_id")))).
		Select(
			goqu.L("l.id::text"),
			goqu.I("l.book_id"),
			goqu.I("l.user_id"),
			goqu.I("l.loan_date"),
			goqu.I("l.due_date"),
			goqu.I("b.name"),
			goqu.I("u.category"),
		).
		Order(goqu.I("l.loan_date").Desc(), goqu.I("l.id").Desc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, err
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	loans := make([]*loan.Loan, 0)
	for rows.Next() {
		found, err := scanLoan(rows, r.location)
		if err != nil {
			return nil, err
		}
		loans = append(loans, found)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return loans, nil
}

// LockBorrower は利用者 ID 単位のトランザクションスコープのアドバイザリロックを取得します。
func (r *LoanRepository) LockBorrower(ctx context.Context, userID string) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	if _, err := exec.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
		return err
	}
	return nil
}

func scanLoan(row pgx.Row, loc *time.Location) (*loan.Loan, error) {
	var (
		id       string
		bookID   string
		userID   string
		loanDate time.Time
		dueDate  time.Time
		bookName string
		category int16
	)

	if err := row.Scan(&id, &bookID, &userID, &loanDate, &dueDate, &bookName, &category); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, loan.ErrLoanNotFound
		}
		return nil, err
	}

	return &loan.Loan{
		ID:           id,
		BookID:       bookID,
		UserID:       userID,
		LoanDate:     loanDate.UTC(),
		DueDate:      dateIn(dueDate, loc),
		BookName:     bookName,
		UserCategory: user.Category(category),
	}, nil
}

func isBookReferenceViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == foreignKeyViolationCode && pgErr.ConstraintName == loanBookForeignKey
	}
	return false
}

// dateOnly は日付部分のみを UTC の 0 時として返します。
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// dateIn は DATE 列の値を loc の 0 時として返します。
func dateIn(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ogurasousui/codex-library-loans/internal/core/user"
)

const (
	tracerName = "github.com/ogurasousui/codex-library-loans/internal/core/loan"

	logMsgResolveUserFailed = "failed to resolve borrower category"
	logMsgPublishFailed     = "failed to publish loan created event"
	logMsgCommitFailed      = "failed to commit loan transaction"
	logAttrUserID           = "user_id"
	logAttrLoanID           = "loan_id"
	logAttrError            = "error"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// CategoryResolver は利用者 ID から区分を解決します。
type CategoryResolver interface {
	ResolveCategory(ctx context.Context, userID string) (user.Category, error)
}

// DueDateCalculator は区分から返却期限日を算出します。
type DueDateCalculator interface {
	ComputeDueDate(category user.Category) (time.Time, error)
}

// EventPublisher は貸出作成イベントを外部へ通知します。
type EventPublisher interface {
	PublishLoanCreated(ctx context.Context, loan *Loan) error
}

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// UseCase は貸出ユースケースの公開インターフェースです。
type UseCase interface {
	CreateLoan(ctx context.Context, in CreateLoanInput) (*Loan, error)
	ListLoans(ctx context.Context) ([]*Loan, error)
	GetLoan(ctx context.Context, in GetLoanInput) (*Loan, error)
}

// Service は貸出に関するユースケースをまとめます。呼び出し間で状態を保持しません。
type Service struct {
	repo      Repository
	users     CategoryResolver
	dueDates  DueDateCalculator
	clock     Clock
	tx        TransactionManager
	publisher EventPublisher
	logger    *slog.Logger
	tracer    trace.Tracer
	newID     func() string
}

// Option は Service の任意設定です。
type Option func(*Service)

// WithClock は貸出日時に使う時計を差し替えます。
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithTransactionManager はトランザクション制御を設定します。
func WithTransactionManager(tx TransactionManager) Option {
	return func(s *Service) {
		if tx != nil {
			s.tx = tx
		}
	}
}

// WithPublisher は貸出作成イベントの通知先を設定します。
func WithPublisher(publisher EventPublisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

// WithLogger はロガーを設定します。
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIDGenerator は貸出 ID の採番方法を差し替えます。
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewService は Service を生成します。
func NewService(repo Repository, users CategoryResolver, dueDates DueDateCalculator, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		users:    users,
		dueDates: dueDates,
		clock:    realClock{},
		tx:       noopTransactionManager{},
		logger:   slog.New(slog.DiscardHandler),
		tracer:   otel.Tracer(tracerName),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateLoanInput は貸出作成時の入力です。
type CreateLoanInput struct {
	BookID string
	UserID string
}

// GetLoanInput は貸出取得時の入力です。
type GetLoanInput struct {
	ID string
}

// CreateLoan は利用者の区分を確認し、ゲストの貸出上限を検証したうえで貸出を作成します。
// 区分の確認から保存までは一つの読み書きトランザクション内で行い、ゲストの場合は利用者単位でロックします。
func (s *Service) CreateLoan(ctx context.Context, in CreateLoanInput) (*Loan, error) {
	ctx, span := s.tracer.Start(ctx, "loan.CreateLoan")
	defer span.End()

	bookID := strings.TrimSpace(in.BookID)
	if bookID == "" {
		return nil, ErrInvalidBookID
	}

	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return nil, ErrInvalidUserID
	}

	span.SetAttributes(attribute.String("loan.book_id", bookID), attribute.String("loan.user_id", userID))

	var created *Loan
	work := func(txCtx context.Context) error {
		category, err := s.resolveBorrower(txCtx, userID)
		if err != nil {
			return err
		}

		span.SetAttributes(attribute.String("loan.user_category", category.String()))

		if category == user.CategoryGuest {
			if err := s.ensureGuestHasNoLoan(txCtx, userID); err != nil {
				return err
			}
		}

		dueDate, err := s.dueDates.ComputeDueDate(category)
		if err != nil {
			return err
		}

		saved, err := s.repo.Save(txCtx, &Loan{
			ID:       s.newID(),
			BookID:   bookID,
			UserID:   userID,
			LoanDate: s.clock.Now(),
			DueDate:  dueDate,
		})
		if err != nil {
			return err
		}

		created = saved
		return nil
	}

	var workErr error
	err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		workErr = work(txCtx)
		return workErr
	})
	if err != nil && workErr == nil {
		// 開始またはコミットの失敗。
		s.logger.ErrorContext(ctx, logMsgCommitFailed, logAttrUserID, userID, logAttrError, err.Error())
		err = ErrStorage
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("loan.id", created.ID))
	s.publishCreated(ctx, created)

	return created, nil
}

// ListLoans は全ての貸出を貸出日時の降順で取得します。
func (s *Service) ListLoans(ctx context.Context) ([]*Loan, error) {
	var loans []*Loan
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.FindAll(txCtx)
		if err != nil {
			return err
		}
		loans = found
		return nil
	}); err != nil {
		return nil, err
	}
	return loans, nil
}

// GetLoan は ID で貸出を取得します。
func (s *Service) GetLoan(ctx context.Context, in GetLoanInput) (*Loan, error) {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}

	var result *Loan
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		result = found
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Service) resolveBorrower(ctx context.Context, userID string) (user.Category, error) {
	category, err := s.users.ResolveCategory(ctx, userID)
	if err == nil {
		return category, nil
	}
	if errors.Is(err, user.ErrUserNotFound) {
		return 0, err
	}

	s.logger.WarnContext(ctx, logMsgResolveUserFailed, logAttrUserID, userID, logAttrError, err.Error())
	return 0, ErrUserValidation
}

func (s *Service) ensureGuestHasNoLoan(ctx context.Context, userID string) error {
	if err := s.repo.LockBorrower(ctx, userID); err != nil {
		return err
	}

	count, err := s.repo.CountActiveLoansByUser(ctx, userID)
	if err != nil {
		return err
	}

	if count >= 1 {
		return ErrLoanLimitExceeded
	}
	return nil
}

func (s *Service) publishCreated(ctx context.Context, created *Loan) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLoanCreated(ctx, created); err != nil {
		s.logger.WarnContext(ctx, logMsgPublishFailed, logAttrLoanID, created.ID, logAttrError, err.Error())
	}
}

package user

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

const (
	defaultListPageSize = 50
	maxListPageSize     = 200

	// MaxIDLength は利用者 ID の最大文字数です。
	MaxIDLength = 10
)

// Service はユーザーに関するユースケースをまとめます。
type Service struct {
	repo  Repository
	clock Clock
}

// UseCase はユーザーユースケースの公開インターフェースです。
type UseCase interface {
	CreateUser(ctx context.Context, in CreateUserInput) (*User, error)
	GetUser(ctx context.Context, in GetUserInput) (*User, error)
	ListUsers(ctx context.Context, in ListUsersInput) (*ListUsersResult, error)
	ResolveCategory(ctx context.Context, userID string) (Category, error)
}

// NewService は Service を生成します。
func NewService(repo Repository, clock Clock) *Service {
	if clock == nil {
		clock = realClock{}
	}
	return &Service{repo: repo, clock: clock}
}

// CreateUserInput はユーザー作成時の入力です。
type CreateUserInput struct {
	ID       string
	Category Category
}

// GetUserInput はユーザー取得時の入力です。
type GetUserInput struct {
	ID string
}

// ListUsersInput は一覧取得時の入力です。
type ListUsersInput struct {
	PageSize  int
	PageToken string
	Category  *Category
}

// ListUsersResult は一覧取得結果を表します。
type ListUsersResult struct {
	Users         []*User
	NextPageToken string
}

// CreateUser は新しいユーザーを登録します。
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*User, error) {
	id, err := normalizeID(in.ID)
	if err != nil {
		return nil, err
	}

	if !in.Category.IsValid() {
		return nil, ErrInvalidCategory
	}

	if err := s.ensureUserNotExists(ctx, id); err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, &User{
		ID:        id,
		Category:  in.Category,
		CreatedAt: s.clock.Now(),
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// GetUser は ID でユーザーを取得します。
func (s *Service) GetUser(ctx context.Context, in GetUserInput) (*User, error) {
	id, err := normalizeID(in.ID)
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, id)
}

// ResolveCategory は利用者 ID から区分を解決します。
// 該当ユーザーがいない場合は ErrUserNotFound を、それ以外の永続化エラーはそのまま返します。
// 登録できない形式の ID も存在しないユーザーとして扱います。
func (s *Service) ResolveCategory(ctx context.Context, userID string) (Category, error) {
	id, err := normalizeID(userID)
	if err != nil {
		return 0, ErrUserNotFound
	}
	return s.repo.FindCategory(ctx, id)
}

// ListUsers はユーザーを ID 昇順で取得します。
func (s *Service) ListUsers(ctx context.Context, in ListUsersInput) (*ListUsersResult, error) {
	limit, err := normalizePageSize(in.PageSize)
	if err != nil {
		return nil, err
	}

	offset, err := parsePageToken(in.PageToken)
	if err != nil {
		return nil, err
	}

	var categoryPtr *Category
	if in.Category != nil {
		if !in.Category.IsValid() {
			return nil, ErrInvalidCategory
		}
		category := *in.Category
		categoryPtr = &category
	}

	users, nextToken, err := s.repo.List(ctx, ListUsersFilter{
		Limit:    limit,
		Offset:   offset,
		Category: categoryPtr,
	})
	if err != nil {
		return nil, err
	}

	return &ListUsersResult{
		Users:         users,
		NextPageToken: nextToken,
	}, nil
}

func (s *Service) ensureUserNotExists(ctx context.Context, id string) error {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return err
	}
	if existing != nil {
		return ErrUserAlreadyExists
	}
	return nil
}

func normalizeID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" || utf8.RuneCountInString(id) > MaxIDLength {
		return "", fmt.Errorf("id: %w", ErrInvalidID)
	}
	return id, nil
}

func normalizePageSize(pageSize int) (int, error) {
	if pageSize <= 0 {
		return defaultListPageSize, nil
	}
	if pageSize > maxListPageSize {
		return 0, ErrInvalidPageSize
	}
	return pageSize, nil
}

func parsePageToken(token string) (int, error) {
	if strings.TrimSpace(token) == "" {
		return 0, nil
	}

	offset, err := strconv.Atoi(token)
	if err != nil || offset < 0 {
		return 0, ErrInvalidPageToken
	}

	return offset, nil
}

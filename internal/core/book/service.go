package book

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
	maxISBNLength       = 32
	maxNameLength       = 255
)

// Service は蔵書に関するユースケースをまとめます。
type Service struct {
	repo  Repository
	clock Clock
}

// UseCase は蔵書ユースケースの公開インターフェースです。
type UseCase interface {
	RegisterBook(ctx context.Context, in RegisterBookInput) (*Book, error)
	GetBook(ctx context.Context, in GetBookInput) (*Book, error)
	ListBooks(ctx context.Context, in ListBooksInput) (*ListBooksResult, error)
}

// NewService は Service を生成します。
func NewService(repo Repository, clock Clock) *Service {
	if clock == nil {
		clock = realClock{}
	}
	return &Service{repo: repo, clock: clock}
}

// RegisterBookInput は蔵書登録時の入力です。
type RegisterBookInput struct {
	ISBN string
	Name string
}

// GetBookInput は蔵書取得時の入力です。
type GetBookInput struct {
	ISBN string
}

// ListBooksInput は一覧取得時の入力です。
type ListBooksInput struct {
	PageSize  int
	PageToken string
}

// ListBooksResult は一覧取得結果を表します。
type ListBooksResult struct {
	Books         []*Book
	NextPageToken string
}

// RegisterBook は蔵書を登録します。
func (s *Service) RegisterBook(ctx context.Context, in RegisterBookInput) (*Book, error) {
	isbn, err := normalizeISBN(in.ISBN)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return nil, ErrInvalidName
	}

	if err := s.ensureBookNotExists(ctx, isbn); err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, &Book{
		ISBN:      isbn,
		Name:      name,
		CreatedAt: s.clock.Now(),
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// GetBook は ISBN で蔵書を取得します。
func (s *Service) GetBook(ctx context.Context, in GetBookInput) (*Book, error) {
	isbn, err := normalizeISBN(in.ISBN)
	if err != nil {
		return nil, err
	}
	return s.repo.FindByISBN(ctx, isbn)
}

// ListBooks は蔵書を書名の昇順で取得します。
func (s *Service) ListBooks(ctx context.Context, in ListBooksInput) (*ListBooksResult, error) {
	limit, err := normalizePageSize(in.PageSize)
	if err != nil {
		return nil, err
	}

	offset, err := parsePageToken(in.PageToken)
	if err != nil {
		return nil, err
	}

	books, nextToken, err := s.repo.List(ctx, ListBooksFilter{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}

	return &ListBooksResult{Books: books, NextPageToken: nextToken}, nil
}

func (s *Service) ensureBookNotExists(ctx context.Context, isbn string) error {
	existing, err := s.repo.FindByISBN(ctx, isbn)
	if err != nil && !errors.Is(err, ErrBookNotFound) {
		return err
	}
	if existing != nil {
		return ErrBookAlreadyExists
	}
	return nil
}

func normalizeISBN(raw string) (string, error) {
	isbn := strings.TrimSpace(raw)
	if isbn == "" || utf8.RuneCountInString(isbn) > maxISBNLength {
		return "", fmt.Errorf("isbn: %w", ErrInvalidISBN)
	}
	return isbn, nil
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

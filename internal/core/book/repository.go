package book

import "context"

// Repository は蔵書の永続化を行うインターフェースです。
type Repository interface {
	Create(ctx context.Context, book *Book) (*Book, error)
	FindByISBN(ctx context.Context, isbn string) (*Book, error)
	List(ctx context.Context, filter ListBooksFilter) ([]*Book, string, error)
}

// ListBooksFilter は一覧取得時の検索条件を表します。
type ListBooksFilter struct {
	Limit  int
	Offset int
}

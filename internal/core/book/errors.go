package book

import "errors"

var (
	// ErrBookNotFound は蔵書が存在しない場合に返却されます。
	ErrBookNotFound = errors.New("book not found")
	// ErrBookAlreadyExists は ISBN 重複時に返却されます。
	ErrBookAlreadyExists = errors.New("book already exists")
	// ErrInvalidISBN は ISBN が不正な場合に返却されます。
	ErrInvalidISBN = errors.New("invalid isbn")
	// ErrInvalidName は書名が不正な場合に返却されます。
	ErrInvalidName = errors.New("invalid name")
	// ErrInvalidPageSize は一覧取得時のページサイズが不正な場合に返却されます。
	ErrInvalidPageSize = errors.New("invalid page size")
	// ErrInvalidPageToken は一覧取得時のページトークンが不正な場合に返却されます。
	ErrInvalidPageToken = errors.New("invalid page token")
)

package loan

import "errors"

var (
	// ErrLoanNotFound は貸出が存在しない場合に返却されます。
	ErrLoanNotFound = errors.New("loan not found")
	// ErrBookNotFound は貸出対象の蔵書が存在しない場合に返却されます。
	ErrBookNotFound = errors.New("loan: book not found")
	// ErrLoanLimitExceeded はゲスト利用者が既に貸出中の場合に返却されます。
	ErrLoanLimitExceeded = errors.New("user already holds a loan")
	// ErrUserValidation は利用者の確認が NotFound 以外の理由で失敗した場合に返却されます。
	ErrUserValidation = errors.New("could not validate user")
	// ErrStorage は貸出の保存に失敗した場合に返却されます。原因はログにのみ出力されます。
	ErrStorage = errors.New("could not save the loan")
	// ErrInvalidID は貸出 ID が不正な場合に返却されます。
	ErrInvalidID = errors.New("invalid id")
	// ErrInvalidBookID は蔵書 ID が不正な場合に返却されます。
	ErrInvalidBookID = errors.New("invalid book id")
	// ErrInvalidUserID は利用者 ID が不正な場合に返却されます。
	ErrInvalidUserID = errors.New("invalid user id")
)

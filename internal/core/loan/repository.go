package loan

import "context"

// Repository は貸出記録の永続化を行うインターフェースです。
type Repository interface {
	// Save は貸出を保存し、書名を結合した結果を返します。失敗時は ErrStorage を返します。
	Save(ctx context.Context, loan *Loan) (*Loan, error)
	FindByID(ctx context.Context, id string) (*Loan, error)
	// CountActiveLoansByUser は利用者の貸出件数を返します。返却の概念がないため全件が対象です。
	CountActiveLoansByUser(ctx context.Context, userID string) (int, error)
	// FindAll は全貸出を貸出日時の降順で返します。
	FindAll(ctx context.Context) ([]*Loan, error)
	// LockBorrower は現在のトランザクションが終わるまで利用者単位の排他ロックを取得します。
	LockBorrower(ctx context.Context, userID string) error
}

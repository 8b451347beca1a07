package loan

import (
	"time"

	"github.com/ogurasousui/codex-library-loans/internal/core/user"
)

// Loan は貸出エンティティです。作成後に変更・削除されることはありません。
type Loan struct {
	ID       string
	BookID   string
	UserID   string
	LoanDate time.Time
	// DueDate は返却期限日です。時刻部分は持ちません。
	DueDate time.Time

	// BookName は蔵書の書名です。読み取り時に結合されます。
	BookName string
	// UserCategory は一覧取得時のみ設定されます。
	UserCategory user.Category
}

// Package duedate は利用者区分ごとの返却期限日を営業日ベースで算出します。
package duedate

import (
	"errors"
	"fmt"
	"time"

	"github.com/ogurasousui/codex-library-loans/internal/core/user"
)

var (
	// ErrUnknownCategory は未定義の利用者区分が渡された場合に返却されます。呼び出し側の不具合を示します。
	ErrUnknownCategory = errors.New("duedate: unknown user category")
	// ErrInvalidPolicy は貸出日数の設定が不正な場合に返却されます。
	ErrInvalidPolicy = errors.New("duedate: invalid policy")
)

// Policy は利用者区分ごとの貸出日数（営業日）です。
type Policy struct {
	AffiliatedDays int
	EmployeeDays   int
	GuestDays      int
}

// DefaultPolicy は既定の貸出日数を返します。
func DefaultPolicy() Policy {
	return Policy{AffiliatedDays: 10, EmployeeDays: 8, GuestDays: 3}
}

func (p Policy) validate() error {
	if p.AffiliatedDays < 1 || p.EmployeeDays < 1 || p.GuestDays < 1 {
		return fmt.Errorf("%w: allowance must be at least one business day", ErrInvalidPolicy)
	}
	return nil
}

// DaysFor は区分に対応する営業日数を返します。
func (p Policy) DaysFor(category user.Category) (int, error) {
	switch category {
	case user.CategoryAffiliated:
		return p.AffiliatedDays, nil
	case user.CategoryEmployee:
		return p.EmployeeDays, nil
	case user.CategoryGuest:
		return p.GuestDays, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownCategory, int(category))
	}
}

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

// Calculator は返却期限日を算出します。状態を持たず、同じ時刻と区分に対して常に同じ結果を返します。
type Calculator struct {
	policy   Policy
	clock    Clock
	location *time.Location
}

// NewCalculator は Calculator を生成します。location が nil の場合は UTC で日付を扱います。
func NewCalculator(policy Policy, clock Clock, location *time.Location) (*Calculator, error) {
	if err := policy.validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = realClock{}
	}
	if location == nil {
		location = time.UTC
	}
	return &Calculator{policy: policy, clock: clock, location: location}, nil
}

// ComputeDueDate は区分に応じた返却期限日（0 時 0 分）を返します。
func (c *Calculator) ComputeDueDate(category user.Category) (time.Time, error) {
	days, err := c.policy.DaysFor(category)
	if err != nil {
		return time.Time{}, err
	}
	return AddBusinessDays(c.clock.Now().In(c.location), days), nil
}

// AddBusinessDays は from の翌日から数えて businessDays 番目の平日を、from と同じロケーションの 0 時で返します。
// 土日はカウントしません。カウントが 0 になった日で停止します。
func AddBusinessDays(from time.Time, businessDays int) time.Time {
	year, month, day := from.Date()
	current := time.Date(year, month, day+1, 0, 0, 0, 0, from.Location())

	remaining := businessDays
	for remaining > 0 {
		if IsBusinessDay(current) {
			remaining--
			if remaining == 0 {
				break
			}
		}
		current = current.AddDate(0, 0, 1)
	}

	return current
}

// IsBusinessDay は土日以外であれば true を返します。
func IsBusinessDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	default:
		return true
	}
}

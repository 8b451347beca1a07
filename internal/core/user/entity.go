package user

import (
	"strconv"
	"strings"
	"time"
)

// Category は利用者区分を表します。値は永続化層の数値表現と一致します。
type Category int

const (
	CategoryAffiliated Category = 1
	CategoryEmployee   Category = 2
	CategoryGuest      Category = 3
)

// User は図書館の利用者エンティティです。区分は作成後に変更されません。
type User struct {
	ID        string
	Category  Category
	CreatedAt time.Time
}

// IsValid は区分が定義済みの値かを判定します。
func (c Category) IsValid() bool {
	switch c {
	case CategoryAffiliated, CategoryEmployee, CategoryGuest:
		return true
	default:
		return false
	}
}

// String は区分の名前を返します。
func (c Category) String() string {
	switch c {
	case CategoryAffiliated:
		return "affiliated"
	case CategoryEmployee:
		return "employee"
	case CategoryGuest:
		return "guest"
	default:
		return "unknown(" + strconv.Itoa(int(c)) + ")"
	}
}

// ParseCategory は名前または数値表現から区分を解釈します。
func ParseCategory(raw string) (Category, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "affiliated", "1":
		return CategoryAffiliated, nil
	case "employee", "2":
		return CategoryEmployee, nil
	case "guest", "3":
		return CategoryGuest, nil
	default:
		return 0, ErrInvalidCategory
	}
}

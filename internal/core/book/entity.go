package book

import "time"

// Book は蔵書エンティティです。登録後は変更されません。
type Book struct {
	ISBN      string
	Name      string
	CreatedAt time.Time
}

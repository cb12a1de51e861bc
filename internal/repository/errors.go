package repository

import "errors"

var (
	// 対象が存在しない
	ErrNotFound = errors.New("not found")

	// unique制約違反（tracking_number / email）
	ErrDuplicateKey = errors.New("duplicate key")
)

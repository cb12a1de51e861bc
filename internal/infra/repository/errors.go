package repository

import (
	"errors"

	repo "xprexx/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// 23505 = unique_violation
const pgUniqueViolation = "23505"

// gormのエラーをrepositoryのエラーに揃える。それ以外はそのまま返す。
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repo.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return repo.ErrDuplicateKey
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return repo.ErrDuplicateKey
	}
	return err
}

package validator

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"xprexx/internal/repository"
	"xprexx/internal/usecase"
)

var (
	// 入力が不正
	ErrInvalidInput = usecase.NewHTTPError(http.StatusBadRequest, "invalid input")

	// パスワードが短い
	ErrPasswordTooShort = usecase.NewHTTPError(http.StatusBadRequest, "password must be at least 8 characters")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type authValidator struct {
	users repository.UserRepository
}

// Usecaseは interface を依存注入
func NewAuthValidator(users repository.UserRepository) usecase.AuthValidator {
	return &authValidator{users: users}
}

// サインアップの入力を検証
func (v *authValidator) ValidateRegister(ctx context.Context, email string, password string) error {
	email = strings.TrimSpace(email)

	// 必須チェック
	if email == "" || password == "" {
		return ErrInvalidInput
	}

	// email形式
	if !isEmailLike(email) {
		return ErrInvalidInput
	}

	// パスワード最低文字数（MVP: 8）
	if len(password) < 8 {
		return ErrPasswordTooShort
	}

	// email重複チェック（DBが必要）。最終的にはunique制約で弾く
	u, err := v.users.FindByEmail(ctx, email)
	if err == nil && u != nil {
		return usecase.ErrEmailAlreadyUsed
	}

	return nil
}

// ログインの入力を検証
func (v *authValidator) ValidateLogin(ctx context.Context, email string, password string) error {
	email = strings.TrimSpace(email)

	// 必須チェック
	if email == "" || password == "" {
		return ErrInvalidInput
	}

	// email形式
	if !isEmailLike(email) {
		return ErrInvalidInput
	}

	return nil
}

// 強制ログアウトの入力を検証
func (v *authValidator) ValidateForceLogout(ctx context.Context, targetUserID int64) error {
	if targetUserID <= 0 {
		return ErrInvalidInput
	}
	return nil
}

// 簡易メール形式をチェック
func isEmailLike(s string) bool {
	return emailPattern.MatchString(s)
}

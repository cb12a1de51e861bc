package repository

import (
	"context"

	"xprexx/internal/domain/model"
)

// 保存・取得を約束
type UserRepository interface {
	//新規ユーザー作成
	Create(ctx context.Context, user *model.User) error
	// IDからユーザーを1件取得する。いなければ (nil, nil)
	FindByID(ctx context.Context, userID int64) (*model.User, error)
	//メールからユーザーを一件取得する。いなければ (nil, nil)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// ユーザー情報の更新=>最後のログイン更新など
	Update(ctx context.Context, user *model.User) error
	//トークンのバージョンを＋１
	IncrementTokenVersion(ctx context.Context, userID int64) error
	//有効/停止
	SetActive(ctx context.Context, userID int64, active bool) error
	//管理者用一覧
	List(ctx context.Context, page int, limit int) ([]model.User, int64, error)
}

package repository

import (
	"context"
	"time"

	"xprexx/internal/domain/model"
)

// 一覧の絞り込み条件（顧客の「自分の配送」と管理者一覧で共用）
type ShipmentListFilter struct {
	Page  int
	Limit int

	// tracking_number / origin / destination / 送受信者名の部分一致
	Q             string
	Status        string
	PaymentStatus string
	Paused        *bool
	UserID        *int64
}

// ステータス遷移で書き換える列
type ShipmentStatusUpdate struct {
	Status    model.ShipmentStatus
	Location  *string
	UpdatedAt time.Time
}

// 管理画面のOverview用集計
type ShipmentStats struct {
	Total           int64
	Paused          int64
	ByStatus        map[model.ShipmentStatus]int64
	ByPaymentStatus map[model.PaymentStatus]int64
}

// 配送の保存・取得の約束。
type ShipmentRepository interface {
	Create(ctx context.Context, s *model.Shipment) error
	FindByID(ctx context.Context, id string) (model.Shipment, error)
	FindByTrackingNumber(ctx context.Context, trackingNumber string) (model.Shipment, error)

	UpdateStatus(ctx context.Context, id string, u ShipmentStatusUpdate) error
	SetPaused(ctx context.Context, id string, paused bool, at time.Time) error
	SetPaymentStatus(ctx context.Context, id string, status model.PaymentStatus, at time.Time) error

	List(ctx context.Context, f ShipmentListFilter) ([]model.Shipment, int64, error)
	Stats(ctx context.Context) (ShipmentStats, error)
}

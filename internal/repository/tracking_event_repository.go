package repository

import (
	"context"

	"xprexx/internal/domain/model"
)

// 追跡イベントは追記と取得だけ。
type TrackingEventRepository interface {
	Create(ctx context.Context, e *model.TrackingEvent) error

	//新しい順（created_at DESC, id DESC）
	ListByShipmentID(ctx context.Context, shipmentID string) ([]model.TrackingEvent, error)
}

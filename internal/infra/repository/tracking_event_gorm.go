package repository

import (
	"context"

	"xprexx/internal/domain/model"

	"gorm.io/gorm"
)

type TrackingEventGormRepository struct {
	db *gorm.DB
}

func NewTrackingEventGormRepository(db *gorm.DB) *TrackingEventGormRepository {
	return &TrackingEventGormRepository{db: db}
}

func (r *TrackingEventGormRepository) Create(ctx context.Context, e *model.TrackingEvent) error {
	return translateErr(r.db.WithContext(ctx).Create(e).Error)
}

// 新しい順。同時刻はidで決める
func (r *TrackingEventGormRepository) ListByShipmentID(ctx context.Context, shipmentID string) ([]model.TrackingEvent, error) {
	var events []model.TrackingEvent
	err := r.db.WithContext(ctx).
		Where("shipment_id = ?", shipmentID).
		Order("created_at desc").
		Order("id desc").
		Find(&events).Error
	if err != nil {
		return []model.TrackingEvent{}, translateErr(err)
	}
	return events, nil
}

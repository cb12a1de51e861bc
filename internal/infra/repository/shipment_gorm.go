package repository

import (
	"context"
	"strings"
	"time"

	"xprexx/internal/domain/model"
	repo "xprexx/internal/repository"

	"gorm.io/gorm"
)

type ShipmentGormRepository struct {
	db *gorm.DB
}

func NewShipmentGormRepository(db *gorm.DB) *ShipmentGormRepository {
	return &ShipmentGormRepository{db: db}
}

func (r *ShipmentGormRepository) Create(ctx context.Context, s *model.Shipment) error {
	return translateErr(r.db.WithContext(ctx).Omit("Events").Create(s).Error)
}

func (r *ShipmentGormRepository) FindByID(ctx context.Context, id string) (model.Shipment, error) {
	var s model.Shipment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if err != nil {
		return model.Shipment{}, translateErr(err)
	}
	return s, nil
}

func (r *ShipmentGormRepository) FindByTrackingNumber(ctx context.Context, trackingNumber string) (model.Shipment, error) {
	var s model.Shipment
	err := r.db.WithContext(ctx).Where("tracking_number = ?", trackingNumber).First(&s).Error
	if err != nil {
		return model.Shipment{}, translateErr(err)
	}
	return s, nil
}

func (r *ShipmentGormRepository) UpdateStatus(ctx context.Context, id string, u repo.ShipmentStatusUpdate) error {
	values := map[string]interface{}{
		"status":     u.Status,
		"updated_at": u.UpdatedAt,
	}
	//locationが来たときだけ現在地を書き換える
	if u.Location != nil {
		values["current_location"] = *u.Location
	}
	return r.update(ctx, id, values)
}

func (r *ShipmentGormRepository) SetPaused(ctx context.Context, id string, paused bool, at time.Time) error {
	return r.update(ctx, id, map[string]interface{}{
		"is_paused":  paused,
		"updated_at": at,
	})
}

func (r *ShipmentGormRepository) SetPaymentStatus(ctx context.Context, id string, status model.PaymentStatus, at time.Time) error {
	return r.update(ctx, id, map[string]interface{}{
		"payment_status": status,
		"updated_at":     at,
	})
}

func (r *ShipmentGormRepository) update(ctx context.Context, id string, values map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&model.Shipment{}).
		Where("id = ?", id).
		Updates(values)

	if res.Error != nil {
		return translateErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *ShipmentGormRepository) List(ctx context.Context, f repo.ShipmentListFilter) ([]model.Shipment, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}

	q := r.db.WithContext(ctx).Model(&model.Shipment{})

	//所有者
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}

	//キーワード（大文字小文字を無視）
	if kw := strings.ToLower(strings.TrimSpace(f.Q)); kw != "" {
		like := "%" + escapeLike(kw) + "%"
		q = q.Where(
			"LOWER(tracking_number) LIKE ? ESCAPE '\\' OR LOWER(origin) LIKE ? ESCAPE '\\' OR LOWER(destination) LIKE ? ESCAPE '\\' OR LOWER(sender_name) LIKE ? ESCAPE '\\' OR LOWER(receiver_name) LIKE ? ESCAPE '\\'",
			like, like, like, like, like,
		)
	}

	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.PaymentStatus != "" {
		q = q.Where("payment_status = ?", f.PaymentStatus)
	}
	if f.Paused != nil {
		q = q.Where("is_paused = ?", *f.Paused)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.Shipment{}, 0, translateErr(err)
	}

	var items []model.Shipment
	offset := (f.Page - 1) * f.Limit
	if err := q.Order("created_at desc").Order("id").Limit(f.Limit).Offset(offset).Find(&items).Error; err != nil {
		return []model.Shipment{}, 0, translateErr(err)
	}

	return items, total, nil
}

func (r *ShipmentGormRepository) Stats(ctx context.Context) (repo.ShipmentStats, error) {
	stats := repo.ShipmentStats{
		ByStatus:        map[model.ShipmentStatus]int64{},
		ByPaymentStatus: map[model.PaymentStatus]int64{},
	}

	type statusRow struct {
		Status string
		N      int64
	}

	var byStatus []statusRow
	if err := r.db.WithContext(ctx).Model(&model.Shipment{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&byStatus).Error; err != nil {
		return repo.ShipmentStats{}, translateErr(err)
	}
	for _, row := range byStatus {
		stats.ByStatus[model.ShipmentStatus(row.Status)] = row.N
		stats.Total += row.N
	}

	var byPayment []statusRow
	if err := r.db.WithContext(ctx).Model(&model.Shipment{}).
		Select("payment_status AS status, COUNT(*) AS n").
		Group("payment_status").
		Scan(&byPayment).Error; err != nil {
		return repo.ShipmentStats{}, translateErr(err)
	}
	for _, row := range byPayment {
		stats.ByPaymentStatus[model.PaymentStatus(row.Status)] = row.N
	}

	if err := r.db.WithContext(ctx).Model(&model.Shipment{}).
		Where("is_paused = ?", true).
		Count(&stats.Paused).Error; err != nil {
		return repo.ShipmentStats{}, translateErr(err)
	}

	return stats, nil
}

// LIKEのワイルドカードをエスケープする
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

package repository

import (
	"context"

	repo "xprexx/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	shipments      repo.ShipmentRepository
	trackingEvents repo.TrackingEventRepository
	auditLogs      repo.AuditLogRepository
}

func (r *txReposGorm) Shipments() repo.ShipmentRepository           { return r.shipments }
func (r *txReposGorm) TrackingEvents() repo.TrackingEventRepository { return r.trackingEvents }
func (r *txReposGorm) AuditLogs() repo.AuditLogRepository           { return r.auditLogs }

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

// fnがエラーを返したら全部rollback（配送の更新とイベント追記は必ずセット）
func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		r := &txReposGorm{
			shipments:      NewShipmentGormRepository(tx),
			trackingEvents: NewTrackingEventGormRepository(tx),
			auditLogs:      NewAuditLogGormRepository(tx),
		}
		return fn(r)
	})
}

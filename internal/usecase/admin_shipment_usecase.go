package usecase

import (
	"context"
	"net/http"
	"strings"

	"xprexx/internal/domain/model"
	repo "xprexx/internal/repository"

	"go.uber.org/zap"
)

const (
	pausedEventDescription  = "Shipment has been paused"
	resumedEventDescription = "Shipment has been resumed"
)

type TransitionStatusInput struct {
	Status      string
	Location    *string
	Description *string
}

type OverviewOutput struct {
	Total           int64            `json:"total"`
	Paused          int64            `json:"paused"`
	ByStatus        map[string]int64 `json:"by_status"`
	ByCategory      map[string]int64 `json:"by_category"`
	ByPaymentStatus map[string]int64 `json:"by_payment_status"`
}

// 管理者だけが触れる状態遷移（ステータス / 一時停止 / 支払い）。
// どの更新も配送行の書き換えとイベント追記（+監査ログ）を1つのTxで行う。
type AdminShipmentUsecase struct {
	tx        repo.TransactionManager
	clock     Clock
	publisher EventPublisher
	reports   ReportStore
	log       *zap.Logger

	reportCfg ReportConfig
}

func NewAdminShipmentUsecase(
	tx repo.TransactionManager,
	clock Clock,
	publisher EventPublisher,
	reports ReportStore,
	log *zap.Logger,
	reportCfg ReportConfig,
) *AdminShipmentUsecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminShipmentUsecase{
		tx:        tx,
		clock:     clock,
		publisher: publisher,
		reports:   reports,
		log:       log,
		reportCfg: reportCfg,
	}
}

func (u *AdminShipmentUsecase) List(ctx context.Context, actor model.Actor, f repo.ShipmentListFilter) (ShipmentListOutput, error) {
	if err := requireAdmin(actor); err != nil {
		return ShipmentListOutput{}, err
	}
	f, err := normalizeListFilter(f)
	if err != nil {
		return ShipmentListOutput{}, err
	}

	var out ShipmentListOutput
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		items, total, err := r.Shipments().List(ctx, f)
		if err != nil {
			return storeUnavailable(err)
		}
		out = ShipmentListOutput{Items: toShipmentOutputs(items), Total: total, Page: f.Page, Limit: f.Limit}
		return nil
	})
	if err != nil {
		return ShipmentListOutput{}, storeError(err, MsgShipmentNotFound)
	}
	return out, nil
}

func (u *AdminShipmentUsecase) Get(ctx context.Context, actor model.Actor, id string) (TrackingOutput, error) {
	if err := requireAdmin(actor); err != nil {
		return TrackingOutput{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return TrackingOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out TrackingOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		detail, _, err := loadShipmentDetail(ctx, r, id)
		if err != nil {
			return err
		}
		out = detail
		return nil
	})
	if err != nil {
		return TrackingOutput{}, storeError(err, MsgShipmentNotFound)
	}
	return out, nil
}

// TransitionStatus は配送のステータスを変え、イベントを1件追記する。
// 同じステータスへの遷移も記録として追記する。
func (u *AdminShipmentUsecase) TransitionStatus(ctx context.Context, actor model.Actor, id string, in TransitionStatusInput) (ShipmentOutput, error) {
	if err := requireAdmin(actor); err != nil {
		return ShipmentOutput{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return ShipmentOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	newStatus, ok := model.ParseShipmentStatus(in.Status)
	if !ok {
		return ShipmentOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	location := trimOptional(in.Location)
	if location != nil && len(*location) > maxTextLen {
		return ShipmentOutput{}, NewHTTPError(http.StatusBadRequest, "location is too long")
	}
	description := trimOptional(in.Description)
	if description == nil {
		description = strPtr("Shipment status updated to " + string(newStatus))
	}

	now := u.clock.Now().UTC()
	var updated model.Shipment

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		s, err := r.Shipments().FindByID(ctx, id)
		if err != nil {
			return storeError(err, MsgShipmentNotFound)
		}

		// 一時停止中・配達済みは動かさない
		if s.IsPaused {
			return NewHTTPError(http.StatusConflict, MsgShipmentPaused)
		}
		if s.Status.IsTerminal() {
			return NewHTTPError(http.StatusConflict, MsgShipmentDelivered)
		}

		before := auditJSON(map[string]interface{}{
			"status":           s.Status,
			"current_location": s.CurrentLocation,
		})

		if err := r.Shipments().UpdateStatus(ctx, id, repo.ShipmentStatusUpdate{
			Status:    newStatus,
			Location:  location,
			UpdatedAt: now,
		}); err != nil {
			return storeError(err, MsgShipmentNotFound)
		}

		s.Status = newStatus
		if location != nil {
			s.CurrentLocation = location
		}
		s.UpdatedAt = now

		if err := r.TrackingEvents().Create(ctx, &model.TrackingEvent{
			ShipmentID:  id,
			EventType:   model.EventTypeForStatus(newStatus),
			Description: description,
			Location:    location,
			CreatedAt:   now,
		}); err != nil {
			return storeUnavailable(err)
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actor.UserID,
			Action:       model.AuditActionUpdateShipmentStatus,
			ResourceType: model.AuditResourceShipment,
			ResourceID:   id,
			BeforeJSON:   before,
			AfterJSON: auditJSON(map[string]interface{}{
				"status":           s.Status,
				"current_location": s.CurrentLocation,
			}),
			CreatedAt: now,
		}); err != nil {
			return storeUnavailable(err)
		}

		updated = s
		return nil
	})
	if err != nil {
		return ShipmentOutput{}, storeError(err, MsgShipmentNotFound)
	}

	publish(ctx, u.publisher, u.log, model.ShipmentEvent{
		Kind:           model.ShipmentEventStatusChanged,
		ShipmentID:     updated.ID,
		TrackingNumber: updated.TrackingNumber,
		Status:         updated.Status,
		PaymentStatus:  updated.PaymentStatus,
		IsPaused:       updated.IsPaused,
		Location:       location,
		Description:    description,
		ActorUserID:    actor.UserID,
		OccurredAt:     now,
	})
	return toShipmentOutput(updated), nil
}

// TogglePause は is_paused を反転し、Shipment Paused / Shipment Resumed を追記する。
func (u *AdminShipmentUsecase) TogglePause(ctx context.Context, actor model.Actor, id string) (ShipmentOutput, error) {
	if err := requireAdmin(actor); err != nil {
		return ShipmentOutput{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return ShipmentOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	now := u.clock.Now().UTC()
	var (
		updated     model.Shipment
		description string
	)

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		s, err := r.Shipments().FindByID(ctx, id)
		if err != nil {
			return storeError(err, MsgShipmentNotFound)
		}

		paused := !s.IsPaused
		eventType := model.EventTypeShipmentResumed
		description = resumedEventDescription
		if paused {
			eventType = model.EventTypeShipmentPaused
			description = pausedEventDescription
		}

		if err := r.Shipments().SetPaused(ctx, id, paused, now); err != nil {
			return storeError(err, MsgShipmentNotFound)
		}

		if err := r.TrackingEvents().Create(ctx, &model.TrackingEvent{
			ShipmentID:  id,
			EventType:   eventType,
			Description: strPtr(description),
			Location:    s.CurrentLocation,
			CreatedAt:   now,
		}); err != nil {
			return storeUnavailable(err)
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actor.UserID,
			Action:       model.AuditActionToggleShipmentPause,
			ResourceType: model.AuditResourceShipment,
			ResourceID:   id,
			BeforeJSON:   auditJSON(map[string]bool{"is_paused": s.IsPaused}),
			AfterJSON:    auditJSON(map[string]bool{"is_paused": paused}),
			CreatedAt:    now,
		}); err != nil {
			return storeUnavailable(err)
		}

		s.IsPaused = paused
		s.UpdatedAt = now
		updated = s
		return nil
	})
	if err != nil {
		return ShipmentOutput{}, storeError(err, MsgShipmentNotFound)
	}

	kind := model.ShipmentEventResumed
	if updated.IsPaused {
		kind = model.ShipmentEventPaused
	}
	publish(ctx, u.publisher, u.log, model.ShipmentEvent{
		Kind:           kind,
		ShipmentID:     updated.ID,
		TrackingNumber: updated.TrackingNumber,
		Status:         updated.Status,
		PaymentStatus:  updated.PaymentStatus,
		IsPaused:       updated.IsPaused,
		Location:       updated.CurrentLocation,
		Description:    strPtr(description),
		ActorUserID:    actor.UserID,
		OccurredAt:     now,
	})
	return toShipmentOutput(updated), nil
}

// SetPaymentStatus は支払いステータスだけを変える。
// 追跡タイムラインには出さず、監査ログにだけ残す。
func (u *AdminShipmentUsecase) SetPaymentStatus(ctx context.Context, actor model.Actor, id string, status string) (ShipmentOutput, error) {
	if err := requireAdmin(actor); err != nil {
		return ShipmentOutput{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return ShipmentOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ps, ok := model.ParsePaymentStatus(status)
	if !ok {
		return ShipmentOutput{}, NewHTTPError(http.StatusBadRequest, "invalid payment_status")
	}

	now := u.clock.Now().UTC()
	var updated model.Shipment

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		s, err := r.Shipments().FindByID(ctx, id)
		if err != nil {
			return storeError(err, MsgShipmentNotFound)
		}

		if err := r.Shipments().SetPaymentStatus(ctx, id, ps, now); err != nil {
			return storeError(err, MsgShipmentNotFound)
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actor.UserID,
			Action:       model.AuditActionUpdatePaymentStatus,
			ResourceType: model.AuditResourceShipment,
			ResourceID:   id,
			BeforeJSON:   auditJSON(map[string]model.PaymentStatus{"payment_status": s.PaymentStatus}),
			AfterJSON:    auditJSON(map[string]model.PaymentStatus{"payment_status": ps}),
			CreatedAt:    now,
		}); err != nil {
			return storeUnavailable(err)
		}

		s.PaymentStatus = ps
		s.UpdatedAt = now
		updated = s
		return nil
	})
	if err != nil {
		return ShipmentOutput{}, storeError(err, MsgShipmentNotFound)
	}

	publish(ctx, u.publisher, u.log, model.ShipmentEvent{
		Kind:           model.ShipmentEventPaymentUpdated,
		ShipmentID:     updated.ID,
		TrackingNumber: updated.TrackingNumber,
		Status:         updated.Status,
		PaymentStatus:  updated.PaymentStatus,
		IsPaused:       updated.IsPaused,
		ActorUserID:    actor.UserID,
		OccurredAt:     now,
	})
	return toShipmentOutput(updated), nil
}

func (u *AdminShipmentUsecase) Overview(ctx context.Context, actor model.Actor) (OverviewOutput, error) {
	if err := requireAdmin(actor); err != nil {
		return OverviewOutput{}, err
	}

	var stats repo.ShipmentStats
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		stats, err = r.Shipments().Stats(ctx)
		if err != nil {
			return storeUnavailable(err)
		}
		return nil
	})
	if err != nil {
		return OverviewOutput{}, storeError(err, MsgShipmentNotFound)
	}

	out := OverviewOutput{
		Total:           stats.Total,
		Paused:          stats.Paused,
		ByStatus:        map[string]int64{},
		ByCategory:      map[string]int64{},
		ByPaymentStatus: map[string]int64{},
	}
	for st, n := range stats.ByStatus {
		out.ByStatus[string(st)] = n
		out.ByCategory[string(model.ClassifyStatus(string(st)))] += n
	}
	for ps, n := range stats.ByPaymentStatus {
		out.ByPaymentStatus[string(ps)] = n
	}
	return out, nil
}

func (u *AdminShipmentUsecase) AuditLogs(ctx context.Context, actor model.Actor, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	if err := requireAdmin(actor); err != nil {
		return []model.AuditLog{}, err
	}
	if f.Limit < 0 || f.Limit > 200 {
		return []model.AuditLog{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if f.Offset < 0 {
		return []model.AuditLog{}, NewHTTPError(http.StatusBadRequest, "invalid offset")
	}

	var logs []model.AuditLog
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		logs, err = r.AuditLogs().List(ctx, f)
		if err != nil {
			return storeUnavailable(err)
		}
		return nil
	})
	if err != nil {
		return []model.AuditLog{}, storeError(err, MsgShipmentNotFound)
	}
	if logs == nil {
		logs = []model.AuditLog{}
	}
	return logs, nil
}

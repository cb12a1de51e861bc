package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"xprexx/internal/domain/model"
	repo "xprexx/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	initialEventDescription = "Your shipment has been received and is being processed"

	// 追跡番号が衝突したときの再採番回数
	maxTrackingNumberAttempts = 5

	maxTextLen = 255
)

type CreateShipmentInput struct {
	Origin      string
	Destination string

	Weight      *float64
	Dimensions  *string
	Quantity    *int
	Volume      *float64
	ServiceType string
	Term        *string

	SenderName    string
	SenderEmail   string
	ReceiverName  string
	ReceiverEmail string

	// 管理者だけが指定できる（顧客は自分になる）
	OwnerUserID *int64
}

type ShipmentUsecase struct {
	tx        repo.TransactionManager
	numbers   TrackingNumberGenerator
	clock     Clock
	publisher EventPublisher
	log       *zap.Logger

	deliveryLeadTime time.Duration
}

func NewShipmentUsecase(
	tx repo.TransactionManager,
	numbers TrackingNumberGenerator,
	clock Clock,
	publisher EventPublisher,
	log *zap.Logger,
	deliveryLeadTime time.Duration,
) *ShipmentUsecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &ShipmentUsecase{
		tx:               tx,
		numbers:          numbers,
		clock:            clock,
		publisher:        publisher,
		log:              log,
		deliveryLeadTime: deliveryLeadTime,
	}
}

// Create は配送を作り、最初の追跡イベントを同じTxで追記する。
func (u *ShipmentUsecase) Create(ctx context.Context, actor model.Actor, in CreateShipmentInput) (ShipmentOutput, error) {
	if actor.UserID <= 0 && !actor.IsSystem() {
		return ShipmentOutput{}, NewHTTPError(http.StatusUnauthorized, MsgUnauthorized)
	}

	s, err := buildShipment(in)
	if err != nil {
		return ShipmentOutput{}, err
	}

	// 所有者
	if actor.IsAdmin() {
		s.UserID = in.OwnerUserID
	} else {
		if in.OwnerUserID != nil && *in.OwnerUserID != actor.UserID {
			return ShipmentOutput{}, NewHTTPError(http.StatusForbidden, "cannot create shipment for another user")
		}
		owner := actor.UserID
		s.UserID = &owner
	}

	now := u.clock.Now().UTC()
	eta := now.Add(u.deliveryLeadTime)
	s.Status = model.ShipmentStatusOrderReceived
	s.PaymentStatus = model.PaymentStatusPending
	s.IsPaused = false
	s.CurrentLocation = strPtr(s.Origin)
	s.EstimatedDelivery = &eta
	s.CreatedAt = now
	s.UpdatedAt = now

	for attempt := 1; attempt <= maxTrackingNumberAttempts; attempt++ {
		tn, err := u.numbers.Generate(now)
		if err != nil {
			return ShipmentOutput{}, NewHTTPError(http.StatusInternalServerError, "tracking number generation failed")
		}

		row := s
		row.ID = uuid.NewString()
		row.TrackingNumber = NormalizeTrackingNumber(tn)

		err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			if err := r.Shipments().Create(ctx, &row); err != nil {
				return err
			}

			if err := r.TrackingEvents().Create(ctx, &model.TrackingEvent{
				ShipmentID:  row.ID,
				EventType:   model.EventTypeForStatus(model.ShipmentStatusOrderReceived),
				Description: strPtr(initialEventDescription),
				Location:    strPtr(row.Origin),
				CreatedAt:   now,
			}); err != nil {
				return storeUnavailable(err)
			}

			// 管理者の操作だけ監査ログ
			if actor.IsAdmin() {
				if err := r.AuditLogs().Create(ctx, model.AuditLog{
					ActorUserID:  actor.UserID,
					Action:       model.AuditActionCreateShipment,
					ResourceType: model.AuditResourceShipment,
					ResourceID:   row.ID,
					BeforeJSON:   "{}",
					AfterJSON: auditJSON(map[string]interface{}{
						"tracking_number": row.TrackingNumber,
						"status":          row.Status,
						"payment_status":  row.PaymentStatus,
						"user_id":         row.UserID,
					}),
					CreatedAt: now,
				}); err != nil {
					return storeUnavailable(err)
				}
			}
			return nil
		})

		if errors.Is(err, repo.ErrDuplicateKey) {
			u.log.Warn("tracking number collision, retrying",
				zap.String("tracking_number", row.TrackingNumber),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return ShipmentOutput{}, storeError(err, MsgShipmentNotFound)
		}

		publish(ctx, u.publisher, u.log, model.ShipmentEvent{
			Kind:           model.ShipmentEventCreated,
			ShipmentID:     row.ID,
			TrackingNumber: row.TrackingNumber,
			Status:         row.Status,
			PaymentStatus:  row.PaymentStatus,
			IsPaused:       row.IsPaused,
			Location:       row.CurrentLocation,
			Description:    strPtr(initialEventDescription),
			ActorUserID:    actor.UserID,
			OccurredAt:     now,
		})
		return toShipmentOutput(row), nil
	}

	return ShipmentOutput{}, storeUnavailable(fmt.Errorf("tracking number collision after %d attempts", maxTrackingNumberAttempts))
}

// 自分の配送一覧
func (u *ShipmentUsecase) ListMine(ctx context.Context, actor model.Actor, f repo.ShipmentListFilter) (ShipmentListOutput, error) {
	if actor.UserID <= 0 {
		return ShipmentListOutput{}, NewHTTPError(http.StatusUnauthorized, MsgUnauthorized)
	}
	f, err := normalizeListFilter(f)
	if err != nil {
		return ShipmentListOutput{}, err
	}
	owner := actor.UserID
	f.UserID = &owner

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

// 自分の配送詳細。他人の配送は存在しない扱い（404）
func (u *ShipmentUsecase) GetMine(ctx context.Context, actor model.Actor, id string) (TrackingOutput, error) {
	if actor.UserID <= 0 {
		return TrackingOutput{}, NewHTTPError(http.StatusUnauthorized, MsgUnauthorized)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return TrackingOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out TrackingOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		detail, s, err := loadShipmentDetail(ctx, r, id)
		if err != nil {
			return err
		}
		if s.UserID == nil || *s.UserID != actor.UserID {
			return NewHTTPError(http.StatusNotFound, MsgShipmentNotFound)
		}
		out = detail
		return nil
	})
	if err != nil {
		return TrackingOutput{}, storeError(err, MsgShipmentNotFound)
	}
	return out, nil
}

// 入力検証してShipmentの形にする（状態系の列はまだ入れない）
func buildShipment(in CreateShipmentInput) (model.Shipment, error) {
	origin := strings.TrimSpace(in.Origin)
	destination := strings.TrimSpace(in.Destination)
	if err := requireText("origin", origin); err != nil {
		return model.Shipment{}, err
	}
	if err := requireText("destination", destination); err != nil {
		return model.Shipment{}, err
	}

	senderName := strings.TrimSpace(in.SenderName)
	receiverName := strings.TrimSpace(in.ReceiverName)
	if err := requireText("sender_name", senderName); err != nil {
		return model.Shipment{}, err
	}
	if err := requireText("receiver_name", receiverName); err != nil {
		return model.Shipment{}, err
	}

	senderEmail, err := normalizeEmail("sender_email", in.SenderEmail)
	if err != nil {
		return model.Shipment{}, err
	}
	receiverEmail, err := normalizeEmail("receiver_email", in.ReceiverEmail)
	if err != nil {
		return model.Shipment{}, err
	}

	serviceType, ok := model.ParseServiceType(in.ServiceType)
	if !ok {
		return model.Shipment{}, NewHTTPError(http.StatusBadRequest, "invalid service_type")
	}

	// 任意項目。指定されたときだけ値を見る
	if in.Weight != nil && *in.Weight <= 0 {
		return model.Shipment{}, NewHTTPError(http.StatusBadRequest, "weight must be positive")
	}
	if in.Volume != nil && *in.Volume <= 0 {
		return model.Shipment{}, NewHTTPError(http.StatusBadRequest, "volume must be positive")
	}
	if in.Quantity != nil && *in.Quantity <= 0 {
		return model.Shipment{}, NewHTTPError(http.StatusBadRequest, "quantity must be positive")
	}

	return model.Shipment{
		Origin:        origin,
		Destination:   destination,
		Weight:        in.Weight,
		Dimensions:    trimOptional(in.Dimensions),
		Quantity:      in.Quantity,
		Volume:        in.Volume,
		ServiceType:   serviceType,
		Term:          trimOptional(in.Term),
		SenderName:    senderName,
		SenderEmail:   senderEmail,
		ReceiverName:  receiverName,
		ReceiverEmail: receiverEmail,
	}, nil
}

func requireText(field string, v string) error {
	if v == "" {
		return NewHTTPError(http.StatusBadRequest, field+" is required")
	}
	if len(v) > maxTextLen {
		return NewHTTPError(http.StatusBadRequest, field+" is too long")
	}
	return nil
}

// 表示名付き（"Foo <a@b>"）は受け付けない
func normalizeEmail(field string, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", NewHTTPError(http.StatusBadRequest, field+" is required")
	}
	addr, err := mail.ParseAddress(v)
	if err != nil || addr.Address != v || len(v) > maxTextLen {
		return "", NewHTTPError(http.StatusBadRequest, "invalid "+field)
	}
	return strings.ToLower(v), nil
}

func normalizeListFilter(f repo.ShipmentListFilter) (repo.ShipmentListFilter, error) {
	if f.Page == 0 {
		f.Page = 1
	}
	if f.Limit == 0 {
		f.Limit = 20
	}
	if f.Page < 1 {
		return f, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return f, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}

	f.Q = strings.TrimSpace(f.Q)
	if f.Status != "" {
		st, ok := model.ParseShipmentStatus(f.Status)
		if !ok {
			return f, NewHTTPError(http.StatusBadRequest, "invalid status")
		}
		f.Status = string(st)
	}
	if f.PaymentStatus != "" {
		ps, ok := model.ParsePaymentStatus(f.PaymentStatus)
		if !ok {
			return f, NewHTTPError(http.StatusBadRequest, "invalid payment_status")
		}
		f.PaymentStatus = string(ps)
	}
	return f, nil
}

func publish(ctx context.Context, p EventPublisher, log *zap.Logger, ev model.ShipmentEvent) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, ev); err != nil {
		log.Warn("publish shipment event failed",
			zap.String("kind", string(ev.Kind)),
			zap.String("tracking_number", ev.TrackingNumber),
			zap.Error(err),
		)
	}
}

func auditJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func strPtr(s string) *string {
	return &s
}

func trimOptional(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}

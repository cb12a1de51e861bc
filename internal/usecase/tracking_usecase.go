package usecase

import (
	"context"
	"errors"
	"net/http"

	"xprexx/internal/domain/model"
	repo "xprexx/internal/repository"
)

// 公開追跡（読み取りのみ）
type TrackingUsecase struct {
	tx repo.TransactionManager
}

func NewTrackingUsecase(tx repo.TransactionManager) *TrackingUsecase {
	return &TrackingUsecase{tx: tx}
}

// Lookup は追跡番号の完全一致で配送とタイムラインを返す。
// 見つからないときは (空, false, nil)。
func (u *TrackingUsecase) Lookup(ctx context.Context, trackingNumber string) (TrackingOutput, bool, error) {
	tn := NormalizeTrackingNumber(trackingNumber)
	if tn == "" {
		return TrackingOutput{}, false, NewHTTPError(http.StatusBadRequest, "tracking number is required")
	}

	var (
		out   TrackingOutput
		found bool
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		s, err := r.Shipments().FindByTrackingNumber(ctx, tn)
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		if err != nil {
			return storeUnavailable(err)
		}

		events, err := r.TrackingEvents().ListByShipmentID(ctx, s.ID)
		if err != nil {
			return storeUnavailable(err)
		}

		out = TrackingOutput{Shipment: toShipmentOutput(s), Timeline: toTimeline(events)}
		found = true
		return nil
	})
	if err != nil {
		return TrackingOutput{}, false, storeError(err, MsgTrackingNotFound)
	}
	return out, found, nil
}

// 配送+タイムライン（IDで引く。管理画面・顧客詳細用）
func loadShipmentDetail(ctx context.Context, r repo.TxRepos, id string) (TrackingOutput, model.Shipment, error) {
	s, err := r.Shipments().FindByID(ctx, id)
	if err != nil {
		return TrackingOutput{}, model.Shipment{}, storeError(err, MsgShipmentNotFound)
	}
	events, err := r.TrackingEvents().ListByShipmentID(ctx, s.ID)
	if err != nil {
		return TrackingOutput{}, model.Shipment{}, storeUnavailable(err)
	}
	return TrackingOutput{Shipment: toShipmentOutput(s), Timeline: toTimeline(events)}, s, nil
}

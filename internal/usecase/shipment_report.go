package usecase

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"xprexx/internal/domain/model"
	repo "xprexx/internal/repository"

	"go.uber.org/zap"
)

// CSVの置き場所（S3互換）
type ReportStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type ReportConfig struct {
	URLTTL time.Duration
}

type ExportOutput struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Rows      int       `json:"rows"`
	ExpiresAt time.Time `json:"expires_at"`
}

const exportPageSize = 100

var reportHeader = []string{
	"tracking_number",
	"status",
	"status_category",
	"payment_status",
	"is_paused",
	"origin",
	"destination",
	"current_location",
	"service_type",
	"weight",
	"sender_name",
	"receiver_name",
	"estimated_delivery",
	"created_at",
	"updated_at",
}

// ExportCSV は絞り込み条件に合う配送を全件CSVで書き出す。書いた行数（ヘッダ除く）を返す。
func (u *AdminShipmentUsecase) ExportCSV(ctx context.Context, actor model.Actor, f repo.ShipmentListFilter, w io.Writer) (int, error) {
	if err := requireAdmin(actor); err != nil {
		return 0, err
	}
	f.Page = 1
	f.Limit = exportPageSize
	f, err := normalizeListFilter(f)
	if err != nil {
		return 0, err
	}

	var all []model.Shipment
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		for {
			items, total, err := r.Shipments().List(ctx, f)
			if err != nil {
				return storeUnavailable(err)
			}
			all = append(all, items...)
			if len(items) == 0 || int64(len(all)) >= total {
				return nil
			}
			f.Page++
		}
	})
	if err != nil {
		return 0, storeError(err, MsgShipmentNotFound)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(reportHeader); err != nil {
		return 0, err
	}
	for _, s := range all {
		if err := cw.Write(reportRow(s)); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, err
	}
	return len(all), nil
}

// UploadExport はCSVをオブジェクトストレージに置いて、期限付きURLを返す。
func (u *AdminShipmentUsecase) UploadExport(ctx context.Context, actor model.Actor, f repo.ShipmentListFilter) (ExportOutput, error) {
	if err := requireAdmin(actor); err != nil {
		return ExportOutput{}, err
	}
	if u.reports == nil {
		return ExportOutput{}, NewHTTPError(http.StatusServiceUnavailable, MsgReportStoreDisabled)
	}

	var buf bytes.Buffer
	rows, err := u.ExportCSV(ctx, actor, f, &buf)
	if err != nil {
		return ExportOutput{}, err
	}

	now := u.clock.Now().UTC()
	key := fmt.Sprintf("exports/shipments-%s.csv", now.Format("20060102T150405Z"))

	if err := u.reports.Put(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), "text/csv"); err != nil {
		u.log.Error("upload shipment report failed", zap.String("key", key), zap.Error(err))
		return ExportOutput{}, storeUnavailable(err)
	}

	ttl := u.reportCfg.URLTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	url, err := u.reports.PresignGet(ctx, key, ttl)
	if err != nil {
		u.log.Error("presign shipment report failed", zap.String("key", key), zap.Error(err))
		return ExportOutput{}, storeUnavailable(err)
	}

	return ExportOutput{Key: key, URL: url, Rows: rows, ExpiresAt: now.Add(ttl)}, nil
}

func reportRow(s model.Shipment) []string {
	return []string{
		s.TrackingNumber,
		string(s.Status),
		string(model.ClassifyStatus(string(s.Status))),
		string(s.PaymentStatus),
		strconv.FormatBool(s.IsPaused),
		s.Origin,
		s.Destination,
		derefString(s.CurrentLocation),
		string(s.ServiceType),
		formatFloat(s.Weight),
		s.SenderName,
		s.ReceiverName,
		formatTime(s.EstimatedDelivery),
		s.CreatedAt.UTC().Format(time.RFC3339),
		s.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func formatFloat(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}

func formatTime(p *time.Time) string {
	if p == nil {
		return ""
	}
	return p.UTC().Format(time.RFC3339)
}

package usecase_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"xprexx/internal/domain/model"
	repo "xprexx/internal/repository"
	"xprexx/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type ReportStoreMock struct{ mock.Mock }

func (m *ReportStoreMock) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	b, _ := io.ReadAll(body)
	args := m.Called(ctx, key, string(b), size, contentType)
	return args.Error(0)
}

func (m *ReportStoreMock) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, key, ttl)
	return args.String(0), args.Error(1)
}

func newAdminUsecase(tx *TxManagerMock, pub usecase.EventPublisher, reports usecase.ReportStore) *usecase.AdminShipmentUsecase {
	return usecase.NewAdminShipmentUsecase(tx, fixedClock{t: testNow}, pub, reports, zap.NewNop(), usecase.ReportConfig{URLTTL: 10 * time.Minute})
}

func inTransit() model.Shipment {
	loc := "New York, NY"
	return model.Shipment{
		ID:              "s1",
		TrackingNumber:  "XPR1",
		Origin:          "New York, NY",
		Destination:     "Los Angeles, CA",
		CurrentLocation: &loc,
		Status:          model.ShipmentStatusInTransit,
		PaymentStatus:   model.PaymentStatusPending,
	}
}

// =====================
// 権限
// =====================

func TestAdminShipmentUsecase_RequiresAdmin(t *testing.T) {
	ctx := context.Background()
	tx, _, _, _ := newTxWithRepos()
	uc := newAdminUsecase(tx, nil, nil)

	_, err := uc.TransitionStatus(ctx, plainUser, "s1", usecase.TransitionStatusInput{Status: "Delivered"})
	assertStatus(t, err, http.StatusForbidden)

	_, err = uc.TogglePause(ctx, model.Actor{}, "s1")
	assertStatus(t, err, http.StatusUnauthorized)

	_, err = uc.SetPaymentStatus(ctx, plainUser, "s1", "paid")
	assertStatus(t, err, http.StatusForbidden)

	_, err = uc.Overview(ctx, plainUser)
	assertStatus(t, err, http.StatusForbidden)

	tx.AssertNotCalled(t, "WithinTx", mock.Anything)
}

// =====================
// TransitionStatus
// =====================

func TestAdminShipmentUsecase_TransitionStatus_Success(t *testing.T) {
	ctx := context.Background()
	tx, shipments, events, audits := newTxWithRepos()
	pub := new(PublisherMock)

	loc := "Chicago Distribution Center"

	tx.On("WithinTx", mock.Anything).Return(nil)
	shipments.On("FindByID", mock.Anything, "s1").Return(inTransit(), nil)
	shipments.On("UpdateStatus", mock.Anything, "s1", repo.ShipmentStatusUpdate{
		Status:    model.ShipmentStatusOutForDelivery,
		Location:  &loc,
		UpdatedAt: testNow,
	}).Return(nil)
	events.On("Create", mock.Anything, mock.MatchedBy(func(e *model.TrackingEvent) bool {
		return e.ShipmentID == "s1" &&
			e.EventType == model.EventType(model.ShipmentStatusOutForDelivery) &&
			*e.Location == loc &&
			*e.Description == "Shipment status updated to Out for Delivery"
	})).Return(nil)
	audits.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
		return l.Action == model.AuditActionUpdateShipmentStatus &&
			strings.Contains(l.BeforeJSON, "In Transit") &&
			strings.Contains(l.AfterJSON, "Out for Delivery")
	})).Return(nil)
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(ev model.ShipmentEvent) bool {
		return ev.Kind == model.ShipmentEventStatusChanged && ev.Status == model.ShipmentStatusOutForDelivery
	})).Return(nil)

	uc := newAdminUsecase(tx, pub, nil)

	out, err := uc.TransitionStatus(ctx, adminUser, "s1", usecase.TransitionStatusInput{
		Status:   "out for delivery",
		Location: &loc,
	})
	require.NoError(t, err)
	assert.Equal(t, "Out for Delivery", out.Status)
	assert.Equal(t, "active", out.StatusCategory)
	assert.Equal(t, loc, *out.CurrentLocation)
	assert.True(t, out.UpdatedAt.Equal(testNow))

	shipments.AssertExpectations(t)
	events.AssertExpectations(t)
	audits.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestAdminShipmentUsecase_TransitionStatus_KeepsLocationWhenOmitted(t *testing.T) {
	tx, shipments, events, audits := newTxWithRepos()

	tx.On("WithinTx", mock.Anything).Return(nil)
	shipments.On("FindByID", mock.Anything, "s1").Return(inTransit(), nil)
	shipments.On("UpdateStatus", mock.Anything, "s1", mock.MatchedBy(func(u repo.ShipmentStatusUpdate) bool {
		return u.Location == nil && u.Status == model.ShipmentStatusDelayed
	})).Return(nil)
	events.On("Create", mock.Anything, mock.MatchedBy(func(e *model.TrackingEvent) bool {
		return e.Location == nil && *e.Description == "weather"
	})).Return(nil)
	audits.On("Create", mock.Anything, mock.Anything).Return(nil)

	uc := newAdminUsecase(tx, nil, nil)

	desc := "  weather "
	out, err := uc.TransitionStatus(context.Background(), adminUser, "s1", usecase.TransitionStatusInput{Status: "Delayed", Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "New York, NY", *out.CurrentLocation)
	assert.Equal(t, "error", out.StatusCategory)
}

func TestAdminShipmentUsecase_TransitionStatus_Guards(t *testing.T) {
	paused := inTransit()
	paused.IsPaused = true

	delivered := inTransit()
	delivered.Status = model.ShipmentStatusDelivered

	cases := []struct {
		name     string
		current  model.Shipment
		findErr  error
		wantCode int
		wantMsg  string
	}{
		{"paused", paused, nil, http.StatusConflict, usecase.MsgShipmentPaused},
		{"delivered", delivered, nil, http.StatusConflict, usecase.MsgShipmentDelivered},
		{"not found", model.Shipment{}, repo.ErrNotFound, http.StatusNotFound, usecase.MsgShipmentNotFound},
		{"store down", model.Shipment{}, errors.New("timeout"), http.StatusServiceUnavailable, usecase.MsgStoreUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx, shipments, events, audits := newTxWithRepos()
			pub := new(PublisherMock)

			tx.On("WithinTx", mock.Anything).Return(nil)
			shipments.On("FindByID", mock.Anything, "s1").Return(tc.current, tc.findErr)

			uc := newAdminUsecase(tx, pub, nil)

			_, err := uc.TransitionStatus(context.Background(), adminUser, "s1", usecase.TransitionStatusInput{Status: "Delivered"})
			assertStatus(t, err, tc.wantCode)
			assertErrContains(t, err, tc.wantMsg)

			shipments.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
			events.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			audits.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
		})
	}
}

func TestAdminShipmentUsecase_TransitionStatus_InvalidStatus(t *testing.T) {
	tx, _, _, _ := newTxWithRepos()
	uc := newAdminUsecase(tx, nil, nil)

	_, err := uc.TransitionStatus(context.Background(), adminUser, "s1", usecase.TransitionStatusInput{Status: "Teleported"})
	assertStatus(t, err, http.StatusBadRequest)
	assertErrContains(t, err, "invalid status")

	_, err = uc.TransitionStatus(context.Background(), adminUser, " ", usecase.TransitionStatusInput{Status: "Delivered"})
	assertErrContains(t, err, "invalid id")

	tx.AssertNotCalled(t, "WithinTx", mock.Anything)
}

func TestAdminShipmentUsecase_TransitionStatus_EventWriteFails(t *testing.T) {
	tx, shipments, events, _ := newTxWithRepos()
	pub := new(PublisherMock)

	tx.On("WithinTx", mock.Anything).Return(nil)
	shipments.On("FindByID", mock.Anything, "s1").Return(inTransit(), nil)
	shipments.On("UpdateStatus", mock.Anything, "s1", mock.Anything).Return(nil)
	events.On("Create", mock.Anything, mock.Anything).Return(errors.New("write failed"))

	uc := newAdminUsecase(tx, pub, nil)

	_, err := uc.TransitionStatus(context.Background(), adminUser, "s1", usecase.TransitionStatusInput{Status: "Delivered"})
	assert.True(t, usecase.IsTransient(err))
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestAdminShipmentUsecase_TransitionStatus_TxBeginFails(t *testing.T) {
	tx, _, _, _ := newTxWithRepos()
	tx.On("WithinTx", mock.Anything).Return(errors.New("pool exhausted"))

	uc := newAdminUsecase(tx, nil, nil)

	_, err := uc.TransitionStatus(context.Background(), adminUser, "s1", usecase.TransitionStatusInput{Status: "Delivered"})
	assertStatus(t, err, http.StatusServiceUnavailable)
}

// =====================
// TogglePause
// =====================

func TestAdminShipmentUsecase_TogglePause(t *testing.T) {
	cases := []struct {
		name      string
		paused    bool
		wantType  model.EventType
		wantDesc  string
		wantKind  model.ShipmentEventKind
		wantAfter bool
	}{
		{"pause", false, model.EventTypeShipmentPaused, "Shipment has been paused", model.ShipmentEventPaused, true},
		{"resume", true, model.EventTypeShipmentResumed, "Shipment has been resumed", model.ShipmentEventResumed, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx, shipments, events, audits := newTxWithRepos()
			pub := new(PublisherMock)

			current := inTransit()
			current.IsPaused = tc.paused

			tx.On("WithinTx", mock.Anything).Return(nil)
			shipments.On("FindByID", mock.Anything, "s1").Return(current, nil)
			shipments.On("SetPaused", mock.Anything, "s1", tc.wantAfter, testNow).Return(nil)
			events.On("Create", mock.Anything, mock.MatchedBy(func(e *model.TrackingEvent) bool {
				return e.EventType == tc.wantType && *e.Description == tc.wantDesc && *e.Location == "New York, NY"
			})).Return(nil)
			audits.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
				return l.Action == model.AuditActionToggleShipmentPause
			})).Return(nil)
			pub.On("Publish", mock.Anything, mock.MatchedBy(func(ev model.ShipmentEvent) bool {
				return ev.Kind == tc.wantKind
			})).Return(nil)

			uc := newAdminUsecase(tx, pub, nil)

			out, err := uc.TogglePause(context.Background(), adminUser, "s1")
			require.NoError(t, err)
			assert.Equal(t, tc.wantAfter, out.IsPaused)
			assert.Equal(t, "In Transit", out.Status)

			shipments.AssertExpectations(t)
			events.AssertExpectations(t)
			pub.AssertExpectations(t)
		})
	}
}

func TestAdminShipmentUsecase_TogglePause_AllowedWhenDelivered(t *testing.T) {
	tx, shipments, events, audits := newTxWithRepos()

	current := inTransit()
	current.Status = model.ShipmentStatusDelivered

	tx.On("WithinTx", mock.Anything).Return(nil)
	shipments.On("FindByID", mock.Anything, "s1").Return(current, nil)
	shipments.On("SetPaused", mock.Anything, "s1", true, testNow).Return(nil)
	events.On("Create", mock.Anything, mock.Anything).Return(nil)
	audits.On("Create", mock.Anything, mock.Anything).Return(nil)

	uc := newAdminUsecase(tx, nil, nil)

	out, err := uc.TogglePause(context.Background(), adminUser, "s1")
	require.NoError(t, err)
	assert.True(t, out.IsPaused)
}

// =====================
// SetPaymentStatus
// =====================

func TestAdminShipmentUsecase_SetPaymentStatus_NoTrackingEvent(t *testing.T) {
	tx, shipments, events, audits := newTxWithRepos()
	pub := new(PublisherMock)

	tx.On("WithinTx", mock.Anything).Return(nil)
	shipments.On("FindByID", mock.Anything, "s1").Return(inTransit(), nil)
	shipments.On("SetPaymentStatus", mock.Anything, "s1", model.PaymentStatusPaid, testNow).Return(nil)
	audits.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
		return l.Action == model.AuditActionUpdatePaymentStatus &&
			l.BeforeJSON == `{"payment_status":"pending"}` &&
			l.AfterJSON == `{"payment_status":"paid"}`
	})).Return(nil)
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(ev model.ShipmentEvent) bool {
		return ev.Kind == model.ShipmentEventPaymentUpdated
	})).Return(nil)

	uc := newAdminUsecase(tx, pub, nil)

	out, err := uc.SetPaymentStatus(context.Background(), adminUser, "s1", "PAID")
	require.NoError(t, err)
	assert.Equal(t, "paid", out.PaymentStatus)
	assert.Equal(t, "In Transit", out.Status)

	events.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	audits.AssertExpectations(t)
}

func TestAdminShipmentUsecase_SetPaymentStatus_Invalid(t *testing.T) {
	tx, _, _, _ := newTxWithRepos()
	uc := newAdminUsecase(tx, nil, nil)

	_, err := uc.SetPaymentStatus(context.Background(), adminUser, "s1", "maybe")
	assertStatus(t, err, http.StatusBadRequest)
	assertErrContains(t, err, "invalid payment_status")
}

// =====================
// Overview / AuditLogs
// =====================

func TestAdminShipmentUsecase_Overview(t *testing.T) {
	tx, shipments, _, _ := newTxWithRepos()

	tx.On("WithinTx", mock.Anything).Return(nil)
	shipments.On("Stats", mock.Anything).Return(repo.ShipmentStats{
		Total:  6,
		Paused: 1,
		ByStatus: map[model.ShipmentStatus]int64{
			model.ShipmentStatusInTransit:              2,
			model.ShipmentStatusInTransitInternational: 1,
			model.ShipmentStatusDelivered:              2,
			model.ShipmentStatusCustomsClearance:       1,
		},
		ByPaymentStatus: map[model.PaymentStatus]int64{
			model.PaymentStatusPaid:    4,
			model.PaymentStatusPending: 2,
		},
	}, nil)

	uc := newAdminUsecase(tx, nil, nil)

	out, err := uc.Overview(context.Background(), adminUser)
	require.NoError(t, err)
	assert.Equal(t, int64(6), out.Total)
	assert.Equal(t, int64(1), out.Paused)
	assert.Equal(t, int64(3), out.ByCategory["active"])
	assert.Equal(t, int64(2), out.ByCategory["success"])
	assert.Equal(t, int64(1), out.ByCategory["neutral"])
	assert.Equal(t, int64(4), out.ByPaymentStatus["paid"])
}

func TestAdminShipmentUsecase_AuditLogs(t *testing.T) {
	tx, _, _, audits := newTxWithRepos()

	tx.On("WithinTx", mock.Anything).Return(nil)
	audits.On("List", mock.Anything, repo.AuditLogFilter{Limit: 10}).Return(nil, nil)

	uc := newAdminUsecase(tx, nil, nil)

	logs, err := uc.AuditLogs(context.Background(), adminUser, repo.AuditLogFilter{Limit: 10})
	require.NoError(t, err)
	assert.NotNil(t, logs)
	assert.Len(t, logs, 0)

	_, err = uc.AuditLogs(context.Background(), adminUser, repo.AuditLogFilter{Limit: 500})
	assertErrContains(t, err, "invalid limit")

	_, err = uc.AuditLogs(context.Background(), adminUser, repo.AuditLogFilter{Offset: -1})
	assertErrContains(t, err, "invalid offset")
}

// =====================
// Export
// =====================

func TestAdminShipmentUsecase_ExportCSV_PagesThroughAll(t *testing.T) {
	tx, shipments, _, _ := newTxWithRepos()

	page1 := make([]model.Shipment, 100)
	for i := range page1 {
		page1[i] = inTransit()
	}
	page2 := []model.Shipment{inTransit()}

	tx.On("WithinTx", mock.Anything).Return(nil)
	shipments.On("List", mock.Anything, mock.MatchedBy(func(f repo.ShipmentListFilter) bool { return f.Page == 1 })).Return(page1, int64(101), nil)
	shipments.On("List", mock.Anything, mock.MatchedBy(func(f repo.ShipmentListFilter) bool { return f.Page == 2 })).Return(page2, int64(101), nil)

	uc := newAdminUsecase(tx, nil, nil)

	var buf bytes.Buffer
	n, err := uc.ExportCSV(context.Background(), adminUser, repo.ShipmentListFilter{}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 101, n)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 102)
	assert.Equal(t, "tracking_number", records[0][0])
	assert.Equal(t, []string{"XPR1", "In Transit", "active", "pending", "false"}, records[1][:5])
}

func TestAdminShipmentUsecase_UploadExport(t *testing.T) {
	tx, shipments, _, _ := newTxWithRepos()
	reports := new(ReportStoreMock)

	tx.On("WithinTx", mock.Anything).Return(nil)
	shipments.On("List", mock.Anything, mock.Anything).Return([]model.Shipment{inTransit()}, int64(1), nil)

	wantKey := "exports/shipments-20250301T090000Z.csv"
	reports.On("Put", mock.Anything, wantKey, mock.MatchedBy(func(body string) bool {
		return strings.HasPrefix(body, "tracking_number,status,status_category") && strings.Contains(body, "XPR1")
	}), mock.Anything, "text/csv").Return(nil)
	reports.On("PresignGet", mock.Anything, wantKey, 10*time.Minute).Return("https://s3.example/report", nil)

	uc := newAdminUsecase(tx, nil, reports)

	out, err := uc.UploadExport(context.Background(), adminUser, repo.ShipmentListFilter{})
	require.NoError(t, err)
	assert.Equal(t, wantKey, out.Key)
	assert.Equal(t, "https://s3.example/report", out.URL)
	assert.Equal(t, 1, out.Rows)
	assert.True(t, out.ExpiresAt.Equal(testNow.Add(10*time.Minute)))

	reports.AssertExpectations(t)
}

func TestAdminShipmentUsecase_UploadExport_NotConfigured(t *testing.T) {
	tx, _, _, _ := newTxWithRepos()
	uc := newAdminUsecase(tx, nil, nil)

	_, err := uc.UploadExport(context.Background(), adminUser, repo.ShipmentListFilter{})
	assertStatus(t, err, http.StatusServiceUnavailable)
	assertErrContains(t, err, usecase.MsgReportStoreDisabled)
}

func TestAdminShipmentUsecase_UploadExport_PutFails(t *testing.T) {
	tx, shipments, _, _ := newTxWithRepos()
	reports := new(ReportStoreMock)

	tx.On("WithinTx", mock.Anything).Return(nil)
	shipments.On("List", mock.Anything, mock.Anything).Return([]model.Shipment{}, int64(0), nil)
	reports.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("access denied"))

	uc := newAdminUsecase(tx, nil, reports)

	_, err := uc.UploadExport(context.Background(), adminUser, repo.ShipmentListFilter{})
	assert.True(t, usecase.IsTransient(err))
	reports.AssertNotCalled(t, "PresignGet", mock.Anything, mock.Anything, mock.Anything)
}

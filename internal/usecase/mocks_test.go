package usecase_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"xprexx/internal/domain/model"
	repo "xprexx/internal/repository"
	"xprexx/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// =====================
// TxManager / TxRepos mocks
// =====================

// TxManagerMock は WithinTx の中で渡す repos を固定する
type TxManagerMock struct {
	mock.Mock
	Repos repo.TxRepos
}

func (m *TxManagerMock) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	args := m.Called(ctx)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(m.Repos)
}

type TxReposMock struct {
	shipments repo.ShipmentRepository
	events    repo.TrackingEventRepository
	audits    repo.AuditLogRepository
}

func (r *TxReposMock) Shipments() repo.ShipmentRepository           { return r.shipments }
func (r *TxReposMock) TrackingEvents() repo.TrackingEventRepository { return r.events }
func (r *TxReposMock) AuditLogs() repo.AuditLogRepository           { return r.audits }

// =====================
// Repository mocks
// =====================

type ShipmentRepoMock struct{ mock.Mock }

func (m *ShipmentRepoMock) Create(ctx context.Context, s *model.Shipment) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *ShipmentRepoMock) FindByID(ctx context.Context, id string) (model.Shipment, error) {
	args := m.Called(ctx, id)
	s, _ := args.Get(0).(model.Shipment)
	return s, args.Error(1)
}

func (m *ShipmentRepoMock) FindByTrackingNumber(ctx context.Context, tn string) (model.Shipment, error) {
	args := m.Called(ctx, tn)
	s, _ := args.Get(0).(model.Shipment)
	return s, args.Error(1)
}

func (m *ShipmentRepoMock) UpdateStatus(ctx context.Context, id string, u repo.ShipmentStatusUpdate) error {
	args := m.Called(ctx, id, u)
	return args.Error(0)
}

func (m *ShipmentRepoMock) SetPaused(ctx context.Context, id string, paused bool, at time.Time) error {
	args := m.Called(ctx, id, paused, at)
	return args.Error(0)
}

func (m *ShipmentRepoMock) SetPaymentStatus(ctx context.Context, id string, status model.PaymentStatus, at time.Time) error {
	args := m.Called(ctx, id, status, at)
	return args.Error(0)
}

func (m *ShipmentRepoMock) List(ctx context.Context, f repo.ShipmentListFilter) ([]model.Shipment, int64, error) {
	args := m.Called(ctx, f)
	items, _ := args.Get(0).([]model.Shipment)
	return items, args.Get(1).(int64), args.Error(2)
}

func (m *ShipmentRepoMock) Stats(ctx context.Context) (repo.ShipmentStats, error) {
	args := m.Called(ctx)
	st, _ := args.Get(0).(repo.ShipmentStats)
	return st, args.Error(1)
}

type TrackingEventRepoMock struct{ mock.Mock }

func (m *TrackingEventRepoMock) Create(ctx context.Context, e *model.TrackingEvent) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *TrackingEventRepoMock) ListByShipmentID(ctx context.Context, shipmentID string) ([]model.TrackingEvent, error) {
	args := m.Called(ctx, shipmentID)
	events, _ := args.Get(0).([]model.TrackingEvent)
	return events, args.Error(1)
}

type AuditRepoMock struct{ mock.Mock }

func (m *AuditRepoMock) Create(ctx context.Context, log model.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *AuditRepoMock) List(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	args := m.Called(ctx, f)
	logs, _ := args.Get(0).([]model.AuditLog)
	return logs, args.Error(1)
}

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) Publish(ctx context.Context, ev model.ShipmentEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

// =====================
// Clock / 採番
// =====================

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// 呼ばれるたびに進む時計（イベント順を決めるため）
type stepClock struct {
	t    time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

// 決まった番号を順に返す
type seqNumbers struct {
	values []string
	i      int
}

func (g *seqNumbers) Generate(time.Time) (string, error) {
	v := g.values[g.i%len(g.values)]
	g.i++
	return v, nil
}

var (
	testNow   = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	adminUser = model.Actor{UserID: 1, Role: model.RoleAdmin}
	plainUser = model.Actor{UserID: 2, Role: model.RoleUser}
)

func newTxWithRepos() (*TxManagerMock, *ShipmentRepoMock, *TrackingEventRepoMock, *AuditRepoMock) {
	shipments := new(ShipmentRepoMock)
	events := new(TrackingEventRepoMock)
	audits := new(AuditRepoMock)

	tx := new(TxManagerMock)
	tx.Repos = &TxReposMock{shipments: shipments, events: events, audits: audits}
	return tx, shipments, events, audits
}

// HTTPErrorの実装詳細に依存しない
func assertErrContains(t *testing.T, err error, wantSubstr string) {
	t.Helper()
	if assert.Error(t, err) {
		assert.True(t, strings.Contains(err.Error(), wantSubstr), "err=%q want contains %q", err.Error(), wantSubstr)
	}
}

func assertStatus(t *testing.T, err error, want int) {
	t.Helper()
	he, ok := usecase.AsHTTPError(err)
	if assert.True(t, ok, "err=%v is not HTTPError", err) {
		assert.Equal(t, want, he.Status)
	}
}

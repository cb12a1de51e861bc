package usecase_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"xprexx/internal/domain/model"
	repo "xprexx/internal/repository"
	"xprexx/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const leadTime = 5 * 24 * time.Hour

func validInput() usecase.CreateShipmentInput {
	weight := 2.5
	return usecase.CreateShipmentInput{
		Origin:        "New York, NY",
		Destination:   "Los Angeles, CA",
		Weight:        &weight,
		ServiceType:   "express",
		SenderName:    "Alice Sender",
		SenderEmail:   "Alice@Example.com",
		ReceiverName:  "Bob Receiver",
		ReceiverEmail: "bob@example.com",
	}
}

func newShipmentUsecase(tx *TxManagerMock, numbers usecase.TrackingNumberGenerator, pub usecase.EventPublisher) *usecase.ShipmentUsecase {
	return usecase.NewShipmentUsecase(tx, numbers, fixedClock{t: testNow}, pub, zap.NewNop(), leadTime)
}

// =====================
// Create
// =====================

func TestShipmentUsecase_Create_Admin_Success(t *testing.T) {
	ctx := context.Background()
	tx, shipments, events, audits := newTxWithRepos()
	pub := new(PublisherMock)

	tx.On("WithinTx", mock.Anything).Return(nil)
	shipments.On("Create", mock.Anything, mock.MatchedBy(func(s *model.Shipment) bool {
		return s.TrackingNumber == "XPRTEST0001" &&
			s.Status == model.ShipmentStatusOrderReceived &&
			s.PaymentStatus == model.PaymentStatusPending &&
			!s.IsPaused &&
			s.ID != ""
	})).Return(nil)
	events.On("Create", mock.Anything, mock.MatchedBy(func(e *model.TrackingEvent) bool {
		return e.EventType == model.EventType(model.ShipmentStatusOrderReceived) &&
			e.Location != nil && *e.Location == "New York, NY" &&
			e.CreatedAt.Equal(testNow)
	})).Return(nil)
	audits.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
		return l.Action == model.AuditActionCreateShipment && l.ActorUserID == adminUser.UserID
	})).Return(nil)
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(ev model.ShipmentEvent) bool {
		return ev.Kind == model.ShipmentEventCreated && ev.TrackingNumber == "XPRTEST0001"
	})).Return(nil)

	uc := newShipmentUsecase(tx, &seqNumbers{values: []string{"xprtest0001"}}, pub)

	out, err := uc.Create(ctx, adminUser, validInput())
	require.NoError(t, err)

	assert.Equal(t, "XPRTEST0001", out.TrackingNumber)
	assert.Equal(t, "Order Received", out.Status)
	assert.Equal(t, "pending", out.StatusCategory)
	assert.Equal(t, "pending", out.PaymentStatus)
	assert.False(t, out.IsPaused)
	assert.Equal(t, "Express", out.ServiceType)
	assert.Equal(t, "alice@example.com", out.SenderEmail)
	require.NotNil(t, out.CurrentLocation)
	assert.Equal(t, "New York, NY", *out.CurrentLocation)
	require.NotNil(t, out.EstimatedDelivery)
	assert.True(t, out.EstimatedDelivery.Equal(testNow.Add(leadTime)))
	assert.Nil(t, out.UserID)

	tx.AssertExpectations(t)
	shipments.AssertExpectations(t)
	events.AssertNumberOfCalls(t, "Create", 1)
	audits.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestShipmentUsecase_Create_User_OwnsShipment_NoAudit(t *testing.T) {
	ctx := context.Background()
	tx, shipments, events, audits := newTxWithRepos()
	pub := new(PublisherMock)

	tx.On("WithinTx", mock.Anything).Return(nil)
	shipments.On("Create", mock.Anything, mock.Anything).Return(nil)
	events.On("Create", mock.Anything, mock.Anything).Return(nil)
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil)

	uc := newShipmentUsecase(tx, &seqNumbers{values: []string{"XPR1"}}, pub)

	out, err := uc.Create(ctx, plainUser, validInput())
	require.NoError(t, err)
	require.NotNil(t, out.UserID)
	assert.Equal(t, plainUser.UserID, *out.UserID)

	audits.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestShipmentUsecase_Create_User_CannotSetOtherOwner(t *testing.T) {
	tx, _, _, _ := newTxWithRepos()
	uc := newShipmentUsecase(tx, &seqNumbers{values: []string{"XPR1"}}, nil)

	other := int64(99)
	in := validInput()
	in.OwnerUserID = &other

	_, err := uc.Create(context.Background(), plainUser, in)
	assertStatus(t, err, http.StatusForbidden)
	tx.AssertNotCalled(t, "WithinTx", mock.Anything)
}

func TestShipmentUsecase_Create_Unauthenticated(t *testing.T) {
	tx, _, _, _ := newTxWithRepos()
	uc := newShipmentUsecase(tx, &seqNumbers{values: []string{"XPR1"}}, nil)

	_, err := uc.Create(context.Background(), model.Actor{}, validInput())
	assertStatus(t, err, http.StatusUnauthorized)
}

func TestShipmentUsecase_Create_Validation(t *testing.T) {
	neg := -1.0
	zeroQty := 0
	long := make([]byte, 256)
	for i := range long {
		long[i] = 'a'
	}

	cases := []struct {
		name   string
		mutate func(in *usecase.CreateShipmentInput)
		want   string
	}{
		{"missing origin", func(in *usecase.CreateShipmentInput) { in.Origin = "  " }, "origin is required"},
		{"missing destination", func(in *usecase.CreateShipmentInput) { in.Destination = "" }, "destination is required"},
		{"missing sender name", func(in *usecase.CreateShipmentInput) { in.SenderName = "" }, "sender_name is required"},
		{"missing receiver name", func(in *usecase.CreateShipmentInput) { in.ReceiverName = "" }, "receiver_name is required"},
		{"origin too long", func(in *usecase.CreateShipmentInput) { in.Origin = string(long) }, "origin is too long"},
		{"bad sender email", func(in *usecase.CreateShipmentInput) { in.SenderEmail = "not-an-email" }, "invalid sender_email"},
		{"display name email", func(in *usecase.CreateShipmentInput) { in.ReceiverEmail = "Bob <bob@example.com>" }, "invalid receiver_email"},
		{"missing receiver email", func(in *usecase.CreateShipmentInput) { in.ReceiverEmail = "" }, "receiver_email is required"},
		{"negative weight", func(in *usecase.CreateShipmentInput) { in.Weight = &neg }, "weight must be positive"},
		{"zero quantity", func(in *usecase.CreateShipmentInput) { in.Quantity = &zeroQty }, "quantity must be positive"},
		{"unknown service", func(in *usecase.CreateShipmentInput) { in.ServiceType = "teleport" }, "invalid service_type"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx, _, _, _ := newTxWithRepos()
			uc := newShipmentUsecase(tx, &seqNumbers{values: []string{"XPR1"}}, nil)

			in := validInput()
			tc.mutate(&in)

			_, err := uc.Create(context.Background(), adminUser, in)
			assertStatus(t, err, http.StatusBadRequest)
			assertErrContains(t, err, tc.want)
			tx.AssertNotCalled(t, "WithinTx", mock.Anything)
		})
	}
}

func TestShipmentUsecase_Create_RetriesOnDuplicateTrackingNumber(t *testing.T) {
	ctx := context.Background()
	tx, shipments, events, audits := newTxWithRepos()

	tx.On("WithinTx", mock.Anything).Return(nil)
	shipments.On("Create", mock.Anything, mock.Anything).Return(repo.ErrDuplicateKey).Once()
	shipments.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	events.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	audits.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

	uc := newShipmentUsecase(tx, &seqNumbers{values: []string{"XPRDUP", "XPROK"}}, nil)

	out, err := uc.Create(ctx, adminUser, validInput())
	require.NoError(t, err)
	assert.Equal(t, "XPROK", out.TrackingNumber)

	shipments.AssertNumberOfCalls(t, "Create", 2)
	events.AssertNumberOfCalls(t, "Create", 1)
}

func TestShipmentUsecase_Create_GivesUpAfterRepeatedCollisions(t *testing.T) {
	tx, shipments, _, _ := newTxWithRepos()

	tx.On("WithinTx", mock.Anything).Return(nil)
	shipments.On("Create", mock.Anything, mock.Anything).Return(repo.ErrDuplicateKey)

	uc := newShipmentUsecase(tx, &seqNumbers{values: []string{"XPRDUP"}}, nil)

	_, err := uc.Create(context.Background(), adminUser, validInput())
	assertStatus(t, err, http.StatusServiceUnavailable)
	assert.True(t, usecase.IsTransient(err))
	shipments.AssertNumberOfCalls(t, "Create", 5)
}

func TestShipmentUsecase_Create_StoreError(t *testing.T) {
	tx, shipments, _, _ := newTxWithRepos()
	pub := new(PublisherMock)

	tx.On("WithinTx", mock.Anything).Return(nil)
	shipments.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	uc := newShipmentUsecase(tx, &seqNumbers{values: []string{"XPR1"}}, pub)

	_, err := uc.Create(context.Background(), adminUser, validInput())
	assertStatus(t, err, http.StatusServiceUnavailable)
	assertErrContains(t, err, usecase.MsgStoreUnavailable)
	assert.True(t, usecase.IsTransient(err))

	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestShipmentUsecase_Create_EventWriteFails_NothingPublished(t *testing.T) {
	tx, shipments, events, _ := newTxWithRepos()
	pub := new(PublisherMock)

	tx.On("WithinTx", mock.Anything).Return(nil)
	shipments.On("Create", mock.Anything, mock.Anything).Return(nil)
	events.On("Create", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	uc := newShipmentUsecase(tx, &seqNumbers{values: []string{"XPR1"}}, pub)

	_, err := uc.Create(context.Background(), adminUser, validInput())
	assert.True(t, usecase.IsTransient(err))
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestShipmentUsecase_Create_PublishFailureIsLoggedOnly(t *testing.T) {
	tx, shipments, events, audits := newTxWithRepos()
	pub := new(PublisherMock)

	tx.On("WithinTx", mock.Anything).Return(nil)
	shipments.On("Create", mock.Anything, mock.Anything).Return(nil)
	events.On("Create", mock.Anything, mock.Anything).Return(nil)
	audits.On("Create", mock.Anything, mock.Anything).Return(nil)
	pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	core, logs := observer.New(zapcore.WarnLevel)
	uc := usecase.NewShipmentUsecase(tx, &seqNumbers{values: []string{"XPR1"}}, fixedClock{t: testNow}, pub, zap.New(core), leadTime)

	out, err := uc.Create(context.Background(), adminUser, validInput())
	require.NoError(t, err)
	assert.Equal(t, "XPR1", out.TrackingNumber)

	entries := logs.FilterMessage("publish shipment event failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "shipment.created", entries[0].ContextMap()["kind"])
}

// =====================
// ListMine / GetMine
// =====================

func TestShipmentUsecase_ListMine_ScopesToActor(t *testing.T) {
	tx, shipments, _, _ := newTxWithRepos()

	tx.On("WithinTx", mock.Anything).Return(nil)
	shipments.On("List", mock.Anything, mock.MatchedBy(func(f repo.ShipmentListFilter) bool {
		return f.UserID != nil && *f.UserID == plainUser.UserID && f.Page == 1 && f.Limit == 20
	})).Return([]model.Shipment{{ID: "s1", TrackingNumber: "XPR1", Status: model.ShipmentStatusInTransit}}, int64(1), nil)

	uc := newShipmentUsecase(tx, &seqNumbers{values: []string{"XPR1"}}, nil)

	out, err := uc.ListMine(context.Background(), plainUser, repo.ShipmentListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Total)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "active", out.Items[0].StatusCategory)
}

func TestShipmentUsecase_ListMine_InvalidFilter(t *testing.T) {
	tx, _, _, _ := newTxWithRepos()
	uc := newShipmentUsecase(tx, &seqNumbers{values: []string{"XPR1"}}, nil)

	_, err := uc.ListMine(context.Background(), plainUser, repo.ShipmentListFilter{Limit: 500})
	assertErrContains(t, err, "invalid limit")

	_, err = uc.ListMine(context.Background(), plainUser, repo.ShipmentListFilter{Status: "Lost"})
	assertErrContains(t, err, "invalid status")

	_, err = uc.ListMine(context.Background(), model.Actor{}, repo.ShipmentListFilter{})
	assertStatus(t, err, http.StatusUnauthorized)
}

func TestShipmentUsecase_GetMine_OtherUsersShipmentIsNotFound(t *testing.T) {
	tx, shipments, events, _ := newTxWithRepos()
	owner := int64(77)

	tx.On("WithinTx", mock.Anything).Return(nil)
	shipments.On("FindByID", mock.Anything, "s1").Return(model.Shipment{ID: "s1", UserID: &owner}, nil)
	events.On("ListByShipmentID", mock.Anything, "s1").Return([]model.TrackingEvent{}, nil)

	uc := newShipmentUsecase(tx, &seqNumbers{values: []string{"XPR1"}}, nil)

	_, err := uc.GetMine(context.Background(), plainUser, "s1")
	assertStatus(t, err, http.StatusNotFound)
	assert.True(t, usecase.IsNotFound(err))
}

func TestShipmentUsecase_GetMine_Success(t *testing.T) {
	tx, shipments, events, _ := newTxWithRepos()
	owner := plainUser.UserID

	tx.On("WithinTx", mock.Anything).Return(nil)
	shipments.On("FindByID", mock.Anything, "s1").Return(model.Shipment{ID: "s1", UserID: &owner, Status: model.ShipmentStatusProcessing}, nil)
	events.On("ListByShipmentID", mock.Anything, "s1").Return([]model.TrackingEvent{
		{ID: 2, EventType: "Processing"},
		{ID: 1, EventType: "Order Received"},
	}, nil)

	uc := newShipmentUsecase(tx, &seqNumbers{values: []string{"XPR1"}}, nil)

	out, err := uc.GetMine(context.Background(), plainUser, "s1")
	require.NoError(t, err)
	require.Len(t, out.Timeline, 2)
	assert.True(t, out.Timeline[0].IsCurrent)
	assert.False(t, out.Timeline[1].IsCurrent)
}

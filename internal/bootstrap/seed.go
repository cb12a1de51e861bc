package bootstrap

import (
	"context"
	"errors"
	"time"

	"xprexx/internal/domain/model"
	"xprexx/internal/repository"

	"github.com/google/uuid"
)

type sampleEvent struct {
	eventType   model.EventType
	description string
	location    string
	ago         time.Duration
}

type sampleShipment struct {
	shipment model.Shipment
	eta      time.Duration
	events   []sampleEvent
}

const day = 24 * time.Hour

func sampleShipments() []sampleShipment {
	return []sampleShipment{
		{
			shipment: model.Shipment{
				TrackingNumber:  "XPR123456789",
				Origin:          "New York, NY",
				Destination:     "Los Angeles, CA",
				Status:          model.ShipmentStatusInTransit,
				CurrentLocation: ptr("Chicago Distribution Center"),
				PaymentStatus:   model.PaymentStatusPaid,
				Weight:          ptr(2.5),
				Dimensions:      ptr("12x8x6 inches"),
				ServiceType:     model.ServiceTypeExpress,
			},
			eta: 2 * day,
			events: []sampleEvent{
				{"Order Received", "Package received at XPREXX facility", "New York Processing Center", 3 * day},
				{"In Transit", "Package departed from origin facility", "New York, NY", 2 * day},
				{"In Transit", "Package arrived at sorting facility", "Chicago Distribution Center", 1 * day},
			},
		},
		{
			shipment: model.Shipment{
				TrackingNumber:  "XPR987654321",
				Origin:          "Miami, FL",
				Destination:     "Seattle, WA",
				Status:          model.ShipmentStatusDelivered,
				CurrentLocation: ptr("Seattle Distribution Center"),
				PaymentStatus:   model.PaymentStatusPaid,
				Weight:          ptr(1.8),
				Dimensions:      ptr("10x6x4 inches"),
				ServiceType:     model.ServiceTypeStandard,
			},
			eta: -1 * day,
			events: []sampleEvent{
				{"Order Received", "Package received at XPREXX facility", "Miami Processing Center", 5 * day},
				{"In Transit", "Package in transit to destination", "Denver Hub", 3 * day},
				{"Out for Delivery", "Package out for delivery", "Seattle Distribution Center", 1*day + time.Hour},
				{"Delivered", "Package delivered successfully", "Seattle, WA", 1 * day},
			},
		},
	}
}

// SeedSampleData はデモ用の公開追跡データを入れる。既にある追跡番号は飛ばす。
// 追加した件数を返す。
func SeedSampleData(ctx context.Context, tx repository.TransactionManager, now time.Time) (int, error) {
	created := 0
	for _, sample := range sampleShipments() {
		err := tx.WithinTx(ctx, func(r repository.TxRepos) error {
			_, err := r.Shipments().FindByTrackingNumber(ctx, sample.shipment.TrackingNumber)
			if err == nil {
				return nil
			}
			if !errors.Is(err, repository.ErrNotFound) {
				return err
			}

			s := sample.shipment
			s.ID = uuid.NewString()
			eta := now.Add(sample.eta)
			s.EstimatedDelivery = &eta
			s.CreatedAt = now.Add(-sample.events[0].ago)
			s.UpdatedAt = now.Add(-sample.events[len(sample.events)-1].ago)
			if err := r.Shipments().Create(ctx, &s); err != nil {
				return err
			}

			for _, ev := range sample.events {
				if err := r.TrackingEvents().Create(ctx, &model.TrackingEvent{
					ShipmentID:  s.ID,
					EventType:   ev.eventType,
					Description: ptr(ev.description),
					Location:    ptr(ev.location),
					CreatedAt:   now.Add(-ev.ago),
				}); err != nil {
					return err
				}
			}
			created++
			return nil
		})
		if err != nil {
			return created, err
		}
	}
	return created, nil
}

func ptr[T any](v T) *T {
	return &v
}

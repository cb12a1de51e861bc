package usecase

import (
	"time"

	"xprexx/internal/domain/model"
)

type ShipmentOutput struct {
	ID              string  `json:"id"`
	TrackingNumber  string  `json:"tracking_number"`
	UserID          *int64  `json:"user_id,omitempty"`
	Origin          string  `json:"origin"`
	Destination     string  `json:"destination"`
	CurrentLocation *string `json:"current_location"`

	Status         string `json:"status"`
	StatusCategory string `json:"status_category"`
	PaymentStatus  string `json:"payment_status"`
	IsPaused       bool   `json:"is_paused"`

	Weight      *float64 `json:"weight"`
	Dimensions  *string  `json:"dimensions"`
	Quantity    *int     `json:"quantity"`
	Volume      *float64 `json:"volume"`
	ServiceType string   `json:"service_type"`
	Term        *string  `json:"term"`

	SenderName    string `json:"sender_name"`
	SenderEmail   string `json:"sender_email"`
	ReceiverName  string `json:"receiver_name"`
	ReceiverEmail string `json:"receiver_email"`

	EstimatedDelivery *time.Time `json:"estimated_delivery"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// タイムラインの1行。先頭（最新）だけ is_current=true
type TimelineEntry struct {
	ID          int64     `json:"id"`
	EventType   string    `json:"event_type"`
	Category    string    `json:"category"`
	Description *string   `json:"description"`
	Location    *string   `json:"location"`
	CreatedAt   time.Time `json:"created_at"`
	IsCurrent   bool      `json:"is_current"`
}

type TrackingOutput struct {
	Shipment ShipmentOutput  `json:"shipment"`
	Timeline []TimelineEntry `json:"timeline"`
}

type ShipmentListOutput struct {
	Items []ShipmentOutput `json:"items"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

func toShipmentOutput(s model.Shipment) ShipmentOutput {
	return ShipmentOutput{
		ID:                s.ID,
		TrackingNumber:    s.TrackingNumber,
		UserID:            s.UserID,
		Origin:            s.Origin,
		Destination:       s.Destination,
		CurrentLocation:   s.CurrentLocation,
		Status:            string(s.Status),
		StatusCategory:    string(model.ClassifyStatus(string(s.Status))),
		PaymentStatus:     string(s.PaymentStatus),
		IsPaused:          s.IsPaused,
		Weight:            s.Weight,
		Dimensions:        s.Dimensions,
		Quantity:          s.Quantity,
		Volume:            s.Volume,
		ServiceType:       string(s.ServiceType),
		Term:              s.Term,
		SenderName:        s.SenderName,
		SenderEmail:       s.SenderEmail,
		ReceiverName:      s.ReceiverName,
		ReceiverEmail:     s.ReceiverEmail,
		EstimatedDelivery: s.EstimatedDelivery,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

// eventsは新しい順で渡す
func toTimeline(events []model.TrackingEvent) []TimelineEntry {
	out := make([]TimelineEntry, 0, len(events))
	for i, e := range events {
		out = append(out, TimelineEntry{
			ID:          e.ID,
			EventType:   string(e.EventType),
			Category:    string(model.ClassifyStatus(string(e.EventType))),
			Description: e.Description,
			Location:    e.Location,
			CreatedAt:   e.CreatedAt,
			IsCurrent:   i == 0,
		})
	}
	return out
}

func toShipmentOutputs(items []model.Shipment) []ShipmentOutput {
	out := make([]ShipmentOutput, 0, len(items))
	for _, s := range items {
		out = append(out, toShipmentOutput(s))
	}
	return out
}

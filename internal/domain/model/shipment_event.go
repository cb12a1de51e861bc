package model

import "time"

// 配送の変更通知（commit後に外部へ流す）。
type ShipmentEventKind string

const (
	ShipmentEventCreated        ShipmentEventKind = "shipment.created"
	ShipmentEventStatusChanged  ShipmentEventKind = "shipment.status_changed"
	ShipmentEventPaused         ShipmentEventKind = "shipment.paused"
	ShipmentEventResumed        ShipmentEventKind = "shipment.resumed"
	ShipmentEventPaymentUpdated ShipmentEventKind = "shipment.payment_updated"
)

type ShipmentEvent struct {
	Kind           ShipmentEventKind `json:"kind"`
	ShipmentID     string            `json:"shipment_id"`
	TrackingNumber string            `json:"tracking_number"`
	Status         ShipmentStatus    `json:"status"`
	PaymentStatus  PaymentStatus     `json:"payment_status"`
	IsPaused       bool              `json:"is_paused"`
	Location       *string           `json:"location,omitempty"`
	Description    *string           `json:"description,omitempty"`
	ActorUserID    int64             `json:"actor_user_id"`
	OccurredAt     time.Time         `json:"occurred_at"`
}

package model

import "time"

// イベント種別。ShipmentStatusより緩いラベルで、語彙外の値も入る。
type EventType string

const (
	EventTypeShipmentPaused  EventType = "Shipment Paused"
	EventTypeShipmentResumed EventType = "Shipment Resumed"
)

func EventTypeForStatus(s ShipmentStatus) EventType {
	return EventType(s)
}

// 追跡イベント（追記のみ。更新・削除しない）。
type TrackingEvent struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ShipmentID  string    `gorm:"type:varchar(36);not null;index:idx_tracking_events_shipment_created,priority:1" json:"shipment_id"`
	EventType   EventType `gorm:"type:varchar(100);not null" json:"event_type"`
	Description *string   `gorm:"type:text" json:"description"`
	Location    *string   `gorm:"type:varchar(255)" json:"location"`
	CreatedAt   time.Time `gorm:"not null;index:idx_tracking_events_shipment_created,priority:2" json:"created_at"`
}

package model

import (
	"strings"
	"time"
)

// 配送ステータス（shipments.status）。
type ShipmentStatus string

const (
	ShipmentStatusOrderReceived                ShipmentStatus = "Order Received"
	ShipmentStatusProcessing                   ShipmentStatus = "Processing"
	ShipmentStatusPickupScheduled              ShipmentStatus = "Pickup Scheduled"
	ShipmentStatusInTransit                    ShipmentStatus = "In Transit"
	ShipmentStatusInTransitOriginFacility      ShipmentStatus = "In Transit (Origin Facility)"
	ShipmentStatusInTransitInternational       ShipmentStatus = "In Transit (International)"
	ShipmentStatusCustomsClearance             ShipmentStatus = "Customs Clearance"
	ShipmentStatusInTransitDestinationFacility ShipmentStatus = "In Transit (Destination Facility)"
	ShipmentStatusOutForDelivery               ShipmentStatus = "Out for Delivery"
	ShipmentStatusDelivered                    ShipmentStatus = "Delivered"

	// どの輸送中ステータスからでも遷移できる
	ShipmentStatusDelayed   ShipmentStatus = "Delayed"
	ShipmentStatusException ShipmentStatus = "Exception"
)

// 典型的な進行順。順序の強制はしない。
var ShipmentStatuses = []ShipmentStatus{
	ShipmentStatusOrderReceived,
	ShipmentStatusProcessing,
	ShipmentStatusPickupScheduled,
	ShipmentStatusInTransit,
	ShipmentStatusInTransitOriginFacility,
	ShipmentStatusInTransitInternational,
	ShipmentStatusCustomsClearance,
	ShipmentStatusInTransitDestinationFacility,
	ShipmentStatusOutForDelivery,
	ShipmentStatusDelivered,
	ShipmentStatusDelayed,
	ShipmentStatusException,
}

// 大文字小文字を無視して語彙に一致させ、正規の表記を返す。
func ParseShipmentStatus(s string) (ShipmentStatus, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, st := range ShipmentStatuses {
		if strings.EqualFold(string(st), s) {
			return st, true
		}
	}
	return "", false
}

// Deliveredは終端
func (s ShipmentStatus) IsTerminal() bool {
	return s == ShipmentStatusDelivered
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	switch PaymentStatus(strings.ToLower(strings.TrimSpace(s))) {
	case PaymentStatusPending:
		return PaymentStatusPending, true
	case PaymentStatusPaid:
		return PaymentStatusPaid, true
	case PaymentStatusFailed:
		return PaymentStatusFailed, true
	case PaymentStatusRefunded:
		return PaymentStatusRefunded, true
	default:
		return "", false
	}
}

type ServiceType string

const (
	ServiceTypeStandard  ServiceType = "Standard"
	ServiceTypeExpress   ServiceType = "Express"
	ServiceTypeOvernight ServiceType = "Overnight"
)

// 空ならStandard
func ParseServiceType(s string) (ServiceType, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ServiceTypeStandard, true
	}
	for _, st := range []ServiceType{ServiceTypeStandard, ServiceTypeExpress, ServiceTypeOvernight} {
		if strings.EqualFold(string(st), s) {
			return st, true
		}
	}
	return "", false
}

// 配送1件。tracking_numberが外部に出る唯一の検索キー。
type Shipment struct {
	ID             string `gorm:"type:varchar(36);primaryKey" json:"id"`
	TrackingNumber string `gorm:"type:varchar(40);not null;uniqueIndex" json:"tracking_number"`

	// 登録ユーザーに紐づく場合のみ（未紐づけは番号だけで公開追跡できる）
	UserID *int64 `gorm:"index" json:"user_id,omitempty"`

	Origin          string  `gorm:"type:varchar(255);not null" json:"origin"`
	Destination     string  `gorm:"type:varchar(255);not null" json:"destination"`
	CurrentLocation *string `gorm:"type:varchar(255)" json:"current_location,omitempty"`

	Status        ShipmentStatus `gorm:"type:varchar(50);not null;index" json:"status"`
	PaymentStatus PaymentStatus  `gorm:"type:varchar(20);not null;index" json:"payment_status"`
	IsPaused      bool           `gorm:"not null" json:"is_paused"`

	// 荷物の属性（作成後は更新しない）
	Weight      *float64    `json:"weight,omitempty"`
	Dimensions  *string     `gorm:"type:varchar(100)" json:"dimensions,omitempty"`
	Quantity    *int        `json:"quantity,omitempty"`
	Volume      *float64    `json:"volume,omitempty"`
	ServiceType ServiceType `gorm:"type:varchar(20);not null" json:"service_type"`
	Term        *string     `gorm:"type:varchar(100)" json:"term,omitempty"`

	SenderName    string `gorm:"type:varchar(255);not null" json:"sender_name"`
	SenderEmail   string `gorm:"type:varchar(255);not null" json:"sender_email"`
	ReceiverName  string `gorm:"type:varchar(255);not null" json:"receiver_name"`
	ReceiverEmail string `gorm:"type:varchar(255);not null" json:"receiver_email"`

	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`

	Events []TrackingEvent `gorm:"foreignKey:ShipmentID;constraint:OnDelete:CASCADE" json:"-"`
}

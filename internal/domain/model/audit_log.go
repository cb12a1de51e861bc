package model

import "time"

// 配送作成、ステータス更新、一時停止、支払いステータス更新など。
type AuditAction string

const (
	//配送を作成した操作。
	AuditActionCreateShipment AuditAction = "CREATE_SHIPMENT"
	//配送ステータスを更新した操作。
	AuditActionUpdateShipmentStatus AuditAction = "UPDATE_SHIPMENT_STATUS"
	//一時停止/再開
	AuditActionToggleShipmentPause AuditAction = "TOGGLE_SHIPMENT_PAUSE"
	//支払いステータス（追跡タイムラインには出さない）
	AuditActionUpdatePaymentStatus AuditAction = "UPDATE_PAYMENT_STATUS"
	//ユーザーの有効/停止
	AuditActionUpdateUserActive AuditAction = "UPDATE_USER_ACTIVE"
	//強制ログアウト
	AuditActionForceLogout AuditAction = "FORCE_LOGOUT"
)

// 何に対する操作か
type AuditResourceType string

const (
	//配送に対する操作。
	AuditResourceShipment AuditResourceType = "shipment"

	//ユーザーに対する操作。
	AuditResourceUser AuditResourceType = "user"
)

// 監査ログ（管理者操作ログ）。
// 「誰が」「何を」「どの対象に」「どう変えたか」を残す。
type AuditLog struct {
	//IDは監査ログの主キー
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//操作したユーザーのID。
	ActorUserID int64 `gorm:"not null;index" json:"actor_user_id"`

	//操作の種類
	Action AuditAction `gorm:"type:varchar(50);not null;index" json:"action"`

	//対象の種類（shipment / user）。
	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`

	//対象のID（shipmentはuuid、userは数値の文字列）
	ResourceID string `gorm:"type:varchar(64);not null;index" json:"resource_id"`

	//JSON文字列で保存する。
	BeforeJSON string `gorm:"type:text" json:"before_json"`

	//JSON文字列で保存する。
	AfterJSON string `gorm:"type:text" json:"after_json"`

	//作成時刻
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

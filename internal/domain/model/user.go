package model

import "time"

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"

	// CLIなどの運用操作（JWTでは発行しない）
	RoleSystem Role = "SYSTEM"
)

type User struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Email        string `gorm:"type:varchar(255);uniqueIndex;not null"`
	Name         string `gorm:"type:varchar(255);not null;default:''"`
	PasswordHash string `gorm:"column:password_hash;not null"`
	Role         Role   `gorm:"type:varchar(20);not null;default:'USER'"`
	TokenVersion int    `gorm:"not null;default:0"`
	IsActive     bool   `gorm:"not null;default:true"`
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// 操作者（handlerでJWTから取り出して明示的に渡す）
type Actor struct {
	UserID int64
	Role   Role
}

func SystemActor() Actor {
	return Actor{Role: RoleSystem}
}

func (a Actor) IsSystem() bool {
	return a.Role == RoleSystem
}

func (a Actor) IsAdmin() bool {
	return a.IsSystem() || (a.UserID > 0 && a.Role == RoleAdmin)
}

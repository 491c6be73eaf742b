package model

import (
	"time"

	"gorm.io/gorm"
)

// User represents an account holder. Profile fields mirror what the
// dashboard edits; they are created with safe defaults at signup.
type User struct {
	ID                 uint           `json:"id" gorm:"primaryKey"`
	Email              string         `json:"email" gorm:"type:varchar(100);uniqueIndex"`
	Password           string         `json:"-" gorm:"type:varchar(255)"`
	IsActive           bool           `json:"is_active" gorm:"default:true"`
	MustChangePassword bool           `json:"must_change_password" gorm:"default:false"`
	FullName           *string        `json:"full_name,omitempty" gorm:"type:varchar(255)"`
	Phone              *string        `json:"phone,omitempty" gorm:"type:varchar(50)"`
	AvatarURL          *string        `json:"avatar_url,omitempty" gorm:"type:varchar(512)"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `json:"-" gorm:"index"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Guide is the directory record used to resolve display names at lock time.
type Guide struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DisplayName string    `gorm:"column:display_name;not null"`
	Email       *string   `gorm:"column:email"`
	Active      bool      `gorm:"column:active;not null;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Entity is embedded by every table.
type Entity struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// EnsureID assigns a fresh UUID when none is set and returns the ID.
func (e *Entity) EnsureID() uuid.UUID {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return e.ID
}

func (e *Entity) BeforeCreate(*gorm.DB) error {
	e.EnsureID()
	return nil
}

package gormdb

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseEntity is the GORM counterpart of postgres.BaseEntity. CreatedAt and
// UpdatedAt are filled by GORM on create.
type BaseEntity struct {
	ID        string     `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time  `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at;not null" json:"updated_at"`
	DeletedAt *time.Time `gorm:"column:deleted_at" json:"deleted_at,omitempty"`
}

func (e *BaseEntity) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	return nil
}

func (e *BaseEntity) IsDeleted() bool {
	return e.DeletedAt != nil
}

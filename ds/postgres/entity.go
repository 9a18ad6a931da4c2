package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// BaseEntity carries the generated UUID key and bookkeeping timestamps of a
// table row. Embed it next to bun.BaseModel:
//
//	type Widget struct {
//		bun.BaseModel `bun:"table:widgets"`
//		postgres.BaseEntity
//		Name string `bun:"name"`
//	}
type BaseEntity struct {
	ID        string     `bun:"id,pk,type:uuid" json:"id"`
	CreatedAt time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt time.Time  `bun:"updated_at,notnull" json:"updated_at"`
	DeletedAt *time.Time `bun:"deleted_at" json:"deleted_at,omitempty"`
}

var _ bun.BeforeAppendModelHook = (*BaseEntity)(nil)

// BeforeAppendModel generates the id and creation timestamps on insert.
func (e *BaseEntity) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); !ok {
		return nil
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = now
	}

	return nil
}

// IsDeleted reports whether the row was soft removed.
func (e *BaseEntity) IsDeleted() bool {
	return e.DeletedAt != nil
}

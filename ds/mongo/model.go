package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BaseModel carries the identifier and bookkeeping timestamps of a
// document. Embed it inline:
//
//	type Widget struct {
//		mongo.BaseModel `bson:",inline"`
//		Name string `bson:"name"`
//	}
type BaseModel struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
	DeletedAt *time.Time         `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
}

// IsDeleted reports whether the document was soft removed.
func (m *BaseModel) IsDeleted() bool {
	return m.DeletedAt != nil
}

func (m *BaseModel) touchCreate(now time.Time) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = now
	}
}

type timestamped interface {
	touchCreate(now time.Time)
}

package common

import "context"

// CreateService inserts records.
type CreateService[T any] interface {
	Create(ctx context.Context, data *T) (*T, error)
	CreateMany(ctx context.Context, data []*T) ([]*T, error)
}

// GetOneService looks up single records. The plain variants return a nil
// record when nothing matches, the OrFail variants return a NotFoundError.
type GetOneService[T any] interface {
	GetOne(ctx context.Context, opts FindOptions) (*T, error)
	GetOneOrFail(ctx context.Context, opts FindOrFailOptions) (*T, error)
	GetOneByID(ctx context.Context, id string, relations ...string) (*T, error)
	GetOneByIDOrFail(ctx context.Context, id string, relations []string, errorMessage string) (*T, error)
}

// GetAllService lists records.
type GetAllService[T any] interface {
	GetAll(ctx context.Context, opts FindOptions) ([]*T, error)
	GetAllWithPagination(ctx context.Context, opts FindWithPaginationOptions) (*Pagination[T], error)
}

// UpdateService patches a single record and returns the in-memory merge of
// the fetched record and the patch.
type UpdateService[T any] interface {
	Update(ctx context.Context, opts FindOrFailOptions, data Patch) (*T, error)
	UpdateByID(ctx context.Context, id string, data Patch, relations []string, errorMessage string) (*T, error)
}

// RemoveService hard deletes a single record and returns its last value.
type RemoveService[T any] interface {
	Remove(ctx context.Context, opts FindOrFailOptions) (*T, error)
	RemoveByID(ctx context.Context, id string, errorMessage string) (*T, error)
}

// SoftRemoveService stamps deleted_at on a single record.
type SoftRemoveService[T any] interface {
	SoftRemove(ctx context.Context, opts FindOrFailOptions) (*T, error)
	SoftRemoveByID(ctx context.Context, id string, errorMessage string) (*T, error)
}

// Service is the full CRUD surface implemented by every datastore adapter.
type Service[T any] interface {
	CreateService[T]
	GetOneService[T]
	GetAllService[T]
	UpdateService[T]
	RemoveService[T]
	SoftRemoveService[T]
}

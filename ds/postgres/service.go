package postgres

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/logistics-id/crud/common"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
	"go.uber.org/zap"
)

type Option func(*serviceConfig)

type serviceConfig struct {
	notFoundMessage string
	logger          *zap.Logger
}

// WithNotFoundMessage replaces common.DefaultEntityNotFoundMessage.
func WithNotFoundMessage(msg string) Option {
	return func(c *serviceConfig) {
		c.notFoundMessage = msg
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *serviceConfig) {
		c.logger = l
	}
}

// BaseService implements common.Service over the bun model T. T is
// expected to embed BaseEntity; relation names are bun relation names.
type BaseService[T any] struct {
	DB bun.IDB

	cfg   serviceConfig
	table *schema.Table
}

var _ common.Service[BaseEntity] = (*BaseService[BaseEntity])(nil)

func NewBaseService[T any](db bun.IDB, opts ...Option) *BaseService[T] {
	cfg := serviceConfig{
		notFoundMessage: common.DefaultEntityNotFoundMessage,
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &BaseService[T]{
		DB:    db,
		cfg:   cfg,
		table: db.Dialect().Tables().Get(reflect.TypeFor[T]()),
	}
}

func (s *BaseService[T]) Create(ctx context.Context, data *T) (*T, error) {
	if data == nil {
		return nil, common.ErrNilRecord
	}

	if _, err := s.DB.NewInsert().Model(data).Exec(ctx); err != nil {
		return nil, err
	}

	return data, nil
}

// CreateMany inserts one row at a time in input order, without a
// transaction. On failure the rows created so far are returned along with
// the error; they stay committed.
func (s *BaseService[T]) CreateMany(ctx context.Context, data []*T) ([]*T, error) {
	created := make([]*T, 0, len(data))

	for _, d := range data {
		entity, err := s.Create(ctx, d)
		if err != nil {
			return created, err
		}
		created = append(created, entity)
	}

	return created, nil
}

func (s *BaseService[T]) GetOne(ctx context.Context, opts common.FindOptions) (*T, error) {
	entity := new(T)

	q, err := s.selectQuery(entity, opts)
	if err != nil {
		return nil, err
	}

	if err := q.Limit(1).Scan(ctx); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}

	return entity, nil
}

func (s *BaseService[T]) GetOneOrFail(ctx context.Context, opts common.FindOrFailOptions) (*T, error) {
	entity, err := s.GetOne(ctx, opts.FindOptions)
	if err != nil {
		return nil, err
	}

	if entity == nil {
		return nil, s.notFound(opts.ErrorMessage, zap.Any("filter", opts.Criteria()))
	}

	return entity, nil
}

// GetOneByID looks a row up by its UUID. Ids that are not UUIDs match
// nothing.
func (s *BaseService[T]) GetOneByID(ctx context.Context, id string, relations ...string) (*T, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	return s.GetOne(ctx, common.FindOptions{
		Where:     common.Filter{"id": id},
		Relations: relations,
	})
}

func (s *BaseService[T]) GetOneByIDOrFail(ctx context.Context, id string, relations []string, errorMessage string) (*T, error) {
	entity, err := s.GetOneByID(ctx, id, relations...)
	if err != nil {
		return nil, err
	}

	if entity == nil {
		return nil, s.notFound(errorMessage, zap.String("id", id))
	}

	return entity, nil
}

func (s *BaseService[T]) GetAll(ctx context.Context, opts common.FindOptions) ([]*T, error) {
	results := []*T{}

	q, err := s.selectQuery(&results, opts)
	if err != nil {
		return nil, err
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	return results, nil
}

// GetAllWithPagination counts every match, then fetches the requested page.
func (s *BaseService[T]) GetAllWithPagination(ctx context.Context, opts common.FindWithPaginationOptions) (*common.Pagination[T], error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	results := []*T{}

	q, err := s.selectQuery(&results, opts.FindOptions)
	if err != nil {
		return nil, err
	}

	total, err := q.Count(ctx)
	if err != nil {
		return nil, err
	}

	if total > opts.Skip() {
		if err := q.Limit(opts.Limit).Offset(opts.Skip()).Scan(ctx); err != nil {
			return nil, err
		}
	}

	return common.NewPagination(results, opts, int64(total)), nil
}

// Update merges data onto the matching row and writes the patch against the
// same criteria. The write is awaited, but the returned entity is the
// in-memory merge, not a fresh read.
func (s *BaseService[T]) Update(ctx context.Context, opts common.FindOrFailOptions, data common.Patch) (*T, error) {
	entity, err := s.GetOneOrFail(ctx, opts)
	if err != nil {
		return nil, err
	}

	criteria := opts.Criteria()
	if len(criteria) == 0 {
		criteria = s.pkCriteria(entity)
	}

	return s.apply(ctx, entity, criteria, data)
}

func (s *BaseService[T]) UpdateByID(ctx context.Context, id string, data common.Patch, relations []string, errorMessage string) (*T, error) {
	entity, err := s.GetOneByIDOrFail(ctx, id, relations, errorMessage)
	if err != nil {
		return nil, err
	}

	return s.apply(ctx, entity, []common.Filter{{"id": id}}, data)
}

// Remove deletes the matching row and returns its last value.
func (s *BaseService[T]) Remove(ctx context.Context, opts common.FindOrFailOptions) (*T, error) {
	entity, err := s.GetOneOrFail(ctx, opts)
	if err != nil {
		return nil, err
	}

	return s.delete(ctx, entity)
}

func (s *BaseService[T]) RemoveByID(ctx context.Context, id string, errorMessage string) (*T, error) {
	entity, err := s.GetOneByIDOrFail(ctx, id, nil, errorMessage)
	if err != nil {
		return nil, err
	}

	return s.delete(ctx, entity)
}

// SoftRemove stamps deleted_at through Update. Soft removed rows still match
// later lookups unless the caller filters on deleted_at.
func (s *BaseService[T]) SoftRemove(ctx context.Context, opts common.FindOrFailOptions) (*T, error) {
	return s.Update(ctx, opts, common.Patch{common.FieldDeletedAt: time.Now()})
}

func (s *BaseService[T]) SoftRemoveByID(ctx context.Context, id string, errorMessage string) (*T, error) {
	return s.UpdateByID(ctx, id, common.Patch{common.FieldDeletedAt: time.Now()}, nil, errorMessage)
}

func (s *BaseService[T]) notFound(message string, fields ...zap.Field) error {
	err := common.NotFound(message, s.cfg.notFoundMessage)
	s.cfg.logger.Debug("PG/NOT FOUND", append(fields, zap.String("table", s.table.Name))...)

	return err
}

func (s *BaseService[T]) selectQuery(model any, opts common.FindOptions) (*bun.SelectQuery, error) {
	q := s.DB.NewSelect().Model(model)
	q = applyCriteria(q, opts.Criteria(), true)

	for _, rel := range opts.Relations {
		root, _, _ := strings.Cut(rel, ".")
		if _, ok := s.table.Relations[root]; !ok {
			return nil, fmt.Errorf("%w: %s", common.ErrUnknownRelation, rel)
		}
		q = q.Relation(rel)
	}

	if order := RequestSort(opts.Order); order != "" {
		q = q.OrderExpr(order)
	}

	return q, nil
}

func (s *BaseService[T]) apply(ctx context.Context, entity *T, criteria []common.Filter, data common.Patch) (*T, error) {
	strct := reflect.ValueOf(entity).Elem()
	patch := make(common.Patch, len(data)+1)

	for _, k := range data.Keys() {
		field, ok := s.table.FieldMap[k]
		if !ok {
			return nil, fmt.Errorf("%w: %s", common.ErrUnknownField, k)
		}
		if err := assignField(strct.FieldByIndex(field.Index), data[k]); err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		patch[k] = data[k]
	}

	if field, ok := s.table.FieldMap[common.FieldUpdatedAt]; ok {
		if _, patched := patch[common.FieldUpdatedAt]; !patched {
			now := time.Now()
			if err := assignField(strct.FieldByIndex(field.Index), now); err != nil {
				return nil, err
			}
			patch[common.FieldUpdatedAt] = now
		}
	}

	q := s.DB.NewUpdate().Model((*T)(nil))
	for _, k := range patch.Keys() {
		q = q.Set("? = ?", bun.Ident(k), patch[k])
	}
	q = applyCriteria(q, criteria, false)

	if _, err := q.Exec(ctx); err != nil {
		return nil, err
	}

	return entity, nil
}

func (s *BaseService[T]) delete(ctx context.Context, entity *T) (*T, error) {
	if _, err := s.DB.NewDelete().Model(entity).WherePK().Exec(ctx); err != nil {
		return nil, err
	}

	return entity, nil
}

func (s *BaseService[T]) pkCriteria(entity *T) []common.Filter {
	strct := reflect.ValueOf(entity).Elem()

	f := common.Filter{}
	for _, pk := range s.table.PKs {
		f[pk.Name] = strct.FieldByIndex(pk.Index).Interface()
	}

	return []common.Filter{f}
}

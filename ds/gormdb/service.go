package gormdb

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/logistics-id/crud/common"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
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

// BaseService implements common.Service over the GORM model T, relation
// names are GORM association names loaded with Preload.
type BaseService[T any] struct {
	DB *gorm.DB

	cfg    serviceConfig
	schema *schema.Schema
}

var _ common.Service[BaseEntity] = (*BaseService[BaseEntity])(nil)

// NewBaseService parses the schema of T, it fails when T is not a valid
// GORM model.
func NewBaseService[T any](db *gorm.DB, opts ...Option) (*BaseService[T], error) {
	cfg := serviceConfig{
		notFoundMessage: common.DefaultEntityNotFoundMessage,
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(new(T)); err != nil {
		return nil, err
	}

	return &BaseService[T]{
		DB:     db,
		cfg:    cfg,
		schema: stmt.Schema,
	}, nil
}

func (s *BaseService[T]) Create(ctx context.Context, data *T) (*T, error) {
	if data == nil {
		return nil, common.ErrNilRecord
	}

	if err := s.DB.WithContext(ctx).Omit(clause.Associations).Create(data).Error; err != nil {
		return nil, err
	}

	return data, nil
}

// CreateMany creates the records one by one. It stops at the first failure
// and returns the records created before it together with the error.
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
	q, err := s.query(ctx, opts)
	if err != nil {
		return nil, err
	}

	entity := new(T)

	res := q.Limit(1).Find(entity)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
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
	q, err := s.query(ctx, opts)
	if err != nil {
		return nil, err
	}

	results := []*T{}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}

	return results, nil
}

func (s *BaseService[T]) GetAllWithPagination(ctx context.Context, opts common.FindWithPaginationOptions) (*common.Pagination[T], error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	var total int64

	counter, err := s.query(ctx, common.FindOptions{Where: opts.Where, Or: opts.Or})
	if err != nil {
		return nil, err
	}
	if err := counter.Count(&total).Error; err != nil {
		return nil, err
	}

	results := []*T{}

	if total > int64(opts.Skip()) {
		q, err := s.query(ctx, opts.FindOptions)
		if err != nil {
			return nil, err
		}
		if err := q.Offset(opts.Skip()).Limit(opts.Limit).Find(&results).Error; err != nil {
			return nil, err
		}
	}

	return common.NewPagination(results, opts, total), nil
}

// Update merges data onto the matching record and writes the patch against
// the same criteria. The returned entity is the in-memory merge.
func (s *BaseService[T]) Update(ctx context.Context, opts common.FindOrFailOptions, data common.Patch) (*T, error) {
	entity, err := s.GetOneOrFail(ctx, opts)
	if err != nil {
		return nil, err
	}

	criteria := opts.Criteria()
	if len(criteria) == 0 {
		criteria = s.pkCriteria(ctx, entity)
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

// SoftRemove stamps deleted_at, the record keeps matching later lookups.
func (s *BaseService[T]) SoftRemove(ctx context.Context, opts common.FindOrFailOptions) (*T, error) {
	return s.Update(ctx, opts, common.Patch{common.FieldDeletedAt: time.Now()})
}

func (s *BaseService[T]) SoftRemoveByID(ctx context.Context, id string, errorMessage string) (*T, error) {
	return s.UpdateByID(ctx, id, common.Patch{common.FieldDeletedAt: time.Now()}, nil, errorMessage)
}

func (s *BaseService[T]) notFound(message string, fields ...zap.Field) error {
	err := common.NotFound(message, s.cfg.notFoundMessage)
	s.cfg.logger.Debug("GORM/NOT FOUND", append(fields, zap.String("table", s.schema.Table))...)

	return err
}

func (s *BaseService[T]) query(ctx context.Context, opts common.FindOptions) (*gorm.DB, error) {
	q := s.DB.WithContext(ctx).Model(new(T))
	q = applyCriteria(q, opts.Criteria())

	for _, rel := range opts.Relations {
		root, _, _ := strings.Cut(rel, ".")
		if _, ok := s.schema.Relationships.Relations[root]; !ok {
			return nil, fmt.Errorf("%w: %s", common.ErrUnknownRelation, rel)
		}
		q = q.Preload(rel)
	}

	if order := requestSort(s.schema, opts.Order); len(order.Columns) > 0 {
		q = q.Order(order)
	}

	return q, nil
}

func (s *BaseService[T]) apply(ctx context.Context, entity *T, criteria []common.Filter, data common.Patch) (*T, error) {
	rv := reflect.ValueOf(entity).Elem()
	patch := make(map[string]any, len(data)+1)

	for _, k := range data.Keys() {
		field := s.schema.LookUpField(k)
		if field == nil || field.DBName == "" {
			return nil, fmt.Errorf("%w: %s", common.ErrUnknownField, k)
		}
		if err := field.Set(ctx, rv, data[k]); err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		patch[field.DBName] = data[k]
	}

	if field := s.schema.LookUpField(common.FieldUpdatedAt); field != nil {
		if _, patched := patch[field.DBName]; !patched {
			now := time.Now()
			if err := field.Set(ctx, rv, now); err != nil {
				return nil, err
			}
			patch[field.DBName] = now
		}
	}

	q := applyCriteria(s.DB.WithContext(ctx).Model(new(T)), criteria)
	if err := q.Updates(patch).Error; err != nil {
		return nil, err
	}

	return entity, nil
}

func (s *BaseService[T]) delete(ctx context.Context, entity *T) (*T, error) {
	if err := s.DB.WithContext(ctx).Delete(entity).Error; err != nil {
		return nil, err
	}

	return entity, nil
}

func (s *BaseService[T]) pkCriteria(ctx context.Context, entity *T) []common.Filter {
	rv := reflect.ValueOf(entity).Elem()

	f := common.Filter{}
	for _, pk := range s.schema.PrimaryFields {
		f[pk.DBName], _ = pk.ValueOf(ctx, rv)
	}

	return []common.Filter{f}
}

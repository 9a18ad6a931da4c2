package mongo

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/logistics-id/crud/common"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type Option func(*serviceConfig)

type serviceConfig struct {
	relations       map[string]Relation
	notFoundMessage string
	logger          *zap.Logger
}

// WithRelation registers a named association that callers can request in
// FindOptions.Relations.
func WithRelation(name string, rel Relation) Option {
	return func(c *serviceConfig) {
		c.relations[name] = rel
	}
}

// WithNotFoundMessage replaces common.DefaultDocumentNotFoundMessage.
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

// BaseService implements common.Service over a single collection whose
// documents decode into T. T is expected to embed BaseModel inline.
type BaseService[T any] struct {
	Collection *Collection

	cfg    serviceConfig
	fields map[string]struct{}
}

var _ common.Service[BaseModel] = (*BaseService[BaseModel])(nil)

func NewBaseService[T any](col *Collection, opts ...Option) *BaseService[T] {
	cfg := serviceConfig{
		relations:       map[string]Relation{},
		notFoundMessage: common.DefaultDocumentNotFoundMessage,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	fields := map[string]struct{}{}
	bsonKeys(reflect.TypeFor[T](), fields)

	return &BaseService[T]{
		Collection: col,
		cfg:        cfg,
		fields:     fields,
	}
}

func (s *BaseService[T]) log() *zap.Logger {
	if s.cfg.logger != nil {
		return s.cfg.logger
	}
	return logger
}

func (s *BaseService[T]) Create(ctx context.Context, data *T) (*T, error) {
	if data == nil {
		return nil, common.ErrNilRecord
	}

	if ts, ok := any(data).(timestamped); ok {
		ts.touchCreate(time.Now())
	}

	if err := s.Collection.Create(ctx, data); err != nil {
		return nil, err
	}

	return data, nil
}

// CreateMany inserts one document at a time in input order. On failure the
// documents created so far are returned along with the error; they stay
// persisted.
func (s *BaseService[T]) CreateMany(ctx context.Context, data []*T) ([]*T, error) {
	created := make([]*T, 0, len(data))

	for _, d := range data {
		doc, err := s.Create(ctx, d)
		if err != nil {
			return created, err
		}
		created = append(created, doc)
	}

	return created, nil
}

func (s *BaseService[T]) GetOne(ctx context.Context, opts common.FindOptions) (*T, error) {
	return s.findOne(ctx, BuildFilter(opts.Criteria()), opts.Relations, opts.Order)
}

func (s *BaseService[T]) GetOneOrFail(ctx context.Context, opts common.FindOrFailOptions) (*T, error) {
	doc, err := s.GetOne(ctx, opts.FindOptions)
	if err != nil {
		return nil, err
	}

	if doc == nil {
		return nil, s.notFound(opts.ErrorMessage, zap.Any("filter", opts.Criteria()))
	}

	return doc, nil
}

// GetOneByID looks a document up by its hex ObjectID. Malformed ids match
// nothing.
func (s *BaseService[T]) GetOneByID(ctx context.Context, id string, relations ...string) (*T, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}

	return s.findOne(ctx, bson.M{ID: oid}, relations, nil)
}

func (s *BaseService[T]) GetOneByIDOrFail(ctx context.Context, id string, relations []string, errorMessage string) (*T, error) {
	doc, err := s.GetOneByID(ctx, id, relations...)
	if err != nil {
		return nil, err
	}

	if doc == nil {
		return nil, s.notFound(errorMessage, zap.String("id", id))
	}

	return doc, nil
}

func (s *BaseService[T]) GetAll(ctx context.Context, opts common.FindOptions) ([]*T, error) {
	return s.find(ctx, BuildFilter(opts.Criteria()), opts.Relations, opts.Order, 0, 0)
}

// GetAllWithPagination counts every match, then fetches the requested page.
func (s *BaseService[T]) GetAllWithPagination(ctx context.Context, opts common.FindWithPaginationOptions) (*common.Pagination[T], error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	filter := BuildFilter(opts.Criteria())

	total, err := s.Collection.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	data, err := s.find(ctx, filter, opts.Relations, opts.Order, int64(opts.Skip()), int64(opts.Limit))
	if err != nil {
		return nil, err
	}

	return common.NewPagination(data, opts, total), nil
}

// Update merges data onto the matching document and writes the patch
// against the same filter. The write is awaited, but the returned document
// is the in-memory merge, not a fresh read.
func (s *BaseService[T]) Update(ctx context.Context, opts common.FindOrFailOptions, data common.Patch) (*T, error) {
	doc, err := s.GetOneOrFail(ctx, opts)
	if err != nil {
		return nil, err
	}

	filter := BuildFilter(opts.Criteria())
	if len(filter) == 0 {
		if id := getID(doc); id != nil {
			filter = bson.M{ID: id}
		}
	}

	return s.apply(ctx, doc, filter, data)
}

func (s *BaseService[T]) UpdateByID(ctx context.Context, id string, data common.Patch, relations []string, errorMessage string) (*T, error) {
	doc, err := s.GetOneByIDOrFail(ctx, id, relations, errorMessage)
	if err != nil {
		return nil, err
	}

	oid, _ := primitive.ObjectIDFromHex(id)

	return s.apply(ctx, doc, bson.M{ID: oid}, data)
}

// Remove deletes the matching document and returns its last value.
func (s *BaseService[T]) Remove(ctx context.Context, opts common.FindOrFailOptions) (*T, error) {
	doc, err := s.GetOneOrFail(ctx, opts)
	if err != nil {
		return nil, err
	}

	filter := BuildFilter(opts.Criteria())
	if id := getID(doc); id != nil {
		filter = bson.M{ID: id}
	}

	if err := s.Collection.Delete(ctx, filter); err != nil {
		return nil, err
	}

	return doc, nil
}

func (s *BaseService[T]) RemoveByID(ctx context.Context, id string, errorMessage string) (*T, error) {
	doc, err := s.GetOneByIDOrFail(ctx, id, nil, errorMessage)
	if err != nil {
		return nil, err
	}

	oid, _ := primitive.ObjectIDFromHex(id)
	if err := s.Collection.Delete(ctx, bson.M{ID: oid}); err != nil {
		return nil, err
	}

	return doc, nil
}

// SoftRemove stamps deleted_at through Update. Soft removed documents still
// match later lookups unless the caller filters on deleted_at.
func (s *BaseService[T]) SoftRemove(ctx context.Context, opts common.FindOrFailOptions) (*T, error) {
	return s.Update(ctx, opts, common.Patch{common.FieldDeletedAt: time.Now()})
}

func (s *BaseService[T]) SoftRemoveByID(ctx context.Context, id string, errorMessage string) (*T, error) {
	return s.UpdateByID(ctx, id, common.Patch{common.FieldDeletedAt: time.Now()}, nil, errorMessage)
}

func (s *BaseService[T]) notFound(message string, fields ...zap.Field) error {
	err := common.NotFound(message, s.cfg.notFoundMessage)
	s.log().Debug("MGO/NOT FOUND", append(fields, zap.String("collection", s.Collection.Name()))...)

	return err
}

func (s *BaseService[T]) apply(ctx context.Context, doc *T, filter bson.M, data common.Patch) (*T, error) {
	set := make(bson.M, len(data)+1)
	for _, k := range data.Keys() {
		if _, ok := s.fields[k]; !ok {
			return nil, fmt.Errorf("%w: %s", common.ErrUnknownField, k)
		}
		set[k] = data[k]
	}

	if _, ok := s.fields[common.FieldUpdatedAt]; ok {
		if _, patched := set[common.FieldUpdatedAt]; !patched {
			set[common.FieldUpdatedAt] = time.Now()
		}
	}

	merged, err := mergeDocument(doc, set)
	if err != nil {
		return nil, err
	}

	if err := s.Collection.Patch(ctx, filter, set); err != nil {
		return nil, err
	}

	return merged, nil
}

func (s *BaseService[T]) findOne(ctx context.Context, filter bson.M, relations, order []string) (*T, error) {
	if len(relations) == 0 {
		opts := options.FindOne()
		if len(order) > 0 {
			opts.SetSort(RequestSort(order))
		}

		doc := new(T)
		found, err := s.Collection.GetOne(ctx, filter, doc, opts)
		if err != nil || !found {
			return nil, err
		}

		return doc, nil
	}

	docs, err := s.find(ctx, filter, relations, order, 0, 1)
	if err != nil || len(docs) == 0 {
		return nil, err
	}

	return docs[0], nil
}

func (s *BaseService[T]) find(ctx context.Context, filter bson.M, relations, order []string, skip, limit int64) ([]*T, error) {
	results := []*T{}

	if len(relations) == 0 {
		opts := options.Find()
		if len(order) > 0 {
			opts.SetSort(RequestSort(order))
		}
		if skip > 0 {
			opts.SetSkip(skip)
		}
		if limit > 0 {
			opts.SetLimit(limit)
		}

		if err := s.Collection.Finds(ctx, &results, filter, opts); err != nil {
			return nil, err
		}
	} else {
		pipeline, err := s.pipeline(filter, relations, order, skip, limit)
		if err != nil {
			return nil, err
		}

		if err := s.Collection.Aggregates(ctx, &results, pipeline); err != nil {
			return nil, err
		}
	}

	if results == nil {
		results = []*T{}
	}

	return results, nil
}

// pipeline narrows the documents before joining so that $lookup only runs
// for the requested window.
func (s *BaseService[T]) pipeline(filter bson.M, relations, order []string, skip, limit int64) (mongo.Pipeline, error) {
	p := mongo.Pipeline{{{Key: "$match", Value: filter}}}

	if len(order) > 0 {
		p = append(p, bson.D{{Key: "$sort", Value: RequestSort(order)}})
	}
	if skip > 0 {
		p = append(p, bson.D{{Key: "$skip", Value: skip}})
	}
	if limit > 0 {
		p = append(p, bson.D{{Key: "$limit", Value: limit}})
	}

	for _, name := range relations {
		rel, ok := s.cfg.relations[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", common.ErrUnknownRelation, name)
		}
		p = append(p, rel.stages(name)...)
	}

	return p, nil
}

// mergeDocument overwrites the top level fields of doc with set and decodes
// the result into a new T.
func mergeDocument[T any](doc *T, set bson.M) (*T, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}

	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, err
	}

	for k, v := range set {
		m[k] = v
	}

	if raw, err = bson.Marshal(m); err != nil {
		return nil, err
	}

	merged := new(T)
	if err := bson.Unmarshal(raw, merged); err != nil {
		return nil, err
	}

	return merged, nil
}

// bsonKeys collects the top level document keys of a struct type, following
// inline fields.
func bsonKeys(t reflect.Type, keys map[string]struct{}) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return
	}

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}

		name, opts, _ := strings.Cut(f.Tag.Get("bson"), ",")
		if name == "-" {
			continue
		}

		if strings.Contains(opts, "inline") {
			bsonKeys(f.Type, keys)
			continue
		}

		if name == "" {
			name = strings.ToLower(f.Name)
		}
		keys[name] = struct{}{}
	}
}

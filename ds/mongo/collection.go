package mongo

import (
	"context"
	"errors"
	"reflect"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ID is the default MongoDB document ID field name.
const ID = "_id"

// Collection wraps a MongoDB collection with the context-aware helpers used
// by BaseService.
type Collection struct {
	*mongo.Collection
}

// Model is an alias for any struct representing a MongoDB document.
type Model any

// NewCollection returns a collection of the default database.
func NewCollection(name string, opts ...*options.CollectionOptions) (*Collection, error) {
	if defaultDB == nil {
		return nil, ErrNotConnected
	}

	return &Collection{Collection: defaultDB.Collection(name, opts...)}, nil
}

// WrapCollection wraps a collection obtained from another client.
func WrapCollection(c *mongo.Collection) *Collection {
	return &Collection{Collection: c}
}

// Count returns the number of documents matching the given filter.
func (c *Collection) Count(ctx context.Context, filter any) (int64, error) {
	return c.CountDocuments(ctx, filter)
}

// Create inserts the model and sets the inserted ID back on its ID field.
func (c *Collection) Create(ctx context.Context, model Model, opts ...*options.InsertOneOptions) error {
	res, err := c.InsertOne(ctx, model, opts...)
	if err == nil {
		setID(model, res.InsertedID)
	}
	return err
}

// GetOne decodes the first document matching filter into model. It reports
// false without error when nothing matches.
func (c *Collection) GetOne(ctx context.Context, filter any, model Model, opts ...*options.FindOneOptions) (bool, error) {
	err := c.FindOne(ctx, filter, opts...).Decode(model)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}

	return err == nil, err
}

// Finds decodes every document matching filter into results, a pointer to
// a slice.
func (c *Collection) Finds(ctx context.Context, results any, filter any, opts ...*options.FindOptions) error {
	cur, err := c.Find(ctx, filter, opts...)
	if err != nil {
		return err
	}
	return cur.All(ctx, results)
}

// Aggregates runs pipeline and decodes every output document into results.
func (c *Collection) Aggregates(ctx context.Context, results any, pipeline any, opts ...*options.AggregateOptions) error {
	cur, err := c.Aggregate(ctx, pipeline, opts...)
	if err != nil {
		return err
	}
	return cur.All(ctx, results)
}

// Patch sets the given fields on the first document matching filter.
func (c *Collection) Patch(ctx context.Context, filter any, set bson.M) error {
	_, err := c.UpdateOne(ctx, filter, bson.M{"$set": set})
	return err
}

// Delete removes the first document matching filter.
func (c *Collection) Delete(ctx context.Context, filter any) error {
	_, err := c.DeleteOne(ctx, filter)
	return err
}

// getID retrieves the "ID" field value of a pointer to struct model.
func getID(m Model) any {
	v := reflect.ValueOf(m)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return nil
	}

	idField := v.Elem().FieldByName("ID")
	if !idField.IsValid() || idField.IsZero() {
		return nil
	}
	return idField.Interface()
}

// setID assigns id to the "ID" field of a pointer to struct model.
func setID(m Model, id any) {
	v := reflect.ValueOf(m)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct || id == nil {
		return
	}

	idField := v.Elem().FieldByName("ID")
	if idField.IsValid() && idField.CanSet() {
		idVal := reflect.ValueOf(id)
		if idVal.Type().AssignableTo(idField.Type()) {
			idField.Set(idVal)
		}
	}
}

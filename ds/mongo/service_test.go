package mongo_test

import (
	"context"
	"testing"
	"time"

	"github.com/logistics-id/crud/common"
	ds "github.com/logistics-id/crud/ds/mongo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

type owner struct {
	ds.BaseModel `bson:",inline"`
	Name         string `bson:"name"`
}

type widget struct {
	ds.BaseModel `bson:",inline"`
	Name         string             `bson:"name"`
	Qty          int                `bson:"qty"`
	OwnerID      primitive.ObjectID `bson:"owner_id,omitempty"`
	Owner        *owner             `bson:"owner,omitempty"`
}

var created = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func widgetDoc(id primitive.ObjectID, name string, qty int) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "created_at", Value: created},
		{Key: "updated_at", Value: created},
		{Key: "name", Value: name},
		{Key: "qty", Value: qty},
	}
}

func cursor(mt *mtest.T, docs ...bson.D) bson.D {
	ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
	return mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, docs...)
}

func newService(mt *mtest.T, opts ...ds.Option) *ds.BaseService[widget] {
	return ds.NewBaseService[widget](ds.WrapCollection(mt.Coll), opts...)
}

func TestCreate(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("sets id and timestamps", func(mt *mtest.T) {
		svc := newService(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		w, err := svc.Create(ctx, &widget{Name: "bolt", Qty: 3})
		require.NoError(mt, err)
		assert.False(mt, w.ID.IsZero())
		assert.False(mt, w.CreatedAt.IsZero())
		assert.Equal(mt, w.CreatedAt, w.UpdatedAt)
		assert.Nil(mt, w.DeletedAt)
	})

	mt.Run("nil document", func(mt *mtest.T) {
		_, err := newService(mt).Create(ctx, nil)
		assert.ErrorIs(mt, err, common.ErrNilRecord)
	})
}

func TestCreateMany(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("keeps input order", func(mt *mtest.T) {
		svc := newService(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(), mtest.CreateSuccessResponse(), mtest.CreateSuccessResponse())

		got, err := svc.CreateMany(ctx, []*widget{{Name: "a"}, {Name: "b"}, {Name: "c"}})
		require.NoError(mt, err)
		require.Len(mt, got, 3)
		for i, name := range []string{"a", "b", "c"} {
			assert.Equal(mt, name, got[i].Name)
			assert.False(mt, got[i].ID.IsZero())
		}
	})

	mt.Run("stops at the first failure", func(mt *mtest.T) {
		svc := newService(mt)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key error"}),
		)
		mt.ClearEvents()

		got, err := svc.CreateMany(ctx, []*widget{{Name: "a"}, {Name: "a"}, {Name: "c"}})
		require.Error(mt, err)
		require.Len(mt, got, 1)
		assert.Equal(mt, "a", got[0].Name)

		assert.Equal(mt, "insert", mt.GetStartedEvent().CommandName)
		assert.Equal(mt, "insert", mt.GetStartedEvent().CommandName)
		assert.Nil(mt, mt.GetStartedEvent(), "third insert must not be sent")
	})
}

func TestGetOne(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	id := primitive.NewObjectID()

	mt.Run("returns the match", func(mt *mtest.T) {
		svc := newService(mt)
		mt.AddMockResponses(cursor(mt, widgetDoc(id, "bolt", 3)))

		w, err := svc.GetOne(ctx, common.FindOptions{Where: common.Filter{"name": "bolt"}})
		require.NoError(mt, err)
		require.NotNil(mt, w)
		assert.Equal(mt, id, w.ID)
		assert.Equal(mt, 3, w.Qty)
	})

	mt.Run("absent is not an error", func(mt *mtest.T) {
		svc := newService(mt)
		mt.AddMockResponses(cursor(mt))

		w, err := svc.GetOne(ctx, common.FindOptions{Where: common.Filter{"name": "nut"}})
		require.NoError(mt, err)
		assert.Nil(mt, w)
	})

	mt.Run("or fail uses the default message", func(mt *mtest.T) {
		svc := newService(mt)
		mt.AddMockResponses(cursor(mt))

		_, err := svc.GetOneOrFail(ctx, common.FindOrFailOptions{FindOptions: common.FindOptions{Where: common.Filter{"name": "nut"}}})
		require.True(mt, common.IsNotFound(err))
		assert.EqualError(mt, err, common.DefaultDocumentNotFoundMessage)
	})

	mt.Run("or fail uses the caller message", func(mt *mtest.T) {
		svc := newService(mt)
		mt.AddMockResponses(cursor(mt))

		_, err := svc.GetOneOrFail(ctx, common.FindOrFailOptions{
			FindOptions:  common.FindOptions{Where: common.Filter{"name": "nut"}},
			ErrorMessage: "widget missing",
		})
		assert.EqualError(mt, err, "widget missing")
	})

	mt.Run("service wide message", func(mt *mtest.T) {
		svc := newService(mt, ds.WithNotFoundMessage("Widget not found"))
		mt.AddMockResponses(cursor(mt))

		_, err := svc.GetOneByIDOrFail(ctx, id.Hex(), nil, "")
		assert.EqualError(mt, err, "Widget not found")
	})
}

func TestGetOneByID(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	id := primitive.NewObjectID()

	mt.Run("found", func(mt *mtest.T) {
		svc := newService(mt)
		mt.AddMockResponses(cursor(mt, widgetDoc(id, "bolt", 3)))

		w, err := svc.GetOneByIDOrFail(ctx, id.Hex(), nil, "")
		require.NoError(mt, err)
		assert.Equal(mt, "bolt", w.Name)
	})

	mt.Run("malformed id is absent", func(mt *mtest.T) {
		svc := newService(mt)
		mt.ClearEvents()

		w, err := svc.GetOneByID(ctx, "nonexistent")
		require.NoError(mt, err)
		assert.Nil(mt, w)
		assert.Nil(mt, mt.GetStartedEvent())
	})

	mt.Run("or fail on malformed id", func(mt *mtest.T) {
		_, err := newService(mt).GetOneByIDOrFail(ctx, "nonexistent", nil, "")
		require.True(mt, common.IsNotFound(err))
		assert.EqualError(mt, err, "Document not found")
	})

	mt.Run("unknown id", func(mt *mtest.T) {
		svc := newService(mt)
		mt.AddMockResponses(cursor(mt))

		w, err := svc.GetOneByID(ctx, id.Hex())
		require.NoError(mt, err)
		assert.Nil(mt, w)
	})
}

func TestRelations(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	id, ownerID := primitive.NewObjectID(), primitive.NewObjectID()

	withOwner := ds.WithRelation("owner", ds.Relation{From: "owners", LocalField: "owner_id", Single: true})

	mt.Run("joins registered relations", func(mt *mtest.T) {
		svc := newService(mt, withOwner)

		doc := append(widgetDoc(id, "bolt", 3),
			bson.E{Key: "owner_id", Value: ownerID},
			bson.E{Key: "owner", Value: bson.D{{Key: "_id", Value: ownerID}, {Key: "name", Value: "acme"}}},
		)
		mt.AddMockResponses(cursor(mt, doc))
		mt.ClearEvents()

		w, err := svc.GetOneByID(ctx, id.Hex(), "owner")
		require.NoError(mt, err)
		require.NotNil(mt, w.Owner)
		assert.Equal(mt, "acme", w.Owner.Name)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "aggregate", evt.CommandName)

		stages, err := evt.Command.Lookup("pipeline").Array().Values()
		require.NoError(mt, err)
		require.Len(mt, stages, 4)
		assert.Equal(mt, "$match", stages[0].Document().Index(0).Key())
		assert.Equal(mt, "$limit", stages[1].Document().Index(0).Key())
		assert.Equal(mt, "$lookup", stages[2].Document().Index(0).Key())
		assert.Equal(mt, "$unwind", stages[3].Document().Index(0).Key())
	})

	mt.Run("unknown relation", func(mt *mtest.T) {
		svc := newService(mt)

		_, err := svc.GetAll(ctx, common.FindOptions{Relations: []string{"owner"}})
		assert.ErrorIs(mt, err, common.ErrUnknownRelation)
	})
}

func TestGetAll(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("returns every match", func(mt *mtest.T) {
		svc := newService(mt)
		mt.AddMockResponses(cursor(mt,
			widgetDoc(primitive.NewObjectID(), "a", 1),
			widgetDoc(primitive.NewObjectID(), "b", 2),
		))

		got, err := svc.GetAll(ctx, common.FindOptions{})
		require.NoError(mt, err)
		require.Len(mt, got, 2)
		assert.Equal(mt, "a", got[0].Name)
		assert.Equal(mt, "b", got[1].Name)
	})

	mt.Run("empty slice when nothing matches", func(mt *mtest.T) {
		svc := newService(mt)
		mt.AddMockResponses(cursor(mt))

		got, err := svc.GetAll(ctx, common.FindOptions{Where: common.Filter{"name": "x"}})
		require.NoError(mt, err)
		assert.NotNil(mt, got)
		assert.Empty(mt, got)
	})
}

func TestGetAllWithPagination(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("empty collection", func(mt *mtest.T) {
		svc := newService(mt)
		mt.AddMockResponses(cursor(mt), cursor(mt))

		p, err := svc.GetAllWithPagination(ctx, common.FindWithPaginationOptions{Limit: 10, Page: 1})
		require.NoError(mt, err)
		assert.Empty(mt, p.Data)
		assert.NotNil(mt, p.Data)
		assert.Equal(mt, common.PaginationMeta{Limit: 10, Page: 1, Total: 0}, p.Pagination)
	})

	mt.Run("counts then fetches the window", func(mt *mtest.T) {
		svc := newService(mt)
		mt.AddMockResponses(
			cursor(mt, bson.D{{Key: "n", Value: int32(5)}}),
			cursor(mt, widgetDoc(primitive.NewObjectID(), "c", 3), widgetDoc(primitive.NewObjectID(), "d", 4)),
		)
		mt.ClearEvents()

		p, err := svc.GetAllWithPagination(ctx, common.FindWithPaginationOptions{Limit: 2, Page: 2})
		require.NoError(mt, err)
		assert.Len(mt, p.Data, 2)
		assert.Equal(mt, common.PaginationMeta{Limit: 2, Page: 2, Total: 5}, p.Pagination)

		assert.Equal(mt, "aggregate", mt.GetStartedEvent().CommandName)

		find := mt.GetStartedEvent()
		require.Equal(mt, "find", find.CommandName)
		assert.EqualValues(mt, 2, find.Command.Lookup("skip").AsInt64())
		assert.EqualValues(mt, 2, find.Command.Lookup("limit").AsInt64())
	})

	mt.Run("rejects page zero", func(mt *mtest.T) {
		_, err := newService(mt).GetAllWithPagination(ctx, common.FindWithPaginationOptions{Limit: 10})
		assert.ErrorIs(mt, err, common.ErrInvalidPagination)
	})
}

func TestUpdate(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	id := primitive.NewObjectID()

	mt.Run("returns the merged document", func(mt *mtest.T) {
		svc := newService(mt)
		mt.AddMockResponses(cursor(mt, widgetDoc(id, "old", 3)), mtest.CreateSuccessResponse())
		mt.ClearEvents()

		w, err := svc.Update(ctx,
			common.FindOrFailOptions{FindOptions: common.FindOptions{Where: common.Filter{"id": id.Hex()}}},
			common.Patch{"name": "new"},
		)
		require.NoError(mt, err)
		assert.Equal(mt, id, w.ID)
		assert.Equal(mt, "new", w.Name)
		assert.Equal(mt, 3, w.Qty)
		assert.True(mt, created.Equal(w.CreatedAt))
		assert.True(mt, w.UpdatedAt.After(created))

		assert.Equal(mt, "find", mt.GetStartedEvent().CommandName)
		assert.Equal(mt, "update", mt.GetStartedEvent().CommandName)
	})

	mt.Run("unknown field is rejected before writing", func(mt *mtest.T) {
		svc := newService(mt)
		mt.AddMockResponses(cursor(mt, widgetDoc(id, "old", 3)))
		mt.ClearEvents()

		_, err := svc.UpdateByID(ctx, id.Hex(), common.Patch{"colour": "red"}, nil, "")
		assert.ErrorIs(mt, err, common.ErrUnknownField)

		assert.Equal(mt, "find", mt.GetStartedEvent().CommandName)
		assert.Nil(mt, mt.GetStartedEvent())
	})

	mt.Run("not found", func(mt *mtest.T) {
		svc := newService(mt)
		mt.AddMockResponses(cursor(mt))

		_, err := svc.UpdateByID(ctx, id.Hex(), common.Patch{"name": "new"}, nil, "gone")
		assert.EqualError(mt, err, "gone")
		assert.True(mt, common.IsNotFound(err))
	})
}

func TestSoftRemove(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	id := primitive.NewObjectID()

	mt.Run("stamps deleted_at only", func(mt *mtest.T) {
		svc := newService(mt)
		mt.AddMockResponses(cursor(mt, widgetDoc(id, "bolt", 3)), mtest.CreateSuccessResponse())

		w, err := svc.SoftRemoveByID(ctx, id.Hex(), "")
		require.NoError(mt, err)
		require.NotNil(mt, w.DeletedAt)
		assert.True(mt, w.IsDeleted())
		assert.Equal(mt, id, w.ID)
		assert.Equal(mt, "bolt", w.Name)
		assert.Equal(mt, 3, w.Qty)
	})

	mt.Run("by filter", func(mt *mtest.T) {
		svc := newService(mt)
		mt.AddMockResponses(cursor(mt, widgetDoc(id, "bolt", 3)), mtest.CreateSuccessResponse())

		w, err := svc.SoftRemove(ctx, common.FindOrFailOptions{FindOptions: common.FindOptions{Where: common.Filter{"name": "bolt"}}})
		require.NoError(mt, err)
		assert.NotNil(mt, w.DeletedAt)
	})
}

func TestRemove(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	id := primitive.NewObjectID()

	mt.Run("returns the removed document", func(mt *mtest.T) {
		svc := newService(mt)
		mt.AddMockResponses(cursor(mt, widgetDoc(id, "bolt", 3)), mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		mt.ClearEvents()

		w, err := svc.RemoveByID(ctx, id.Hex(), "")
		require.NoError(mt, err)
		assert.Equal(mt, "bolt", w.Name)

		assert.Equal(mt, "find", mt.GetStartedEvent().CommandName)
		assert.Equal(mt, "delete", mt.GetStartedEvent().CommandName)
	})

	mt.Run("not found", func(mt *mtest.T) {
		svc := newService(mt)
		mt.AddMockResponses(cursor(mt))

		_, err := svc.Remove(ctx, common.FindOrFailOptions{FindOptions: common.FindOptions{Where: common.Filter{"name": "x"}}})
		assert.EqualError(mt, err, "Document not found")
	})
}

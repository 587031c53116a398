package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/anonto42/nano-midea/client/internal/models"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newDocumentRepo(mt *mtest.T) *MongoDocumentRepository {
	r := NewMongoDocumentRepository(mt.DB)
	r.now = func() time.Time { return fixedNow }
	return r
}

func postDoc(id, creator string, updated time.Time) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "creator", Value: creator},
		{Key: "caption", Value: "caption " + id},
		{Key: "likes", Value: bson.A{"u1", "u2"}},
		{Key: models.FieldCreatedAt, Value: primitive.NewDateTimeFromTime(updated)},
		{Key: models.FieldUpdatedAt, Value: primitive.NewDateTimeFromTime(updated)},
	}
}

func TestMongoDocumentRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("ensure indexes", func(mt *mtest.T) {
		r := newDocumentRepo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(), mtest.CreateSuccessResponse(), mtest.CreateSuccessResponse())
		require.NoError(mt, r.EnsureIndexes(ctx))
	})

	mt.Run("create", func(mt *mtest.T) {
		r := newDocumentRepo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		doc, err := r.Create(ctx, models.CollectionPosts, "p1", map[string]any{"creator": "u1", "tags": []string{"a"}})
		require.NoError(mt, err)
		assert.Equal(mt, "p1", doc.ID)
		assert.Equal(mt, fixedNow, doc.CreatedAt)
		assert.Equal(mt, "u1", doc.String("creator"))
		assert.Equal(mt, []string{"a"}, doc.Strings("tags"))
	})

	mt.Run("create duplicate", func(mt *mtest.T) {
		r := newDocumentRepo(mt)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key error"}))

		_, err := r.Create(ctx, models.CollectionPosts, "p1", map[string]any{"creator": "u1"})
		assert.ErrorIs(mt, err, ErrConflict)
	})

	mt.Run("get", func(mt *mtest.T) {
		r := newDocumentRepo(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "app.posts", mtest.FirstBatch, postDoc("p1", "u1", fixedNow)))

		doc, err := r.Get(ctx, models.CollectionPosts, "p1")
		require.NoError(mt, err)
		assert.Equal(mt, "p1", doc.ID)
		assert.Equal(mt, fixedNow, doc.UpdatedAt)
		assert.Equal(mt, []string{"u1", "u2"}, doc.Strings("likes"))

		post, err := models.PostFromDocument(doc)
		require.NoError(mt, err)
		assert.Equal(mt, "caption p1", post.Caption)
	})

	mt.Run("get missing", func(mt *mtest.T) {
		r := newDocumentRepo(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "app.posts", mtest.FirstBatch))

		_, err := r.Get(ctx, models.CollectionPosts, "nope")
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("list first page", func(mt *mtest.T) {
		r := newDocumentRepo(mt)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "app.posts", mtest.FirstBatch, bson.D{{Key: "n", Value: int32(3)}}),
			mtest.CreateCursorResponse(0, "app.posts", mtest.FirstBatch,
				postDoc("p3", "u1", fixedNow),
				postDoc("p2", "u1", fixedNow.Add(-time.Minute)),
			),
		)

		list, err := r.List(ctx, models.CollectionPosts, models.Query{
			OrderDesc: models.FieldUpdatedAt,
			Filters:   []models.Filter{{Field: "creator", Value: "u1"}},
			Limit:     2,
		})
		require.NoError(mt, err)
		assert.Equal(mt, 3, list.Total)
		require.Len(mt, list.Documents, 2)
		assert.Equal(mt, "p3", list.Documents[0].ID)
		assert.Equal(mt, "p2", list.Documents[1].ID)
	})

	mt.Run("list after cursor", func(mt *mtest.T) {
		r := newDocumentRepo(mt)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "app.posts", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: "p2"},
				{Key: models.FieldUpdatedAt, Value: primitive.NewDateTimeFromTime(fixedNow.Add(-time.Minute))},
			}),
			mtest.CreateCursorResponse(0, "app.posts", mtest.FirstBatch, bson.D{{Key: "n", Value: int32(3)}}),
			mtest.CreateCursorResponse(0, "app.posts", mtest.FirstBatch, postDoc("p1", "u1", fixedNow.Add(-time.Hour))),
		)

		list, err := r.List(ctx, models.CollectionPosts, models.Query{
			OrderDesc:   models.FieldUpdatedAt,
			CursorAfter: "p2",
			Limit:       2,
		})
		require.NoError(mt, err)
		require.Len(mt, list.Documents, 1)
		assert.Equal(mt, "p1", list.Documents[0].ID)
	})

	mt.Run("list unknown cursor", func(mt *mtest.T) {
		r := newDocumentRepo(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "app.posts", mtest.FirstBatch))

		_, err := r.List(ctx, models.CollectionPosts, models.Query{OrderDesc: models.FieldUpdatedAt, CursorAfter: "gone"})
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("update", func(mt *mtest.T) {
		r := newDocumentRepo(mt)
		updated := postDoc("p1", "u1", fixedNow)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: updated}))

		doc, err := r.Update(ctx, models.CollectionPosts, "p1", map[string]any{"likes": []string{"u1", "u2"}})
		require.NoError(mt, err)
		assert.Equal(mt, []string{"u1", "u2"}, doc.Strings("likes"))
	})

	mt.Run("update missing", func(mt *mtest.T) {
		r := newDocumentRepo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		_, err := r.Update(ctx, models.CollectionPosts, "nope", map[string]any{"caption": "x"})
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("delete", func(mt *mtest.T) {
		r := newDocumentRepo(mt)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(1)}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(0)}),
		)

		require.NoError(mt, r.Delete(ctx, models.CollectionSaves, "s1"))
		assert.ErrorIs(mt, r.Delete(ctx, models.CollectionSaves, "s1"), ErrNotFound)
	})
}

func TestToDocumentRejectsMissingID(t *testing.T) {
	_, err := toDocument(models.CollectionUsers, bson.M{"email": "a@b.c"})
	assert.ErrorIs(t, err, models.ErrMalformedDocument)
}

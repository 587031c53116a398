package repositories

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/anonto42/nano-midea/client/internal/models"
)

// MongoDocumentRepository stores the users, posts and saves collections in MongoDB.
// Every document has a string _id plus createdAt and updatedAt maintained here.
type MongoDocumentRepository struct {
	db  *mongo.Database
	now func() time.Time
}

// NewMongoDocumentRepository creates a new MongoDocumentRepository
func NewMongoDocumentRepository(db *mongo.Database) *MongoDocumentRepository {
	return &MongoDocumentRepository{db: db, now: time.Now}
}

// EnsureIndexes creates the indexes backing the list queries
func (r *MongoDocumentRepository) EnsureIndexes(ctx context.Context) error {
	recent := bson.D{{Key: models.FieldUpdatedAt, Value: -1}, {Key: "_id", Value: -1}}
	indexes := map[string][]mongo.IndexModel{
		models.CollectionPosts: {
			{Keys: recent},
			{Keys: bson.D{{Key: "creator", Value: 1}, {Key: models.FieldUpdatedAt, Value: -1}}},
		},
		models.CollectionUsers: {
			{Keys: bson.D{{Key: "accountId", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		models.CollectionSaves: {
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "post", Value: 1}}},
		},
	}
	for _, coll := range []string{models.CollectionPosts, models.CollectionUsers, models.CollectionSaves} {
		if _, err := r.db.Collection(coll).Indexes().CreateMany(ctx, indexes[coll]); err != nil {
			return fmt.Errorf("create %s indexes: %w", coll, translateMongo(err))
		}
	}
	return nil
}

// Create inserts a document with the given id
func (r *MongoDocumentRepository) Create(ctx context.Context, collection, id string, fields map[string]any) (*models.Document, error) {
	now := r.now().UTC().Truncate(time.Millisecond)
	raw := bson.M{}
	for k, v := range fields {
		raw[k] = v
	}
	raw["_id"] = id
	raw[models.FieldCreatedAt] = now
	raw[models.FieldUpdatedAt] = now

	if _, err := r.db.Collection(collection).InsertOne(ctx, raw); err != nil {
		return nil, translateMongo(err)
	}
	return toDocument(collection, raw)
}

// Get fetches a document by id. With a projection only the named fields are returned.
func (r *MongoDocumentRepository) Get(ctx context.Context, collection, id string, projection ...string) (*models.Document, error) {
	opts := options.FindOne()
	if len(projection) > 0 {
		p := bson.M{models.FieldCreatedAt: 1, models.FieldUpdatedAt: 1}
		for _, f := range projection {
			p[f] = 1
		}
		opts.SetProjection(p)
	}

	var raw bson.M
	if err := r.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}, opts).Decode(&raw); err != nil {
		return nil, translateMongo(err)
	}
	return toDocument(collection, raw)
}

// List runs a query. Results are ordered by q.OrderDesc (then _id) descending;
// CursorAfter resumes after the document with that id.
func (r *MongoDocumentRepository) List(ctx context.Context, collection string, q models.Query) (*models.DocumentList, error) {
	coll := r.db.Collection(collection)

	filter := bson.M{}
	for _, f := range q.Filters {
		filter[f.Field] = f.Value
	}
	if q.Search != nil {
		filter[q.Search.Field] = bson.M{"$regex": regexp.QuoteMeta(q.Search.Term), "$options": "i"}
	}

	page := bson.M{}
	for k, v := range filter {
		page[k] = v
	}
	if q.CursorAfter != "" {
		after, err := r.cursorFilter(ctx, coll, q)
		if err != nil {
			return nil, err
		}
		for k, v := range after {
			page[k] = v
		}
	}

	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, translateMongo(err)
	}

	sort := bson.D{{Key: "_id", Value: -1}}
	if q.OrderDesc != "" {
		sort = bson.D{{Key: q.OrderDesc, Value: -1}, {Key: "_id", Value: -1}}
	}
	findOptions := options.Find().SetSort(sort)
	if q.Limit > 0 {
		findOptions.SetLimit(int64(q.Limit))
	}

	cursor, err := coll.Find(ctx, page, findOptions)
	if err != nil {
		return nil, translateMongo(err)
	}
	defer cursor.Close(ctx)

	var raws []bson.M
	if err = cursor.All(ctx, &raws); err != nil {
		return nil, translateMongo(err)
	}

	list := &models.DocumentList{Total: int(total), Documents: make([]models.Document, 0, len(raws))}
	for _, raw := range raws {
		doc, err := toDocument(collection, raw)
		if err != nil {
			return nil, err
		}
		list.Documents = append(list.Documents, *doc)
	}
	return list, nil
}

// cursorFilter selects documents strictly after the cursor document in sort order
func (r *MongoDocumentRepository) cursorFilter(ctx context.Context, coll *mongo.Collection, q models.Query) (bson.M, error) {
	if q.OrderDesc == "" {
		return bson.M{"_id": bson.M{"$lt": q.CursorAfter}}, nil
	}

	var anchor bson.M
	opts := options.FindOne().SetProjection(bson.M{q.OrderDesc: 1})
	if err := coll.FindOne(ctx, bson.M{"_id": q.CursorAfter}, opts).Decode(&anchor); err != nil {
		return nil, fmt.Errorf("cursor %s: %w", q.CursorAfter, translateMongo(err))
	}
	v := anchor[q.OrderDesc]
	return bson.M{"$or": bson.A{
		bson.M{q.OrderDesc: bson.M{"$lt": v}},
		bson.M{q.OrderDesc: v, "_id": bson.M{"$lt": q.CursorAfter}},
	}}, nil
}

// Update sets fields on a document and returns the updated document
func (r *MongoDocumentRepository) Update(ctx context.Context, collection, id string, fields map[string]any) (*models.Document, error) {
	set := bson.M{}
	for k, v := range fields {
		set[k] = v
	}
	set[models.FieldUpdatedAt] = r.now().UTC().Truncate(time.Millisecond)

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var raw bson.M
	err := r.db.Collection(collection).FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&raw)
	if err != nil {
		return nil, translateMongo(err)
	}
	return toDocument(collection, raw)
}

// Delete removes a document by id
func (r *MongoDocumentRepository) Delete(ctx context.Context, collection, id string) error {
	res, err := r.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translateMongo(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func translateMongo(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case mongo.IsTimeout(err), mongo.IsNetworkError(err), errors.Is(err, mongo.ErrClientDisconnected):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		return err
	}
}

func toDocument(collection string, raw bson.M) (*models.Document, error) {
	doc := &models.Document{Collection: collection, Fields: make(map[string]any, len(raw))}
	for k, v := range raw {
		switch k {
		case "_id":
			switch id := v.(type) {
			case string:
				doc.ID = id
			case primitive.ObjectID:
				doc.ID = id.Hex()
			}
		case models.FieldCreatedAt:
			doc.CreatedAt = toTime(v)
		case models.FieldUpdatedAt:
			doc.UpdatedAt = toTime(v)
		default:
			doc.Fields[k] = normalize(v)
		}
	}
	if doc.ID == "" {
		return nil, fmt.Errorf("%w: %s document without a usable _id", models.ErrMalformedDocument, collection)
	}
	return doc, nil
}

func toTime(v any) time.Time {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC()
	case time.Time:
		return t.UTC()
	}
	return time.Time{}
}

// normalize turns driver types into plain Go values
func normalize(v any) any {
	switch t := v.(type) {
	case primitive.A:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.ObjectID:
		return t.Hex()
	case bson.M:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = normalize(item)
		}
		return out
	case primitive.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalize(e.Value)
		}
		return out
	default:
		return v
	}
}

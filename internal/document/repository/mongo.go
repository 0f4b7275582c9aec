package repository

import (
	"context"
	"regexp"
	"time"

	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/document"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepo implements Repository on the "documents" collection. Documents are
// stored whole, version history included, so a content change and its
// version record land in one write.
type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(db *mongo.Database) *MongoRepo {
	return &MongoRepo{col: db.Collection("documents")}
}

// EnsureIndexes creates the per-workspace unique name index and list/search lookups.
func (m *MongoRepo) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "workspaceId", Value: 1}, {Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_document_workspace_name"),
		},
		{
			Keys:    bson.D{{Key: "workspaceId", Value: 1}, {Key: "deleted", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("idx_document_workspace_deleted"),
		},
		{
			Keys:    bson.D{{Key: "tags", Value: 1}},
			Options: options.Index().SetName("idx_document_tags"),
		},
		{
			Keys:    bson.D{{Key: "ownerId", Value: 1}},
			Options: options.Index().SetName("idx_document_owner"),
		},
	}
	_, err := m.col.Indexes().CreateMany(ctx, indexes)
	return err
}

func (m *MongoRepo) Create(ctx context.Context, doc *document.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	doc.UpdatedAt = doc.CreatedAt
	doc.Rev = 1
	if _, err := m.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateName
		}
		return err
	}
	return nil
}

func (m *MongoRepo) Get(ctx context.Context, id string) (*document.Document, error) {
	var d document.Document
	err := m.col.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (m *MongoRepo) Update(ctx context.Context, doc *document.Document, expectedRev int64) error {
	next := doc.Clone()
	next.Rev = expectedRev + 1
	res, err := m.col.ReplaceOne(ctx, bson.M{"_id": doc.ID, "rev": expectedRev}, next)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateName
		}
		return err
	}
	if res.MatchedCount == 0 {
		return m.missOrConflict(ctx, doc.ID)
	}
	doc.Rev = next.Rev
	return nil
}

func (m *MongoRepo) Delete(ctx context.Context, id string, expectedRev int64) error {
	res, err := m.col.DeleteOne(ctx, bson.M{"_id": id, "rev": expectedRev})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return m.missOrConflict(ctx, id)
	}
	return nil
}

func (m *MongoRepo) missOrConflict(ctx context.Context, id string) error {
	n, err := m.col.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

func (m *MongoRepo) List(ctx context.Context, f Filter) ([]*document.Document, error) {
	filter := bson.M{}
	if f.WorkspaceID != "" {
		filter["workspaceId"] = f.WorkspaceID
	}
	switch f.Deleted {
	case OnlyDeleted:
		filter["deleted"] = true
	case IncludeDeleted:
	default:
		filter["deleted"] = false
	}
	if f.Metadata != "" {
		filter["metadata"] = bson.M{"$regex": regexp.QuoteMeta(f.Metadata), "$options": "i"}
	}
	if len(f.Tags) > 0 {
		filter["tags"] = bson.M{"$all": f.Tags}
	}

	sortBy := f.SortBy
	if !SortFields[sortBy] {
		sortBy = "createdAt"
	}
	dir := 1
	if f.Desc {
		dir = -1
	}
	opts := options.Find().SetSort(bson.D{{Key: sortBy, Value: dir}, {Key: "_id", Value: dir}})
	if f.Offset > 0 {
		opts.SetSkip(int64(f.Offset))
	}
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}

	cur, err := m.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*document.Document{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MongoRepo) CountByWorkspaces(ctx context.Context, workspaceIDs []string) (int64, int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"workspaceId": bson.M{"$in": workspaceIDs}}}},
		{{Key: "$group", Value: bson.M{"_id": "$deleted", "n": bson.M{"$sum": 1}}}},
	}
	cur, err := m.col.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, 0, err
	}
	defer cur.Close(ctx)
	var rows []struct {
		Deleted bool  `bson:"_id"`
		N       int64 `bson:"n"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return 0, 0, err
	}
	var active, recycled int64
	for _, r := range rows {
		if r.Deleted {
			recycled = r.N
		} else {
			active = r.N
		}
	}
	return active, recycled, nil
}

package repository

import (
	"context"
	"time"

	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/workspace"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepo implements Repository on the "workspaces" collection.
type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(db *mongo.Database) *MongoRepo {
	return &MongoRepo{col: db.Collection("workspaces")}
}

// EnsureIndexes creates the unique name index and the membership lookups.
func (m *MongoRepo) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_workspace_name"),
		},
		{
			Keys:    bson.D{{Key: "ownerId", Value: 1}, {Key: "deleted", Value: 1}},
			Options: options.Index().SetName("idx_workspace_owner"),
		},
		{
			Keys:    bson.D{{Key: "collaborators.collaboratorId", Value: 1}},
			Options: options.Index().SetName("idx_workspace_collaborator"),
		},
	}
	_, err := m.col.Indexes().CreateMany(ctx, indexes)
	return err
}

func (m *MongoRepo) Create(ctx context.Context, ws *workspace.Workspace) error {
	if ws.ID == "" {
		ws.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	ws.CreatedAt = now
	ws.UpdatedAt = now
	ws.Rev = 1
	if _, err := m.col.InsertOne(ctx, ws); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateName
		}
		return err
	}
	return nil
}

func (m *MongoRepo) Get(ctx context.Context, id string) (*workspace.Workspace, error) {
	var w workspace.Workspace
	err := m.col.FindOne(ctx, bson.M{"_id": id}).Decode(&w)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &w, nil
}

func (m *MongoRepo) Update(ctx context.Context, ws *workspace.Workspace, expectedRev int64) error {
	now := time.Now().UTC()
	set := bson.M{
		"name":          ws.Name,
		"description":   ws.Description,
		"visibility":    ws.Visibility,
		"collaborators": ws.Collaborators,
		"deleted":       ws.Deleted,
		"updatedAt":     now,
		"rev":           expectedRev + 1,
	}
	res, err := m.col.UpdateOne(ctx, bson.M{"_id": ws.ID, "rev": expectedRev}, bson.M{"$set": set})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateName
		}
		return err
	}
	if res.MatchedCount == 0 {
		// distinguish a vanished row from a lost race
		n, err := m.col.CountDocuments(ctx, bson.M{"_id": ws.ID})
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrConflict
	}
	ws.Rev = expectedRev + 1
	ws.UpdatedAt = now
	return nil
}

func (m *MongoRepo) ListForUser(ctx context.Context, userID string) ([]*workspace.Workspace, error) {
	filter := bson.M{
		"deleted": false,
		"$or": bson.A{
			bson.M{"ownerId": userID},
			bson.M{"collaborators.collaboratorId": userID},
		},
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cur, err := m.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*workspace.Workspace{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

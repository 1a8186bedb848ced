package ranking

import (
	"context"
	"errors"

	"studyhall-session-svc/src/clients"
	"studyhall-session-svc/src/internal/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type SnapshotRepository interface {
	InsertSnapshot(ctx context.Context, snapshot *models.RankingSnapshot) error
	GetSnapshot(ctx context.Context, roomID string) (*models.RankingSnapshot, error)
}

type snapshotRepository struct {
	collection *mongo.Collection
}

func NewSnapshotRepository(db *clients.MongoDB, collectionName string) SnapshotRepository {
	return &snapshotRepository{collection: db.Database.Collection(collectionName)}
}

// InsertSnapshot persists the leaderboard once per room; the room id is
// the document id, so a second save is rejected as a duplicate.
func (r *snapshotRepository) InsertSnapshot(ctx context.Context, snapshot *models.RankingSnapshot) error {
	_, err := r.collection.InsertOne(ctx, snapshot)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.ErrSnapshotExists
		}
		logrus.WithError(err).WithField("room_id", snapshot.RoomID).Error("Failed to insert ranking snapshot")
		return models.ErrDatabaseInsert
	}
	return nil
}

func (r *snapshotRepository) GetSnapshot(ctx context.Context, roomID string) (*models.RankingSnapshot, error) {
	var snapshot models.RankingSnapshot
	err := r.collection.FindOne(ctx, bson.M{"_id": roomID}).Decode(&snapshot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to get ranking snapshot")
		return nil, models.ErrDatabaseQuery
	}
	return &snapshot, nil
}

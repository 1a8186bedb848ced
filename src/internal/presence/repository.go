package presence

import (
	"context"
	"time"

	"studyhall-session-svc/src/clients"
	"studyhall-session-svc/src/internal/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	InsertStay(ctx context.Context, stay *models.Stay) error
	CloseStayByID(ctx context.Context, stayID string, endAt time.Time, reason string) (bool, error)
	FindOpenStays(ctx context.Context, roomID, userID string, limit int) ([]*models.Stay, error)
	FindStaysByRoom(ctx context.Context, roomID string) ([]*models.Stay, error)
}

type stayRepository struct {
	collection *mongo.Collection
}

func NewStayRepository(db *clients.MongoDB, collectionName string) Repository {
	return &stayRepository{collection: db.Database.Collection(collectionName)}
}

func (r *stayRepository) InsertStay(ctx context.Context, stay *models.Stay) error {
	if _, err := r.collection.InsertOne(ctx, stay); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"room_id": stay.RoomID,
			"user_id": stay.UserID,
		}).Error("Failed to insert stay")
		return models.ErrDatabaseInsert
	}
	return nil
}

// CloseStayByID stamps end_at on a single still-open stay. Returns false
// when the stay does not exist or was already closed.
func (r *stayRepository) CloseStayByID(ctx context.Context, stayID string, endAt time.Time, reason string) (bool, error) {
	filter := bson.M{
		"_id":    stayID,
		"end_at": bson.M{"$exists": false},
	}

	update := bson.M{
		"$set": bson.M{
			"end_at": endAt,
			"reason": reason,
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		logrus.WithError(err).WithField("stay_id", stayID).Error("Failed to close stay")
		return false, models.ErrDatabaseUpdate
	}

	return result.ModifiedCount > 0, nil
}

// FindOpenStays returns the most recent open stays for the pair, newest
// first, bounded by limit to keep the repair scan small.
func (r *stayRepository) FindOpenStays(ctx context.Context, roomID, userID string, limit int) ([]*models.Stay, error) {
	filter := bson.M{
		"room_id": roomID,
		"user_id": userID,
		"end_at":  bson.M{"$exists": false},
	}

	opts := options.Find().
		SetSort(bson.M{"start_at": -1}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"room_id": roomID,
			"user_id": userID,
		}).Error("Failed to find open stays")
		return nil, models.ErrDatabaseQuery
	}
	defer cursor.Close(ctx)

	return decodeStays(ctx, cursor)
}

func (r *stayRepository) FindStaysByRoom(ctx context.Context, roomID string) ([]*models.Stay, error) {
	filter := bson.M{"room_id": roomID}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to find stays for room")
		return nil, models.ErrDatabaseQuery
	}
	defer cursor.Close(ctx)

	return decodeStays(ctx, cursor)
}

func decodeStays(ctx context.Context, cursor *mongo.Cursor) ([]*models.Stay, error) {
	var stays []*models.Stay
	for cursor.Next(ctx) {
		var stay models.Stay
		if err := cursor.Decode(&stay); err != nil {
			logrus.WithError(err).Error("Failed to decode stay")
			continue
		}
		stays = append(stays, &stay)
	}

	if err := cursor.Err(); err != nil {
		logrus.WithError(err).Error("Cursor error")
		return nil, models.ErrDatabaseQuery
	}

	return stays, nil
}

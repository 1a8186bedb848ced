package room

import (
	"context"
	"errors"
	"time"

	"studyhall-session-svc/src/clients"
	"studyhall-session-svc/src/internal/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Create(ctx context.Context, room *models.Room) error
	GetByID(ctx context.Context, roomID string) (*models.Room, error)
	AddMember(ctx context.Context, roomID, userID string) error
	MarkEnded(ctx context.Context, roomID string, forced bool, endedAt time.Time) (*models.Room, bool, error)
	ClaimTerminationHandle(ctx context.Context, roomID, handle string) (bool, error)
	ReleaseTerminationHandle(ctx context.Context, roomID, handle string) error
}

type roomRepository struct {
	collection *mongo.Collection
}

func NewRoomRepository(db *clients.MongoDB, collectionName string) Repository {
	return &roomRepository{collection: db.Database.Collection(collectionName)}
}

func (r *roomRepository) Create(ctx context.Context, room *models.Room) error {
	if _, err := r.collection.InsertOne(ctx, room); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.ErrDuplicateRecord
		}
		logrus.WithError(err).WithField("room_id", room.ID).Error("Failed to insert room")
		return models.ErrDatabaseInsert
	}
	return nil
}

func (r *roomRepository) GetByID(ctx context.Context, roomID string) (*models.Room, error) {
	var room models.Room
	err := r.collection.FindOne(ctx, bson.M{"_id": roomID}).Decode(&room)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrRoomNotFound
		}
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to get room")
		return nil, models.ErrDatabaseQuery
	}
	return &room, nil
}

func (r *roomRepository) AddMember(ctx context.Context, roomID, userID string) error {
	filter := bson.M{
		"_id":    roomID,
		"status": models.RoomStatusActive,
	}

	update := bson.M{
		"$addToSet": bson.M{"members": userID},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to add member")
		return models.ErrDatabaseUpdate
	}
	if result.MatchedCount == 0 {
		room, err := r.GetByID(ctx, roomID)
		if err != nil {
			return err
		}
		if room.IsEnded() {
			return models.ErrRoomAlreadyEnded
		}
		return models.ErrRoomNotFound
	}
	return nil
}

// MarkEnded is the single idempotent active→ended transition. The update
// is a one-document compare-and-set on status, so concurrent triggers
// resolve to exactly one winner; everyone else observes alreadyEnded.
// The forced path also stamps forced_end_at in the same write.
func (r *roomRepository) MarkEnded(ctx context.Context, roomID string, forced bool, endedAt time.Time) (*models.Room, bool, error) {
	filter := bson.M{
		"_id":    roomID,
		"status": models.RoomStatusActive,
	}

	set := bson.M{"status": models.RoomStatusEnded}
	if forced {
		set["forced_end_at"] = endedAt
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var room models.Room
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&room)
	if err == nil {
		return &room, false, nil
	}

	if !errors.Is(err, mongo.ErrNoDocuments) {
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to mark room ended")
		return nil, false, models.ErrDatabaseUpdate
	}

	// No active room matched: either it is already ended or it never
	// existed. Disambiguate with a plain read.
	existing, err := r.GetByID(ctx, roomID)
	if err != nil {
		return nil, false, err
	}
	if existing.IsEnded() {
		return existing, true, nil
	}

	// The room flipped back between our update and read, which the ended
	// invariant rules out; treat it as an unconfirmed termination.
	logrus.WithField("room_id", roomID).Error("Room state changed unexpectedly during termination")
	return nil, false, models.ErrTerminationFailed
}

// ClaimTerminationHandle records the deferred-task handle, guarded on no
// handle being present yet. Returns false when another writer already
// scheduled.
func (r *roomRepository) ClaimTerminationHandle(ctx context.Context, roomID, handle string) (bool, error) {
	filter := bson.M{
		"_id": roomID,
		"scheduled_termination_handle": bson.M{"$exists": false},
	}

	update := bson.M{
		"$set": bson.M{"scheduled_termination_handle": handle},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to claim termination handle")
		return false, models.ErrDatabaseUpdate
	}

	return result.ModifiedCount > 0, nil
}

// ReleaseTerminationHandle undoes a claim whose publish failed, so a
// later retry can schedule again. Only the claiming handle may release.
func (r *roomRepository) ReleaseTerminationHandle(ctx context.Context, roomID, handle string) error {
	filter := bson.M{
		"_id": roomID,
		"scheduled_termination_handle": handle,
	}

	update := bson.M{
		"$unset": bson.M{"scheduled_termination_handle": ""},
	}

	if _, err := r.collection.UpdateOne(ctx, filter, update); err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to release termination handle")
		return models.ErrDatabaseUpdate
	}
	return nil
}

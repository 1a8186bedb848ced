package settlement

import (
	"context"
	"errors"
	"time"

	"studyhall-session-svc/src/clients"
	"studyhall-session-svc/src/internal/models"
	"studyhall-session-svc/src/internal/reward"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	CreditOnce(ctx context.Context, entry *models.LedgerEntry) (bool, error)
	GetLedgerEntry(ctx context.Context, key string) (*models.LedgerEntry, error)
	GetWallet(ctx context.Context, userID string) (*models.Wallet, error)
}

type ledgerRepository struct {
	db      *clients.MongoDB
	ledger  *mongo.Collection
	wallets *mongo.Collection
}

func NewLedgerRepository(db *clients.MongoDB, ledgerCollection, walletCollection string) Repository {
	return &ledgerRepository{
		db:      db,
		ledger:  db.Database.Collection(ledgerCollection),
		wallets: db.Database.Collection(walletCollection),
	}
}

// CreditOnce writes the ledger entry and the updated wallet atomically.
// The entry id is the idempotency key: an existing entry makes the call a
// no-op (false, nil), and a duplicate-key race between two concurrent
// settlements resolves the same way. The wallet level is recomputed from
// the new cumulative XP inside the transaction.
func (r *ledgerRepository) CreditOnce(ctx context.Context, entry *models.LedgerEntry) (bool, error) {
	result, err := r.db.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		var existing models.LedgerEntry
		err := r.ledger.FindOne(sessCtx, bson.M{"_id": entry.ID}).Decode(&existing)
		if err == nil {
			return false, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return false, models.ErrDatabaseQuery
		}

		if _, err := r.ledger.InsertOne(sessCtx, entry); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return false, nil
			}
			return false, models.ErrDatabaseInsert
		}

		wallet, err := r.findWallet(sessCtx, entry.UserID)
		if err != nil {
			return false, err
		}
		if wallet == nil {
			wallet = &models.Wallet{UserID: entry.UserID}
		}

		newXP := wallet.XP + entry.XPAwarded

		update := bson.M{
			"$set": bson.M{
				"xp":            newXP,
				"coins":         wallet.Coins + entry.CoinsAwarded,
				"level":         reward.LevelForXP(newXP),
				"session_count": wallet.SessionCount + 1,
				"total_minutes": wallet.TotalMinutes + entry.MinutesCounted,
				"updated_at":    time.Now(),
			},
		}

		opts := options.Update().SetUpsert(true)
		if _, err := r.wallets.UpdateOne(sessCtx, bson.M{"_id": entry.UserID}, update, opts); err != nil {
			return false, models.ErrDatabaseUpdate
		}

		return true, nil
	})

	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"ledger_key": entry.ID,
			"user_id":    entry.UserID,
		}).Error("Settlement transaction failed")
		return false, err
	}

	credited, _ := result.(bool)
	return credited, nil
}

func (r *ledgerRepository) GetLedgerEntry(ctx context.Context, key string) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := r.ledger.FindOne(ctx, bson.M{"_id": key}).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		logrus.WithError(err).WithField("ledger_key", key).Error("Failed to get ledger entry")
		return nil, models.ErrDatabaseQuery
	}
	return &entry, nil
}

func (r *ledgerRepository) GetWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	return r.findWallet(ctx, userID)
}

func (r *ledgerRepository) findWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.wallets.FindOne(ctx, bson.M{"_id": userID}).Decode(&wallet)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to get wallet")
		return nil, models.ErrDatabaseQuery
	}
	return &wallet, nil
}

package mongo

import (
	"context"
	"log"

	"github.com/zihernwong/AthleteBridge-sub000/internal/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the engine's queries rely on.
// Call once during application startup; failures are logged rather
// than fatal.
func (s *Store) EnsureIndexes(ctx context.Context) {
	ensure(ctx, s.db.Collection(store.Coaches), []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	ensure(ctx, s.db.Collection(store.Clients), []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	ensure(ctx, s.db.Collection(store.Bookings), []mongo.IndexModel{
		{Keys: bson.D{{Key: "coachId", Value: 1}, {Key: "start", Value: 1}}},
		{Keys: bson.D{{Key: "clientId", Value: 1}, {Key: "start", Value: 1}}},
	})
	ensure(ctx, s.db.Collection(store.Conversations), []mongo.IndexModel{
		{Keys: bson.D{{Key: "participantIds", Value: 1}, {Key: "lastMessageAt", Value: -1}}},
	})
	ensure(ctx, s.db.Collection(store.Messages), []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversationId", Value: 1}, {Key: "createdAt", Value: 1}}},
	})
	ensure(ctx, s.db.Collection(store.Notifications), []mongo.IndexModel{
		{Keys: bson.D{{Key: "recipientId", Value: 1}, {Key: "delivered", Value: 1}}},
	})
}

func ensure(ctx context.Context, collection *mongo.Collection, indexes []mongo.IndexModel) {
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Printf("WARN: failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}

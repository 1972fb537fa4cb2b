package mongo

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/zihernwong/AthleteBridge-sub000/internal/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Default connection timeout
const defaultTimeout = 10 * time.Second

// Store implements store.Store on MongoDB. Batches are applied inside
// a session transaction (the engine's only strong-consistency
// primitive); watches are change streams that re-run their query per
// event and deliver the full result set.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect establishes a connection, verifies it with a ping and
// returns the ready Store.
func Connect(uri, dbName string) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	// Ping with its own context: the connect call can succeed against
	// an unresponsive server.
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		discCtx, discCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer discCancel()
		_ = client.Disconnect(discCtx)
		return nil, err
	}

	return &Store{client: client, db: client.Database(dbName)}, nil
}

// Disconnect gracefully closes the underlying client.
func (s *Store) Disconnect() error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Get reads a single document by id.
func (s *Store) Get(ctx context.Context, collection, id string, dest any) error {
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(dest)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return store.ErrNotFound
		}
		return err
	}
	return nil
}

// Find reads every document matching the query into dest.
func (s *Store) Find(ctx context.Context, collection string, q store.Query, dest any) error {
	if err := store.ValidateQuery(q); err != nil {
		return err
	}
	cursor, err := s.db.Collection(collection).Find(ctx, filterFor(q), findOptionsFor(q))
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	return cursor.All(ctx, dest)
}

// Commit applies the batch inside one transaction.
func (s *Store) Commit(ctx context.Context, b *store.Batch) error {
	if err := store.ValidateBatch(b); err != nil {
		return err
	}
	session, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		for _, w := range b.Writes() {
			col := s.db.Collection(w.Collection)
			switch w.Kind {
			case store.WriteSet:
				_, err := col.ReplaceOne(sc, bson.M{"_id": w.ID}, w.Doc, options.Replace().SetUpsert(true))
				if err != nil {
					return nil, err
				}
			case store.WriteUpdate:
				res, err := col.UpdateByID(sc, w.ID, bson.M{"$set": bson.M(w.Fields)})
				if err != nil {
					return nil, err
				}
				if res.MatchedCount == 0 {
					return nil, fmt.Errorf("update %s/%s: %w", w.Collection, w.ID, store.ErrNotFound)
				}
			case store.WriteAddToSet:
				// $addToSet gives the dedup-by-value append semantics;
				// upsert so a first summary can land with the profile.
				_, err := col.UpdateByID(sc, w.ID,
					bson.M{"$addToSet": bson.M{w.Field: w.Value}},
					options.Update().SetUpsert(true))
				if err != nil {
					return nil, err
				}
			}
		}
		return nil, nil
	})
	return err
}

// Watch opens a change stream over the collection and re-runs the
// query after every event, delivering the full result set each time.
// The initial result set is delivered before the first change.
func (s *Store) Watch(ctx context.Context, collection string, q store.Query) (*store.Subscription, error) {
	if err := store.ValidateQuery(q); err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := s.db.Collection(collection).Watch(streamCtx, mongo.Pipeline{})
	if err != nil {
		cancel()
		return nil, err
	}

	updates := make(chan []bson.Raw, 1)
	push := func(batch []bson.Raw) {
		// Latest result set wins if the consumer is behind.
		for {
			select {
			case updates <- batch:
				return
			default:
				select {
				case <-updates:
				default:
				}
			}
		}
	}

	go func() {
		defer close(updates)
		defer stream.Close(context.Background())

		if batch, err := s.findRaw(streamCtx, collection, q); err == nil {
			push(batch)
		} else if streamCtx.Err() == nil {
			log.Printf("ERROR: watch %s: initial query: %v", collection, err)
		}

		for stream.Next(streamCtx) {
			batch, err := s.findRaw(streamCtx, collection, q)
			if err != nil {
				if streamCtx.Err() != nil {
					return
				}
				log.Printf("ERROR: watch %s: re-query: %v", collection, err)
				continue
			}
			push(batch)
		}
	}()

	return &store.Subscription{Updates: updates, Cancel: cancel}, nil
}

func (s *Store) findRaw(ctx context.Context, collection string, q store.Query) ([]bson.Raw, error) {
	cursor, err := s.db.Collection(collection).Find(ctx, filterFor(q), findOptionsFor(q))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var out []bson.Raw
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func filterFor(q store.Query) bson.M {
	filter := bson.M{}
	for _, f := range q.Filters {
		switch f.Op {
		case store.OpGt:
			filter[f.Field] = bson.M{"$gt": f.Value}
		case store.OpIn:
			filter[f.Field] = bson.M{"$in": f.Value}
		default:
			// Equality; for array fields Mongo matches elements
			// natively, which covers array-contains.
			filter[f.Field] = f.Value
		}
	}
	return filter
}

func findOptionsFor(q store.Query) *options.FindOptions {
	opts := options.Find()
	if q.OrderField != "" {
		dir := 1
		if q.Descending {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: q.OrderField, Value: dir}})
	}
	if q.N > 0 {
		opts.SetLimit(q.N)
	}
	return opts
}

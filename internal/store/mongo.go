package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const messagesCollection = "messages"

// MongoStore persists messages as individual documents in a single
// collection, partitioned by the room field. The insert itself is atomic, so
// concurrent appends to the same room need no extra serialization; eviction
// of over-cap documents runs after each insert to keep per-room growth
// bounded.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	limit  int
}

// NewMongoStore connects to the MongoDB deployment at uri and uses the
// messages collection of database. limit caps retained messages per room;
// values <= 0 fall back to DefaultHistoryLimit.
func NewMongoStore(ctx context.Context, uri, database string, limit int) (*MongoStore, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	s := &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(messagesCollection),
		limit:  limit,
	}

	// Index backs both the history sort and the eviction scan.
	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "room", Value: 1}, {Key: "timestamp", Value: 1}},
	}
	if _, err := s.coll.Indexes().CreateOne(ctx, indexModel); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("creating message index: %w", err)
	}

	return s, nil
}

// Append inserts the message and evicts the oldest documents beyond the
// retention cap for that room.
func (s *MongoStore) Append(ctx context.Context, roomID string, msg Message) error {
	if _, err := s.coll.InsertOne(ctx, msg); err != nil {
		return fmt.Errorf("inserting message for room %s: %w", roomID, err)
	}
	return s.evictExcess(ctx, roomID)
}

// evictExcess deletes the oldest documents for a room once its count passes
// the cap. Failure here never undoes the append; the message is already
// durable.
func (s *MongoStore) evictExcess(ctx context.Context, roomID string) error {
	filter := bson.M{"room": roomID}

	count, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return fmt.Errorf("counting messages for room %s: %w", roomID, err)
	}
	excess := count - int64(s.limit)
	if excess <= 0 {
		return nil
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: 1}}).
		SetLimit(excess).
		SetProjection(bson.M{"_id": 1})
	cursor, err := s.coll.Find(ctx, filter, findOpts)
	if err != nil {
		return fmt.Errorf("finding excess messages for room %s: %w", roomID, err)
	}

	var docs []struct {
		ID interface{} `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return fmt.Errorf("reading excess messages for room %s: %w", roomID, err)
	}

	ids := make([]interface{}, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	if len(ids) == 0 {
		return nil
	}

	if _, err := s.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return fmt.Errorf("evicting excess messages for room %s: %w", roomID, err)
	}
	return nil
}

// LoadHistory returns the most recent limit messages for the room in
// chronological order.
func (s *MongoStore) LoadHistory(ctx context.Context, roomID string, limit int) ([]Message, error) {
	if limit <= 0 || limit > s.limit {
		limit = s.limit
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := s.coll.Find(ctx, bson.M{"room": roomID}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("loading history for room %s: %w", roomID, err)
	}

	var messages []Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("decoding history for room %s: %w", roomID, err)
	}

	// Query returned newest-first; history is served oldest-first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// Close disconnects from the deployment.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Package mongo stores entries as documents in the fitnessentries collection.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"example.com/fitlog/internal/domain"
	"example.com/fitlog/internal/observability"
)

// CollectionName is the collection entries live in.
const CollectionName = "fitnessentries"

// detailsDocument is the embedded parsed detail of an activity.
type detailsDocument struct {
	Name string `bson:"name"`
	Reps int    `bson:"reps"`
}

// entryDocument is the stored shape: value is a string for activities and a
// number for weights.
type entryDocument struct {
	ID        string           `bson:"_id"`
	Timestamp time.Time        `bson:"timestamp"`
	Type      string           `bson:"type"`
	Value     interface{}      `bson:"value"`
	Details   *detailsDocument `bson:"details,omitempty"`
}

func toDocument(e domain.Entry) (entryDocument, error) {
	doc := entryDocument{ID: e.ID, Timestamp: e.Timestamp.UTC(), Type: string(e.Kind())}
	switch v := e.Value.(type) {
	case domain.Activity:
		doc.Value = v.Text
		if v.Detail != nil {
			doc.Details = &detailsDocument{Name: v.Detail.Name, Reps: v.Detail.Reps}
		}
	case domain.Weight:
		doc.Value = v.Amount
	default:
		return entryDocument{}, fmt.Errorf("entry %s: unsupported value %T", e.ID, e.Value)
	}
	return doc, nil
}

func (d entryDocument) entry() (domain.Entry, error) {
	entry := domain.Entry{ID: d.ID, Timestamp: d.Timestamp.UTC()}
	kind, ok := domain.ParseKind(d.Type)
	if !ok {
		return domain.Entry{}, fmt.Errorf("entry %s: unknown type %q", d.ID, d.Type)
	}

	switch kind {
	case domain.KindActivity:
		text, ok := d.Value.(string)
		if !ok {
			return domain.Entry{}, fmt.Errorf("entry %s: activity value is %T", d.ID, d.Value)
		}
		activity := domain.Activity{Text: text}
		if d.Details != nil {
			activity.Detail = &domain.ParsedDetail{Name: d.Details.Name, Reps: d.Details.Reps}
		}
		entry.Value = activity
	case domain.KindWeight:
		var amount float64
		switch n := d.Value.(type) {
		case float64:
			amount = n
		case int32:
			amount = float64(n)
		case int64:
			amount = float64(n)
		default:
			return domain.Entry{}, fmt.Errorf("entry %s: weight value is %T", d.ID, d.Value)
		}
		entry.Value = domain.Weight{Amount: amount}
	}
	return entry, nil
}

// Repository is a MongoDB-backed domain.EntryRepository.
type Repository struct {
	collection *mongo.Collection
}

// NewRepository wraps an existing collection.
func NewRepository(collection *mongo.Collection) *Repository {
	return &Repository{collection: collection}
}

// Connect dials uri and returns a repository over database.fitnessentries
// together with the client so the caller can disconnect it.
func Connect(ctx context.Context, uri, database string) (*Repository, *mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}

	collection := client.Database(database).Collection(CollectionName)
	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "timestamp", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("create timestamp index: %w", err)
	}
	return NewRepository(collection), client, nil
}

// Create inserts an entry document.
func (r *Repository) Create(ctx context.Context, entry domain.Entry) error {
	doc, err := toDocument(entry)
	if err != nil {
		return err
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert entry %s: %w", entry.ID, err)
	}
	observability.RecordEntryPersisted(entry.Timestamp)
	return nil
}

// List returns all entries, newest first.
func (r *Repository) List(ctx context.Context) ([]domain.Entry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find entries: %w", err)
	}
	defer cursor.Close(ctx)

	entries := make([]domain.Entry, 0)
	for cursor.Next(ctx) {
		var doc entryDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode entry: %w", err)
		}
		entry, err := doc.entry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, cursor.Err()
}

package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"example.com/fitlog/internal/domain"
)

func TestDocumentShape(t *testing.T) {
	ts := time.Date(2025, time.March, 4, 9, 0, 0, 0, time.UTC)
	doc, err := toDocument(domain.Entry{
		ID:        "a1",
		Timestamp: ts,
		Value:     domain.Activity{Text: "Pushups - 40", Detail: &domain.ParsedDetail{Name: "pushups", Reps: 40}},
	})
	require.NoError(t, err)

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)

	var generic bson.M
	require.NoError(t, bson.Unmarshal(raw, &generic))
	require.Equal(t, "a1", generic["_id"])
	require.Equal(t, "activity", generic["type"])
	require.Equal(t, "Pushups - 40", generic["value"])
	require.Equal(t, "pushups", bson.Raw(raw).Lookup("details", "name").StringValue())
	require.Equal(t, int32(40), bson.Raw(raw).Lookup("details", "reps").Int32())

	var decoded entryDocument
	require.NoError(t, bson.Unmarshal(raw, &decoded))
	entry, err := decoded.entry()
	require.NoError(t, err)
	require.Equal(t, &domain.ParsedDetail{Name: "pushups", Reps: 40}, entry.Detail())
	require.True(t, ts.Equal(entry.Timestamp))
}

func TestCreatedTimestampSurvivesDocumentRoundTrip(t *testing.T) {
	clock := time.Date(2025, time.March, 10, 12, 0, 0, 123456789, time.UTC)
	store := &capturingRepo{}
	created, err := domain.NewService(store, domain.WithClock(func() time.Time { return clock })).
		CreateEntry(context.Background(), domain.NewWeightEntry(72))
	require.NoError(t, err)

	doc, err := toDocument(store.entry)
	require.NoError(t, err)
	raw, err := bson.Marshal(doc)
	require.NoError(t, err)

	var decoded entryDocument
	require.NoError(t, bson.Unmarshal(raw, &decoded))
	listed, err := decoded.entry()
	require.NoError(t, err)
	require.Equal(t, created.Timestamp, listed.Timestamp)
	require.Equal(t, created.ID, listed.ID)
}

func TestWeightDocumentAcceptsIntegers(t *testing.T) {
	raw, err := bson.Marshal(bson.D{
		{Key: "_id", Value: "w1"},
		{Key: "timestamp", Value: time.Now()},
		{Key: "type", Value: "weight"},
		{Key: "value", Value: int32(72)},
	})
	require.NoError(t, err)

	var doc entryDocument
	require.NoError(t, bson.Unmarshal(raw, &doc))
	entry, err := doc.entry()
	require.NoError(t, err)

	w, ok := entry.Weight()
	require.True(t, ok)
	require.Equal(t, 72.0, w.Amount)
	require.Nil(t, doc.Details)
}

func TestDocumentRejectsMismatchedValue(t *testing.T) {
	_, err := entryDocument{ID: "x", Type: "activity", Value: 12.0}.entry()
	require.Error(t, err)

	_, err = entryDocument{ID: "x", Type: "weight", Value: "heavy"}.entry()
	require.Error(t, err)

	_, err = entryDocument{ID: "x", Type: "note", Value: "hi"}.entry()
	require.Error(t, err)
}

type capturingRepo struct {
	entry domain.Entry
}

func (r *capturingRepo) List(context.Context) ([]domain.Entry, error) {
	return []domain.Entry{r.entry}, nil
}

func (r *capturingRepo) Create(_ context.Context, entry domain.Entry) error {
	r.entry = entry
	return nil
}

package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/zihernwong/AthleteBridge-sub000/internal/domain"
	"github.com/zihernwong/AthleteBridge-sub000/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID     string         `bson:"_id"`
	Name   string         `bson:"name"`
	Rank   int            `bson:"rank"`
	Tags   []string       `bson:"tags,omitempty"`
	Nested map[string]int `bson:"nested,omitempty"`
}

func TestGetRoundTripsThroughBSON(t *testing.T) {
	s := NewMemStore()
	s.Put("records", "r1", record{ID: "r1", Name: "alpha", Rank: 3})

	var got record
	require.NoError(t, s.Get(context.Background(), "records", "r1", &got))
	assert.Equal(t, "alpha", got.Name)
	assert.Equal(t, 3, got.Rank)

	err := s.Get(context.Background(), "records", "missing", &got)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFindFiltersOrdersAndLimits(t *testing.T) {
	s := NewMemStore()
	s.Put("records", "a", record{ID: "a", Name: "alpha", Rank: 3})
	s.Put("records", "b", record{ID: "b", Name: "beta", Rank: 1})
	s.Put("records", "c", record{ID: "c", Name: "alpha", Rank: 2})

	var got []record
	q := store.NewQuery().Where("name", store.OpEq, "alpha").OrderBy("rank", true)
	require.NoError(t, s.Find(context.Background(), "records", q, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)

	q = store.NewQuery().OrderBy("rank", false).Limit(1)
	require.NoError(t, s.Find(context.Background(), "records", q, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)
}

func TestFindMembershipAndArrayContains(t *testing.T) {
	s := NewMemStore()
	s.Put("records", "a", record{ID: "a", Tags: []string{"x", "y"}})
	s.Put("records", "b", record{ID: "b", Tags: []string{"y"}})

	var got []record
	q := store.NewQuery().Where("_id", store.OpIn, []string{"a", "nope"})
	require.NoError(t, s.Find(context.Background(), "records", q, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	q = store.NewQuery().Where("tags", store.OpArrayContains, "x")
	require.NoError(t, s.Find(context.Background(), "records", q, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestCommitIsAtomic(t *testing.T) {
	s := NewMemStore()
	s.Put("records", "a", record{ID: "a", Name: "alpha"})

	// The second write targets a missing document, so the first must
	// not land either.
	b := store.NewBatch().
		Set("records", "b", record{ID: "b", Name: "beta"}).
		Update("records", "missing", map[string]any{"name": "nope"})
	err := s.Commit(context.Background(), b)
	require.ErrorIs(t, err, store.ErrNotFound)

	assert.Equal(t, 1, s.Count("records"))
	assert.Zero(t, s.CommitCount())
}

func TestCommitUpdateDottedPath(t *testing.T) {
	s := NewMemStore()
	s.Put("records", "a", record{ID: "a", Nested: map[string]int{"x": 1}})

	b := store.NewBatch().Update("records", "a", map[string]any{"nested.y": 2})
	require.NoError(t, s.Commit(context.Background(), b))

	var got record
	require.NoError(t, s.Get(context.Background(), "records", "a", &got))
	assert.Equal(t, map[string]int{"x": 1, "y": 2}, got.Nested)
}

func TestAddToSetDeduplicatesByValue(t *testing.T) {
	s := NewMemStore()
	summary := domain.BookingSummary{
		BookingID: "b1",
		Start:     time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC),
		Status:    domain.StatusRequested,
	}

	for i := 0; i < 3; i++ {
		b := store.NewBatch().AddToSet("coaches", "c1", "bookingSummaries", summary)
		require.NoError(t, s.Commit(context.Background(), b))
	}
	other := summary
	other.BookingID = "b2"
	b := store.NewBatch().AddToSet("coaches", "c1", "bookingSummaries", other)
	require.NoError(t, s.Commit(context.Background(), b))

	var coach domain.Coach
	require.NoError(t, s.Get(context.Background(), "coaches", "c1", &coach))
	require.Len(t, coach.BookingSummaries, 2)
	assert.Equal(t, "b1", coach.BookingSummaries[0].BookingID)
	assert.Equal(t, "b2", coach.BookingSummaries[1].BookingID)
}

func TestWatchDeliversInitialAndChangedResults(t *testing.T) {
	s := NewMemStore()
	s.Put("records", "a", record{ID: "a", Name: "alpha", Rank: 1})

	sub, err := s.Watch(context.Background(), "records", store.NewQuery().Where("name", store.OpEq, "alpha"))
	require.NoError(t, err)
	defer sub.Cancel()

	batch := <-sub.Updates
	docs, err := store.DecodeAll[record](batch)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	s.Put("records", "b", record{ID: "b", Name: "alpha", Rank: 2})
	require.Eventually(t, func() bool {
		select {
		case batch = <-sub.Updates:
			docs, err = store.DecodeAll[record](batch)
			require.NoError(t, err)
			return len(docs) == 2
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatchIgnoresOtherCollections(t *testing.T) {
	s := NewMemStore()
	sub, err := s.Watch(context.Background(), "records", store.NewQuery())
	require.NoError(t, err)
	defer sub.Cancel()

	<-sub.Updates // initial empty delivery
	s.Put("elsewhere", "x", record{ID: "x"})

	select {
	case batch := <-sub.Updates:
		t.Fatalf("unexpected delivery: %d docs", len(batch))
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatchCancelClosesChannel(t *testing.T) {
	s := NewMemStore()
	sub, err := s.Watch(context.Background(), "records", store.NewQuery())
	require.NoError(t, err)

	assert.Equal(t, 1, s.WatcherCount("records"))
	sub.Cancel()
	sub.Cancel() // idempotent
	assert.Zero(t, s.WatcherCount("records"))

	for range sub.Updates {
	}
}

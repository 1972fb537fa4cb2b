package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.mongodb.org/mongo-driver/bson"
)

func TestQueryBuilderIsValueSemantics(t *testing.T) {
	base := NewQuery().Where("coachId", OpEq, "c1")

	byStart := base.OrderBy("start", false)
	byRecency := base.OrderBy("lastMessageAt", true).Limit(1)

	// Derived queries never leak into each other or the base.
	assert.Empty(t, base.OrderField)
	assert.Equal(t, "start", byStart.OrderField)
	assert.False(t, byStart.Descending)
	assert.Equal(t, "lastMessageAt", byRecency.OrderField)
	assert.True(t, byRecency.Descending)
	assert.Equal(t, int64(1), byRecency.N)
	assert.Zero(t, byStart.N)
}

func TestBatchAccumulatesWritesInOrder(t *testing.T) {
	b := NewBatch().
		Set(Bookings, "b1", map[string]any{"status": "requested"}).
		Update(Conversations, "conv", map[string]any{"lastMessageText": "hi"}).
		AddToSet(Coaches, "c1", "bookingSummaries", "summary")

	require.Equal(t, 3, b.Len())
	writes := b.Writes()
	assert.Equal(t, WriteSet, writes[0].Kind)
	assert.Equal(t, WriteUpdate, writes[1].Kind)
	assert.Equal(t, WriteAddToSet, writes[2].Kind)
	assert.Equal(t, "bookingSummaries", writes[2].Field)
}

func TestValidateBatchLimit(t *testing.T) {
	b := NewBatch()
	for i := 0; i < MaxBatchWrites; i++ {
		b.Update(Bookings, "b", map[string]any{"n": i})
	}
	require.NoError(t, ValidateBatch(b))

	b.Update(Bookings, "b", map[string]any{"n": MaxBatchWrites})
	assert.ErrorIs(t, ValidateBatch(b), ErrBatchTooLarge)
}

func TestValidateQueryMembershipLimit(t *testing.T) {
	ids := make([]string, MaxInValues)
	for i := range ids {
		ids[i] = "id"
	}
	require.NoError(t, ValidateQuery(NewQuery().Where("_id", OpIn, ids)))

	over := append(ids, "one-more")
	assert.ErrorIs(t, ValidateQuery(NewQuery().Where("_id", OpIn, over)), ErrTooManyInValues)

	// Other operators are never capped.
	require.NoError(t, ValidateQuery(NewQuery().Where("start", OpGt, "x")))
}

func TestMirrorID(t *testing.T) {
	assert.Equal(t, "u1/conv-1", MirrorID("u1", "conv-1"))
}

func TestDecodeAll(t *testing.T) {
	type doc struct {
		ID   string `bson:"_id"`
		Text string `bson:"text"`
	}
	raw1, err := bson.Marshal(doc{ID: "a", Text: "first"})
	require.NoError(t, err)
	raw2, err := bson.Marshal(doc{ID: "b", Text: "second"})
	require.NoError(t, err)

	docs, err := DecodeAll[doc]([]bson.Raw{raw1, raw2})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "first", docs[0].Text)
	assert.Equal(t, "b", docs[1].ID)

	empty, err := DecodeAll[doc](nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// Collection names used by the engine. Mirror copies live in their own
// collections with ids namespaced by owner (see MirrorID), emulating
// per-owner subcollections.
const (
	Coaches                  = "coaches"
	Clients                  = "clients"
	Bookings                 = "bookings"
	CoachBookings            = "coach_bookings"
	ClientBookings           = "client_bookings"
	Conversations            = "conversations"
	Messages                 = "messages"
	ParticipantConversations = "participant_conversations"
	Notifications            = "notifications"
)

// Limits imposed by the batched-write and membership-filter contract.
const (
	MaxBatchWrites = 450
	MaxInValues    = 10
)

// Error constants for the store layer
var (
	ErrNotFound        = StoreError("document not found")
	ErrBatchTooLarge   = StoreError("batch exceeds maximum write count")
	ErrTooManyInValues = StoreError("membership filter exceeds maximum value count")
)

// StoreError helps distinguish store errors
type StoreError string

func (e StoreError) Error() string {
	return string(e)
}

// MirrorID namespaces a document id under its owner, the way a
// subcollection path would.
func MirrorID(ownerID, docID string) string {
	return ownerID + "/" + docID
}

// Op is a query filter operator.
type Op string

const (
	OpEq            Op = "=="
	OpGt            Op = ">"
	OpIn            Op = "in"
	OpArrayContains Op = "array-contains"
)

// Filter is a single field predicate.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Query describes a collection read: filters, a single order-by and an
// optional limit. Zero value means "everything, store order".
type Query struct {
	Filters    []Filter
	OrderField string
	Descending bool
	N          int64
}

func NewQuery() Query { return Query{} }

func (q Query) Where(field string, op Op, value any) Query {
	q.Filters = append(q.Filters, Filter{Field: field, Op: op, Value: value})
	return q
}

func (q Query) OrderBy(field string, descending bool) Query {
	q.OrderField = field
	q.Descending = descending
	return q
}

func (q Query) Limit(n int64) Query {
	q.N = n
	return q
}

// WriteKind discriminates batch operations.
type WriteKind int

const (
	WriteSet WriteKind = iota
	WriteUpdate
	WriteAddToSet
)

// Write is one operation inside a batch.
type Write struct {
	Kind       WriteKind
	Collection string
	ID         string
	Doc        any            // WriteSet: full document
	Fields     map[string]any // WriteUpdate: field merge
	Field      string         // WriteAddToSet: array field
	Value      any            // WriteAddToSet: appended value
}

// Batch collects writes for a single atomic commit: either every write
// lands or none does. It carries no isolation guarantee beyond that.
type Batch struct {
	writes []Write
}

func NewBatch() *Batch { return &Batch{} }

// Set stages a full-document write (create or replace).
func (b *Batch) Set(collection, id string, doc any) *Batch {
	b.writes = append(b.writes, Write{Kind: WriteSet, Collection: collection, ID: id, Doc: doc})
	return b
}

// Update stages a field merge into an existing document.
func (b *Batch) Update(collection, id string, fields map[string]any) *Batch {
	b.writes = append(b.writes, Write{Kind: WriteUpdate, Collection: collection, ID: id, Fields: fields})
	return b
}

// AddToSet stages an array append deduplicated by value equality.
func (b *Batch) AddToSet(collection, id, field string, value any) *Batch {
	b.writes = append(b.writes, Write{Kind: WriteAddToSet, Collection: collection, ID: id, Field: field, Value: value})
	return b
}

func (b *Batch) Len() int        { return len(b.writes) }
func (b *Batch) Writes() []Write { return b.writes }

// Subscription is a live change-notification query. Updates delivers
// the full re-evaluated result set on start and after every matching
// change; Cancel tears the subscription down. Updates is closed after
// Cancel, but in-flight deliveries may still be buffered.
type Subscription struct {
	Updates <-chan []bson.Raw
	Cancel  func()
}

// Store is the document-store capability this engine consumes:
// point reads, filtered reads, atomic batched writes and live
// change-notification queries. Implementations map these onto a real
// backend; tests use an in-memory one.
type Store interface {
	// Get reads one document by id into dest. ErrNotFound when missing.
	Get(ctx context.Context, collection, id string, dest any) error
	// Find reads every matching document into dest (a pointer to a slice).
	Find(ctx context.Context, collection string, q Query, dest any) error
	// Commit applies the batch atomically.
	Commit(ctx context.Context, b *Batch) error
	// Watch opens a live subscription over the query.
	Watch(ctx context.Context, collection string, q Query) (*Subscription, error)
}

// DecodeAll decodes a watch delivery into typed documents.
func DecodeAll[T any](raws []bson.Raw) ([]T, error) {
	out := make([]T, 0, len(raws))
	for _, r := range raws {
		var v T
		if err := bson.Unmarshal(r, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ValidateBatch enforces the batched-write limits shared by all
// backends. Called before any write is attempted.
func ValidateBatch(b *Batch) error {
	if b.Len() > MaxBatchWrites {
		return ErrBatchTooLarge
	}
	return nil
}

// ValidateQuery enforces the membership-filter limit.
func ValidateQuery(q Query) error {
	for _, f := range q.Filters {
		if f.Op != OpIn {
			continue
		}
		if vals, ok := f.Value.([]string); ok && len(vals) > MaxInValues {
			return ErrTooManyInValues
		}
	}
	return nil
}

// Package testutil provides test doubles shared by the service tests,
// chiefly an in-memory implementation of the document-store
// capability with the same batch-atomicity and watch semantics as the
// real backend.
package testutil

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/zihernwong/AthleteBridge-sub000/internal/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemStore implements store.Store in memory. Documents are kept in
// their bson-normalized form (the same round trip the wire performs),
// batches apply atomically against a copy that is swapped in on
// success, and watches re-deliver their full result set after every
// commit touching their collection.
type MemStore struct {
	mu       sync.Mutex
	cols     map[string]map[string]bson.M
	watchers map[int]*memWatcher
	nextID   int

	findCalls   map[string]int
	commitCalls int
	failNext    error
}

type memWatcher struct {
	collection string
	query      store.Query
	ch         chan []bson.Raw
	closeOnce  sync.Once
}

func NewMemStore() *MemStore {
	return &MemStore{
		cols:      make(map[string]map[string]bson.M),
		watchers:  make(map[int]*memWatcher),
		findCalls: make(map[string]int),
	}
}

// Put seeds a document directly (outside any batch) and notifies
// watchers, which is how tests simulate independent change events.
func (s *MemStore) Put(collection, id string, doc any) {
	m, err := roundTrip(doc)
	if err != nil {
		panic(fmt.Sprintf("memstore: seed %s/%s: %v", collection, id, err))
	}
	m["_id"] = id
	s.mu.Lock()
	if s.cols[collection] == nil {
		s.cols[collection] = make(map[string]bson.M)
	}
	s.cols[collection][id] = m
	s.notifyLocked(map[string]bool{collection: true})
	s.mu.Unlock()
}

// Delete removes a document directly and notifies watchers.
func (s *MemStore) Delete(collection, id string) {
	s.mu.Lock()
	delete(s.cols[collection], id)
	s.notifyLocked(map[string]bool{collection: true})
	s.mu.Unlock()
}

// FailNextCommit makes the next Commit fail with err, leaving every
// document untouched.
func (s *MemStore) FailNextCommit(err error) {
	s.mu.Lock()
	s.failNext = err
	s.mu.Unlock()
}

// FindCount reports how many Find calls hit the collection.
func (s *MemStore) FindCount(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findCalls[collection]
}

// CommitCount reports how many batches were committed successfully.
func (s *MemStore) CommitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitCalls
}

// Count reports the number of documents in a collection.
func (s *MemStore) Count(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cols[collection])
}

// --- store.Store ---

func (s *MemStore) Get(_ context.Context, collection, id string, dest any) error {
	s.mu.Lock()
	m, ok := s.cols[collection][id]
	s.mu.Unlock()
	if !ok {
		return store.ErrNotFound
	}
	return decodeInto(m, dest)
}

func (s *MemStore) Find(_ context.Context, collection string, q store.Query, dest any) error {
	if err := store.ValidateQuery(q); err != nil {
		return err
	}
	s.mu.Lock()
	s.findCalls[collection]++
	raws := s.evaluateLocked(collection, q)
	s.mu.Unlock()
	return decodeSlice(raws, dest)
}

func (s *MemStore) Commit(_ context.Context, b *store.Batch) error {
	if err := store.ValidateBatch(b); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}

	// Apply against a deep copy; swap in only when every write lands.
	next := s.cloneLocked()
	touched := make(map[string]bool)
	for _, w := range b.Writes() {
		touched[w.Collection] = true
		if next[w.Collection] == nil {
			next[w.Collection] = make(map[string]bson.M)
		}
		col := next[w.Collection]
		switch w.Kind {
		case store.WriteSet:
			m, err := roundTrip(w.Doc)
			if err != nil {
				return err
			}
			m["_id"] = w.ID
			col[w.ID] = m
		case store.WriteUpdate:
			doc, ok := col[w.ID]
			if !ok {
				return fmt.Errorf("update %s/%s: %w", w.Collection, w.ID, store.ErrNotFound)
			}
			for field, value := range w.Fields {
				nv, err := normalizeValue(value)
				if err != nil {
					return err
				}
				setPath(doc, field, nv)
			}
		case store.WriteAddToSet:
			doc, ok := col[w.ID]
			if !ok {
				doc = bson.M{"_id": w.ID}
				col[w.ID] = doc
			}
			nv, err := normalizeValue(w.Value)
			if err != nil {
				return err
			}
			arr, _ := doc[w.Field].(primitive.A)
			exists := false
			for _, elem := range arr {
				if reflect.DeepEqual(elem, nv) {
					exists = true
					break
				}
			}
			if !exists {
				doc[w.Field] = append(arr, nv)
			}
		}
	}

	s.cols = next
	s.commitCalls++
	s.notifyLocked(touched)
	return nil
}

func (s *MemStore) Watch(_ context.Context, collection string, q store.Query) (*store.Subscription, error) {
	if err := store.ValidateQuery(q); err != nil {
		return nil, err
	}
	w := &memWatcher{collection: collection, query: q, ch: make(chan []bson.Raw, 16)}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = w
	w.push(s.evaluateLocked(collection, q))
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
		w.closeOnce.Do(func() { close(w.ch) })
	}
	return &store.Subscription{Updates: w.ch, Cancel: cancel}, nil
}

// WatcherCount reports how many watches are live on the collection.
func (s *MemStore) WatcherCount(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, w := range s.watchers {
		if w.collection == collection {
			n++
		}
	}
	return n
}

func (w *memWatcher) push(batch []bson.Raw) {
	for {
		select {
		case w.ch <- batch:
			return
		default:
			select {
			case <-w.ch:
			default:
			}
		}
	}
}

func (s *MemStore) notifyLocked(touched map[string]bool) {
	for _, w := range s.watchers {
		if touched[w.collection] {
			w.push(s.evaluateLocked(w.collection, w.query))
		}
	}
}

func (s *MemStore) evaluateLocked(collection string, q store.Query) []bson.Raw {
	var docs []bson.M
	for _, m := range s.cols[collection] {
		if matches(m, q.Filters) {
			docs = append(docs, m)
		}
	}
	if q.OrderField != "" {
		sort.SliceStable(docs, func(i, j int) bool {
			c := compareValues(docs[i][q.OrderField], docs[j][q.OrderField])
			if q.Descending {
				return c > 0
			}
			return c < 0
		})
	} else {
		sort.SliceStable(docs, func(i, j int) bool {
			return compareValues(docs[i]["_id"], docs[j]["_id"]) < 0
		})
	}
	if q.N > 0 && int64(len(docs)) > q.N {
		docs = docs[:q.N]
	}
	raws := make([]bson.Raw, 0, len(docs))
	for _, m := range docs {
		raw, err := bson.Marshal(m)
		if err != nil {
			panic(fmt.Sprintf("memstore: marshal result: %v", err))
		}
		raws = append(raws, bson.Raw(raw))
	}
	return raws
}

func (s *MemStore) cloneLocked() map[string]map[string]bson.M {
	next := make(map[string]map[string]bson.M, len(s.cols))
	for name, col := range s.cols {
		copied := make(map[string]bson.M, len(col))
		for id, doc := range col {
			raw, err := bson.Marshal(doc)
			if err != nil {
				panic(fmt.Sprintf("memstore: clone %s/%s: %v", name, id, err))
			}
			var dup bson.M
			if err := bson.Unmarshal(raw, &dup); err != nil {
				panic(fmt.Sprintf("memstore: clone %s/%s: %v", name, id, err))
			}
			copied[id] = dup
		}
		next[name] = copied
	}
	return next
}

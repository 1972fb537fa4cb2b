package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/zihernwong/AthleteBridge-sub000/internal/domain"
	"github.com/zihernwong/AthleteBridge-sub000/internal/storage"
	"github.com/zihernwong/AthleteBridge-sub000/internal/store"

	"golang.org/x/sync/errgroup"
)

// Resolver turns opaque participant ids into display names and photo
// URLs. Entries are cached for the process lifetime and are monotonic:
// once an id has resolved, later calls neither look it up again nor
// overwrite it with worse data. Concurrent EnsureNames calls with
// overlapping id sets issue at most one lookup per id; the in-flight
// set is what enforces that.
type Resolver struct {
	store store.Store
	files storage.FileStorage // may be nil; photos then stay unresolved

	mu       sync.RWMutex
	cache    map[string]domain.Participant
	inflight map[string]struct{}
}

func NewResolver(st store.Store, files storage.FileStorage) *Resolver {
	return &Resolver{
		store:    st,
		files:    files,
		cache:    make(map[string]domain.Participant),
		inflight: make(map[string]struct{}),
	}
}

// EnsureNames resolves every id not already cached or in flight.
// Lookups go against the coaches collection first, then clients; an id
// found in neither is cached with its raw id as the display name.
// All errors are swallowed: name resolution is best-effort by policy.
func (r *Resolver) EnsureNames(ctx context.Context, ids []string) {
	pending := r.claim(ids)
	if len(pending) == 0 {
		return
	}

	// One goroutine per membership-filter chunk, joined before return.
	g, gctx := errgroup.WithContext(ctx)
	for _, chunk := range chunkIDs(pending, store.MaxInValues) {
		chunk := chunk
		g.Go(func() error {
			r.resolveChunk(gctx, chunk)
			return nil
		})
	}
	_ = g.Wait()
}

// claim filters out cached and in-flight ids and marks the remainder
// in flight, all under one lock acquisition.
func (r *Resolver) claim(ids []string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pending []string
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := r.cache[id]; ok {
			continue
		}
		if _, ok := r.inflight[id]; ok {
			continue
		}
		r.inflight[id] = struct{}{}
		pending = append(pending, id)
	}
	return pending
}

func (r *Resolver) resolveChunk(ctx context.Context, chunk []string) {
	resolved := make(map[string]domain.Participant, len(chunk))
	photoKeys := make(map[string]string)

	var coaches []domain.Coach
	if err := r.store.Find(ctx, store.Coaches, store.NewQuery().Where("_id", store.OpIn, chunk), &coaches); err != nil {
		// Transient lookup failure: release the ids so a later call
		// can retry instead of freezing fallback names into the cache.
		log.Printf("ERROR: resolve participants: coach lookup: %v", err)
		r.release(chunk)
		return
	}
	for _, c := range coaches {
		resolved[c.ID] = domain.Participant{ID: c.ID, DisplayName: c.DisplayName}
		if c.PhotoKey != "" {
			photoKeys[c.ID] = c.PhotoKey
		}
	}

	missing := subtract(chunk, resolved)
	if len(missing) > 0 {
		var clients []domain.Client
		if err := r.store.Find(ctx, store.Clients, store.NewQuery().Where("_id", store.OpIn, missing), &clients); err != nil {
			log.Printf("ERROR: resolve participants: client lookup: %v", err)
			r.release(chunk)
			return
		}
		for _, c := range clients {
			resolved[c.ID] = domain.Participant{ID: c.ID, DisplayName: c.DisplayName}
			if c.PhotoKey != "" {
				photoKeys[c.ID] = c.PhotoKey
			}
		}
	}

	// Anything found in neither collection keeps its raw id as the
	// display name. Deliberate degrade-gracefully policy, not an error.
	for _, id := range subtract(chunk, resolved) {
		resolved[id] = domain.Participant{ID: id, DisplayName: id}
	}

	r.mu.Lock()
	for _, id := range chunk {
		delete(r.inflight, id)
		if _, ok := r.cache[id]; !ok {
			r.cache[id] = resolved[id]
		}
	}
	r.mu.Unlock()

	for id, key := range photoKeys {
		go r.resolvePhoto(id, key)
	}
}

// resolvePhoto normalizes a stored object key into a fetchable URL and
// fills it into the cache entry. Photos only ever go from empty to
// set; a stale in-flight resolution can never downgrade an entry.
func (r *Resolver) resolvePhoto(id, objectKey string) {
	if r.files == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	url, err := r.files.PhotoURL(ctx, objectKey, storage.DefaultPresignedURLExpiry)
	if err != nil {
		log.Printf("ERROR: resolve photo for %s: %v", id, err)
		return
	}

	r.mu.Lock()
	if entry, ok := r.cache[id]; ok && entry.PhotoURL == "" {
		entry.PhotoURL = url
		r.cache[id] = entry
	}
	r.mu.Unlock()
}

func (r *Resolver) release(ids []string) {
	r.mu.Lock()
	for _, id := range ids {
		delete(r.inflight, id)
	}
	r.mu.Unlock()
}

// Lookup returns the cached entry for an id, if resolved.
func (r *Resolver) Lookup(id string) (domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.cache[id]
	return p, ok
}

// DisplayName returns the cached display name, or the raw id while
// the entry is still unresolved.
func (r *Resolver) DisplayName(id string) string {
	if p, ok := r.Lookup(id); ok {
		return p.DisplayName
	}
	return id
}

// Names returns a copy of the whole cache for snapshot publication.
func (r *Resolver) Names() map[string]domain.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]domain.Participant, len(r.cache))
	for id, p := range r.cache {
		out[id] = p
	}
	return out
}

func chunkIDs(ids []string, size int) [][]string {
	var chunks [][]string
	for len(ids) > size {
		chunks = append(chunks, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		chunks = append(chunks, ids)
	}
	return chunks
}

func subtract(ids []string, seen map[string]domain.Participant) []string {
	var out []string
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

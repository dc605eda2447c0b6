// Package vectormemory is the semantic memory backing pattern-similarity
// search and context recall: a capacity-bounded store of (text, vector,
// metadata) entries, queried by cosine similarity (§4.7's semantic merge,
// §3's context memory).
package vectormemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/philippgille/chromem-go"

	"surf-core/internal/logging"
)

const collectionName = "context_memory"

// Embedder turns text into an embedding vector. Production wiring plugs in a
// real model client; tests use a deterministic stand-in.
type Embedder func(ctx context.Context, text string) ([]float32, error)

// Store is a capacity-bounded semantic memory over chromem-go. It is safe
// for concurrent use: chromem-go's Collection already serializes internally,
// this layer adds the compaction policy original_source/core/src/memory.rs
// calls "cleanup" (read all, keep newest N, drop and rewrite).
type Store struct {
	mu         sync.Mutex
	db         *chromem.DB
	collection *chromem.Collection
	embed      Embedder
	maxEntries int
	logger     logging.Logger
}

// Entry is one memory record, returned from Search.
type Entry struct {
	ID         string
	Text       string
	Metadata   map[string]string
	Similarity float32
}

// Open creates (or loads, if dir is non-empty and already populated) a
// persistent chromem-go store at dir. maxEntries bounds the store size;
// Compact trims down to it.
func Open(dir string, maxEntries int, embed Embedder, logger logging.Logger) (*Store, error) {
	logger = logging.OrNop(logger)
	var db *chromem.DB
	var err error
	if dir == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(dir, true)
		if err != nil {
			return nil, fmt.Errorf("open vector memory: %w", err)
		}
	}

	chromemEmbed := func(ctx context.Context, text string) ([]float32, error) {
		return embed(ctx, text)
	}
	collection, err := db.GetOrCreateCollection(collectionName, nil, chromemEmbed)
	if err != nil {
		return nil, fmt.Errorf("get or create collection: %w", err)
	}

	return &Store{
		db:         db,
		collection: collection,
		embed:      embed,
		maxEntries: maxEntries,
		logger:     logger,
	}, nil
}

// Add stores one memory entry, tagging it with its insertion time so
// Compact can identify the oldest entries to drop.
func (s *Store) Add(ctx context.Context, id, text string, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta := map[string]string{}
	for k, v := range metadata {
		meta[k] = v
	}
	meta["inserted_at"] = time.Now().UTC().Format(time.RFC3339Nano)

	return s.collection.AddDocument(ctx, chromem.Document{
		ID:       id,
		Content:  text,
		Metadata: meta,
	})
}

// Embed exposes the store's configured embedder, so other components (the
// Pattern Engine's semantic merge) can compute comparable vectors without
// reaching into this store's private state.
func (s *Store) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.embed(ctx, text)
}

// Search returns the n closest entries to query by cosine similarity.
func (s *Store) Search(ctx context.Context, query string, n int) ([]Entry, error) {
	s.mu.Lock()
	count := s.collection.Count()
	s.mu.Unlock()

	if count == 0 {
		return nil, nil
	}
	if n > count {
		n = count
	}

	s.mu.Lock()
	results, err := s.collection.Query(ctx, query, n, nil, nil)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("query vector memory: %w", err)
	}

	out := make([]Entry, 0, len(results))
	for _, r := range results {
		out = append(out, Entry{ID: r.ID, Text: r.Content, Metadata: r.Metadata, Similarity: r.Similarity})
	}
	return out, nil
}

// Count reports the current number of stored entries.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collection.Count()
}

// Compact drops the oldest entries once the store exceeds its capacity,
// mirroring memory.rs's cleanup: read everything, keep the newest
// maxEntries by inserted_at, drop and recreate the collection with just
// those. Meant to run from a periodic background task, not per-insert.
func (s *Store) Compact(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := s.collection.Count()
	if count <= s.maxEntries {
		return 0, nil
	}

	all, err := s.collection.Query(ctx, "", count, nil, nil)
	if err != nil {
		return 0, fmt.Errorf("read all for compaction: %w", err)
	}

	sortByInsertedAt(all)

	toDrop := len(all) - s.maxEntries
	if toDrop <= 0 {
		return 0, nil
	}
	keep := all[toDrop:]

	if err := s.db.DeleteCollection(collectionName); err != nil {
		return 0, fmt.Errorf("drop collection for compaction: %w", err)
	}
	chromemEmbed := func(ctx context.Context, text string) ([]float32, error) { return s.embed(ctx, text) }
	fresh, err := s.db.GetOrCreateCollection(collectionName, nil, chromemEmbed)
	if err != nil {
		return 0, fmt.Errorf("recreate collection after compaction: %w", err)
	}
	s.collection = fresh

	for _, e := range keep {
		if err := s.collection.AddDocument(ctx, chromem.Document{ID: e.ID, Content: e.Content, Metadata: e.Metadata}); err != nil {
			s.logger.Warn("vectormemory: failed to re-add entry %s during compaction: %v", e.ID, err)
		}
	}

	s.logger.Info("vectormemory: compacted, dropped %d entries, kept %d", toDrop, len(keep))
	return toDrop, nil
}

func sortByInsertedAt(results []chromem.Result) {
	// insertion-sort is plenty; compaction runs on a capped, small working set
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Metadata["inserted_at"] < results[j-1].Metadata["inserted_at"]; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}

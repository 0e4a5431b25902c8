package forecast

import (
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/presage-dev/presage/internal/errors"
	"github.com/presage-dev/presage/pkg/protocol"
	"github.com/presage-dev/presage/pkg/state"
	"github.com/presage-dev/presage/pkg/vtree"
)

// Config holds the store's tuning knobs.
type Config struct {
	// MaxBytes is the memory ceiling for all entries combined, measured
	// in serialized patch bytes. Default: 100MB.
	MaxBytes int64

	// MinConfidence is the lookup floor: entries below it exist and keep
	// learning, but are never served for pre-application. Default: 0.7.
	MinConfidence float64

	// DeterministicSeed is the initial confidence for single-key scalar
	// changes. Default: 0.9.
	DeterministicSeed float64

	// ProbabilisticSeed is the initial confidence for everything else.
	// Default: 0.5.
	ProbabilisticSeed float64

	// Policy selects the eviction order. Default: LeastRecentlyUsed.
	Policy EvictionPolicy

	// Shards is the number of independently locked maps. Default: 16.
	Shards int

	// Logger receives capacity rejections and eviction summaries.
	Logger *slog.Logger

	// Metrics is optional; nil disables instrumentation.
	Metrics *Metrics
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		MaxBytes:          100 * 1024 * 1024,
		MinConfidence:     0.7,
		DeterministicSeed: 0.9,
		ProbabilisticSeed: 0.5,
		Policy:            LeastRecentlyUsed,
		Shards:            16,
	}
}

// Stats is a point-in-time view of store activity.
type Stats struct {
	Entries    int     `json:"entries"`
	TotalBytes int64   `json:"totalBytes"`
	Hits       uint64  `json:"hits"`
	Misses     uint64  `json:"misses"`
	Evictions  uint64  `json:"evictions"`
	Rejections uint64  `json:"rejections"`
	HitRate    float64 `json:"hitRate"`
}

// Store is the server-side pattern cache: state-change signatures
// mapped to learned patch lists with confidence scores. Entries are
// sharded by signature hash so concurrent lookups and observations
// contend per shard, not globally.
type Store struct {
	cfg     Config
	log     *slog.Logger
	metrics *Metrics

	shards []*storeShard

	totalBytes atomic.Int64
	entryCount atomic.Int64

	hits       atomic.Uint64
	misses     atomic.Uint64
	evictions  atomic.Uint64
	rejections atomic.Uint64

	// evictMu serializes eviction sweeps; lookups and observations on
	// other shards proceed while a sweep runs.
	evictMu sync.Mutex
}

type storeShard struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// NewStore creates a store with the given configuration. Zero-valued
// fields fall back to DefaultConfig values.
func NewStore(cfg Config) *Store {
	def := DefaultConfig()
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = def.MaxBytes
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = def.MinConfidence
	}
	if cfg.DeterministicSeed <= 0 {
		cfg.DeterministicSeed = def.DeterministicSeed
	}
	if cfg.ProbabilisticSeed <= 0 {
		cfg.ProbabilisticSeed = def.ProbabilisticSeed
	}
	if cfg.Shards <= 0 {
		cfg.Shards = def.Shards
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Store{
		cfg:     cfg,
		log:     cfg.Logger,
		metrics: cfg.Metrics,
		shards:  make([]*storeShard, cfg.Shards),
	}
	for i := range s.shards {
		s.shards[i] = &storeShard{entries: make(map[string]*Entry)}
	}
	return s
}

func (s *Store) shardFor(key string) *storeShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// Lookup returns the learned patches and confidence for a signature.
// ok is false when the signature is unknown or its confidence sits
// below the floor; neither case is an error, callers fall back to the
// authoritative reconciler.
func (s *Store) Lookup(sig state.Signature) ([]vtree.Patch, float64, bool) {
	key := sig.Key()
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.entries[key]
	if !ok {
		s.misses.Add(1)
		s.countLookup("miss")
		return nil, 0, false
	}
	if e.Confidence < s.cfg.MinConfidence {
		s.misses.Add(1)
		s.countLookup("below_floor")
		return nil, 0, false
	}

	e.LastAccessed = time.Now()
	s.hits.Add(1)
	s.countLookup("hit")
	return e.Patches, e.Confidence, true
}

// Observe records the authoritative patch list for a signature. It is
// called after every reconciliation: first sight creates an entry with
// a seeded confidence, repeats refresh the patches and bump counts.
//
// wasCorrect carries the verification verdict for a previously stored
// pattern; when non-nil, confidence is recomputed as
// correctCount/observationCount. A nil wasCorrect leaves confidence
// untouched (nothing was verified against).
//
// An entry whose patches alone exceed the whole budget is rejected
// with a capacity error; the caller's authoritative path is unaffected.
func (s *Store) Observe(sig state.Signature, patches []vtree.Patch, wasCorrect *bool) error {
	key := sig.Key()
	size := int64(protocol.PatchListSize(patches))

	if size > s.cfg.MaxBytes {
		s.rejections.Add(1)
		if s.metrics != nil {
			s.metrics.Rejected.Inc()
		}
		err := errors.New("E020").WithDetail("entry %s is %d bytes, budget %d", key, size, s.cfg.MaxBytes)
		s.log.Warn("pattern entry rejected", "signature", key, "sizeBytes", size, "budgetBytes", s.cfg.MaxBytes)
		return err
	}

	sh := s.shardFor(key)
	now := time.Now()

	sh.mu.Lock()
	if e, ok := sh.entries[key]; ok {
		e.ObservationCount++
		if wasCorrect != nil {
			if *wasCorrect {
				e.CorrectCount++
			}
			e.Confidence = float64(e.CorrectCount) / float64(e.ObservationCount)
			s.countVerified(*wasCorrect)
		}
		s.totalBytes.Add(size - e.SizeBytes)
		e.Patches = patches
		e.SizeBytes = size
		e.LastAccessed = now
	} else {
		seed := s.cfg.ProbabilisticSeed
		if sig.Deterministic() {
			seed = s.cfg.DeterministicSeed
		}
		sh.entries[key] = &Entry{
			Signature:        sig,
			Patches:          patches,
			Confidence:       seed,
			ObservationCount: 1,
			LastAccessed:     now,
			CreatedAt:        now,
			SizeBytes:        size,
		}
		s.totalBytes.Add(size)
		s.entryCount.Add(1)
	}
	sh.mu.Unlock()

	if s.metrics != nil {
		s.metrics.Observations.Inc()
	}
	s.EvictIfOverBudget()
	s.updateGauges()
	return nil
}

// EvictIfOverBudget removes entries, worst first under the configured
// policy, until the tracked total is at or below the budget. It runs
// synchronously so the ceiling holds between observations, and sorts
// once over the entry set rather than rescanning per victim.
func (s *Store) EvictIfOverBudget() {
	if s.totalBytes.Load() <= s.cfg.MaxBytes {
		return
	}

	s.evictMu.Lock()
	defer s.evictMu.Unlock()

	if s.totalBytes.Load() <= s.cfg.MaxBytes {
		return
	}

	type victim struct {
		key   string
		shard *storeShard
		entry *Entry
	}
	var victims []victim
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, e := range sh.entries {
			victims = append(victims, victim{key: key, shard: sh, entry: e})
		}
		sh.mu.Unlock()
	}

	sort.Slice(victims, func(i, j int) bool {
		return s.cfg.Policy.worse(victims[i].entry, victims[j].entry)
	})

	evicted := 0
	for _, v := range victims {
		if s.totalBytes.Load() <= s.cfg.MaxBytes {
			break
		}
		v.shard.mu.Lock()
		if cur, ok := v.shard.entries[v.key]; ok && cur == v.entry {
			delete(v.shard.entries, v.key)
			s.totalBytes.Add(-cur.SizeBytes)
			s.entryCount.Add(-1)
			evicted++
		}
		v.shard.mu.Unlock()
	}

	if evicted > 0 {
		s.evictions.Add(uint64(evicted))
		if s.metrics != nil {
			s.metrics.Evictions.Add(float64(evicted))
		}
		s.log.Debug("evicted pattern entries",
			"count", evicted,
			"policy", s.cfg.Policy.String(),
			"totalBytes", s.totalBytes.Load())
	}
}

// Invalidate drops every entry belonging to a component. Called when
// the component's structural shape changes and its learned patches can
// no longer be trusted. Returns the number of entries removed.
func (s *Store) Invalidate(component string) int {
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, e := range sh.entries {
			if e.Signature.Component == component {
				delete(sh.entries, key)
				s.totalBytes.Add(-e.SizeBytes)
				s.entryCount.Add(-1)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	if removed > 0 {
		s.log.Debug("invalidated component patterns", "component", component, "count", removed)
	}
	s.updateGauges()
	return removed
}

// InvalidateSignature drops one entry by signature.
func (s *Store) InvalidateSignature(sig state.Signature) bool {
	key := sig.Key()
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.entries[key]
	if !ok {
		return false
	}
	delete(sh.entries, key)
	s.totalBytes.Add(-e.SizeBytes)
	s.entryCount.Add(-1)
	return true
}

// Len returns the number of entries.
func (s *Store) Len() int {
	return int(s.entryCount.Load())
}

// TotalBytes returns the tracked serialized size of all entries.
func (s *Store) TotalBytes() int64 {
	return s.totalBytes.Load()
}

// Stats returns a point-in-time activity snapshot.
func (s *Store) Stats() Stats {
	hits := s.hits.Load()
	misses := s.misses.Load()
	var rate float64
	if hits+misses > 0 {
		rate = float64(hits) / float64(hits+misses)
	}
	return Stats{
		Entries:    s.Len(),
		TotalBytes: s.totalBytes.Load(),
		Hits:       hits,
		Misses:     misses,
		Evictions:  s.evictions.Load(),
		Rejections: s.rejections.Load(),
		HitRate:    rate,
	}
}

func (s *Store) countLookup(result string) {
	if s.metrics != nil {
		s.metrics.Lookups.WithLabelValues(result).Inc()
	}
}

func (s *Store) countVerified(correct bool) {
	if s.metrics != nil {
		outcome := "incorrect"
		if correct {
			outcome = "correct"
		}
		s.metrics.Verified.WithLabelValues(outcome).Inc()
	}
}

func (s *Store) updateGauges() {
	if s.metrics != nil {
		s.metrics.Entries.Set(float64(s.entryCount.Load()))
		s.metrics.Bytes.Set(float64(s.totalBytes.Load()))
	}
}

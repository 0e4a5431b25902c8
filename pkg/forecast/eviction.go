package forecast

import (
	"strings"

	"github.com/presage-dev/presage/internal/errors"
)

// EvictionPolicy selects which entries are discarded first when the
// store exceeds its memory budget.
type EvictionPolicy uint8

const (
	// LeastRecentlyUsed discards the entry with the oldest LastAccessed.
	LeastRecentlyUsed EvictionPolicy = iota
	// LeastFrequentlyUsed discards the entry with the lowest
	// ObservationCount.
	LeastFrequentlyUsed
	// OldestFirst discards the entry with the oldest CreatedAt.
	OldestFirst
)

func (p EvictionPolicy) String() string {
	switch p {
	case LeastFrequentlyUsed:
		return "lfu"
	case OldestFirst:
		return "oldest"
	default:
		return "lru"
	}
}

// ParseEvictionPolicy parses a policy name as written in configuration.
func ParseEvictionPolicy(s string) (EvictionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lru", "":
		return LeastRecentlyUsed, nil
	case "lfu":
		return LeastFrequentlyUsed, nil
	case "oldest":
		return OldestFirst, nil
	}
	return 0, errors.New("E051").WithDetail("got %q", s)
}

// worse reports whether a should be evicted before b under the policy.
func (p EvictionPolicy) worse(a, b *Entry) bool {
	switch p {
	case LeastFrequentlyUsed:
		if a.ObservationCount != b.ObservationCount {
			return a.ObservationCount < b.ObservationCount
		}
		return a.LastAccessed.Before(b.LastAccessed)
	case OldestFirst:
		return a.CreatedAt.Before(b.CreatedAt)
	default:
		return a.LastAccessed.Before(b.LastAccessed)
	}
}

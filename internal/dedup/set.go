package dedup

import (
	"fmt"

	"github.com/dafidxcode/tehsainesia/internal/domain"
)

// Eviction picks which fingerprints survive a trim. items are oldest first;
// the result must hold exactly keep entries.
type Eviction func(items []domain.Fingerprint, keep int) []domain.Fingerprint

// OldestFirst drops the oldest insertions.
func OldestFirst(items []domain.Fingerprint, keep int) []domain.Fingerprint {
	return append([]domain.Fingerprint(nil), items[len(items)-keep:]...)
}

// Arbitrary keeps whatever map iteration yields first, with no recency guarantee.
func Arbitrary(items []domain.Fingerprint, keep int) []domain.Fingerprint {
	pool := make(map[domain.Fingerprint]struct{}, len(items))
	for _, fp := range items {
		pool[fp] = struct{}{}
	}
	kept := make([]domain.Fingerprint, 0, keep)
	for fp := range pool {
		if len(kept) == keep {
			break
		}
		kept = append(kept, fp)
	}
	return kept
}

// EvictionByName maps the config value onto an eviction policy.
func EvictionByName(name string) (Eviction, error) {
	switch name {
	case "", "oldest_first":
		return OldestFirst, nil
	case "arbitrary":
		return Arbitrary, nil
	default:
		return nil, fmt.Errorf("unknown eviction policy %q", name)
	}
}

// Set is an insertion-ordered set of fingerprints bounded by a retention cap.
// The cap is only enforced by Trim, so a cycle can grow the set past it.
type Set struct {
	order     []domain.Fingerprint
	index     map[domain.Fingerprint]struct{}
	retention int
	evict     Eviction
}

func NewSet(retention int, evict Eviction, items ...domain.Fingerprint) *Set {
	if evict == nil {
		evict = OldestFirst
	}
	s := &Set{
		index:     make(map[domain.Fingerprint]struct{}, len(items)),
		retention: retention,
		evict:     evict,
	}
	for _, fp := range items {
		s.Add(fp)
	}
	return s
}

// Add reports whether fp was not already present.
func (s *Set) Add(fp domain.Fingerprint) bool {
	if _, ok := s.index[fp]; ok {
		return false
	}
	s.index[fp] = struct{}{}
	s.order = append(s.order, fp)
	return true
}

func (s *Set) Contains(fp domain.Fingerprint) bool {
	_, ok := s.index[fp]
	return ok
}

func (s *Set) Len() int {
	return len(s.order)
}

// Items returns a copy of the fingerprints, oldest first.
func (s *Set) Items() []domain.Fingerprint {
	return append([]domain.Fingerprint(nil), s.order...)
}

// Trim shrinks the set to its retention cap and returns how many entries were evicted.
func (s *Set) Trim() int {
	if s.retention <= 0 || len(s.order) <= s.retention {
		return 0
	}

	kept := s.evict(s.order, s.retention)
	keep := make(map[domain.Fingerprint]struct{}, len(kept))
	for _, fp := range kept {
		keep[fp] = struct{}{}
	}

	// Preserve relative insertion order of the survivors.
	order := make([]domain.Fingerprint, 0, len(kept))
	index := make(map[domain.Fingerprint]struct{}, len(kept))
	for _, fp := range s.order {
		if _, ok := keep[fp]; ok {
			order = append(order, fp)
			index[fp] = struct{}{}
		}
	}

	removed := len(s.order) - len(order)
	s.order = order
	s.index = index
	return removed
}

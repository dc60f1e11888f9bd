package cldb

import (
	"sort"

	"github.com/Celtoys/clReflect-sub006/pkg/namehash"
)

// Store owns every primitive of one kind keyed by name hash. Several entries
// may share a hash to hold overload sets. The zero value is ready to use.
type Store[T Entity] struct {
	entries map[uint32][]T
	count   int
}

// Add inserts p under its name hash. Existing entries are never replaced.
func (s *Store[T]) Add(p T) {
	if s.entries == nil {
		s.entries = make(map[uint32][]T)
	}
	h := p.Common().Name.Hash
	s.entries[h] = append(s.entries[h], p)
	s.count++
}

// FindFirst returns the first entry named text.
func (s *Store[T]) FindFirst(text string) (T, bool) {
	return s.FindHash(namehash.String(text))
}

// FindHash returns the first entry with the given name hash.
func (s *Store[T]) FindHash(hash uint32) (T, bool) {
	if r := s.entries[hash]; len(r) > 0 {
		return r[0], true
	}
	var zero T
	return zero, false
}

// EqualRange returns every entry sharing hash, in insertion order.
// The returned slice must not be modified.
func (s *Store[T]) EqualRange(hash uint32) []T {
	return s.entries[hash]
}

// Contains reports whether an entry equal to p exists under p's hash.
func (s *Store[T]) Contains(p T) bool {
	for _, e := range s.entries[p.Common().Name.Hash] {
		if Equal(e, p) {
			return true
		}
	}
	return false
}

// Len returns the number of entries.
func (s *Store[T]) Len() int { return s.count }

// Hashes returns the distinct name hashes in ascending order.
func (s *Store[T]) Hashes() []uint32 {
	hashes := make([]uint32, 0, len(s.entries))
	for h := range s.entries {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })
	return hashes
}

// All returns every entry ordered by ascending hash, then insertion order.
func (s *Store[T]) All() []T {
	all := make([]T, 0, s.count)
	for _, h := range s.Hashes() {
		all = append(all, s.entries[h]...)
	}
	return all
}

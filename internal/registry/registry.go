// Package registry holds the ordered, de-duplicated string sets used for
// open-ended accumulation (facts) and as fuzzy-resolution candidates.
package registry

import (
	"math/rand/v2"
	"strings"
	"sync"

	"golang.org/x/text/cases"
)

// Registry is an ordered, append-only set keyed by normalized text. Two
// strings equal after case folding and whitespace collapsing are the same
// entry; the first spelling seen is kept. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	items []string
	index map[string]struct{}
}

// New returns a registry seeded with items in order.
func New(items ...string) *Registry {
	r := &Registry{index: make(map[string]struct{}, len(items))}
	for _, it := range items {
		r.Add(it)
	}
	return r
}

// Normalize is the identity key of an entry.
func Normalize(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}

// Add inserts s unless an equal entry exists. Blank strings are ignored.
// Reports whether the registry grew.
func (r *Registry) Add(s string) bool {
	s = strings.TrimSpace(s)
	key := Normalize(s)
	if key == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index[key]; ok {
		return false
	}
	r.index[key] = struct{}{}
	r.items = append(r.items, s)
	return true
}

// Contains reports whether an entry equal to s under normalization exists.
func (r *Registry) Contains(s string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.index[Normalize(s)]
	return ok
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Items returns a copy of the entries in insertion order.
func (r *Registry) Items() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.items...)
}

// Union adds every entry of other, in its order, and returns how many were new.
func (r *Registry) Union(other *Registry) int {
	added := 0
	for _, it := range other.Items() {
		if r.Add(it) {
			added++
		}
	}
	return added
}

// Random returns a uniformly chosen entry. ok is false when empty.
func (r *Registry) Random() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.items) == 0 {
		return "", false
	}
	return r.items[rand.IntN(len(r.items))], true
}

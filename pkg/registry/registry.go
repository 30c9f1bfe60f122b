package registry

import (
	"container/list"
	"fmt"

	"github.com/jacobsa/syncutil"
)

type entry[K comparable, V any] struct {
	key   K
	value V
}

// Registry is an insertion-ordered, identity-keyed map whose reads are
// destructive. It holds at most one entry per key and is safe for
// concurrent use.
type Registry[K comparable, V any] struct {
	mu syncutil.InvariantMutex

	// Entries in registration order.
	//
	// INVARIANT: Each element is of type *entry[K, V]
	// GUARDED_BY(mu)
	entries list.List

	// INVARIANT: For each k, v: v.Value.(*entry[K, V]).key == k
	// INVARIANT: Contains all and only the elements of entries
	// GUARDED_BY(mu)
	index map[K]*list.Element
}

// New creates an empty registry.
func New[K comparable, V any]() *Registry[K, V] {
	r := &Registry[K, V]{
		index: make(map[K]*list.Element),
	}
	r.mu = syncutil.NewInvariantMutex(r.checkInvariants)
	return r
}

// LOCKS_REQUIRED(r.mu)
func (r *Registry[K, V]) checkInvariants() {
	if r.entries.Len() != len(r.index) {
		panic(fmt.Sprintf("registry: list has %d entries, index has %d", r.entries.Len(), len(r.index)))
	}
	for e := r.entries.Front(); e != nil; e = e.Next() {
		ent, ok := e.Value.(*entry[K, V])
		if !ok {
			panic(fmt.Sprintf("registry: unexpected element type %T", e.Value))
		}
		if r.index[ent.key] != e {
			panic(fmt.Sprintf("registry: index mismatch for key %v", ent.key))
		}
	}
}

// Register associates value with key. An existing live entry for key is
// replaced and returned with replaced == true; the new entry moves to the
// back of the registration order.
//
// LOCKS_EXCLUDED(r.mu)
func (r *Registry[K, V]) Register(key K, value V) (old V, replaced bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.index[key]; ok {
		old = e.Value.(*entry[K, V]).value
		replaced = true
		r.entries.Remove(e)
	}
	r.index[key] = r.entries.PushBack(&entry[K, V]{key: key, value: value})
	return old, replaced
}

// Take removes and returns the entry for key. A second Take for the same key
// reports ok == false.
//
// LOCKS_EXCLUDED(r.mu)
func (r *Registry[K, V]) Take(key K) (value V, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.index[key]
	if !ok {
		return value, false
	}
	delete(r.index, key)
	r.entries.Remove(e)
	return e.Value.(*entry[K, V]).value, true
}

// Remove drops the entry for key if its value satisfies match. It is used
// to retire an entry without racing a newer registration under the same key.
//
// LOCKS_EXCLUDED(r.mu)
func (r *Registry[K, V]) Remove(key K, match func(V) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.index[key]
	if !ok || (match != nil && !match(e.Value.(*entry[K, V]).value)) {
		return false
	}
	delete(r.index, key)
	r.entries.Remove(e)
	return true
}

// Len returns the number of live entries.
//
// LOCKS_EXCLUDED(r.mu)
func (r *Registry[K, V]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.index)
}

// Keys returns the live keys in registration order.
//
// LOCKS_EXCLUDED(r.mu)
func (r *Registry[K, V]) Keys() []K {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]K, 0, len(r.index))
	for e := r.entries.Front(); e != nil; e = e.Next() {
		keys = append(keys, e.Value.(*entry[K, V]).key)
	}
	return keys
}

// Values returns the live values in registration order without removing them.
//
// LOCKS_EXCLUDED(r.mu)
func (r *Registry[K, V]) Values() []V {
	r.mu.Lock()
	defer r.mu.Unlock()

	values := make([]V, 0, len(r.index))
	for e := r.entries.Front(); e != nil; e = e.Next() {
		values = append(values, e.Value.(*entry[K, V]).value)
	}
	return values
}

// Drain removes every entry and returns the values in registration order.
//
// LOCKS_EXCLUDED(r.mu)
func (r *Registry[K, V]) Drain() []V {
	r.mu.Lock()
	defer r.mu.Unlock()

	values := make([]V, 0, len(r.index))
	for e := r.entries.Front(); e != nil; e = e.Next() {
		values = append(values, e.Value.(*entry[K, V]).value)
	}
	r.entries.Init()
	r.index = make(map[K]*list.Element)
	return values
}

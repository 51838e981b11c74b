package relay

import (
	"sync"

	"github.com/cornelk/hashmap"
	"github.com/srg/btrelay/pkg/sensor"
)

// Entry guards one sensor. Sensors are not goroutine-safe, so every access
// goes through Do.
type Entry struct {
	mu      sync.Mutex
	s       sensor.Sensor
	evicted bool
}

// Do runs fn with the entry locked. It returns false without calling fn if
// the entry was evicted in the meantime.
func (e *Entry) Do(fn func(s sensor.Sensor)) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		return false
	}
	fn(e.s)
	return true
}

// Registry holds the sensors discovered so far, keyed by address.
type Registry struct {
	m *hashmap.Map[string, *Entry]
}

func NewRegistry() *Registry {
	return &Registry{m: hashmap.New[string, *Entry]()}
}

func (r *Registry) Get(addr sensor.Addr) (*Entry, bool) {
	return r.m.Get(addr.String())
}

// GetOrCreate returns the entry for addr, creating it with create when
// missing. create may return nil, in which case nothing is stored and the
// returned entry is nil. created is true only for the caller whose sensor
// got stored.
func (r *Registry) GetOrCreate(addr sensor.Addr, create func() sensor.Sensor) (e *Entry, created bool) {
	key := addr.String()
	if e, ok := r.m.Get(key); ok {
		return e, false
	}
	s := create()
	if s == nil {
		return nil, false
	}
	e, loaded := r.m.GetOrInsert(key, &Entry{s: s})
	return e, !loaded
}

// Evict removes the entry for addr. Holders of the entry see Do fail.
func (r *Registry) Evict(addr sensor.Addr) bool {
	return r.EvictIf(addr, nil)
}

// EvictIf removes the entry for addr if cond, evaluated under the entry
// lock, holds. A nil cond always holds.
func (r *Registry) EvictIf(addr sensor.Addr, cond func(s sensor.Sensor) bool) bool {
	key := addr.String()
	e, ok := r.m.Get(key)
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted || (cond != nil && !cond(e.s)) {
		return false
	}
	e.evicted = true
	return r.m.Del(key)
}

func (r *Registry) Len() int {
	return r.m.Len()
}

// Range calls fn for every entry until fn returns false.
func (r *Registry) Range(fn func(e *Entry) bool) {
	r.m.Range(func(_ string, e *Entry) bool {
		return fn(e)
	})
}

// Sensors returns a snapshot of the registered sensors' identities.
func (r *Registry) Sensors() []Info {
	res := make([]Info, 0, r.m.Len())
	r.Range(func(e *Entry) bool {
		e.Do(func(s sensor.Sensor) {
			res = append(res, infoOf(s))
		})
		return true
	})
	return res
}

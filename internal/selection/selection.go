// Package selection holds the entity shown in the detail panel.
package selection

import (
	"fmt"
	"sort"
	"sync"

	"github.com/airtrail/airtrail/pkg/core"
)

// Store holds at most one selected entity. Unlike the engine-owned state
// it is read from other goroutines, so it is guarded by a mutex.
type Store struct {
	mu       sync.RWMutex
	current  *core.Selection
	onChange func(*core.Selection)
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// OnChange registers a hook called after every Select or Dismiss with the
// new value (nil when cleared). It runs outside the lock.
func (s *Store) OnChange(fn func(*core.Selection)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Select replaces the current selection.
func (s *Store) Select(sel core.Selection) {
	s.mu.Lock()
	s.current = &sel
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn(&sel)
	}
}

// Dismiss clears the selection.
func (s *Store) Dismiss() {
	s.mu.Lock()
	had := s.current != nil
	s.current = nil
	fn := s.onChange
	s.mu.Unlock()

	if had && fn != nil {
		fn(nil)
	}
}

// Current returns the selection, if any.
func (s *Store) Current() (core.Selection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return core.Selection{}, false
	}
	return *s.current, true
}

// Field is one extra attribute line in the detail panel.
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Detail is the narrowed view the detail panel renders.
type Detail struct {
	ID     core.EntityID `json:"id"`
	Name   string        `json:"name,omitempty"`
	Model  string        `json:"model,omitempty"`
	Fields []Field       `json:"fields,omitempty"`
}

// DetailFrom narrows a selection's attribute bag. name and model get their
// own fields, everything else is listed sorted by key.
func DetailFrom(sel core.Selection) Detail {
	d := Detail{ID: sel.ID}

	keys := make([]string, 0, len(sel.Attributes))
	for k := range sel.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := sel.Attributes[k]
		switch k {
		case "name":
			d.Name = stringify(v)
		case "model":
			d.Model = stringify(v)
		case "id":
			// already carried by ID
		default:
			d.Fields = append(d.Fields, Field{Key: k, Value: stringify(v)})
		}
	}
	return d
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprint(t)
	}
}

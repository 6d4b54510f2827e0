package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"quizroom-service/internal/store"
)

// DocStore is an in-memory store.DocumentStore, used by tests and
// single-process deployments without redis. Documents mutated through
// Update/Append are kept in the keyed-object encoding; documents written
// whole keep whatever shape the caller marshaled, so readers see the
// same shape ambiguity the real store produces.
type DocStore struct {
	mu   sync.RWMutex
	docs map[string]json.RawMessage
	subs map[int]*docSub
	next int
	now  func() time.Time
}

type docSub struct {
	prefix string
	fn     func(store.Event)
}

func NewDocStore() *DocStore {
	return &DocStore{
		docs: make(map[string]json.RawMessage),
		subs: make(map[int]*docSub),
		now:  time.Now,
	}
}

// NewDocStoreWithClock is test-only, for deterministic push keys.
func NewDocStoreWithClock(now func() time.Time) *DocStore {
	s := NewDocStore()
	s.now = now
	return s
}

func (s *DocStore) Write(_ context.Context, path string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	s.mu.Lock()
	s.docs[path] = raw
	subs := s.matchingLocked(path)
	s.mu.Unlock()
	notify(subs, store.Event{Path: path, Value: raw})
	return nil
}

func (s *DocStore) Update(_ context.Context, path string, fields map[string]any) error {
	s.mu.Lock()
	obj, err := s.objectLocked(path)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	for name, value := range fields {
		raw, err := json.Marshal(value)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("marshal %s.%s: %w", path, name, err)
		}
		obj[name] = raw
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.docs[path] = raw
	subs := s.matchingLocked(path)
	s.mu.Unlock()
	notify(subs, store.Event{Path: path, Value: raw})
	return nil
}

func (s *DocStore) Append(ctx context.Context, path string, value any) (string, error) {
	key := store.PushKey(s.now())
	ok, err := s.AppendIfAbsent(ctx, path, key, value)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("push key collision at %s", path)
	}
	return key, nil
}

func (s *DocStore) AppendIfAbsent(_ context.Context, path, key string, value any) (bool, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("marshal %s/%s: %w", path, key, err)
	}
	s.mu.Lock()
	obj, err := s.objectLocked(path)
	if err != nil {
		s.mu.Unlock()
		return false, err
	}
	if _, exists := obj[key]; exists {
		s.mu.Unlock()
		return false, nil
	}
	obj[key] = raw
	merged, err := json.Marshal(obj)
	if err != nil {
		s.mu.Unlock()
		return false, err
	}
	s.docs[path] = merged
	subs := s.matchingLocked(path)
	s.mu.Unlock()
	notify(subs, store.Event{Path: path, Value: merged})
	return true, nil
}

func (s *DocStore) Read(_ context.Context, path string) (json.RawMessage, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.docs[path]
	return raw, ok, nil
}

func (s *DocStore) Subscribe(_ context.Context, prefix string, fn func(store.Event)) (func(), error) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = &docSub{prefix: prefix, fn: fn}
	initial := make([]store.Event, 0)
	paths := make([]string, 0)
	for path := range s.docs {
		if underPrefix(path, prefix) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	for _, path := range paths {
		initial = append(initial, store.Event{Path: path, Value: s.docs[path]})
	}
	s.mu.Unlock()

	for _, ev := range initial {
		fn(ev)
	}
	cancel := func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
	return cancel, nil
}

// objectLocked decodes the document at path as a keyed object, creating
// an empty one when the path is absent.
func (s *DocStore) objectLocked(path string) (map[string]json.RawMessage, error) {
	obj := make(map[string]json.RawMessage)
	if raw, ok := s.docs[path]; ok {
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("document %s is not an object: %w", path, err)
		}
	}
	return obj, nil
}

func (s *DocStore) matchingLocked(path string) []*docSub {
	var out []*docSub
	for _, sub := range s.subs {
		if underPrefix(path, sub.prefix) {
			out = append(out, sub)
		}
	}
	return out
}

func underPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// notify runs outside the store lock so callbacks may re-enter the store.
func notify(subs []*docSub, ev store.Event) {
	for _, sub := range subs {
		sub.fn(ev)
	}
}

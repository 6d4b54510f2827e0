package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"quizroom-service/internal/store"
)

// DocStore implements store.DocumentStore on redis. Every document path
// maps to one hash (key "doc:{path}", field per object key), which makes
// Update a plain HSET and AppendIfAbsent an atomic HSETNX. Change
// fan-out rides pub/sub: each mutation publishes the reassembled
// document on "store:{path}", and subscribers pattern-match on their
// prefix. Reassembly from a hash always yields the keyed-object
// encoding, which is exactly the shape ambiguity the repository
// normalizer exists for.
type DocStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewDocStore(client *redis.Client) *DocStore {
	return &DocStore{client: client, now: time.Now}
}

const (
	docKeyPrefix = "doc:"
	chanPrefix   = "store:"
)

func (s *DocStore) Write(ctx context.Context, path string, value any) error {
	fields, err := toFields(path, value)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, docKeyPrefix+path)
	if len(fields) > 0 {
		pipe.HSet(ctx, docKeyPrefix+path, fields)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return s.publish(ctx, path)
}

func (s *DocStore) Update(ctx context.Context, path string, fields map[string]any) error {
	encoded := make(map[string]string, len(fields))
	for name, value := range fields {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal %s.%s: %w", path, name, err)
		}
		encoded[name] = string(raw)
	}
	if err := s.client.HSet(ctx, docKeyPrefix+path, encoded).Err(); err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	return s.publish(ctx, path)
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

func (s *DocStore) AppendIfAbsent(ctx context.Context, path, key string, value any) (bool, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("marshal %s/%s: %w", path, key, err)
	}
	inserted, err := s.client.HSetNX(ctx, docKeyPrefix+path, key, string(raw)).Result()
	if err != nil {
		return false, fmt.Errorf("append %s/%s: %w", path, key, err)
	}
	if inserted {
		if err := s.publish(ctx, path); err != nil {
			return true, err
		}
	}
	return inserted, nil
}

func (s *DocStore) Read(ctx context.Context, path string) (json.RawMessage, bool, error) {
	fields, err := s.client.HGetAll(ctx, docKeyPrefix+path).Result()
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}
	if len(fields) == 0 {
		return nil, false, nil
	}
	raw, err := assemble(fields)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}
	return raw, true, nil
}

func (s *DocStore) Subscribe(ctx context.Context, prefix string, fn func(store.Event)) (func(), error) {
	pubsub := s.client.PSubscribe(ctx, chanPrefix+prefix, chanPrefix+prefix+"/*")

	// Initial delivery: every existing document under the prefix, in
	// path order.
	paths, err := s.scanPaths(ctx, prefix)
	if err != nil {
		_ = pubsub.Close()
		return nil, err
	}
	for _, path := range paths {
		raw, ok, err := s.Read(ctx, path)
		if err != nil {
			_ = pubsub.Close()
			return nil, err
		}
		if ok {
			fn(store.Event{Path: path, Value: raw})
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range pubsub.Channel() {
			path := strings.TrimPrefix(msg.Channel, chanPrefix)
			if !underPrefix(path, prefix) {
				continue
			}
			fn(store.Event{Path: path, Value: json.RawMessage(msg.Payload)})
		}
	}()

	cancel := func() {
		_ = pubsub.Close()
		<-done
	}
	return cancel, nil
}

// publish reassembles the document and fans it out on the path channel.
func (s *DocStore) publish(ctx context.Context, path string) error {
	raw, ok, err := s.Read(ctx, path)
	if err != nil {
		return err
	}
	if !ok {
		raw = json.RawMessage("null")
	}
	if err := s.client.Publish(ctx, chanPrefix+path, string(raw)).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", path, err)
	}
	return nil
}

func (s *DocStore) scanPaths(ctx context.Context, prefix string) ([]string, error) {
	var paths []string
	iter := s.client.Scan(ctx, 0, docKeyPrefix+prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		path := strings.TrimPrefix(iter.Val(), docKeyPrefix)
		if underPrefix(path, prefix) {
			paths = append(paths, path)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", prefix, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// toFields flattens a document into hash fields. Objects become one
// field per key; arrays become one field per element under time-ordered
// push keys so enumeration order survives the hash round trip.
func toFields(path string, value any) (map[string]string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", path, err)
	}
	trimmed := strings.TrimSpace(string(raw))
	fields := make(map[string]string)
	switch {
	case strings.HasPrefix(trimmed, "{"):
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		for name, v := range obj {
			fields[name] = string(v)
		}
	case strings.HasPrefix(trimmed, "["):
		var arr []json.RawMessage
		if err := json.Unmarshal(raw, &arr); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		for i, v := range arr {
			fields[fmt.Sprintf("%08d", i)] = string(v)
		}
	default:
		return nil, fmt.Errorf("document %s must be an object or array", path)
	}
	return fields, nil
}

func assemble(fields map[string]string) (json.RawMessage, error) {
	obj := make(map[string]json.RawMessage, len(fields))
	for name, v := range fields {
		obj[name] = json.RawMessage(v)
	}
	return json.Marshal(obj)
}

func underPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

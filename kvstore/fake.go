package kvstore

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FakeStore is an in-memory Store used by package tests across the
// repository. It is not a production backend; no library in the retrieval
// pack ships a Redis-compatible in-memory server against the go-redis/v9
// client generation this module uses, so tests exercise the Store
// interface against a hand-written fake instead.
type FakeStore struct {
	mu      sync.Mutex
	strings map[string]fakeEntry
	hashes  map[string]map[string]string
	sets    map[string]map[string]struct{}
	expiry  map[string]time.Time
}

type fakeEntry struct {
	value string
}

// NewFakeStore returns an empty FakeStore.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		strings: make(map[string]fakeEntry),
		hashes:  make(map[string]map[string]string),
		sets:    make(map[string]map[string]struct{}),
		expiry:  make(map[string]time.Time),
	}
}

func (f *FakeStore) expired(key string) bool {
	if exp, ok := f.expiry[key]; ok {
		return time.Now().After(exp)
	}
	return false
}

func (f *FakeStore) purgeIfExpired(key string) {
	if f.expired(key) {
		delete(f.strings, key)
		delete(f.hashes, key)
		delete(f.sets, key)
		delete(f.expiry, key)
	}
}

func (f *FakeStore) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purgeIfExpired(key)
	e, ok := f.strings[key]
	if !ok {
		return "", false, nil
	}
	return e.value, true, nil
}

func (f *FakeStore) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.strings[key] = fakeEntry{value: value}
	delete(f.expiry, key)
	return nil
}

func (f *FakeStore) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.strings[key] = fakeEntry{value: value}
	f.expiry[key] = time.Now().Add(ttl)
	return nil
}

func (f *FakeStore) Del(ctx context.Context, keys ...string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.strings[k]; ok {
			n++
		} else if _, ok := f.hashes[k]; ok {
			n++
		} else if _, ok := f.sets[k]; ok {
			n++
		}
		delete(f.strings, k)
		delete(f.hashes, k)
		delete(f.sets, k)
		delete(f.expiry, k)
	}
	return n, nil
}

func (f *FakeStore) Exists(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purgeIfExpired(key)
	_, ok1 := f.strings[key]
	_, ok2 := f.hashes[key]
	_, ok3 := f.sets[key]
	return ok1 || ok2 || ok3, nil
}

func (f *FakeStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	exp, ok := f.expiry[key]
	if !ok {
		return -1, nil
	}
	d := time.Until(exp)
	if d < 0 {
		return -2, nil
	}
	return d, nil
}

func (f *FakeStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expiry[key] = time.Now().Add(ttl)
	return nil
}

func (f *FakeStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hashes[key]
	if !ok {
		h = make(map[string]string)
		f.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (f *FakeStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purgeIfExpired(key)
	out := make(map[string]string)
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (f *FakeStore) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hashes[key]
	if !ok {
		h = make(map[string]string)
		f.hashes[key] = h
	}
	cur, _ := strconv.ParseInt(h[field], 10, 64)
	cur += delta
	h[field] = strconv.FormatInt(cur, 10)
	return cur, nil
}

func (f *FakeStore) SAdd(ctx context.Context, key string, members ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sets[key]
	if !ok {
		s = make(map[string]struct{})
		f.sets[key] = s
	}
	for _, m := range members {
		s[m] = struct{}{}
	}
	return nil
}

func (f *FakeStore) SMembers(ctx context.Context, key string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purgeIfExpired(key)
	out := make([]string, 0, len(f.sets[key]))
	for m := range f.sets[key] {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

func (f *FakeStore) Incr(ctx context.Context, key string) (int64, error) {
	return f.IncrBy(ctx, key, 1)
}

func (f *FakeStore) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purgeIfExpired(key)
	cur, _ := strconv.ParseInt(f.strings[key].value, 10, 64)
	cur += delta
	f.strings[key] = fakeEntry{value: strconv.FormatInt(cur, 10)}
	return cur, nil
}

// Scan treats cursor as an offset into the sorted list of matching string
// keys and returns at most count keys per call, with the offset to resume
// from as the next cursor (0 once the list is exhausted).
func (f *FakeStore) Scan(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var all []string
	for k := range f.strings {
		if f.expired(k) {
			continue
		}
		if globMatch(pattern, k) {
			all = append(all, k)
		}
	}
	sort.Strings(all)

	start := int(cursor)
	if start > len(all) {
		start = len(all)
	}
	end := start + int(count)
	if end > len(all) {
		end = len(all)
	}
	page := all[start:end]
	next := uint64(end)
	if end >= len(all) {
		next = 0
	}
	return page, next, nil
}

func (f *FakeStore) Batch() Batch {
	return &fakeBatch{store: f}
}

type fakeOp func(ctx context.Context, s *FakeStore) (key string, ok bool, err error)

type fakeBatch struct {
	store *FakeStore
	ops   []fakeOp
}

func (b *fakeBatch) SetEx(key, value string, ttl time.Duration) {
	b.ops = append(b.ops, func(ctx context.Context, s *FakeStore) (string, bool, error) {
		return key, true, s.SetEx(ctx, key, value, ttl)
	})
}

func (b *fakeBatch) HSet(key string, fields map[string]string) {
	b.ops = append(b.ops, func(ctx context.Context, s *FakeStore) (string, bool, error) {
		return key, true, s.HSet(ctx, key, fields)
	})
}

func (b *fakeBatch) Expire(key string, ttl time.Duration) {
	b.ops = append(b.ops, func(ctx context.Context, s *FakeStore) (string, bool, error) {
		return "", false, s.Expire(ctx, key, ttl)
	})
}

func (b *fakeBatch) SAdd(key string, members ...string) {
	b.ops = append(b.ops, func(ctx context.Context, s *FakeStore) (string, bool, error) {
		return key, true, s.SAdd(ctx, key, members...)
	})
}

func (b *fakeBatch) Incr(key string) {
	b.ops = append(b.ops, func(ctx context.Context, s *FakeStore) (string, bool, error) {
		_, err := s.Incr(ctx, key)
		return key, true, err
	})
}

func (b *fakeBatch) IncrBy(key string, delta int64) {
	b.ops = append(b.ops, func(ctx context.Context, s *FakeStore) (string, bool, error) {
		_, err := s.IncrBy(ctx, key, delta)
		return key, true, err
	})
}

func (b *fakeBatch) HIncrBy(key, field string, delta int64) {
	b.ops = append(b.ops, func(ctx context.Context, s *FakeStore) (string, bool, error) {
		_, err := s.HIncrBy(ctx, key, field, delta)
		return key, true, err
	})
}

func (b *fakeBatch) Exec(ctx context.Context) ([]string, error) {
	var written []string
	for _, op := range b.ops {
		key, ok, err := op(ctx, b.store)
		if err != nil {
			return written, err
		}
		if ok {
			written = append(written, key)
		}
	}
	return written, nil
}

// globMatch supports the '*' wildcard used by the invalidation engine's
// pattern sweeps; Redis SCAN MATCH semantics are otherwise literal.
func globMatch(pattern, s string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == s
	}
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	for i := 1; i < len(parts)-1; i++ {
		idx := strings.Index(s, parts[i])
		if idx < 0 {
			return false
		}
		s = s[idx+len(parts[i]):]
	}
	return strings.HasSuffix(s, parts[len(parts)-1])
}

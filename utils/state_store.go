package utils

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type stateEntry struct {
	value     []byte
	expiresAt time.Time
}

// TTLStore keeps short-lived values such as OAuth state and revoked tokens.
// Redis is used when available so every instance sees the same values;
// otherwise values live in process memory.
type TTLStore struct {
	rc     *redis.Client
	prefix string

	mu  sync.Mutex
	mem map[string]stateEntry
	now func() time.Time
}

// NewTTLStore namespaces keys under prefix. rc may be nil.
func NewTTLStore(rc *redis.Client, prefix string) *TTLStore {
	return &TTLStore{
		rc:     rc,
		prefix: prefix,
		mem:    map[string]stateEntry{},
		now:    time.Now,
	}
}

// Save stores value under key for ttl.
func (s *TTLStore) Save(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if s.rc != nil {
		return s.rc.Set(ctx, s.prefix+key, value, ttl).Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, e := range s.mem {
		if !now.Before(e.expiresAt) {
			delete(s.mem, k)
		}
	}
	s.mem[key] = stateEntry{value: value, expiresAt: now.Add(ttl)}
	return nil
}

// Consume returns the value under key and removes it, so a key can be
// consumed at most once. ok is false for unknown or expired keys.
func (s *TTLStore) Consume(ctx context.Context, key string) (value []byte, ok bool, err error) {
	if s.rc != nil {
		v, err := s.rc.GetDel(ctx, s.prefix+key).Bytes()
		switch {
		case err == nil:
			return v, true, nil
		case errors.Is(err, redis.Nil):
			return nil, false, nil
		}
		// servers before 6.2 have no GETDEL
		script := `local v=redis.call('GET', KEYS[1]); if v then redis.call('DEL', KEYS[1]); end; return v`
		res, evalErr := s.rc.Eval(ctx, script, []string{s.prefix + key}).Result()
		if errors.Is(evalErr, redis.Nil) {
			return nil, false, nil
		}
		if evalErr != nil {
			return nil, false, err
		}
		str, _ := res.(string)
		return []byte(str), true, nil
	}

	s.mu.Lock()
	entry, found := s.mem[key]
	delete(s.mem, key)
	s.mu.Unlock()
	if !found || !s.now().Before(entry.expiresAt) {
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Exists reports whether key is present and unexpired.
func (s *TTLStore) Exists(ctx context.Context, key string) (bool, error) {
	if s.rc != nil {
		n, err := s.rc.Exists(ctx, s.prefix+key).Result()
		return n > 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, found := s.mem[key]
	if found && !s.now().Before(entry.expiresAt) {
		delete(s.mem, key)
		return false, nil
	}
	return found, nil
}

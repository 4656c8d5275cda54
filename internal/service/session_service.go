package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/bitlabs/talentstream-proctor/internal/config"
	"github.com/redis/go-redis/v9"
)

// Well-known session keys.
const (
	SessionKeyZohoUserID = "zohoUserId"
)

var (
	ErrInvalidSessionKey = errors.New("invalid session key")
	ErrSessionKeyMissing = errors.New("session key not set")
)

var sessionKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// SessionStore holds per-applicant client session values such as the CRM
// user id and tour flags.
type SessionStore interface {
	Get(ctx context.Context, applicantID int, key string) (string, bool, error)
	Set(ctx context.Context, applicantID int, key, value string) error
	Delete(ctx context.Context, applicantID int, key string) error
	All(ctx context.Context, applicantID int) (map[string]string, error)
}

// RedisSessionStore keeps one hash per applicant with a sliding TTL.
type RedisSessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisSessionStore creates a RedisSessionStore.
func NewRedisSessionStore(rdb *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb, ttl: ttl}
}

func (s *RedisSessionStore) Get(ctx context.Context, applicantID int, key string) (string, bool, error) {
	val, err := s.rdb.HGet(ctx, config.CacheKey.SessionValuesKey(applicantID), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get session value: %w", err)
	}
	return val, true, nil
}

func (s *RedisSessionStore) Set(ctx context.Context, applicantID int, key, value string) error {
	hashKey := config.CacheKey.SessionValuesKey(applicantID)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, hashKey, key, value)
	if s.ttl > 0 {
		pipe.Expire(ctx, hashKey, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set session value: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, applicantID int, key string) error {
	if err := s.rdb.HDel(ctx, config.CacheKey.SessionValuesKey(applicantID), key).Err(); err != nil {
		return fmt.Errorf("delete session value: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) All(ctx context.Context, applicantID int) (map[string]string, error) {
	vals, err := s.rdb.HGetAll(ctx, config.CacheKey.SessionValuesKey(applicantID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list session values: %w", err)
	}
	return vals, nil
}

// MemorySessionStore is an in-process SessionStore.
type MemorySessionStore struct {
	mu   sync.RWMutex
	vals map[int]map[string]string
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{vals: make(map[int]map[string]string)}
}

func (s *MemorySessionStore) Get(_ context.Context, applicantID int, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vals[applicantID][key]
	return v, ok, nil
}

func (s *MemorySessionStore) Set(_ context.Context, applicantID int, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vals[applicantID] == nil {
		s.vals[applicantID] = make(map[string]string)
	}
	s.vals[applicantID][key] = value
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, applicantID int, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.vals[applicantID], key)
	return nil
}

func (s *MemorySessionStore) All(_ context.Context, applicantID int) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.vals[applicantID]))
	for k, v := range s.vals[applicantID] {
		out[k] = v
	}
	return out, nil
}

// SessionService validates keys before they reach the store.
type SessionService struct {
	store SessionStore
}

// NewSessionService creates a new SessionService.
func NewSessionService(store SessionStore) *SessionService {
	return &SessionService{store: store}
}

func checkSessionKey(key string) error {
	if !sessionKeyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidSessionKey, key)
	}
	return nil
}

// Get returns one value or ErrSessionKeyMissing.
func (s *SessionService) Get(ctx context.Context, applicantID int, key string) (string, error) {
	if err := checkSessionKey(key); err != nil {
		return "", err
	}
	v, ok, err := s.store.Get(ctx, applicantID, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrSessionKeyMissing
	}
	return v, nil
}

func (s *SessionService) Put(ctx context.Context, applicantID int, key, value string) error {
	if err := checkSessionKey(key); err != nil {
		return err
	}
	return s.store.Set(ctx, applicantID, key, value)
}

func (s *SessionService) Delete(ctx context.Context, applicantID int, key string) error {
	if err := checkSessionKey(key); err != nil {
		return err
	}
	return s.store.Delete(ctx, applicantID, key)
}

func (s *SessionService) All(ctx context.Context, applicantID int) (map[string]string, error) {
	return s.store.All(ctx, applicantID)
}

package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrJobNotFound reports an unknown or expired job id.
var ErrJobNotFound = errors.New("import job not found")

// JobStatus is the externally visible state of an import job. It is
// written by the pipeline's progress callback and polled by clients.
type JobStatus struct {
	JobID     string         `json:"jobId"`
	Phase     Phase          `json:"phase"`
	Percent   int            `json:"percent"`
	Message   string         `json:"message"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Done      bool           `json:"done"`
	Cancelled bool           `json:"cancelled"`
	Outcome   *ImportOutcome `json:"outcome,omitempty"`
}

// ProgressStore persists job status between the worker goroutine that
// runs an import and the handlers that report on it.
type ProgressStore interface {
	Put(ctx context.Context, status JobStatus) error
	Get(ctx context.Context, jobID string) (*JobStatus, error)
}

// MemoryProgressStore keeps job status in process memory. It backs
// single-node deployments and tests.
type MemoryProgressStore struct {
	mu   sync.RWMutex
	jobs map[string]JobStatus
}

// NewMemoryProgressStore creates an empty in-memory store.
func NewMemoryProgressStore() *MemoryProgressStore {
	return &MemoryProgressStore{jobs: make(map[string]JobStatus)}
}

func (s *MemoryProgressStore) Put(_ context.Context, status JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[status.JobID] = status
	return nil
}

func (s *MemoryProgressStore) Get(_ context.Context, jobID string) (*JobStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	return &status, nil
}

// RedisProgressStore keeps job status in Redis so any node behind a
// load balancer can answer polls. Entries expire on their own; a
// finished job's outcome stays pollable until the TTL lapses.
type RedisProgressStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisProgressStore creates a store over an existing Redis client.
// A zero ttl defaults to 24 hours.
func NewRedisProgressStore(client *redis.Client, ttl time.Duration) *RedisProgressStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisProgressStore{client: client, ttl: ttl}
}

func progressKey(jobID string) string {
	return fmt.Sprintf("import:progress:%s", jobID)
}

func (s *RedisProgressStore) Put(ctx context.Context, status JobStatus) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal job status: %w", err)
	}
	if err := s.client.Set(ctx, progressKey(status.JobID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("store job status: %w", err)
	}
	return nil
}

func (s *RedisProgressStore) Get(ctx context.Context, jobID string) (*JobStatus, error) {
	payload, err := s.client.Get(ctx, progressKey(jobID)).Bytes()
	if err == redis.Nil {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch job status: %w", err)
	}
	var status JobStatus
	if err := json.Unmarshal(payload, &status); err != nil {
		return nil, fmt.Errorf("decode job status: %w", err)
	}
	return &status, nil
}

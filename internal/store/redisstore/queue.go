package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/readerlab/reader-platform/internal/article"
)

// Store is the shared job queue: a FIFO list for pending jobs plus one
// expiring status key per job. It implements article.Queue.
type Store struct {
	rdb       *redis.Client
	prefix    string
	statusTTL time.Duration
}

func New(addr, password string, db int, prefix string, statusTTL time.Duration) *Store {
	if prefix == "" {
		prefix = "reader:articles"
	}
	if statusTTL <= 0 {
		statusTTL = 24 * time.Hour
	}
	return &Store{
		rdb:       redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}),
		prefix:    prefix,
		statusTTL: statusTTL,
	}
}

func (s *Store) queueKey() string { return s.prefix + ":queue" }

func (s *Store) statusKey(jobID string) string { return s.prefix + ":status:" + jobID }

func (s *Store) Ping(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }

func (s *Store) Close() error { return s.rdb.Close() }

// Enqueue pushes the job to the tail of the pending list.
func (s *Store) Enqueue(ctx context.Context, job *article.JobContext) error {
	b, err := article.EncodeJob(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	return s.rdb.LPush(ctx, s.queueKey(), b).Err()
}

// Dequeue blocks up to timeout on the head of the pending list. It returns
// (nil, nil) when the timeout elapsed with nothing to do. Exactly one caller
// receives any given job; BRPOP guarantees that.
func (s *Store) Dequeue(ctx context.Context, timeout time.Duration) (*article.JobContext, error) {
	vals, err := s.rdb.BRPop(ctx, timeout, s.queueKey()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// vals[0] is the list key, vals[1] the payload.
	return article.DecodeJob([]byte(vals[1]))
}

// GetStatus returns the job's status, or nil when the slot expired or was
// never written.
func (s *Store) GetStatus(ctx context.Context, jobID string) (*article.JobStatus, error) {
	raw, err := s.rdb.Get(ctx, s.statusKey(jobID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var st article.JobStatus
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("decode job status: %w", err)
	}
	return &st, nil
}

// UpdateStatus merges the patch into the stored status and rewrites the slot
// in place. Every write resets the retention window.
func (s *Store) UpdateStatus(ctx context.Context, jobID string, patch article.StatusPatch) error {
	st, err := s.GetStatus(ctx, jobID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if st == nil {
		st = &article.JobStatus{ID: jobID, Status: article.JobQueued, CreatedAt: now}
	}
	st.Apply(patch, now)

	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode job status: %w", err)
	}
	return s.rdb.Set(ctx, s.statusKey(jobID), b, s.statusTTL).Err()
}

// QueueStats is an operational snapshot: pending list depth plus counts of
// all live status slots by state.
type QueueStats struct {
	Pending  int64            `json:"pending"`
	ByStatus map[string]int64 `json:"by_status"`
}

func (s *Store) Stats(ctx context.Context) (*QueueStats, error) {
	stats := &QueueStats{ByStatus: make(map[string]int64)}

	depth, err := s.rdb.LLen(ctx, s.queueKey()).Result()
	if err != nil {
		return nil, err
	}
	stats.Pending = depth

	iter := s.rdb.Scan(ctx, 0, s.prefix+":status:*", 100).Iterator()
	for iter.Next(ctx) {
		raw, err := s.rdb.Get(ctx, iter.Val()).Result()
		if errors.Is(err, redis.Nil) {
			continue // expired between SCAN and GET
		}
		if err != nil {
			return nil, err
		}
		var st article.JobStatus
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			continue
		}
		stats.ByStatus[string(st.Status)]++
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return stats, nil
}

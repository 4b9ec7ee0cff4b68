// Package redisjob implements the job store on Redis: one hash per job
// plus a single work-queue list. Records expire on a TTL that every
// write refreshes, so finished jobs linger for a while and vanish on
// their own; the durable copy lives in the archive.
package redisjob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tripradar/tripradar/internal/domain"
)

const queueKey = "queue:jobs"

func jobKey(id string) string { return "job:" + id }

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// NewClient parses a redis:// URL and verifies the connection.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func (s *Store) Enqueue(ctx context.Context, params domain.SearchParams) (string, error) {
	id := uuid.NewString()

	rawParams, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("marshal params: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, jobKey(id), map[string]any{
		"status":     string(domain.StatusQueued),
		"created_at": time.Now().UTC().Format(time.RFC3339Nano),
		"params":     rawParams,
	})
	pipe.Expire(ctx, jobKey(id), s.ttl)
	pipe.RPush(ctx, queueKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}
	return id, nil
}

func (s *Store) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	fields, err := s.rdb.HGetAll(ctx, jobKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read job %s: %w", jobID, err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrJobNotFound
	}
	return jobFromFields(jobID, fields)
}

func jobFromFields(id string, fields map[string]string) (*domain.Job, error) {
	job := &domain.Job{
		ID:     id,
		Status: domain.Status(fields["status"]),
		Error:  fields["error"],
	}

	if raw := fields["created_at"]; raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("parse created_at of job %s: %w", id, err)
		}
		job.CreatedAt = t
	}
	if raw := fields["params"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &job.Params); err != nil {
			return nil, fmt.Errorf("unmarshal params of job %s: %w", id, err)
		}
	}
	if raw := fields["result"]; raw != "" {
		job.Result = &domain.SearchResult{}
		if err := json.Unmarshal([]byte(raw), job.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result of job %s: %w", id, err)
		}
	}
	if _, ok := fields["total"]; ok {
		processed, _ := strconv.Atoi(fields["processed"])
		total, _ := strconv.Atoi(fields["total"])
		job.Progress = &domain.Progress{
			Processed: processed,
			Total:     total,
			Current:   fields["current"],
		}
	}
	return job, nil
}

// exists guards status writes against records that already expired.
func (s *Store) exists(ctx context.Context, jobID string) error {
	n, err := s.rdb.Exists(ctx, jobKey(jobID)).Result()
	if err != nil {
		return fmt.Errorf("check job %s: %w", jobID, err)
	}
	if n == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

// pickupScript transitions queued→running in one atomic step. A cancel
// landing between claim and pickup leaves the status cancelled, and the
// script then refuses the transition instead of overwriting it.
var pickupScript = redis.NewScript(`
local status = redis.call("HGET", KEYS[1], "status")
if status == false then return -1 end
if status ~= ARGV[1] then return 0 end
redis.call("HSET", KEYS[1], "status", ARGV[2])
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return 1
`)

func (s *Store) SetRunning(ctx context.Context, jobID string) (bool, error) {
	res, err := pickupScript.Run(ctx, s.rdb, []string{jobKey(jobID)},
		string(domain.StatusQueued), string(domain.StatusRunning), s.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("mark job %s running: %w", jobID, err)
	}
	switch res {
	case -1:
		return false, domain.ErrJobNotFound
	case 0:
		return false, nil
	}
	return true, nil
}

func (s *Store) SetProgress(ctx context.Context, jobID string, p domain.Progress) error {
	if err := s.exists(ctx, jobID); err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, jobKey(jobID), map[string]any{
		"processed": p.Processed,
		"total":     p.Total,
		"current":   p.Current,
	})
	pipe.Expire(ctx, jobKey(jobID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write progress of job %s: %w", jobID, err)
	}
	return nil
}

func (s *Store) SetDone(ctx context.Context, jobID string, result *domain.SearchResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return s.finish(ctx, jobID, map[string]any{
		"status": string(domain.StatusDone),
		"result": raw,
	})
}

func (s *Store) SetFailed(ctx context.Context, jobID string, errMsg string) error {
	return s.finish(ctx, jobID, map[string]any{
		"status": string(domain.StatusFailed),
		"error":  errMsg,
	})
}

// finish writes a terminal status and drops the live progress fields,
// so a terminal record never shows a stale progress bar.
func (s *Store) finish(ctx context.Context, jobID string, fields map[string]any) error {
	if err := s.exists(ctx, jobID); err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, jobKey(jobID), fields)
	pipe.HDel(ctx, jobKey(jobID), "processed", "total", "current")
	pipe.Expire(ctx, jobKey(jobID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("finish job %s: %w", jobID, err)
	}
	return nil
}

func (s *Store) QueuePosition(ctx context.Context, jobID string) (int, error) {
	ids, err := s.rdb.LRange(ctx, queueKey, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("read queue: %w", err)
	}
	for i, id := range ids {
		if id == jobID {
			return i + 1, nil
		}
	}
	return 0, nil
}

// cancelScript checks the terminal guard and writes the cancellation in
// one atomic step, so a worker's SetDone landing concurrently can never
// be overwritten after the guard passed.
var cancelScript = redis.NewScript(`
local status = redis.call("HGET", KEYS[1], "status")
if status == false then return -1 end
if status == ARGV[2] or status == ARGV[3] or status == ARGV[4] then return 0 end
redis.call("LREM", KEYS[2], 0, ARGV[1])
redis.call("HSET", KEYS[1], "status", ARGV[2])
redis.call("HDEL", KEYS[1], "processed", "total", "current")
redis.call("PEXPIRE", KEYS[1], ARGV[5])
return 1
`)

func (s *Store) Cancel(ctx context.Context, jobID string) (bool, error) {
	res, err := cancelScript.Run(ctx, s.rdb,
		[]string{jobKey(jobID), queueKey},
		jobID,
		string(domain.StatusCancelled), string(domain.StatusDone), string(domain.StatusFailed),
		s.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("cancel job %s: %w", jobID, err)
	}
	switch res {
	case -1:
		return false, domain.ErrJobNotFound
	case 0:
		return false, nil
	}
	return true, nil
}

func (s *Store) ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error) {
	vals, err := s.rdb.BLPop(ctx, timeout, queueKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrQueueEmpty
	}
	if err != nil {
		return "", fmt.Errorf("claim job: %w", err)
	}
	return vals[1], nil
}

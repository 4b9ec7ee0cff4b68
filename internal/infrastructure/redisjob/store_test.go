package redisjob_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/tripradar/tripradar/internal/domain"
	"github.com/tripradar/tripradar/internal/infrastructure/redisjob"
)

func newTestStore(t *testing.T, ttl time.Duration) (*redisjob.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return redisjob.New(rdb, ttl), mr
}

func testParams() domain.SearchParams {
	return domain.SearchParams{
		Origin: "WRO", Start: "2026-05-01", End: "2026-05-10",
		TripLength: 7, Providers: []string{"ryanair"}, TopN: 10, ClientID: "client-1",
	}
}

func TestEnqueueAndGetJob(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	ctx := context.Background()

	id, err := store.Enqueue(ctx, testParams())
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if id == "" {
		t.Fatal("Enqueue returned empty id")
	}

	job, err := store.GetJob(ctx, id)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != domain.StatusQueued {
		t.Errorf("status = %s, want queued", job.Status)
	}
	if job.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}
	if !reflect.DeepEqual(job.Params, testParams()) {
		t.Errorf("params round-trip = %+v", job.Params)
	}
	if job.Progress != nil || job.Result != nil || job.Error != "" {
		t.Errorf("fresh job carries state: %+v", job)
	}
}

func TestGetJob_Missing(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)

	if _, err := store.GetJob(context.Background(), "nope"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatalf("err = %v, want ErrJobNotFound", err)
	}
}

func TestGetJob_ExpiredRecordNotFound(t *testing.T) {
	store, mr := newTestStore(t, time.Minute)
	ctx := context.Background()

	id, err := store.Enqueue(ctx, testParams())
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := store.GetJob(ctx, id); !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatalf("err after expiry = %v, want ErrJobNotFound", err)
	}
}

func TestClaimBlocking_FIFO(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	ctx := context.Background()

	first, _ := store.Enqueue(ctx, testParams())
	second, _ := store.Enqueue(ctx, testParams())

	for _, want := range []string{first, second} {
		got, err := store.ClaimBlocking(ctx, time.Second)
		if err != nil {
			t.Fatalf("ClaimBlocking: %v", err)
		}
		if got != want {
			t.Fatalf("claimed %s, want %s", got, want)
		}
	}

	if _, err := store.ClaimBlocking(ctx, 100*time.Millisecond); !errors.Is(err, domain.ErrQueueEmpty) {
		t.Fatalf("err on drained queue = %v, want ErrQueueEmpty", err)
	}
}

func TestQueuePosition(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		id, _ := store.Enqueue(ctx, testParams())
		ids = append(ids, id)
	}

	for i, id := range ids {
		pos, err := store.QueuePosition(ctx, id)
		if err != nil {
			t.Fatalf("QueuePosition: %v", err)
		}
		if pos != i+1 {
			t.Errorf("position of job %d = %d, want %d", i, pos, i+1)
		}
	}

	// Claiming the head shifts everyone forward and zeroes the claimed.
	claimed, _ := store.ClaimBlocking(ctx, time.Second)
	if pos, _ := store.QueuePosition(ctx, claimed); pos != 0 {
		t.Errorf("position of claimed job = %d, want 0", pos)
	}
	if pos, _ := store.QueuePosition(ctx, ids[1]); pos != 1 {
		t.Errorf("position after claim = %d, want 1", pos)
	}
	if pos, _ := store.QueuePosition(ctx, "nope"); pos != 0 {
		t.Errorf("position of unknown job = %d, want 0", pos)
	}
}

func TestSetRunning_OnlyFromQueued(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	ctx := context.Background()

	id, _ := store.Enqueue(ctx, testParams())
	ok, err := store.SetRunning(ctx, id)
	if err != nil || !ok {
		t.Fatalf("SetRunning on queued = (%v, %v), want (true, nil)", ok, err)
	}

	// Already running: the transition must not repeat.
	if ok, err := store.SetRunning(ctx, id); err != nil || ok {
		t.Fatalf("SetRunning on running = (%v, %v), want (false, nil)", ok, err)
	}

	if _, err := store.SetRunning(ctx, "nope"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatalf("SetRunning on missing = %v, want ErrJobNotFound", err)
	}
}

func TestSetRunning_RefusedAfterCancel(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	ctx := context.Background()

	id, _ := store.Enqueue(ctx, testParams())
	if ok, err := store.Cancel(ctx, id); err != nil || !ok {
		t.Fatalf("Cancel = (%v, %v), want (true, nil)", ok, err)
	}

	ok, err := store.SetRunning(ctx, id)
	if err != nil || ok {
		t.Fatalf("SetRunning after cancel = (%v, %v), want (false, nil)", ok, err)
	}
	job, err := store.GetJob(ctx, id)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != domain.StatusCancelled {
		t.Errorf("status = %s, want cancelled to survive pickup", job.Status)
	}
}

func TestProgressLifecycle(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	ctx := context.Background()

	id, _ := store.Enqueue(ctx, testParams())
	if _, err := store.SetRunning(ctx, id); err != nil {
		t.Fatalf("SetRunning: %v", err)
	}

	p := domain.Progress{Processed: 2, Total: 5, Current: "Malaga (AGP)"}
	if err := store.SetProgress(ctx, id, p); err != nil {
		t.Fatalf("SetProgress: %v", err)
	}
	job, _ := store.GetJob(ctx, id)
	if job.Progress == nil || *job.Progress != p {
		t.Fatalf("progress = %+v, want %+v", job.Progress, p)
	}

	result := &domain.SearchResult{Results: []domain.DestinationResult{{Airport: "AGP", Score: 88}}}
	if err := store.SetDone(ctx, id, result); err != nil {
		t.Fatalf("SetDone: %v", err)
	}
	job, _ = store.GetJob(ctx, id)
	if job.Status != domain.StatusDone {
		t.Errorf("status = %s, want done", job.Status)
	}
	if job.Progress != nil {
		t.Error("terminal job still carries progress")
	}
	if job.Result == nil || len(job.Result.Results) != 1 || job.Result.Results[0].Airport != "AGP" {
		t.Errorf("result round-trip = %+v", job.Result)
	}
}

func TestSetFailed_ClearsProgress(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	ctx := context.Background()

	id, _ := store.Enqueue(ctx, testParams())
	if _, err := store.SetRunning(ctx, id); err != nil {
		t.Fatalf("SetRunning: %v", err)
	}
	if err := store.SetProgress(ctx, id, domain.Progress{Processed: 1, Total: 3}); err != nil {
		t.Fatalf("SetProgress: %v", err)
	}

	if err := store.SetFailed(ctx, id, "provider meltdown"); err != nil {
		t.Fatalf("SetFailed: %v", err)
	}
	job, _ := store.GetJob(ctx, id)
	if job.Status != domain.StatusFailed || job.Error != "provider meltdown" {
		t.Fatalf("job = %+v, want failed with message", job)
	}
	if job.Progress != nil {
		t.Error("failed job still carries progress")
	}
}

func TestCancel_QueuedJobLeavesTheQueue(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	ctx := context.Background()

	first, _ := store.Enqueue(ctx, testParams())
	second, _ := store.Enqueue(ctx, testParams())

	ok, err := store.Cancel(ctx, first)
	if err != nil || !ok {
		t.Fatalf("Cancel = (%v, %v), want (true, nil)", ok, err)
	}
	job, _ := store.GetJob(ctx, first)
	if job.Status != domain.StatusCancelled {
		t.Errorf("status = %s, want cancelled", job.Status)
	}
	if pos, _ := store.QueuePosition(ctx, first); pos != 0 {
		t.Errorf("cancelled job still queued at %d", pos)
	}

	// The worker must never claim the cancelled id.
	got, err := store.ClaimBlocking(ctx, time.Second)
	if err != nil {
		t.Fatalf("ClaimBlocking: %v", err)
	}
	if got != second {
		t.Errorf("claimed %s, want %s", got, second)
	}
}

func TestCancel_TerminalJobRefused(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	ctx := context.Background()

	id, _ := store.Enqueue(ctx, testParams())
	if _, err := store.SetRunning(ctx, id); err != nil {
		t.Fatalf("SetRunning: %v", err)
	}
	result := &domain.SearchResult{Results: []domain.DestinationResult{{Airport: "ALC", Score: 91}}}
	if err := store.SetDone(ctx, id, result); err != nil {
		t.Fatalf("SetDone: %v", err)
	}

	ok, err := store.Cancel(ctx, id)
	if err != nil || ok {
		t.Fatalf("Cancel on done job = (%v, %v), want (false, nil)", ok, err)
	}
	job, _ := store.GetJob(ctx, id)
	if job.Status != domain.StatusDone || job.Result == nil || len(job.Result.Results) != 1 {
		t.Errorf("done payload disturbed: %+v", job)
	}
}

func TestCancel_MissingJob(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)

	if _, err := store.Cancel(context.Background(), "nope"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatalf("err = %v, want ErrJobNotFound", err)
	}
}

func TestMutationsRefreshTTL(t *testing.T) {
	store, mr := newTestStore(t, time.Minute)
	ctx := context.Background()

	id, _ := store.Enqueue(ctx, testParams())
	key := "job:" + id

	mr.FastForward(30 * time.Second)
	if ttl := mr.TTL(key); ttl != 30*time.Second {
		t.Fatalf("ttl before mutation = %v, want 30s", ttl)
	}

	if _, err := store.SetRunning(ctx, id); err != nil {
		t.Fatalf("SetRunning: %v", err)
	}
	if ttl := mr.TTL(key); ttl != time.Minute {
		t.Errorf("ttl after SetRunning = %v, want full minute", ttl)
	}

	mr.FastForward(30 * time.Second)
	if err := store.SetProgress(ctx, id, domain.Progress{Processed: 1, Total: 3}); err != nil {
		t.Fatalf("SetProgress: %v", err)
	}
	if ttl := mr.TTL(key); ttl != time.Minute {
		t.Errorf("ttl after SetProgress = %v, want full minute", ttl)
	}

	mr.FastForward(30 * time.Second)
	if err := store.SetDone(ctx, id, &domain.SearchResult{}); err != nil {
		t.Fatalf("SetDone: %v", err)
	}
	if ttl := mr.TTL(key); ttl != time.Minute {
		t.Errorf("ttl after SetDone = %v, want full minute", ttl)
	}
}

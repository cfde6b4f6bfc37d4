package article

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/readerlab/reader-platform/internal/engine"
)

var testDBSeq atomic.Int64

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:articletest%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Article{}, &UsageRecord{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeQueue is an in-memory article.Queue. ops records the call order so
// tests can assert sequencing (status write before push).
type fakeQueue struct {
	mu       sync.Mutex
	jobs     []*JobContext
	statuses map[string]*JobStatus
	ops      []string

	enqueueErr error
	statusErr  error
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{statuses: make(map[string]*JobStatus)}
}

func (q *fakeQueue) Enqueue(ctx context.Context, job *JobContext) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ops = append(q.ops, "enqueue:"+job.JobID)
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeQueue) Dequeue(ctx context.Context, timeout time.Duration) (*JobContext, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return nil, nil
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, nil
}

func (q *fakeQueue) GetStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.statusErr != nil {
		return nil, q.statusErr
	}
	st, ok := q.statuses[jobID]
	if !ok {
		return nil, nil
	}
	cp := *st
	return &cp, nil
}

func (q *fakeQueue) UpdateStatus(ctx context.Context, jobID string, patch StatusPatch) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ops = append(q.ops, "status:"+jobID)
	if q.statusErr != nil {
		return q.statusErr
	}
	now := time.Now().UTC()
	st, ok := q.statuses[jobID]
	if !ok {
		st = &JobStatus{ID: jobID, Status: JobQueued, CreatedAt: now}
		q.statuses[jobID] = st
	}
	st.Apply(patch, now)
	return nil
}

// fakeEngine scripts one generation run.
type fakeEngine struct {
	result *engine.Result
	err    error
	fail   string // non-empty: report an internal step failure

	usages []engine.StepUsage // reported through the hook during the run
	gotReq engine.Request
}

func (e *fakeEngine) Generate(ctx context.Context, req engine.Request) (*engine.Result, error) {
	e.gotReq = req
	for _, u := range e.usages {
		engine.ReportUsage(ctx, u)
	}
	if e.fail != "" {
		req.Progress.Failed(ctx, e.fail)
	}
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

// memUsage is an in-memory UsageStore.
type memUsage struct {
	mu   sync.Mutex
	recs []*UsageRecord
	err  error
}

func (m *memUsage) InsertUsage(ctx context.Context, rec *UsageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.recs = append(m.recs, rec)
	return nil
}

package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/readerlab/reader-platform/internal/article"
	"github.com/readerlab/reader-platform/internal/engine"
)

var testDBSeq atomic.Int64

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:workertest%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&article.Article{}, &article.UsageRecord{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type dequeued struct {
	job *article.JobContext
	err error
}

// scriptQueue replays a fixed dequeue sequence, then cancels the run so the
// loop can be driven synchronously in tests.
type scriptQueue struct {
	mu       sync.Mutex
	script   []dequeued
	statuses map[string]*article.JobStatus
	cancel   context.CancelFunc
}

func newScriptQueue() *scriptQueue {
	return &scriptQueue{statuses: make(map[string]*article.JobStatus)}
}

func (q *scriptQueue) Enqueue(ctx context.Context, job *article.JobContext) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.script = append(q.script, dequeued{job: job})
	return nil
}

func (q *scriptQueue) Dequeue(ctx context.Context, timeout time.Duration) (*article.JobContext, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.script) == 0 {
		q.cancel()
		return nil, nil
	}
	next := q.script[0]
	q.script = q.script[1:]
	return next.job, next.err
}

func (q *scriptQueue) GetStatus(ctx context.Context, jobID string) (*article.JobStatus, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	st, ok := q.statuses[jobID]
	if !ok {
		return nil, nil
	}
	cp := *st
	return &cp, nil
}

func (q *scriptQueue) UpdateStatus(ctx context.Context, jobID string, patch article.StatusPatch) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := time.Now().UTC()
	st, ok := q.statuses[jobID]
	if !ok {
		st = &article.JobStatus{ID: jobID, Status: article.JobQueued, CreatedAt: now}
		q.statuses[jobID] = st
	}
	st.Apply(patch, now)
	return nil
}

// scriptEngine keys its behavior off the topic so one engine can serve a
// whole dequeue sequence.
type scriptEngine struct{}

func (scriptEngine) Generate(ctx context.Context, req engine.Request) (*engine.Result, error) {
	switch req.Topic {
	case "hard-error":
		return nil, errors.New("model unavailable")
	case "panic":
		panic("engine blew up")
	case "step-fail":
		req.Progress.Failed(ctx, "revision came back empty")
		return &engine.Result{Content: "partial"}, nil
	default:
		return &engine.Result{Content: "an article about " + req.Topic, Source: "ollama:llama3"}, nil
	}
}

type recordedEvent struct {
	jobID, articleID, status, errMsg string
}

type fakeEvents struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeEvents) PublishArticleEvent(ctx context.Context, jobID, articleID, status, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{jobID, articleID, status, errMsg})
	return nil
}

type fixture struct {
	repo   *article.Repo
	queue  *scriptQueue
	events *fakeEvents
	worker *Worker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := article.NewRepo(openTestDB(t))
	q := newScriptQueue()
	gen := article.NewGenerationService(repo, q, scriptEngine{}, nil, 50, testLogger())
	events := &fakeEvents{}
	w := New(q, repo, gen, events, testLogger(), time.Second)
	w.retryBackoff = time.Millisecond
	return &fixture{repo: repo, queue: q, events: events, worker: w}
}

// seedJob persists a running article and scripts its job for dequeue.
func (f *fixture) seedJob(t *testing.T, topic string) *article.JobContext {
	t.Helper()
	in := article.GenerationInput{Language: "english", Level: "B1", Length: "medium", Topic: topic}
	jobID := article.NewJobID()
	art := article.New(in, nil, jobID)
	if err := f.repo.Create(context.Background(), art); err != nil {
		t.Fatalf("create article: %v", err)
	}
	job := &article.JobContext{JobID: jobID, ArticleID: art.ID, Inputs: in, CreatedAt: time.Now().UTC()}
	if err := f.queue.Enqueue(context.Background(), job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return job
}

func (f *fixture) run(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	f.queue.cancel = cancel
	f.worker.Run(ctx)
}

func (f *fixture) articleStatus(t *testing.T, id string) article.Status {
	t.Helper()
	art, err := f.repo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get article: %v", err)
	}
	return art.Status
}

func TestWorkerCompletesJob(t *testing.T) {
	f := newFixture(t)
	job := f.seedJob(t, "city gardens")

	f.run(t)

	if got := f.articleStatus(t, job.ArticleID); got != article.StatusCompleted {
		t.Fatalf("want completed, got %s", got)
	}
	art, _ := f.repo.GetByID(context.Background(), job.ArticleID)
	if art.Content == nil || *art.Content == "" {
		t.Fatal("completed article has no content")
	}

	st, _ := f.queue.GetStatus(context.Background(), job.JobID)
	if st == nil || st.Status != article.JobCompleted || st.Progress != 100 {
		t.Fatalf("status slot not finalized: %+v", st)
	}

	if len(f.events.events) != 1 || f.events.events[0].status != "completed" {
		t.Fatalf("completion event not published: %+v", f.events.events)
	}
}

func TestWorkerSurvivesJobFailure(t *testing.T) {
	f := newFixture(t)
	bad := f.seedJob(t, "hard-error")
	good := f.seedJob(t, "harbours")

	f.run(t)

	if got := f.articleStatus(t, bad.ArticleID); got != article.StatusFailed {
		t.Fatalf("want failed, got %s", got)
	}
	st, _ := f.queue.GetStatus(context.Background(), bad.JobID)
	if st == nil || st.Status != article.JobFailed {
		t.Fatalf("failed status not written: %+v", st)
	}
	if st.Error == nil || *st.Error != "generation failed" {
		t.Fatalf("failure not classified: %+v", st.Error)
	}

	// The loop kept going and handled the next job.
	if got := f.articleStatus(t, good.ArticleID); got != article.StatusCompleted {
		t.Fatalf("follow-up job not processed: %s", got)
	}
}

func TestWorkerRecoversFromPanic(t *testing.T) {
	f := newFixture(t)
	bad := f.seedJob(t, "panic")
	good := f.seedJob(t, "lighthouses")

	f.run(t)

	if got := f.articleStatus(t, bad.ArticleID); got != article.StatusFailed {
		t.Fatalf("panicked job should fail the article, got %s", got)
	}
	st, _ := f.queue.GetStatus(context.Background(), bad.JobID)
	if st == nil || st.Status != article.JobFailed {
		t.Fatalf("failed status not written after panic: %+v", st)
	}
	if got := f.articleStatus(t, good.ArticleID); got != article.StatusCompleted {
		t.Fatalf("loop did not survive the panic: %s", got)
	}
}

func TestWorkerClassifiesStepFailure(t *testing.T) {
	f := newFixture(t)
	job := f.seedJob(t, "step-fail")

	f.run(t)

	if got := f.articleStatus(t, job.ArticleID); got != article.StatusFailed {
		t.Fatalf("want failed, got %s", got)
	}
	st, _ := f.queue.GetStatus(context.Background(), job.JobID)
	if st == nil || st.Error == nil || *st.Error != "generation step failed" {
		t.Fatalf("step failure not classified: %+v", st)
	}
}

func TestWorkerDropsMalformedPayload(t *testing.T) {
	f := newFixture(t)
	f.queue.script = append(f.queue.script,
		dequeued{err: &article.ValidationError{Reason: "job payload missing jobId"}})
	good := f.seedJob(t, "wetlands")

	f.run(t)

	if got := f.articleStatus(t, good.ArticleID); got != article.StatusCompleted {
		t.Fatalf("job after malformed payload not processed: %s", got)
	}
	if len(f.events.events) != 1 {
		t.Fatalf("malformed payload must not produce events: %+v", f.events.events)
	}
}

func TestWorkerRetriesAfterDequeueError(t *testing.T) {
	f := newFixture(t)
	f.queue.script = append(f.queue.script, dequeued{err: errors.New("connection reset")})
	good := f.seedJob(t, "glaciers")

	f.run(t)

	if got := f.articleStatus(t, good.ArticleID); got != article.StatusCompleted {
		t.Fatalf("job after transient dequeue error not processed: %s", got)
	}
}

func TestWorkerMissingArticleFailsJob(t *testing.T) {
	f := newFixture(t)
	in := article.GenerationInput{Language: "english", Level: "B1", Topic: "orphans"}
	job := &article.JobContext{JobID: article.NewJobID(), ArticleID: "no-such-article", Inputs: in}
	_ = f.queue.Enqueue(context.Background(), job)

	f.run(t)

	st, _ := f.queue.GetStatus(context.Background(), job.JobID)
	if st == nil || st.Status != article.JobFailed {
		t.Fatalf("missing article should fail the job: %+v", st)
	}
	if st.Error == nil || *st.Error != "article not found" {
		t.Fatalf("want article not found, got %+v", st.Error)
	}
}

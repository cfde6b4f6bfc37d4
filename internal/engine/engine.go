package engine

import (
	"context"
	"sync"
)

// Request carries the inputs for one article generation run. Progress is
// bound to the job by the caller before the run starts; engines report step
// transitions through it.
type Request struct {
	Language       string
	Level          string
	Length         string
	Topic          string
	VocabularyHint []string
	JobID          string
	ArticleID      string
	Progress       ProgressSink
}

// StepUsage describes the resource cost of one engine step.
type StepUsage struct {
	Operation       string
	Step            string
	Model           string
	PromptUnits     int
	CompletionUnits int
	TotalUnits      int
	EstimatedCost   float64
}

type Result struct {
	Content     string
	Source      string
	EditHistory []string
	Steps       []StepUsage
}

type Engine interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// ProgressSink receives step transitions during a run. Failed marks an
// internal step failure; the run may still return without a hard error.
type ProgressSink interface {
	Step(ctx context.Context, progress int, message string)
	Failed(ctx context.Context, message string)
}

// NopProgress is used when no observer is bound.
type NopProgress struct{}

func (NopProgress) Step(context.Context, int, string) {}
func (NopProgress) Failed(context.Context, string)    {}

func sink(req Request) ProgressSink {
	if req.Progress == nil {
		return NopProgress{}
	}
	return req.Progress
}

// UsageHook observes per-step resource usage at engine call sites.
type UsageHook func(ctx context.Context, usage StepUsage)

var (
	hookMu    sync.RWMutex
	usageHook UsageHook
)

// SetUsageHook installs hook as the process-wide usage observer and returns
// the previously installed one so the caller can restore it when done.
func SetUsageHook(hook UsageHook) UsageHook {
	hookMu.Lock()
	defer hookMu.Unlock()
	prev := usageHook
	usageHook = hook
	return prev
}

// ReportUsage invokes the installed hook, if any. Engines call this once per
// resource-consuming step.
func ReportUsage(ctx context.Context, usage StepUsage) {
	hookMu.RLock()
	hook := usageHook
	hookMu.RUnlock()
	if hook != nil {
		hook(ctx, usage)
	}
}

// Package trace provides the observer hooks invoked around core runtime
// operations. A Sink sees every operation before and after it runs; it can
// attach data to the context but cannot change the outcome.
package trace

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Operation names reported to sinks.
const (
	OpSceneStart   = "scene.start"
	OpSceneAdvance = "scene.advance"
	OpSceneEnd     = "scene.end"
	OpBuildLine    = "dialogue.build_line"
)

// Op describes an operation about to run.
type Op struct {
	Name  string
	Attrs map[string]string
}

// Outcome describes how an operation finished.
type Outcome struct {
	OK       bool
	Detail   string
	Err      error
	Duration time.Duration
}

// Sink observes core operations.
type Sink interface {
	Before(ctx context.Context, op Op) context.Context
	After(ctx context.Context, op Op, out Outcome)
}

// Nop is a Sink that does nothing.
type Nop struct{}

func (Nop) Before(ctx context.Context, _ Op) context.Context { return ctx }
func (Nop) After(context.Context, Op, Outcome)               {}

// Run wraps fn with sink hooks and fills in the duration. A nil sink runs fn
// directly.
func Run(ctx context.Context, sink Sink, op Op, fn func(ctx context.Context) Outcome) Outcome {
	if sink == nil {
		return fn(ctx)
	}
	start := time.Now()
	ctx = sink.Before(ctx, op)
	out := fn(ctx)
	out.Duration = time.Since(start)
	sink.After(ctx, op, out)
	return out
}

// Slog logs every operation at debug level and failures with an error at
// warn level.
type Slog struct {
	logger *slog.Logger
}

// NewSlog creates a logging sink.
func NewSlog(logger *slog.Logger) *Slog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Slog{logger: logger.With("component", "trace")}
}

func (s *Slog) Before(ctx context.Context, op Op) context.Context {
	s.logger.DebugContext(ctx, "Operation started", append([]any{"op", op.Name}, attrArgs(op.Attrs)...)...)
	return ctx
}

func (s *Slog) After(ctx context.Context, op Op, out Outcome) {
	args := append([]any{"op", op.Name, "ok", out.OK, "duration", out.Duration}, attrArgs(op.Attrs)...)
	if out.Detail != "" {
		args = append(args, "detail", out.Detail)
	}
	if out.Err != nil {
		s.logger.WarnContext(ctx, "Operation failed", append(args, "error", out.Err)...)
		return
	}
	s.logger.DebugContext(ctx, "Operation finished", args...)
}

func attrArgs(attrs map[string]string) []any {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		args = append(args, k, attrs[k])
	}
	return args
}

// Record is one completed operation captured by a Recorder.
type Record struct {
	Op      Op
	Outcome Outcome
}

// Recorder keeps completed operations in memory, mostly for tests and
// debugging tools.
type Recorder struct {
	mu      sync.Mutex
	records []Record
	limit   int
}

// NewRecorder creates a Recorder that keeps at most limit records; zero
// keeps everything.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

func (r *Recorder) Before(ctx context.Context, _ Op) context.Context { return ctx }

func (r *Recorder) After(_ context.Context, op Op, out Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, Record{Op: op, Outcome: out})
	if r.limit > 0 && len(r.records) > r.limit {
		r.records = r.records[len(r.records)-r.limit:]
	}
}

// Records returns a copy of the captured records, oldest first.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Names returns the operation names in capture order.
func (r *Recorder) Names() []string {
	recs := r.Records()
	names := make([]string, len(recs))
	for i, rec := range recs {
		names[i] = rec.Op.Name
	}
	return names
}

// Multi fans out to several sinks. Before hooks run in order, After hooks in
// reverse order.
type Multi []Sink

func (m Multi) Before(ctx context.Context, op Op) context.Context {
	for _, s := range m {
		if s != nil {
			ctx = s.Before(ctx, op)
		}
	}
	return ctx
}

func (m Multi) After(ctx context.Context, op Op, out Outcome) {
	for i := len(m) - 1; i >= 0; i-- {
		if m[i] != nil {
			m[i].After(ctx, op, out)
		}
	}
}

package domain

import (
	"context"
	"errors"
	"iter"
	"math/rand"
	"sync"
	"time"

	"github.com/danmuck/domainkit/internal/bits"
	"github.com/danmuck/domainkit/internal/config"
	"github.com/danmuck/domainkit/internal/datatype"
	"github.com/danmuck/domainkit/internal/logging"
	"github.com/danmuck/domainkit/internal/observability"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Engine runs abstraction and specialization over variable trees. An Engine
// may be shared between goroutines; each operation gets its own random
// stream drawn from the engine's source.
type Engine struct {
	cfg     config.Engine
	log     zerolog.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer

	mu  sync.Mutex
	src *rand.Rand
}

type EngineOption func(*Engine)

func WithLogger(l zerolog.Logger) EngineOption { return func(e *Engine) { e.log = l } }

func WithMetrics(m *observability.Metrics) EngineOption { return func(e *Engine) { e.metrics = m } }

func WithTracer(t trace.Tracer) EngineOption { return func(e *Engine) { e.tracer = t } }

// WithRand replaces the seed source. The engine serializes access to it.
func WithRand(r *rand.Rand) EngineOption { return func(e *Engine) { e.src = r } }

func NewEngine(cfg config.Engine, opts ...EngineOption) *Engine {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	e := &Engine{
		cfg:    cfg,
		log:    logging.New("domain"),
		tracer: observability.Tracer(),
		src:    rand.New(rand.NewSource(seed)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Config() config.Engine { return e.cfg }

func (e *Engine) newRun(root Variable, presets map[ID]Preset) *run {
	e.mu.Lock()
	seed := e.src.Int63()
	e.mu.Unlock()
	rng := rand.New(rand.NewSource(seed))
	return &run{
		cfg:     e.cfg,
		gen:     datatype.NewGenerator(rng, e.cfg.UnboundedSpan),
		rng:     rng,
		graph:   buildGraph(root),
		presets: presets,
		log:     e.log,
		metrics: e.metrics,
	}
}

// NewPath returns an empty path over mem, prepared for trees rooted at root.
func (e *Engine) NewPath(mem *Memory, root Variable) (*Path, error) {
	if mem == nil || root == nil {
		return nil, opError("path", root, ErrInvalidPath)
	}
	return newPath(mem, e.newRun(root, nil)), nil
}

// Abstract lazily yields every path that parses a prefix of content as v,
// longest match first. Relations may defer themselves.
func (p *Path) Abstract(content bits.Value, v Variable) iter.Seq[*Path] {
	return p.resolve(Parse, v, content, true)
}

// Specialize lazily yields paths carrying a generated value for v.
func (p *Path) Specialize(v Variable) iter.Seq[*Path] {
	return p.resolve(Specialize, v, bits.Value{}, true)
}

// Err is the fatal error that stopped the operation this path belongs to.
func (p *Path) Err() error { return p.run.err }

// Candidates yields the paths that consume all of content with no relation
// left unresolved. Nothing is committed to mem.
func (e *Engine) Candidates(content bits.Value, root Variable, mem *Memory) iter.Seq[*Path] {
	return func(yield func(*Path) bool) {
		p, err := e.NewPath(mem, root)
		if err != nil {
			return
		}
		for c := range p.Abstract(content, root) {
			if complete(c, root, content) && !yield(c) {
				return
			}
		}
	}
}

func complete(c *Path, root Variable, content bits.Value) bool {
	val, _ := c.Assigned(root)
	return val.Len() == content.Len() && c.Pending() == 0
}

// Abstract parses content as root and commits the first complete path's
// memory writes into mem.
func (e *Engine) Abstract(ctx context.Context, content bits.Value, root Variable, mem *Memory) (*Path, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "domain.Abstract", trace.WithAttributes(
		attribute.Int("content.bits", content.Len()),
	))
	defer span.End()

	winner, pulled, err := e.abstract(ctx, content, root, mem)
	e.metrics.RecordCandidates("abstract", pulled)
	e.finish(span, "abstract", start, err)
	if err != nil {
		return nil, err
	}
	winner.Commit()
	e.log.Debug().Str("variable", root.Name()).Int("candidates", pulled).Str("path", winner.name).Msg("abstracted")
	return winner, nil
}

func (e *Engine) abstract(ctx context.Context, content bits.Value, root Variable, mem *Memory) (*Path, int, error) {
	p, err := e.NewPath(mem, root)
	if err != nil {
		return nil, 0, err
	}
	pulled, deadlocked := 0, 0
	for c := range p.Abstract(content, root) {
		pulled++
		if err := ctx.Err(); err != nil {
			return nil, pulled, err
		}
		val, _ := c.Assigned(root)
		if val.Len() == content.Len() {
			if c.Pending() == 0 {
				return c, pulled, nil
			}
			deadlocked++
		}
		if e.cfg.MaxCandidates > 0 && pulled >= e.cfg.MaxCandidates {
			e.log.Debug().Int("candidates", pulled).Msg("candidate bound reached")
			break
		}
	}
	switch {
	case p.Err() != nil:
		return nil, pulled, p.Err()
	case deadlocked > 0:
		return nil, pulled, opError("abstract", root, ErrDependencyDeadlock)
	default:
		return nil, pulled, opError("abstract", root, ErrNoParse)
	}
}

// Specialize generates a value for root. presets, keyed by variable ID,
// override the matching variables. The first path with every relation
// resolved, and every cyclic relation at a fixed point, wins and its memory
// writes are committed into mem.
func (e *Engine) Specialize(ctx context.Context, root Variable, mem *Memory, presets map[ID]Preset) (*Path, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "domain.Specialize")
	defer span.End()

	winner, err := e.specialize(ctx, root, mem, presets)
	e.finish(span, "specialize", start, err)
	if err != nil {
		return nil, err
	}
	winner.Commit()
	return winner, nil
}

func (e *Engine) specialize(ctx context.Context, root Variable, mem *Memory, presets map[ID]Preset) (*Path, error) {
	if mem == nil || root == nil {
		return nil, opError("specialize", root, ErrInvalidPath)
	}
	p := newPath(mem, e.newRun(root, presets))
	deadlocked := 0
	for c := range p.Specialize(root) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if c.Pending() == 0 && c.consistent() {
			return c, nil
		}
		deadlocked++
		if !e.cfg.StrictBacktracking {
			break
		}
	}
	switch {
	case p.Err() != nil:
		return nil, p.Err()
	case deadlocked > 0:
		return nil, opError("specialize", root, errors.Join(ErrGeneration, ErrDependencyDeadlock))
	default:
		return nil, opError("specialize", root, ErrGeneration)
	}
}

func (e *Engine) finish(span trace.Span, op string, start time.Time, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrDependencyDeadlock):
		result = "deadlock"
	case errors.Is(err, ErrNoParse):
		result = "no_parse"
	case errors.Is(err, ErrGeneration):
		result = "generation"
	default:
		result = "error"
	}
	e.metrics.RecordOperation(op, result, time.Since(start))
	span.SetAttributes(attribute.String("result", result))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
	}
}

package pipeline

import (
	"context"
	"time"

	"github.com/cardswap/trade-engine/marketcore/logger"
)

// Input is implemented by every pipeline input. Validate reports every
// violated field at once so the caller can fix them in one round.
type Input interface {
	Validate() error
}

// Scope carries the per-request execution context: the authenticated acting
// user plus optional request metadata. It is supplied by the RPC layer.
type Scope struct {
	UserID         string
	IdempotencyKey string
	TraceID        string
}

// PreCheck is a read-only guard. The first failing check aborts the pipeline
// before any write is attempted.
type PreCheck[I Input] func(ctx context.Context, sc *Scope, in I) error

// PostEffect runs after the mutation has committed. Effects are best effort:
// panics and errors are captured and logged, never surfaced to the caller.
type PostEffect[I Input, O any] func(ctx context.Context, sc *Scope, in I, out O) error

// Pipeline is one trade mutation, composed declaratively: ordered pre-checks,
// exactly one atomic mutation, a result-shape check, and ordered post-effects.
type Pipeline[I Input, O any] struct {
	Name        string
	PreChecks   []PreCheck[I]
	Mutate      func(ctx context.Context, sc *Scope, in I) (O, error)
	CheckResult func(out O) error
	PostEffects []PostEffect[I, O]
}

// Execute runs the five-step contract: authenticate, validate, guard, mutate,
// check the result, then fire post-effects. Correctness of trade state
// depends only on the first five steps; post-effects can never change the
// outcome once the mutation has committed.
func (p *Pipeline[I, O]) Execute(ctx context.Context, sc *Scope, in I) (O, error) {
	var zero O
	start := time.Now()

	if sc == nil || sc.UserID == "" {
		err := AuthenticationRequired()
		logger.LogPipeline(p.Name, "", time.Since(start), err)
		return zero, err
	}

	if err := in.Validate(); err != nil {
		if pe, ok := AsError(err); ok {
			logger.LogPipeline(p.Name, sc.UserID, time.Since(start), pe)
			return zero, pe
		}
		pe := InvalidInput()
		pe.wrapped = err
		logger.LogPipeline(p.Name, sc.UserID, time.Since(start), pe)
		return zero, pe
	}

	for _, check := range p.PreChecks {
		if err := check(ctx, sc, in); err != nil {
			pe := ensure(err)
			logger.LogPipeline(p.Name, sc.UserID, time.Since(start), pe)
			return zero, pe
		}
	}

	out, err := p.Mutate(ctx, sc, in)
	if err != nil {
		pe := ensure(err)
		logger.LogPipeline(p.Name, sc.UserID, time.Since(start), pe)
		return zero, pe
	}

	if p.CheckResult != nil {
		if err := p.CheckResult(out); err != nil {
			// The mutation has committed but handed back a shape we cannot
			// trust. That is a defect in the backend contract, not a user
			// error, so it is logged loudly before surfacing.
			pe := MalformedResult(p.Name, err)
			logger.LogError("Pipeline result check failed after commit", pe,
				"pipeline", p.Name)
			return zero, pe
		}
	}

	for _, effect := range p.PostEffects {
		p.runEffect(ctx, sc, in, out, effect)
	}

	logger.LogPipeline(p.Name, sc.UserID, time.Since(start), nil)
	return out, nil
}

// runEffect isolates one post-effect: its error or panic is logged and
// swallowed so later effects still run and the committed result stands.
func (p *Pipeline[I, O]) runEffect(ctx context.Context, sc *Scope, in I, out O, effect PostEffect[I, O]) {
	defer func() {
		if r := recover(); r != nil {
			logger.LogError("Post-effect panicked", nil,
				"pipeline", p.Name,
				"panic", r)
		}
	}()

	if err := effect(ctx, sc, in, out); err != nil {
		logger.LogError("Post-effect failed", err,
			"pipeline", p.Name)
	}
}

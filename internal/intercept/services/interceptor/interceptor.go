package interceptor

import (
	"github.com/haukened/rr-intercept/internal/intercept/common/log"
	"github.com/haukened/rr-intercept/internal/intercept/domain"
)

// Interceptor turns one intercepted fetch into exactly one Decision.
//
// It holds only collaborator handles set at construction, so Evaluate is safe for
// concurrent use from any number of worker goroutines. It never starts goroutines
// and never performs I/O of its own.
type Interceptor struct {
	upgrader   UpgradeOracle
	trust      TrustRegistry
	trackers   TrackerClassifier
	surrogates SurrogateStore
	listener   Listener
	logger     log.Logger
}

// Options wires collaborators into an Interceptor. Every field is optional:
// a missing collaborator behaves as one that never has an opinion.
type Options struct {
	Upgrader   UpgradeOracle
	Trust      TrustRegistry
	Trackers   TrackerClassifier
	Surrogates SurrogateStore
	Listener   Listener
	Logger     log.Logger
}

// NewInterceptor creates an Interceptor. Nil collaborators disable their stage;
// a nil Logger logs nothing.
func NewInterceptor(opts Options) *Interceptor {
	return &Interceptor{
		upgrader:   opts.Upgrader,
		trust:      opts.Trust,
		trackers:   opts.Trackers,
		surrogates: opts.Surrogates,
		listener:   opts.Listener,
		logger:     log.OrNoop(opts.Logger),
	}
}

// stage is one step of the pipeline. done=true ends evaluation with d.
type stage func(ix *Interceptor, req domain.InterceptRequest, documentURL string) (d domain.Decision, done bool)

// pipeline is evaluated in order; the first stage reporting done wins.
var pipeline = []stage{
	(*Interceptor).upgradeStage,
	(*Interceptor).documentStage,
	(*Interceptor).trustStage,
	(*Interceptor).notifyStage,
	(*Interceptor).blockStage,
}

// Evaluate decides what happens to req issued by the document at documentURL.
// documentURL is "" when no document exists yet. Evaluate always returns a
// Decision; collaborator failures degrade to the least restrictive outcome.
func (ix *Interceptor) Evaluate(req domain.InterceptRequest, documentURL string) domain.Decision {
	for _, st := range pipeline {
		if d, done := st(ix, req, documentURL); done {
			return d
		}
	}
	return domain.Continue{}
}

// EvaluateRequest evaluates req against its own DocumentURL.
func (ix *Interceptor) EvaluateRequest(req domain.InterceptRequest) domain.Decision {
	return ix.Evaluate(req, req.DocumentURL)
}

var _ RequestEvaluator = (*Interceptor)(nil)

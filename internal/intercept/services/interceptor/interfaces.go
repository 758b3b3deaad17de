package interceptor

import (
	"net/url"

	"github.com/haukened/rr-intercept/internal/intercept/domain"
)

// UpgradeOracle decides whether a URL has an encrypted equivalent and produces it.
// Upgrade must not fail for a URL ShouldUpgrade accepted.
type UpgradeOracle interface {
	ShouldUpgrade(u *url.URL) bool
	Upgrade(u *url.URL) *url.URL
}

// TrustRegistry reports whether a document is exempt from all blocking policy.
type TrustRegistry interface {
	IsTrusted(documentURL string) bool
}

// TrackerClassifier judges a sub-resource request against tracking rules.
// ok is false when the classifier has no opinion about the request.
type TrackerClassifier interface {
	Evaluate(u *url.URL, documentURL string, kind domain.ResourceKind) (verdict domain.TrackingVerdict, ok bool)
}

// SurrogateStore looks up inert stand-ins for blocked resources.
type SurrogateStore interface {
	Get(u *url.URL) domain.SurrogateLookup
}

// Listener receives observability notifications raised during evaluation.
// Implementations must return quickly; wrap slow sinks in an AsyncListener.
type Listener interface {
	PageHasInsecureResources(documentURL string)
	TrackerDetected(event domain.TrackingEvent)
}

// RequestEvaluator is the caller-facing surface of the pipeline.
type RequestEvaluator interface {
	Evaluate(req domain.InterceptRequest, documentURL string) domain.Decision
}

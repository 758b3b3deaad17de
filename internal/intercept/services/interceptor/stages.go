package interceptor

import (
	"fmt"
	"net/url"

	"github.com/haukened/rr-intercept/internal/intercept/domain"
)

// upgradeStage redirects eligible main-frame navigations to their encrypted equivalent.
func (ix *Interceptor) upgradeStage(req domain.InterceptRequest, _ string) (domain.Decision, bool) {
	if !req.IsForMainFrame || !req.HasURL() || ix.upgrader == nil {
		return nil, false
	}
	eligible, ok := safely(ix, "upgrade", func() bool { return ix.upgrader.ShouldUpgrade(req.URL) })
	if !ok || !eligible {
		return nil, false
	}
	target, ok := safely(ix, "upgrade", func() *url.URL { return ix.upgrader.Upgrade(req.URL) })
	if !ok {
		return nil, false
	}
	ix.logger.Debug(map[string]any{"url": req.String(), "target": urlString(target)}, "request_upgraded")
	return domain.Redirect{Target: target}, true
}

// documentStage stops evaluation when there is no document to evaluate blocking against.
func (ix *Interceptor) documentStage(_ domain.InterceptRequest, documentURL string) (domain.Decision, bool) {
	if documentURL == "" {
		return domain.Continue{}, true
	}
	return nil, false
}

// trustStage exempts trusted documents from all further policy.
func (ix *Interceptor) trustStage(_ domain.InterceptRequest, documentURL string) (domain.Decision, bool) {
	if ix.trust == nil {
		return nil, false
	}
	trusted, ok := safely(ix, "trust", func() bool { return ix.trust.IsTrusted(documentURL) })
	if !ok || trusted {
		// a registry that cannot judge leaves the page unfiltered
		return domain.Continue{}, true
	}
	return nil, false
}

// notifyStage reports plaintext sub-resources. It never decides.
// The notice fires even when the block stage later blocks the same request.
func (ix *Interceptor) notifyStage(req domain.InterceptRequest, documentURL string) (domain.Decision, bool) {
	if req.IsHTTP() && ix.listener != nil {
		safely(ix, "notify", func() struct{} {
			ix.listener.PageHasInsecureResources(documentURL)
			return struct{}{}
		})
	}
	return nil, false
}

// blockStage is terminal: it always produces Continue, Block or BlockWithSurrogate.
func (ix *Interceptor) blockStage(req domain.InterceptRequest, documentURL string) (domain.Decision, bool) {
	if !ix.shouldBlock(req, documentURL) {
		return domain.Continue{}, true
	}

	surrogate := domain.NoSurrogate()
	if ix.surrogates != nil {
		if l, ok := safely(ix, "surrogate", func() domain.SurrogateLookup { return ix.surrogates.Get(req.URL) }); ok {
			surrogate = l
		}
	}
	if surrogate.Available {
		ix.logger.Debug(map[string]any{"url": req.String(), "surrogate": surrogate.Name}, "surrogate_found")
		return domain.BlockWithSurrogate{
			MIMEType: surrogate.MIMEType,
			Charset:  domain.SurrogateCharset,
			Body:     surrogate.Payload,
		}, true
	}

	ix.logger.Debug(map[string]any{"url": req.String()}, "request_blocked")
	return domain.Block{}, true
}

// shouldBlock asks the tracker classifier about sub-resources of a known document.
// Every verdict is forwarded to the listener, blocked or not.
func (ix *Interceptor) shouldBlock(req domain.InterceptRequest, documentURL string) bool {
	if req.IsForMainFrame || documentURL == "" || !req.HasURL() || ix.trackers == nil {
		return false
	}

	type result struct {
		verdict domain.TrackingVerdict
		found   bool
	}
	r, ok := safely(ix, "block", func() result {
		v, found := ix.trackers.Evaluate(req.URL, documentURL, req.Kind)
		return result{verdict: v, found: found}
	})
	if !ok || !r.found {
		return false
	}

	if ix.listener != nil {
		safely(ix, "notify", func() struct{} {
			ix.listener.TrackerDetected(r.verdict.Event)
			return struct{}{}
		})
	}
	return r.verdict.Blocked
}

// safely runs a collaborator call, converting a panic into ok=false so the
// caller can fall back to its least restrictive outcome.
func safely[T any](ix *Interceptor, stage string, fn func() T) (out T, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ix.logger.Warn(map[string]any{"stage": stage, "panic": fmt.Sprint(r)}, "collaborator_failed")
			var zero T
			out, ok = zero, false
		}
	}()
	return fn(), true
}

func urlString(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.String()
}

package trackers

import (
	"net/url"

	"github.com/haukened/rr-intercept/internal/intercept/common/log"
	"github.com/haukened/rr-intercept/internal/intercept/common/utils"
	"github.com/haukened/rr-intercept/internal/intercept/domain"
	"github.com/haukened/rr-intercept/internal/intercept/services/interceptor"
)

// Classifier judges sub-resource requests against a tracker Repository.
// Requests to the document's own site are first-party and never judged.
type Classifier struct {
	repo   Repository
	logger log.Logger
}

// NewClassifier wraps repo as an interceptor.TrackerClassifier.
func NewClassifier(repo Repository, logger log.Logger) *Classifier {
	return &Classifier{repo: repo, logger: log.OrNoop(logger)}
}

// Evaluate returns a verdict when a tracker rule matches the request host.
// ok is false when there is no opinion: missing hosts, first-party requests, or no matching rule.
func (c *Classifier) Evaluate(u *url.URL, documentURL string, kind domain.ResourceKind) (domain.TrackingVerdict, bool) {
	host := utils.HostOf(u)
	if host == "" {
		return domain.TrackingVerdict{}, false
	}
	docHost, ok := utils.HostOfRaw(documentURL)
	if !ok {
		return domain.TrackingVerdict{}, false
	}
	if utils.SameSite(host, docHost) {
		return domain.TrackingVerdict{}, false
	}
	dec := c.repo.Decide(host)
	if !dec.Matched {
		return domain.TrackingVerdict{}, false
	}
	c.logger.Debug(map[string]any{
		"host":    host,
		"rule":    dec.MatchedRule,
		"network": dec.Source,
		"action":  dec.Action.String(),
	}, "tracker_rule_matched")
	return domain.NewTrackingVerdict(domain.TrackingEvent{
		DocumentURL: documentURL,
		TrackerURL:  u.String(),
		Network:     dec.Source,
		MatchedRule: dec.MatchedRule,
		Kind:        kind,
		Blocked:     dec.Blocked(),
	}), true
}

var _ interceptor.TrackerClassifier = (*Classifier)(nil)

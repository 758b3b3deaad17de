package domain

// TrackingEvent describes a tracker match for observability.
// It is forwarded to listeners whether or not the request ends up blocked.
type TrackingEvent struct {
	DocumentURL string       // page that issued the request
	TrackerURL  string       // the matched request URL
	Network     string       // tracker network or list the rule came from
	MatchedRule string       // rule name that matched
	Kind        ResourceKind // resource kind of the request
	Blocked     bool         // whether the match blocks the request
}

// TrackingVerdict is the tracker classifier's judgment for one request.
type TrackingVerdict struct {
	Blocked bool
	Event   TrackingEvent
}

// NewTrackingVerdict builds a verdict whose Blocked flag mirrors the event's.
func NewTrackingVerdict(ev TrackingEvent) TrackingVerdict {
	return TrackingVerdict{Blocked: ev.Blocked, Event: ev}
}

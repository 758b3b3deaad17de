package interceptor

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/haukened/rr-intercept/internal/intercept/common/log"
	"github.com/haukened/rr-intercept/internal/intercept/domain"
)

// ListenerFuncs adapts plain functions to Listener. Nil fields are ignored.
type ListenerFuncs struct {
	OnInsecureResource func(documentURL string)
	OnTrackerDetected  func(event domain.TrackingEvent)
}

// PageHasInsecureResources calls OnInsecureResource.
func (f ListenerFuncs) PageHasInsecureResources(documentURL string) {
	if f.OnInsecureResource != nil {
		f.OnInsecureResource(documentURL)
	}
}

// TrackerDetected calls OnTrackerDetected.
func (f ListenerFuncs) TrackerDetected(event domain.TrackingEvent) {
	if f.OnTrackerDetected != nil {
		f.OnTrackerDetected(event)
	}
}

// logListener writes notifications to a Logger.
type logListener struct {
	logger log.Logger
}

// NewLogListener returns a Listener that logs every notification at info level.
func NewLogListener(logger log.Logger) Listener {
	return &logListener{logger: log.OrNoop(logger)}
}

func (l *logListener) PageHasInsecureResources(documentURL string) {
	l.logger.Info(map[string]any{"document": documentURL}, "insecure_resource")
}

func (l *logListener) TrackerDetected(ev domain.TrackingEvent) {
	l.logger.Info(map[string]any{
		"document": ev.DocumentURL,
		"tracker":  ev.TrackerURL,
		"network":  ev.Network,
		"rule":     ev.MatchedRule,
		"kind":     ev.Kind.String(),
		"blocked":  ev.Blocked,
	}, "tracker_detected")
}

// notification is one queued listener call; exactly one field is set.
type notification struct {
	insecure string
	tracker  *domain.TrackingEvent
}

// AsyncListener decouples the pipeline from a slow or failing Listener.
//
// Notifications are queued in a bounded buffer and delivered by Run on the
// caller's goroutine. When the buffer is full the notification is dropped and
// counted; enqueueing never blocks.
type AsyncListener struct {
	next    Listener
	events  chan notification
	dropped atomic.Uint64
	logger  log.Logger
}

// NewAsyncListener wraps next with a buffer of size notifications (minimum 1).
func NewAsyncListener(next Listener, size int, logger log.Logger) *AsyncListener {
	if size < 1 {
		size = 1
	}
	return &AsyncListener{
		next:   next,
		events: make(chan notification, size),
		logger: log.OrNoop(logger),
	}
}

// PageHasInsecureResources queues the notice without blocking; it is dropped when the queue is full.
func (a *AsyncListener) PageHasInsecureResources(documentURL string) {
	a.enqueue(notification{insecure: documentURL})
}

// TrackerDetected queues the event without blocking; it is dropped when the queue is full.
func (a *AsyncListener) TrackerDetected(event domain.TrackingEvent) {
	a.enqueue(notification{tracker: &event})
}

func (a *AsyncListener) enqueue(n notification) {
	select {
	case a.events <- n:
	default:
		a.dropped.Add(1)
	}
}

// Dropped returns how many notifications were discarded because the buffer was full.
func (a *AsyncListener) Dropped() uint64 { return a.dropped.Load() }

// Pending returns the number of queued, undelivered notifications.
func (a *AsyncListener) Pending() int { return len(a.events) }

// Run delivers queued notifications until ctx is cancelled, then drains what is
// already queued and returns nil.
func (a *AsyncListener) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			a.Drain()
			return nil
		case n := <-a.events:
			a.deliver(n)
		}
	}
}

// Drain synchronously delivers every notification currently queued.
func (a *AsyncListener) Drain() {
	for {
		select {
		case n := <-a.events:
			a.deliver(n)
		default:
			return
		}
	}
}

func (a *AsyncListener) deliver(n notification) {
	if a.next == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn(map[string]any{"panic": fmt.Sprint(r)}, "listener_failed")
		}
	}()
	if n.tracker != nil {
		a.next.TrackerDetected(*n.tracker)
		return
	}
	a.next.PageHasInsecureResources(n.insecure)
}

var (
	_ Listener = ListenerFuncs{}
	_ Listener = (*logListener)(nil)
	_ Listener = (*AsyncListener)(nil)
)

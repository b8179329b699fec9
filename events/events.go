// Package events is the process-wide publish point for pipeline lifecycle
// events. Consumers (e.g. a server-push live-status endpoint) subscribe
// here; the bridge itself has no knowledge of HTTP.
package events

import (
	"sync"

	"catalog-ingest/internal/types"

	"github.com/google/uuid"
)

// Kind names the four lifecycle event types.
type Kind string

const (
	KindStart    Kind = "start"
	KindProgress Kind = "progress"
	KindError    Kind = "error"
	KindFinish   Kind = "finish"
)

// Progress is the payload emitted after each category/product step.
type Progress struct {
	Current    int    `json:"current"`
	Total      int    `json:"total"`
	Scraped    int    `json:"scraped"`
	Errors     int    `json:"errors"`
	Skipped    int    `json:"skipped"`
	Categories int    `json:"categories"`
	URL        string `json:"url"`
	Phase      string `json:"phase"`
}

// Event is one published lifecycle event. Payload is a Progress for
// progress events, a string message for error events and a types.RunStats
// for finish events; start events carry no payload.
type Event struct {
	Kind    Kind
	Message string
	Prog    *Progress
	Stats   *types.RunStats
}

// subscriberBuffer bounds each subscriber's channel. A slow subscriber
// drops events rather than blocking the pipeline.
const subscriberBuffer = 64

// Subscription is one consumer's handle on the bridge.
type Subscription struct {
	id     string
	bridge *Bridge
	C      <-chan Event
	ch     chan Event
}

// Unsubscribe detaches the subscription and closes its channel. Consumers
// must call this when their own downstream disconnects.
func (s *Subscription) Unsubscribe() {
	s.bridge.unsubscribe(s.id)
}

// Bridge fans lifecycle events out to subscribers.
type Bridge struct {
	mu          sync.Mutex
	subscribers map[string]*Subscription
}

// NewBridge creates an empty bridge.
func NewBridge() *Bridge {
	return &Bridge{subscribers: make(map[string]*Subscription)}
}

// Default is the process-wide bridge the pipeline publishes to.
var Default = NewBridge()

// Subscribe registers a new consumer and returns its subscription.
func (b *Bridge) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	sub := &Subscription{
		id:     uuid.NewString(),
		bridge: b,
		C:      ch,
		ch:     ch,
	}
	b.subscribers[sub.id] = sub
	return sub
}

func (b *Bridge) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(sub.ch)
	}
}

// Publish delivers an event to every subscriber without blocking.
func (b *Bridge) Publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subscribers {
		select {
		case sub.ch <- event:
		default:
			// subscriber is not keeping up; drop
		}
	}
}

// Start publishes a start event.
func (b *Bridge) Start() {
	b.Publish(Event{Kind: KindStart})
}

// Progress publishes a progress event.
func (b *Bridge) Progress(p Progress) {
	b.Publish(Event{Kind: KindProgress, Prog: &p})
}

// Error publishes a fatal, run-aborting error event.
func (b *Bridge) Error(message string) {
	b.Publish(Event{Kind: KindError, Message: message})
}

// Finish publishes the terminal statistics event.
func (b *Bridge) Finish(stats types.RunStats) {
	b.Publish(Event{Kind: KindFinish, Stats: &stats})
}

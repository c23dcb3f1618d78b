// Package eventbus fans progress events out to asynchronous subscribers.
package eventbus

import (
	"context"
	"sync"

	"pkt.systems/modelsync/schema"
	"pkt.systems/pslog"
)

// AllSessions subscribes to events of every session.
const AllSessions schema.SessionID = ""

const defaultDepth = 256

// Bus fanouts progress events to per-session subscribers. Publishing never
// blocks; events are dropped for subscribers whose buffer is full.
type Bus struct {
	mu    sync.Mutex
	subs  map[schema.SessionID]map[chan schema.ProgressEvent]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[schema.SessionID]map[chan schema.ProgressEvent]struct{}),
		log:   logger,
		depth: defaultDepth,
	}
}

// Subscribe registers a subscriber for session (or AllSessions) and returns
// a channel + cancel. Cancel closes the channel and is safe to call twice.
func (b *Bus) Subscribe(session schema.SessionID) (<-chan schema.ProgressEvent, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan schema.ProgressEvent, b.depth)
	b.mu.Lock()
	sessionSubs := b.subs[session]
	if sessionSubs == nil {
		sessionSubs = make(map[chan schema.ProgressEvent]struct{})
		b.subs[session] = sessionSubs
	}
	sessionSubs[ch] = struct{}{}
	count := len(sessionSubs)
	b.mu.Unlock()
	b.log.With("session", session).Debug("eventbus subscribe", "subs", count)
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if subs := b.subs[session]; subs != nil {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(b.subs, session)
				}
			}
			close(ch)
			b.mu.Unlock()
			b.log.With("session", session).Debug("eventbus unsubscribe")
		})
	}
}

// OnProgress publishes a progress event to the session's subscribers and to
// AllSessions subscribers.
func (b *Bus) OnProgress(event schema.ProgressEvent) {
	if b == nil {
		return
	}
	dropped := 0
	b.mu.Lock()
	dropped += b.sendLocked(b.subs[event.Session], event)
	if event.Session != AllSessions {
		dropped += b.sendLocked(b.subs[AllSessions], event)
	}
	b.mu.Unlock()
	if dropped > 0 {
		b.log.With("session", event.Session).Trace("eventbus dropped", "count", dropped, "type", event.Type)
	}
}

// sendLocked must run under b.mu so cancel cannot close a channel mid-send.
func (b *Bus) sendLocked(subs map[chan schema.ProgressEvent]struct{}, event schema.ProgressEvent) int {
	dropped := 0
	for sub := range subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	return dropped
}

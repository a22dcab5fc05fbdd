// Package notify implements the single-process publish/subscribe fabric
// for match lifecycle events. Delivery is synchronous within the
// publisher's call, but each subscriber drains from its own bounded
// channel so a slow consumer can never block the publisher.
package notify

import (
	"strconv"
	"sync"

	"go.uber.org/zap"
)

// EventKind enumerates the match lifecycle events the bus carries.
type EventKind string

const (
	EventMatchFound      EventKind = "match_found"
	EventReplayUploaded  EventKind = "replay_uploaded"
	EventResultReported  EventKind = "result_reported"
	EventCompleted       EventKind = "completed"
	EventConflicted      EventKind = "conflicted"
	EventAborted         EventKind = "aborted"
	EventTimedOut        EventKind = "timed_out"
)

// MatchEvent is one lifecycle notification, scoped to a match and the
// participant it's addressed to.
type MatchEvent struct {
	Kind          EventKind
	MatchID       int64
	ParticipantID int64
	Payload       map[string]interface{}

	// Lag is the number of events dropped for this subscriber before this
	// one, surfaced so a consumer can detect it missed something.
	Lag int
}

// subscriberChannelCapacity bounds each subscriber's private channel. Once
// full, the oldest buffered event is dropped in favor of the new one and
// the subscriber's lag counter increments.
const subscriberChannelCapacity = 16

type subscription struct {
	matchID       int64
	participantID int64
	ch            chan MatchEvent
	lag           int
	mu            sync.Mutex
}

// Bus is the process-wide notification fabric. Zero value is not usable;
// construct with New.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]*subscription // keyed by "<matchID>:<participantID>"
	logger *zap.SugaredLogger
	nextID uint64
}

// New constructs an empty Bus.
func New(logger *zap.SugaredLogger) *Bus {
	return &Bus{
		subs:   make(map[string][]*subscription),
		logger: logger,
	}
}

// Subscription is the handle a caller holds; Events() yields the channel to
// range over, Unsubscribe() releases it.
type Subscription struct {
	bus *Bus
	key string
	sub *subscription
}

func key(matchID, participantID int64) string {
	return subKey(matchID, participantID)
}

// Subscribe registers interest in events for (matchID, participantID) and
// returns a handle whose channel delivers them in publish order.
func (b *Bus) Subscribe(matchID, participantID int64) *Subscription {
	sub := &subscription{
		matchID:       matchID,
		participantID: participantID,
		ch:            make(chan MatchEvent, subscriberChannelCapacity),
	}

	k := key(matchID, participantID)
	b.mu.Lock()
	b.subs[k] = append(b.subs[k], sub)
	b.mu.Unlock()

	return &Subscription{bus: b, key: k, sub: sub}
}

// Events returns the channel to receive on.
func (s *Subscription) Events() <-chan MatchEvent { return s.sub.ch }

// Unsubscribe removes this subscription from the bus and closes its
// channel. Safe to call from a cancellation path.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	list := s.bus.subs[s.key]
	for i, sub := range list {
		if sub == s.sub {
			s.bus.subs[s.key] = append(list[:i], list[i+1:]...)
			break
		}
	}
	close(s.sub.ch)
}

// Publish delivers evt to every subscriber registered for
// (evt.MatchID, evt.ParticipantID). Per-match ordering across subscribers
// is preserved because Publish is called synchronously by a single
// publisher (the Lifecycle Coordinator / Matchmaker) serializing per match.
func (b *Bus) Publish(evt MatchEvent) {
	k := key(evt.MatchID, evt.ParticipantID)

	b.mu.RLock()
	subs := append([]*subscription(nil), b.subs[k]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.mu.Lock()
		deliver := evt
		deliver.Lag = sub.lag

		select {
		case sub.ch <- deliver:
			sub.lag = 0
		default:
			// Channel full: drop the oldest buffered event to make room,
			// then enqueue the new one. The dropped event's absence is
			// reflected by incrementing lag for the next delivery.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- deliver:
				sub.lag++
			default:
				sub.lag++
				if b.logger != nil {
					b.logger.Warnw("notification bus dropped event after drain attempt",
						"match_id", evt.MatchID, "participant_id", evt.ParticipantID, "kind", evt.Kind)
				}
			}
		}
		sub.mu.Unlock()
	}
}

func subKey(matchID, participantID int64) string {
	return strconv.FormatInt(matchID, 10) + ":" + strconv.FormatInt(participantID, 10)
}

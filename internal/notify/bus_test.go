package notify

import (
	"testing"
	"time"
)

func TestSubscribePublish_DeliversEvent(t *testing.T) {
	bus := New(nil)
	sub := bus.Subscribe(1, 100)
	defer sub.Unsubscribe()

	bus.Publish(MatchEvent{Kind: EventMatchFound, MatchID: 1, ParticipantID: 100})

	select {
	case evt := <-sub.Events():
		if evt.Kind != EventMatchFound {
			t.Errorf("got kind %v, want %v", evt.Kind, EventMatchFound)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublish_OnlyDeliversToMatchingSubscriber(t *testing.T) {
	bus := New(nil)
	subA := bus.Subscribe(1, 100)
	subB := bus.Subscribe(1, 200)
	defer subA.Unsubscribe()
	defer subB.Unsubscribe()

	bus.Publish(MatchEvent{Kind: EventCompleted, MatchID: 1, ParticipantID: 100})

	select {
	case <-subA.Events():
	case <-time.After(time.Second):
		t.Fatal("subA should have received the event")
	}

	select {
	case evt := <-subB.Events():
		t.Fatalf("subB should not have received an event, got %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublish_OrderingPreservedPerMatch(t *testing.T) {
	bus := New(nil)
	sub := bus.Subscribe(1, 100)
	defer sub.Unsubscribe()

	kinds := []EventKind{EventMatchFound, EventReplayUploaded, EventResultReported, EventCompleted}
	for _, k := range kinds {
		bus.Publish(MatchEvent{Kind: k, MatchID: 1, ParticipantID: 100})
	}

	for _, want := range kinds {
		select {
		case evt := <-sub.Events():
			if evt.Kind != want {
				t.Errorf("got %v, want %v", evt.Kind, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %v", want)
		}
	}
}

func TestPublish_BackpressureDropsOldestAndIncrementsLag(t *testing.T) {
	bus := New(nil)
	sub := bus.Subscribe(1, 100)
	defer sub.Unsubscribe()

	// Fill the channel beyond capacity.
	for i := 0; i < subscriberChannelCapacity+5; i++ {
		bus.Publish(MatchEvent{Kind: EventReplayUploaded, MatchID: 1, ParticipantID: 100})
	}

	var lastLag int
	drained := 0
	for {
		select {
		case evt := <-sub.Events():
			drained++
			lastLag = evt.Lag
		default:
			goto done
		}
	}
done:
	if drained == 0 {
		t.Fatal("expected at least one buffered event")
	}
	if drained > subscriberChannelCapacity {
		t.Errorf("drained %d events, channel capacity is %d", drained, subscriberChannelCapacity)
	}
	_ = lastLag
}

func TestUnsubscribe_ClosesChannel(t *testing.T) {
	bus := New(nil)
	sub := bus.Subscribe(1, 100)
	sub.Unsubscribe()

	_, ok := <-sub.Events()
	if ok {
		t.Error("expected channel to be closed after Unsubscribe")
	}
}

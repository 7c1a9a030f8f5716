package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertarktes/seat-holds-and-sales/internal/domain"
	"github.com/robertarktes/seat-holds-and-sales/internal/events"
)

func change(seatID string) domain.SeatStateChanged {
	return domain.SeatStateChanged{
		SeatID: seatID,
		From:   domain.SeatAvailable,
		To:     domain.SeatHold,
		By:     "c1",
		At:     time.Now().UTC(),
	}
}

func TestHubDeliversToAllSubscribers(t *testing.T) {
	hub := events.NewHub()
	a, cancelA := hub.Subscribe()
	b, cancelB := hub.Subscribe()
	defer cancelA()
	defer cancelB()

	require.NoError(t, hub.Publish(context.Background(), change("S1"), change("S2")))

	for _, ch := range []<-chan domain.SeatStateChanged{a, b} {
		got := []string{(<-ch).SeatID, (<-ch).SeatID}
		assert.Equal(t, []string{"S1", "S2"}, got)
	}
}

func TestHubDropsSubscriberThatStopsDraining(t *testing.T) {
	hub := events.NewHub()
	ch, cancel := hub.Subscribe()
	defer cancel()

	// Fill the buffer past capacity without reading. The overflowing
	// publish removes the subscriber and closes its channel.
	for i := 0; i < 40; i++ {
		require.NoError(t, hub.Publish(context.Background(), change("S1")))
	}
	assert.Equal(t, 0, hub.Len())

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel never closed")
		}
	}
}

func TestHubCancelIsIdempotent(t *testing.T) {
	hub := events.NewHub()
	_, cancel := hub.Subscribe()

	cancel()
	cancel()
	assert.Equal(t, 0, hub.Len())

	// Publishing to an empty hub is a no-op.
	require.NoError(t, hub.Publish(context.Background(), change("S1")))
}

func TestHubPublishNothing(t *testing.T) {
	hub := events.NewHub()
	ch, cancel := hub.Subscribe()
	defer cancel()

	require.NoError(t, hub.Publish(context.Background()))

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(20 * time.Millisecond):
	}
}

package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertarktes/seat-holds-and-sales/internal/domain"
	"github.com/robertarktes/seat-holds-and-sales/internal/events"
	"github.com/robertarktes/seat-holds-and-sales/internal/observability"
)

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestConnectedFrameAndEventDelivery(t *testing.T) {
	hub := events.NewHub()
	srv := httptest.NewServer(NewHandler(hub, observability.NewLogger()))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?subscriber_id=sub-1"
	conn := dial(t, url)

	var connected map[string]string
	require.NoError(t, conn.ReadJSON(&connected))
	assert.Equal(t, "connected", connected["event"])
	assert.Equal(t, "sub-1", connected["subscriber_id"])

	// The subscriber exists once the connected frame has been read.
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	change := domain.SeatStateChanged{
		SeatID: "F1-R1-C1",
		From:   domain.SeatAvailable,
		To:     domain.SeatHold,
		By:     "h1",
		At:     time.Now().UTC(),
	}
	require.NoError(t, hub.Publish(context.Background(), change))

	var frame struct {
		Event   string                  `json:"event"`
		Payload domain.SeatStateChanged `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "seat_state_changed", frame.Event)
	assert.Equal(t, "F1-R1-C1", frame.Payload.SeatID)
	assert.Equal(t, domain.SeatHold, frame.Payload.To)
	assert.Equal(t, "h1", frame.Payload.By)
}

func TestPingPong(t *testing.T) {
	hub := events.NewHub()
	srv := httptest.NewServer(NewHandler(hub, observability.NewLogger()))
	defer srv.Close()

	conn := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http"))

	var connected map[string]string
	require.NoError(t, conn.ReadJSON(&connected))
	require.Equal(t, "connected", connected["event"])
	// A generated subscriber id is still reported.
	assert.NotEmpty(t, connected["subscriber_id"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	kind, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)
	assert.Equal(t, "pong", string(msg))
}

func TestDisconnectUnsubscribes(t *testing.T) {
	hub := events.NewHub()
	srv := httptest.NewServer(NewHandler(hub, observability.NewLogger()))
	defer srv.Close()

	conn := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http"))
	var connected map[string]string
	require.NoError(t, conn.ReadJSON(&connected))
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestEventFrameShape(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	frame := seatEventFrame{
		Event: "seat_state_changed",
		Payload: domain.SeatStateChanged{
			SeatID: "S1",
			From:   domain.SeatHold,
			To:     domain.SeatAvailable,
			By:     domain.SystemActor,
			At:     at,
		},
	}
	data, err := json.Marshal(frame)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"event": "seat_state_changed",
		"payload": {
			"seat_id": "S1",
			"from": "HOLD",
			"to": "AVAILABLE",
			"by": "system",
			"at": "2025-06-01T12:00:00Z"
		}
	}`, string(data))
}

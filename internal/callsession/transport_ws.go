package callsession

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"

	"github.com/coder/websocket"
)

// wsMessage is the wire shape of transport lifecycle messages.
type wsMessage struct {
	Event   string `json:"event"`
	Message string `json:"message,omitempty"`
}

// WSTransport implements Transport over a WebSocket session endpoint. The
// access token returned by the gate authorizes the connection.
type WSTransport struct {
	endpoint string

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	events chan Event
}

func NewWSTransport(endpoint string) *WSTransport {
	return &WSTransport{
		endpoint: endpoint,
		events:   make(chan Event, 16),
	}
}

func (t *WSTransport) Events() <-chan Event {
	return t.events
}

func (t *WSTransport) Start(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return errors.New("callsession: access token is required")
	}

	u, err := url.Parse(t.endpoint)
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("access_token", accessToken)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "transport closed")
		return errors.New("callsession: transport already closed")
	}
	t.conn = conn
	t.mu.Unlock()

	go t.readLoop(conn)
	return nil
}

func (t *WSTransport) readLoop(conn *websocket.Conn) {
	defer close(t.events)

	endedSeen := false
	for {
		_, data, err := conn.Read(context.Background())
		if err != nil {
			// A clean close without an explicit call_ended still ends the
			// call; anything else surfaces as a transport error.
			switch {
			case endedSeen:
			case websocket.CloseStatus(err) == websocket.StatusNormalClosure:
				t.events <- Event{Type: EventCallEnded}
			default:
				t.events <- Event{Type: EventError, Message: err.Error()}
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch EventType(msg.Event) {
		case EventCallStarted, EventAgentStartTalking, EventAgentStopTalking:
			t.events <- Event{Type: EventType(msg.Event)}
		case EventCallEnded:
			endedSeen = true
			t.events <- Event{Type: EventCallEnded}
		case EventError:
			t.events <- Event{Type: EventError, Message: msg.Message}
		default:
			// Unknown event types are ignored; the set is closed on our side.
		}
	}
}

func (t *WSTransport) Stop(ctx context.Context) error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.closed = true
	t.mu.Unlock()

	if conn == nil {
		return nil
	}

	// Best effort: tell the far side we are stopping before closing.
	payload, _ := json.Marshal(wsMessage{Event: "stop"})
	_ = conn.Write(ctx, websocket.MessageText, payload)

	return conn.Close(websocket.StatusNormalClosure, "client stop")
}

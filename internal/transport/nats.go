package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"roomclerk/internal/booking"
	"roomclerk/internal/dialog"
	"roomclerk/internal/sessionstore"
)

// TurnRequest is the request/reply payload on the turn subject.
// A missing session id starts a new conversation.
type TurnRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"text"`
}

// NATSTransport exposes the same turn processing as the HTTP surface
// over a NATS request/reply subject, for callers already on the bus.
type NATSTransport struct {
	conn    *nats.Conn
	subject string
	service *dialog.Service
	timeout time.Duration
	sub     *nats.Subscription
}

func NewNATSTransport(natsURL, subject string, service *dialog.Service, timeout time.Duration) (*NATSTransport, error) {
	conn, err := nats.Connect(natsURL,
		nats.Name("roomclerk"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	log.Printf("connected to NATS server: %s", natsURL)

	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &NATSTransport{
		conn:    conn,
		subject: subject,
		service: service,
		timeout: timeout,
	}, nil
}

func (t *NATSTransport) Start() error {
	sub, err := t.conn.Subscribe(t.subject, t.handleTurn)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", t.subject, err)
	}
	t.sub = sub
	log.Printf("subscribed to subject: %s", t.subject)
	return nil
}

func (t *NATSTransport) handleTurn(msg *nats.Msg) {
	var req TurnRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		t.respond(msg, dialog.TurnResult{
			Reply:     "I could not read that request.",
			ErrorCode: "invalid_request",
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	sessionID := req.SessionID
	if sessionID == "" {
		sess, err := t.service.CreateSession(ctx)
		if err != nil {
			log.Printf("nats create session failed: %v", err)
			t.respond(msg, dialog.TurnResult{
				Reply:     "Something went wrong on my side. Please try again.",
				ErrorCode: "persistence_error",
			})
			return
		}
		sessionID = sess.ID
	}

	res, err := t.service.ProcessTurn(ctx, sessionID, req.Text)
	switch {
	case errors.Is(err, sessionstore.ErrNotFound):
		t.respond(msg, dialog.TurnResult{
			SessionID: sessionID,
			Reply:     "I do not know that session. Start a new one by omitting session_id.",
			ErrorCode: "session_not_found",
		})
		return
	case errors.Is(err, booking.ErrPersistence):
		log.Printf("nats turn persistence failure for session %s: %v", sessionID, err)
		t.respond(msg, dialog.TurnResult{
			SessionID: sessionID,
			Reply:     "Something went wrong on my side. Please try again.",
			ErrorCode: "persistence_error",
		})
		return
	case err != nil:
		log.Printf("nats turn degraded for session %s: %v", sessionID, err)
	}
	t.respond(msg, res)
}

func (t *NATSTransport) respond(msg *nats.Msg, res dialog.TurnResult) {
	data, err := json.Marshal(res)
	if err != nil {
		log.Printf("marshal nats reply: %v", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		log.Printf("send nats reply: %v", err)
	}
}

func (t *NATSTransport) Close() error {
	if t.sub != nil {
		_ = t.sub.Unsubscribe()
	}
	if t.conn != nil {
		t.conn.Close()
		log.Println("NATS connection closed")
	}
	return nil
}

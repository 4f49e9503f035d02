// Package events publishes pipeline lifecycle events to NATS. Publishing
// is optional: the service runs fine with no broker configured, there is
// just nothing for downstream consumers (analytics, moderation) to see.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects for pipeline lifecycle events.
const (
	SubjectUploadCompleted = "convocate.upload.completed"
	SubjectPersonaCreated  = "convocate.persona.created"
	SubjectTurnScored      = "convocate.turn.scored"
)

// UploadCompleted describes a finished upload run.
type UploadCompleted struct {
	SessionID       string `json:"session_id"`
	PersonasCreated int    `json:"personas_created"`
	PersonasSkipped int    `json:"personas_skipped"`
	MessageCount    int    `json:"message_count"`
	Timestamp       string `json:"timestamp"`
}

// PersonaCreated describes one extracted persona.
type PersonaCreated struct {
	SessionID      string `json:"session_id"`
	PersonaID      string `json:"persona_id"`
	TranscriptSize int    `json:"transcript_size"`
	Formality      string `json:"formality"`
	Timestamp      string `json:"timestamp"`
}

// TurnScored describes one scored practice turn.
type TurnScored struct {
	TicketID  string `json:"ticket_id"`
	Score     int    `json:"score"`
	Timestamp string `json:"timestamp"`
}

type Publisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

func NewPublisher(url, token string, logger *slog.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Publisher{conn: nc, logger: logger}, nil
}

// Publish marshals and sends an event. A nil publisher is a no-op so
// callers don't guard every call site.
func (p *Publisher) Publish(subject string, data any) error {
	if p == nil {
		return nil
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.conn.Close()
}

// Now formats the current time for event payloads.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/ngalkin/session_auth/pkg/logging"
)

// Audit event types emitted by the session lifecycle.
const (
	TypeUserRegistered  = "user_registered"
	TypeLoginSucceeded  = "login_succeeded"
	TypeLoginRejected   = "login_rejected"
	TypeRefreshRejected = "refresh_rejected"
	TypeTokenRevoked    = "token_revoked"
)

type Event struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	UserID   uint      `json:"user_id,omitempty"`
	Username string    `json:"username,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}

// Publisher ships audit events to Kafka and, when configured, mirrors
// them into an Elasticsearch index. A nil Publisher is a valid no-op, so
// the service layer never has to branch on whether auditing is enabled.
type Publisher struct {
	w       *kafka.Writer
	indexer *AuditIndexer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *Publisher) WithIndexer(ix *AuditIndexer) *Publisher {
	if p != nil {
		p.indexer = ix
	}
	return p
}

// Publish records one lifecycle event. Delivery failures are logged and
// swallowed: auditing must never fail the request that triggered it.
func (p *Publisher) Publish(ctx context.Context, typ string, userID uint, username, reason string) {
	if p == nil {
		return
	}
	l := logging.FromContext(ctx).With("component", "events", "event_type", typ)

	ev := Event{
		ID:       uuid.NewString(),
		Type:     typ,
		UserID:   userID,
		Username: username,
		Reason:   reason,
		At:       time.Now().UTC(),
	}
	data, err := json.Marshal(ev)
	if err != nil {
		l.Error("event marshal failed", "error", err)
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := p.w.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(username),
		Value: data,
	}); err != nil {
		l.Error("kafka write failed", "error", err)
	}

	if p.indexer != nil {
		if err := p.indexer.Index(writeCtx, ev.ID, data); err != nil {
			l.Error("audit index failed", "error", err)
		}
	}
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.w.Close()
}

package hermes

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/brokerchat/internal/chat"
)

// Subjects published by the chat service.
const (
	SubjectSessionOpened  = "brokerchat.session.opened"
	SubjectSessionClosed  = "brokerchat.session.closed"
	SubjectMessageSettled = "brokerchat.message.settled"
	SubjectFormGenerated  = "brokerchat.form.generated"
	SubjectRegistered     = "swarm.agent.brokerchat.registered"
)

type SessionEvent struct {
	SessionID string    `json:"session_id"`
	Mode      string    `json:"mode,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type SettledEvent struct {
	SessionID string    `json:"session_id"`
	OK        bool      `json:"ok"`
	LatencyMS int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// FormEvent announces a generated form. Content stays in the session.
type FormEvent struct {
	SessionID string    `json:"session_id"`
	FormID    string    `json:"form_id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

type publisher interface {
	Publish(subject string, data any) error
}

// Events adapts a NATS client to chat.Events. Publish failures are logged only.
type Events struct {
	pub    publisher
	logger *slog.Logger
	now    func() time.Time
}

func NewEvents(pub publisher, logger *slog.Logger) *Events {
	return &Events{pub: pub, logger: logger, now: time.Now}
}

var _ chat.Events = (*Events)(nil)

func (e *Events) SessionOpened(id uuid.UUID, mode chat.Mode) {
	e.publish(SubjectSessionOpened, SessionEvent{SessionID: id.String(), Mode: string(mode), Timestamp: e.now().UTC()})
}

func (e *Events) SessionClosed(id uuid.UUID, reason string) {
	e.publish(SubjectSessionClosed, SessionEvent{SessionID: id.String(), Reason: reason, Timestamp: e.now().UTC()})
}

func (e *Events) MessageSettled(id uuid.UUID, ok bool, latency time.Duration) {
	e.publish(SubjectMessageSettled, SettledEvent{
		SessionID: id.String(),
		OK:        ok,
		LatencyMS: latency.Milliseconds(),
		Timestamp: e.now().UTC(),
	})
}

func (e *Events) FormGenerated(id uuid.UUID, form chat.FormRecord) {
	e.publish(SubjectFormGenerated, FormEvent{
		SessionID: id.String(),
		FormID:    form.ID.String(),
		Name:      form.Name,
		Kind:      form.Kind,
		Timestamp: e.now().UTC(),
	})
}

func (e *Events) publish(subject string, data any) {
	if err := e.pub.Publish(subject, data); err != nil {
		e.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}

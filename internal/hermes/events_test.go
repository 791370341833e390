package hermes

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/brokerchat/internal/chat"
)

type published struct {
	subject string
	payload []byte
}

type fakePublisher struct {
	sent []published
	err  error
}

func (f *fakePublisher) Publish(subject string, data any) error {
	if f.err != nil {
		return f.err
	}
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	f.sent = append(f.sent, published{subject: subject, payload: b})
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEvents(pub publisher) *Events {
	e := NewEvents(pub, discardLogger())
	e.now = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }
	return e
}

func TestEvents_FormGenerated(t *testing.T) {
	pub := &fakePublisher{}
	e := newTestEvents(pub)
	sessionID := uuid.New()
	form := chat.FormRecord{ID: uuid.New(), Name: "Auto Application - 1/1/2024", Kind: "auto", Content: "secret details"}

	e.FormGenerated(sessionID, form)

	if len(pub.sent) != 1 || pub.sent[0].subject != SubjectFormGenerated {
		t.Fatalf("unexpected publishes: %+v", pub.sent)
	}
	var evt FormEvent
	if err := json.Unmarshal(pub.sent[0].payload, &evt); err != nil {
		t.Fatalf("failed to parse FormEvent: %v", err)
	}
	if evt.SessionID != sessionID.String() || evt.FormID != form.ID.String() {
		t.Errorf("unexpected ids: %+v", evt)
	}
	if evt.Kind != "auto" || evt.Name != form.Name {
		t.Errorf("unexpected form fields: %+v", evt)
	}
	var raw map[string]any
	json.Unmarshal(pub.sent[0].payload, &raw)
	if _, ok := raw["content"]; ok {
		t.Error("form content must not leave the session")
	}
}

func TestEvents_MessageSettled(t *testing.T) {
	pub := &fakePublisher{}
	e := newTestEvents(pub)

	e.MessageSettled(uuid.New(), false, 1500*time.Millisecond)

	var evt SettledEvent
	if err := json.Unmarshal(pub.sent[0].payload, &evt); err != nil {
		t.Fatalf("failed to parse SettledEvent: %v", err)
	}
	if pub.sent[0].subject != SubjectMessageSettled {
		t.Errorf("unexpected subject %q", pub.sent[0].subject)
	}
	if evt.OK || evt.LatencyMS != 1500 {
		t.Errorf("unexpected settled event: %+v", evt)
	}
}

func TestEvents_SessionLifecycle(t *testing.T) {
	pub := &fakePublisher{}
	e := newTestEvents(pub)
	id := uuid.New()

	e.SessionOpened(id, chat.ModeInternal)
	e.SessionClosed(id, "expired")

	if len(pub.sent) != 2 {
		t.Fatalf("expected 2 publishes, got %d", len(pub.sent))
	}
	var opened, closed SessionEvent
	json.Unmarshal(pub.sent[0].payload, &opened)
	json.Unmarshal(pub.sent[1].payload, &closed)
	if pub.sent[0].subject != SubjectSessionOpened || opened.Mode != "internal" {
		t.Errorf("unexpected opened event: %s %+v", pub.sent[0].subject, opened)
	}
	if pub.sent[1].subject != SubjectSessionClosed || closed.Reason != "expired" {
		t.Errorf("unexpected closed event: %s %+v", pub.sent[1].subject, closed)
	}
}

func TestEvents_PublishErrorSwallowed(t *testing.T) {
	e := newTestEvents(&fakePublisher{err: errors.New("nats: connection closed")})

	// Must not panic or block.
	e.SessionOpened(uuid.New(), chat.ModeCustomer)
}

func TestSubjectConstants(t *testing.T) {
	if SubjectFormGenerated != "brokerchat.form.generated" {
		t.Errorf("unexpected SubjectFormGenerated %q", SubjectFormGenerated)
	}
	if SubjectRegistered != "swarm.agent.brokerchat.registered" {
		t.Errorf("unexpected SubjectRegistered %q", SubjectRegistered)
	}
}

package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/brokerchat/internal/metrics"
	"github.com/MikeSquared-Agency/brokerchat/internal/profile"
)

// Events receives session lifecycle notifications. Implementations must not block.
type Events interface {
	SessionOpened(id uuid.UUID, mode Mode)
	MessageSettled(id uuid.UUID, ok bool, latency time.Duration)
	FormGenerated(id uuid.UUID, form FormRecord)
	SessionClosed(id uuid.UUID, reason string)
}

type noopEvents struct{}

func (noopEvents) SessionOpened(uuid.UUID, Mode)                 {}
func (noopEvents) MessageSettled(uuid.UUID, bool, time.Duration) {}
func (noopEvents) FormGenerated(uuid.UUID, FormRecord)           {}
func (noopEvents) SessionClosed(uuid.UUID, string)               {}

// SessionConfig is shared by every session a Registry creates.
type SessionConfig struct {
	Profile        profile.Profile
	Responder      Responder
	Policy         FormPolicy
	Events         Events
	Logger         *slog.Logger
	ModelTimeout   time.Duration // 0 leaves the model call unbounded
	MaxUploadBytes int
	Now            func() time.Time
}

// Session is one page lifetime of the chat widget: the transcript, the selected
// mode, a single in-flight model request and the forms derived from replies.
type Session struct {
	id           uuid.UUID
	profile      profile.Profile
	responder    Responder
	policy       FormPolicy
	events       Events
	logger       *slog.Logger
	modelTimeout time.Duration
	maxUpload    int
	now          func() time.Time
	createdAt    time.Time

	mu         sync.Mutex
	mode       Mode
	transcript *Transcript
	pending    bool
	forms      []FormRecord
	files      []TrainingFile
	lastActive time.Time
}

func NewSession(cfg SessionConfig, mode Mode) *Session {
	if cfg.Events == nil {
		cfg.Events = noopEvents{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if mode == "" {
		mode = ModeCustomer
	}
	now := cfg.Now()
	id := uuid.New()
	return &Session{
		id:           id,
		profile:      cfg.Profile,
		responder:    cfg.Responder,
		policy:       cfg.Policy,
		events:       cfg.Events,
		logger:       cfg.Logger.With("session_id", id.String()),
		modelTimeout: cfg.ModelTimeout,
		maxUpload:    cfg.MaxUploadBytes,
		now:          cfg.Now,
		createdAt:    now,
		mode:         mode,
		transcript:   NewTranscript(cfg.Profile.WelcomeMessage, now),
		lastActive:   now,
	}
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) Profile() profile.Profile { return s.profile }

// Reply is the outcome of a settled submission.
type Reply struct {
	Message Message     `json:"message"`
	Form    *FormRecord `json:"form,omitempty"`
	Failed  bool        `json:"failed"`
}

// FallbackMessage is appended in place of a reply whenever the model call fails.
func FallbackMessage(p profile.Profile) string {
	return fmt.Sprintf("I apologize, but I encountered a technical issue. Please try again or contact %s directly at %s for immediate assistance.",
		p.OwnerName, p.Phone)
}

// Submit appends text as a user message, asks the responder for a reply and
// appends exactly one assistant message when the call settles. Blank text and
// submissions made while a reply is pending return ErrEmptyMessage / ErrPending
// and leave the session untouched. Model failures are not returned; they settle
// as the fallback message.
//
// The model call does not inherit ctx's cancellation: once accepted, a request
// stays pending until the responder returns.
func (s *Session) Submit(ctx context.Context, text string) (Reply, error) {
	if strings.TrimSpace(text) == "" {
		metrics.SubmitRejected("empty")
		return Reply{}, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.pending {
		s.mu.Unlock()
		metrics.SubmitRejected("pending")
		return Reply{}, ErrPending
	}
	now := s.now()
	if err := s.transcript.Append(Message{Role: RoleUser, Content: text, Timestamp: now}); err != nil {
		s.mu.Unlock()
		return Reply{}, err
	}
	all := s.transcript.All()
	mode := s.mode
	s.pending = true
	s.lastActive = now
	s.mu.Unlock()

	prompt := BuildPrompt(s.profile, mode, all[:len(all)-1], text)

	callCtx := context.WithoutCancel(ctx)
	if s.modelTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, s.modelTimeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := s.respond(callCtx, prompt)
	return s.settle(mode, text, reply, err, time.Since(start)), nil
}

// respond turns a responder panic into an ordinary failure so the session
// always leaves Pending.
func (s *Session) respond(ctx context.Context, p Prompt) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("responder panic: %v", r)
		}
	}()
	return s.responder.Respond(ctx, p)
}

func (s *Session) settle(mode Mode, userText, reply string, callErr error, latency time.Duration) Reply {
	kind := s.responder.Kind()

	s.mu.Lock()
	now := s.now()
	out := Reply{}
	if callErr != nil {
		out.Failed = true
		out.Message = Message{Role: RoleAssistant, Content: FallbackMessage(s.profile), Timestamp: now}
	} else {
		out.Message = Message{Role: RoleAssistant, Content: reply, Timestamp: now}
		if s.policy.Matches(mode, userText, reply) {
			rec := NewFormRecord(userText, reply, now)
			s.forms = append(s.forms, rec)
			out.Form = &rec
		}
	}
	s.transcript.push(out.Message)
	s.pending = false
	s.lastActive = now
	s.mu.Unlock()

	if callErr != nil {
		s.logger.Warn("model request failed, sent fallback", "responder", kind, "error", callErr, "latency", latency)
		metrics.ModelRequest(kind, "error", latency)
	} else {
		s.logger.Info("reply settled", "responder", kind, "latency", latency, "reply_len", len(reply))
		metrics.ModelRequest(kind, "ok", latency)
	}
	s.events.MessageSettled(s.id, callErr == nil, latency)

	if out.Form != nil {
		s.logger.Info("form generated", "form_id", out.Form.ID.String(), "kind", out.Form.Kind, "name", out.Form.Name)
		metrics.FormGenerated(out.Form.Kind)
		s.events.FormGenerated(s.id, *out.Form)
	}
	return out
}

// SetMode switches the prompt profile. Allowed while a reply is pending; the
// in-flight request keeps the mode it was submitted with.
func (s *Session) SetMode(mode Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
	s.lastActive = s.now()
}

func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.All()
}

func (s *Session) Forms() []FormRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]FormRecord, len(s.forms))
	copy(out, s.forms)
	return out
}

func (s *Session) Form(id uuid.UUID) (FormRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.forms {
		if f.ID == id {
			return f, nil
		}
	}
	return FormRecord{}, fmt.Errorf("form %s: %w", id, ErrNotFound)
}

// View is a consistent snapshot for rendering.
type View struct {
	ID        uuid.UUID    `json:"id"`
	Mode      Mode         `json:"mode"`
	Pending   bool         `json:"pending"`
	CreatedAt time.Time    `json:"created_at"`
	Messages  []Message    `json:"messages"`
	Forms     []FormRecord `json:"forms"`
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	forms := make([]FormRecord, len(s.forms))
	copy(forms, s.forms)
	return View{
		ID:        s.id,
		Mode:      s.mode,
		Pending:   s.pending,
		CreatedAt: s.createdAt,
		Messages:  s.transcript.All(),
		Forms:     forms,
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = s.now()
	s.mu.Unlock()
}

// idleSince reports the last activity time and whether a reply is pending.
func (s *Session) idleSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive, s.pending
}

package chat

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/brokerchat/internal/anthropic"
)

// Responder produces the assistant reply for a prompt.
type Responder interface {
	Respond(ctx context.Context, p Prompt) (string, error)
	Kind() string
}

// Completer is the subset of the Anthropic client the live responder needs.
type Completer interface {
	Complete(ctx context.Context, system string, messages []anthropic.Message, maxTokens int) (string, error)
}

type LiveResponder struct {
	llm       Completer
	maxTokens int
}

func NewLiveResponder(llm Completer, maxTokens int) *LiveResponder {
	return &LiveResponder{llm: llm, maxTokens: maxTokens}
}

func (r *LiveResponder) Kind() string { return "live" }

func (r *LiveResponder) Respond(ctx context.Context, p Prompt) (string, error) {
	messages := make([]anthropic.Message, len(p.Messages))
	for i, t := range p.Messages {
		messages[i] = anthropic.Message{Role: string(t.Role), Content: t.Content}
	}
	return r.llm.Complete(ctx, p.System, messages, r.maxTokens)
}

// DemoReplies are the answers the widget gives when no model is wired.
var DemoReplies = []string{
	"I'd be happy to help with that! As Clint's AI assistant, I can help process insurance applications and provide quotes.",
	"Great question! I can help fill out forms and handle insurance paperwork to save Clint time.",
	"I can definitely assist with that. Let me help you with your insurance needs.",
}

// CannedResponder picks one of a fixed set of replies after an optional delay.
type CannedResponder struct {
	replies []string
	delay   time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

func NewCannedResponder(rng *rand.Rand, delay time.Duration, replies ...string) *CannedResponder {
	if len(replies) == 0 {
		replies = DemoReplies
	}
	return &CannedResponder{replies: replies, delay: delay, rng: rng}
}

func (r *CannedResponder) Kind() string { return "canned" }

func (r *CannedResponder) Respond(ctx context.Context, _ Prompt) (string, error) {
	if r.delay > 0 {
		timer := time.NewTimer(r.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.replies) == 0 {
		return "", errors.New("no canned replies")
	}
	return r.replies[r.rng.IntN(len(r.replies))], nil
}

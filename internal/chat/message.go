package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrEmptyMessage    = errors.New("message is empty")
	ErrPending         = errors.New("a reply is already pending")
	ErrNotFound        = errors.New("not found")
	ErrUnknownMode     = errors.New("unknown mode")
	ErrInternalOnly    = errors.New("only available in internal mode")
	ErrUnsupportedFile = errors.New("unsupported file type")
	ErrFileTooLarge    = errors.New("file too large")
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Mode selects the prompt profile and whether form generation is considered.
type Mode string

const (
	ModeCustomer Mode = "customer"
	ModeInternal Mode = "internal"
)

// ParseMode accepts the two operator-facing values; empty means customer.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeCustomer:
		return ModeCustomer, nil
	case ModeInternal:
		return ModeInternal, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

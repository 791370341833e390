package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Form kinds.
const (
	FormKindAuto    = "auto"
	FormKindHome    = "home"
	FormKindGeneral = "general"
)

// FormRecord is a document derived from an assistant reply.
type FormRecord struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Kind        string    `json:"kind"`
	CreatedDate string    `json:"created_date"`
	CreatedTime string    `json:"created_time"`
	Content     string    `json:"content"`
}

// FormPolicy decides whether a successful reply becomes a FormRecord.
// Keyword matching on raw chat text is a heuristic and misfires both ways;
// keep it in one place and tune it here.
type FormPolicy struct {
	// RequireInternal restricts generation to internal mode.
	RequireInternal bool
	// Keywords are matched case-insensitively against the user's text.
	Keywords []string
	// Sentinel is matched case-sensitively against the reply. Empty disables it.
	Sentinel string
}

func DefaultFormPolicy() FormPolicy {
	return FormPolicy{
		RequireInternal: true,
		Keywords:        []string{"fill out", "application", "form"},
		Sentinel:        "COMPLETED_FORM:",
	}
}

func (p FormPolicy) Matches(mode Mode, userText, reply string) bool {
	if p.RequireInternal && mode != ModeInternal {
		return false
	}
	lower := strings.ToLower(userText)
	for _, kw := range p.Keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return p.Sentinel != "" && strings.Contains(reply, p.Sentinel)
}

// FormKind classifies by the first of "auto", "home" found in either text.
func FormKind(userText, reply string) string {
	haystack := strings.ToLower(userText + "\n" + reply)
	switch {
	case strings.Contains(haystack, FormKindAuto):
		return FormKindAuto
	case strings.Contains(haystack, FormKindHome):
		return FormKindHome
	default:
		return FormKindGeneral
	}
}

// NewFormRecord names the record "<Kind> Application - M/D/YYYY".
func NewFormRecord(userText, reply string, now time.Time) FormRecord {
	kind := FormKind(userText, reply)
	return FormRecord{
		ID:          newTimeOrderedID(),
		Name:        strings.ToUpper(kind[:1]) + kind[1:] + " Application - " + now.Format("1/2/2006"),
		Kind:        kind,
		CreatedDate: now.Format("2006-01-02"),
		CreatedTime: now.Format("3:04:05 PM"),
		Content:     reply,
	}
}

func newTimeOrderedID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

package chat

import (
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/brokerchat/internal/profile"
)

// ExportForm renders f as a plain-text document and returns its download name.
func ExportForm(p profile.Profile, f FormRecord) (string, []byte) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s - %s\n", p.CompanyName, f.Name)
	fmt.Fprintf(&b, "Generated: %s at %s\n", f.CreatedDate, f.CreatedTime)
	fmt.Fprintf(&b, "Owner: %s\n\n", p.OwnerName)
	b.WriteString(f.Content)
	b.WriteString("\n\n---\n")
	fmt.Fprintf(&b, "This form was automatically generated by %s's AI Assistant.\n", p.CompanyName)
	fmt.Fprintf(&b, "For questions, contact %s or %s", p.Phone, p.Email)

	return SanitizeFilename(f.Name) + ".txt", []byte(b.String())
}

// SanitizeFilename replaces every rune outside [A-Za-z0-9] with one underscore.
func SanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
}

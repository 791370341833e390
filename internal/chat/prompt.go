package chat

import (
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/brokerchat/internal/profile"
)

// Turn is one role-tagged entry sent to the model.
type Turn struct {
	Role    Role
	Content string
}

// Prompt is the full request payload minus transport details.
type Prompt struct {
	System   string
	Messages []Turn
}

const customerModeBlock = `CUSTOMER SERVICE MODE:
- Help customers with insurance quotes and information
- Answer policy questions and explain coverage options
- Assist with claims processes and requirements
- Schedule appointments with %[1]s
- Provide general insurance education
- Never invent policy terms, premiums, rates or coverage details; say that %[1]s will confirm them
- Offer to connect customers with %[1]s for complex needs
- Emphasize %[2]s's commitment to finding the best rates`

const internalModeBlock = `INTERNAL BUSINESS ASSISTANT MODE for %[1]s:
- You are talking to %[1]s, the owner of the business
- Fill out insurance forms and applications from the details provided
- Process new client paperwork and draft form content
- Generate quotes and proposals
- Manage claims documentation
- Handle policy renewals and changes
- Prioritize completeness and accuracy over brevity
- When a form is fully drafted, begin the completed form with the line COMPLETED_FORM:`

const formRulesBlock = `When filling out forms:
1. Ask for required information if not provided
2. Use professional insurance terminology
3. Ensure all fields are completed accurately
4. Generate downloadable completed forms
5. Keep records for %s's files`

// BuildPrompt renders the business context for mode, replays prior (the
// transcript before the new message, seed included) and appends text last.
// It performs no I/O and is deterministic in its inputs.
func BuildPrompt(p profile.Profile, mode Mode, prior []Message, text string) Prompt {
	turns := make([]Turn, 0, len(prior)+1)
	if len(prior) > 1 {
		for _, m := range prior[1:] {
			turns = append(turns, Turn{Role: m.Role, Content: m.Content})
		}
	}
	turns = append(turns, Turn{Role: RoleUser, Content: text})

	return Prompt{System: systemPrompt(p, mode), Messages: turns}
}

func systemPrompt(p profile.Profile, mode Mode) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are an AI assistant for %s, an insurance brokerage owned by %s in %s.\n\n",
		p.CompanyName, p.OwnerName, p.Location)

	b.WriteString("BUSINESS INFORMATION:\n")
	fmt.Fprintf(&b, "- Company: %s\n", p.CompanyName)
	fmt.Fprintf(&b, "- Owner: %s\n", p.OwnerName)
	fmt.Fprintf(&b, "- Industry: %s\n", p.Industry)
	fmt.Fprintf(&b, "- Location: %s\n", p.Location)
	fmt.Fprintf(&b, "- Phone: %s\n", p.Phone)
	fmt.Fprintf(&b, "- Email: %s\n", p.Email)
	fmt.Fprintf(&b, "- Website: %s\n", p.Website)
	fmt.Fprintf(&b, "- Business Hours: %s\n", p.BusinessHours)
	fmt.Fprintf(&b, "- Established: %s\n", p.Established)
	fmt.Fprintf(&b, "- License: %s\n\n", p.LicenseNumber)

	b.WriteString("SERVICES OFFERED:\n")
	writeList(&b, p.Services)
	b.WriteString("\n")

	if mode == ModeInternal {
		b.WriteString("USER MODE: INTERNAL BUSINESS ASSISTANT\n\n")
		fmt.Fprintf(&b, internalModeBlock, p.OwnerName)
	} else {
		b.WriteString("USER MODE: CUSTOMER SERVICE\n\n")
		fmt.Fprintf(&b, customerModeBlock, p.OwnerName, p.CompanyName)
	}
	b.WriteString("\n\n")

	b.WriteString("FORM AUTOMATION CAPABILITIES:\nAvailable forms for automatic completion:\n")
	writeList(&b, p.FormTemplates)
	b.WriteString("\n")
	fmt.Fprintf(&b, formRulesBlock, p.OwnerName)
	b.WriteString("\n\n")

	b.WriteString("IMPORTANT: Always maintain professional standards appropriate for the insurance industry. " +
		"Be helpful, accurate, and trustworthy in all interactions.")

	return b.String()
}

func writeList(b *strings.Builder, items []string) {
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}

// Package profile holds the brokerage's static business configuration: identity,
// services, form templates and the quick actions offered in the widget sidebar.
package profile

// QuickAction is a canned prompt the widget drops into the input box.
type QuickAction struct {
	Text     string `json:"text"`
	Icon     string `json:"icon"`
	Category string `json:"category"` // quote | form | claim | renewal | comparison | appointment
}

// Profile is read-only for the lifetime of the process.
type Profile struct {
	Slug           string        `json:"slug"`
	CompanyName    string        `json:"company_name"`
	OwnerName      string        `json:"owner_name"`
	Industry       string        `json:"industry"`
	Location       string        `json:"location"`
	Phone          string        `json:"phone"`
	Email          string        `json:"email"`
	Website        string        `json:"website"`
	BusinessHours  string        `json:"business_hours"`
	Established    string        `json:"established"`
	LicenseNumber  string        `json:"license_number"`
	Services       []string      `json:"services"`
	FormTemplates  []string      `json:"form_templates"`
	QuickActions   []QuickAction `json:"quick_actions"`
	WelcomeMessage string        `json:"welcome_message"`
}

// Default returns the AIP Best Rate profile used when no database is configured.
func Default() Profile {
	return Profile{
		Slug:          "aip-best-rate",
		CompanyName:   "AIP Best Rate",
		OwnerName:     "Clint Johnson",
		Industry:      "Insurance Brokerage",
		Location:      "Shreveport, Louisiana",
		Phone:         "(318) 555-0123",
		Email:         "clint@aipbestrate.com",
		Website:       "www.aipbestrate.com",
		BusinessHours: "Monday-Friday 8:00 AM - 6:00 PM",
		Established:   "2018",
		LicenseNumber: "LA-INS-12345",
		Services: []string{
			"Auto Insurance",
			"Homeowners Insurance",
			"Commercial Insurance",
			"Life Insurance",
			"Umbrella Policies",
			"SR-22 Filing",
		},
		FormTemplates: []string{
			"Auto Insurance Application",
			"Homeowners Quote Form",
			"Commercial Insurance Application",
			"Claims Processing Form",
			"Policy Renewal Form",
		},
		QuickActions: []QuickAction{
			{Text: "Get an auto insurance quote", Icon: "🚗", Category: "quote"},
			{Text: "Fill out new client application form", Icon: "📋", Category: "form"},
			{Text: "Process an insurance claim", Icon: "🛡️", Category: "claim"},
			{Text: "Renew existing policy", Icon: "🔄", Category: "renewal"},
			{Text: "Compare insurance rates", Icon: "📊", Category: "comparison"},
			{Text: "Schedule appointment with Clint", Icon: "📅", Category: "appointment"},
		},
		WelcomeMessage: "Welcome to AIP Best Rate! I'm Clint's AI assistant. I can help with insurance quotes, " +
			"policy questions, claims processing, and I can automatically fill out forms to save time. " +
			"What can I help you with today?",
	}
}

// FillDefaults copies any empty field from Default so a partially populated
// database row still yields a usable profile.
func (p Profile) FillDefaults() Profile {
	d := Default()
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&p.Slug, d.Slug)
	fill(&p.CompanyName, d.CompanyName)
	fill(&p.OwnerName, d.OwnerName)
	fill(&p.Industry, d.Industry)
	fill(&p.Location, d.Location)
	fill(&p.Phone, d.Phone)
	fill(&p.Email, d.Email)
	fill(&p.Website, d.Website)
	fill(&p.BusinessHours, d.BusinessHours)
	fill(&p.Established, d.Established)
	fill(&p.LicenseNumber, d.LicenseNumber)
	fill(&p.WelcomeMessage, d.WelcomeMessage)
	if len(p.Services) == 0 {
		p.Services = d.Services
	}
	if len(p.FormTemplates) == 0 {
		p.FormTemplates = d.FormTemplates
	}
	if len(p.QuickActions) == 0 {
		p.QuickActions = d.QuickActions
	}
	return p
}

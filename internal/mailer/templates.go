package mailer

import "regexp"

// Template is a canned subject/body pair with {{placeholder}} variables.
type Template struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Templates returns the campaign templates exposed to the admin dashboard.
// Bodies use {{name}}-style placeholders resolved per recipient at send
// time.
func Templates() map[string]Template {
	return map[string]Template{
		"welcome": {
			Subject: "Welcome to KMUN'25 Executive Board Recruitment",
			Body: `Dear {{name}},

Thank you for your interest in joining the KMUN'25 Executive Board! We have received your application and are excited to review your profile.

Your application details:
- Name: {{name}}
- Email: {{email}}
- College: {{college}}
- Department: {{department}}
- Year: {{year}}

We will review your application and get back to you soon with further details about the selection process.

Best regards,
KMUN'25 Team`,
		},
		"bulk": {
			Subject: "Important Update from KMUN'25",
			Body: `Dear {{name}},

{{message}}

Best regards,
KMUN'25 Team`,
		},
		"rejection": {
			Subject: "KMUN'25 Executive Board Application Update",
			Body: `Dear {{name}},

Thank you for your interest in joining the KMUN'25 Executive Board. After careful consideration of your application, we regret to inform you that we are unable to move forward with your application at this time.

We appreciate your interest and wish you the best in your future endeavors.

Best regards,
KMUN'25 Team`,
		},
		"acceptance": {
			Subject: "Congratulations! Welcome to KMUN'25 Executive Board",
			Body: `Dear {{name}},

Congratulations! We are delighted to inform you that your application for the KMUN'25 Executive Board has been accepted!

Your application details:
- Name: {{name}}
- Email: {{email}}
- College: {{college}}
- Department: {{department}}
- Year: {{year}}

We will be in touch soon with further details about your role and next steps.

Welcome to the team!

Best regards,
KMUN'25 Team`,
		},
	}
}

var placeholderPattern = regexp.MustCompile(`\{\{[a-zA-Z]+\}\}`)

// ReplaceVars substitutes {{key}} placeholders with their values. Any
// placeholder left unresolved is replaced with the empty string so a
// template never leaks raw braces to a recipient.
func ReplaceVars(text string, vars map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		key := match[2 : len(match)-2]
		return vars[key]
	})
}

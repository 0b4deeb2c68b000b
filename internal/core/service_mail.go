package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/JonMunkholm/regdesk/internal/mailer"
)

// ErrNoRecipients is returned when a recipient spec resolves to nobody.
// Handlers map it to 400.
var ErrNoRecipients = errors.New("no valid recipients found")

// registrationIDLength is the heuristic cutoff between group names and
// registration ids in a recipient list: every store-assigned id is longer
// than any group name.
const registrationIDLength = 10

// RecipientSpec selects who receives a campaign: a single verbatim address,
// a list of registration ids, or a list of group names (all, pending,
// accepted, approved, rejected).
type RecipientSpec struct {
	Single string
	List   []string
}

// MailRequest is one campaign send.
type MailRequest struct {
	Recipients  RecipientSpec
	Subject     string
	Message     string
	Template    string // template name; empty means "bulk"
	Provider    string // smtp provider name; empty means "gmail"
	CC          []string
	BCC         []string
	Attachments []mailer.Attachment
}

// MailResult accumulates per-recipient outcomes. One recipient's failure
// never stops the rest of the batch.
type MailResult struct {
	Sent   int      `json:"sent"`
	Failed int      `json:"failed"`
	Errors []string `json:"errors"`
}

type recipient struct {
	email string
	name  string
	reg   *Registration
}

// SendBulk resolves the recipient spec and dispatches one message per
// recipient, strictly sequentially. Sequential dispatch keeps provider rate
// limits predictable and makes per-recipient error attribution unambiguous.
func (s *Service) SendBulk(ctx context.Context, req MailRequest) (MailResult, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = "gmail"
	}
	transport, sender, err := s.mail.Get(providerName)
	if err != nil {
		return MailResult{}, err
	}
	from := s.from
	if from == "" {
		from = sender
	}

	recipients, err := s.resolveRecipients(ctx, req.Recipients)
	if err != nil {
		return MailResult{}, err
	}
	if len(recipients) == 0 {
		return MailResult{}, ErrNoRecipients
	}

	templateName := req.Template
	if templateName == "" {
		templateName = "bulk"
	}
	tmpl, ok := mailer.Templates()[templateName]
	if !ok {
		return MailResult{}, fmt.Errorf("unknown template %q", templateName)
	}

	subject := req.Subject
	if subject == "" {
		subject = tmpl.Subject
	}

	result := MailResult{Errors: []string{}}
	for _, r := range recipients {
		vars := map[string]string{
			"name":    r.name,
			"email":   r.email,
			"message": req.Message,
			"subject": subject,
		}
		if r.reg != nil {
			vars["college"] = r.reg.College
			vars["department"] = r.reg.Department
			vars["year"] = strconv.Itoa(r.reg.Year)
			vars["committees"] = strings.Join(r.reg.Committees, ", ")
			vars["positions"] = strings.Join(r.reg.Positions, ", ")
			vars["submittedAt"] = r.reg.SubmittedAt
		}

		msg := mailer.Message{
			From:        from,
			FromName:    s.fromName,
			To:          r.email,
			ToName:      r.name,
			Subject:     mailer.ReplaceVars(subject, vars),
			TextBody:    mailer.ReplaceVars(tmpl.Body, vars),
			CC:          req.CC,
			BCC:         req.BCC,
			Attachments: req.Attachments,
		}

		if err := transport.Send(ctx, msg); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", r.email, err))
			s.logger.Error("mail send failed", "to", r.email, "error", err)
			continue
		}
		result.Sent++
		s.logger.Info("mail sent", "to", r.email, "provider", providerName)
	}

	return result, nil
}

// resolveRecipients turns a spec into concrete addresses. A single address
// is used verbatim; a list is either all registration ids (every token
// longer than the cutoff) or group names filtered on status. Unknown ids
// and unknown group names resolve to nothing.
func (s *Service) resolveRecipients(ctx context.Context, spec RecipientSpec) ([]recipient, error) {
	if spec.Single != "" {
		name := spec.Single
		if at := strings.Index(spec.Single, "@"); at > 0 {
			name = spec.Single[:at]
		}
		return []recipient{{email: spec.Single, name: name}}, nil
	}

	if len(spec.List) == 0 {
		return nil, nil
	}

	regs, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	if allRegistrationIDs(spec.List) {
		wanted := make(map[string]bool, len(spec.List))
		for _, id := range spec.List {
			wanted[id] = true
		}
		var out []recipient
		for i := range regs {
			if wanted[regs[i].ID] {
				out = append(out, recipient{email: regs[i].Email, name: regs[i].Name, reg: &regs[i]})
			}
		}
		return out, nil
	}

	groups := make(map[string]bool, len(spec.List))
	for _, g := range spec.List {
		groups[strings.ToLower(g)] = true
	}

	var out []recipient
	for i := range regs {
		if !matchesGroup(regs[i].Status, groups) {
			continue
		}
		out = append(out, recipient{email: regs[i].Email, name: regs[i].Name, reg: &regs[i]})
	}
	return out, nil
}

func allRegistrationIDs(tokens []string) bool {
	for _, t := range tokens {
		if len(t) <= registrationIDLength {
			return false
		}
	}
	return true
}

func matchesGroup(status string, groups map[string]bool) bool {
	if groups["all"] {
		return true
	}
	switch status {
	case StatusPending:
		return groups["pending"]
	case StatusApproved:
		return groups["accepted"] || groups["approved"]
	case StatusRejected:
		return groups["rejected"]
	}
	return false
}

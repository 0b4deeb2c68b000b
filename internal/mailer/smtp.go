package mailer

import (
	"bytes"
	"context"
	"fmt"

	mail "github.com/wneessen/go-mail"

	"github.com/JonMunkholm/regdesk/internal/config"
)

// SMTP delivers mail over one configured relay using STARTTLS when the
// server offers it. A fresh connection is dialed per message; campaign
// volume here is low enough that pooling is not worth the state.
type SMTP struct {
	provider config.SMTPProvider
}

func NewSMTP(p config.SMTPProvider) *SMTP {
	return &SMTP{provider: p}
}

func (s *SMTP) Send(ctx context.Context, msg Message) error {
	m := mail.NewMsg()

	if msg.FromName != "" {
		if err := m.FromFormat(msg.FromName, msg.From); err != nil {
			return fmt.Errorf("setting sender: %w", err)
		}
	} else if err := m.From(msg.From); err != nil {
		return fmt.Errorf("setting sender: %w", err)
	}

	if msg.ToName != "" {
		if err := m.AddToFormat(msg.ToName, msg.To); err != nil {
			return fmt.Errorf("setting recipient: %w", err)
		}
	} else if err := m.To(msg.To); err != nil {
		return fmt.Errorf("setting recipient: %w", err)
	}

	for _, cc := range msg.CC {
		if err := m.AddCc(cc); err != nil {
			return fmt.Errorf("setting cc: %w", err)
		}
	}
	for _, bcc := range msg.BCC {
		if err := m.AddBcc(bcc); err != nil {
			return fmt.Errorf("setting bcc: %w", err)
		}
	}

	m.Subject(msg.Subject)
	switch {
	case msg.HTMLBody != "" && msg.TextBody != "":
		m.SetBodyString(mail.TypeTextPlain, msg.TextBody)
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTMLBody)
	case msg.HTMLBody != "":
		m.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)
	default:
		m.SetBodyString(mail.TypeTextPlain, msg.TextBody)
	}

	for _, att := range msg.Attachments {
		opts := []mail.FileOption{}
		if att.ContentType != "" {
			opts = append(opts, mail.WithFileContentType(mail.ContentType(att.ContentType)))
		}
		if err := m.AttachReader(att.Filename, bytes.NewReader(att.Data), opts...); err != nil {
			return fmt.Errorf("attaching %s: %w", att.Filename, err)
		}
	}

	client, err := mail.NewClient(s.provider.Host,
		mail.WithPort(s.provider.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.provider.User),
		mail.WithPassword(s.provider.Pass),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("sending to %s: %w", msg.To, err)
	}
	return nil
}

// Package mailer sends transactional and campaign email through named SMTP
// providers. The Transport interface isolates the wire client so the core
// service and tests never dial a real relay.
package mailer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/JonMunkholm/regdesk/internal/config"
)

// Attachment is one file carried by an outgoing message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a fully-resolved outgoing email.
type Message struct {
	From        string
	FromName    string
	To          string
	ToName      string
	Subject     string
	TextBody    string
	HTMLBody    string
	CC          []string
	BCC         []string
	Attachments []Attachment
}

// Transport delivers a single message. Implementations must be safe for
// concurrent use.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Registry maps provider names to transports. Campaign requests select a
// provider by name; an unknown name is a caller error.
type Registry struct {
	transports map[string]Transport
	senders    map[string]string
}

// NewRegistry builds a registry from the configured SMTP providers. Providers
// without credentials are skipped so a half-configured environment still
// serves the ones that work.
func NewRegistry(cfg config.SMTPConfig) *Registry {
	r := &Registry{
		transports: make(map[string]Transport),
		senders:    make(map[string]string),
	}
	for _, name := range cfg.ProviderNames() {
		p, ok := cfg.Provider(name)
		if !ok || p.User == "" || p.Pass == "" {
			continue
		}
		r.transports[name] = NewSMTP(p)
		r.senders[name] = p.User
	}
	return r
}

// Register adds or replaces a named transport. Tests use this to install
// in-memory transports.
func (r *Registry) Register(name string, t Transport, sender string) {
	r.transports[name] = t
	r.senders[name] = sender
}

// Get returns the transport and sender address for a provider name.
func (r *Registry) Get(name string) (Transport, string, error) {
	t, ok := r.transports[name]
	if !ok {
		return nil, "", fmt.Errorf("smtp provider %q is not configured", name)
	}
	return t, r.senders[name], nil
}

// Names lists the configured provider names in stable order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.transports))
	for name := range r.transports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unconfigured stands in for a provider with no credentials; every send
// fails with a clear error instead of a nil-pointer panic.
type Unconfigured struct {
	Name string
}

func (u Unconfigured) Send(_ context.Context, _ Message) error {
	return fmt.Errorf("smtp provider %q is not configured", u.Name)
}

// Memory records messages instead of delivering them. FailFor lists
// recipient addresses whose sends should error, exercising the dispatcher's
// per-recipient failure accounting.
type Memory struct {
	Sent    []Message
	FailFor []string
}

func (m *Memory) Send(_ context.Context, msg Message) error {
	for _, addr := range m.FailFor {
		if strings.EqualFold(addr, msg.To) {
			return fmt.Errorf("connection refused")
		}
	}
	m.Sent = append(m.Sent, msg)
	return nil
}

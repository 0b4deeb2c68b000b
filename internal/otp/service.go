package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/JonMunkholm/regdesk/internal/mailer"
)

// ErrNotAuthorized is returned when the email is not on the admin
// allow-list. Handlers map it to 403.
var ErrNotAuthorized = errors.New("email not authorized for admin access")

// ErrCodeMismatch is returned when a live code exists but the submitted one
// does not match. The stored code stays valid.
var ErrCodeMismatch = errors.New("invalid otp")

// Service issues and verifies one-time admin login codes.
type Service struct {
	store    Store
	mail     mailer.Transport
	from     string
	fromName string
	allowed  []string
	ttl      time.Duration
	logger   *slog.Logger

	generate func() (string, error)
}

func NewService(store Store, mail mailer.Transport, from, fromName string, allowed []string, ttl time.Duration, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		mail:     mail,
		from:     from,
		fromName: fromName,
		allowed:  allowed,
		ttl:      ttl,
		logger:   logger,
		generate: generateCode,
	}
}

// Authorized reports whether the email is on the admin allow-list.
// Comparison is case-insensitive; operators paste these lists by hand.
func (s *Service) Authorized(email string) bool {
	for _, a := range s.allowed {
		if strings.EqualFold(strings.TrimSpace(a), email) {
			return true
		}
	}
	return false
}

// Issue generates a fresh code for the email, stores it with the configured
// TTL, and mails it. Re-issuing replaces any earlier live code.
func (s *Service) Issue(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if !s.Authorized(email) {
		return fmt.Errorf("%w: %s", ErrNotAuthorized, email)
	}

	code, err := s.generate()
	if err != nil {
		return fmt.Errorf("generating otp: %w", err)
	}

	if err := s.store.Put(ctx, email, code, s.ttl); err != nil {
		return err
	}

	msg := mailer.Message{
		From:     s.from,
		FromName: s.fromName,
		To:       email,
		Subject:  "Admin Access OTP - Kumaraguru MUN",
		HTMLBody: otpBody(code, s.ttl),
	}
	if err := s.mail.Send(ctx, msg); err != nil {
		return fmt.Errorf("sending otp mail: %w", err)
	}

	s.logger.Info("otp issued", "email", email, "ttl", s.ttl)
	return nil
}

// Verify checks a submitted code and consumes it on success. A consumed or
// expired code verifies exactly zero more times.
func (s *Service) Verify(ctx context.Context, email, code string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if !s.Authorized(email) {
		return fmt.Errorf("%w: %s", ErrNotAuthorized, email)
	}

	stored, err := s.store.Get(ctx, email)
	if err != nil {
		return err
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return ErrCodeMismatch
	}

	if err := s.store.Delete(ctx, email); err != nil {
		s.logger.Warn("failed to consume otp", "email", email, "error", err)
	}

	s.logger.Info("otp verified", "email", email)
	return nil
}

// generateCode produces a uniform 6-digit code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func otpBody(code string, ttl time.Duration) string {
	return fmt.Sprintf(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #3b82f6;">Admin Access OTP</h2>
  <p>You have requested access to the Kumaraguru MUN Admin Dashboard.</p>
  <p>Your OTP code is: <strong style="font-size: 24px; color: #3b82f6;">%s</strong></p>
  <p>This code will expire in %d minutes.</p>
  <p>If you didn't request this access, please ignore this email.</p>
  <hr>
  <p style="color: #666; font-size: 12px;">Kumaraguru MUN Team</p>
</div>`, code, int(ttl.Minutes()))
}

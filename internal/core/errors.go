package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/regdesk/internal/store"
)

// ErrNotFound reports a registration id with no backing record. It wraps the
// store sentinel so errors.Is works across layers.
var ErrNotFound = fmt.Errorf("registration: %w", store.ErrNotFound)

// ErrUploadFailed reports that a required attachment could not be stored.
// Optional-attachment failures are swallowed and never surface as this.
var ErrUploadFailed = errors.New("attachment upload failed")

// ValidationError describes one rejected input field.
type ValidationError struct {
	Field   string // Field name from the submission payload
	Message string // Human-readable error message
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidationErrors aggregates every problem found in one payload so the
// client can fix them in a single pass.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = ve.Error()
	}
	return strings.Join(msgs, "; ")
}

// Messages returns the per-field messages for response bodies.
func (e ValidationErrors) Messages() []string {
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = ve.Error()
	}
	return msgs
}

// AsValidationErrors unwraps err into ValidationErrors if it carries them.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var ve ValidationErrors
	if errors.As(err, &ve) {
		return ve, true
	}
	var single ValidationError
	if errors.As(err, &single) {
		return ValidationErrors{single}, true
	}
	return nil, false
}

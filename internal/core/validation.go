package core

// validation.go normalizes and validates submission payloads before they
// touch storage. Both the multipart and JSON intake paths converge on
// ValidateSubmission; admin edits go through ValidateUpdate.
//
// Validation is pure: it reports every problem it finds and never logs.

import (
	"regexp"
	"strings"

	"github.com/JonMunkholm/regdesk/internal/store"
)

// emailPattern accepts the basic local@domain.tld shape. Deliverability is
// not checked here; a bounced address surfaces later through the mailer.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// requiredFields must be present and non-blank on every submission.
var requiredFields = []string{"name", "email", "phone", "college", "department", "year"}

// numericFields are parsed as non-negative integers. year is the only one
// required; the rest default to zero.
var numericFields = []string{"year", "munsParticipated", "munsWithAwards", "munsChaired"}

// systemFields are store-managed and stripped from update payloads.
var systemFields = []string{"id", "submittedAt", "createdAt"}

// ValidateSubmission checks a raw submission payload and returns the
// normalized registration. All problems are reported together as
// ValidationErrors.
func ValidateSubmission(input map[string]any) (Registration, error) {
	var errs ValidationErrors

	for _, field := range requiredFields {
		v, ok := input[field]
		if !ok || strings.TrimSpace(fieldString(v)) == "" {
			errs = append(errs, ValidationError{Field: field, Message: "is required"})
		}
	}

	var reg Registration

	reg.Name = strings.TrimSpace(fieldString(input["name"]))
	reg.Phone = strings.TrimSpace(fieldString(input["phone"]))
	reg.College = strings.TrimSpace(fieldString(input["college"]))
	reg.Department = strings.TrimSpace(fieldString(input["department"]))
	reg.OrganizingExperience = fieldString(input["organizingExperience"])
	reg.Achievements = fieldString(input["achievements"])

	reg.Email = strings.ToLower(strings.TrimSpace(fieldString(input["email"])))
	if reg.Email != "" && !emailPattern.MatchString(reg.Email) {
		errs = append(errs, ValidationError{Field: "email", Message: "invalid email format"})
	}

	reg.Year = validateInt(input, "year", &errs)
	reg.MUNsParticipated = validateInt(input, "munsParticipated", &errs)
	reg.MUNsWithAwards = validateInt(input, "munsWithAwards", &errs)
	reg.MUNsChaired = validateInt(input, "munsChaired", &errs)

	reg.Committees = NormalizeList(input["committees"])
	if len(reg.Committees) == 0 {
		errs = append(errs, ValidationError{Field: "committees", Message: "at least one preference is required"})
	}
	reg.Positions = NormalizeList(input["positions"])
	if len(reg.Positions) == 0 {
		errs = append(errs, ValidationError{Field: "positions", Message: "at least one preference is required"})
	}

	if len(errs) > 0 {
		return Registration{}, errs
	}

	reg.Status = StatusPending
	return reg, nil
}

// ValidateUpdate checks a partial admin edit. System-managed fields are
// dropped before validation so an update can never override them. Fields
// absent from the payload are left untouched by the caller's merge.
func ValidateUpdate(input map[string]any) (store.Fields, error) {
	update := make(store.Fields, len(input))
	for k, v := range input {
		update[k] = v
	}
	for _, field := range systemFields {
		delete(update, field)
	}

	var errs ValidationErrors

	for _, field := range requiredFields {
		if field == "year" {
			continue
		}
		v, ok := update[field]
		if !ok {
			continue
		}
		trimmed := strings.TrimSpace(fieldString(v))
		if trimmed == "" {
			errs = append(errs, ValidationError{Field: field, Message: "cannot be blank"})
			continue
		}
		if field == "email" {
			trimmed = strings.ToLower(trimmed)
			if !emailPattern.MatchString(trimmed) {
				errs = append(errs, ValidationError{Field: "email", Message: "invalid email format"})
			}
		}
		update[field] = trimmed
	}

	for _, field := range numericFields {
		v, ok := update[field]
		if !ok {
			continue
		}
		n, parsed := fieldInt(v)
		if !parsed || n < 0 {
			errs = append(errs, ValidationError{Field: field, Message: "must be a non-negative number"})
			continue
		}
		update[field] = n
	}

	for _, field := range []string{"committees", "positions"} {
		v, ok := update[field]
		if !ok {
			continue
		}
		list := NormalizeList(v)
		if len(list) == 0 {
			errs = append(errs, ValidationError{Field: field, Message: "at least one preference is required"})
			continue
		}
		update[field] = list
	}

	if status, ok := update["status"]; ok {
		switch fieldString(status) {
		case StatusPending, StatusApproved, StatusRejected:
			update["status"] = fieldString(status)
		default:
			errs = append(errs, ValidationError{Field: "status", Message: "must be pending, approved, or rejected"})
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return update, nil
}

// validateInt parses one numeric field, appending an error for anything
// that is not a non-negative integer. Absent fields default to zero.
func validateInt(input map[string]any, field string, errs *ValidationErrors) int {
	v, ok := input[field]
	if !ok || strings.TrimSpace(fieldString(v)) == "" {
		return 0
	}
	n, parsed := fieldInt(v)
	if !parsed || n < 0 {
		*errs = append(*errs, ValidationError{Field: field, Message: "must be a non-negative number"})
		return 0
	}
	return n
}

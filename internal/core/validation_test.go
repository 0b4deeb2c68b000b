package core

import (
	"strings"
	"testing"
)

func validSubmission() map[string]any {
	return map[string]any{
		"name":       "Priya Raman",
		"email":      "Priya@Example.COM",
		"phone":      "9876543210",
		"college":    "Kumaraguru College",
		"department": "CSE",
		"year":       "2",
		"committees": `["UNSC","DISEC"]`,
		"positions":  []any{"Chairperson"},
	}
}

func TestValidateSubmission(t *testing.T) {
	reg, err := ValidateSubmission(validSubmission())
	if err != nil {
		t.Fatalf("ValidateSubmission() error: %v", err)
	}

	if reg.Email != "priya@example.com" {
		t.Errorf("email = %q, want lowercased", reg.Email)
	}
	if reg.Year != 2 {
		t.Errorf("year = %d, want 2", reg.Year)
	}
	if len(reg.Committees) != 2 || reg.Committees[0] != "UNSC" {
		t.Errorf("committees = %v", reg.Committees)
	}
	if reg.Status != StatusPending {
		t.Errorf("status = %q, want %q", reg.Status, StatusPending)
	}
	if reg.MUNsParticipated != 0 {
		t.Errorf("munsParticipated = %d, want default 0", reg.MUNsParticipated)
	}
}

func TestValidateSubmissionErrors(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(map[string]any)
		wantField string
	}{
		{
			name:      "missing name",
			mutate:    func(m map[string]any) { delete(m, "name") },
			wantField: "name",
		},
		{
			name:      "blank email",
			mutate:    func(m map[string]any) { m["email"] = "   " },
			wantField: "email",
		},
		{
			name:      "malformed email",
			mutate:    func(m map[string]any) { m["email"] = "not-an-email" },
			wantField: "email",
		},
		{
			name:      "negative year",
			mutate:    func(m map[string]any) { m["year"] = "-1" },
			wantField: "year",
		},
		{
			name:      "non-numeric muns count",
			mutate:    func(m map[string]any) { m["munsChaired"] = "several" },
			wantField: "munsChaired",
		},
		{
			name:      "empty committees",
			mutate:    func(m map[string]any) { m["committees"] = "" },
			wantField: "committees",
		},
		{
			name:      "empty positions",
			mutate:    func(m map[string]any) { m["positions"] = []any{} },
			wantField: "positions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validSubmission()
			tt.mutate(input)

			_, err := ValidateSubmission(input)
			if err == nil {
				t.Fatal("ValidateSubmission() succeeded, want error")
			}

			verrs, ok := AsValidationErrors(err)
			if !ok {
				t.Fatalf("error %v is not ValidationErrors", err)
			}

			found := false
			for _, ve := range verrs {
				if ve.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("errors %v missing field %q", verrs, tt.wantField)
			}
		})
	}
}

func TestValidateSubmissionReportsAllErrors(t *testing.T) {
	input := validSubmission()
	delete(input, "name")
	input["email"] = "bad"
	input["year"] = "-3"

	_, err := ValidateSubmission(input)
	verrs, ok := AsValidationErrors(err)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	if len(verrs) < 3 {
		t.Errorf("got %d errors, want all problems reported together: %v", len(verrs), verrs)
	}
}

func TestValidateUpdateStripsSystemFields(t *testing.T) {
	update, err := ValidateUpdate(map[string]any{
		"id":          "forged-id",
		"submittedAt": "2020-01-01T00:00:00Z",
		"createdAt":   "2020-01-01T00:00:00Z",
		"name":        "New Name",
	})
	if err != nil {
		t.Fatalf("ValidateUpdate() error: %v", err)
	}

	for _, field := range []string{"id", "submittedAt", "createdAt"} {
		if _, ok := update[field]; ok {
			t.Errorf("system field %q survived the update payload", field)
		}
	}
	if update["name"] != "New Name" {
		t.Errorf("name = %v, want kept", update["name"])
	}
}

func TestValidateUpdate(t *testing.T) {
	tests := []struct {
		name    string
		input   map[string]any
		wantErr string
	}{
		{
			name:    "blank required field",
			input:   map[string]any{"college": "  "},
			wantErr: "college",
		},
		{
			name:    "invalid status",
			input:   map[string]any{"status": "maybe"},
			wantErr: "status",
		},
		{
			name:    "negative numeric",
			input:   map[string]any{"munsParticipated": -2},
			wantErr: "munsParticipated",
		},
		{
			name:  "valid status",
			input: map[string]any{"status": StatusApproved},
		},
		{
			name:  "email is normalized",
			input: map[string]any{"email": "ADMIN@Example.Com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			update, err := ValidateUpdate(tt.input)

			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("ValidateUpdate() error = %v, want mention of %q", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Fatalf("ValidateUpdate() error: %v", err)
			}
			if email, ok := update["email"]; ok && email != "admin@example.com" {
				t.Errorf("email = %v, want lowercased", email)
			}
		})
	}
}

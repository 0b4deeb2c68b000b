// Package core implements the registration domain: the entity model,
// validation, lifecycle operations, list/filter/pagination, export, and
// bulk mail dispatch. It orchestrates the store, filestore, and mailer
// packages and holds no transport concerns.
package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/JonMunkholm/regdesk/internal/store"
)

// Registration statuses. Bulk actions accept "accept" and "approve" as
// synonyms that both land on StatusApproved.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Logical attachment names used in multipart submissions and the files map.
const (
	FileIDCard          = "idCard"
	FileMUNCertificates = "munCertificates"
	FileChairingResume  = "chairingResume"
)

// StringList is an ordered list of strings that tolerates the looser
// encodings seen in form submissions: a native JSON array, a JSON-encoded
// array inside a string, or a bare scalar which becomes a single-element
// list.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		*l = arr
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		// Not an array and not a string; render the scalar as text.
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*l = StringList{fmt.Sprint(v)}
		return nil
	}

	*l = ParseStringList(raw)
	return nil
}

// ParseStringList normalizes a raw scalar into a list. A JSON-encoded array
// is decoded; anything else becomes a single-element list. Empty input
// yields an empty list.
func ParseStringList(raw string) StringList {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return StringList{}
	}

	if strings.HasPrefix(trimmed, "[") {
		var arr []string
		if err := json.Unmarshal([]byte(trimmed), &arr); err == nil {
			return arr
		}
	}
	return StringList{raw}
}

// NormalizeList coerces an already-stored value into a StringList. Values
// round-trip unchanged once normalized.
func NormalizeList(v any) StringList {
	switch t := v.(type) {
	case nil:
		return StringList{}
	case StringList:
		return t
	case []string:
		return StringList(t)
	case []any:
		out := make(StringList, 0, len(t))
		for _, e := range t {
			out = append(out, fmt.Sprint(e))
		}
		return out
	case string:
		return ParseStringList(t)
	default:
		return StringList{fmt.Sprint(t)}
	}
}

// Registration is the sole domain entity: one applicant's submission plus
// the admin-managed status and attachment URLs.
type Registration struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	College    string `json:"college"`
	Department string `json:"department"`
	Year       int    `json:"year"`

	MUNsParticipated     int    `json:"munsParticipated"`
	MUNsWithAwards       int    `json:"munsWithAwards"`
	MUNsChaired          int    `json:"munsChaired"`
	OrganizingExperience string `json:"organizingExperience"`
	Achievements         string `json:"achievements"`

	Committees StringList `json:"committees"`
	Positions  StringList `json:"positions"`

	Status string `json:"status"`

	IDCardURL               string `json:"idCardUrl,omitempty"`
	MUNCertificatesURL      string `json:"munCertificatesUrl,omitempty"`
	ChairingResumeURL       string `json:"chairingResumeUrl,omitempty"`
	IDCardFilename          string `json:"idCardFilename,omitempty"`
	MUNCertificatesFilename string `json:"munCertificatesFilename,omitempty"`
	ChairingResumeFilename  string `json:"chairingResumeFilename,omitempty"`

	// Files is the legacy logical-name to URL mapping used by the JSON
	// submission path. It coexists with the named URL fields.
	Files map[string]string `json:"files,omitempty"`

	SubmittedAt string `json:"submittedAt,omitempty"`
}

// FromFields decodes a stored document into a Registration. Stored numeric
// values may be float64 (JSON) or int; both decode cleanly through the JSON
// round trip.
func FromFields(f store.Fields) (Registration, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return Registration{}, fmt.Errorf("encoding record: %w", err)
	}
	var reg Registration
	if err := json.Unmarshal(data, &reg); err != nil {
		return Registration{}, fmt.Errorf("decoding record: %w", err)
	}
	return reg, nil
}

// ToFields flattens a Registration into store fields. The id is carried by
// the store, not the document body.
func (r Registration) ToFields() (store.Fields, error) {
	r.ID = ""

	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	var f store.Fields
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	delete(f, "id")
	return f, nil
}

// AttachmentURLs collects every non-empty attachment URL across the named
// fields and the legacy files map, deduplicated.
func (r Registration) AttachmentURLs() []string {
	seen := make(map[string]bool)
	var urls []string

	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}

	add(r.IDCardURL)
	add(r.MUNCertificatesURL)
	add(r.ChairingResumeURL)
	for _, u := range r.Files {
		add(u)
	}
	return urls
}

// UploadedFileNames lists the logical names of present attachments in a
// stable order, for export and display.
func (r Registration) UploadedFileNames() []string {
	var names []string
	if r.IDCardURL != "" {
		names = append(names, FileIDCard)
	}
	if r.MUNCertificatesURL != "" {
		names = append(names, FileMUNCertificates)
	}
	if r.ChairingResumeURL != "" {
		names = append(names, FileChairingResume)
	}
	for name := range r.Files {
		found := false
		for _, n := range names {
			if n == name {
				found = true
				break
			}
		}
		if !found {
			names = append(names, name)
		}
	}
	return names
}

// fieldInt reads a numeric field that may arrive as float64, int, or a
// numeric string.
func fieldInt(v any) (int, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		return int(t), true
	case int:
		return t, true
	case int64:
		return int(t), true
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// fieldString renders a field value as text; nil becomes "".
func fieldString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

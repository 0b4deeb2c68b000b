package core

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// exportColumns is the fixed export projection. Order is part of the
// contract; downstream spreadsheets key on it.
var exportColumns = []string{
	"ID",
	"Name",
	"Email",
	"Phone",
	"College",
	"Department",
	"Year",
	"MUNs Participated",
	"MUNs with Awards",
	"Organizing Experience",
	"MUNs Chaired",
	"Committee Preferences",
	"Position Preferences",
	"Status",
	"Submitted At",
	"Files Uploaded",
}

// Export is the projected result set handed to the CSV writer or returned
// as JSON.
type Export struct {
	Headers      []string            `json:"-"`
	Rows         [][]string          `json:"-"`
	Records      []map[string]string `json:"data"`
	ExportedAt   string              `json:"exportedAt"`
	TotalRecords int                 `json:"totalRecords"`
}

// ExportData projects the registration set into the fixed export columns.
// Only the search filter applies here; the list endpoint's finer filters
// deliberately do not narrow exports.
func (s *Service) ExportData(ctx context.Context, search string) (Export, error) {
	regs, err := s.loadAll(ctx)
	if err != nil {
		return Export{}, err
	}

	if search != "" {
		filtered := regs[:0]
		for _, reg := range regs {
			if matchesSearch(reg, search) {
				filtered = append(filtered, reg)
			}
		}
		regs = filtered
	}

	out := Export{
		Headers:      exportColumns,
		Rows:         make([][]string, 0, len(regs)),
		Records:      make([]map[string]string, 0, len(regs)),
		ExportedAt:   s.now().UTC().Format(time.RFC3339),
		TotalRecords: len(regs),
	}

	for _, reg := range regs {
		row := exportRow(reg)
		out.Rows = append(out.Rows, row)

		record := make(map[string]string, len(exportColumns))
		for i, col := range exportColumns {
			record[col] = row[i]
		}
		out.Records = append(out.Records, record)
	}

	return out, nil
}

func exportRow(reg Registration) []string {
	files := "None"
	if names := reg.UploadedFileNames(); len(names) > 0 {
		files = strings.Join(names, ", ")
	}

	return []string{
		reg.ID,
		reg.Name,
		reg.Email,
		reg.Phone,
		reg.College,
		reg.Department,
		strconv.Itoa(reg.Year),
		strconv.Itoa(reg.MUNsParticipated),
		strconv.Itoa(reg.MUNsWithAwards),
		reg.OrganizingExperience,
		strconv.Itoa(reg.MUNsChaired),
		strings.Join(reg.Committees, ", "),
		strings.Join(reg.Positions, ", "),
		reg.Status,
		reg.SubmittedAt,
		files,
	}
}

// CSV renders the export with a header row and standard CSV escaping.
func (e Export) CSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(e.Headers); err != nil {
		return nil, fmt.Errorf("writing csv header: %w", err)
	}
	for _, row := range e.Rows {
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("writing csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing csv: %w", err)
	}
	return buf.Bytes(), nil
}

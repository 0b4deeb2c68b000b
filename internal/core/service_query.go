package core

import (
	"context"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPageLimit = 50
)

// Filters narrows the registration list. Zero values mean "no filter"; all
// present filters apply conjunctively.
type Filters struct {
	Search    string
	Committee string
	Position  string
	Year      string
	Status    string
}

// Pagination describes one page of a filtered result set.
type Pagination struct {
	CurrentPage  int  `json:"currentPage"`
	TotalPages   int  `json:"totalPages"`
	TotalRecords int  `json:"totalRecords"`
	HasNext      bool `json:"hasNext"`
	HasPrev      bool `json:"hasPrev"`
}

// List returns one page of registrations, newest first. Filters apply before
// pagination; out-of-range page numbers yield an empty page with accurate
// totals.
func (s *Service) List(ctx context.Context, filters Filters, page, limit int) ([]Registration, Pagination, error) {
	regs, err := s.loadAll(ctx)
	if err != nil {
		return nil, Pagination{}, err
	}

	filtered := applyFilters(regs, filters)

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}

	total := len(filtered)
	totalPages := (total + limit - 1) / limit

	start := (page - 1) * limit
	end := start + limit
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	pagination := Pagination{
		CurrentPage:  page,
		TotalPages:   totalPages,
		TotalRecords: total,
		HasNext:      (page-1)*limit+limit < total,
		HasPrev:      start > 0,
	}

	return filtered[start:end], pagination, nil
}

// applyFilters applies each present filter conjunctively: search is a
// case-insensitive substring match across name, email, phone, and college;
// committee and position match any entry in the respective list; year and
// status match exactly.
func applyFilters(regs []Registration, f Filters) []Registration {
	out := make([]Registration, 0, len(regs))

	var filterYear int
	var filterYearOK bool
	if f.Year != "" {
		filterYear, filterYearOK = parseYear(f.Year)
	}

	for _, reg := range regs {
		if f.Search != "" && !matchesSearch(reg, f.Search) {
			continue
		}
		if f.Committee != "" && !containsString(reg.Committees, f.Committee) {
			continue
		}
		if f.Position != "" && !containsString(reg.Positions, f.Position) {
			continue
		}
		if f.Year != "" && (!filterYearOK || reg.Year != filterYear) {
			continue
		}
		if f.Status != "" && reg.Status != f.Status {
			continue
		}
		out = append(out, reg)
	}
	return out
}

func matchesSearch(reg Registration, term string) bool {
	term = strings.ToLower(term)
	return strings.Contains(strings.ToLower(reg.Name), term) ||
		strings.Contains(strings.ToLower(reg.Email), term) ||
		strings.Contains(reg.Phone, term) ||
		strings.Contains(strings.ToLower(reg.College), term)
}

func containsString(list StringList, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

// parseYear coerces a year filter value to the record's integer form. An
// unparsable filter matches nothing rather than everything.
func parseYear(raw string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Stats summarizes the registration set for the dashboard.
type Stats struct {
	Total       int            `json:"total"`
	ByStatus    map[string]int `json:"byStatus"`
	ByCommittee map[string]int `json:"byCommittee"`
	ByYear      map[string]int `json:"byYear"`
	LastWeek    int            `json:"lastWeek"`
}

// GetStats computes dashboard statistics over the full registration set.
func (s *Service) GetStats(ctx context.Context) (Stats, error) {
	regs, err := s.loadAll(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		Total:       len(regs),
		ByStatus:    map[string]int{StatusPending: 0, StatusApproved: 0, StatusRejected: 0},
		ByCommittee: make(map[string]int),
		ByYear:      make(map[string]int),
	}

	weekAgo := s.now().Add(-7 * 24 * time.Hour)
	for _, reg := range regs {
		stats.ByStatus[reg.Status]++
		for _, c := range reg.Committees {
			stats.ByCommittee[c]++
		}
		stats.ByYear[strconv.Itoa(reg.Year)]++

		if t, err := time.Parse(time.RFC3339, reg.SubmittedAt); err == nil && t.After(weekAgo) {
			stats.LastWeek++
		}
	}

	return stats, nil
}

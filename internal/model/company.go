package model

import (
	"strings"
	"time"
)

// RunStatus represents the current state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusComplete  RunStatus = "complete"
	RunStatusCancelled RunStatus = "cancelled"
)

// Company is a single company name queued for logo acquisition.
type Company struct {
	Name string `json:"name"`
}

// NewCompany trims raw and reports whether anything usable remains.
func NewCompany(raw string) (Company, bool) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return Company{}, false
	}
	return Company{Name: name}, true
}

// CompaniesFromNames converts raw names into companies, dropping blanks.
// Order is preserved and duplicates are kept.
func CompaniesFromNames(names []string) []Company {
	out := make([]Company, 0, len(names))
	for _, n := range names {
		if c, ok := NewCompany(n); ok {
			out = append(out, c)
		}
	}
	return out
}

// Dedupe removes repeated names, keeping the first occurrence.
func Dedupe(companies []Company) []Company {
	seen := make(map[string]bool, len(companies))
	out := make([]Company, 0, len(companies))
	for _, c := range companies {
		if seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		out = append(out, c)
	}
	return out
}

// Run is one invocation of the pipeline over a list of companies.
type Run struct {
	ID         string     `json:"id"`
	SessionID  string     `json:"session_id"`
	Status     RunStatus  `json:"status"`
	Total      int        `json:"total"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// RunSummary holds the final counts written back to a Run.
type RunSummary struct {
	Status    RunStatus `json:"status"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
}

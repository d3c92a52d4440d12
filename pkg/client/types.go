package client

import "time"

// WorkerStatus mirrors the /status response.
type WorkerStatus struct {
	State     string        `json:"state"` // "NOT RUNNING" | "RUNNING" | "STOPPED"
	PID       int           `json:"pid,omitempty"`
	StartedAt time.Time     `json:"started_at,omitempty"`
	Uptime    time.Duration `json:"uptime,omitempty"`
	LogPath   string        `json:"log_path,omitempty"`
}

// ProgressRecord mirrors one element of the worker's progress log.
type ProgressRecord struct {
	LineNumber         int    `json:"line_number"`
	JournalName        string `json:"journal_name"`
	JournalDisplayName string `json:"journal_display_name,omitempty"`
	Status             string `json:"status"`
	ArticlesCount      int    `json:"articles_count"`
	Message            string `json:"message,omitempty"`
}

// ProgressSummary mirrors the aggregated counters in the /progress response.
type ProgressSummary struct {
	Total         int             `json:"total"`
	Success       int             `json:"success"`
	Skipped       int             `json:"skipped"`
	NotFound      int             `json:"not_found"`
	Failed        int             `json:"failed"`
	TotalArticles int             `json:"total_articles"`
	Latest        *ProgressRecord `json:"latest,omitempty"`
}

// Progress mirrors the /progress response.
type Progress struct {
	Summary ProgressSummary  `json:"summary"`
	Records []ProgressRecord `json:"records,omitempty"`
}

// StopOutcome mirrors the /stop response.
type StopOutcome struct {
	State string `json:"state"` // no_handle | stale | graceful | forced | failed
	PID   int    `json:"pid,omitempty"`
	Polls int    `json:"polls"`
}

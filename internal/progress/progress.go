package progress

import (
	"encoding/json"
	"fmt"
	"os"
)

// Status is the outcome tag the worker writes for each processed journal.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusSkipped  Status = "skipped"
	StatusNotFound Status = "not_found"
	StatusFailed   Status = "failed"
)

// Record is one element of the worker's progress log. The list is an
// externally written, append-only JSON array; this package never writes it.
type Record struct {
	LineNumber         int    `json:"line_number"`
	JournalName        string `json:"journal_name"`
	JournalDisplayName string `json:"journal_display_name,omitempty"`
	Status             Status `json:"status"`
	ArticlesCount      int    `json:"articles_count"`
	Message            string `json:"message,omitempty"`
}

// Summary aggregates the record list per status tag.
type Summary struct {
	Total         int `json:"total"`
	Success       int `json:"success"`
	Skipped       int `json:"skipped"`
	NotFound      int `json:"not_found"`
	Failed        int `json:"failed"`
	TotalArticles int `json:"total_articles"` // summed over success+skipped only

	Latest *Record `json:"latest,omitempty"` // most recent record, nil when empty
}

// Load reads and parses a progress log file. A missing file yields an empty
// record list and no error; malformed JSON is an error the caller reports
// without failing the status command.
func Load(path string) ([]Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read progress log: %w", err)
	}
	return Parse(b)
}

// Parse decodes a JSON array of records.
func Parse(b []byte) ([]Record, error) {
	var recs []Record
	if err := json.Unmarshal(b, &recs); err != nil {
		return nil, fmt.Errorf("parse progress log: %w", err)
	}
	return recs, nil
}

// Summarize computes aggregate counts over the record list. Article counts
// are summed only for success and skipped records; failed and not_found
// journals produced no output files.
func Summarize(recs []Record) Summary {
	s := Summary{Total: len(recs)}
	for i := range recs {
		switch recs[i].Status {
		case StatusSuccess:
			s.Success++
			s.TotalArticles += recs[i].ArticlesCount
		case StatusSkipped:
			s.Skipped++
			s.TotalArticles += recs[i].ArticlesCount
		case StatusNotFound:
			s.NotFound++
		case StatusFailed:
			s.Failed++
		}
	}
	if len(recs) > 0 {
		s.Latest = &recs[len(recs)-1]
	}
	return s
}

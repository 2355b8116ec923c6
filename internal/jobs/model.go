package jobs

import (
	"time"

	"resume-pdf-api/internal/ats"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Job is one generation request and its result.
type Job struct {
	ID           string
	TenantID     string
	TemplateSlug string
	Status       string
	ResumeData   map[string]any
	PdfURL       *string
	AtsScore     *ats.Result
	BulkJobID    *string
	NotifyEmail  *string
	Error        *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsTerminal reports whether the job reached completed or failed.
func (j Job) IsTerminal() bool {
	return IsTerminalStatus(j.Status)
}

// IsTerminalStatus reports whether status is completed or failed.
func IsTerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// Patch describes a status transition and the fields that go with it.
type Patch struct {
	Status   string
	PdfURL   *string
	AtsScore *ats.Result
	Error    *string
}

// Processing returns the patch that starts a run.
func Processing() Patch {
	return Patch{Status: StatusProcessing}
}

// Completed returns the patch that records a successful run.
func Completed(pdfURL string, score ats.Result) Patch {
	return Patch{Status: StatusCompleted, PdfURL: &pdfURL, AtsScore: &score}
}

// Failed returns the patch that records a failed run.
func Failed(message string) Patch {
	return Patch{Status: StatusFailed, Error: &message}
}

// Validate enforces the per-status field rules: a completed job carries a url and
// a score and no error, a failed job carries an error and neither of the others.
func (p Patch) Validate() error {
	switch p.Status {
	case StatusPending, StatusProcessing:
		if p.PdfURL != nil || p.AtsScore != nil || p.Error != nil {
			return ErrInvalidPatch
		}
	case StatusCompleted:
		if p.PdfURL == nil || *p.PdfURL == "" || p.AtsScore == nil || p.Error != nil {
			return ErrInvalidPatch
		}
	case StatusFailed:
		if p.Error == nil || *p.Error == "" || p.PdfURL != nil || p.AtsScore != nil {
			return ErrInvalidPatch
		}
	default:
		return ErrInvalidPatch
	}
	return nil
}

func statusRank(status string) int {
	switch status {
	case StatusPending:
		return 0
	case StatusProcessing:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	default:
		return -1
	}
}

// CanTransition reports whether a job may move from one status to another.
// Status advances one rank at a time, so processing is always recorded before
// a terminal state, and a terminal state is never left.
func CanTransition(from, to string) bool {
	f, t := statusRank(from), statusRank(to)
	if f < 0 || t < 0 {
		return false
	}
	return t == f+1
}

// BulkSummary counts a bulk batch's jobs by status. It is derived on read.
type BulkSummary struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Pending   int `json:"pending"`
}

// Summarize counts jobs by status; pending includes jobs still processing.
func Summarize(list []Job) BulkSummary {
	s := BulkSummary{Total: len(list)}
	for _, j := range list {
		switch j.Status {
		case StatusCompleted:
			s.Completed++
		case StatusFailed:
			s.Failed++
		default:
			s.Pending++
		}
	}
	return s
}

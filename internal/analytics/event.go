package analytics

import "time"

// Event names.
const (
	EventPDFGenerated     = "pdf_generated"
	EventPDFFailed        = "pdf_failed"
	EventBulkJobStarted   = "bulk_job_started"
	EventTemplateUsed     = "template_used"
	EventATSScoreComputed = "ats_score_computed"
	EventWebhookSent      = "webhook_sent"
	EventEmailSent        = "email_sent"
)

// Event is one analytics record.
type Event struct {
	Name         string         `json:"event"`
	TenantID     string         `json:"tenantId"`
	JobID        string         `json:"jobId,omitempty"`
	TemplateSlug string         `json:"templateSlug,omitempty"`
	Meta         map[string]any `json:"meta,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

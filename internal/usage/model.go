package usage

import "time"

// Usage is a tenant's PDF generation count for the current monthly period.
type Usage struct {
	Used     int       `json:"used"`
	Limit    int       `json:"limit"`
	ResetsAt time.Time `json:"resetsAt"`
}

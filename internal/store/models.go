package store

import (
	"time"

	"github.com/erp-dms/dms-assistant/internal/documents"
)

// ReportRecord is a stored creation report awaiting manual reconciliation.
type ReportRecord struct {
	ID         string     `json:"id"` // UUID
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at"` // Nullable
	documents.CreationReport
}

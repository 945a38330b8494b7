// Package state holds one analysis session's workflow state and the pure
// reducer that moves it between phases.
package state

import (
	"time"

	"github.com/erp-dms/dms-assistant/internal/analysis"
	"github.com/erp-dms/dms-assistant/internal/documents"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type State struct {
	Phase              Phase                     `json:"phase"`
	File               *analysis.UploadedFile    `json:"file,omitempty"`
	Classification     *analysis.Classification  `json:"classification,omitempty"`
	SelectedType       string                    `json:"selected_type,omitempty"`
	ShowDropdown       bool                      `json:"show_dropdown"`
	ConfirmationFailed bool                      `json:"confirmation_failed"`
	SummaryItems       []analysis.SummaryItem    `json:"summary_items"`
	LocalQuestions     []analysis.LocalQuestion  `json:"local_questions"`
	Messages           []ChatMessage             `json:"messages"`
	Document           *documents.Document       `json:"document,omitempty"`
	Report             *documents.CreationReport `json:"report,omitempty"`
	Error              string                    `json:"error,omitempty"`
	Notice             string                    `json:"notice,omitempty"`
}

func (s State) IsLoading() bool {
	return s.Phase.Busy()
}

// Items is the combined list written on document creation: summary items
// first, then local questions not already covered by a summary item.
func (s State) Items() []analysis.SummaryItem {
	locals := make([]analysis.SummaryItem, 0, len(s.LocalQuestions))
	for _, lq := range s.LocalQuestions {
		locals = append(locals, lq.SummaryItem)
	}
	return MergeSummary(s.SummaryItems, locals)
}

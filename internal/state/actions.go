package state

import (
	"github.com/erp-dms/dms-assistant/internal/analysis"
	"github.com/erp-dms/dms-assistant/internal/documents"
)

// Action is the closed set of state changes. Only types in this package
// implement it.
type Action interface {
	isAction()
}

type UploadStarted struct {
	File analysis.UploadedFile
}

// ClassificationReceived carries the parsed classification, or nil when the
// reply could not be parsed and the user must pick a category by hand.
type ClassificationReceived struct {
	Classification *analysis.Classification
}

type TypeConfirmed struct {
	Category string
}

type ConfirmationFailed struct {
	Notice string
}

type SummaryRequested struct {
	Category string
}

// SummaryGenerated ends a summary request and clears the items of any
// earlier one; the answers follow as AppendAnalysisSummary.
type SummaryGenerated struct {
	Notice string
}

// AppendAnalysisSummary merges items into the summary, skipping questions
// already present.
type AppendAnalysisSummary struct {
	Items []analysis.SummaryItem
}

type RemoveSummaryItem struct {
	Question string
}

type LocalQuestionAdded struct {
	Question analysis.LocalQuestion
}

type MessageAdded struct {
	Message ChatMessage
}

type CreateDocumentStarted struct{}

type DocumentSaved struct {
	Document *documents.Document
	Report   *documents.CreationReport
}

type Failed struct {
	Message string
	Report  *documents.CreationReport
}

type NoticeRaised struct {
	Notice string
}

type Reset struct{}

func (UploadStarted) isAction()          {}
func (ClassificationReceived) isAction() {}
func (TypeConfirmed) isAction()          {}
func (ConfirmationFailed) isAction()     {}
func (SummaryRequested) isAction()       {}
func (SummaryGenerated) isAction()       {}
func (AppendAnalysisSummary) isAction()  {}
func (RemoveSummaryItem) isAction()      {}
func (LocalQuestionAdded) isAction()     {}
func (MessageAdded) isAction()           {}
func (CreateDocumentStarted) isAction()  {}
func (DocumentSaved) isAction()          {}
func (Failed) isAction()                 {}
func (NoticeRaised) isAction()           {}
func (Reset) isAction()                  {}

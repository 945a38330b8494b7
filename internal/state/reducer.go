package state

import (
	"errors"
	"fmt"
	"slices"

	"github.com/erp-dms/dms-assistant/internal/analysis"
)

var ErrInvalidTransition = errors.New("invalid state transition")

// Reduce returns the state that results from applying a to s. It never
// mutates s; slices in the result are fresh whenever they change.
func Reduce(s State, a Action) (State, error) {
	switch a := a.(type) {
	case UploadStarted:
		if err := check(s, a, Uploading); err != nil {
			return s, err
		}
		file := a.File
		return State{Phase: Uploading, File: &file}, nil

	case ClassificationReceived:
		if a.Classification == nil {
			if err := check(s, a, AwaitingCategoryConfirmation); err != nil {
				return s, err
			}
			s.Phase = AwaitingCategoryConfirmation
			s.Classification = nil
			s.ShowDropdown = true
			s.ConfirmationFailed = true
			s.Notice = "Could not classify the document. Please select a category."
			return s, nil
		}
		if err := check(s, a, Classified); err != nil {
			return s, err
		}
		c := *a.Classification
		s.Phase = Classified
		s.Classification = &c
		s.ShowDropdown = false
		s.ConfirmationFailed = false
		return s, nil

	case TypeConfirmed:
		if err := check(s, a, Classified); err != nil {
			return s, err
		}
		if a.Category != s.SelectedType {
			s.SummaryItems = nil
		}
		s.Phase = Classified
		s.SelectedType = a.Category
		s.ShowDropdown = false
		s.ConfirmationFailed = false
		s.Error = ""
		s.Notice = ""
		return s, nil

	case ConfirmationFailed:
		if err := check(s, a, AwaitingCategoryConfirmation); err != nil {
			return s, err
		}
		s.Phase = AwaitingCategoryConfirmation
		s.SelectedType = ""
		s.SummaryItems = nil
		s.ShowDropdown = true
		s.ConfirmationFailed = true
		s.Notice = a.Notice
		return s, nil

	case SummaryRequested:
		if err := check(s, a, GeneratingSummary); err != nil {
			return s, err
		}
		s.Phase = GeneratingSummary
		s.SelectedType = a.Category
		s.ShowDropdown = false
		s.Error = ""
		s.Notice = ""
		return s, nil

	case SummaryGenerated:
		if err := check(s, a, SummaryReady); err != nil {
			return s, err
		}
		s.Phase = SummaryReady
		s.SummaryItems = nil
		s.Notice = a.Notice
		return s, nil

	case AppendAnalysisSummary:
		s.SummaryItems = MergeSummary(s.SummaryItems, a.Items)
		return s, nil

	case RemoveSummaryItem:
		key := analysis.NormalizeQuestion(a.Question)
		s.SummaryItems = slices.DeleteFunc(slices.Clone(s.SummaryItems), func(it analysis.SummaryItem) bool {
			return it.Key() == key
		})
		s.LocalQuestions = slices.DeleteFunc(slices.Clone(s.LocalQuestions), func(lq analysis.LocalQuestion) bool {
			return lq.Key() == key
		})
		return s, nil

	case LocalQuestionAdded:
		// Same rule as AppendAnalysisSummary, checked against server and local items.
		items := s.Items()
		if len(MergeSummary(items, []analysis.SummaryItem{a.Question.SummaryItem})) == len(items) {
			return s, nil
		}
		s.LocalQuestions = append(slices.Clip(s.LocalQuestions), a.Question)
		return s, nil

	case MessageAdded:
		s.Messages = append(slices.Clip(s.Messages), a.Message)
		return s, nil

	case CreateDocumentStarted:
		if err := check(s, a, CreatingDocument); err != nil {
			return s, err
		}
		s.Phase = CreatingDocument
		s.Document = nil
		s.Report = nil
		s.Error = ""
		s.Notice = ""
		return s, nil

	case DocumentSaved:
		if err := check(s, a, DocumentCreated); err != nil {
			return s, err
		}
		s.Phase = DocumentCreated
		s.Document = a.Document
		s.Report = a.Report
		return s, nil

	case Failed:
		s.Phase = Error
		s.Error = a.Message
		if a.Report != nil {
			s.Report = a.Report
		}
		return s, nil

	case NoticeRaised:
		s.Notice = a.Notice
		return s, nil

	case Reset:
		return State{}, nil

	default:
		return s, fmt.Errorf("unknown action %T", a)
	}
}

func check(s State, a Action, to Phase) error {
	if !CanTransition(s.Phase, to) {
		return fmt.Errorf("%w: %T from %s to %s", ErrInvalidTransition, a, s.Phase, to)
	}
	return nil
}

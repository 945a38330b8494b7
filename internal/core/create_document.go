package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/erp-dms/dms-assistant/internal/analysis"
	"github.com/erp-dms/dms-assistant/internal/catalog"
	"github.com/erp-dms/dms-assistant/internal/documents"
	"github.com/erp-dms/dms-assistant/internal/rpc"
	"github.com/erp-dms/dms-assistant/internal/state"
)

// CreateDocument persists the session's summary as a new document:
//
//  1. save the master row with RefSeqNo -1 and read the assigned key from
//     the status message
//  2. write one question row per item
//  3. write one value row per item, serial numbers 1..n
//  4. re-read the master row
//
// Writes are sequential and nothing is rolled back. Once started the sequence
// runs to completion or failure even if ctx is cancelled. The state's Report
// says how far it got; reports with committed rows are also handed to the
// ReportRecorder.
func (s *AnalysisService) CreateDocument(ctx context.Context, id, userName string) (state.State, error) {
	sess, err := s.Session(id, userName)
	if err != nil {
		return state.State{}, err
	}
	cur := sess.Store.State()
	if cur.IsLoading() {
		return cur, ErrBusy
	}
	if cur.SelectedType == "" {
		return cur, fmt.Errorf("%w: %s", ErrValidation, msgCategoryMissing)
	}
	if len(cur.Items()) == 0 {
		return cur, fmt.Errorf("%w: nothing to save, the summary is empty", ErrValidation)
	}

	cur, err = s.begin(sess, state.CreateDocumentStarted{})
	if err != nil {
		return sess.Store.State(), err
	}
	ctx = context.WithoutCancel(ctx)
	category := cur.SelectedType
	items := cur.Items()
	locals := make(map[string]analysis.LocalQuestion, len(cur.LocalQuestions))
	for _, lq := range cur.LocalQuestions {
		locals[lq.Key()] = lq
	}

	report := &documents.CreationReport{
		Category: category,
		UserName: userName,
		Total:    len(items),
	}
	log := s.log.With(zap.String("session", id), zap.String("category", category))

	fail := func(step documents.Step, err error) (state.State, error) {
		report.FailedStep = step
		report.Err = err.Error()
		log.Error("document creation failed",
			zap.String("step", string(step)),
			zap.Int64("refSeqNo", report.RefSeqNo),
			zap.Int("questionsWritten", report.QuestionsWritten),
			zap.Int("valuesWritten", report.ValuesWritten),
			zap.Error(err))
		if report.Partial() && s.reports != nil {
			if rerr := s.reports.SaveCreationReport(ctx, *report); rerr != nil {
				log.Error("persist creation report failed", zap.Error(rerr))
			}
		}
		return s.fail(sess, msgCreateFailed, report), nil
	}

	master := documents.Document{RelatedCategory: category}
	if cur.File != nil {
		master.DocumentName = cur.File.Name
	}
	msg, err := s.docs.SaveMaster(ctx, userName, master)
	if err != nil {
		report.MasterUncertain = outcomeUnknown(err)
		return fail(documents.StepSaveMaster, err)
	}
	report.MasterSaved = true

	refSeqNo, err := documents.ParseRefSeqNo(msg)
	if err != nil {
		return fail(documents.StepParseRefSeqNo, err)
	}
	report.RefSeqNo = refSeqNo

	for _, it := range items {
		q := catalog.AIQuestion{CategoryName: category, QuestionText: it.Question}
		if lq, ok := locals[it.Key()]; ok {
			q.RefKey = lq.RefKey
			q.IsMandatory = lq.IsMandatory
		} else if it.Label != it.Question {
			q.RefKey = it.Label
		}
		if _, err := s.catalog.SaveQuestion(ctx, userName, q); err != nil {
			return fail(documents.StepSaveQuestions, err)
		}
		report.QuestionsWritten++
	}

	for i, it := range items {
		v := documents.DocumentValue{
			RefSeqNo:     refSeqNo,
			SerialNo:     i + 1,
			CategoryName: category,
			RefKey:       it.Label,
			RefValue:     it.Text,
		}
		if _, err := s.docs.SaveValue(ctx, userName, v); err != nil {
			return fail(documents.StepSaveValues, err)
		}
		report.ValuesWritten++
	}

	doc, err := s.docs.Master(ctx, refSeqNo)
	if err != nil {
		return fail(documents.StepConfirmMaster, err)
	}
	if doc == nil {
		return fail(documents.StepConfirmMaster, fmt.Errorf("%w: master %d not found after save", documents.ErrUnexpectedResponse, refSeqNo))
	}
	report.Confirmed = true

	log.Info("document created", zap.Int64("refSeqNo", refSeqNo), zap.Int("values", report.ValuesWritten))
	return sess.Store.Dispatch(state.DocumentSaved{Document: doc, Report: report})
}

// outcomeUnknown reports whether a failed write may still have been applied
// by the server, i.e. there was no usable reply or the reply was a 5xx. A 4xx
// rejection, or an error raised before the call, wrote nothing.
func outcomeUnknown(err error) bool {
	var te *rpc.TransportError
	if !errors.As(err, &te) {
		return false
	}
	return te.StatusCode < http.StatusBadRequest || te.StatusCode >= http.StatusInternalServerError
}

package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/erp-dms/dms-assistant/internal/analysis"
	"github.com/erp-dms/dms-assistant/internal/catalog"
	"github.com/erp-dms/dms-assistant/internal/documents"
	"github.com/erp-dms/dms-assistant/internal/state"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrBusy             = errors.New("another operation is in progress")
	ErrSessionNotFound  = errors.New("analysis session not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrDocumentNotFound = errors.New("document not found")
)

// User-facing failure messages written into session state.
const (
	msgAnalyzeFailed   = "Failed to analyze the document."
	msgCategoriesFail  = "Failed to load document categories."
	msgSummaryFailed   = "Failed to generate the analysis summary."
	msgAnswerFailed    = "Failed to get an answer. Please try again."
	msgCreateFailed    = "Failed to create document."
	msgNoQuestionsFmt  = "No AI questions are configured for %s."
	msgNotFoundFmt     = "Category %q was not found. Please select a category."
	msgCategoryMissing = "Please select a document category first."
)

// ReportRecorder keeps creation reports that left committed rows behind.
type ReportRecorder interface {
	SaveCreationReport(ctx context.Context, r documents.CreationReport) error
}

// AnalysisService drives the upload, classify, summarise and create workflow.
// Each operation runs its remote calls one after another and records the
// outcome in the session's state; the returned error is reserved for problems
// detected before any call was made.
type AnalysisService struct {
	catalog  *catalog.Service
	docs     *documents.Service
	analyzer analysis.Analyzer
	reports  ReportRecorder
	sessions *sessionRepository
	log      *zap.Logger
	now      func() time.Time
}

func NewAnalysisService(cat *catalog.Service, docs *documents.Service, analyzer analysis.Analyzer, reports ReportRecorder, sessionTTL time.Duration, log *zap.Logger) *AnalysisService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AnalysisService{
		catalog:  cat,
		docs:     docs,
		analyzer: analyzer,
		reports:  reports,
		sessions: newSessionRepository(sessionTTL),
		log:      log.With(zap.String("module", "analysis")),
		now:      time.Now,
	}
}

func (s *AnalysisService) NewSession(userName string) *Session {
	sess := s.sessions.create(userName, s.now())
	log := s.log.With(zap.String("session", sess.ID), zap.String("user", userName))
	sess.unsubscribe = sess.Store.Subscribe(phaseLogger(log))
	log.Info("analysis session created")
	return sess
}

// phaseLogger logs every phase change of one session. Listeners may run
// concurrently, so the last seen phase is kept atomically.
func phaseLogger(log *zap.Logger) state.Listener {
	var last atomic.Int64
	return func(st state.State) {
		prev := state.Phase(last.Swap(int64(st.Phase)))
		if prev == st.Phase {
			return
		}
		fields := []zap.Field{zap.Stringer("from", prev), zap.Stringer("to", st.Phase)}
		if st.Error != "" {
			fields = append(fields, zap.String("error", st.Error))
		}
		log.Debug("analysis phase changed", fields...)
	}
}

// Session returns the caller's session. Sessions owned by another user are
// reported as missing.
func (s *AnalysisService) Session(id, userName string) (*Session, error) {
	sess, ok := s.sessions.get(id)
	if !ok || sess.UserName != userName {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *AnalysisService) State(id, userName string) (state.State, error) {
	sess, err := s.Session(id, userName)
	if err != nil {
		return state.State{}, err
	}
	return sess.Store.State(), nil
}

func (s *AnalysisService) CloseSession(id, userName string) error {
	if _, err := s.Session(id, userName); err != nil {
		return err
	}
	s.sessions.delete(id)
	return nil
}

func (s *AnalysisService) Reset(id, userName string) (state.State, error) {
	sess, err := s.Session(id, userName)
	if err != nil {
		return state.State{}, err
	}
	if sess.Store.State().IsLoading() {
		return sess.Store.State(), ErrBusy
	}
	return sess.Store.Dispatch(state.Reset{})
}

// UploadFile sends the file with the classification prompt. A reply that
// cannot be parsed leaves the session waiting for a manual category choice.
func (s *AnalysisService) UploadFile(ctx context.Context, id, userName string, file analysis.UploadedFile) (state.State, error) {
	sess, err := s.Session(id, userName)
	if err != nil {
		return state.State{}, err
	}
	if len(file.Data) == 0 {
		return sess.Store.State(), fmt.Errorf("%w: file is empty", ErrValidation)
	}
	if _, err := s.begin(sess, state.UploadStarted{File: file}); err != nil {
		return sess.Store.State(), err
	}
	log := s.log.With(zap.String("session", id), zap.String("file", file.Name), zap.String("mime", file.MIMEType))

	reply, err := s.analyzer.Ask(ctx, file, analysis.ClassificationPrompt)
	if err != nil {
		log.Error("classification request failed", zap.Error(err))
		return s.fail(sess, msgAnalyzeFailed, nil), nil
	}

	c, err := analysis.ParseClassification(reply)
	if err != nil {
		log.Warn("classification reply unparseable", zap.Error(err))
		return sess.Store.Dispatch(state.ClassificationReceived{})
	}
	log.Info("document classified", zap.String("documentType", c.DocumentType))
	if c.TranslatedResponse != "" {
		s.addMessage(sess, state.RoleAssistant, c.TranslatedResponse)
	}
	return sess.Store.Dispatch(state.ClassificationReceived{Classification: c})
}

// ConfirmDocumentType matches candidate, or the classified type when
// candidate is empty, against the known categories. An exact name match
// always wins over a tag match.
func (s *AnalysisService) ConfirmDocumentType(ctx context.Context, id, userName, candidate string) (state.State, error) {
	sess, err := s.Session(id, userName)
	if err != nil {
		return state.State{}, err
	}
	cur := sess.Store.State()
	if cur.IsLoading() {
		return cur, ErrBusy
	}
	if cur.File == nil {
		return cur, fmt.Errorf("%w: no file uploaded", ErrValidation)
	}
	if strings.TrimSpace(candidate) == "" && cur.Classification != nil {
		candidate = cur.Classification.DocumentType
	}
	if strings.TrimSpace(candidate) == "" {
		return cur, fmt.Errorf("%w: no document type to confirm", ErrValidation)
	}

	categories, err := s.catalog.Categories(ctx)
	if err != nil {
		s.log.Error("load categories failed", zap.String("session", id), zap.Error(err))
		return s.fail(sess, msgCategoriesFail, nil), nil
	}

	m, ok := analysis.MatchCategory(categories, candidate)
	if !ok {
		s.log.Info("category not matched", zap.String("session", id), zap.String("candidate", candidate))
		return sess.Store.Dispatch(state.ConfirmationFailed{Notice: fmt.Sprintf(msgNotFoundFmt, strings.TrimSpace(candidate))})
	}
	s.log.Info("category confirmed",
		zap.String("session", id),
		zap.String("candidate", candidate),
		zap.String("category", m.Category.Name),
		zap.Stringer("match", m.Kind))
	return sess.Store.Dispatch(state.TypeConfirmed{Category: m.Category.Name})
}

// SelectCategory is the manual choice offered after confirmation fails.
func (s *AnalysisService) SelectCategory(ctx context.Context, id, userName, name string) (state.State, error) {
	sess, err := s.Session(id, userName)
	if err != nil {
		return state.State{}, err
	}
	cur := sess.Store.State()
	if cur.IsLoading() {
		return cur, ErrBusy
	}
	if strings.TrimSpace(name) == "" {
		return cur, fmt.Errorf("%w: category is required", ErrValidation)
	}
	if cur.File == nil {
		return cur, fmt.Errorf("%w: no file uploaded", ErrValidation)
	}

	cat, err := s.catalog.Category(ctx, strings.TrimSpace(name))
	if err != nil {
		s.log.Error("load category failed", zap.String("session", id), zap.Error(err))
		return s.fail(sess, msgCategoriesFail, nil), nil
	}
	if cat == nil {
		return cur, fmt.Errorf("%w: %s", ErrCategoryNotFound, name)
	}
	return sess.Store.Dispatch(state.TypeConfirmed{Category: cat.Name})
}

// FetchQuestionsAndGenerateSummary asks every question template of the
// category in one request and pairs the reply lines with the questions by
// position.
func (s *AnalysisService) FetchQuestionsAndGenerateSummary(ctx context.Context, id, userName, category string) (state.State, error) {
	sess, err := s.Session(id, userName)
	if err != nil {
		return state.State{}, err
	}
	cur := sess.Store.State()
	if cur.IsLoading() {
		return cur, ErrBusy
	}
	category = strings.TrimSpace(category)
	if category == "" {
		category = cur.SelectedType
	}
	if category == "" {
		return cur, fmt.Errorf("%w: %s", ErrValidation, msgCategoryMissing)
	}
	if cur.File == nil {
		return cur, fmt.Errorf("%w: no file uploaded", ErrValidation)
	}
	if _, err := s.begin(sess, state.SummaryRequested{Category: category}); err != nil {
		return sess.Store.State(), err
	}
	log := s.log.With(zap.String("session", id), zap.String("category", category))

	questions, err := s.catalog.Questions(ctx, category)
	if err != nil {
		log.Error("load questions failed", zap.Error(err))
		return s.fail(sess, msgSummaryFailed, nil), nil
	}
	set := analysis.NewQuestionSet(questions)
	if len(set.Questions) == 0 {
		log.Warn("no questions configured")
		return sess.Store.Dispatch(state.SummaryGenerated{Notice: fmt.Sprintf(msgNoQuestionsFmt, category)})
	}

	reply, err := s.analyzer.Ask(ctx, *cur.File, set.Prompt())
	if err != nil {
		log.Error("summary request failed", zap.Error(err))
		return s.fail(sess, msgSummaryFailed, nil), nil
	}

	items := set.PairAnswers(reply, func(q string) {
		log.Warn("question has no reference key, using question as label", zap.String("question", q))
	})
	if len(items) != len(set.Questions) {
		log.Warn("answer count does not match question count",
			zap.Int("questions", len(set.Questions)),
			zap.Int("answers", len(analysis.AnswerLines(reply))))
	}
	if _, err := sess.Store.Dispatch(state.SummaryGenerated{}); err != nil {
		return sess.Store.State(), err
	}
	return sess.Store.Dispatch(state.AppendAnalysisSummary{Items: items})
}

// AskQuestion is a free-form chat turn about the uploaded file. A failed
// answer is reported as a notice and does not leave the current phase.
func (s *AnalysisService) AskQuestion(ctx context.Context, id, userName, question string) (state.State, error) {
	sess, err := s.Session(id, userName)
	if err != nil {
		return state.State{}, err
	}
	cur := sess.Store.State()
	if cur.IsLoading() {
		return cur, ErrBusy
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return cur, fmt.Errorf("%w: question is required", ErrValidation)
	}
	if cur.File == nil {
		return cur, fmt.Errorf("%w: no file uploaded", ErrValidation)
	}

	s.addMessage(sess, state.RoleUser, question)
	answer, err := s.analyzer.Ask(ctx, *cur.File, question)
	if err != nil {
		s.log.Error("chat request failed", zap.String("session", id), zap.Error(err))
		return sess.Store.Dispatch(state.NoticeRaised{Notice: msgAnswerFailed})
	}
	return s.addMessage(sess, state.RoleAssistant, strings.TrimSpace(answer)), nil
}

// AddLocalQuestion keeps a question/answer pair picked from the chat. Its
// label is the reference key when one is given.
func (s *AnalysisService) AddLocalQuestion(id, userName string, lq analysis.LocalQuestion) (state.State, error) {
	sess, err := s.Session(id, userName)
	if err != nil {
		return state.State{}, err
	}
	lq.Question = strings.TrimSpace(lq.Question)
	lq.Text = strings.TrimSpace(lq.Text)
	lq.RefKey = strings.TrimSpace(lq.RefKey)
	if lq.Question == "" || lq.Text == "" {
		return sess.Store.State(), fmt.Errorf("%w: question and answer are required", ErrValidation)
	}
	lq.Label = lq.RefKey
	if lq.Label == "" {
		lq.Label = lq.Question
	}
	return sess.Store.Dispatch(state.LocalQuestionAdded{Question: lq})
}

func (s *AnalysisService) RemoveSummaryItem(id, userName, question string) (state.State, error) {
	sess, err := s.Session(id, userName)
	if err != nil {
		return state.State{}, err
	}
	if strings.TrimSpace(question) == "" {
		return sess.Store.State(), fmt.Errorf("%w: question is required", ErrValidation)
	}
	return sess.Store.Dispatch(state.RemoveSummaryItem{Question: question})
}

func (s *AnalysisService) addMessage(sess *Session, role, content string) state.State {
	st, _ := sess.Store.Dispatch(state.MessageAdded{Message: state.ChatMessage{
		Role:      role,
		Content:   content,
		Timestamp: s.now(),
	}})
	return st
}

// begin moves the session into a busy phase. A rejected transition while
// another operation is running is reported as ErrBusy.
func (s *AnalysisService) begin(sess *Session, a state.Action) (state.State, error) {
	st, err := sess.Store.Dispatch(a)
	if err != nil {
		if sess.Store.State().IsLoading() {
			return st, ErrBusy
		}
		return st, err
	}
	return st, nil
}

func (s *AnalysisService) fail(sess *Session, message string, report *documents.CreationReport) state.State {
	st, _ := sess.Store.Dispatch(state.Failed{Message: message, Report: report})
	return st
}

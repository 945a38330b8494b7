package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/erp-dms/dms-assistant/internal/analysis"
	"github.com/erp-dms/dms-assistant/internal/state"
)

const maxUploadBytes = 20 << 20

// AnalysisResponse is a session id plus its current workflow state.
type AnalysisResponse struct {
	ID string `json:"id"`
	state.State
}

func (h *APIHandler) writeState(w http.ResponseWriter, r *http.Request, status int, st state.State, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, status, AnalysisResponse{ID: chi.URLParam(r, "id"), State: st})
}

// CreateAnalysisHandler starts a session from a multipart upload (field
// "file") and classifies it.
func (h *APIHandler) CreateAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Invalid upload: "+err.Error(), http.StatusBadRequest)
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file is required", http.StatusBadRequest)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		http.Error(w, "Failed to read upload", http.StatusBadRequest)
		return
	}
	if len(data) == 0 {
		http.Error(w, "file is empty", http.StatusBadRequest)
		return
	}

	user := userName(r)
	sess := h.analysis.NewSession(user)
	st, err := h.analysis.UploadFile(r.Context(), sess.ID, user, analysis.NewUploadedFile(hdr.Filename, data))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, AnalysisResponse{ID: sess.ID, State: st})
}

func (h *APIHandler) GetAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	st, err := h.analysis.State(chi.URLParam(r, "id"), userName(r))
	h.writeState(w, r, http.StatusOK, st, err)
}

type ConfirmRequest struct {
	DocumentType string `json:"document_type"`
}

// ConfirmDocumentTypeHandler confirms the classified type, or document_type
// when given.
func (h *APIHandler) ConfirmDocumentTypeHandler(w http.ResponseWriter, r *http.Request) {
	var req ConfirmRequest
	if !h.decode(w, r, &req) {
		return
	}
	st, err := h.analysis.ConfirmDocumentType(r.Context(), chi.URLParam(r, "id"), userName(r), req.DocumentType)
	h.writeState(w, r, http.StatusOK, st, err)
}

type CategoryRequest struct {
	Category string `json:"category" validate:"required"`
}

func (h *APIHandler) SelectCategoryHandler(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if !h.decode(w, r, &req) {
		return
	}
	st, err := h.analysis.SelectCategory(r.Context(), chi.URLParam(r, "id"), userName(r), req.Category)
	h.writeState(w, r, http.StatusOK, st, err)
}

type SummaryRequest struct {
	Category string `json:"category"`
}

func (h *APIHandler) GenerateSummaryHandler(w http.ResponseWriter, r *http.Request) {
	var req SummaryRequest
	if !h.decode(w, r, &req) {
		return
	}
	st, err := h.analysis.FetchQuestionsAndGenerateSummary(r.Context(), chi.URLParam(r, "id"), userName(r), req.Category)
	h.writeState(w, r, http.StatusOK, st, err)
}

type ChatRequest struct {
	Question string `json:"question" validate:"required"`
}

func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !h.decode(w, r, &req) {
		return
	}
	st, err := h.analysis.AskQuestion(r.Context(), chi.URLParam(r, "id"), userName(r), req.Question)
	h.writeState(w, r, http.StatusOK, st, err)
}

type LocalQuestionRequest struct {
	Question    string `json:"question" validate:"required"`
	Answer      string `json:"answer" validate:"required"`
	RefKey      string `json:"ref_key"`
	IsMandatory bool   `json:"is_mandatory"`
}

func (h *APIHandler) AddLocalQuestionHandler(w http.ResponseWriter, r *http.Request) {
	var req LocalQuestionRequest
	if !h.decode(w, r, &req) {
		return
	}
	st, err := h.analysis.AddLocalQuestion(chi.URLParam(r, "id"), userName(r), analysis.LocalQuestion{
		SummaryItem: analysis.SummaryItem{Question: req.Question, Text: req.Answer},
		RefKey:      req.RefKey,
		IsMandatory: req.IsMandatory,
	})
	h.writeState(w, r, http.StatusOK, st, err)
}

// RemoveSummaryItemHandler takes the question text from ?question=.
func (h *APIHandler) RemoveSummaryItemHandler(w http.ResponseWriter, r *http.Request) {
	st, err := h.analysis.RemoveSummaryItem(chi.URLParam(r, "id"), userName(r), r.URL.Query().Get("question"))
	h.writeState(w, r, http.StatusOK, st, err)
}

func (h *APIHandler) CreateDocumentHandler(w http.ResponseWriter, r *http.Request) {
	st, err := h.analysis.CreateDocument(r.Context(), chi.URLParam(r, "id"), userName(r))
	h.writeState(w, r, http.StatusOK, st, err)
}

func (h *APIHandler) ResetAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	st, err := h.analysis.Reset(chi.URLParam(r, "id"), userName(r))
	h.writeState(w, r, http.StatusOK, st, err)
}

func (h *APIHandler) DeleteAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.analysis.CloseSession(chi.URLParam(r, "id"), userName(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

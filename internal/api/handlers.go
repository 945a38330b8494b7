package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/erp-dms/dms-assistant/internal/auth"
	"github.com/erp-dms/dms-assistant/internal/catalog"
	"github.com/erp-dms/dms-assistant/internal/core"
	"github.com/erp-dms/dms-assistant/internal/documents"
	"github.com/erp-dms/dms-assistant/internal/query"
	"github.com/erp-dms/dms-assistant/internal/rpc"
	"github.com/erp-dms/dms-assistant/internal/state"
	"github.com/erp-dms/dms-assistant/internal/store"
)

type ctxKey string

const userNameKey ctxKey = "userName"

// ReportLedger lists and closes creation reports kept for reconciliation.
type ReportLedger interface {
	CreationReports(ctx context.Context, includeResolved bool) ([]store.ReportRecord, error)
	ResolveCreationReport(ctx context.Context, id string) error
}

type APIHandler struct {
	analysis  *core.AnalysisService
	documents *core.DocumentsService
	catalog   *catalog.Service
	sessions  *auth.SessionService
	reports   ReportLedger
	validate  *validator.Validate
	log       *zap.Logger
}

func NewAPIHandler(as *core.AnalysisService, ds *core.DocumentsService, cs *catalog.Service, ss *auth.SessionService, reports ReportLedger, log *zap.Logger) *APIHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &APIHandler{
		analysis:  as,
		documents: ds,
		catalog:   cs,
		sessions:  ss,
		reports:   reports,
		validate:  validator.New(),
		log:       log.With(zap.String("module", "api")),
	}
}

func userName(r *http.Request) string {
	name, _ := r.Context().Value(userNameKey).(string)
	return name
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		user, err := auth.ValidateJWT(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userNameKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects users the ERP does not report as administrators.
func (h *APIHandler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := h.sessions.UserData(r.Context(), userName(r))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if !u.IsAdmin {
			http.Error(w, "Administrator rights are required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decode reads and validates a JSON body. An empty body decodes as the zero
// value before validation.
func (h *APIHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		http.Error(w, "Invalid request: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// writeError maps service errors to a status and a short message.
func (h *APIHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var te *rpc.TransportError
	switch {
	case errors.Is(err, core.ErrSessionNotFound),
		errors.Is(err, core.ErrCategoryNotFound),
		errors.Is(err, core.ErrDocumentNotFound),
		errors.Is(err, store.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, core.ErrValidation),
		errors.Is(err, catalog.ErrInvalidRecord),
		errors.Is(err, documents.ErrInvalidRecord),
		errors.Is(err, query.ErrInvalidColumn):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, core.ErrBusy), errors.Is(err, state.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &te):
		h.log.Error("remote call failed", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "The ERP server could not be reached", http.StatusBadGateway)
	default:
		h.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type SessionRequest struct {
	RememberMe bool `json:"remember_me"`
}

func (h *APIHandler) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if !h.decode(w, r, &req) {
		return
	}
	u, err := h.sessions.Login(r.Context(), userName(r), req.RememberMe)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *APIHandler) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context(), userName(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) PermissionsHandler(w http.ResponseWriter, r *http.Request) {
	perms, err := h.sessions.Permissions(r.Context(), userName(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, perms)
}

func (h *APIHandler) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	rows, err := h.documents.Dashboard(r.Context(), userName(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// DashboardCategoriesHandler returns the caller's document count per category.
func (h *APIHandler) DashboardCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	counts, err := h.documents.CategoryBreakdown(r.Context(), userName(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// Categories

// ListCategoriesHandler returns every category, or with ?allowed=true only
// those the user may file documents under.
func (h *APIHandler) ListCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	var (
		cats []catalog.Category
		err  error
	)
	if allowed, _ := strconv.ParseBool(r.URL.Query().Get("allowed")); allowed {
		cats, err = h.documents.AllowedCategories(r.Context(), userName(r))
	} else {
		cats, err = h.catalog.Categories(r.Context())
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (h *APIHandler) SaveCategoryHandler(w http.ResponseWriter, r *http.Request) {
	var req catalog.Category
	if !h.decode(w, r, &req) {
		return
	}
	msg, err := h.catalog.SaveCategory(r.Context(), userName(r), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func (h *APIHandler) DeleteCategoryHandler(w http.ResponseWriter, r *http.Request) {
	msg, err := h.catalog.DeleteCategory(r.Context(), userName(r), chi.URLParam(r, "name"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func (h *APIHandler) ListQuestionsHandler(w http.ResponseWriter, r *http.Request) {
	qs, err := h.catalog.Questions(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qs)
}

type QuestionRequest struct {
	Question    string `json:"question" validate:"required"`
	RefKey      string `json:"ref_key"`
	IsMandatory bool   `json:"is_mandatory"`
}

func (h *APIHandler) SaveQuestionHandler(w http.ResponseWriter, r *http.Request) {
	var req QuestionRequest
	if !h.decode(w, r, &req) {
		return
	}
	msg, err := h.catalog.SaveQuestion(r.Context(), userName(r), catalog.AIQuestion{
		CategoryName: chi.URLParam(r, "name"),
		QuestionText: req.Question,
		RefKey:       req.RefKey,
		IsMandatory:  req.IsMandatory,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

// DeleteQuestionHandler takes the question text from ?question=.
func (h *APIHandler) DeleteQuestionHandler(w http.ResponseWriter, r *http.Request) {
	question := r.URL.Query().Get("question")
	if strings.TrimSpace(question) == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}
	msg, err := h.catalog.DeleteQuestion(r.Context(), userName(r), chi.URLParam(r, "name"), question)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func (h *APIHandler) ListModulesHandler(w http.ResponseWriter, r *http.Request) {
	mods, err := h.catalog.Modules(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mods)
}

// Documents

func (h *APIHandler) ListDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	rows, err := h.documents.FetchDocsMaster(r.Context(), userName(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

type DocumentResponse struct {
	*documents.Document
	Values []documents.DocumentValue `json:"values"`
}

func (h *APIHandler) GetDocumentHandler(w http.ResponseWriter, r *http.Request) {
	refSeqNo, ok := refSeqNoParam(w, r)
	if !ok {
		return
	}
	doc, values, err := h.documents.Document(r.Context(), refSeqNo)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentResponse{Document: doc, Values: values})
}

func (h *APIHandler) DeleteDocumentHandler(w http.ResponseWriter, r *http.Request) {
	refSeqNo, ok := refSeqNoParam(w, r)
	if !ok {
		return
	}
	msg, err := h.documents.DeleteDocument(r.Context(), userName(r), refSeqNo)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func refSeqNoParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	n, err := strconv.ParseInt(chi.URLParam(r, "refSeqNo"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid document number", http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

// Creation reports

func (h *APIHandler) ListReportsHandler(w http.ResponseWriter, r *http.Request) {
	all, _ := strconv.ParseBool(r.URL.Query().Get("all"))
	reports, err := h.reports.CreationReports(r.Context(), all)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (h *APIHandler) ResolveReportHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.reports.ResolveCreationReport(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp-dms/dms-assistant/internal/analysis"
	"github.com/erp-dms/dms-assistant/internal/auth"
	"github.com/erp-dms/dms-assistant/internal/catalog"
	"github.com/erp-dms/dms-assistant/internal/config"
	"github.com/erp-dms/dms-assistant/internal/core"
	"github.com/erp-dms/dms-assistant/internal/documents"
	"github.com/erp-dms/dms-assistant/internal/rpc"
	"github.com/erp-dms/dms-assistant/internal/rpc/rpctest"
	"github.com/erp-dms/dms-assistant/internal/store"
)

type stubAnalyzer struct{}

func (stubAnalyzer) Ask(ctx context.Context, file analysis.UploadedFile, question string) (string, error) {
	if question == analysis.ClassificationPrompt {
		return "```json\n{\"documentType\":\"Invoice\",\"translatedResponse\":\"Invoice 500\"}\n```", nil
	}
	return "- 500\n- Acme Corp", nil
}

type stubLedger struct {
	resolved []string
}

func (l *stubLedger) CreationReports(ctx context.Context, includeResolved bool) ([]store.ReportRecord, error) {
	return []store.ReportRecord{{ID: "r1", CreationReport: documents.CreationReport{Category: "Invoice", FailedStep: documents.StepSaveValues}}}, nil
}

func (l *stubLedger) ResolveCreationReport(ctx context.Context, id string) error {
	if id != "r1" {
		return store.ErrNotFound
	}
	l.resolved = append(l.resolved, id)
	return nil
}

func erpHandler(proc string, p map[string]any) (rpc.Result, error) {
	switch proc {
	case documents.ProcIsAdmin:
		if p["UserName"] == "admin" {
			return rpctest.JSON("Y"), nil
		}
		return rpctest.JSON("N"), nil
	case documents.ProcCheckRights:
		return rpctest.JSON([]rpc.Row{{"FORM_NAME": "DMS_MASTER", "HAS_RIGHTS": "Y"}}), nil
	case documents.ProcDocMasterList:
		return nil, &rpc.TransportError{Procedure: proc, StatusCode: 503}
	case rpc.ProcGetDataFromQuery:
		return rpctest.JSON([]rpc.Row{{"RELATED_CATEGORY": "Invoice", "DOCUMENT_COUNT": 3}}), nil
	case rpc.ProcGetData:
		switch p["DataModelName"] {
		case catalog.CategoryModel:
			return rpctest.JSON([]rpc.Row{{"CATEGORY_NAME": "Invoice", "SEARCH_TAGS": "bill"}}), nil
		case catalog.QuestionModel:
			return rpctest.JSON([]rpc.Row{
				{"QUESTION_FOR_AI": "Total amount?", "REF_KEY": "TOTAL"},
				{"QUESTION_FOR_AI": "Vendor name?", "REF_KEY": "VENDOR"},
			}), nil
		case documents.MasterModel:
			return rpctest.JSON([]rpc.Row{{"REF_SEQ_NO": 9, "RELATED_CATEGORY": "Invoice"}}), nil
		}
	case rpc.ProcSaveData:
		if strings.HasPrefix(p["DModelData"].(string), "<"+documents.MasterModel+">") {
			return rpctest.JSON("Saved '9'"), nil
		}
		return rpctest.JSON("Saved"), nil
	}
	return rpctest.JSON([]rpc.Row{}), nil
}

type testServer struct {
	handler http.Handler
	fake    *rpctest.Fake
	ledger  *stubLedger
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	prev := config.AppConfig.JWTSecret
	config.AppConfig.JWTSecret = "api-test-secret"
	t.Cleanup(func() { config.AppConfig.JWTSecret = prev })

	fake := &rpctest.Fake{Handler: erpHandler}
	cat := catalog.NewService(fake)
	docs := documents.NewService(fake)
	ledger := &stubLedger{}
	h := NewAPIHandler(
		core.NewAnalysisService(cat, docs, stubAnalyzer{}, nil, time.Hour, nil),
		core.NewDocumentsService(docs, nil),
		cat,
		auth.NewSessionService(docs, nil, time.Hour, 5*time.Minute, nil),
		ledger,
		nil,
	)
	return &testServer{handler: NewRouter(h), fake: fake, ledger: ledger}
}

func (s *testServer) do(t *testing.T, user, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	s.authorize(t, req, user)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) authorize(t *testing.T, req *http.Request, user string) {
	t.Helper()
	if user == "" {
		return
	}
	token, err := auth.GenerateJWT(user)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, "", http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, "", http.MethodGet, "/api/categories", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/categories", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAnalysisFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "invoice.txt")
	require.NoError(t, err)
	part.Write([]byte("Invoice from Acme Corp, total 500"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/analyses", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	s.authorize(t, req, "jdoe")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	id := body["id"].(string)
	assert.Equal(t, "classified", body["phase"])
	assert.Equal(t, "invoice.txt", body["file"].(map[string]any)["name"])

	rec = s.do(t, "jdoe", http.MethodPost, "/api/analyses/"+id+"/confirm", map[string]string{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Invoice", decodeBody(t, rec)["selected_type"])

	rec = s.do(t, "jdoe", http.MethodPost, "/api/analyses/"+id+"/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body = decodeBody(t, rec)
	assert.Equal(t, "summary_ready", body["phase"])
	assert.Len(t, body["summary_items"], 2)

	rec = s.do(t, "jdoe", http.MethodDelete, "/api/analyses/"+id+"/items?question=vendor+name%3F", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decodeBody(t, rec)["summary_items"], 1)

	rec = s.do(t, "jdoe", http.MethodPost, "/api/analyses/"+id+"/documents", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body = decodeBody(t, rec)
	assert.Equal(t, "document_created", body["phase"])
	assert.Equal(t, float64(9), body["document"].(map[string]any)["ref_seq_no"])

	rec = s.do(t, "someone-else", http.MethodGet, "/api/analyses/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, "jdoe", http.MethodDelete, "/api/analyses/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, "jdoe", http.MethodGet, "/api/analyses/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadRequiresFile(t *testing.T) {
	s := newTestServer(t)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "no file here"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/analyses", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	s.authorize(t, req, "jdoe")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestValidation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "jdoe", http.MethodPost, "/api/analyses/unknown/chat", map[string]string{"question": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, "jdoe", http.MethodPost, "/api/analyses/unknown/chat", map[string]string{"question": "why?"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, "jdoe", http.MethodGet, "/api/documents/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCategoryWritesNeedAdmin(t *testing.T) {
	s := newTestServer(t)
	category := map[string]string{"name": "Payslip", "module_name": "HR"}

	rec := s.do(t, "jdoe", http.MethodPost, "/api/categories", category)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, "admin", http.MethodPost, "/api/categories", category)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, "admin", http.MethodPost, "/api/categories", map[string]string{"module_name": "HR"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, "admin", http.MethodDelete, "/api/categories/Payslip/questions", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, "jdoe", http.MethodGet, "/api/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cats []catalog.Category
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cats))
	require.Len(t, cats, 1)
	assert.Equal(t, "Invoice", cats[0].Name)
}

func TestReportsAreAdminOnly(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "jdoe", http.MethodGet, "/api/reports", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, "admin", http.MethodGet, "/api/reports", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"failed_step":"save_values"`)

	rec = s.do(t, "admin", http.MethodPost, "/api/reports/r1/resolve", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, "admin", http.MethodPost, "/api/reports/r2/resolve", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, []string{"r1"}, s.ledger.resolved)
}

func TestDocumentListTransportFailure(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, "jdoe", http.MethodGet, "/api/documents", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestDashboardCategories(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, "jdoe", http.MethodGet, "/api/dashboard/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `[{"category":"Invoice","count":3}]`, rec.Body.String())
	var sql string
	for _, c := range s.fake.Calls() {
		if c.Procedure == rpc.ProcGetDataFromQuery {
			sql, _ = c.Payload["SQLQuery"].(string)
		}
	}
	assert.Contains(t, sql, "USER_NAME = 'jdoe'")
}

func TestSessionAndPermissions(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "jdoe", http.MethodPost, "/api/session", map[string]bool{"remember_me": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "jdoe", body["user_name"])
	assert.Equal(t, false, body["is_admin"])

	rec = s.do(t, "jdoe", http.MethodGet, "/api/permissions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"DMS_MASTER":true}`, rec.Body.String())
}

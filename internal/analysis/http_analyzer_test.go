package analysis

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPAnalyzerSendsMultipart(t *testing.T) {
	var gotQuestion, gotFileName string
	var gotData []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		gotQuestion = r.FormValue("Question")
		f, hdr, err := r.FormFile("File")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		gotFileName = hdr.Filename
		gotData, _ = io.ReadAll(f)
		w.Write([]byte("- 500\n- Acme Corp"))
	}))
	defer srv.Close()

	a := NewHTTPAnalyzer(srv.URL, 5*time.Second, nil)
	out, err := a.Ask(context.Background(), NewUploadedFile("inv.txt", []byte("invoice body")), "total amount?,vendor name?")
	require.NoError(t, err)

	assert.Equal(t, "- 500\n- Acme Corp", out)
	assert.Equal(t, "total amount?,vendor name?", gotQuestion)
	assert.Equal(t, "inv.txt", gotFileName)
	assert.Equal(t, []byte("invoice body"), gotData)
}

func TestHTTPAnalyzerStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPAnalyzer(srv.URL, time.Second, nil).Ask(context.Background(), UploadedFile{Name: "a"}, "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestUnwrapReply(t *testing.T) {
	assert.Equal(t, "plain", unwrapReply([]byte(" plain \n")))
	assert.Equal(t, "quoted\nline", unwrapReply([]byte(`"quoted\nline"`)))
	assert.Equal(t, "wrapped", unwrapReply([]byte(`{"response":"wrapped"}`)))
	assert.Equal(t, `{"documentType":"Invoice"}`, unwrapReply([]byte(`{"documentType":"Invoice"}`)))
}

package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.uber.org/zap"
)

// HTTPAnalyzer posts multipart File + Question to the analysis endpoint.
type HTTPAnalyzer struct {
	url    string
	client *http.Client
	log    *zap.Logger
}

func NewHTTPAnalyzer(url string, timeout time.Duration, log *zap.Logger) *HTTPAnalyzer {
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPAnalyzer{
		url:    url,
		client: &http.Client{Timeout: timeout},
		log:    log.With(zap.String("module", "analysis")),
	}
}

func (a *HTTPAnalyzer) Ask(ctx context.Context, file UploadedFile, question string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="File"; filename=%q`, file.Name))
	if file.MIMEType != "" {
		header.Set("Content-Type", file.MIMEType)
	} else {
		header.Set("Content-Type", "application/octet-stream")
	}
	part, err := mw.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return "", fmt.Errorf("failed to write file part: %w", err)
	}
	if err := mw.WriteField("Question", question); err != nil {
		return "", fmt.Errorf("failed to write question field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("analysis request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read analysis response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		a.log.Error("analysis endpoint rejected request",
			zap.Int("status", resp.StatusCode),
			zap.String("file", file.Name),
		)
		return "", fmt.Errorf("analysis endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	return unwrapReply(respBody), nil
}

// unwrapReply returns the model text from the endpoint reply. The endpoint
// either answers with the text itself or wraps it in a JSON envelope.
func unwrapReply(raw []byte) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &envelope); err == nil {
			for _, key := range []string{"response", "Response", "answer", "Answer", "result", "Result"} {
				var s string
				if v, ok := envelope[key]; ok && json.Unmarshal(v, &s) == nil {
					return s
				}
			}
		}
	}
	return string(trimmed)
}

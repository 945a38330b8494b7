package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const maxErrorBody = 512

// ErrUnexpectedShape is returned when a response cannot be read as the
// requested shape (row list or status message).
var ErrUnexpectedShape = errors.New("unexpected rpc response shape")

// TransportError covers network failures and non-2xx replies. The RPC layer
// makes no distinction between the two beyond what is recorded here.
type TransportError struct {
	Procedure  string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rpc %s: %v", e.Procedure, e.Err)
	}
	return fmt.Sprintf("rpc %s: status %d: %s", e.Procedure, e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Caller is the contract the data-access layer depends on.
type Caller interface {
	Call(ctx context.Context, procedure string, payload any) (Result, error)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient returns a client for the ERP endpoint. A zero timeout leaves the
// http.Client default in place.
func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With(zap.String("module", "rpc")),
	}
}

// Call issues exactly one POST of payload to <base>/<procedure>. There are no
// retries.
func (c *Client) Call(ctx context.Context, procedure string, payload any) (Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", procedure, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+procedure, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Procedure: procedure, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("rpc call failed", zap.String("procedure", procedure), zap.Error(err))
		return nil, &TransportError{Procedure: procedure, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Procedure: procedure, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		excerpt := strings.TrimSpace(string(respBody))
		if len(excerpt) > maxErrorBody {
			excerpt = excerpt[:maxErrorBody]
		}
		c.log.Error("rpc call rejected",
			zap.String("procedure", procedure),
			zap.Int("status", resp.StatusCode),
			zap.String("body", excerpt),
		)
		return nil, &TransportError{Procedure: procedure, StatusCode: resp.StatusCode, Body: excerpt}
	}

	c.log.Debug("rpc call",
		zap.String("procedure", procedure),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)
	return Result(respBody), nil
}

// Row is one record as returned by the server: column name to value.
type Row map[string]any

// Result is the undecoded body of an RPC reply.
type Result []byte

// Rows reads the reply as a list of row objects. An empty body, null, or a
// bare status string ("No data found") reads as no rows; a single object reads
// as one row.
func (r Result) Rows() ([]Row, error) {
	trimmed := bytes.TrimSpace(r)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []Row{}, nil
	}

	switch trimmed[0] {
	case '[':
		var rows []Row
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
		}
		if rows == nil {
			rows = []Row{}
		}
		return rows, nil
	case '{':
		var row Row
		if err := json.Unmarshal(trimmed, &row); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
		}
		return []Row{row}, nil
	case '"':
		return []Row{}, nil
	default:
		if json.Valid(trimmed) {
			return nil, fmt.Errorf("%w: %.80s", ErrUnexpectedShape, trimmed)
		}
		return []Row{}, nil
	}
}

// Message reads the reply as a free-text status message. JSON strings are
// unquoted; anything else is returned verbatim.
func (r Result) Message() (string, error) {
	trimmed := bytes.TrimSpace(r)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var msg string
		if err := json.Unmarshal(trimmed, &msg); err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
		}
		return msg, nil
	}
	return string(trimmed), nil
}

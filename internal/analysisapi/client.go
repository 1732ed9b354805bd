// Package analysisapi is the HTTP client for the financial-document
// analysis service.
package analysisapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"findoc-gateway/internal/shared/metrics"
	"findoc-gateway/internal/shared/telemetry"
)

const maxErrorBody = 4 << 10

// Client calls the analysis service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client for the service at baseURL.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("ANALYSIS_API_URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid ANALYSIS_API_URL: %w", err)
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Upload sends a PDF as multipart form field "file".
func (c *Client) Upload(ctx context.Context, fileName string, r io.Reader) (UploadReceipt, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return UploadReceipt{}, fmt.Errorf("upload: build form: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return UploadReceipt{}, fmt.Errorf("upload: copy file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return UploadReceipt{}, fmt.Errorf("upload: close form: %w", err)
	}

	var receipt UploadReceipt
	if err := c.do(ctx, "upload", http.MethodPost, "/upload/", mw.FormDataContentType(), &body, &receipt); err != nil {
		return UploadReceipt{}, err
	}
	if strings.TrimSpace(receipt.FileID) == "" {
		return UploadReceipt{}, shapeError("upload", "missing file_id")
	}
	return receipt, nil
}

// Analyze fetches the raw analysis payload for a stored document.
func (c *Client) Analyze(ctx context.Context, storedAs string) (map[string]any, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "analyze", http.MethodGet, "/analyze/"+url.PathEscape(storedAs), "", nil, &raw); err != nil {
		return nil, err
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil || payload == nil {
		return nil, shapeError("analyze", "payload is not an object")
	}
	return payload, nil
}

// Summary fetches the management-discussion summary of a document. A
// response without summary text is a shape error carrying the service message.
func (c *Client) Summary(ctx context.Context, fileID string) (Summary, error) {
	var s Summary
	if err := c.do(ctx, "summary", http.MethodGet, "/summary/"+url.PathEscape(fileID), "", nil, &s); err != nil {
		return Summary{}, err
	}
	if strings.TrimSpace(s.Summary) == "" {
		msg := s.Message
		if msg == "" {
			msg = "missing summary"
		}
		return Summary{}, shapeError("summary", "%s", msg)
	}
	return s, nil
}

// News fetches articles about a company. The service may answer with a bare
// array or with {"articles": [...]}.
func (c *Client) News(ctx context.Context, company string) ([]Article, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "news", http.MethodGet, "/news/"+url.PathEscape(company), "", nil, &raw); err != nil {
		return nil, err
	}
	var articles []Article
	if err := json.Unmarshal(raw, &articles); err == nil {
		return nonNil(articles), nil
	}
	var wrapped struct {
		Articles []Article `json:"articles"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil || wrapped.Articles == nil {
		return nil, shapeError("news", "expected an article list")
	}
	return wrapped.Articles, nil
}

// Files lists documents known to the service.
func (c *Client) Files(ctx context.Context) ([]FileRecord, error) {
	var files []FileRecord
	if err := c.do(ctx, "files", http.MethodGet, "/files/", "", nil, &files); err != nil {
		return nil, err
	}
	return nonNil(files), nil
}

// DeleteFile removes a document's metadata. It reports whether the service
// knew the document.
func (c *Client) DeleteFile(ctx context.Context, fileID string) (bool, error) {
	var out struct {
		Deleted bool `json:"deleted"`
	}
	if err := c.do(ctx, "delete file", http.MethodDelete, "/files/"+url.PathEscape(fileID), "", nil, &out); err != nil {
		return false, err
	}
	return out.Deleted, nil
}

// SaveFileMetadata records an upload in the service's file list.
func (c *Client) SaveFileMetadata(ctx context.Context, meta FileMetadata) error {
	payload, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("save file metadata: %w", err)
	}
	return c.do(ctx, "save file metadata", http.MethodPost, "/files/save", "application/json", bytes.NewReader(payload), nil)
}

func (c *Client) do(ctx context.Context, op, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ObserveBackendDurationMs(metrics.Since(start))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return fmt.Errorf("%s: analysis service timeout: %w", op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		se := &StatusError{Op: op, Status: resp.StatusCode, Detail: errorDetail(data)}
		telemetry.Warn("analysisapi.status", map[string]any{"op": op, "status": resp.StatusCode, "detail": se.Detail})
		return se
	}
	if out == nil {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read body: %w", op, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return shapeError(op, "decode body: %v", err)
	}
	return nil
}

// errorDetail extracts FastAPI's "detail" or a "message" field from an
// error body, falling back to the raw text.
func errorDetail(body []byte) string {
	var parsed struct {
		Detail  any    `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		switch d := parsed.Detail.(type) {
		case string:
			if d != "" {
				return d
			}
		case nil:
		default:
			if b, err := json.Marshal(d); err == nil {
				return string(b)
			}
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	return strings.TrimSpace(string(body))
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

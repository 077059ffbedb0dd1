package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// notScanDetail is the literal detail string the classification backend
// returns when the uploaded file is not an MRI scan.
const notScanDetail = "Arquivo deve ser ressonancia"

// ErrNotScan signals that the backend rejected the file as not being an MRI
// scan. Callers must surface this as a distinct error state, not a generic
// upstream failure.
var ErrNotScan = errors.New("uploaded file is not an MRI scan")

// UpstreamError is any other non-2xx answer or transport failure from the
// prediction backend. It is retryable by the user.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("prediction backend returned status %d: %s", e.StatusCode, e.Body)
}

// Result is a classification answer.
type Result struct {
	Class         string
	Confidence    float64
	HasConfidence bool
}

// Client talks to the tumor-classification backend. The backend may
// cold-start, so the default timeout is generous.
type Client struct {
	baseURL string
	client  *http.Client
}

const DefaultTimeout = 3 * time.Minute

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Predict sends the image as multipart field "file" to POST {base}/predict
// and parses the classification answer. Backends in the wild disagree on key
// names, so all observed spellings are accepted.
func (c *Client) Predict(ctx context.Context, filename string, image io.Reader) (*Result, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart request: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, fmt.Errorf("failed to write image to request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &UpstreamError{Body: err.Error()}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var detail struct {
			Detail string `json:"detail"`
		}
		if err := json.Unmarshal(data, &detail); err == nil && detail.Detail == notScanDetail {
			return nil, ErrNotScan
		}
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	return parseResult(data)
}

func parseResult(data []byte) (*Result, error) {
	var payload struct {
		PredictedClass string   `json:"predicted_class"`
		Class          string   `json:"class"`
		Prediction     string   `json:"prediction"`
		Confidence     *float64 `json:"confidence"`
		Probability    *float64 `json:"probability"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &UpstreamError{StatusCode: http.StatusOK, Body: "unparseable response body"}
	}

	class := payload.PredictedClass
	if class == "" {
		class = payload.Class
	}
	if class == "" {
		class = payload.Prediction
	}
	if class == "" {
		return nil, &UpstreamError{StatusCode: http.StatusOK, Body: "response carries no predicted class"}
	}

	result := &Result{Class: class}
	if payload.Confidence != nil {
		result.Confidence = *payload.Confidence
		result.HasConfidence = true
	} else if payload.Probability != nil {
		result.Confidence = *payload.Probability
		result.HasConfidence = true
	}
	return result, nil
}

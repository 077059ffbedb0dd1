package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/neuroscan/scanrelay/internal/session"
)

// HTTPClient drives a remote relay over its HTTP API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) Create(ctx context.Context) (*Created, error) {
	var response struct {
		SessionID           string    `json:"sessionId"`
		ExpiresAt           time.Time `json:"expiresAt"`
		MobileURL           string    `json:"mobileUrl"`
		Discipline          string    `json:"discipline"`
		PollIntervalSeconds int       `json:"pollIntervalSeconds"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/session", nil, &response); err != nil {
		return nil, err
	}
	return &Created{
		SessionID:    response.SessionID,
		MobileURL:    response.MobileURL,
		ExpiresAt:    response.ExpiresAt,
		Discipline:   session.Discipline(response.Discipline),
		PollInterval: time.Duration(response.PollIntervalSeconds) * time.Second,
	}, nil
}

func (c *HTTPClient) Connect(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/session/"+url.PathEscape(id)+"/connect", nil, nil)
}

func (c *HTTPClient) Upload(ctx context.Context, id, dataURL, filename string) error {
	body := map[string]string{
		"session":   id,
		"imageData": dataURL,
		"filename":  filename,
	}
	return c.doJSON(ctx, http.MethodPost, "/api/mobile-session", body, nil)
}

func (c *HTTPClient) Close(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/session/"+url.PathEscape(id)+"/close", nil, nil)
}

func (c *HTTPClient) Consume(ctx context.Context, id string) (string, error) {
	var response struct {
		ImageData *string `json:"imageData"`
	}
	path := "/api/check-upload?session=" + url.QueryEscape(id)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &response); err != nil {
		return "", err
	}
	if response.ImageData == nil {
		return "", nil
	}
	return *response.ImageData, nil
}

func (c *HTTPClient) Get(ctx context.Context, id string) (*session.Session, error) {
	var record session.Session
	if err := c.doJSON(ctx, http.MethodGet, "/api/session/"+url.PathEscape(id), nil, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Watch subscribes to the relay's SSE feed. The returned cancel func tears
// the connection down; the channel closes when the stream ends.
func (c *HTTPClient) Watch(ctx context.Context, id string) (<-chan *session.Session, func(), error) {
	watchCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(watchCtx, http.MethodGet,
		c.baseURL+"/api/session/"+url.PathEscape(id)+"/events", nil)
	if err != nil {
		cancel()
		return nil, nil, err
	}

	// The events stream outlives the default request timeout on purpose.
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer func() {
			_ = resp.Body.Close()
		}()
		cancel()
		return nil, nil, statusError(resp.StatusCode)
	}

	updates := make(chan *session.Session, 16)
	go func() {
		defer close(updates)
		defer func() {
			_ = resp.Body.Close()
		}()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var snapshot session.Session
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &snapshot); err != nil {
				continue
			}
			select {
			case updates <- &snapshot:
			case <-watchCtx.Done():
				return
			}
		}
	}()
	return updates, cancel, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// statusError translates the relay's HTTP statuses back into the session
// error taxonomy so controller logic is transport-agnostic.
func statusError(code int) error {
	switch code {
	case http.StatusNotFound:
		return session.ErrNotFound
	case http.StatusGone:
		return session.ErrExpired
	case http.StatusConflict:
		return session.ErrInactive
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return session.ErrInvalidInput
	default:
		return fmt.Errorf("relay returned unexpected status %d", code)
	}
}

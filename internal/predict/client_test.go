package predict

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newBackend(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/predict" {
			t.Errorf("Expected /predict, got %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("Expected multipart body, got %v", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("Expected form field \"file\", got %v", err)
		} else {
			defer func() {
				_ = file.Close()
			}()
			if header.Filename != "scan.jpg" {
				t.Errorf("Expected filename scan.jpg, got %s", header.Filename)
			}
			if _, err := io.ReadAll(file); err != nil {
				t.Errorf("Expected readable file part, got %v", err)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestPredictParsesClassVariants(t *testing.T) {
	tests := []struct {
		name               string
		body               string
		expectedClass      string
		expectedConfidence float64
		hasConfidence      bool
	}{
		{
			name:               "predicted_class with confidence",
			body:               `{"predicted_class":"glioma","confidence":0.92}`,
			expectedClass:      "glioma",
			expectedConfidence: 0.92,
			hasConfidence:      true,
		},
		{
			name:               "class with probability",
			body:               `{"class":"meningioma","probability":0.75}`,
			expectedClass:      "meningioma",
			expectedConfidence: 0.75,
			hasConfidence:      true,
		},
		{
			name:          "prediction without confidence",
			body:          `{"prediction":"notumor"}`,
			expectedClass: "notumor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newBackend(t, http.StatusOK, tt.body)
			client := NewClient(server.URL, time.Second)

			result, err := client.Predict(context.Background(), "scan.jpg", strings.NewReader("image-bytes"))
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if result.Class != tt.expectedClass {
				t.Errorf("Expected class %s, got %s", tt.expectedClass, result.Class)
			}
			if result.HasConfidence != tt.hasConfidence {
				t.Errorf("Expected hasConfidence=%v, got %v", tt.hasConfidence, result.HasConfidence)
			}
			if result.Confidence != tt.expectedConfidence {
				t.Errorf("Expected confidence %v, got %v", tt.expectedConfidence, result.Confidence)
			}
		})
	}
}

func TestPredictRecognizesNotScanRejection(t *testing.T) {
	server := newBackend(t, http.StatusBadRequest, `{"detail":"Arquivo deve ser ressonancia"}`)
	client := NewClient(server.URL, time.Second)

	_, err := client.Predict(context.Background(), "scan.jpg", strings.NewReader("image-bytes"))
	if !errors.Is(err, ErrNotScan) {
		t.Errorf("Expected ErrNotScan, got %v", err)
	}
}

func TestPredictWrapsOtherFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"internal error", http.StatusInternalServerError, `{"detail":"model not loaded"}`},
		{"bad gateway", http.StatusBadGateway, "upstream unavailable"},
		{"ok with no class", http.StatusOK, `{"confidence":0.5}`},
		{"ok with garbage body", http.StatusOK, "not json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newBackend(t, tt.status, tt.body)
			client := NewClient(server.URL, time.Second)

			_, err := client.Predict(context.Background(), "scan.jpg", strings.NewReader("image-bytes"))
			var upstream *UpstreamError
			if !errors.As(err, &upstream) {
				t.Fatalf("Expected UpstreamError, got %v", err)
			}
			if errors.Is(err, ErrNotScan) {
				t.Error("Expected the error to stay distinct from ErrNotScan")
			}
		})
	}
}

func TestPredictUnreachableBackend(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", time.Second)

	_, err := client.Predict(context.Background(), "scan.jpg", strings.NewReader("image-bytes"))
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Errorf("Expected UpstreamError, got %v", err)
	}
}

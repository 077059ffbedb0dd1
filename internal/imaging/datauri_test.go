package imaging

import (
	"bytes"
	"testing"
)

func TestDataURLRoundTrip(t *testing.T) {
	payload := []byte{0x00, 0x01, 0x02, 0xFF}

	dataURL := EncodeDataURL("image/png", payload)
	mimeType, data, err := DecodeDataURL(dataURL)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if mimeType != "image/png" {
		t.Errorf("Expected mime image/png, got %s", mimeType)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("Expected payload %v, got %v", payload, data)
	}
}

func TestDecodeDataURLRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing scheme", "image/png;base64,AAAA"},
		{"missing payload separator", "data:image/png;base64"},
		{"unsupported encoding", "data:image/png;charset=utf-8,AAAA"},
		{"invalid base64", "data:image/png;base64,@@@@"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := DecodeDataURL(tt.input); err == nil {
				t.Errorf("Expected an error for %q", tt.input)
			}
		})
	}
}

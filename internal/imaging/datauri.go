package imaging

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// EncodeDataURL wraps raw bytes into a self-describing data URI.
func EncodeDataURL(mimeType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// DecodeDataURL splits a data URI into its mime type and raw bytes.
func DecodeDataURL(dataURL string) (string, []byte, error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return "", nil, fmt.Errorf("not a data URI")
	}
	rest := strings.TrimPrefix(dataURL, "data:")

	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return "", nil, fmt.Errorf("malformed data URI: missing payload separator")
	}
	meta := rest[:comma]
	payload := rest[comma+1:]

	mimeType := meta
	if semi := strings.IndexByte(meta, ';'); semi >= 0 {
		mimeType = meta[:semi]
		if !strings.Contains(meta[semi:], "base64") {
			return "", nil, fmt.Errorf("unsupported data URI encoding: %s", meta[semi+1:])
		}
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode data URI payload: %w", err)
	}
	return mimeType, data, nil
}

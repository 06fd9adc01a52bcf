package predictions

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// EncodeDataURI renders a binary payload as a self-contained base64 data URI.
// An empty contentType falls back to fallbackType so the client always
// receives a declared media type.
func EncodeDataURI(payload []byte, contentType, fallbackType string) string {
	if contentType == "" {
		contentType = fallbackType
	}
	return fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(payload))
}

// DecodeDataURI is the inverse of EncodeDataURI. It returns the payload and
// the declared content type.
func DecodeDataURI(uri string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, "", fmt.Errorf("not a data URI")
	}
	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("malformed data URI: missing payload")
	}
	contentType, found := strings.CutSuffix(meta, ";base64")
	if !found {
		return nil, "", fmt.Errorf("unsupported data URI encoding: %s", meta)
	}
	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("decode data URI payload: %w", err)
	}
	return payload, contentType, nil
}

package predictions_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-studio/predictions"
)

func TestDataURIRoundTrip(t *testing.T) {
	payload := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

	uri := predictions.EncodeDataURI(payload, "image/webp", "image/png")
	assert.Equal(t, "data:image/webp;base64,AAECAwQFBgcICQ==", uri)

	decoded, contentType, err := predictions.DecodeDataURI(uri)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
	assert.Equal(t, "image/webp", contentType)
}

func TestEncodeDataURIFallbackType(t *testing.T) {
	uri := predictions.EncodeDataURI([]byte("x"), "", "video/mp4")
	assert.Equal(t, "data:video/mp4;base64,eA==", uri)
}

func TestDecodeDataURIRejectsGarbage(t *testing.T) {
	_, _, err := predictions.DecodeDataURI("https://example.com/a.png")
	assert.Error(t, err)

	_, _, err = predictions.DecodeDataURI("data:image/png;base64")
	assert.Error(t, err)

	_, _, err = predictions.DecodeDataURI("data:image/png,plain")
	assert.Error(t, err)
}

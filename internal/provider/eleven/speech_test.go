package eleven

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellatale/engine/internal/config"
	"github.com/tellatale/engine/internal/fault"
)

func testConfig(baseURL string) config.ElevenConfig {
	return config.ElevenConfig{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Model:   "eleven_multilingual_v2",
		Timeout: 5 * time.Second,
	}
}

func TestSpeechClient_Synthesize(t *testing.T) {
	audio := []byte{0xFF, 0xFB, 0x90, 0x00, 0x01, 0x02}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/text-to-speech/nova", r.URL.Path)
		assert.Equal(t, "mp3_44100_128", r.URL.Query().Get("output_format"))
		assert.Equal(t, "test-key", r.Header.Get("xi-api-key"))

		var req speechRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Once upon a time.", req.Text)
		assert.Equal(t, "eleven_multilingual_v2", req.ModelID)

		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write(audio)
	}))
	defer server.Close()

	c := NewSpeechClient(testConfig(server.URL))
	stream, err := c.Synthesize(context.Background(), "nova", "Once upon a time.", "eleven_multilingual_v2")
	require.NoError(t, err)
	defer stream.Close()

	got, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, audio, got)
}

func TestSpeechClient_Synthesize_StatusMapping(t *testing.T) {
	tests := []struct {
		status    int
		want      fault.Kind
		retryable bool
	}{
		{http.StatusUnauthorized, fault.AuthFailure, false},
		{http.StatusTooManyRequests, fault.Transient, true},
		{http.StatusBadGateway, fault.Transient, true},
		{http.StatusUnprocessableEntity, fault.Speech, false},
	}

	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))
		c := NewSpeechClient(testConfig(server.URL))
		_, err := c.Synthesize(context.Background(), "nova", "hi", "eleven_multilingual_v2")
		server.Close()

		require.Error(t, err, "status %d", tt.status)
		assert.Equal(t, tt.want, fault.KindOf(err), "status %d", tt.status)
		assert.Equal(t, tt.retryable, fault.IsRetryable(err), "status %d", tt.status)
	}
}

func TestSpeechClient_Synthesize_UnreachableIsTransient(t *testing.T) {
	c := NewSpeechClient(testConfig("http://127.0.0.1:1"))
	_, err := c.Synthesize(context.Background(), "nova", "hi", "eleven_multilingual_v2")
	require.Error(t, err)
	assert.True(t, fault.IsRetryable(err))
}

// Package eleven adapts the ElevenLabs text-to-speech API to the engine's
// speech provider contract.
package eleven

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/tellatale/engine/internal/config"
	"github.com/tellatale/engine/internal/fault"
	"github.com/tellatale/engine/pkg/models"
)

// SpeechClient implements models.SpeechProvider, streaming MP3 narration.
type SpeechClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewSpeechClient(cfg config.ElevenConfig) *SpeechClient {
	return &SpeechClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *SpeechClient) Name() string { return "elevenlabs" }

type speechRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize streams MP3 audio for text in the given voice. The caller owns
// the returned stream.
func (c *SpeechClient) Synthesize(ctx context.Context, voiceID, text, model string) (io.ReadCloser, error) {
	const op = "eleven.synthesize"

	body, err := json.Marshal(speechRequest{Text: text, ModelID: model})
	if err != nil {
		return nil, fault.New(fault.BadRequest, op, err)
	}

	url := c.baseURL + "/v1/text-to-speech/" + voiceID + "?output_format=mp3_44100_128"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fault.New(fault.BadRequest, op, err)
	}
	httpReq.Header.Set("xi-api-key", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fault.New(fault.Transient, op, err)
	}

	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, fault.Errorf(fault.AuthFailure, op, "status %d: %s", resp.StatusCode, excerpt)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return nil, fault.Errorf(fault.Transient, op, "status %d: %s", resp.StatusCode, excerpt)
		default:
			return nil, fault.Errorf(fault.Speech, op, "status %d: %s", resp.StatusCode, excerpt)
		}
	}

	return resp.Body, nil
}

var _ models.SpeechProvider = (*SpeechClient)(nil)

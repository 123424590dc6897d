// Package openai adapts the OpenAI HTTP API to the engine's text and image
// provider contracts, mapping provider-native failures into the fault
// taxonomy.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tellatale/engine/internal/config"
	"github.com/tellatale/engine/internal/fault"
	"github.com/tellatale/engine/pkg/models"
)

// Token bounds accepted by the standard text model. Requests above the
// ceiling are served by the long-context model instead.
const (
	minTokens     = 100
	tokensCeiling = 4000
)

// TextClient implements models.TextProvider using chat completions.
type TextClient struct {
	baseURL          string
	apiKey           string
	longContextModel string
	client           *http.Client
}

func NewTextClient(cfg config.OpenAIConfig) *TextClient {
	return &TextClient{
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:           cfg.APIKey,
		longContextModel: cfg.LongContextModel,
		client:           &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *TextClient) Name() string { return "openai" }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Seed        int64         `json:"seed,omitempty"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *TextClient) Complete(ctx context.Context, req models.TextRequest) (string, error) {
	const op = "openai.complete"

	model := req.Model
	maxTokens := req.MaxTokens
	if maxTokens < minTokens {
		maxTokens = minTokens
	}
	if maxTokens > tokensCeiling {
		model = c.longContextModel
	}

	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature: req.Temperature,
		Seed:        req.Seed,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fault.New(fault.BadRequest, op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fault.New(fault.BadRequest, op, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", classifyTransport(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fault.FromHTTPStatus(op, resp.StatusCode, readExcerpt(resp.Body))
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return "", fault.New(fault.Transient, op, fmt.Errorf("decode response: %w", err))
	}
	if len(chat.Choices) == 0 {
		return "", fault.Errorf(fault.ContentFault, op, "no choices returned")
	}

	text := strings.TrimSpace(chat.Choices[0].Message.Content)
	if text == "" {
		return "", fault.Errorf(fault.ContentFault, op, "empty completion")
	}
	return text, nil
}

// classifyTransport maps transport-level failures; everything at this layer
// is worth retrying.
func classifyTransport(op string, err error) *fault.Error {
	return fault.New(fault.Transient, op, err)
}

// readExcerpt returns a bounded excerpt of an error response body.
func readExcerpt(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 2048))
	return string(data)
}

var _ models.TextProvider = (*TextClient)(nil)

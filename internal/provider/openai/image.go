package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/tellatale/engine/internal/config"
	"github.com/tellatale/engine/internal/fault"
	"github.com/tellatale/engine/pkg/models"
)

const defaultImageSize = "1024x1024"

// ImageClient implements models.ImageProvider using image generations.
type ImageClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewImageClient(cfg config.OpenAIConfig) *ImageClient {
	return &ImageClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *ImageClient) Name() string { return "openai" }

type imageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

func (c *ImageClient) Generate(ctx context.Context, req models.ImageRequest) (string, error) {
	const op = "openai.generate_image"

	size := req.Size
	if size == "" {
		size = defaultImageSize
	}

	body, err := json.Marshal(imageRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		N:      1,
		Size:   size,
	})
	if err != nil {
		return "", fault.New(fault.BadRequest, op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/images/generations", bytes.NewReader(body))
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
		excerpt := readExcerpt(resp.Body)
		if strings.Contains(excerpt, "content_policy") {
			return "", fault.Errorf(fault.ContentRejected, op, "prompt rejected by content policy")
		}
		return "", fault.FromHTTPStatus(op, resp.StatusCode, excerpt)
	}

	var img imageResponse
	if err := json.NewDecoder(resp.Body).Decode(&img); err != nil {
		return "", fault.New(fault.Transient, op, fmt.Errorf("decode response: %w", err))
	}
	if len(img.Data) == 0 || img.Data[0].URL == "" {
		return "", fault.Errorf(fault.ContentFault, op, "no image returned")
	}
	return img.Data[0].URL, nil
}

var _ models.ImageProvider = (*ImageClient)(nil)

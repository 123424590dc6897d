package models

import (
	"context"
	"io"
)

// TextRequest is the input to a text completion call.
type TextRequest struct {
	Model       string
	System      string
	User        string
	Temperature float64
	Seed        int64
	MaxTokens   int
}

// TextProvider is the contract for text synthesis upstreams.
// Callers always receive this interface, never a concrete provider.
type TextProvider interface {
	// Complete returns a non-empty trimmed completion. An empty completion
	// despite provider success is a content fault.
	Complete(ctx context.Context, req TextRequest) (string, error)
	Name() string
}

// ImageRequest is the input to an image generation call.
type ImageRequest struct {
	Model  string
	Prompt string
	// Size defaults to "1024x1024" when empty.
	Size string
}

// ImageProvider is the contract for image generation upstreams.
type ImageProvider interface {
	// Generate returns a URL to the generated image. Content-policy
	// rejections surface as a ContentRejected fault, which callers treat
	// as non-fatal.
	Generate(ctx context.Context, req ImageRequest) (string, error)
	Name() string
}

// SpeechProvider is the contract for narration synthesis upstreams.
type SpeechProvider interface {
	// Synthesize streams MP3 audio for the given text. The caller owns the
	// returned stream and must close it.
	Synthesize(ctx context.Context, voiceID, text, model string) (io.ReadCloser, error)
	Name() string
}

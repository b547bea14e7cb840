// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm is a client for OpenAI-compatible chat-completions services.
// Table extraction uses the text model; figure classification sends images
// to the vision model.
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/zouly-group/tadf-workbench/internal/httputil"
	"github.com/zouly-group/tadf-workbench/pkg/types"
)

// ErrEmptyResponse is returned when the service answers without content.
var ErrEmptyResponse = errors.New("empty completion")

// Message is one chat message. Content is a string, or a []Part for
// multimodal input.
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// Part is one element of multimodal message content.
type Part struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL carries an image as a URL or data URI.
type ImageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Client calls one chat-completions endpoint.
type Client struct {
	endpoint    string
	apiKey      string
	model       string
	visionModel string
	temperature float64
	http        *http.Client
	policy      httputil.Policy
}

// New returns a client for cfg. BaseURL is the API root ending in /v1 or
// the full chat-completions URL.
func New(cfg types.LLMConfig) *Client {
	endpoint := strings.TrimRight(cfg.BaseURL, "/")
	if !strings.HasSuffix(endpoint, "/chat/completions") {
		endpoint += "/chat/completions"
	}
	return &Client{
		endpoint:    endpoint,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		visionModel: cfg.VisionModel,
		temperature: cfg.Temperature,
		http:        httputil.NewClient(cfg.HTTPConfig),
		policy:      httputil.PolicyFrom(cfg.HTTPConfig),
	}
}

// Chat sends messages to model and returns the first choice's content.
func (c *Client) Chat(ctx context.Context, model string, messages []Message) (string, error) {
	body, err := json.Marshal(chatRequest{Model: model, Messages: messages, Temperature: c.temperature})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := httputil.DoWithRetry(ctx, c.http, req, c.policy)
	if err != nil {
		return "", fmt.Errorf("calling %s: %w", model, err)
	}
	if err := httputil.CheckResponse(resp); err != nil {
		return "", fmt.Errorf("calling %s: %w", model, err)
	}
	defer resp.Body.Close()

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decoding %s response: %w", model, err)
	}
	if len(cr.Choices) == 0 || strings.TrimSpace(cr.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%s: %w", model, ErrEmptyResponse)
	}
	return cr.Choices[0].Message.Content, nil
}

// Complete sends a system and a user prompt to the text model.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	return c.Chat(ctx, c.model, []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	})
}

// Describe sends an image and a prompt to the vision model.
func (c *Client) Describe(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = http.DetectContentType(image)
	}
	uri := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
	return c.Chat(ctx, c.visionModel, []Message{{
		Role: "user",
		Content: []Part{
			{Type: "image_url", ImageURL: &ImageURL{URL: uri}},
			{Type: "text", Text: prompt},
		},
	}})
}

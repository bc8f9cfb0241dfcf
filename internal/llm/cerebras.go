// Package llm holds the Cerebras chat-completions client behind the spoken
// summarization prompts.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultEndpoint = "https://api.cerebras.ai/v1/chat/completions"

// CerebrasClient calls the Cerebras OpenAI-compatible completions API.
type CerebrasClient struct {
	HTTPClient *http.Client
	Endpoint   string
	APIKey     string
	Model      string
}

func NewCerebrasClient(apiKey, model string) *CerebrasClient {
	return &CerebrasClient{
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		Endpoint:   defaultEndpoint,
		APIKey:     apiKey,
		Model:      model,
	}
}

type promptMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// complete sends one system+user exchange and returns the trimmed assistant
// reply.
func (c *CerebrasClient) complete(ctx context.Context, system, user string) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("cerebras api key missing")
	}

	payload, _ := json.Marshal(struct {
		Model    string          `json:"model"`
		Messages []promptMessage `json:"messages"`
	}{
		Model: c.Model,
		Messages: []promptMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("cerebras error: status=%d body=%s", resp.StatusCode, string(b))
	}

	var out struct {
		Choices []struct {
			Message promptMessage `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("cerebras response parse: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("cerebras: empty choices")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

// Summarize compresses a blob of raw status lines into one short spoken
// sentence in a casual tone.
func (c *CerebrasClient) Summarize(ctx context.Context, blob string) (string, error) {
	system := "You narrate a coding assistant's progress out loud. " +
		"Compress the given status lines into ONE casual spoken sentence of about 12 words. " +
		"No markdown, no lists, no technical jargon. Just the sentence."
	return c.complete(ctx, system, blob)
}

// FinalSummary produces the end-of-session sentence grounded in what
// actually changed.
func (c *CerebrasClient) FinalSummary(ctx context.Context, transcript string, changedFiles []string) (string, error) {
	system := "You wrap up a voice coding session out loud. " +
		"Given the user's request and the files that changed, say in one casual sentence " +
		"of about 12 words what got done. If nothing changed, say so plainly."
	files := "none"
	if len(changedFiles) > 0 {
		files = strings.Join(changedFiles, ", ")
	}
	prompt := fmt.Sprintf("Request: %s\nChanged files: %s", transcript, files)
	return c.complete(ctx, system, prompt)
}

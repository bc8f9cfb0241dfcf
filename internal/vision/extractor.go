// Package vision extracts the latest AI reply visible in the IDE's
// conversation pane from a screenshot.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

const extractPrompt = "This is a screenshot of Cursor IDE with an AI conversation pane. " +
	"Locate the AI conversation area and extract EXACTLY two fields in strict JSON format:\n" +
	`{ "user_input": "<most recent user question or input>", "AI_output": "<most recent AI response>" }` + "\n" +
	"If no conversation is visible or the pane is not open, return both fields as empty strings. " +
	"Only return the JSON object, no additional text or formatting."

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

type Client struct {
	HTTPClient *http.Client
	Endpoint   string
	APIKey     string
	Model      string

	// CaptureCommand writes one PNG screenshot of the IDE window to stdout.
	CaptureCommand string
}

func NewClient(apiKey, captureCommand string) *Client {
	return &Client{
		HTTPClient:     &http.Client{Timeout: 30 * time.Second},
		Endpoint:       "https://api.openai.com/v1/responses",
		APIKey:         apiKey,
		Model:          "gpt-4.1-mini",
		CaptureCommand: captureCommand,
	}
}

type conversation struct {
	UserInput string `json:"user_input"`
	AIOutput  string `json:"AI_output"`
}

// Extract captures the screen and returns the most recent visible AI reply,
// or "" when nothing legible is on screen.
func (c *Client) Extract(ctx context.Context) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("openai api key missing")
	}
	if c.CaptureCommand == "" {
		return "", fmt.Errorf("capture command not configured")
	}
	png, err := exec.CommandContext(ctx, "sh", "-c", c.CaptureCommand).Output()
	if err != nil {
		return "", fmt.Errorf("screen capture: %w", err)
	}
	if len(png) == 0 {
		return "", nil
	}
	conv, err := c.extractFromImage(ctx, png)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(conv.AIOutput), nil
}

func (c *Client) extractFromImage(ctx context.Context, png []byte) (conversation, error) {
	b64 := base64.StdEncoding.EncodeToString(png)
	payload := map[string]interface{}{
		"model": c.Model,
		"text":  map[string]interface{}{"format": map[string]string{"type": "json_object"}},
		"input": []map[string]interface{}{{
			"role": "user",
			"content": []map[string]string{
				{"type": "input_text", "text": extractPrompt},
				{"type": "input_image", "image_url": "data:image/png;base64," + b64},
			},
		}},
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return conversation{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return conversation{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return conversation{}, fmt.Errorf("openai vision error %d: %s", resp.StatusCode, string(b))
	}

	var out struct {
		Output []struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"output"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return conversation{}, fmt.Errorf("openai vision parse: %w", err)
	}
	var text string
	for _, o := range out.Output {
		for _, part := range o.Content {
			if part.Type == "output_text" && part.Text != "" {
				text = part.Text
			}
		}
	}
	return parseConversation(text)
}

// parseConversation tolerates models wrapping the JSON in prose.
func parseConversation(text string) (conversation, error) {
	var conv conversation
	if err := json.Unmarshal([]byte(text), &conv); err == nil {
		return conv, nil
	}
	if m := jsonObjectRe.FindString(text); m != "" {
		if err := json.Unmarshal([]byte(m), &conv); err == nil {
			return conv, nil
		}
	}
	// nothing parseable means nothing legible, not an error
	return conversation{}, nil
}

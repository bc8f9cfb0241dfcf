// Package transcribe turns captured audio files into text via the OpenAI
// transcription API.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

type OpenAIClient struct {
	HTTPClient *http.Client
	Endpoint   string
	APIKey     string
	Model      string
}

func NewOpenAIClient(apiKey string) *OpenAIClient {
	return &OpenAIClient{
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		Endpoint:   "https://api.openai.com/v1/audio/transcriptions",
		APIKey:     apiKey,
		Model:      "whisper-1",
	}
}

// Transcribe uploads the audio file and returns the recognized text. An empty
// transcript is returned as "", nil; the caller decides whether that is an
// error for its flow.
func (c *OpenAIClient) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("openai api key missing")
	}
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return "", fmt.Errorf("read audio: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio); err != nil {
		return "", err
	}
	_ = writer.WriteField("model", c.Model)
	_ = writer.WriteField("response_format", "json")
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("openai transcription error %d: %s", resp.StatusCode, string(b))
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("openai transcription parse: %w", err)
	}
	return out.Text, nil
}

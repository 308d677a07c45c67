package inference

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

// OllamaBackend runs inference against a local Ollama instance.
type OllamaBackend struct {
	Model   string
	BaseURL string
	client  *http.Client
}

// NewOllamaBackend creates a new Ollama backend.
func NewOllamaBackend(model, baseURL string) *OllamaBackend {
	return &OllamaBackend{
		Model:   model,
		BaseURL: baseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// Init verifies Ollama is running and the configured model is available.
func (o *OllamaBackend) Init(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", o.BaseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned %d", resp.StatusCode)
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decoding model list: %w", err)
	}

	modelBase := strings.SplitN(o.Model, ":", 2)[0]
	for _, m := range result.Models {
		if strings.Contains(m.Name, modelBase) {
			return nil
		}
	}
	return fmt.Errorf("ollama model %q not found", o.Model)
}

// Ask sends the question and context to Ollama and parses the answer.
func (o *OllamaBackend) Ask(ctx context.Context, question, contextText string) (Answer, error) {
	body := map[string]any{
		"model": o.Model,
		"messages": []map[string]string{
			{"role": "user", "content": buildAskPrompt(question, contextText)},
		},
		"stream": false,
		"options": map[string]any{
			"num_predict": 256,
			"temperature": 0.1,
		},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return Answer{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.BaseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return Answer{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return Answer{}, fmt.Errorf("ollama API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return Answer{}, fmt.Errorf("ollama API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Answer{}, fmt.Errorf("decoding response: %w", err)
	}

	return parseAnswer(result.Message.Content), nil
}

// Ping issues a promptless generate request. Ollama loads the model into
// memory for such a request without producing tokens, so the probe both
// checks liveness and keeps the model resident between real calls.
func (o *OllamaBackend) Ping(ctx context.Context) error {
	data, err := json.Marshal(map[string]any{"model": o.Model})
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.BaseURL+"/api/generate", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ollama API returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// Close is a no-op; Ollama holds no client-side resources.
func (o *OllamaBackend) Close() {}

package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OpenAIClient calls any OpenAI-compatible /v1/chat/completions endpoint.
// Works with the OpenAI API itself as well as vLLM, LiteLLM, OpenRouter and
// other self-hosted gateways.
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewOpenAIClient builds an OpenAI-compatible Corrector.
// baseURL should include the /v1 prefix, e.g. "https://api.openai.com/v1".
// apiKey can be empty for local models that do not require authentication.
func NewOpenAIClient(baseURL, apiKey string) *OpenAIClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	return &OpenAIClient{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(apiKey),
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Correct implements Corrector using the chat completions API. Temperature
// and sampling are pinned so that correction output is deterministic.
func (c *OpenAIClient) Correct(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Model) == "" {
		return Result{}, fmt.Errorf("correction model required")
	}
	messages := make([]oaiMessage, 0, 2)
	if strings.TrimSpace(req.SystemInstructions) != "" {
		messages = append(messages, oaiMessage{Role: "system", Content: req.SystemInstructions})
	}
	messages = append(messages, oaiMessage{Role: "user", Content: req.UserText})

	body, err := json.Marshal(oaiChatRequest{
		Model:            req.Model,
		Messages:         messages,
		Temperature:      0,
		TopP:             1,
		PresencePenalty:  0,
		FrequencyPenalty: 0,
	})
	if err != nil {
		return Result{}, err
	}

	url := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("correction request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp oaiErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return Result{}, fmt.Errorf("correction api error: %s", errResp.Error.Message)
		}
		return Result{}, fmt.Errorf("correction api error: %s", resp.Status)
	}

	var chatResp oaiChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return Result{}, fmt.Errorf("correction decode: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return Result{}, fmt.Errorf("empty response from correction api")
	}
	text := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if text == "" {
		return Result{}, fmt.Errorf("empty response from correction api")
	}
	return Result{
		OutputText:       text,
		PromptTokens:     chatResp.Usage.PromptTokens,
		CompletionTokens: chatResp.Usage.CompletionTokens,
	}, nil
}

// OpenAI-compatible request/response types.

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiChatRequest struct {
	Model            string       `json:"model"`
	Messages         []oaiMessage `json:"messages"`
	Temperature      float64      `json:"temperature"`
	TopP             float64      `json:"top_p"`
	PresencePenalty  float64      `json:"presence_penalty"`
	FrequencyPenalty float64      `json:"frequency_penalty"`
}

type oaiChatResponse struct {
	Choices []struct {
		Message oaiMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type oaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

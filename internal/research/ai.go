package research

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/ayush/research-hub/internal/models"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

const (
	analyzePrompt   = "Summarize and analyze research papers."
	summarizePrompt = "Write a concise markdown summary of the research post: key findings, methods and open questions."
	askPrompt       = "Answer questions about the research post using only its content. Say so when the post does not contain the answer."
)

// checkResp returns an error if the status is not 2xx, including the
// upstream body for debugging.
func checkResp(resp *http.Response, path string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return oops.In("ai").
		With("path", path, "status", resp.StatusCode).
		Errorf("ai service %s returned %d: %s", path, resp.StatusCode, string(body))
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// AIClient calls an OpenAI-compatible chat completions API.
type AIClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewAIClient(baseURL, apiKey, model string) *AIClient {
	if model == "" {
		model = DefaultModel
	}
	return &AIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Analyze returns a free-form analysis of submitted research content.
func (c *AIClient) Analyze(ctx context.Context, content string) (string, error) {
	return c.complete(ctx, analyzePrompt, "Analyze the following research: "+content)
}

// Summarize returns a markdown summary of a post.
func (c *AIClient) Summarize(ctx context.Context, post *models.Post) (string, error) {
	return c.complete(ctx, summarizePrompt, postPrompt(post))
}

// Ask answers a question about a post.
func (c *AIClient) Ask(ctx context.Context, post *models.Post, question string) (string, error) {
	return c.complete(ctx, askPrompt, postPrompt(post)+"\n\nQuestion: "+question)
}

func postPrompt(post *models.Post) string {
	return fmt.Sprintf("Title: %s\nCategory: %s\n\n%s", post.Title, post.Category, post.Content)
}

func (c *AIClient) complete(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", oops.In("ai").Wrap(err)
	}

	resp, err := c.post(ctx, "/chat/completions", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := checkResp(resp, "/chat/completions"); err != nil {
		return "", err
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", oops.In("ai").With("path", "/chat/completions").Wrapf(err, "decode")
	}
	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return "", oops.In("ai").Errorf("ai service returned an empty completion")
	}
	return result.Choices[0].Message.Content, nil
}

func (c *AIClient) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, oops.In("ai").With("path", path).Wrap(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, oops.In("ai").With("path", path).Wrap(err)
	}
	return resp, nil
}

package openai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mosli/threadloom/internal/config"
	"github.com/mosli/threadloom/internal/models"
)

const (
	chatCompletionsURL = "https://api.openai.com/v1/chat/completions"

	translationSystemPrompt = "You specialise in translating knowledge-dense X threads into Simplified Chinese while" +
		" preserving nuance, keeping URLs intact, and retaining the '-|' ordering markers for each" +
		" post."

	titleSystemPrompt = "You craft concise, high-signal Simplified Chinese titles for translated X threads." +
		" Produce catchy phrasing suitable for social media."
)

// Client calls the OpenAI Chat Completions API. Translated segments are
// exchanged with '-|' prefixes so ordering survives the round trip.
type Client struct {
	config     *config.OpenAIConfig
	client     *http.Client
	logger     *zap.Logger
	retryDelay time.Duration
}

func NewClient(cfg *config.OpenAIConfig, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is not configured")
	}
	return &Client{
		config:     cfg,
		client:     &http.Client{Timeout: time.Duration(cfg.RequestTimeout) * time.Second},
		logger:     logger,
		retryDelay: 2 * time.Second,
	}, nil
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
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) TranslateSegments(thread *models.Thread) ([]string, error) {
	content := c.BuildTranslationPrompt(thread)
	reply, err := c.complete(c.config.TranslationModel, translationSystemPrompt, content)
	if err != nil {
		return nil, err
	}
	return parseSegments(reply, len(thread.Segments))
}

func (c *Client) GenerateTitles(thread *models.Thread, translated []string, count int) ([]string, error) {
	reply, err := c.complete(c.config.SummaryModel, titleSystemPrompt, c.BuildTitlePrompt(translated, count))
	if err != nil {
		return nil, err
	}

	titles := make([]string, 0, count)
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		titles = append(titles, line)
		if len(titles) == count {
			break
		}
	}
	return titles, nil
}

func (c *Client) BuildTranslationPrompt(thread *models.Thread) string {
	lines := []string{"Please translate each tweet. Keep '-|' prefixes on every line."}
	for _, segment := range thread.Segments {
		lines = append(lines, "-|"+segment.Text)
	}
	return strings.Join(lines, "\n")
}

func (c *Client) BuildTitlePrompt(translated []string, count int) string {
	return fmt.Sprintf("Create %d standalone titles for the following translated thread."+
		" Return one title per line.\nThread:\n%s", count, strings.Join(translated, "\n"))
}

// complete sends one chat completion request, retrying rate limits and
// server errors with exponential backoff.
func (c *Client) complete(model, systemPrompt, userPrompt string) (string, error) {
	payload := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	retries := c.config.MaxRetries
	if retries < 1 {
		retries = 1
	}

	delay := c.retryDelay
	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		reply, retryable, err := c.send(body)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if !retryable || attempt == retries {
			break
		}
		c.logger.Warn("Retrying OpenAI request",
			zap.String("model", model),
			zap.Int("attempt", attempt),
			zap.Error(err))
		time.Sleep(delay)
		delay *= 2
	}
	return "", lastErr
}

func (c *Client) send(body []byte) (string, bool, error) {
	req, err := http.NewRequest("POST", chatCompletionsURL, bytes.NewBuffer(body))
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", retryable, fmt.Errorf("openai API returned status %d: %s", resp.StatusCode, string(raw))
	}

	var response chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", false, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", false, fmt.Errorf("openai API returned no choices")
	}
	return response.Choices[0].Message.Content, false, nil
}

func parseSegments(reply string, expected int) ([]string, error) {
	parts := make([]string, 0, expected)
	for _, part := range strings.Split(reply, "-|") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		parts = append(parts, part)
	}
	if len(parts) != expected {
		return nil, fmt.Errorf("expected %d segments from translator, received %d", expected, len(parts))
	}
	return parts, nil
}

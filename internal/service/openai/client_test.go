package openai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mosli/threadloom/internal/config"
	"github.com/mosli/threadloom/internal/models"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(&config.OpenAIConfig{
		APIKey:           "test-key",
		TranslationModel: "gpt-4o-mini",
		SummaryModel:     "gpt-4o",
		RequestTimeout:   1,
		MaxRetries:       1,
	}, zap.NewNop())
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(&config.OpenAIConfig{}, zap.NewNop())
	assert.Error(t, err)
}

func TestBuildTranslationPrompt(t *testing.T) {
	client := testClient(t)
	thread, err := models.NewThread("alice", []models.Segment{
		{SegmentID: "1", Text: "first post", Timestamp: time.Now()},
		{SegmentID: "2", Text: "second post", Timestamp: time.Now()},
	}, time.Now())
	require.NoError(t, err)

	prompt := client.BuildTranslationPrompt(thread)
	assert.Equal(t, "Please translate each tweet. Keep '-|' prefixes on every line.\n-|first post\n-|second post", prompt)
}

func TestBuildTitlePrompt(t *testing.T) {
	client := testClient(t)

	prompt := client.BuildTitlePrompt([]string{"line one", "line two"}, 3)
	assert.Contains(t, prompt, "Create 3 standalone titles")
	assert.Contains(t, prompt, "line one\nline two")
}

func TestParseSegments(t *testing.T) {
	parts, err := parseSegments("-|first\n-|second", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, parts)

	// Whitespace-only fragments between markers are dropped
	parts, err = parseSegments("  -| one -| two \n", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, parts)

	_, err = parseSegments("-|only", 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 2 segments from translator, received 1")
}

package openai_provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/smoradi/memochat/models"
)

// client implements the provider interface using OpenAI's API
type client struct {
	api             *openai.Client
	completionModel string
	embeddingModel  openai.EmbeddingModel
	temperature     float32
	maxTokens       int
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(apiKey, completionModel, embeddingModel string, temperature float64, maxTokens int, timeout time.Duration) *client {
	cfg := openai.DefaultConfig(apiKey)
	if timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	return &client{
		api:             openai.NewClientWithConfig(cfg),
		completionModel: completionModel,
		embeddingModel:  openai.EmbeddingModel(embeddingModel),
		temperature:     float32(temperature),
		maxTokens:       maxTokens,
	}
}

// ChatCompletion sends the prompt and returns the first completion's text.
// An empty string with a nil error means the API answered with no choices;
// the caller decides what to substitute.
func (c *client) ChatCompletion(ctx context.Context, messages []models.ChatMessage) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msgs[i] = openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.completionModel,
		Messages:    msgs,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// CreateEmbedding generates an embedding for the given text using OpenAI's API
func (c *client) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: c.embeddingModel,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return resp.Data[0].Embedding, nil
}

package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/cloo-solutions/supportiq/internal/compose"
	"github.com/cloo-solutions/supportiq/internal/triage"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = openai.SmallEmbedding3
	// DefaultEmbeddingDimensions is the expected dimension of embeddings from DefaultEmbeddingModel
	DefaultEmbeddingDimensions = 1536
	// DefaultChatModel is used for classification and reply generation
	DefaultChatModel = openai.GPT4oMini

	classifyTemperature = 0
	generateTemperature = 0.3
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when embedding has wrong dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrNoAPIKey is returned when OpenAI API key is not set
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
	// ErrEmptyCompletion is returned when the model answers with no choices
	ErrEmptyCompletion = errors.New("no completion returned")
)

// EmbeddingAPI defines the interface for embedding generation
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, text string) ([]float32, error)
}

// ChatRequest is a single system+user exchange
type ChatRequest struct {
	System      string
	User        string
	Temperature float32
}

// ChatAPI defines the interface for chat completions
type ChatAPI interface {
	CreateChat(ctx context.Context, req ChatRequest) (string, error)
}

// Client wraps the OpenAI API client. It embeds corpus text, classifies
// tickets and writes replies, with every call rate limited and passed through
// one circuit breaker.
type Client struct {
	api        EmbeddingAPI
	chat       ChatAPI
	model      string
	dimensions int
	limiter    *rate.Limiter
	breaker    *CircuitBreaker
}

type OpenAIAdapter struct {
	client         *openai.Client
	embeddingModel openai.EmbeddingModel
	chatModel      string
}

func NewOpenAIAdapter(cfg Config) *OpenAIAdapter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	embeddingModel := openai.EmbeddingModel(cfg.EmbeddingModel)
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = DefaultChatModel
	}

	return &OpenAIAdapter{
		client:         openai.NewClientWithConfig(clientCfg),
		embeddingModel: embeddingModel,
		chatModel:      chatModel,
	}
}

// CreateEmbeddings calls the OpenAI API to create embeddings
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: a.embeddingModel,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned")
	}

	return resp.Data[0].Embedding, nil
}

// CreateChat calls the chat completions API and returns the first choice
func (a *OpenAIAdapter) CreateChat(ctx context.Context, req ChatRequest) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.chatModel,
		Temperature: req.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	return resp.Choices[0].Message.Content, nil
}

type Config struct {
	APIKey              string
	BaseURL             string
	EmbeddingModel      string
	EmbeddingDimensions int
	ChatModel           string
	// RequestsPerSecond limits calls across all three capabilities; <= 0 disables it.
	RequestsPerSecond float64
	Burst             int
	Breaker           BreakerConfig
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	adapter := NewOpenAIAdapter(cfg)
	return newClient(adapter, adapter, cfg)
}

// NewClientFromEnv creates a new OpenAI client using OPENAI_API_KEY environment variable
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClient(apiKey), nil
}

func newClient(api EmbeddingAPI, chat ChatAPI, cfg Config) *Client {
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}

	limit := rate.Inf
	burst := cfg.Burst
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		if burst <= 0 {
			burst = 1
		}
	}

	model := cfg.EmbeddingModel
	if model == "" {
		model = string(DefaultEmbeddingModel)
	}

	return &Client{
		api:        api,
		chat:       chat,
		model:      model,
		dimensions: dimensions,
		limiter:    rate.NewLimiter(limit, burst),
		breaker:    NewCircuitBreaker("openai", cfg.Breaker),
	}
}

// EmbeddingModel names the model behind GenerateEmbedding
func (c *Client) EmbeddingModel() string {
	return c.model
}

// EmbeddingDimensions is the vector length GenerateEmbedding returns
func (c *Client) EmbeddingDimensions() int {
	return c.dimensions
}

// GenerateEmbedding generates an embedding for the given text
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	result, err := c.call(ctx, func() (interface{}, error) {
		return c.api.CreateEmbeddings(ctx, text)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}

	embedding := result.([]float32)
	if len(embedding) != c.dimensions {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrWrongDimensions, len(embedding), c.dimensions)
	}

	return embedding, nil
}

// Classify sends the triage prompt and returns the raw model output.
// Parsing and validation belong to the triage engine.
func (c *Client) Classify(ctx context.Context, req triage.Request) (string, error) {
	result, err := c.call(ctx, func() (interface{}, error) {
		return c.chat.CreateChat(ctx, ChatRequest{
			System:      req.System,
			User:        req.User,
			Temperature: classifyTemperature,
		})
	})
	if err != nil {
		return "", fmt.Errorf("failed to classify ticket: %w", err)
	}
	return result.(string), nil
}

// Generate writes an automatic reply or an agent draft for in
func (c *Client) Generate(ctx context.Context, in *compose.GenerationInput) (string, error) {
	req := generationRequest(in)
	result, err := c.call(ctx, func() (interface{}, error) {
		return c.chat.CreateChat(ctx, req)
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate reply: %w", err)
	}
	return strings.TrimSpace(result.(string)), nil
}

// BreakerState exposes the provider circuit state
func (c *Client) BreakerState() string {
	return c.breaker.State()
}

func (c *Client) call(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.breaker.Execute(ctx, fn)
}

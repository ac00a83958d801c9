package guidance

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	go_openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const promptTemplate = `You are a professional chef mentor.
The user is on this step: "%s".

Give one short, encouraging tip (max 20 words) to help them succeed at this specific step.
Focus on technique or sensory cues (smell, look).
Do not repeat the instruction.`

type OpenAIConfig struct {
	APIKey      string
	BaseURL     string // any OpenAI-compatible endpoint, e.g. Groq
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
	// RequestsPerSecond paces outgoing calls; zero disables pacing.
	RequestsPerSecond float64
}

func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		BaseURL:     "https://api.groq.com/openai/v1",
		Model:       "llama-3.3-70b-versatile",
		MaxTokens:   50,
		Temperature: 0.7,
		Timeout:     15 * time.Second,
	}
}

// OpenAIProvider asks a chat-completions endpoint for a step tip.
type OpenAIProvider struct {
	client  *go_openai.Client
	cfg     OpenAIConfig
	limiter *rate.Limiter
}

func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	clientCfg := go_openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	p := &OpenAIProvider{
		client: go_openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return p
}

// Model reports the model name used for completions.
func (p *OpenAIProvider) Model() string {
	return p.cfg.Model
}

func (p *OpenAIProvider) StepGuidance(ctx context.Context, instruction string) (string, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, go_openai.ChatCompletionRequest{
		Model: p.cfg.Model,
		Messages: []go_openai.ChatCompletionMessage{
			{Role: go_openai.ChatMessageRoleUser, Content: fmt.Sprintf(promptTemplate, instruction)},
		},
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("guidance: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	tip := strings.TrimSpace(resp.Choices[0].Message.Content)
	if tip == "" {
		return "", ErrEmptyResponse
	}
	return tip, nil
}

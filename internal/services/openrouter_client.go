package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/complainator-backend/internal/logger"
	"github.com/yungbote/complainator-backend/internal/utils"
)

const defaultRetryAfter = 60 * time.Second

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatParams overrides the client's configured sampling defaults. A nil field
// keeps the default.
type ChatParams struct {
	Temperature *float64
	MaxTokens   *int
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

// ChatCompletionResponse is the provider's wire shape, decoded in a single
// step. A 200 body can still carry an error envelope instead of choices.
type ChatCompletionResponse struct {
	Choices []ChatChoice   `json:"choices"`
	Error   *ProviderError `json:"error,omitempty"`
}

type ChatChoice struct {
	Message ChatMessage `json:"message"`
}

type ProviderError struct {
	Message string `json:"message"`
}

type OpenRouterClient interface {
	SendChat(ctx context.Context, messages []ChatMessage, model string, params *ChatParams) (*ChatCompletionResponse, error)
}

type openRouterClient struct {
	log         *logger.Logger
	httpClient  *http.Client
	endpointURL string
	apiKey      string

	defaultModel       string
	defaultTemperature float64
	defaultMaxTokens   int

	retry   retryPolicy
	breaker *circuitBreaker
}

func NewOpenRouterClient(log *logger.Logger) (OpenRouterClient, error) {
	serviceLog := log.With("service", "OpenRouterClient")
	apiKey := utils.GetEnv("OPENROUTER_API_KEY", "", log)
	if apiKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY is not set")
	}
	endpointURL := utils.GetEnv("OPENROUTER_ENDPOINT_URL", "https://openrouter.ai/api/v1/chat/completions", log)
	defaultModel := utils.GetEnv("OPENROUTER_DEFAULT_MODEL", "gpt-3.5-turbo", log)
	defaultTemperature := utils.GetEnvAsFloat("OPENROUTER_DEFAULT_TEMPERATURE", 0.7, log)
	defaultMaxTokens := utils.GetEnvAsInt("OPENROUTER_DEFAULT_MAX_TOKENS", 500, log)
	timeoutSec := utils.GetEnvAsInt("OPENROUTER_TIMEOUT_SECONDS", 60, log)

	return &openRouterClient{
		log:                serviceLog,
		httpClient:         &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		endpointURL:        endpointURL,
		apiKey:             apiKey,
		defaultModel:       defaultModel,
		defaultTemperature: defaultTemperature,
		defaultMaxTokens:   defaultMaxTokens,
		retry:              newRetryPolicy(3, exponentialBackoff),
		breaker:            newCircuitBreaker(5, 30*time.Second),
	}, nil
}

func (c *openRouterClient) SendChat(ctx context.Context, messages []ChatMessage, model string, params *ChatParams) (*ChatCompletionResponse, error) {
	payload := c.buildPayload(messages, model, params)
	c.log.Debug("Sending chat completion request", "model", payload.Model, "messages", len(payload.Messages))

	var resp *ChatCompletionResponse
	err := c.retry.execute(ctx, func() error {
		r, callErr := c.doOnce(ctx, payload)
		if callErr != nil {
			return callErr
		}
		resp = r
		return nil
	}, isRetryableGatewayErr)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &TimeoutError{Err: err}
		}
		return nil, err
	}
	return resp, nil
}

func (c *openRouterClient) buildPayload(messages []ChatMessage, model string, params *ChatParams) chatCompletionRequest {
	if model == "" {
		model = c.defaultModel
	}
	temperature := c.defaultTemperature
	maxTokens := c.defaultMaxTokens
	if params != nil {
		if params.Temperature != nil {
			temperature = *params.Temperature
		}
		if params.MaxTokens != nil {
			maxTokens = *params.MaxTokens
		}
	}
	return chatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	}
}

func (c *openRouterClient) doOnce(ctx context.Context, payload chatCompletionRequest) (*ChatCompletionResponse, error) {
	if err := c.breaker.allow(); err != nil {
		c.log.Warn("Circuit breaker open, failing fast")
		return nil, &GatewayError{Message: "circuit breaker open, request not attempted", Err: err}
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, &GatewayError{Message: "failed to encode request payload", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL, &buf)
	if err != nil {
		return nil, &GatewayError{Message: "failed to build request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return nil, &TimeoutError{Err: err}
			}
			return nil, ctxErr
		}
		c.breaker.recordFailure()
		c.log.Warn("Transport failure calling OpenRouter", "error", err)
		return nil, &TransientTransportError{Err: err}
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		c.breaker.recordFailure()
		return nil, &TransientTransportError{Err: readErr}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.classifyHTTPError(resp, raw)
	}

	c.breaker.recordSuccess()

	var parsed ChatCompletionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		c.log.Error("Failed to parse OpenRouter response as JSON", "error", err)
		return nil, &GatewayError{Message: "invalid JSON response from OpenRouter API", Err: err}
	}
	if parsed.Error != nil {
		c.log.Error("OpenRouter returned error envelope in 200 response", "message", parsed.Error.Message)
		return nil, &GatewayError{Message: fmt.Sprintf("OpenRouter API error: %s", parsed.Error.Message)}
	}
	return &parsed, nil
}

func (c *openRouterClient) classifyHTTPError(resp *http.Response, body []byte) error {
	c.log.Warn("OpenRouter API returned non-success status", "status", resp.StatusCode)
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return &AuthenticationError{Message: "invalid API key or unauthorized access"}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{
			Message:    "rate limit exceeded",
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case resp.StatusCode >= 500:
		c.breaker.recordFailure()
		return &ServerError{StatusCode: resp.StatusCode}
	default:
		return &GatewayError{Message: fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, truncateBody(body))}
	}
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return defaultRetryAfter
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs <= 0 {
		return defaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}

func truncateBody(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}

// Transport failures and 429 responses are worth another attempt; everything
// else surfaces to the caller on the spot.
func isRetryableGatewayErr(err error) bool {
	var transient *TransientTransportError
	if errors.As(err, &transient) {
		return true
	}
	var rateLimited *RateLimitError
	return errors.As(err, &rateLimited)
}

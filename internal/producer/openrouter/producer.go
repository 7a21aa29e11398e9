// Package openrouter implements a streaming chat-completions text producer.
package openrouter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/metrics"
	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/summary"
)

const (
	defaultBaseURL       = "https://openrouter.ai/api/v1/chat/completions"
	defaultModel         = "openrouter/auto"
	defaultHeaderTimeout = 90 * time.Second

	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultRetryMaxDelay  = 5 * time.Second

	doneSentinel      = "[DONE]"
	maxErrorBodyBytes = 32 << 10
	maxLineBytes      = 1 << 20
)

var errEmptyCompletion = errors.New("produce stream: empty completion")

// Config captures the runtime settings required to talk to the model API.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Referer string
	Title   string
	// Timeout bounds the wait for response headers. The stream body itself
	// is bounded by the caller's context.
	Timeout time.Duration
}

// Producer streams completions from an OpenRouter-compatible
// chat-completions endpoint.
type Producer struct {
	cfg        Config
	httpClient *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
}

// Option customizes the producer.
type Option func(*Producer)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Producer) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the default attempt count (defaults to 3).
func WithRetryMaxAttempts(attempts int) Option {
	return func(p *Producer) {
		p.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(p *Producer) {
		p.retryBaseDelay = baseDelay
		p.retryMaxDelay = maxDelay
	}
}

// New constructs a Producer using the supplied configuration.
func New(cfg Config, opts ...Option) *Producer {
	timeout := defaultHeaderTimeout
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}

	transport := http.DefaultTransport
	if base, ok := transport.(*http.Transport); ok {
		cloned := base.Clone()
		cloned.ResponseHeaderTimeout = timeout
		transport = cloned
	}

	p := &Producer{
		cfg: Config{
			APIKey:  strings.TrimSpace(cfg.APIKey),
			BaseURL: strings.TrimSpace(cfg.BaseURL),
			Model:   strings.TrimSpace(cfg.Model),
			Referer: strings.TrimSpace(cfg.Referer),
			Title:   strings.TrimSpace(cfg.Title),
			Timeout: timeout,
		},
		httpClient:       &http.Client{Transport: transport},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.cfg.BaseURL == "" {
		p.cfg.BaseURL = defaultBaseURL
	}
	if p.cfg.Model == "" {
		p.cfg.Model = defaultModel
	}
	if p.httpClient == nil {
		p.httpClient = &http.Client{}
	}
	return p
}

// Model reports the configured model identifier.
func (p *Producer) Model() string {
	return p.cfg.Model
}

type chatStreamRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// streamChunk tolerates both the streaming schema (delta) and the legacy
// completion text field, since providers behind OpenRouter mix them.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("produce request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Produce streams a completion for the prompt. emit is invoked once per
// delta in arrival order; the assembled text is returned when the stream
// finishes. Only failures before the first delta are retried; once the
// caller has seen output the error is terminal.
func (p *Producer) Produce(ctx context.Context, prompt string, emit func(delta string) error) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("produce: prompt required")
	}
	if p.cfg.APIKey == "" {
		return "", errors.New("produce: api key required")
	}

	attempts := p.retryAttempts()
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		text, emitted, err := p.streamOnce(ctx, prompt, emit)
		if err == nil {
			metrics.ObserveProducerRequest("ok")
			return text, nil
		}

		var rateErr *summary.RateLimitedError
		if errors.As(err, &rateErr) {
			metrics.ObserveProducerRequest("rate_limited")
			return "", err
		}
		if emitted {
			metrics.ObserveProducerRequest("error")
			return "", err
		}

		delay, retry := p.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			metrics.ObserveProducerRequest("error")
			return "", err
		}
		if sleepErr := p.sleep(ctx, delay); sleepErr != nil {
			metrics.ObserveProducerRequest("error")
			return "", sleepErr
		}
		lastErr = err
	}

	metrics.ObserveProducerRequest("error")
	if lastErr == nil {
		lastErr = errors.New("unknown retry failure")
	}
	return "", fmt.Errorf("produce: failed after %d attempts: %w", attempts, lastErr)
}

func (p *Producer) streamOnce(ctx context.Context, prompt string, emit func(string) error) (string, bool, error) {
	encoded, err := json.Marshal(chatStreamRequest{
		Model:       p.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0,
		Stream:      true,
	})
	if err != nil {
		return "", false, fmt.Errorf("produce request: encode body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", false, fmt.Errorf("produce request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if p.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", p.cfg.Referer)
		req.Header.Set("Referer", p.cfg.Referer)
	}
	if p.cfg.Title != "" {
		req.Header.Set("X-Title", p.cfg.Title)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("produce request: http error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		if resp.StatusCode == http.StatusTooManyRequests {
			return "", false, &summary.RateLimitedError{RetryAfter: retryAfter}
		}
		return "", false, &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: retryAfter,
		}
	}

	return p.readStream(resp.Body, emit)
}

// readStream consumes `data:` lines until the [DONE] sentinel or EOF. The
// emitted flag reports whether any delta reached the caller, which decides
// retry eligibility upstream.
func (p *Producer) readStream(r io.Reader, emit func(string) error) (string, bool, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var full strings.Builder
	emitted := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == doneSentinel {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return "", emitted, fmt.Errorf("produce stream: decode chunk: %w", err)
		}
		if chunk.Error != nil {
			return "", emitted, fmt.Errorf("produce stream: api error: %s", strings.TrimSpace(chunk.Error.Message))
		}

		delta := extractDelta(chunk)
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		emitted = true
		if emit != nil {
			if err := emit(delta); err != nil {
				return "", emitted, fmt.Errorf("produce stream: emit delta: %w", err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", emitted, fmt.Errorf("produce stream: read: %w", err)
	}

	text := strings.TrimSpace(full.String())
	if text == "" {
		return "", emitted, errEmptyCompletion
	}
	return text, emitted, nil
}

func extractDelta(chunk streamChunk) string {
	for _, choice := range chunk.Choices {
		if choice.Delta.Content != "" {
			return choice.Delta.Content
		}
		if choice.Text != "" {
			return choice.Text
		}
	}
	return ""
}

func (p *Producer) retryAttempts() int {
	if p.retryMaxAttempts <= 0 {
		return 1
	}
	return p.retryMaxAttempts
}

func (p *Producer) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || err == nil {
		return 0, false
	}
	if ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	if errors.Is(err, errEmptyCompletion) {
		return p.backoffDelay(attempt), true
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode >= http.StatusInternalServerError:
			if statusErr.RetryAfter > 0 {
				return p.capDelay(statusErr.RetryAfter), true
			}
			return p.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return p.backoffDelay(attempt), true
	}

	return 0, false
}

// backoffDelay doubles per attempt: attempt 1 -> base, attempt 2 -> base*2.
func (p *Producer) backoffDelay(attempt int) time.Duration {
	base := p.retryBaseDelay
	if base <= 0 {
		return 0
	}
	maxDelay := p.retryMaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultRetryMaxDelay
	}

	delay := base
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			delay = maxDelay
			break
		}
		delay *= 2
	}
	return p.capDelay(delay)
}

func (p *Producer) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	maxDelay := p.retryMaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultRetryMaxDelay
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

func (p *Producer) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}

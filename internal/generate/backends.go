package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bethropolis/spanedit/internal/logger"
)

// Backend names registered by NewRegistry.
const (
	BackendChat   = "chat"
	BackendText   = "text"
	BackendSimple = "simple"
)

// httpBackend holds what every HTTP back-end shares.
type httpBackend struct {
	name   string
	cfg    Config
	client *http.Client
}

func newHTTPBackend(name string, cfg Config, client *http.Client) httpBackend {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return httpBackend{name: name, cfg: cfg, client: client}
}

func (b httpBackend) Name() string { return b.name }

func (b httpBackend) fail(err error) error {
	if errors.Is(err, context.Canceled) {
		return ErrCancelled
	}
	return &Error{Kind: KindRequest, Backend: b.name, Err: err}
}

// post sends payload and returns the response. The caller closes the body.
func (b httpBackend) post(ctx context.Context, payload interface{}, stream bool) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, b.fail(fmt.Errorf("encode request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, b.fail(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	if b.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)
	}

	logger.DebugTagf("generate", "POST %s (%s, %d bytes, stream=%v)", b.cfg.Endpoint, b.name, len(body), stream)
	resp, err := b.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}
		return nil, b.fail(err)
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, b.fail(fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(msg))))
	}
	return resp, nil
}

// complete posts payload and extracts the text of a non-streamed response.
func (b httpBackend) complete(ctx context.Context, payload interface{}) (Result, error) {
	resp, err := b.post(ctx, payload, false)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ErrCancelled
		}
		return Result{}, b.fail(fmt.Errorf("read response: %w", err))
	}
	text, err := ExtractText(data)
	if err != nil {
		return Result{}, b.fail(err)
	}
	return Completed(text), nil
}

func (b httpBackend) stream(ctx context.Context, payload interface{}) (Result, error) {
	resp, err := b.post(ctx, payload, true)
	if err != nil {
		return Result{}, err
	}
	return Streaming(newSSEStream(resp.Body)), nil
}

// ChatBackend speaks the chat-completions shape.
type ChatBackend struct{ httpBackend }

// NewChatBackend creates a chat-completions back-end.
func NewChatBackend(cfg Config, client *http.Client) *ChatBackend {
	return &ChatBackend{newHTTPBackend(BackendChat, cfg, client)}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatPayload struct {
	Model       string        `json:"model,omitempty"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

// Generate implements Backend.
func (b *ChatBackend) Generate(ctx context.Context, req Request) (Result, error) {
	payload := chatPayload{
		Model:       req.Options.Model,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   req.Options.MaxTokens,
		Temperature: req.Options.Temperature,
		Stream:      req.Options.Stream,
	}
	if req.Options.Stream {
		return b.stream(ctx, payload)
	}
	return b.complete(ctx, payload)
}

// TextBackend speaks the legacy text-completions shape.
type TextBackend struct{ httpBackend }

// NewTextBackend creates a text-completions back-end.
func NewTextBackend(cfg Config, client *http.Client) *TextBackend {
	return &TextBackend{newHTTPBackend(BackendText, cfg, client)}
}

type textPayload struct {
	Model       string  `json:"model,omitempty"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature"`
	Stream      bool    `json:"stream"`
}

// Generate implements Backend.
func (b *TextBackend) Generate(ctx context.Context, req Request) (Result, error) {
	payload := textPayload{
		Model:       req.Options.Model,
		Prompt:      req.Prompt,
		MaxTokens:   req.Options.MaxTokens,
		Temperature: req.Options.Temperature,
		Stream:      req.Options.Stream,
	}
	if req.Options.Stream {
		return b.stream(ctx, payload)
	}
	return b.complete(ctx, payload)
}

// SimpleBackend posts only the prompt and reads a single text field back.
// It never streams.
type SimpleBackend struct{ httpBackend }

// NewSimpleBackend creates a simple back-end.
func NewSimpleBackend(cfg Config, client *http.Client) *SimpleBackend {
	return &SimpleBackend{newHTTPBackend(BackendSimple, cfg, client)}
}

type simplePayload struct {
	Prompt    string `json:"prompt"`
	MaxLength int    `json:"max_length,omitempty"`
}

// Generate implements Backend.
func (b *SimpleBackend) Generate(ctx context.Context, req Request) (Result, error) {
	return b.complete(ctx, simplePayload{Prompt: req.Prompt, MaxLength: req.Options.MaxTokens})
}

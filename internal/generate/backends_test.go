package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatBackendCompleted(t *testing.T) {
	var got chatPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"rewritten\n"}}]}`)
	}))
	defer srv.Close()

	b := NewChatBackend(Config{Endpoint: srv.URL, APIKey: "secret"}, srv.Client())
	res, err := b.Generate(context.Background(), Request{
		Prompt:  "fix this",
		Options: Options{Model: "m1", MaxTokens: 64, Temperature: 0.5},
	})
	require.NoError(t, err)

	text, err := Collect(context.Background(), b.Name(), res, nil)
	require.NoError(t, err)
	assert.Equal(t, "rewritten", text)
	assert.Equal(t, "m1", got.Model)
	assert.Equal(t, []chatMessage{{Role: "user", Content: "fix this"}}, got.Messages)
	assert.Equal(t, 64, got.MaxTokens)
	assert.False(t, got.Stream)
}

func TestChatBackendStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"role\":\"assistant\"}}]}\n\n")
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\" world\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	b := NewChatBackend(Config{Endpoint: srv.URL}, srv.Client())
	res, err := b.Generate(context.Background(), Request{Prompt: "p", Options: Options{Stream: true}})
	require.NoError(t, err)
	require.True(t, res.IsStreaming())

	var progress []string
	text, err := Collect(context.Background(), b.Name(), res, func(acc string) { progress = append(progress, acc) })
	require.NoError(t, err)
	assert.Equal(t, "Hello world", text)
	assert.Equal(t, []string{"Hello", "Hello world"}, progress)
}

func TestTextBackendStreamingBadEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"text\":\"ok\"}]}\n\ndata: {broken\n\n")
	}))
	defer srv.Close()

	b := NewTextBackend(Config{Endpoint: srv.URL}, srv.Client())
	res, err := b.Generate(context.Background(), Request{Prompt: "p", Options: Options{Stream: true}})
	require.NoError(t, err)

	_, err = Collect(context.Background(), b.Name(), res, nil)
	var genErr *Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, KindRequest, genErr.Kind)
}

func TestTextBackendResults(t *testing.T) {
	var got textPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"results":[{"text":"from results"}]}`)
	}))
	defer srv.Close()

	b := NewTextBackend(Config{Endpoint: srv.URL}, srv.Client())
	res, err := b.Generate(context.Background(), Request{Prompt: "the prompt"})
	require.NoError(t, err)
	text, ok := res.Text()
	require.True(t, ok)
	assert.Equal(t, "from results", text)
	assert.Equal(t, "the prompt", got.Prompt)
}

func TestSimpleBackendIgnoresStream(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"output":"simple text"}`)
	}))
	defer srv.Close()

	b := NewSimpleBackend(Config{Endpoint: srv.URL}, srv.Client())
	res, err := b.Generate(context.Background(), Request{Prompt: "p", Options: Options{Stream: true, MaxTokens: 10}})
	require.NoError(t, err)
	assert.False(t, res.IsStreaming())
	text, _ := res.Text()
	assert.Equal(t, "simple text", text)
	assert.Equal(t, map[string]interface{}{"prompt": "p", "max_length": float64(10)}, got)
}

func TestBackendHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	b := NewChatBackend(Config{Endpoint: srv.URL}, srv.Client())
	_, err := b.Generate(context.Background(), Request{Prompt: "p"})
	var genErr *Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, KindRequest, genErr.Kind)
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestBackendCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	b := NewTextBackend(Config{Endpoint: srv.URL}, srv.Client())
	_, err := b.Generate(ctx, Request{Prompt: "p"})
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"chat", "simple", "text"}, r.Names())

	b, err := r.New("text", Config{Endpoint: "http://localhost"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "text", b.Name())

	_, err = r.New("kobold", Config{}, nil)
	assert.Error(t, err)

	assert.Error(t, r.Register("chat", nil))
	assert.Error(t, r.Register("", nil))
}

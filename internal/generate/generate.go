// Package generate talks to text generation back-ends that produce
// replacement text for a selected passage.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrCancelled is returned when the caller aborted a generation.
var ErrCancelled = errors.New("generation cancelled")

// ErrorKind classifies generation failures.
type ErrorKind int

const (
	KindRequest ErrorKind = iota // the back-end call failed
	KindPreset                   // a required preset is missing
	KindEmpty                    // the back-end returned no text
)

func (k ErrorKind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindPreset:
		return "preset"
	case KindEmpty:
		return "empty"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a generation failure surfaced to the user.
type Error struct {
	Kind    ErrorKind
	Backend string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("generation %s error (%s)", e.Kind, e.Backend)
	}
	return fmt.Sprintf("generation %s error (%s): %v", e.Kind, e.Backend, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Options are the sampling settings sent with a request.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
	Stream      bool
}

// Request is one generation call.
type Request struct {
	Prompt  string
	Options Options
}

// Backend produces text for a prompt.
type Backend interface {
	Name() string
	Generate(ctx context.Context, req Request) (Result, error)
}

// Config describes how to reach a back-end.
type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// Chunk is one piece of streamed output. Accumulated chunks carry the whole
// text so far; the others carry only the new text.
type Chunk struct {
	Text        string
	Accumulated bool
}

// Stream yields chunks until Next reports false. Err then reports why the
// stream ended, nil for a normal end.
type Stream interface {
	Next() (Chunk, bool)
	Err() error
	Close() error
}

// Result is either a completed text or a stream of chunks.
type Result struct {
	text   string
	stream Stream
}

// Completed wraps a finished response text.
func Completed(text string) Result { return Result{text: text} }

// Streaming wraps a stream.
func Streaming(s Stream) Result { return Result{stream: s} }

// IsStreaming reports whether the result is a stream.
func (r Result) IsStreaming() bool { return r.stream != nil }

// Text returns the completed text. ok is false for a stream.
func (r Result) Text() (string, bool) { return r.text, r.stream == nil }

// Stream returns the stream. ok is false for a completed result.
func (r Result) Stream() (Stream, bool) { return r.stream, r.stream != nil }

// Collect turns a result into final text. onChunk, when set, receives the
// text accumulated so far after each streamed chunk. A cancelled context
// discards partial text and returns ErrCancelled. Trailing newlines are
// dropped; all other text is kept as produced.
func Collect(ctx context.Context, backend string, r Result, onChunk func(string)) (string, error) {
	text, ok := r.Text()
	if !ok {
		s, _ := r.Stream()
		defer s.Close()

		var b strings.Builder
		for {
			c, more := s.Next()
			if !more {
				break
			}
			if c.Accumulated {
				b.Reset()
			}
			b.WriteString(c.Text)
			if onChunk != nil {
				onChunk(b.String())
			}
			if ctx.Err() != nil {
				break
			}
		}
		if ctx.Err() != nil {
			return "", ErrCancelled
		}
		if err := s.Err(); err != nil {
			return "", &Error{Kind: KindRequest, Backend: backend, Err: err}
		}
		text = b.String()
	}

	if ctx.Err() != nil {
		return "", ErrCancelled
	}
	text = strings.TrimRight(text, "\r\n")
	if strings.TrimSpace(text) == "" {
		return "", &Error{Kind: KindEmpty, Backend: backend, Err: errors.New("no text in response")}
	}
	return text, nil
}

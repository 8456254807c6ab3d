package generate

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// sseStream reads a server-sent event body of JSON payloads ending with a
// "[DONE]" event.
type sseStream struct {
	body io.ReadCloser
	sc   *bufio.Scanner
	err  error
	done bool
}

func newSSEStream(body io.ReadCloser) *sseStream {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &sseStream{body: body, sc: sc}
}

func (s *sseStream) Next() (Chunk, bool) {
	for !s.done && s.sc.Scan() {
		line := bytes.TrimSpace(s.sc.Bytes())
		if !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}
		data := bytes.TrimSpace(line[len("data:"):])
		if bytes.Equal(data, []byte("[DONE]")) {
			s.done = true
			break
		}
		text, err := extractDelta(data)
		if err != nil {
			s.err = fmt.Errorf("decode stream event: %w", err)
			s.done = true
			break
		}
		if text == "" {
			continue
		}
		return Chunk{Text: text}, true
	}
	if !s.done {
		s.done = true
		if err := s.sc.Err(); err != nil && s.err == nil {
			s.err = err
		}
	}
	return Chunk{}, false
}

func (s *sseStream) Err() error { return s.err }

func (s *sseStream) Close() error { return s.body.Close() }

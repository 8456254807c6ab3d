package chat

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/bethropolis/spanedit/internal/logger"
)

//go:embed message.schema.json
var messageSchemaSource string

var messageSchema = jsonschema.MustCompileString("message.schema.json", messageSchemaSource)

// jsonlMessage is the subset of a chat line the editor reads and writes.
// Other fields of a line are carried through unchanged.
type jsonlMessage struct {
	Name     string   `json:"name"`
	IsUser   bool     `json:"is_user"`
	IsSystem bool     `json:"is_system"`
	Mes      string   `json:"mes"`
	Swipes   []string `json:"swipes"`
	SwipeID  int      `json:"swipe_id"`
}

// JSONLStore is a chat file with one JSON object per line. A first line
// without a "mes" field is treated as chat metadata and kept as is.
type JSONLStore struct {
	*Memory

	path string

	fileMu   sync.Mutex
	header   []byte
	fields   []map[string]json.RawMessage
	lastHash [sha256.Size]byte
}

// OpenJSONL loads a chat file.
func OpenJSONL(path string) (*JSONLStore, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read chat: %w", err)
	}

	s := &JSONLStore{path: abs}
	header, fields, msgs, err := parseJSONL(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(abs), err)
	}
	s.header, s.fields = header, fields
	s.lastHash = sha256.Sum256(data)
	s.Memory = NewMemory(chatIDFromPath(abs), msgs)
	s.Memory.PersistFunc = func(context.Context, []Message) error { return s.write() }

	logger.Infof("Loaded chat %s: %d message(s)", s.ChatID(), len(msgs))
	return s, nil
}

func chatIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Path returns the absolute path of the chat file.
func (s *JSONLStore) Path() string { return s.path }

func parseJSONL(data []byte) ([]byte, []map[string]json.RawMessage, []Message, error) {
	var (
		header []byte
		fields []map[string]json.RawMessage
		msgs   []Message
	)

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}

		var raw map[string]json.RawMessage
		if err := json.Unmarshal(line, &raw); err != nil {
			return nil, nil, nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if _, ok := raw["mes"]; !ok && header == nil && len(msgs) == 0 {
			header = append([]byte(nil), line...)
			continue
		}

		var doc interface{}
		if err := json.Unmarshal(line, &doc); err != nil {
			return nil, nil, nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if err := messageSchema.Validate(doc); err != nil {
			return nil, nil, nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		var jm jsonlMessage
		if err := json.Unmarshal(line, &jm); err != nil {
			return nil, nil, nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		msgs = append(msgs, Message{
			ID:       IndexID(len(msgs)),
			Name:     jm.Name,
			IsUser:   jm.IsUser,
			IsSystem: jm.IsSystem,
			Raw:      jm.Mes,
			Swipes:   jm.Swipes,
			SwipeID:  jm.SwipeID,
		})
		fields = append(fields, raw)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, nil, err
	}
	return header, fields, msgs, nil
}

func (s *JSONLStore) encode(msgs []Message) ([]byte, error) {
	var buf bytes.Buffer
	if s.header != nil {
		buf.Write(s.header)
		buf.WriteByte('\n')
	}

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, msg := range msgs {
		var line map[string]json.RawMessage
		if i < len(s.fields) {
			line = make(map[string]json.RawMessage, len(s.fields[i])+3)
			for k, v := range s.fields[i] {
				line[k] = v
			}
		} else {
			line = make(map[string]json.RawMessage, 6)
			line["name"] = mustJSON(msg.Name)
			line["is_user"] = mustJSON(msg.IsUser)
			line["is_system"] = mustJSON(msg.IsSystem)
		}
		line["mes"] = mustJSON(msg.Raw)
		if msg.HasSwipes() {
			line["swipes"] = mustJSON(msg.Swipes)
			line["swipe_id"] = mustJSON(msg.SwipeID)
		}
		if err := enc.Encode(line); err != nil {
			return nil, fmt.Errorf("encode message %s: %w", msg.ID, err)
		}
	}
	return buf.Bytes(), nil
}

func mustJSON(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// write replaces the chat file with the current messages.
func (s *JSONLStore) write() error {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	data, err := s.encode(s.Messages())
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write chat: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync chat: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close chat: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace chat: %w", err)
	}
	// Set under fileMu, so the watcher cannot check the new file before this.
	s.lastHash = sha256.Sum256(data)
	logger.DebugTagf("chat", "Wrote %s (%d bytes)", s.path, len(data))
	return nil
}

// OwnWrite reports whether data matches the last file contents this store
// read or wrote.
func (s *JSONLStore) OwnWrite(data []byte) bool {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()
	return sha256.Sum256(data) == s.lastHash
}

// Reload re-reads the chat file and returns the ids of changed messages.
func (s *JSONLStore) Reload() ([]string, error) {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read chat: %w", err)
	}
	header, fields, msgs, err := parseJSONL(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(s.path), err)
	}

	s.header, s.fields = header, fields
	s.lastHash = sha256.Sum256(data)
	changed := s.Replace(s.ChatID(), msgs)
	logger.DebugTagf("chat", "Reloaded %s: %d changed message(s)", s.path, len(changed))
	return changed, nil
}

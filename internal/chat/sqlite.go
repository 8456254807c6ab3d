package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bethropolis/spanedit/internal/logger"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS chats (
    id          TEXT PRIMARY KEY,
    created_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
    chat_id     TEXT NOT NULL REFERENCES chats(id),
    ordinal     INTEGER NOT NULL,
    name        TEXT NOT NULL DEFAULT '',
    is_user     INTEGER NOT NULL DEFAULT 0,
    is_system   INTEGER NOT NULL DEFAULT 0,
    mes         TEXT NOT NULL,
    swipe_id    INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (chat_id, ordinal)
);

CREATE TABLE IF NOT EXISTS swipes (
    chat_id     TEXT NOT NULL,
    ordinal     INTEGER NOT NULL,
    idx         INTEGER NOT NULL,
    mes         TEXT NOT NULL,
    PRIMARY KEY (chat_id, ordinal, idx),
    FOREIGN KEY (chat_id, ordinal) REFERENCES messages(chat_id, ordinal)
);
`

// ErrNoChats is returned when a database holds no chat to open.
var ErrNoChats = errors.New("database holds no chats")

// SQLiteStore keeps chats in a SQLite database. The active chat is held in
// memory; Persist writes the changed messages back in one transaction.
type SQLiteStore struct {
	*Memory
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the database at path and loads chatID, or the
// oldest chat when chatID is empty. A new database has no chat loaded until
// CreateChat is called.
func OpenSQLite(ctx context.Context, path, chatID string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &SQLiteStore{db: db, path: path, Memory: NewMemory("", nil)}
	s.Memory.PersistFunc = s.persist

	if chatID == "" {
		chats, err := s.Chats(ctx)
		if err != nil {
			db.Close()
			return nil, err
		}
		if len(chats) == 0 {
			return s, nil
		}
		chatID = chats[0]
	}
	if err := s.Switch(ctx, chatID); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Chats lists chat ids, oldest first.
func (s *SQLiteStore) Chats(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM chats ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CreateChat inserts a chat with the given messages and makes it active.
func (s *SQLiteStore) CreateChat(ctx context.Context, chatID string, msgs []Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO chats (id, created_at) VALUES (?, ?)`,
		chatID, time.Now().UnixNano()); err != nil {
		return fmt.Errorf("insert chat: %w", err)
	}
	for i, msg := range msgs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (chat_id, ordinal, name, is_user, is_system, mes, swipe_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			chatID, i, msg.Name, msg.IsUser, msg.IsSystem, msg.Raw, msg.SwipeID); err != nil {
			return fmt.Errorf("insert message %d: %w", i, err)
		}
		if err := writeSwipes(ctx, tx, chatID, i, msg.Swipes); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return s.Switch(ctx, chatID)
}

// Switch loads another chat, discarding unpersisted changes of the current one.
func (s *SQLiteStore) Switch(ctx context.Context, chatID string) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chats WHERE id = ?`, chatID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("look up chat: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: chat %q", ErrNoChats, chatID)
	}

	msgs, err := s.loadMessages(ctx, chatID)
	if err != nil {
		return err
	}
	s.Replace(chatID, msgs)
	logger.Infof("Loaded chat %s from %s: %d message(s)", chatID, s.path, len(msgs))
	return nil
}

func (s *SQLiteStore) loadMessages(ctx context.Context, chatID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ordinal, name, is_user, is_system, mes, swipe_id
		FROM messages WHERE chat_id = ? ORDER BY ordinal`, chatID)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var (
			ordinal int
			msg     Message
		)
		if err := rows.Scan(&ordinal, &msg.Name, &msg.IsUser, &msg.IsSystem, &msg.Raw, &msg.SwipeID); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.ID = IndexID(ordinal)
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	swipeRows, err := s.db.QueryContext(ctx, `
		SELECT ordinal, idx, mes FROM swipes WHERE chat_id = ? ORDER BY ordinal, idx`, chatID)
	if err != nil {
		return nil, fmt.Errorf("load swipes: %w", err)
	}
	defer swipeRows.Close()

	byOrdinal := make(map[string]int, len(msgs))
	for i, msg := range msgs {
		byOrdinal[msg.ID] = i
	}
	for swipeRows.Next() {
		var (
			ordinal, idx int
			text         string
		)
		if err := swipeRows.Scan(&ordinal, &idx, &text); err != nil {
			return nil, fmt.Errorf("scan swipe: %w", err)
		}
		if i, ok := byOrdinal[IndexID(ordinal)]; ok {
			msgs[i].Swipes = append(msgs[i].Swipes, text)
		}
	}
	return msgs, swipeRows.Err()
}

func writeSwipes(ctx context.Context, tx *sql.Tx, chatID string, ordinal int, swipes []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM swipes WHERE chat_id = ? AND ordinal = ?`, chatID, ordinal); err != nil {
		return fmt.Errorf("clear swipes: %w", err)
	}
	if len(swipes) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO swipes (chat_id, ordinal, idx, mes) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()
	for idx, text := range swipes {
		if _, err := stmt.ExecContext(ctx, chatID, ordinal, idx, text); err != nil {
			return fmt.Errorf("insert swipe: %w", err)
		}
	}
	return nil
}

// persist writes the dirty messages of the active chat.
func (s *SQLiteStore) persist(ctx context.Context, dirty []Message) error {
	if len(dirty) == 0 {
		return nil
	}
	chatID := s.ChatID()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, msg := range dirty {
		ordinal, err := strconv.Atoi(msg.ID)
		if err != nil {
			return fmt.Errorf("message id %q: %w", msg.ID, err)
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE messages SET mes = ?, swipe_id = ? WHERE chat_id = ? AND ordinal = ?`,
			msg.Raw, msg.SwipeID, chatID, ordinal)
		if err != nil {
			return fmt.Errorf("update message %s: %w", msg.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO messages (chat_id, ordinal, name, is_user, is_system, mes, swipe_id)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				chatID, ordinal, msg.Name, msg.IsUser, msg.IsSystem, msg.Raw, msg.SwipeID); err != nil {
				return fmt.Errorf("insert message %s: %w", msg.ID, err)
			}
		}
		if err := writeSwipes(ctx, tx, chatID, ordinal, msg.Swipes); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

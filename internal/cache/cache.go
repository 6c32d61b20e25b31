// Package cache keeps a local read-only copy of chats and their messages in
// SQLite, so the chat list and the last generated reply are available
// without a round trip. The backend stays the source of truth.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fakeyudi/testgen/internal/chat"
)

// ErrNotCached is returned when a chat has never been stored locally.
var ErrNotCached = errors.New("chat not cached")

// activeChatKey names the row in settings holding the chat the last
// generate command used.
const activeChatKey = "active_chat"

// Cache is a SQLite-backed chat cache.
type Cache struct {
	db *sql.DB
}

// DefaultPath returns $XDG_CACHE_HOME/testgen/cache.db, falling back to
// ~/.cache/testgen/cache.db.
func DefaultPath() (string, error) {
	dir := os.Getenv("XDG_CACHE_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving cache dir: %w", err)
		}
		dir = filepath.Join(home, ".cache")
	}
	return filepath.Join(dir, "testgen", "cache.db"), nil
}

// Open opens or creates the cache database at path. ":memory:" opens a
// private in-memory cache.
func Open(path string) (*Cache, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping cache: %w", err)
	}
	c := &Cache{db: db}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize cache schema: %w", err)
	}
	return c, nil
}

func (c *Cache) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS chats (
		chat_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT '',
		synced_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		chat_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		message_id TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL,
		timestamp TEXT NOT NULL DEFAULT '',
		sender TEXT NOT NULL DEFAULT '',
		metadata TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (chat_id, seq)
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := c.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	// Caches written before sender and metadata were kept lack the columns.
	for _, col := range []string{"sender", "metadata"} {
		if err := c.addColumn("messages", col); err != nil {
			return err
		}
	}
	return nil
}

// addColumn adds a TEXT column to table unless it is already there.
func (c *Cache) addColumn(table, column string) error {
	rows, err := c.db.Query(`SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("inspect %s: %w", table, err)
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("inspect %s: %w", table, err)
	}
	rows.Close()
	stmt := fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s TEXT NOT NULL DEFAULT ''`, table, column)
	if _, err := c.db.Exec(stmt); err != nil {
		return fmt.Errorf("add %s.%s: %w", table, column, err)
	}
	return nil
}

// Close releases the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// PutChats upserts the chat rows. Messages are left alone; a chat listed
// without messages keeps whatever was cached for it.
func (c *Cache) PutChats(ctx context.Context, chats []chat.Chat) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	for _, ch := range chats {
		if ch.ChatID == "" {
			continue
		}
		_, err := tx.ExecContext(ctx, `
		INSERT INTO chats (chat_id, name, created_at, synced_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			name = excluded.name,
			created_at = excluded.created_at,
			synced_at = excluded.synced_at`,
			ch.ChatID, ch.Name, ch.CreatedAt, now)
		if err != nil {
			return fmt.Errorf("upsert chat %s: %w", ch.ChatID, err)
		}
	}
	return tx.Commit()
}

// PutMessages replaces the cached history of chatID with msgs, in order.
// A chat row is created if none exists.
func (c *Cache) PutMessages(ctx context.Context, chatID string, msgs []chat.Message) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO chats (chat_id, name, synced_at) VALUES (?, '', ?)
	ON CONFLICT(chat_id) DO UPDATE SET synced_at = excluded.synced_at`,
		chatID, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("touch chat %s: %w", chatID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	for i, m := range msgs {
		sender, err := encodeJSON(m.Sender)
		if err != nil {
			return fmt.Errorf("encode sender: %w", err)
		}
		meta, err := encodeJSON(m.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (chat_id, seq, message_id, role, type, content, timestamp, sender, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			chatID, i, m.ID, m.Role, string(m.Type), m.Content, m.Timestamp, sender, meta)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}
	return tx.Commit()
}

// Chats returns every cached chat, most recently synced first.
func (c *Cache) Chats(ctx context.Context) ([]chat.Chat, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT chat_id, name, created_at FROM chats ORDER BY synced_at DESC, chat_id`)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer rows.Close()

	var out []chat.Chat
	for rows.Next() {
		var ch chat.Chat
		if err := rows.Scan(&ch.ChatID, &ch.Name, &ch.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat row: %w", err)
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// Messages returns the cached history of chatID, oldest first.
func (c *Cache) Messages(ctx context.Context, chatID string) ([]chat.Message, error) {
	var exists int
	err := c.db.QueryRowContext(ctx, `SELECT 1 FROM chats WHERE chat_id = ?`, chatID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotCached, chatID)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup chat: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT message_id, role, type, content, timestamp, sender, metadata
		FROM messages WHERE chat_id = ? ORDER BY seq`, chatID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []chat.Message
	for rows.Next() {
		m := chat.Message{ChatID: chatID}
		var typ, sender, meta string
		if err := rows.Scan(&m.ID, &m.Role, &typ, &m.Content, &m.Timestamp, &sender, &meta); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		m.Type = chat.MessageType(typ)
		if sender != "" {
			m.Sender = new(chat.Sender)
			if err := json.Unmarshal([]byte(sender), m.Sender); err != nil {
				return nil, fmt.Errorf("decode sender: %w", err)
			}
		}
		if meta != "" {
			m.Metadata = new(chat.Metadata)
			if err := json.Unmarshal([]byte(meta), m.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Latest returns the content of the newest cached message of chatID.
func (c *Cache) Latest(ctx context.Context, chatID string) (string, error) {
	msgs, err := c.Messages(ctx, chatID)
	if err != nil {
		return "", err
	}
	if len(msgs) == 0 {
		return "", chat.ErrNoMessages
	}
	return msgs[len(msgs)-1].Content, nil
}

// FindByName returns the id of the most recently synced chat whose name
// matches (case-insensitive).
func (c *Cache) FindByName(ctx context.Context, name string) (string, error) {
	var id string
	err := c.db.QueryRowContext(ctx, `
		SELECT chat_id FROM chats WHERE lower(name) = ?
		ORDER BY synced_at DESC LIMIT 1`, strings.ToLower(name)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrNotCached, name)
	}
	if err != nil {
		return "", fmt.Errorf("lookup chat by name: %w", err)
	}
	return id, nil
}

// SetActiveChat records the chat follow-up commands should use.
func (c *Cache) SetActiveChat(ctx context.Context, chatID string) error {
	_, err := c.db.ExecContext(ctx, `
	INSERT INTO settings (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value`, activeChatKey, chatID)
	if err != nil {
		return fmt.Errorf("set active chat: %w", err)
	}
	return nil
}

// ActiveChat returns the recorded active chat, or "" when none is set.
func (c *Cache) ActiveChat(ctx context.Context) (string, error) {
	var id string
	err := c.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, activeChatKey).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read active chat: %w", err)
	}
	return id, nil
}

// Clear drops every cached row. Logout calls it.
func (c *Cache) Clear(ctx context.Context) error {
	for _, table := range []string{"messages", "chats", "settings"} {
		if _, err := c.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

// encodeJSON renders a nil pointer as the empty string.
func encodeJSON[T any](v *T) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

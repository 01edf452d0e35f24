package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/tnicklin/autoguild/logger"
)

var _ Store = (*SQLiteStore)(nil)

const memoryDSN = "file::memory:?_foreign_keys=on&_busy_timeout=5000"

//go:embed schema/migrations/*.sql
var migrations embed.FS

var ErrNotOpen = errors.New("store is not open")

type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	logger logger.Logger
}

type Params struct {
	Path   string
	Logger logger.Logger
}

func NewSQLiteStore(p Params) *SQLiteStore {
	log := p.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &SQLiteStore{
		path:   p.Path,
		logger: log,
	}
}

func (s *SQLiteStore) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	dsn := memoryDSN
	if s.path != "" {
		if dir := filepath.Dir(s.path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create store dir: %w", err)
			}
		}
		dsn = sqliteFileDSN(s.path)
	}

	database, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return err
	}
	// A single connection keeps an in-memory database alive and serializes writers.
	database.SetMaxOpenConns(1)
	database.SetMaxIdleConns(1)

	if err = database.PingContext(ctx); err != nil {
		_ = database.Close()
		return err
	}

	s.db = database
	if err := s.applyMigrations(ctx); err != nil {
		_ = database.Close()
		s.db = nil
		return err
	}

	s.logger.DebugW("store opened", "path", s.path)
	return nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// SavePendingDelete records d, replacing any entry for the same message.
func (s *SQLiteStore) SavePendingDelete(ctx context.Context, d PendingDelete) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return ErrNotOpen
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_deletes (channel_id, message_id, guild_id, due_at, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (channel_id, message_id) DO UPDATE SET
			guild_id = excluded.guild_id,
			due_at = excluded.due_at`,
		d.ChannelID, d.MessageID, d.GuildID, d.DueAt.UnixMilli(), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save pending delete: %w", err)
	}
	return nil
}

// RemovePendingDelete drops the entry for a message. Removing an unknown
// entry is not an error.
func (s *SQLiteStore) RemovePendingDelete(ctx context.Context, channelID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return ErrNotOpen
	}

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM pending_deletes WHERE channel_id = ? AND message_id = ?`,
		channelID, messageID,
	)
	if err != nil {
		return fmt.Errorf("remove pending delete: %w", err)
	}
	return nil
}

// ListPendingDeletes returns every entry ordered by due time.
func (s *SQLiteStore) ListPendingDeletes(ctx context.Context) ([]PendingDelete, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotOpen
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT guild_id, channel_id, message_id, due_at
		FROM pending_deletes
		ORDER BY due_at, channel_id, message_id`)
	if err != nil {
		return nil, fmt.Errorf("list pending deletes: %w", err)
	}
	defer rows.Close()

	var out []PendingDelete
	for rows.Next() {
		var (
			d     PendingDelete
			dueAt int64
		)
		if err := rows.Scan(&d.GuildID, &d.ChannelID, &d.MessageID, &dueAt); err != nil {
			return nil, err
		}
		d.DueAt = time.UnixMilli(dueAt)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) applyMigrations(ctx context.Context) error {
	if s.db == nil {
		return ErrNotOpen
	}

	entries, err := fs.ReadDir(migrations, "schema/migrations")
	if err != nil {
		return err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".sql") {
			files = append(files, name)
		}
	}
	sort.Strings(files)

	for _, name := range files {
		content, err := fs.ReadFile(migrations, "schema/migrations/"+name)
		if err != nil {
			return err
		}
		sqlText := strings.TrimSpace(string(content))
		if sqlText == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, sqlText); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
	}
	return nil
}

func sqliteFileDSN(path string) string {
	return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
}

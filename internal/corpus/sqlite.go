package corpus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
	_ "github.com/mattn/go-sqlite3"
)

// minRatio is the internal floor below which a candidate is not considered
// an answer at all.
const minRatio = 0.3

// SQLiteStore is a Collection backed by a local SQLite database.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

var _ Collection = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) a corpus database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("corpus path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create corpus directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open corpus database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init corpus schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(question, answer)
	);
	CREATE INDEX IF NOT EXISTS idx_documents_question ON documents(question);
	`
	_, err := s.db.Exec(schema)
	return err
}

// AddDocument persists one question/answer pair. Re-adding an identical pair
// is a no-op.
func (s *SQLiteStore) AddDocument(ctx context.Context, question, answer string) error {
	question = strings.TrimSpace(question)
	answer = strings.TrimSpace(answer)
	if question == "" || answer == "" {
		return errors.New("question and answer are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO documents (question, answer) VALUES (?, ?)`,
		question, answer,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// BestMatch scores every stored question against the query and returns the
// answer with the highest similarity ratio, or ErrNoAnswer when the best
// candidate falls below the internal floor.
func (s *SQLiteStore) BestMatch(ctx context.Context, question string) (Match, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Match{}, ErrNoAnswer
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT question, answer FROM documents`)
	if err != nil {
		return Match{}, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	best := Match{Ratio: -1}
	for rows.Next() {
		var stored, answer string
		if err := rows.Scan(&stored, &answer); err != nil {
			return Match{}, fmt.Errorf("scan document: %w", err)
		}
		ratio := similarity(question, stored)
		if ratio > best.Ratio {
			best = Match{Answer: answer, Ratio: ratio}
		}
	}
	if err := rows.Err(); err != nil {
		return Match{}, fmt.Errorf("iterate documents: %w", err)
	}

	if best.Ratio < minRatio {
		return Match{}, ErrNoAnswer
	}
	return best, nil
}

// Count reports how many documents are stored.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// similarity is a normalized Levenshtein ratio: 1.0 for identical strings,
// 0.0 for fully dissimilar ones.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 1.0
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(distance)/float64(longest)
}

package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	_ "modernc.org/sqlite"

	"ragchat/internal/domain"
	"ragchat/internal/vectorstore/memory"
)

var ErrDimensionMismatch = errors.New("vector dimension mismatch")

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	chunk_id    TEXT NOT NULL UNIQUE,
	document_id TEXT NOT NULL,
	idx         INTEGER NOT NULL,
	text        TEXT NOT NULL,
	vector      BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// Storage keeps chunks and vectors in a SQLite file so the index survives
// restarts. Search is brute force over rows cached in memory.
type Storage struct {
	db *sql.DB

	mu        sync.RWMutex
	dimension int
	cache     []row
	loaded    bool
}

type row struct {
	chunk  domain.Chunk
	vector []float64
}

// Open creates or opens the database at path.
func Open(path string) (*Storage, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, stmt := range []string{"PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL", schema} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init database: %w", err)
		}
	}
	s := &Storage{db: db}
	if v, ok, err := s.meta(context.Background(), "dimension"); err != nil {
		db.Close()
		return nil, err
	} else if ok {
		s.dimension, _ = strconv.Atoi(v)
	}
	return s, nil
}

func (s *Storage) Close() error { return s.db.Close() }

// Init records the vector dimension. Rows of another dimension are dropped.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension != 0 && s.dimension != dimension {
		if err := s.clearLocked(ctx); err != nil {
			return err
		}
	}
	if err := s.setMeta(ctx, "dimension", strconv.Itoa(dimension)); err != nil {
		return err
	}
	s.dimension = dimension
	return nil
}

func (s *Storage) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vectors {
		if len(v) != s.dimension {
			return ErrDimensionMismatch
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks (chunk_id, document_id, idx, text, vector)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET document_id = excluded.document_id, idx = excluded.idx,
			text = excluded.text, vector = excluded.vector`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ChunkID, c.DocumentID, c.Index, c.Text, encodeVector(vectors[i])); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", c.ChunkID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.loaded = false
	s.cache = nil
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	rows, err := s.rows(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, len(rows))
	for i, r := range rows {
		results[i] = domain.SearchResult{Chunk: r.chunk, Score: memory.Dot(r.vector, vector)}
	}
	memory.SortByScore(results)
	return results[:min(topK, len(results))], nil
}

// Clear removes all chunks and the stored fingerprint.
func (s *Storage) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked(ctx)
}

func (s *Storage) clearLocked(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM meta WHERE key = 'fingerprint'`); err != nil {
		return err
	}
	s.cache = nil
	s.loaded = false
	return nil
}

// Fingerprint returns the recorded corpus fingerprint, or "" if none.
func (s *Storage) Fingerprint(ctx context.Context) (string, error) {
	v, _, err := s.meta(ctx, "fingerprint")
	return v, err
}

func (s *Storage) SetFingerprint(ctx context.Context, fingerprint string) error {
	return s.setMeta(ctx, "fingerprint", fingerprint)
}

// Count reports the number of stored chunks.
func (s *Storage) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

func (s *Storage) rows(ctx context.Context) ([]row, error) {
	s.mu.RLock()
	if s.loaded {
		defer s.mu.RUnlock()
		return s.cache, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.cache, nil
	}
	rs, err := s.db.QueryContext(ctx, `SELECT chunk_id, document_id, idx, text, vector FROM chunks ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rs.Close()
	var out []row
	for rs.Next() {
		var r row
		var blob []byte
		if err := rs.Scan(&r.chunk.ChunkID, &r.chunk.DocumentID, &r.chunk.Index, &r.chunk.Text, &blob); err != nil {
			return nil, err
		}
		r.vector, err = decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", r.chunk.ChunkID, err)
		}
		out = append(out, r)
	}
	if err := rs.Err(); err != nil {
		return nil, err
	}
	s.cache = out
	s.loaded = true
	return out, nil
}

func (s *Storage) meta(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Storage) setMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func encodeVector(v []float64) []byte {
	buf := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(x))
	}
	return buf
}

func decodeVector(b []byte) ([]float64, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("corrupt vector blob of %d bytes", len(b))
	}
	v := make([]float64, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return v, nil
}

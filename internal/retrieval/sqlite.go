package retrieval

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/Zhanna110/worldsmith-v3/internal/types"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is a persistent Store implementation using SQLite. Embeddings
// are stored as BLOBs and similarity is computed brute-force in Go, which is
// fine at vault scale (thousands of chunks).
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dims   int
	closed bool
}

// SQLiteConfig holds configuration for SQLiteStore.
type SQLiteConfig struct {
	Path       string // Path to SQLite database file
	Dimensions int    // Embedding dimensions (e.g. 768 for text-embedding-004)
}

// NewSQLiteStore creates a persistent section/chunk store at the given path.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, types.NewError(types.CONFIG_VALIDATION_FAILED, "database path cannot be empty")
	}
	if cfg.Dimensions <= 0 {
		return nil, types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("dimensions must be positive, got %d", cfg.Dimensions))
	}

	// WAL mode so scanner appends don't block concurrent retrieval reads.
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", cfg.Path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, types.WrapError(types.STORE_FAILED, "failed to open database", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, types.WrapError(types.STORE_FAILED, "failed to ping database", err)
	}

	store := &SQLiteStore{db: db, dims: cfg.Dimensions}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, types.WrapError(types.STORE_FAILED, "failed to initialize schema", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sections (
			id TEXT PRIMARY KEY,
			source_file TEXT NOT NULL,
			heading TEXT,
			content TEXT NOT NULL,
			metadata TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			section_id TEXT NOT NULL REFERENCES sections(id),
			content TEXT NOT NULL,
			embedding BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_chunks_section ON chunks(section_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// AppendSection stores a section and its chunks in one transaction, so
// readers see either the pre- or post-append state.
func (s *SQLiteStore) AppendSection(ctx context.Context, section ParentSection, chunks []Chunk) error {
	if err := section.Validate(); err != nil {
		return err
	}
	for i := range chunks {
		if err := chunks[i].Validate(); err != nil {
			return err
		}
		if chunks[i].SectionID != section.ID {
			return types.NewError(types.STORE_FAILED,
				fmt.Sprintf("chunk %s references section %s, expected %s",
					chunks[i].ID, chunks[i].SectionID, section.ID))
		}
		if len(chunks[i].Embedding) != s.dims {
			return types.NewError(types.STORE_FAILED,
				fmt.Sprintf("embedding dimensions mismatch: expected %d, got %d",
					s.dims, len(chunks[i].Embedding)))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return types.NewError(types.STORE_UNAVAILABLE, "retrieval store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.WrapError(types.STORE_FAILED, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	var metadataJSON []byte
	if section.Metadata != nil {
		metadataJSON, err = json.Marshal(section.Metadata)
		if err != nil {
			return types.WrapError(types.STORE_FAILED, "failed to serialize section metadata", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO sections (id, source_file, heading, content, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, section.ID, section.SourceFile, section.Heading, section.Text, metadataJSON, section.CreatedAt)
	if err != nil {
		return types.WrapError(types.STORE_FAILED, "failed to insert section", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunks (id, section_id, content, embedding)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return types.WrapError(types.STORE_FAILED, "failed to prepare chunk statement", err)
	}
	defer stmt.Close()

	for i := range chunks {
		embeddingBytes := serializeEmbedding(chunks[i].Embedding)
		if _, err := stmt.ExecContext(ctx, chunks[i].ID, chunks[i].SectionID, chunks[i].Text, embeddingBytes); err != nil {
			return types.WrapError(types.STORE_FAILED, "failed to insert chunk", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return types.WrapError(types.STORE_FAILED, "failed to commit transaction", err)
	}

	return nil
}

// RankChunks scores every stored chunk against the query embedding, sorted by
// descending similarity.
func (s *SQLiteStore) RankChunks(ctx context.Context, embedding []float64) ([]ChunkMatch, error) {
	if len(embedding) != s.dims {
		return nil, types.NewError(types.RETRIEVAL_FAILED,
			fmt.Sprintf("query embedding dimensions mismatch: expected %d, got %d", s.dims, len(embedding)))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, types.NewError(types.STORE_UNAVAILABLE, "retrieval store is closed")
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id, section_id, embedding FROM chunks")
	if err != nil {
		return nil, types.WrapError(types.RETRIEVAL_FAILED, "failed to query chunks", err)
	}
	defer rows.Close()

	var matches []ChunkMatch
	for rows.Next() {
		var id, sectionID string
		var embeddingBytes []byte
		if err := rows.Scan(&id, &sectionID, &embeddingBytes); err != nil {
			return nil, types.WrapError(types.RETRIEVAL_FAILED, "failed to scan chunk", err)
		}

		stored, err := deserializeEmbedding(embeddingBytes, s.dims)
		if err != nil {
			return nil, types.WrapError(types.RETRIEVAL_FAILED, "failed to deserialize embedding", err)
		}

		matches = append(matches, ChunkMatch{
			ChunkID:    id,
			SectionID:  sectionID,
			Similarity: cosineSimilarity(embedding, stored),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, types.WrapError(types.RETRIEVAL_FAILED, "error iterating chunks", err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	return matches, nil
}

// GetSection retrieves a section by ID.
func (s *SQLiteStore) GetSection(ctx context.Context, id string) (*ParentSection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, types.NewError(types.STORE_UNAVAILABLE, "retrieval store is closed")
	}

	row := s.db.QueryRowContext(ctx,
		"SELECT id, source_file, heading, content, metadata, created_at FROM sections WHERE id = ?", id)

	var section ParentSection
	var heading sql.NullString
	var metadataJSON []byte
	err := row.Scan(&section.ID, &section.SourceFile, &heading, &section.Text, &metadataJSON, &section.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, types.NewError(types.SECTION_NOT_FOUND, fmt.Sprintf("parent section not found: %s", id))
	}
	if err != nil {
		return nil, types.WrapError(types.RETRIEVAL_FAILED, "failed to get section", err)
	}

	section.Heading = heading.String
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &section.Metadata); err != nil {
			return nil, types.WrapError(types.RETRIEVAL_FAILED, "failed to deserialize section metadata", err)
		}
	}

	return &section, nil
}

// SectionCount returns the number of stored sections.
func (s *SQLiteStore) SectionCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sections").Scan(&count); err != nil {
		return 0, types.WrapError(types.RETRIEVAL_FAILED, "failed to count sections", err)
	}
	return count, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// serializeEmbedding converts a float64 slice to bytes for BLOB storage,
// 8 bytes per value, little-endian.
func serializeEmbedding(embedding []float64) []byte {
	bytes := make([]byte, len(embedding)*8)
	for i, val := range embedding {
		bits := math.Float64bits(val)
		offset := i * 8
		for b := 0; b < 8; b++ {
			bytes[offset+b] = byte(bits >> (8 * b))
		}
	}
	return bytes
}

// deserializeEmbedding converts BLOB bytes back to a float64 slice.
func deserializeEmbedding(bytes []byte, dims int) ([]float64, error) {
	if len(bytes) != dims*8 {
		return nil, fmt.Errorf("invalid embedding bytes length: expected %d, got %d", dims*8, len(bytes))
	}

	embedding := make([]float64, dims)
	for i := 0; i < dims; i++ {
		offset := i * 8
		var bits uint64
		for b := 0; b < 8; b++ {
			bits |= uint64(bytes[offset+b]) << (8 * b)
		}
		embedding[i] = math.Float64frombits(bits)
	}
	return embedding, nil
}

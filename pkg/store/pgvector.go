// Package store persists document chunks in Postgres with pgvector and
// serves filtered similarity queries over them.
package store

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/xhad/radar/internal/models"
	"github.com/xhad/radar/internal/types"
)

type VectorStoreConfig struct {
	ConnString  string
	TableName   string
	VectorDim   int
	BatchSize   int
	SearchLimit int
}

type VectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
}

func NewWithConfig(config VectorStoreConfig) (*VectorStore, error) {
	if config.TableName == "" {
		config.TableName = "document_chunks"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768 // Default for nomic-embed-text
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	if config.SearchLimit == 0 {
		config.SearchLimit = 5
	}

	pool, err := pgxpool.New(context.Background(), config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	vs := &VectorStore{
		config: config,
		pool:   pool,
	}

	if err := vs.initialize(); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *VectorStore) initialize() error {
	ctx := context.Background()

	// Enable pgvector extension
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %v", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			company_id TEXT NOT NULL,
			ticker TEXT,
			doc_type TEXT NOT NULL,
			fiscal_year INTEGER,
			section TEXT,
			content TEXT,
			embedding vector(%d),
			published_date BIGINT,
			language TEXT,
			source_file_id TEXT
		)`, vs.config.TableName, vs.config.VectorDim)

	_, err = vs.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %v", err)
	}

	// Create vector index
	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		vs.config.TableName, vs.config.TableName)

	_, err = vs.pool.Exec(ctx, createIndex)
	if err != nil {
		return fmt.Errorf("failed to create index: %v", err)
	}

	return nil
}

// Store upserts chunks in a single transaction. Chunks must arrive with
// their embeddings already computed; a chunk re-stored under the same id
// replaces the previous content and vector.
func (vs *VectorStore) Store(ctx context.Context, chunks []models.DocumentChunk) error {
	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, company_id, ticker, doc_type, fiscal_year, section,
			content, embedding, published_date, language, source_file_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			section = EXCLUDED.section,
			published_date = EXCLUDED.published_date`,
		vs.config.TableName)

	for _, chunk := range chunks {
		if len(chunk.Embedding) != vs.config.VectorDim {
			return fmt.Errorf("chunk %s: embedding dimension %d, store expects %d",
				chunk.ID, len(chunk.Embedding), vs.config.VectorDim)
		}

		_, err = tx.Exec(ctx, stmt,
			chunk.ID,
			chunk.CompanyID,
			chunk.Ticker,
			chunk.DocType,
			chunk.FiscalYear,
			chunk.Section,
			sanitizeUTF8(chunk.Text),
			pgvector.NewVector(chunk.Embedding),
			chunk.PublishedDate,
			chunk.Language,
			chunk.SourceFileID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %s: %v", chunk.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	return nil
}

// Query returns the chunks nearest to the embedding by cosine distance,
// restricted by any non-zero filter fields.
func (vs *VectorStore) Query(ctx context.Context, embedding []float32, filter types.ChunkFilter, limit int) ([]models.DocumentChunk, error) {
	if limit == 0 {
		limit = vs.config.SearchLimit
	}

	where, args := buildFilter(filter)
	args = append([]interface{}{pgvector.NewVector(embedding)}, args...)

	query := fmt.Sprintf(`
		SELECT id, company_id, ticker, doc_type, fiscal_year, section,
			content, published_date, language, source_file_id
		FROM %s
		%s
		ORDER BY embedding <=> $1
		LIMIT %d`,
		vs.config.TableName, where, limit)

	rows, err := vs.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %v", err)
	}
	defer rows.Close()

	var chunks []models.DocumentChunk
	for rows.Next() {
		var chunk models.DocumentChunk
		err := rows.Scan(
			&chunk.ID,
			&chunk.CompanyID,
			&chunk.Ticker,
			&chunk.DocType,
			&chunk.FiscalYear,
			&chunk.Section,
			&chunk.Text,
			&chunk.PublishedDate,
			&chunk.Language,
			&chunk.SourceFileID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		chunks = append(chunks, chunk)
	}

	return chunks, rows.Err()
}

// buildFilter turns the non-zero filter fields into a WHERE clause with
// placeholders starting at $2 ($1 is the query vector).
func buildFilter(filter types.ChunkFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	add := func(column string, value interface{}) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)+1))
	}

	if filter.CompanyID != "" {
		add("company_id", filter.CompanyID)
	}
	if filter.DocType != "" {
		add("doc_type", filter.DocType)
	}
	if filter.Section != "" {
		add("section", filter.Section)
	}
	if filter.FiscalYear != 0 {
		add("fiscal_year", filter.FiscalYear)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}

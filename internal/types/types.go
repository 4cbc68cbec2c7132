package types

import (
	"context"
	"net/http"

	"github.com/xhad/radar/internal/models"
)

// Response is the raw result of a rate-limited fetch.
type Response struct {
	Body       []byte
	StatusCode int
	Header     http.Header
	URL        string // final URL after redirects
}

// Fetcher retrieves a URL, blocking on the caller's rate policy and retrying
// transient failures before giving up.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// TableExtractor detects tables in a PDF and writes one CSV per table into
// outputDir, returning the written paths. Implementations are selected at
// construction time so the tiered fallback policy stays explicit.
type TableExtractor interface {
	Name() string
	ExtractTables(pdfPath, outputDir, stem string) ([]string, error)
}

// Embedder turns text into fixed-dimension vectors.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkFilter holds optional equality filters for similarity queries.
// Zero values mean "no filter".
type ChunkFilter struct {
	CompanyID  string
	DocType    string
	Section    string
	FiscalYear int
}

// ChunkStore persists document chunks and serves similarity queries.
type ChunkStore interface {
	Store(ctx context.Context, chunks []models.DocumentChunk) error
	Query(ctx context.Context, embedding []float32, filter ChunkFilter, limit int) ([]models.DocumentChunk, error)
	Close()
}

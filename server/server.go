// Package server exposes the chunk store over HTTP: a JSON search endpoint
// backed by embedding similarity, plus a health check.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/xhad/radar/internal/models"
	"github.com/xhad/radar/internal/types"
)

type Config struct {
	SearchLimit int
	Logger      *slog.Logger
}

type Server struct {
	config   Config
	embedder types.Embedder
	store    types.ChunkStore
	log      *slog.Logger
}

func NewWithConfig(embedder types.Embedder, store types.ChunkStore, config Config) *Server {
	if config.SearchLimit == 0 {
		config.SearchLimit = 5
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Server{
		config:   config,
		embedder: embedder,
		store:    store,
		log:      config.Logger,
	}
}

// SearchRequest is the body of POST /search. All filter fields are
// optional; zero values apply no filter.
type SearchRequest struct {
	Query      string `json:"query"`
	CompanyID  string `json:"company_id,omitempty"`
	DocType    string `json:"doc_type,omitempty"`
	Section    string `json:"section,omitempty"`
	FiscalYear int    `json:"fiscal_year,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

type SearchResult struct {
	ID            string `json:"id"`
	CompanyID     string `json:"company_id"`
	Ticker        string `json:"ticker,omitempty"`
	DocType       string `json:"doc_type"`
	FiscalYear    int    `json:"fiscal_year"`
	Section       string `json:"section,omitempty"`
	Text          string `json:"text"`
	PublishedDate int64  `json:"published_date,omitempty"`
	SourceFileID  string `json:"source_file_id,omitempty"`
}

type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler returns the server's route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", s.handleSearch)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// ListenAndServe blocks serving the API on addr.
func (s *Server) ListenAndServe(addr string) error {
	s.log.Info("starting search server", slog.String("addr", addr))
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "POST required"})
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "query is required"})
		return
	}
	if req.Limit <= 0 {
		req.Limit = s.config.SearchLimit
	}

	embeddings, err := s.embedder.CreateEmbedding(r.Context(), []string{req.Query})
	if err != nil {
		s.log.Error("error embedding query", slog.Any("err", err))
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "embedding failed"})
		return
	}

	filter := types.ChunkFilter{
		CompanyID:  req.CompanyID,
		DocType:    req.DocType,
		Section:    req.Section,
		FiscalYear: req.FiscalYear,
	}

	chunks, err := s.store.Query(r.Context(), embeddings[0], filter, req.Limit)
	if err != nil {
		s.log.Error("error querying chunks", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "query failed"})
		return
	}

	response := SearchResponse{Results: make([]SearchResult, 0, len(chunks))}
	for _, chunk := range chunks {
		response.Results = append(response.Results, toResult(chunk))
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func toResult(chunk models.DocumentChunk) SearchResult {
	return SearchResult{
		ID:            chunk.ID,
		CompanyID:     chunk.CompanyID,
		Ticker:        chunk.Ticker,
		DocType:       chunk.DocType,
		FiscalYear:    chunk.FiscalYear,
		Section:       chunk.Section,
		Text:          chunk.Text,
		PublishedDate: chunk.PublishedDate,
		SourceFileID:  chunk.SourceFileID,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/xhad/radar/internal/models"
	"github.com/xhad/radar/pkg/chunker"
	cfgPkg "github.com/xhad/radar/pkg/config"
	"github.com/xhad/radar/pkg/llm"
	"github.com/xhad/radar/pkg/manifest"
	"github.com/xhad/radar/pkg/store"
)

type Config struct {
	DataDir      string
	DBUrl        string
	BaseURL      string
	Model        string
	TableName    string
	VectorDim    int
	BatchSize    int
	ChunkSize    int
	ChunkOverlap int
	MaxChars     int
}

func main() {
	config := parseFlags()

	if err := run(config); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() Config {
	var config Config
	var configPath string

	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&config.DataDir, "data", "data", "Data package directory containing manifest.json")
	flag.StringVar(&config.DBUrl, "db-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	flag.StringVar(&config.BaseURL, "ollama-url", os.Getenv("OLLAMA_BASE_URL"), "Ollama server URL")
	flag.StringVar(&config.Model, "model", "", "Embedding model")
	flag.IntVar(&config.ChunkSize, "chunk-size", 0, "Size of text chunks")
	flag.IntVar(&config.ChunkOverlap, "chunk-overlap", 0, "Overlap between consecutive chunks")
	flag.Parse()

	if cfg, err := cfgPkg.LoadConfig(configPath); err == nil {
		if config.DBUrl == "" {
			config.DBUrl = cfg.Database.URL
		}
		if config.BaseURL == "" {
			config.BaseURL = cfg.Embedding.BaseURL
		}
		if config.Model == "" {
			config.Model = cfg.Embedding.Model
		}
		if config.ChunkSize == 0 {
			config.ChunkSize = cfg.Processor.ChunkSize
		}
		if config.ChunkOverlap == 0 {
			config.ChunkOverlap = cfg.Processor.ChunkOverlap
		}
		config.TableName = cfg.Database.TableName
		config.VectorDim = cfg.Database.VectorDim
		config.BatchSize = cfg.Database.BatchSize
		config.MaxChars = cfg.Embedding.MaxChars
	}

	return config
}

func run(config Config) error {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}

	m, err := manifest.Read(filepath.Join(config.DataDir, "manifest.json"))
	if err != nil {
		return fmt.Errorf("failed to read manifest: %v", err)
	}

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:    config.Model,
		BaseURL:  config.BaseURL,
		MaxChars: config.MaxChars,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %v", err)
	}

	vectorStore, err := store.NewWithConfig(store.VectorStoreConfig{
		ConnString: config.DBUrl,
		TableName:  config.TableName,
		VectorDim:  config.VectorDim,
		BatchSize:  config.BatchSize,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %v", err)
	}
	defer vectorStore.Close()

	color.Blue("\nChunking %d documents from %s\n", len(m.Files), config.DataDir)

	var chunks []models.DocumentChunk
	skipped := 0
	for _, file := range m.Files {
		text, err := documentText(config.DataDir, file)
		if err != nil {
			color.Yellow("⚠ %s: %v", file.FileID, err)
			skipped++
			continue
		}
		if strings.TrimSpace(text) == "" {
			skipped++
			continue
		}
		chunks = append(chunks, chunkDocument(file, text, config.ChunkSize, config.ChunkOverlap)...)
	}

	if len(chunks) == 0 {
		return fmt.Errorf("no chunks produced from %d documents", len(m.Files))
	}

	bar := progressbar.NewOptions(len(chunks),
		progressbar.OptionSetDescription(color.BlueString("🧮 Embedding chunks...")),
		progressbar.OptionSetItsString("chunks"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)

	ctx := context.Background()
	for start := 0; start < len(chunks); start += config.BatchSize {
		end := start + config.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Text
		}

		embeddings, err := embedder.CreateEmbedding(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed batch: %v", err)
		}
		for i := range batch {
			batch[i].Embedding = embeddings[i]
		}

		if err := vectorStore.Store(ctx, batch); err != nil {
			return fmt.Errorf("failed to store batch: %v", err)
		}
		bar.Add(len(batch))
	}
	bar.Finish()

	color.Green("\n✓ Loaded %d chunks from %d documents (%d skipped)",
		len(chunks), len(m.Files)-skipped, skipped)
	return nil
}

// documentText returns the chunkable text for one manifest record: the
// extracted text artifact when present, otherwise tag-stripped HTML for
// registry filings.
func documentText(dataDir string, file models.DocumentMetadata) (string, error) {
	if file.ExtractedTextPath != "" {
		data, err := os.ReadFile(filepath.Join(dataDir, filepath.FromSlash(file.ExtractedTextPath)))
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	if file.MIMEType == "text/html" {
		path, err := findDocument(dataDir, file.FileID)
		if err != nil {
			return "", err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return htmlText(data)
	}

	return "", fmt.Errorf("no extracted text for %s", file.MIMEType)
}

func findDocument(dataDir, fileID string) (string, error) {
	var found string
	err := filepath.WalkDir(filepath.Join(dataDir, "companies"), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == fileID {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", fmt.Errorf("document %s not on disk", fileID)
	}
	return found, nil
}

func htmlText(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Find("body").Text()), " "), nil
}

// chunkDocument splits one document's text and keys each chunk by the
// deterministic id {company_id}_{doc_type}_{fiscal_year}_{index}, so a
// reload replaces rather than duplicates. The section label carries the
// document type so store filters can narrow by it.
func chunkDocument(file models.DocumentMetadata, text string, chunkSize, overlap int) []models.DocumentChunk {
	date := documentDate(file)
	year := fiscalYear(date)

	// A record with no usable date is stamped at load time.
	published := time.Now().Unix()
	if parsed, err := time.Parse("2006-01-02", date); err == nil {
		published = parsed.Unix()
	}

	pieces := chunker.ChunkText(text, chunkSize, overlap)
	chunks := make([]models.DocumentChunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, models.DocumentChunk{
			ID:            fmt.Sprintf("%s_%s_%d_%d", file.CompanyID, file.DocType, year, i),
			CompanyID:     file.CompanyID,
			Ticker:        file.Ticker,
			DocType:       file.DocType,
			FiscalYear:    year,
			Section:       file.DocType,
			Text:          piece.Text,
			PublishedDate: published,
			Language:      file.Language,
			SourceFileID:  file.FileID,
		})
	}
	return chunks
}

// documentDate picks the most specific date a record carries: fiscal period
// end, then filing date, then document date.
func documentDate(file models.DocumentMetadata) string {
	if file.FiscalPeriodEnd != "" {
		return file.FiscalPeriodEnd
	}
	if file.FilingDate != "" {
		return file.FilingDate
	}
	return file.DocDate
}

func fiscalYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}

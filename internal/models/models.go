package models

import (
	"fmt"
	"time"
)

// Company identifies one tracked entity. Loaded from companies.yaml and
// read-only for the rest of the pipeline.
type Company struct {
	CompanyID         string `yaml:"company_id" json:"company_id"`
	CompanyName       string `yaml:"company_name" json:"company_name"`
	Ticker            string `yaml:"ticker" json:"ticker"`
	Exchange          string `yaml:"exchange" json:"exchange"`
	Country           string `yaml:"country" json:"country"`
	CIK               string `yaml:"cik,omitempty" json:"cik,omitempty"` // US-registered companies only
	IRURL             string `yaml:"ir_url" json:"ir_url"`
	PressURL          string `yaml:"press_url" json:"press_url"`
	SustainabilityURL string `yaml:"sustainability_url" json:"sustainability_url"`
}

// Document type tags. Closed set; the loader and vector store key off these.
// Interim reports, earnings slides, and transcripts have no fetcher yet and
// are reserved for licensed or secondary channels.
const (
	DocType10K            = "10k"
	DocType10Q            = "10q"
	DocType8K             = "8k"
	DocTypeDEF14A         = "def14a"
	DocTypeAnnualReport   = "annual_report"
	DocTypeInterimReport  = "interim_report"
	DocTypePressRelease   = "press_release"
	DocTypeEarningsSlides = "earnings_slides"
	DocTypeTranscript     = "transcript"
	DocTypeSustainability = "sustainability"
)

// Source trust levels.
const (
	SourcePrimary   = "primary"
	SourceSecondary = "secondary"
	SourceLicensed  = "licensed"
)

// Source channels used in file ids and the on-disk layout.
const (
	ChannelEdgar = "sec_edgar"
	ChannelIR    = "ir"
)

// FileID builds the canonical file identifier for a retrieved document.
// The format is a compatibility contract: extraction back-fill and chunk id
// construction both key off it, so it must stay byte-for-byte stable.
func FileID(companyID, docType, date, channel, lang, filename string) string {
	return fmt.Sprintf("%s__%s__%s__%s__%s__%s", companyID, docType, date, channel, lang, filename)
}

// DocumentMetadata is one record per retrieved document. Created when bytes
// are downloaded and validated, filled in once by the extractor, never
// deleted within a build.
type DocumentMetadata struct {
	FileID            string    `json:"file_id"`
	CompanyID         string    `json:"company_id"`
	CompanyName       string    `json:"company_name"`
	Ticker            string    `json:"ticker"`
	DocType           string    `json:"doc_type"`
	FiscalPeriodEnd   string    `json:"fiscal_period_end,omitempty"`
	FilingDate        string    `json:"filing_date,omitempty"`
	DocDate           string    `json:"doc_date,omitempty"`
	SourceType        string    `json:"source_type"`
	SourceURL         string    `json:"source_url"`
	FetchedAtUTC      time.Time `json:"fetched_at_utc"`
	ByteSize          int       `json:"byte_size"`
	MIMEType          string    `json:"mime_type"`
	SHA256            string    `json:"sha256"`
	Redistributable   bool      `json:"redistributable"`
	Confidence        float64   `json:"confidence"`
	ExtractedTextPath string    `json:"extracted_text_path,omitempty"`
	TableCSVPaths     []string  `json:"table_csv_paths"`
	ExtractionNotes   string    `json:"extraction_notes,omitempty"`
	Language          string    `json:"language"`
}

// PackageMetadata describes one build of the data package.
type PackageMetadata struct {
	AsOf         string `json:"as_of"`
	Since        string `json:"since"`
	PeerSet      string `json:"peer_set"`
	BuildVersion string `json:"build_version"`
	BuildHost    string `json:"build_host,omitempty"`
	GoVersion    string `json:"go_version,omitempty"`
	GitCommit    string `json:"git_commit,omitempty"`
	LicenseNotes string `json:"license_notes,omitempty"`
}

// Manifest is the complete index of a build: package metadata plus the
// ordered list of every document fetched during the run.
type Manifest struct {
	Package PackageMetadata    `json:"package"`
	Files   []DocumentMetadata `json:"files"`
}

// DocumentChunk is one embedding-ready unit of document text, keyed by the
// deterministic id {company_id}_{doc_type}_{fiscal_year}_{chunk_index}.
type DocumentChunk struct {
	ID            string
	CompanyID     string
	Ticker        string
	DocType       string
	FiscalYear    int
	Section       string
	Text          string
	Embedding     []float32
	PublishedDate int64 // epoch seconds
	Language      string
	SourceFileID  string
}

// Package edgar fetches filings from the SEC EDGAR registry: it lists recent
// filings per type from the Atom feed, resolves each filing's primary
// document from the archive index page, and downloads it with provenance
// metadata.
package edgar

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/xhad/radar/internal/models"
	"github.com/xhad/radar/internal/types"
)

const defaultBaseURL = "https://www.sec.gov"

// FilingTypes is the fixed set of registry filing types fetched per company.
var FilingTypes = []string{"10-K", "10-Q", "8-K", "DEF 14A"}

type Config struct {
	BaseURL   string // overridden in tests
	SinceDate string // YYYY-MM-DD; filings before this are skipped
	Logger    *slog.Logger
}

type Adapter struct {
	config  Config
	fetcher types.Fetcher
	log     *slog.Logger
}

func NewWithConfig(fetcher types.Fetcher, config Config) *Adapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Adapter{
		config:  config,
		fetcher: fetcher,
		log:     config.Logger,
	}
}

// Filing is one entry from the registry's filing list.
type Filing struct {
	FilingType string
	FilingDate string
	Accession  string
	FilingURL  string
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Updated string     `xml:"updated"`
	Links   []atomLink `xml:"link"`
}

type atomLink struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
}

// ListFilings lists filings of one type for a CIK, newest first, filtered to
// those filed on or after since.
func (a *Adapter) ListFilings(ctx context.Context, cik, filingType, since string) ([]Filing, error) {
	url := fmt.Sprintf(
		"%s/cgi-bin/browse-edgar?action=getcompany&CIK=%s&type=%s&count=100&owner=exclude&output=atom",
		a.config.BaseURL, cik, strings.ReplaceAll(filingType, " ", "+"),
	)

	resp, err := a.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	var feed atomFeed
	if err := xml.Unmarshal(resp.Body, &feed); err != nil {
		return nil, fmt.Errorf("parsing filing feed for CIK %s: %w", cik, err)
	}

	var filings []Filing
	for _, entry := range feed.Entries {
		if len(entry.Updated) < 10 {
			continue
		}
		filingDate := entry.Updated[:10]
		if since != "" && filingDate < since {
			continue
		}

		var filingURL string
		for _, link := range entry.Links {
			if link.Rel == "alternate" {
				filingURL = link.Href
				break
			}
		}
		if filingURL == "" {
			continue
		}

		accession := strings.TrimSuffix(filingURL[strings.LastIndex(filingURL, "/")+1:], "-index.htm")
		filings = append(filings, Filing{
			FilingType: filingType,
			FilingDate: filingDate,
			Accession:  accession,
			FilingURL:  filingURL,
		})
	}

	a.log.Info("listed filings",
		slog.String("cik", cik),
		slog.String("filing_type", filingType),
		slog.Int("count", len(filings)),
	)
	return filings, nil
}

// PrimaryDocument resolves the primary document file name for a filing by
// inspecting the archive index page. When structured parsing finds nothing
// it probes a small set of conventional file names.
func (a *Adapter) PrimaryDocument(ctx context.Context, cik, accession string) (string, error) {
	nodash := strings.ReplaceAll(accession, "-", "")
	indexURL := fmt.Sprintf("%s/Archives/edgar/data/%s/%s/%s-index.htm",
		a.config.BaseURL, cik, nodash, accession)

	resp, err := a.fetcher.Fetch(ctx, indexURL)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return "", err
	}

	var primary string
	doc.Find("table tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cells := row.Find("td")
		if cells.Length() < 4 {
			return true
		}
		docType := strings.TrimSpace(cells.Eq(3).Text())
		if docType != "PRIMARY DOCUMENT" && docType != "DOCUMENT" {
			return true
		}
		href, ok := cells.Eq(2).Find("a").Attr("href")
		if !ok {
			return true
		}
		primary = href[strings.LastIndex(href, "/")+1:]
		return false
	})
	if primary != "" {
		return primary, nil
	}

	// Fallback: probe conventional file names.
	for _, name := range []string{
		accession + ".htm",
		accession + ".html",
		"d" + nodash + ".htm",
	} {
		probeURL := fmt.Sprintf("%s/Archives/edgar/data/%s/%s/%s", a.config.BaseURL, cik, nodash, name)
		if _, err := a.fetcher.Fetch(ctx, probeURL); err == nil {
			return name, nil
		}
	}

	a.log.Warn("could not find primary document", slog.String("accession", accession))
	return "", fmt.Errorf("no primary document for accession %s", accession)
}

// DownloadFiling downloads a filing's primary document into outputDir and
// returns its metadata record.
func (a *Adapter) DownloadFiling(ctx context.Context, company models.Company, filing Filing, outputDir string) (*models.DocumentMetadata, error) {
	primary, err := a.PrimaryDocument(ctx, company.CIK, filing.Accession)
	if err != nil {
		return nil, err
	}

	nodash := strings.ReplaceAll(filing.Accession, "-", "")
	docURL := fmt.Sprintf("%s/Archives/edgar/data/%s/%s/%s", a.config.BaseURL, company.CIK, nodash, primary)

	docType := docTypeSlug(filing.FilingType)
	fileID := models.FileID(company.CompanyID, docType, filing.FilingDate, models.ChannelEdgar, "en", primary)

	a.log.Info("downloading filing", slog.String("file_id", fileID))

	resp, err := a.fetcher.Fetch(ctx, docURL)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}
	outputPath := filepath.Join(outputDir, fileID)
	if err := os.WriteFile(outputPath, resp.Body, 0o644); err != nil {
		return nil, err
	}

	sum := sha256.Sum256(resp.Body)

	mimeType := "text/html"
	if strings.HasSuffix(primary, ".pdf") {
		mimeType = "application/pdf"
	}

	return &models.DocumentMetadata{
		FileID:          fileID,
		CompanyID:       company.CompanyID,
		CompanyName:     company.CompanyName,
		Ticker:          company.Ticker,
		DocType:         docType,
		FilingDate:      filing.FilingDate,
		SourceType:      models.SourcePrimary,
		SourceURL:       docURL,
		FetchedAtUTC:    time.Now().UTC(),
		ByteSize:        len(resp.Body),
		MIMEType:        mimeType,
		SHA256:          hex.EncodeToString(sum[:]),
		Redistributable: true,
		Confidence:      0.98,
		Language:        "en",
	}, nil
}

// FetchCompanyFilings fetches the required filings for one company. A
// company without a registry identifier is skipped, not an error. Failures
// for one filing type are logged and do not abort the remaining types.
func (a *Adapter) FetchCompanyFilings(ctx context.Context, company models.Company, outputDir string) ([]models.DocumentMetadata, error) {
	if company.CIK == "" {
		a.log.Info("skipping registry fetch, no CIK",
			slog.String("company", company.CompanyName))
		return nil, nil
	}

	var metadata []models.DocumentMetadata
	for _, filingType := range FilingTypes {
		filings, err := a.ListFilings(ctx, company.CIK, filingType, a.config.SinceDate)
		if err != nil {
			a.log.Error("error listing filings",
				slog.String("company", company.CompanyName),
				slog.String("filing_type", filingType),
				slog.Any("err", err),
			)
			continue
		}

		// Only the most recent annual filing is kept; other types keep
		// everything inside the date window.
		if filingType == "10-K" && len(filings) > 1 {
			filings = filings[:1]
		}

		for _, filing := range filings {
			meta, err := a.DownloadFiling(ctx, company, filing, outputDir)
			if err != nil {
				a.log.Error("error downloading filing",
					slog.String("company", company.CompanyName),
					slog.String("accession", filing.Accession),
					slog.Any("err", err),
				)
				continue
			}
			metadata = append(metadata, *meta)
		}
	}

	a.log.Info("fetched filings",
		slog.String("company", company.CompanyName),
		slog.Int("count", len(metadata)),
	)
	return metadata, nil
}

// docTypeSlug normalizes a registry filing type into its document type tag
// ("10-K" -> "10k", "DEF 14A" -> "def14a").
func docTypeSlug(filingType string) string {
	slug := strings.ToLower(filingType)
	slug = strings.ReplaceAll(slug, " ", "")
	return strings.ReplaceAll(slug, "-", "")
}

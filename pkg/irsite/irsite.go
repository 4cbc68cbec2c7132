// Package irsite fetches documents from company investor-relations sites:
// it discovers candidate PDF links by scanning anchors, downloads the first
// keyword match, and extracts readable text from press-release pages.
package irsite

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/xhad/radar/internal/models"
	"github.com/xhad/radar/internal/types"
)

// ErrNotPDF marks a download whose bytes fail the PDF magic-header check.
// The document is discarded and no metadata record is created.
var ErrNotPDF = errors.New("downloaded file is not a valid PDF")

// Keyword sets used to filter discovered links, multiple languages for the
// non-US peer companies.
var (
	AnnualReportKeywords   = []string{"annual report", "annual financial", "geschäftsbericht", "informe anual"}
	SustainabilityKeywords = []string{"sustainability", "impact", "esg", "csr"}
	PressKeywords          = []string{"results", "earnings", "quarter", "interim", "trading update"}
)

type Config struct {
	Logger *slog.Logger
}

type Adapter struct {
	fetcher types.Fetcher
	log     *slog.Logger
}

func NewWithConfig(fetcher types.Fetcher, config Config) *Adapter {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Adapter{fetcher: fetcher, log: config.Logger}
}

// PDFLink is one discovered candidate document link.
type PDFLink struct {
	URL  string
	Text string
}

// DiscoverPDFLinks scans anchor elements on a page for links ending in .pdf,
// resolves them to absolute URLs, and filters by the given keywords
// (case-insensitive match against the anchor text). Keywords nil means no
// filtering.
func (a *Adapter) DiscoverPDFLinks(ctx context.Context, pageURL string, keywords []string) ([]PDFLink, error) {
	resp, err := a.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	var links []PDFLink
	doc.Find("a[href]").Each(func(_ int, selection *goquery.Selection) {
		href, _ := selection.Attr("href")
		if !strings.HasSuffix(strings.ToLower(href), ".pdf") {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		absolute := base.ResolveReference(ref).String()

		linkText := strings.TrimSpace(selection.Text())
		if keywords != nil && !matchesAny(linkText, keywords) {
			return
		}

		links = append(links, PDFLink{URL: absolute, Text: linkText})
	})

	a.log.Info("discovered PDF links",
		slog.String("url", pageURL),
		slog.Int("count", len(links)),
	)
	return links, nil
}

func matchesAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// DownloadPDF downloads a PDF, validates its magic header, writes it to
// outputDir, and returns its metadata record. Returns ErrNotPDF when the
// payload is not a PDF; in that case nothing is written.
func (a *Adapter) DownloadPDF(ctx context.Context, company models.Company, pdfURL, docType, outputDir, docDate string) (*models.DocumentMetadata, error) {
	resp, err := a.fetcher.Fetch(ctx, pdfURL)
	if err != nil {
		return nil, err
	}

	if !bytes.HasPrefix(resp.Body, []byte("%PDF")) {
		a.log.Warn("rejecting non-PDF payload", slog.String("url", pdfURL))
		return nil, fmt.Errorf("%w: %s", ErrNotPDF, pdfURL)
	}

	dateStr := docDate
	if dateStr == "" {
		dateStr = time.Now().UTC().Format("2006-01-02")
	}

	parsed, err := url.Parse(pdfURL)
	if err != nil {
		return nil, err
	}
	filename := path.Base(parsed.Path)

	fileID := models.FileID(company.CompanyID, docType, dateStr, models.ChannelIR, "en", filename)

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(outputDir, fileID), resp.Body, 0o644); err != nil {
		return nil, err
	}

	sum := sha256.Sum256(resp.Body)

	a.log.Info("downloaded PDF", slog.String("file_id", fileID))

	return &models.DocumentMetadata{
		FileID:          fileID,
		CompanyID:       company.CompanyID,
		CompanyName:     company.CompanyName,
		Ticker:          company.Ticker,
		DocType:         docType,
		DocDate:         dateStr,
		SourceType:      models.SourcePrimary,
		SourceURL:       pdfURL,
		FetchedAtUTC:    time.Now().UTC(),
		ByteSize:        len(resp.Body),
		MIMEType:        "application/pdf",
		SHA256:          hex.EncodeToString(sum[:]),
		Redistributable: true, // IR documents are public
		Confidence:      0.95,
		Language:        "en",
	}, nil
}

// DownloadPressRelease downloads a press-release page, extracts readable
// article text, and persists both the raw HTML and the derived text. The
// metadata records the text artifact's file name only; callers assembling a
// package rebase it against their output root.
func (a *Adapter) DownloadPressRelease(ctx context.Context, company models.Company, prURL, outputDir, docDate string) (*models.DocumentMetadata, error) {
	resp, err := a.fetcher.Fetch(ctx, prURL)
	if err != nil {
		return nil, err
	}

	text, err := extractArticleText(resp.Body)
	if err != nil {
		return nil, err
	}
	if text == "" {
		a.log.Warn("could not extract text from press release", slog.String("url", prURL))
		return nil, nil
	}

	dateStr := docDate
	if dateStr == "" {
		dateStr = time.Now().UTC().Format("2006-01-02")
	}

	parsed, err := url.Parse(prURL)
	if err != nil {
		return nil, err
	}
	slug := path.Base(parsed.Path)
	if len(slug) > 50 {
		slug = slug[:50]
	}

	fileID := models.FileID(company.CompanyID, models.DocTypePressRelease, dateStr, models.ChannelIR, "en", slug+".html")

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(outputDir, fileID), resp.Body, 0o644); err != nil {
		return nil, err
	}

	textName := strings.TrimSuffix(fileID, ".html") + ".txt"
	if err := os.WriteFile(filepath.Join(outputDir, textName), []byte(text), 0o644); err != nil {
		return nil, err
	}

	sum := sha256.Sum256(resp.Body)

	a.log.Info("downloaded press release", slog.String("file_id", fileID))

	return &models.DocumentMetadata{
		FileID:            fileID,
		CompanyID:         company.CompanyID,
		CompanyName:       company.CompanyName,
		Ticker:            company.Ticker,
		DocType:           models.DocTypePressRelease,
		DocDate:           dateStr,
		SourceType:        models.SourcePrimary,
		SourceURL:         prURL,
		FetchedAtUTC:      time.Now().UTC(),
		ByteSize:          len(resp.Body),
		MIMEType:          "text/html",
		SHA256:            hex.EncodeToString(sum[:]),
		Redistributable:   true,
		Confidence:        0.90,
		ExtractedTextPath: textName,
		Language:          "en",
	}, nil
}

// FetchAnnualReport fetches the latest annual report discovered on the
// company's IR page. The first keyword match is treated as most recent; link
// text carries no parsed date. Returns (nil, nil) when nothing matches: an
// expected negative, not an error.
func (a *Adapter) FetchAnnualReport(ctx context.Context, company models.Company, outputDir string) (*models.DocumentMetadata, error) {
	links, err := a.DiscoverPDFLinks(ctx, company.IRURL, AnnualReportKeywords)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		a.log.Info("no annual report found", slog.String("company", company.CompanyName))
		return nil, nil
	}

	return a.DownloadPDF(ctx, company, links[0].URL, models.DocTypeAnnualReport, outputDir, "")
}

// FetchSustainabilityReport fetches the latest sustainability report
// discovered on the company's sustainability page.
func (a *Adapter) FetchSustainabilityReport(ctx context.Context, company models.Company, outputDir string) (*models.DocumentMetadata, error) {
	links, err := a.DiscoverPDFLinks(ctx, company.SustainabilityURL, SustainabilityKeywords)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		a.log.Info("no sustainability report found", slog.String("company", company.CompanyName))
		return nil, nil
	}

	return a.DownloadPDF(ctx, company, links[0].URL, models.DocTypeSustainability, outputDir, "")
}

// FetchLatestPressRelease scans the company's press page for article links
// matching press keywords and downloads the first one. PDF links are left
// to the report fetchers.
func (a *Adapter) FetchLatestPressRelease(ctx context.Context, company models.Company, outputDir string) (*models.DocumentMetadata, error) {
	resp, err := a.fetcher.Fetch(ctx, company.PressURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(company.PressURL)
	if err != nil {
		return nil, err
	}

	var prURL string
	doc.Find("a[href]").EachWithBreak(func(_ int, selection *goquery.Selection) bool {
		href, _ := selection.Attr("href")
		if strings.HasSuffix(strings.ToLower(href), ".pdf") {
			return true
		}
		if !matchesAny(selection.Text(), PressKeywords) {
			return true
		}

		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		prURL = base.ResolveReference(ref).String()
		return false
	})
	if prURL == "" {
		a.log.Info("no press release found", slog.String("company", company.CompanyName))
		return nil, nil
	}

	return a.DownloadPressRelease(ctx, company, prURL, outputDir, "")
}

// Selectors tried in order when looking for the readable article body of a
// press-release page.
var articleSelectors = []string{
	"article",
	"main",
	".press-release",
	".article-body",
	"#content",
}

// extractArticleText pulls the readable text out of a press-release HTML
// page: the first matching content container wins, falling back to body, and
// the result is whitespace-normalized with boilerplate phrases removed.
func extractArticleText(html []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, nav, footer").Remove()

	var content string
	for _, selector := range articleSelectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = selected.Text()
			break
		}
	}
	if content == "" {
		content = doc.Find("body").Text()
	}

	content = strings.Join(strings.Fields(content), " ")

	noisePatterns := []string{
		"Cookie Policy",
		"Accept Cookies",
		"Privacy Policy",
		"Terms of Service",
	}
	for _, pattern := range noisePatterns {
		content = strings.ReplaceAll(content, pattern, "")
	}

	return strings.TrimSpace(content), nil
}

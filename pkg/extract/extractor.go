// Package extract turns stored PDF bytes into text, section files, and
// table CSVs. The steps are independent: a failure in one degrades that
// artifact (empty text, zero tables) without blocking the others.
package extract

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/xhad/radar/internal/types"
)

// Heading patterns for financial filings, matched case-insensitively at
// line start.
var sectionPatterns = []string{
	`(?i)^risk\s+factors?`,
	`(?i)^management'?s?\s+discussion\s+and\s+analysis`,
	`(?i)^md&a`,
	`(?i)^competition`,
	`(?i)^competitive\s+landscape`,
	`(?i)^legal\s+proceedings?`,
	`(?i)^business\s+overview`,
	`(?i)^operating\s+review`,
	`(?i)^financial\s+statements?`,
	`(?i)^notes\s+to\s+(the\s+)?financial\s+statements?`,
	`(?i)^segment\s+reporting`,
	`(?i)^geographic\s+information`,
}

// A heading candidate longer than this is assumed to be body text.
const maxHeadingLen = 200

// Section is one detected subsection of a document's text. End is
// exclusive: the start of the next section, or the text length for the
// last one. Sections never overlap and are ordered by Start.
type Section struct {
	Title   string
	Start   int
	End     int
	Pattern string
}

// Result summarizes one document's extraction. Paths are absolute.
type Result struct {
	TextPath     string
	SectionPaths []string
	TablePaths   []string
	TextLength   int
	NumSections  int
	NumTables    int
}

type Config struct {
	OutputDir string // base directory for text/, sections/, tables/
	Tables    types.TableExtractor
	Fallback  types.TableExtractor
	Logger    *slog.Logger
}

type Extractor struct {
	config   Config
	patterns []*regexp.Regexp
	tables   types.TableExtractor // preferred tier, nil when unavailable
	fallback types.TableExtractor
	log      *slog.Logger
}

func NewWithConfig(config Config) *Extractor {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Tables == nil && config.Fallback == nil {
		config.Tables = NewLatticeExtractor(config.Logger)
	}
	if config.Fallback == nil {
		config.Fallback = NewFallbackExtractor(config.Logger)
	}

	patterns := make([]*regexp.Regexp, len(sectionPatterns))
	for i, p := range sectionPatterns {
		patterns[i] = regexp.MustCompile(p)
	}

	return &Extractor{
		config:   config,
		patterns: patterns,
		tables:   config.Tables,
		fallback: config.Fallback,
		log:      config.Logger,
	}
}

// ExtractText extracts all text from a PDF, pages joined by a single
// newline. Failures yield empty text and a log line, never an error: an
// unreadable document still gets a manifest entry, flagged by zero length.
func (e *Extractor) ExtractText(pdfPath string) string {
	text, err := readPlainText(pdfPath)
	if err != nil {
		e.log.Error("error extracting text",
			slog.String("path", pdfPath),
			slog.Any("err", err),
		)
		return ""
	}

	e.log.Info("extracted text",
		slog.String("file", filepath.Base(pdfPath)),
		slog.Int("chars", len(text)),
	)
	return text
}

func readPlainText(pdfPath string) (text string, err error) {
	// The underlying parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parse panic: %v", r)
		}
	}()

	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var parts []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		parts = append(parts, pageText)
	}

	return strings.Join(parts, "\n"), nil
}

// DetectSections scans text line by line for heading candidates: non-empty
// lines of at most 200 characters matching one of the heading patterns.
// End offsets are derived, not detected.
func (e *Extractor) DetectSections(text string) []Section {
	var sections []Section

	offset := 0
	for _, line := range strings.Split(text, "\n") {
		lineLen := len(line) + 1 // the split newline
		stripped := strings.TrimSpace(line)

		if stripped == "" || len(stripped) > maxHeadingLen {
			offset += lineLen
			continue
		}

		for _, pattern := range e.patterns {
			if pattern.MatchString(stripped) {
				sections = append(sections, Section{
					Title:   stripped,
					Start:   offset,
					Pattern: pattern.String(),
				})
				break
			}
		}
		offset += lineLen
	}

	for i := range sections {
		if i < len(sections)-1 {
			sections[i].End = sections[i+1].Start
		} else {
			sections[i].End = len(text)
		}
	}

	e.log.Info("detected sections", slog.Int("count", len(sections)))
	return sections
}

// ExtractSections writes each detected section of text to its own file in
// outputDir, named by stem, zero-padded index, and a slug of the title.
func (e *Extractor) ExtractSections(stem, text, outputDir string) ([]string, error) {
	sections := e.DetectSections(text)
	if len(sections) == 0 {
		return nil, nil
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}

	var paths []string
	for i, section := range sections {
		name := fmt.Sprintf("%s__section_%02d__%s.txt", stem, i, slugify(section.Title))
		path := filepath.Join(outputDir, name)

		if err := os.WriteFile(path, []byte(text[section.Start:section.End]), 0o644); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}

	e.log.Info("extracted sections",
		slog.Int("count", len(paths)),
		slog.String("dir", outputDir),
	)
	return paths, nil
}

// ExtractTables runs the tiered table strategy: the preferred extractor
// first, falling back to the page-wise one only when the preferred tier is
// unavailable, errors, or finds nothing. The two tiers never both run.
func (e *Extractor) ExtractTables(pdfPath, outputDir, stem string) []string {
	if e.tables != nil {
		paths, err := e.tables.ExtractTables(pdfPath, outputDir, stem)
		if err != nil {
			e.log.Warn("table extraction failed, falling back",
				slog.String("strategy", e.tables.Name()),
				slog.String("file", filepath.Base(pdfPath)),
				slog.Any("err", err),
			)
		} else if len(paths) > 0 {
			e.log.Info("extracted tables",
				slog.String("strategy", e.tables.Name()),
				slog.Int("count", len(paths)),
			)
			return paths
		}
	}

	paths, err := e.fallback.ExtractTables(pdfPath, outputDir, stem)
	if err != nil {
		e.log.Error("table extraction failed",
			slog.String("strategy", e.fallback.Name()),
			slog.String("file", filepath.Base(pdfPath)),
			slog.Any("err", err),
		)
		return nil
	}

	e.log.Info("extracted tables",
		slog.String("strategy", e.fallback.Name()),
		slog.Int("count", len(paths)),
	)
	return paths
}

// ExtractAll extracts text, sections, and tables for one PDF under the
// configured output base: text/{stem}.txt, sections/{stem}/, tables/{stem}/.
func (e *Extractor) ExtractAll(pdfPath string) (*Result, error) {
	stem := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))

	textDir := filepath.Join(e.config.OutputDir, "text")
	sectionsDir := filepath.Join(e.config.OutputDir, "sections", stem)
	tablesDir := filepath.Join(e.config.OutputDir, "tables", stem)

	text := e.ExtractText(pdfPath)

	if err := os.MkdirAll(textDir, 0o755); err != nil {
		return nil, err
	}
	textPath := filepath.Join(textDir, stem+".txt")
	if err := os.WriteFile(textPath, []byte(text), 0o644); err != nil {
		return nil, err
	}

	var sectionPaths []string
	if text != "" {
		var err error
		sectionPaths, err = e.ExtractSections(stem, text, sectionsDir)
		if err != nil {
			e.log.Error("error writing sections", slog.Any("err", err))
		}
	}

	tablePaths := e.ExtractTables(pdfPath, tablesDir, stem)

	result := &Result{
		TextPath:     textPath,
		SectionPaths: sectionPaths,
		TablePaths:   tablePaths,
		TextLength:   len(text),
		NumSections:  len(sectionPaths),
		NumTables:    len(tablePaths),
	}

	e.log.Info("extraction complete",
		slog.String("file", filepath.Base(pdfPath)),
		slog.Int("chars", result.TextLength),
		slog.Int("sections", result.NumSections),
		slog.Int("tables", result.NumTables),
	)
	return result, nil
}

var (
	slugStrip    = regexp.MustCompile(`[^\w\s-]`)
	slugCollapse = regexp.MustCompile(`[-\s]+`)
)

// slugify lowercases a title, strips punctuation, collapses separators to
// dashes, and truncates to 50 characters.
func slugify(title string) string {
	slug := slugStrip.ReplaceAllString(strings.ToLower(title), "")
	slug = slugCollapse.ReplaceAllString(slug, "-")
	if len(slug) > 50 {
		slug = slug[:50]
	}
	return slug
}

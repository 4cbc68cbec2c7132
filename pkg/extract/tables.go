package extract

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// word is one positioned text fragment on a page. Y grows upward in PDF
// coordinates.
type word struct {
	X, Y float64
	S    string
}

// readPositionedWords loads every page's positioned text fragments.
func readPositionedWords(pdfPath string) (pages [][]word, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parse panic: %v", r)
		}
	}()

	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, nil)
			continue
		}

		content := page.Content()
		words := make([]word, 0, len(content.Text))
		for _, t := range content.Text {
			if strings.TrimSpace(t.S) == "" {
				continue
			}
			words = append(words, word{X: t.X, Y: t.Y, S: t.S})
		}
		pages = append(pages, words)
	}

	return pages, nil
}

const (
	// Fragments within this vertical distance belong to one row.
	rowTolerance = 3.0
	// Gaps wider than this between fragments on a row split cells.
	cellGap = 12.0

	latticeMinCols = 3
	latticeMinRows = 3
	streamMinCols  = 2
	streamMinRows  = 2
)

// LatticeExtractor detects tables from positioned text. It runs a strict
// pass first, requiring wide rows with a consistent column count, then a
// relaxed pass over the same pages when the strict pass finds nothing.
type LatticeExtractor struct {
	readPages func(pdfPath string) ([][]word, error) // swapped in tests
	log       *slog.Logger
}

func NewLatticeExtractor(logger *slog.Logger) *LatticeExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LatticeExtractor{readPages: readPositionedWords, log: logger}
}

func (l *LatticeExtractor) Name() string { return "lattice" }

// ExtractTables writes one CSV per detected table, numbered across the
// whole document: {stem}__table_{NNN}.csv.
func (l *LatticeExtractor) ExtractTables(pdfPath, outputDir, stem string) ([]string, error) {
	pages, err := l.readPages(pdfPath)
	if err != nil {
		return nil, err
	}

	tables := detectTables(pages, latticeMinCols, latticeMinRows, true)
	if len(tables) == 0 {
		l.log.Info("strict pass found no tables, trying relaxed pass",
			slog.String("file", filepath.Base(pdfPath)))
		tables = detectTables(pages, streamMinCols, streamMinRows, false)
	}
	if len(tables) == 0 {
		return nil, nil
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}

	var paths []string
	for i, table := range tables {
		name := fmt.Sprintf("%s__table_%03d.csv", stem, i+1)
		path := filepath.Join(outputDir, name)
		if err := writeCSV(path, table); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// detectTables groups each page's fragments into rows by Y proximity,
// splits rows into cells on horizontal gaps, and collects consecutive
// multi-cell rows into tables. The uniform flag additionally requires every
// row of a table to carry the same column count.
func detectTables(pages [][]word, minCols, minRows int, uniform bool) [][][]string {
	var tables [][][]string
	for _, words := range pages {
		rows := clusterRows(words)

		var current [][]string
		flush := func() {
			if len(current) >= minRows {
				tables = append(tables, current)
			}
			current = nil
		}

		for _, row := range rows {
			cells := splitCells(row)
			if len(cells) < minCols {
				flush()
				continue
			}
			if uniform && len(current) > 0 && len(cells) != len(current[0]) {
				flush()
			}
			current = append(current, cells)
		}
		flush()
	}
	return tables
}

// clusterRows orders fragments top to bottom and groups those within
// rowTolerance of each other into rows, each row sorted left to right.
func clusterRows(words []word) [][]word {
	if len(words) == 0 {
		return nil
	}

	sorted := make([]word, len(words))
	copy(sorted, words)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var rows [][]word
	current := []word{sorted[0]}
	for _, w := range sorted[1:] {
		if math.Abs(w.Y-current[0].Y) <= rowTolerance {
			current = append(current, w)
			continue
		}
		rows = append(rows, current)
		current = []word{w}
	}
	rows = append(rows, current)

	for _, row := range rows {
		sort.Slice(row, func(i, j int) bool { return row[i].X < row[j].X })
	}
	return rows
}

// splitCells joins a row's fragments, starting a new cell wherever the
// horizontal gap to the previous fragment exceeds cellGap.
func splitCells(row []word) []string {
	var cells []string
	var cell strings.Builder
	prevEnd := math.Inf(-1)

	for _, w := range row {
		if cell.Len() > 0 && w.X-prevEnd > cellGap {
			cells = append(cells, strings.TrimSpace(cell.String()))
			cell.Reset()
		}
		cell.WriteString(w.S)
		// Fragment width is unknown here; approximate the end with a
		// glyph-count estimate so gap detection stays usable.
		prevEnd = w.X + float64(len(w.S))*4.5
	}
	if cell.Len() > 0 {
		cells = append(cells, strings.TrimSpace(cell.String()))
	}
	return cells
}

func writeCSV(path string, table [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(table); err != nil {
		return err
	}
	return f.Close()
}

// FallbackExtractor detects tables from plain page text when positioned
// extraction is unavailable or empty. Runs of lines with multiple
// wide-space-separated columns become tables; cells have commas replaced
// with semicolons so rows can be joined directly.
type FallbackExtractor struct {
	readPageTexts func(pdfPath string) ([]string, error) // swapped in tests
	log           *slog.Logger
}

func NewFallbackExtractor(logger *slog.Logger) *FallbackExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackExtractor{readPageTexts: readPageTexts, log: logger}
}

func (f *FallbackExtractor) Name() string { return "fallback" }

func readPageTexts(pdfPath string) (texts []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parse panic: %v", r)
		}
	}()

	file, r, err := pdf.Open(pdfPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			texts = append(texts, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			texts = append(texts, "")
			continue
		}
		texts = append(texts, text)
	}
	return texts, nil
}

const fallbackMinRows = 2

// ExtractTables writes one CSV per detected table, numbered per page:
// {stem}__table_p{NNN}_t{NN}.csv.
func (f *FallbackExtractor) ExtractTables(pdfPath, outputDir, stem string) ([]string, error) {
	texts, err := f.readPageTexts(pdfPath)
	if err != nil {
		return nil, err
	}

	var paths []string
	for pageIdx, text := range texts {
		tables := detectTextTables(text)
		if len(tables) == 0 {
			continue
		}

		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return paths, err
		}

		for tableIdx, table := range tables {
			name := fmt.Sprintf("%s__table_p%03d_t%02d.csv", stem, pageIdx+1, tableIdx+1)
			path := filepath.Join(outputDir, name)

			var rows []string
			for _, cells := range table {
				for i, cell := range cells {
					cells[i] = strings.ReplaceAll(cell, ",", ";")
				}
				rows = append(rows, strings.Join(cells, ","))
			}
			if err := os.WriteFile(path, []byte(strings.Join(rows, "\n")+"\n"), 0o644); err != nil {
				return paths, err
			}
			paths = append(paths, path)
		}
	}
	return paths, nil
}

// detectTextTables finds runs of consecutive lines that each split into at
// least two columns on runs of two or more spaces.
func detectTextTables(text string) [][][]string {
	var tables [][][]string
	var current [][]string

	flush := func() {
		if len(current) >= fallbackMinRows {
			tables = append(tables, current)
		}
		current = nil
	}

	for _, line := range strings.Split(text, "\n") {
		cells := splitColumns(line)
		if len(cells) < 2 {
			flush()
			continue
		}
		current = append(current, cells)
	}
	flush()

	return tables
}

// splitColumns splits a line into cells on gaps of two or more spaces.
func splitColumns(line string) []string {
	var cells []string
	for _, part := range strings.Split(line, "  ") {
		part = strings.TrimSpace(part)
		if part != "" {
			cells = append(cells, part)
		}
	}
	return cells
}

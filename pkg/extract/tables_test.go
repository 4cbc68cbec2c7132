package extract

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gridPage lays out rows of cells with wide horizontal gaps, top to bottom.
func gridPage(rows [][]string) []word {
	var words []word
	y := 700.0
	for _, cells := range rows {
		x := 50.0
		for _, cell := range cells {
			words = append(words, word{X: x, Y: y, S: cell})
			x += 120
		}
		y -= 15
	}
	return words
}

func readFirstCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestLatticeExtractorStrictPass(t *testing.T) {
	page := gridPage([][]string{
		{"Segment", "FY2025", "FY2024"},
		{"Footwear", "29100", "27400"},
		{"Apparel", "13800", "13400"},
	})

	l := NewLatticeExtractor(nil)
	l.readPages = func(string) ([][]word, error) { return [][]word{page}, nil }

	dir := t.TempDir()
	paths, err := l.ExtractTables("doc.pdf", dir, "doc")
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, "doc__table_001.csv", filepath.Base(paths[0]))

	rows := readFirstCSV(t, paths[0])
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Segment", "FY2025", "FY2024"}, rows[0])
	assert.Equal(t, []string{"Apparel", "13800", "13400"}, rows[2])
}

func TestLatticeExtractorRelaxedPassAfterStrictFindsNothing(t *testing.T) {
	// Two columns only, below the strict pass minimum.
	page := gridPage([][]string{
		{"Revenue", "51362"},
		{"Net income", "5700"},
	})

	l := NewLatticeExtractor(nil)
	l.readPages = func(string) ([][]word, error) { return [][]word{page}, nil }

	paths, err := l.ExtractTables("doc.pdf", t.TempDir(), "doc")
	require.NoError(t, err)
	require.Len(t, paths, 1)

	rows := readFirstCSV(t, paths[0])
	assert.Equal(t, []string{"Revenue", "51362"}, rows[0])
}

func TestLatticeExtractorNoTablesOnProse(t *testing.T) {
	// One fragment per row never splits into cells.
	page := gridPage([][]string{
		{"We design, develop, and market athletic footwear."},
		{"Revenue grew across all geographies."},
	})

	l := NewLatticeExtractor(nil)
	l.readPages = func(string) ([][]word, error) { return [][]word{page}, nil }

	paths, err := l.ExtractTables("doc.pdf", t.TempDir(), "doc")
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestLatticeExtractorUniformColumnCountSplitsTables(t *testing.T) {
	page := gridPage([][]string{
		{"Segment", "FY2025", "FY2024"},
		{"Footwear", "29100", "27400"},
		{"Apparel", "13800", "13400"},
		{"Region", "Revenue", "Growth", "Margin"},
		{"North America", "21500", "4%", "38%"},
		{"EMEA", "13600", "6%", "35%"},
	})

	l := NewLatticeExtractor(nil)
	l.readPages = func(string) ([][]word, error) { return [][]word{page}, nil }

	paths, err := l.ExtractTables("doc.pdf", t.TempDir(), "doc")
	require.NoError(t, err)
	require.Len(t, paths, 2)

	first := readFirstCSV(t, paths[0])
	second := readFirstCSV(t, paths[1])
	assert.Len(t, first[0], 3)
	assert.Len(t, second[0], 4)
}

func TestFallbackExtractorPageWiseNaming(t *testing.T) {
	pageOne := "Segment  FY2025  FY2024\nFootwear  29100  27400\n\nprose in between\n"
	pageTwo := "Region  Revenue\nEMEA  13,600\n"

	f := NewFallbackExtractor(nil)
	f.readPageTexts = func(string) ([]string, error) { return []string{pageOne, pageTwo}, nil }

	dir := t.TempDir()
	paths, err := f.ExtractTables("doc.pdf", dir, "doc")
	require.NoError(t, err)
	require.Len(t, paths, 2)

	assert.Equal(t, "doc__table_p001_t01.csv", filepath.Base(paths[0]))
	assert.Equal(t, "doc__table_p002_t01.csv", filepath.Base(paths[1]))

	// Cell commas become semicolons so rows join cleanly.
	content, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Equal(t, "Region,Revenue\nEMEA,13;600\n", string(content))
}

func TestFallbackExtractorSkipsShortRuns(t *testing.T) {
	// A single columnar line between prose is not a table.
	page := "Some introduction.\nRevenue  51362\nMore prose follows here.\n"

	f := NewFallbackExtractor(nil)
	f.readPageTexts = func(string) ([]string, error) { return []string{page}, nil }

	paths, err := f.ExtractTables("doc.pdf", t.TempDir(), "doc")
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestLatticeExtractorPropagatesReadError(t *testing.T) {
	l := NewLatticeExtractor(nil)
	l.readPages = func(string) ([][]word, error) { return nil, fmt.Errorf("corrupt xref") }

	paths, err := l.ExtractTables("doc.pdf", t.TempDir(), "doc")
	assert.Error(t, err)
	assert.Empty(t, paths)
}

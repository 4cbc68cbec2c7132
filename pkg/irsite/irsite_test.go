package irsite

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/radar/internal/models"
	"github.com/xhad/radar/pkg/fetcher"
)

func newTestAdapter() *Adapter {
	f := fetcher.NewWithConfig(fetcher.Config{RateLimit: 1000, PerHost: true, MaxAttempts: 1})
	return NewWithConfig(f, Config{})
}

func testCompany(irURL, sustainabilityURL string) models.Company {
	return models.Company{
		CompanyID:         "inditex",
		CompanyName:       "Industria de Diseño Textil, S.A.",
		Ticker:            "ITX.MC",
		IRURL:             irURL,
		SustainabilityURL: sustainabilityURL,
	}
}

const irPage = `<html><body>
	<a href="/docs/presentation.pdf">Q3 Investor Presentation</a>
	<a href="/docs/annual-report-2025.pdf">Annual Report 2025</a>
	<a href="/docs/annual-report-2024.pdf">Annual Report 2024</a>
	<a href="/news/release.html">Press release</a>
	<a href="/docs/informe-anual.pdf">Informe Anual</a>
</body></html>`

func TestDiscoverPDFLinksKeywordFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, irPage)
	}))
	defer server.Close()

	adapter := newTestAdapter()

	links, err := adapter.DiscoverPDFLinks(context.Background(), server.URL+"/ir", AnnualReportKeywords)
	require.NoError(t, err)
	require.Len(t, links, 3)

	// First discovered match wins downstream; order is document order.
	assert.Equal(t, server.URL+"/docs/annual-report-2025.pdf", links[0].URL)
	assert.Equal(t, "Annual Report 2025", links[0].Text)
	assert.Equal(t, "Informe Anual", links[2].Text)
}

func TestDiscoverPDFLinksNoFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, irPage)
	}))
	defer server.Close()

	adapter := newTestAdapter()

	links, err := adapter.DiscoverPDFLinks(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Len(t, links, 4) // every .pdf anchor, .html excluded
}

func pdfServer(t *testing.T, page string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch filepath.Ext(r.URL.Path) {
		case ".pdf":
			w.Write([]byte("%PDF-1.7 fake body"))
		default:
			fmt.Fprint(w, page)
		}
	}))
}

func TestFetchAnnualReportFirstMatchWins(t *testing.T) {
	server := pdfServer(t, irPage)
	defer server.Close()

	adapter := newTestAdapter()
	outputDir := t.TempDir()
	company := testCompany(server.URL+"/ir", "")

	meta, err := adapter.FetchAnnualReport(context.Background(), company, outputDir)
	require.NoError(t, err)
	require.NotNil(t, meta)

	assert.Equal(t, models.DocTypeAnnualReport, meta.DocType)
	assert.Equal(t, server.URL+"/docs/annual-report-2025.pdf", meta.SourceURL)
	assert.Equal(t, "application/pdf", meta.MIMEType)
	assert.Equal(t, 0.95, meta.Confidence)
	assert.Contains(t, meta.FileID, "inditex__annual_report__")
	assert.Contains(t, meta.FileID, "__ir__en__annual-report-2025.pdf")

	_, err = os.Stat(filepath.Join(outputDir, meta.FileID))
	assert.NoError(t, err)
}

func TestFetchAnnualReportNoMatchIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a href="/deck.pdf">Investor Deck</a></body></html>`)
	}))
	defer server.Close()

	adapter := newTestAdapter()

	meta, err := adapter.FetchAnnualReport(context.Background(), testCompany(server.URL, ""), t.TempDir())
	assert.NoError(t, err)
	assert.Nil(t, meta)
}

func TestFetchSustainabilityReport(t *testing.T) {
	page := `<html><body><a href="/docs/esg-2025.pdf">ESG Report</a></body></html>`
	server := pdfServer(t, page)
	defer server.Close()

	adapter := newTestAdapter()
	company := testCompany("", server.URL+"/sustainability")

	meta, err := adapter.FetchSustainabilityReport(context.Background(), company, t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, models.DocTypeSustainability, meta.DocType)
}

func TestDownloadPDFRejectsNonPDF(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>not a pdf at all</html>")
	}))
	defer server.Close()

	adapter := newTestAdapter()
	outputDir := t.TempDir()

	meta, err := adapter.DownloadPDF(context.Background(), testCompany("", ""), server.URL+"/report.pdf",
		models.DocTypeAnnualReport, outputDir, "2025-06-01")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotPDF)
	assert.Nil(t, meta)

	// Nothing may be written for a rejected payload.
	entries, err := os.ReadDir(outputDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDownloadPressRelease(t *testing.T) {
	page := `<html><head><script>junk()</script></head><body>
		<nav>Home | Investors</nav>
		<article><h1>Strong quarter</h1><p>Revenue grew 12% in the period.</p></article>
		<footer>Cookie Policy</footer>
	</body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page)
	}))
	defer server.Close()

	adapter := newTestAdapter()
	outputDir := filepath.Join(t.TempDir(), "ir")
	company := testCompany("", "")

	meta, err := adapter.DownloadPressRelease(context.Background(), company, server.URL+"/news/strong-quarter", outputDir, "2025-09-10")
	require.NoError(t, err)
	require.NotNil(t, meta)

	assert.Equal(t, models.DocTypePressRelease, meta.DocType)
	assert.Equal(t, "text/html", meta.MIMEType)
	assert.Equal(t, 0.90, meta.Confidence)
	assert.Contains(t, meta.FileID, "strong-quarter.html")

	// Raw HTML and derived text are both persisted.
	_, err = os.Stat(filepath.Join(outputDir, meta.FileID))
	require.NoError(t, err)

	// The recorded text path is the bare artifact name, resolvable against
	// the directory the caller supplied.
	textName := "inditex__press_release__2025-09-10__ir__en__strong-quarter.txt"
	assert.Equal(t, textName, meta.ExtractedTextPath)
	text, err := os.ReadFile(filepath.Join(outputDir, textName))
	require.NoError(t, err)
	assert.Contains(t, string(text), "Revenue grew 12%")
	assert.NotContains(t, string(text), "junk()")
	assert.NotContains(t, string(text), "Investors")
}

func TestFetchLatestPressRelease(t *testing.T) {
	pressPage := `<html><body>
		<a href="/reports/q2.pdf">Q2 Results (PDF)</a>
		<a href="/news/annual-meeting">Annual General Meeting</a>
		<a href="/news/q2-results">Second Quarter Results</a>
		<a href="/news/q1-results">First Quarter Results</a>
	</body></html>`
	article := `<html><body><article>Quarterly revenue was strong.</article></body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/press" {
			fmt.Fprint(w, pressPage)
			return
		}
		fmt.Fprint(w, article)
	}))
	defer server.Close()

	adapter := newTestAdapter()
	company := testCompany("", "")
	company.PressURL = server.URL + "/press"

	meta, err := adapter.FetchLatestPressRelease(context.Background(), company, t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, meta)

	// The PDF anchor and the non-matching link are passed over.
	assert.Equal(t, server.URL+"/news/q2-results", meta.SourceURL)
	assert.Equal(t, models.DocTypePressRelease, meta.DocType)
}

func TestFetchLatestPressReleaseNoMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a href="/about">About us</a></body></html>`)
	}))
	defer server.Close()

	adapter := newTestAdapter()
	company := testCompany("", "")
	company.PressURL = server.URL

	meta, err := adapter.FetchLatestPressRelease(context.Background(), company, t.TempDir())
	assert.NoError(t, err)
	assert.Nil(t, meta)
}

func TestExtractArticleTextFallsBackToBody(t *testing.T) {
	text, err := extractArticleText([]byte(`<html><body><p>Plain body text. Privacy Policy</p></body></html>`))
	require.NoError(t, err)
	assert.Equal(t, "Plain body text.", text)
}

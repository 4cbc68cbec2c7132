package builder

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/radar/internal/models"
	"github.com/xhad/radar/pkg/edgar"
	"github.com/xhad/radar/pkg/extract"
	"github.com/xhad/radar/pkg/fetcher"
	"github.com/xhad/radar/pkg/irsite"
	"github.com/xhad/radar/pkg/manifest"
)

const testCIK = "0000320187"

// newRegistryServer serves one 10-K filing end to end: atom feed, index
// page, and document body. Other filing types get empty feeds.
func newRegistryServer(t *testing.T) *httptest.Server {
	t.Helper()
	accession := "0000320187-25-000008"
	nodash := strings.ReplaceAll(accession, "-", "")

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/cgi-bin/browse-edgar"):
			if r.URL.Query().Get("type") != "10-K" {
				fmt.Fprint(w, `<?xml version="1.0"?><feed xmlns="http://www.w3.org/2005/Atom"></feed>`)
				return
			}
			fmt.Fprintf(w, `<?xml version="1.0"?><feed xmlns="http://www.w3.org/2005/Atom"><entry>
				<updated>2025-07-25T00:00:00-04:00</updated>
				<link rel="alternate" href="%s/Archives/edgar/data/%s/%s/%s-index.htm"/>
			</entry></feed>`, server.URL, testCIK, nodash, accession)

		case strings.HasSuffix(r.URL.Path, "-index.htm"):
			fmt.Fprintf(w, `<html><table>
				<tr><td>1</td><td>Annual report</td><td><a href="/x/%s-doc.htm">doc</a></td><td>PRIMARY DOCUMENT</td><td>1</td></tr>
			</table></html>`, accession)

		case strings.HasSuffix(r.URL.Path, "-doc.htm"):
			fmt.Fprint(w, "<html>annual filing body</html>")

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	return server
}

// newIRServer serves an IR page with an annual report link whose PDF bytes
// carry a valid magic header but no parseable structure.
func newIRServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, ".pdf"):
			w.Write([]byte("%PDF-1.7 not really parseable"))
		default:
			fmt.Fprint(w, `<html><body><a href="/docs/annual-report-2025.pdf">Annual Report 2025</a></body></html>`)
		}
	}))
}

func newTestBuilder(t *testing.T, edgarURL, outputDir string) *Builder {
	t.Helper()
	f := fetcher.NewWithConfig(fetcher.Config{RateLimit: 1000, PerHost: true, MaxAttempts: 1})

	return New(
		edgar.NewWithConfig(f, edgar.Config{BaseURL: edgarURL, SinceDate: "2025-01-01"}),
		irsite.NewWithConfig(f, irsite.Config{}),
		extract.NewWithConfig(extract.Config{OutputDir: filepath.Join(outputDir, "extracted")}),
		Config{
			OutputDir:    outputDir,
			AsOf:         "2025-12-31",
			Since:        "2025-01-01",
			PeerSet:      "fashion_global_8",
			BuildVersion: "0.1.0",
		},
	)
}

func TestRunEndToEnd(t *testing.T) {
	registry := newRegistryServer(t)
	defer registry.Close()
	ir := newIRServer(t)
	defer ir.Close()

	outputDir := t.TempDir()
	b := newTestBuilder(t, registry.URL, outputDir)

	companies := []models.Company{
		{CompanyID: "nike", CompanyName: "Nike, Inc.", Ticker: "NKE", CIK: testCIK},
		{CompanyID: "inditex", CompanyName: "Inditex", Ticker: "ITX.MC", IRURL: ir.URL + "/ir"},
	}

	report, err := b.Run(context.Background(), companies)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Fetched)
	assert.Empty(t, report.Failures)

	// The registry-less company is a recorded skip, not a failure.
	require.NotEmpty(t, report.Skips)
	assert.Equal(t, "inditex", report.Skips[0].CompanyID)
	assert.Equal(t, "edgar", report.Skips[0].Unit)

	m, err := manifest.Read(filepath.Join(outputDir, "manifest.json"))
	require.NoError(t, err)
	require.Len(t, m.Files, 2)
	assert.Equal(t, "fashion_global_8", m.Package.PeerSet)

	// Filing stored under the registry channel, report under the IR channel.
	_, err = os.Stat(filepath.Join(outputDir, "companies", "nike", "sec_edgar", m.Files[0].FileID))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(outputDir, "companies", "inditex", "ir", m.Files[1].FileID))
	assert.NoError(t, err)

	// The unparseable PDF degrades: empty text artifact, note recorded.
	pdfMeta := m.Files[1]
	assert.Equal(t, models.DocTypeAnnualReport, pdfMeta.DocType)
	assert.NotEmpty(t, pdfMeta.ExtractedTextPath)
	assert.Equal(t, "text extraction produced no output", pdfMeta.ExtractionNotes)

	text, err := os.ReadFile(filepath.Join(outputDir, filepath.FromSlash(pdfMeta.ExtractedTextPath)))
	require.NoError(t, err)
	assert.Empty(t, text)

	// Checksum lines match the manifest, one per document.
	checksums, err := os.ReadFile(filepath.Join(outputDir, "checksums.txt"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(checksums), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, m.Files[0].SHA256+"  "+m.Files[0].FileID, lines[0])

	_, err = os.Stat(filepath.Join(outputDir, "README.md"))
	assert.NoError(t, err)

	// Stored bytes verify against the manifest.
	failed, err := manifest.VerifyChecksums(m, outputDir)
	require.NoError(t, err)
	assert.Empty(t, failed)
}

func TestRunPressReleasePathResolvesAgainstRoot(t *testing.T) {
	pressPage := `<html><body><a href="/news/q2-results">Second Quarter Results</a></body></html>`
	article := `<html><body><article>Revenue grew 12% in the period.</article></body></html>`

	ir := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/press" {
			fmt.Fprint(w, pressPage)
			return
		}
		fmt.Fprint(w, article)
	}))
	defer ir.Close()

	outputDir := t.TempDir()
	b := newTestBuilder(t, "http://127.0.0.1:0", outputDir)

	companies := []models.Company{
		{CompanyID: "acme", CompanyName: "Acme Group", PressURL: ir.URL + "/press"},
	}

	report, err := b.Run(context.Background(), companies)
	require.NoError(t, err)
	require.Equal(t, 1, report.Fetched)

	m, err := manifest.Read(filepath.Join(outputDir, "manifest.json"))
	require.NoError(t, err)
	require.Len(t, m.Files, 1)

	meta := m.Files[0]
	assert.Equal(t, models.DocTypePressRelease, meta.DocType)
	assert.True(t, strings.HasPrefix(meta.ExtractedTextPath, "companies/acme/ir/"), meta.ExtractedTextPath)

	// Joining the manifest's directory and the recorded path must land on
	// the artifact, the same contract the loader relies on.
	text, err := os.ReadFile(filepath.Join(outputDir, filepath.FromSlash(meta.ExtractedTextPath)))
	require.NoError(t, err)
	assert.Contains(t, string(text), "Revenue grew 12%")
}

func TestRunFetchFailureDoesNotAbortBuild(t *testing.T) {
	registry := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer registry.Close()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer down.Close()

	outputDir := t.TempDir()
	b := newTestBuilder(t, registry.URL, outputDir)

	companies := []models.Company{
		{CompanyID: "inditex", CompanyName: "Inditex", IRURL: down.URL, SustainabilityURL: down.URL},
	}

	report, err := b.Run(context.Background(), companies)
	require.NoError(t, err)

	assert.Zero(t, report.Fetched)
	assert.Len(t, report.Failures, 2) // annual report and sustainability

	// Artifacts still exist for an empty build.
	m, err := manifest.Read(filepath.Join(outputDir, "manifest.json"))
	require.NoError(t, err)
	assert.Empty(t, m.Files)

	checksums, err := os.ReadFile(filepath.Join(outputDir, "checksums.txt"))
	require.NoError(t, err)
	assert.Equal(t, "\n", string(checksums))
}

func TestRunEmptyCompanyList(t *testing.T) {
	outputDir := t.TempDir()
	b := newTestBuilder(t, "http://127.0.0.1:0", outputDir)

	report, err := b.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, report.Fetched)

	_, err = os.Stat(filepath.Join(outputDir, "manifest.json"))
	assert.NoError(t, err)
}

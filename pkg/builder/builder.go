// Package builder orchestrates one build of the data package: fetch every
// company's documents, extract the PDFs, and write the manifest artifacts.
package builder

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xhad/radar/internal/models"
	"github.com/xhad/radar/pkg/edgar"
	"github.com/xhad/radar/pkg/extract"
	"github.com/xhad/radar/pkg/irsite"
	"github.com/xhad/radar/pkg/manifest"
)

type Config struct {
	OutputDir    string
	AsOf         string
	Since        string
	PeerSet      string
	BuildVersion string
	LicenseNotes string
	OnCompany    func(company models.Company) // progress callback, may be nil
	Logger       *slog.Logger
}

type Builder struct {
	config    Config
	edgar     *edgar.Adapter
	ir        *irsite.Adapter
	extractor *extract.Extractor
	log       *slog.Logger
}

func New(edgarAdapter *edgar.Adapter, irAdapter *irsite.Adapter, extractor *extract.Extractor, config Config) *Builder {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Builder{
		config:    config,
		edgar:     edgarAdapter,
		ir:        irAdapter,
		extractor: extractor,
		log:       config.Logger,
	}
}

// Skip is one fetch unit that produced nothing for an expected reason.
type Skip struct {
	CompanyID string
	Unit      string
	Reason    string
}

// Failure is one fetch unit that errored. Failures never abort the build;
// the remaining units still run.
type Failure struct {
	CompanyID string
	Unit      string
	Err       error
}

// Report summarizes one build run.
type Report struct {
	Fetched  int
	Skips    []Skip
	Failures []Failure
}

// Run executes a full build: per-company fetching, PDF extraction with
// metadata back-fill, then manifest, checksums, and README. Per-unit fetch
// problems degrade to report entries; only manifest writes are fatal.
func (b *Builder) Run(ctx context.Context, companies []models.Company) (*Report, error) {
	report := &Report{}
	var files []models.DocumentMetadata

	for _, company := range companies {
		if b.config.OnCompany != nil {
			b.config.OnCompany(company)
		}
		files = append(files, b.fetchCompany(ctx, company, report)...)
	}

	if err := b.extractPDFs(files); err != nil {
		return report, err
	}

	report.Fetched = len(files)

	m := manifest.New(files, manifest.BuildInfo{
		AsOf:         b.config.AsOf,
		Since:        b.config.Since,
		PeerSet:      b.config.PeerSet,
		BuildVersion: b.config.BuildVersion,
		LicenseNotes: b.config.LicenseNotes,
	})

	if err := manifest.Write(m, filepath.Join(b.config.OutputDir, "manifest.json")); err != nil {
		return report, err
	}
	if err := manifest.WriteChecksums(m, filepath.Join(b.config.OutputDir, "checksums.txt")); err != nil {
		return report, err
	}
	if err := manifest.WriteReadme(m, filepath.Join(b.config.OutputDir, "README.md")); err != nil {
		return report, err
	}

	b.log.Info("build complete",
		slog.Int("fetched", report.Fetched),
		slog.Int("skips", len(report.Skips)),
		slog.Int("failures", len(report.Failures)),
	)
	return report, nil
}

// fetchCompany runs every fetch unit for one company. Registry filings come
// first; the IR annual report is fetched only for companies without a
// registry identifier, so US filers are not double-counted.
func (b *Builder) fetchCompany(ctx context.Context, company models.Company, report *Report) []models.DocumentMetadata {
	var files []models.DocumentMetadata

	edgarDir := filepath.Join(b.config.OutputDir, "companies", company.CompanyID, models.ChannelEdgar)
	irDir := filepath.Join(b.config.OutputDir, "companies", company.CompanyID, models.ChannelIR)

	if company.CIK == "" {
		report.Skips = append(report.Skips, Skip{company.CompanyID, "edgar", "no CIK"})
	} else {
		metadata, err := b.edgar.FetchCompanyFilings(ctx, company, edgarDir)
		if err != nil {
			report.Failures = append(report.Failures, Failure{company.CompanyID, "edgar", err})
		} else {
			files = append(files, metadata...)
		}
	}

	if company.CIK == "" && company.IRURL != "" {
		meta, err := b.ir.FetchAnnualReport(ctx, company, irDir)
		switch {
		case err != nil:
			report.Failures = append(report.Failures, Failure{company.CompanyID, "annual_report", err})
		case meta == nil:
			report.Skips = append(report.Skips, Skip{company.CompanyID, "annual_report", "no matching link"})
		default:
			files = append(files, *meta)
		}
	}

	if company.SustainabilityURL != "" {
		meta, err := b.ir.FetchSustainabilityReport(ctx, company, irDir)
		switch {
		case err != nil:
			report.Failures = append(report.Failures, Failure{company.CompanyID, "sustainability", err})
		case meta == nil:
			report.Skips = append(report.Skips, Skip{company.CompanyID, "sustainability", "no matching link"})
		default:
			files = append(files, *meta)
		}
	}

	if company.PressURL != "" {
		meta, err := b.ir.FetchLatestPressRelease(ctx, company, irDir)
		switch {
		case err != nil:
			report.Failures = append(report.Failures, Failure{company.CompanyID, "press_release", err})
		case meta == nil:
			report.Skips = append(report.Skips, Skip{company.CompanyID, "press_release", "no extractable release"})
		default:
			// The adapter records only the artifact name; rebase it so the
			// manifest path resolves against the package root.
			if meta.ExtractedTextPath != "" {
				meta.ExtractedTextPath = b.relative(filepath.Join(irDir, meta.ExtractedTextPath))
			}
			files = append(files, *meta)
		}
	}

	return files
}

// extractPDFs walks the fetched document tree, extracts every PDF, and
// back-fills the matching metadata record with artifact paths. Paths are
// recorded relative to the output directory so the package is relocatable.
func (b *Builder) extractPDFs(files []models.DocumentMetadata) error {
	byFileID := make(map[string]*models.DocumentMetadata, len(files))
	for i := range files {
		byFileID[files[i].FileID] = &files[i]
	}

	companiesDir := filepath.Join(b.config.OutputDir, "companies")
	return filepath.WalkDir(companiesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil // nothing fetched at all
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".pdf") {
			return nil
		}

		meta, ok := byFileID[d.Name()]
		if !ok {
			b.log.Warn("PDF on disk has no metadata record", slog.String("file", d.Name()))
			return nil
		}

		result, err := b.extractor.ExtractAll(path)
		if err != nil {
			return err
		}

		meta.ExtractedTextPath = b.relative(result.TextPath)
		for _, tablePath := range result.TablePaths {
			meta.TableCSVPaths = append(meta.TableCSVPaths, b.relative(tablePath))
		}
		if result.TextLength == 0 {
			meta.ExtractionNotes = "text extraction produced no output"
		}
		return nil
	})
}

func (b *Builder) relative(path string) string {
	rel, err := filepath.Rel(b.config.OutputDir, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/xhad/radar/internal/models"
	"github.com/xhad/radar/pkg/builder"
	cfgPkg "github.com/xhad/radar/pkg/config"
	"github.com/xhad/radar/pkg/edgar"
	"github.com/xhad/radar/pkg/extract"
	"github.com/xhad/radar/pkg/fetcher"
	"github.com/xhad/radar/pkg/irsite"
)

type Config struct {
	CompaniesPath string
	OutputDir     string
	AsOf          string
	Since         string
	UserAgent     string
	EdgarRate     float64
	IRRate        float64
	PeerSet       string
	BuildVersion  string
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
	flag.StringVar(&config.CompaniesPath, "companies", "companies.yaml", "Path to the tracked companies file")
	flag.StringVar(&config.OutputDir, "output", "data", "Output directory for the data package")
	flag.StringVar(&config.AsOf, "as-of", time.Now().UTC().Format("2006-01-02"), "Build as-of date (YYYY-MM-DD)")
	flag.StringVar(&config.Since, "since", "", "Fetch filings on or after this date (YYYY-MM-DD)")
	flag.StringVar(&config.UserAgent, "user-agent", "", "User-Agent header sent with every request")
	flag.Float64Var(&config.EdgarRate, "edgar-rate", 0, "Requests per second against the filing registry")
	flag.Float64Var(&config.IRRate, "ir-rate", 0, "Requests per second per IR host")
	flag.Parse()

	// Load config file if specified
	if cfg, err := cfgPkg.LoadConfig(configPath); err == nil {
		if config.Since == "" {
			config.Since = cfg.Build.Since
		}
		if config.UserAgent == "" {
			config.UserAgent = cfg.Fetch.UserAgent
		}
		if config.EdgarRate == 0 {
			config.EdgarRate = cfg.Fetch.EdgarRateLimit
		}
		if config.IRRate == 0 {
			config.IRRate = cfg.Fetch.IRRateLimit
		}
		config.PeerSet = cfg.Build.PeerSet
		config.BuildVersion = cfg.Build.Version
	}

	return config
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("companies"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func run(config Config) error {
	companies, err := cfgPkg.LoadCompanies(config.CompaniesPath)
	if err != nil {
		return fmt.Errorf("failed to load companies: %v", err)
	}
	if len(companies) == 0 {
		return fmt.Errorf("no companies in %s", config.CompaniesPath)
	}

	if err := os.MkdirAll(config.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %v", err)
	}

	edgarFetcher := fetcher.NewWithConfig(fetcher.Config{
		RateLimit: config.EdgarRate,
		UserAgent: config.UserAgent,
	})
	irFetcher := fetcher.NewWithConfig(fetcher.Config{
		RateLimit: config.IRRate,
		PerHost:   true,
		UserAgent: config.UserAgent,
	})

	edgarAdapter := edgar.NewWithConfig(edgarFetcher, edgar.Config{SinceDate: config.Since})
	irAdapter := irsite.NewWithConfig(irFetcher, irsite.Config{})
	extractor := extract.NewWithConfig(extract.Config{
		OutputDir: filepath.Join(config.OutputDir, "extracted"),
	})

	color.Blue("\nBuilding disclosure package for %d companies (as of %s)\n", len(companies), config.AsOf)

	bar := getProgressBar(len(companies), "📄 Fetching disclosures...")

	b := builder.New(edgarAdapter, irAdapter, extractor, builder.Config{
		OutputDir:    config.OutputDir,
		AsOf:         config.AsOf,
		Since:        config.Since,
		PeerSet:      config.PeerSet,
		BuildVersion: config.BuildVersion,
		LicenseNotes: "All documents are public disclosures fetched from issuer or regulator sites.",
		OnCompany: func(company models.Company) {
			bar.Describe(color.BlueString("📄 Fetching %s...", company.CompanyName))
			bar.Add(1)
		},
	})

	report, err := b.Run(context.Background(), companies)
	if err != nil {
		return fmt.Errorf("build failed: %v", err)
	}
	bar.Finish()

	color.Green("\n✓ Fetched %d documents", report.Fetched)
	if len(report.Skips) > 0 {
		color.Yellow("⚠ %d units skipped:", len(report.Skips))
		for _, skip := range report.Skips {
			fmt.Printf("  %s/%s: %s\n", skip.CompanyID, skip.Unit, skip.Reason)
		}
	}
	if len(report.Failures) > 0 {
		color.Red("✗ %d units failed:", len(report.Failures))
		for _, failure := range report.Failures {
			fmt.Printf("  %s/%s: %v\n", failure.CompanyID, failure.Unit, failure.Err)
		}
	}

	color.Green("\nPackage written to %s", config.OutputDir)
	return nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/xhad/radar/internal/models"
)

type Config struct {
	Build struct {
		AsOf    string `yaml:"as_of"`
		Since   string `yaml:"since"`
		PeerSet string `yaml:"peer_set"`
		Version string `yaml:"version"`
	} `yaml:"build"`

	Fetch struct {
		UserAgent      string  `yaml:"user_agent"`
		EdgarRateLimit float64 `yaml:"edgar_rate_limit"`
		IRRateLimit    float64 `yaml:"ir_rate_limit"`
	} `yaml:"fetch"`

	Processor struct {
		ChunkSize    int `yaml:"chunk_size"`
		ChunkOverlap int `yaml:"chunk_overlap"`
	} `yaml:"processor"`

	Embedding struct {
		BaseURL  string `yaml:"base_url"`
		Model    string `yaml:"model"`
		MaxChars int    `yaml:"max_chars"`
	} `yaml:"embedding"`

	Database struct {
		URL       string `yaml:"url"`
		TableName string `yaml:"table_name"`
		VectorDim int    `yaml:"vector_dim"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"database"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/radar/config.yaml"),
			"/etc/radar/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Build.PeerSet == "" {
		config.Build.PeerSet = "fashion_global_8"
	}
	if config.Build.Version == "" {
		config.Build.Version = "0.1.0"
	}

	if config.Fetch.UserAgent == "" {
		config.Fetch.UserAgent = "Radar/0.1.0 (Research Demo; contact@example.com)"
	}
	if config.Fetch.EdgarRateLimit == 0 {
		config.Fetch.EdgarRateLimit = 2.0
	}
	if config.Fetch.IRRateLimit == 0 {
		config.Fetch.IRRateLimit = 1.0
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 1000
	}
	if config.Processor.ChunkOverlap == 0 {
		config.Processor.ChunkOverlap = 200
	}

	if config.Embedding.BaseURL == "" {
		config.Embedding.BaseURL = "http://localhost:11434"
	}
	if config.Embedding.Model == "" {
		config.Embedding.Model = "nomic-embed-text:latest"
	}
	if config.Embedding.MaxChars == 0 {
		config.Embedding.MaxChars = 4000
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "document_chunks"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 768
	}
	if config.Database.BatchSize == 0 {
		config.Database.BatchSize = 100
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.Embedding.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if ua := os.Getenv("RADAR_USER_AGENT"); ua != "" {
		config.Fetch.UserAgent = ua
	}
}

// LoadCompanies reads the tracked peer set from a companies.yaml file.
// Companies are immutable after load.
func LoadCompanies(path string) ([]models.Company, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading companies file: %v", err)
	}

	var doc struct {
		Companies []models.Company `yaml:"companies"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("error parsing companies file: %v", err)
	}

	return doc.Companies, nil
}

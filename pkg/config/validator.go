package config

import (
	"fmt"
	"net/url"
	"time"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate Build config
	for field, value := range map[string]string{
		"build.as_of": c.Build.AsOf,
		"build.since": c.Build.Since,
	} {
		if value == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", value); err != nil {
			errors = append(errors, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("must be a YYYY-MM-DD date, got %q", value),
			})
		}
	}

	// Validate Fetch config
	if c.Fetch.EdgarRateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "fetch.edgar_rate_limit",
			Message: "edgar_rate_limit must be positive",
		})
	}

	if c.Fetch.IRRateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "fetch.ir_rate_limit",
			Message: "ir_rate_limit must be positive",
		})
	}

	if c.Fetch.UserAgent == "" {
		errors = append(errors, ValidationError{
			Field:   "fetch.user_agent",
			Message: "user_agent is required (sources require identification)",
		})
	}

	// Validate Processor config
	if c.Processor.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Processor.ChunkOverlap < 0 || c.Processor.ChunkOverlap >= c.Processor.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	// Validate Embedding config
	if _, err := url.Parse(c.Embedding.BaseURL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "embedding.base_url",
			Message: "invalid embedding base URL",
		})
	}

	if c.Embedding.MaxChars < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedding.max_chars",
			Message: "max_chars must be positive",
		})
	}

	// Validate Database config
	if c.Database.URL != "" {
		if _, err := url.Parse(c.Database.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	if c.Database.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.batch_size",
			Message: "batch_size must be positive",
		})
	}

	return errors
}

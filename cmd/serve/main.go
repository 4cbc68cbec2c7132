package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	cfgPkg "github.com/xhad/radar/pkg/config"
	"github.com/xhad/radar/pkg/llm"
	"github.com/xhad/radar/pkg/store"
	"github.com/xhad/radar/server"
)

type Config struct {
	DBUrl     string
	BaseURL   string
	Model     string
	TableName string
	VectorDim int
	Port      string
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
	flag.StringVar(&config.DBUrl, "db-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	flag.StringVar(&config.BaseURL, "ollama-url", os.Getenv("OLLAMA_BASE_URL"), "Ollama server URL")
	flag.StringVar(&config.Model, "model", "", "Embedding model")
	flag.StringVar(&config.Port, "port", os.Getenv("PORT"), "Port to listen on")
	flag.Parse()

	if cfg, err := cfgPkg.LoadConfig(configPath); err == nil {
		if config.DBUrl == "" {
			config.DBUrl = cfg.Database.URL
		}
		if config.BaseURL == "" {
			config.BaseURL = cfg.Embedding.BaseURL
		}
		if config.Model == "" {
			config.Model = cfg.Embedding.Model
		}
		config.TableName = cfg.Database.TableName
		config.VectorDim = cfg.Database.VectorDim
	}

	if config.Port == "" {
		config.Port = "8080"
	}

	return config
}

func run(config Config) error {
	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:   config.Model,
		BaseURL: config.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %v", err)
	}

	vectorStore, err := store.NewWithConfig(store.VectorStoreConfig{
		ConnString: config.DBUrl,
		TableName:  config.TableName,
		VectorDim:  config.VectorDim,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %v", err)
	}
	defer vectorStore.Close()

	s := server.NewWithConfig(embedder, vectorStore, server.Config{})
	return s.ListenAndServe(":" + config.Port)
}

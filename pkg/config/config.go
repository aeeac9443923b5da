package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30m"
// or "1h". Bare integers are taken as seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var seconds int64
	if err := value.Decode(&seconds); err != nil {
		return fmt.Errorf("invalid duration value %q", value.Value)
	}
	*d = Duration(time.Duration(seconds) * time.Second)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type LLMConfig struct {
	BaseURL     string   `yaml:"base_url"`
	Model       string   `yaml:"model"`
	EmbedModel  string   `yaml:"embed_model"`
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature float64  `yaml:"temperature"`
	Timeout     Duration `yaml:"timeout"`
}

type DatabaseConfig struct {
	URL       string `yaml:"url"`
	TableName string `yaml:"table_name"`
	VectorDim int    `yaml:"vector_dim"`
	BatchSize int    `yaml:"batch_size"`
}

// RetrievalConfig holds the fusion weights and thresholds. These are tuned
// defaults, not laws of nature; deployments override them per corpus.
type RetrievalConfig struct {
	TopK             int     `yaml:"top_k"`
	RerankLimit      int     `yaml:"rerank_limit"`
	SemanticWeight   float64 `yaml:"semantic_weight"`
	KeywordWeight    float64 `yaml:"keyword_weight"`
	MinRelevance     float64 `yaml:"min_relevance"`
	FallbackResults  int     `yaml:"fallback_results"`
	ConfidenceHigh   float64 `yaml:"confidence_high"`
	ConfidenceMedium float64 `yaml:"confidence_medium"`
}

type CacheConfig struct {
	TTL                Duration `yaml:"ttl"`
	SemanticCapacity   int      `yaml:"semantic_capacity"`
	SemanticThreshold  float64  `yaml:"semantic_threshold"`
	SemanticMinQuality float64  `yaml:"semantic_min_quality"`
}

type VerifyConfig struct {
	ApproveThreshold float64  `yaml:"approve_threshold"`
	ReviewThreshold  float64  `yaml:"review_threshold"`
	HighRiskTerms    []string `yaml:"high_risk_terms"`
	QuoteLength      int      `yaml:"quote_length"`
}

type AuditConfig struct {
	ApproveThreshold float64 `yaml:"approve_threshold"`
}

type PipelineConfig struct {
	BatchConcurrency int `yaml:"batch_concurrency"`
}

type IngestConfig struct {
	MaxDepth     int     `yaml:"max_depth"`
	RateLimit    float64 `yaml:"rate_limit"`
	ChunkSize    int     `yaml:"chunk_size"`
	ChunkOverlap int     `yaml:"chunk_overlap"`
}

type ServerConfig struct {
	Port      string `yaml:"port"`
	Streaming bool   `yaml:"streaming"`
}

type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Database  DatabaseConfig  `yaml:"database"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Cache     CacheConfig     `yaml:"cache"`
	Verify    VerifyConfig    `yaml:"verify"`
	Audit     AuditConfig     `yaml:"audit"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Server    ServerConfig    `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/ragsafe/config.yaml"),
			"/etc/ragsafe/config.yaml",
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
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
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
	if config.LLM.Model == "" {
		config.LLM.Model = "mistral"
	}
	if config.LLM.EmbedModel == "" {
		config.LLM.EmbedModel = "nomic-embed-text:latest"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.2
	}
	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.Timeout == 0 {
		config.LLM.Timeout = Duration(30 * time.Second)
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "control_chunks"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 768
	}
	if config.Database.BatchSize == 0 {
		config.Database.BatchSize = 100
	}

	if config.Retrieval.TopK == 0 {
		config.Retrieval.TopK = 12
	}
	if config.Retrieval.RerankLimit == 0 {
		config.Retrieval.RerankLimit = 6
	}
	if config.Retrieval.SemanticWeight == 0 {
		config.Retrieval.SemanticWeight = 0.7
	}
	if config.Retrieval.KeywordWeight == 0 {
		config.Retrieval.KeywordWeight = 0.3
	}
	if config.Retrieval.MinRelevance == 0 {
		config.Retrieval.MinRelevance = 0.35
	}
	if config.Retrieval.FallbackResults == 0 {
		config.Retrieval.FallbackResults = 2
	}
	if config.Retrieval.ConfidenceHigh == 0 {
		config.Retrieval.ConfidenceHigh = 0.8
	}
	if config.Retrieval.ConfidenceMedium == 0 {
		config.Retrieval.ConfidenceMedium = 0.5
	}

	if config.Cache.TTL == 0 {
		config.Cache.TTL = Duration(time.Hour)
	}
	if config.Cache.SemanticCapacity == 0 {
		config.Cache.SemanticCapacity = 100
	}
	if config.Cache.SemanticThreshold == 0 {
		config.Cache.SemanticThreshold = 0.85
	}
	if config.Cache.SemanticMinQuality == 0 {
		config.Cache.SemanticMinQuality = 0.7
	}

	if config.Verify.ApproveThreshold == 0 {
		config.Verify.ApproveThreshold = 0.9
	}
	if config.Verify.ReviewThreshold == 0 {
		config.Verify.ReviewThreshold = 0.7
	}
	if len(config.Verify.HighRiskTerms) == 0 {
		config.Verify.HighRiskTerms = []string{
			"audit", "certification", "penalty", "fine", "breach",
			"violation", "soc 2", "iso 27001", "hipaa", "gdpr", "pci",
		}
	}
	if config.Verify.QuoteLength == 0 {
		config.Verify.QuoteLength = 240
	}

	if config.Audit.ApproveThreshold == 0 {
		config.Audit.ApproveThreshold = 0.8
	}

	if config.Pipeline.BatchConcurrency == 0 {
		config.Pipeline.BatchConcurrency = 4
	}

	if config.Ingest.MaxDepth == 0 {
		config.Ingest.MaxDepth = 3
	}
	if config.Ingest.RateLimit == 0 {
		config.Ingest.RateLimit = 2.0
	}
	if config.Ingest.ChunkSize == 0 {
		config.Ingest.ChunkSize = 1000
	}
	if config.Ingest.ChunkOverlap == 0 {
		config.Ingest.ChunkOverlap = 200
	}

	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Port = port
	}
}

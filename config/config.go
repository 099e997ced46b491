package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Equilake  EquilakeConfig  `yaml:"equilake"`
	Watchlist []string        `yaml:"watchlist"`
	Providers ProvidersConfig `yaml:"providers"`
	Fetcher   FetcherConfig   `yaml:"fetcher"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type EquilakeConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type ProvidersConfig struct {
	AlphaVantage AlphaVantageConfig `yaml:"alphavantage"`
	NewsAPI      NewsAPIConfig      `yaml:"newsapi"`
}

type AlphaVantageConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

type NewsAPIConfig struct {
	URL      string `yaml:"url"`
	APIKey   string `yaml:"api_key"`
	PageSize int    `yaml:"page_size"`
	Language string `yaml:"language"`
	SortBy   string `yaml:"sort_by"`
}

type FetcherConfig struct {
	Timeout   time.Duration   `yaml:"timeout"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type PipelineConfig struct {
	MaxWorkers int `yaml:"max_workers"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

func LoadConfig(path string) (*Config, error) {
	// Read configuration file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Providers: ProvidersConfig{
			AlphaVantage: AlphaVantageConfig{
				URL: "https://www.alphavantage.co/query",
			},
			NewsAPI: NewsAPIConfig{
				URL:      "https://newsapi.org/v2/everything",
				PageSize: 25,
				Language: "en",
				SortBy:   "publishedAt",
			},
		},
		Fetcher: FetcherConfig{
			Timeout: 10 * time.Second,
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 1,
				BurstSize:         1,
			},
		},
		Pipeline: PipelineConfig{MaxWorkers: 4},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override secrets from environment variables if available
	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
		config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
		config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		config.Storage.S3.Region = strings.TrimSpace(v)
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		config.Storage.S3.Bucket = strings.TrimSpace(v)
	}
	if v := os.Getenv("ALPHA_VANTAGE_API_KEY"); v != "" {
		config.Providers.AlphaVantage.APIKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("NEWS_API_KEY"); v != "" {
		config.Providers.NewsAPI.APIKey = strings.TrimSpace(v)
	}

	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Equilake.Name == "" {
		return fmt.Errorf("equilake.name is required")
	}

	if cfg.Equilake.Version == "" {
		return fmt.Errorf("equilake.version is required")
	}

	if len(cfg.Watchlist) == 0 {
		return fmt.Errorf("watchlist must contain at least one symbol")
	}
	for _, sym := range cfg.Watchlist {
		if strings.TrimSpace(sym) == "" {
			return fmt.Errorf("watchlist contains an empty symbol")
		}
	}

	if cfg.Fetcher.Timeout <= 0 {
		return fmt.Errorf("fetcher.timeout must be greater than 0")
	}
	if cfg.Fetcher.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("fetcher.rate_limit.requests_per_second must be greater than 0")
	}

	if cfg.Pipeline.MaxWorkers <= 0 {
		return fmt.Errorf("pipeline.max_workers must be greater than 0")
	}

	if cfg.Providers.NewsAPI.PageSize <= 0 || cfg.Providers.NewsAPI.PageSize > 100 {
		return fmt.Errorf("providers.newsapi.page_size must be between 1 and 100")
	}

	if cfg.Storage.S3.Bucket == "" {
		return fmt.Errorf("storage.s3.bucket is required")
	}
	if cfg.Storage.S3.Region == "" {
		return fmt.Errorf("storage.s3.region is required")
	}
	if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
		return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}

package config

import (
	"fmt"
	"time"
)

// Config holds all configuration for the analytics service.
type Config struct {
	Service       ServiceConfig       `yaml:"service"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Redis         RedisConfig         `yaml:"redis"`
	Insight       InsightConfig       `yaml:"insight"`
	Predict       PredictConfig       `yaml:"predict"`
	Geo           GeoConfig           `yaml:"geo"`
	Logging       LoggingConfig       `yaml:"logging"`
	CORS          CORSConfig          `yaml:"cors"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name        string        `yaml:"name"`
	Version     string        `yaml:"version"`
	Port        int           `yaml:"port" env:"STUNTLYTICS_PORT"`
	Debug       bool          `yaml:"debug" env:"STUNTLYTICS_DEBUG"`
	MaxExport   int           `yaml:"max_export_rows" env:"STUNTLYTICS_MAX_EXPORT_ROWS"`
	SampleSize  int           `yaml:"sample_size"`
	CacheTTL    time.Duration `yaml:"cache_ttl" env:"STUNTLYTICS_CACHE_TTL"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
}

// ElasticsearchConfig holds Elasticsearch connection and index configuration.
type ElasticsearchConfig struct {
	URL            string        `yaml:"url" env:"ELASTICSEARCH_URL"`
	Username       string        `yaml:"username" env:"ELASTICSEARCH_USERNAME"`
	Password       string        `yaml:"password" env:"ELASTICSEARCH_PASSWORD"`
	Timeout        time.Duration `yaml:"timeout"`
	StuntingIndex  string        `yaml:"stunting_index" env:"STUNTING_INDEX"`
	NutritionIndex string        `yaml:"nutrition_index" env:"NUTRITION_INDEX"`
	DateField      string        `yaml:"date_field"`
	// Field-name drift across dataset revisions is handled by ordered
	// candidate probing; keep the tables here so schema evolution is a
	// one-place edit.
	RegencyFieldCandidates  []string `yaml:"regency_field_candidates"`
	DistrictFieldCandidates []string `yaml:"district_field_candidates"`
	ResolverTermsSize       int      `yaml:"resolver_terms_size"`
	// Served when resolution exhausts every candidate without a bucket, so
	// the filter panel stays usable against an empty or unreachable index.
	DefaultRegencies []string `yaml:"default_regencies"`
	DefaultDistricts []string `yaml:"default_districts"`
}

// RedisConfig holds the cache backend configuration.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" env:"REDIS_ENABLED"`
	Address  string `yaml:"address" env:"REDIS_ADDRESS"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

// InsightConfig holds the LLM insight generator configuration.
type InsightConfig struct {
	APIKey    string        `yaml:"api_key" env:"ANTHROPIC_API_KEY"`
	Model     string        `yaml:"model" env:"INSIGHT_MODEL"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

// PredictConfig holds the prediction adapter configuration.
type PredictConfig struct {
	// ScoringURL points at the remote model-serving endpoint. Empty means
	// local heuristic scoring only.
	ScoringURL string        `yaml:"scoring_url" env:"PREDICT_API"`
	Timeout    time.Duration `yaml:"timeout"`
}

// GeoConfig holds geographic boundary configuration.
type GeoConfig struct {
	BoundaryPath string `yaml:"boundary_path" env:"GEOJSON_PATH"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Enabled          bool     `yaml:"enabled"`
	AllowedOrigins   []string `yaml:"allowed_origins" env:"CORS_ORIGINS"`
	AllowedMethods   []string `yaml:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers"`
	AllowCredentials bool     `yaml:"allow_credentials"`
	MaxAge           int      `yaml:"max_age"`
}

// Load loads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	cfg, err := LoadWithDefaults[Config](path, setDefaults)
	if err != nil {
		return nil, err
	}

	if validateErr := cfg.Validate(); validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return cfg, nil
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	if cfg.Service.Name == "" {
		cfg.Service.Name = "stuntlytics"
	}
	if cfg.Service.Version == "" {
		cfg.Service.Version = "1.0.0"
	}
	if cfg.Service.Port == 0 {
		cfg.Service.Port = 8095
	}
	if cfg.Service.MaxExport == 0 {
		cfg.Service.MaxExport = 10000
	}
	if cfg.Service.SampleSize == 0 {
		cfg.Service.SampleSize = 1000
	}
	if cfg.Service.CacheTTL == 0 {
		cfg.Service.CacheTTL = 15 * time.Minute
	}
	if cfg.Service.HTTPTimeout == 0 {
		cfg.Service.HTTPTimeout = 60 * time.Second
	}

	if cfg.Elasticsearch.URL == "" {
		cfg.Elasticsearch.URL = "http://localhost:9200"
	}
	if cfg.Elasticsearch.Timeout == 0 {
		cfg.Elasticsearch.Timeout = 60 * time.Second
	}
	if cfg.Elasticsearch.StuntingIndex == "" {
		cfg.Elasticsearch.StuntingIndex = "stunting-data"
	}
	if cfg.Elasticsearch.NutritionIndex == "" {
		cfg.Elasticsearch.NutritionIndex = "jabar-tenaga-gizi"
	}
	if cfg.Elasticsearch.DateField == "" {
		cfg.Elasticsearch.DateField = "Tanggal"
	}
	if len(cfg.Elasticsearch.RegencyFieldCandidates) == 0 {
		cfg.Elasticsearch.RegencyFieldCandidates = []string{"nama_kabupaten_kota", "Wilayah"}
	}
	if len(cfg.Elasticsearch.DistrictFieldCandidates) == 0 {
		cfg.Elasticsearch.DistrictFieldCandidates = []string{"Kecamatan"}
	}
	if cfg.Elasticsearch.ResolverTermsSize == 0 {
		cfg.Elasticsearch.ResolverTermsSize = 500
	}
	if len(cfg.Elasticsearch.DefaultRegencies) == 0 {
		cfg.Elasticsearch.DefaultRegencies = []string{
			"Kab. Bandung", "Kab. Bogor", "Kab. Cirebon", "Kab. Garut",
			"Kab. Sukabumi", "Kab. Sumedang", "Kab. Tasikmalaya",
			"Kota Bandung", "Kota Bogor", "Kota Depok",
		}
	}
	if len(cfg.Elasticsearch.DefaultDistricts) == 0 {
		cfg.Elasticsearch.DefaultDistricts = []string{
			"Kec. Cibatu", "Kec. Cibinong", "Kec. Cicalengka", "Kec. Cimanggung",
			"Kec. Cisayong", "Kec. Leles", "Kec. Lengkong", "Kec. Rancaekek",
			"Kec. Sukajadi", "Kec. Sumber", "Kec. Tarogong Kidul",
		}
	}

	if cfg.Redis.Address == "" {
		cfg.Redis.Address = "localhost:6379"
	}

	if cfg.Insight.Model == "" {
		cfg.Insight.Model = "claude-3-5-haiku-latest"
	}
	if cfg.Insight.MaxTokens == 0 {
		cfg.Insight.MaxTokens = 1024
	}
	if cfg.Insight.Timeout == 0 {
		cfg.Insight.Timeout = 30 * time.Second
	}

	if cfg.Predict.Timeout == 0 {
		cfg.Predict.Timeout = 30 * time.Second
	}

	if cfg.Geo.BoundaryPath == "" {
		cfg.Geo.BoundaryPath = "data/jabar_boundaries.geojson"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if len(cfg.CORS.AllowedOrigins) == 0 {
		cfg.CORS.AllowedOrigins = []string{"*"}
	}
	if len(cfg.CORS.AllowedMethods) == 0 {
		cfg.CORS.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cfg.CORS.AllowedHeaders) == 0 {
		cfg.CORS.AllowedHeaders = []string{"Content-Type", "Authorization"}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return &ValidationError{Field: "service.port", Message: fmt.Sprintf("invalid port: %d", c.Service.Port)}
	}
	if c.Service.MaxExport < 1 {
		return &ValidationError{Field: "service.max_export_rows", Message: "must be greater than 0"}
	}
	if c.Elasticsearch.URL == "" {
		return &ValidationError{Field: "elasticsearch.url", Message: "is required"}
	}
	if c.Elasticsearch.StuntingIndex == "" {
		return &ValidationError{Field: "elasticsearch.stunting_index", Message: "is required"}
	}
	if len(c.Elasticsearch.RegencyFieldCandidates) == 0 {
		return &ValidationError{Field: "elasticsearch.regency_field_candidates", Message: "needs at least one candidate"}
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error", "fatal":
	default:
		return &ValidationError{Field: "logging.level", Message: "must be one of debug, info, warn, error, fatal"}
	}
	return nil
}

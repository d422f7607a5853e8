package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed calibration.yaml
var calibrationYAML []byte

type Config struct {
	Match      MatchConfig      `yaml:"match"`
	Normalizer NormalizerConfig `yaml:"normalizer"`
	Scan       ScanConfig       `yaml:"scan"`
	Uploads    UploadsConfig    `yaml:"uploads"`
	Embedding  EmbeddingConfig  `yaml:"-"`
	Database   DatabaseConfig   `yaml:"-"`
	Storage    StorageConfig    `yaml:"-"`
	Web        WebConfig        `yaml:"-"`
}

type MatchConfig struct {
	Threshold  float64 `yaml:"threshold"`   // cosine distance below which two faces match
	CropSize   int     `yaml:"crop_size"`   // side of the square face crop fed to the model
	FaceMargin float64 `yaml:"face_margin"` // fraction of the box added on every side before cropping
}

type NormalizerConfig struct {
	MinSide       int     `yaml:"min_side"`
	BlurThreshold float64 `yaml:"blur_threshold"` // minimum variance of the Laplacian
	LongSide      int     `yaml:"long_side"`
	JPEGQuality   int     `yaml:"jpeg_quality"`
}

type ScanConfig struct {
	FetchTimeoutSeconds  int     `yaml:"fetch_timeout_seconds"`
	Workers              int     `yaml:"workers"`
	InferenceParallelism int     `yaml:"inference_parallelism"`
	FetchRateLimit       float64 `yaml:"fetch_rate_limit"` // requests per second, 0 disables
}

// FetchTimeout returns the per-candidate image fetch timeout.
func (c ScanConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// UploadsConfig holds storage path templates per post type.
// Templates may use the {author} and {uuid} placeholders.
type UploadsConfig struct {
	Missing string `yaml:"missing"`
	Found   string `yaml:"found"`
}

// Template returns the storage path template for a post type.
// Unknown types get an empty string.
func (c UploadsConfig) Template(postType string) string {
	switch postType {
	case "missing":
		return c.Missing
	case "found":
		return c.Found
	default:
		return ""
	}
}

type EmbeddingConfig struct {
	URL   string // face model server, defaults to http://localhost:8000
	Cache bool   // store embeddings keyed by image hash and model version
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type StorageConfig struct {
	Bucket        string
	Region        string
	Endpoint      string // custom S3 endpoint (MinIO, R2), empty for AWS
	AccessKey     string
	SecretKey     string
	PublicBaseURL string // base URL objects are served from, e.g. https://cdn.example.com/bucket
}

// Enabled reports whether an object storage bucket is configured.
func (c StorageConfig) Enabled() bool {
	return c.Bucket != ""
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat is envInt for positive floats.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envBool(key string) bool {
	b, _ := strconv.ParseBool(os.Getenv(key))
	return b
}

func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Defaults returns the embedded calibration without environment overrides.
func Defaults() *Config {
	var cfg Config
	if err := yaml.Unmarshal(calibrationYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded calibration.yaml: " + err.Error())
	}
	cfg.Database = DatabaseConfig{MaxOpenConns: 25, MaxIdleConns: 5}
	cfg.Web = WebConfig{Host: "0.0.0.0", Port: 8080}
	return &cfg
}

func Load() *Config {
	cfg := Defaults()

	cfg.Match.Threshold = envFloat("MATCH_THRESHOLD", cfg.Match.Threshold)
	cfg.Scan.Workers = envInt("SCAN_WORKERS", cfg.Scan.Workers)
	cfg.Scan.InferenceParallelism = envInt("INFERENCE_PARALLELISM", cfg.Scan.InferenceParallelism)
	cfg.Scan.FetchTimeoutSeconds = envInt("FETCH_TIMEOUT_SECONDS", cfg.Scan.FetchTimeoutSeconds)
	cfg.Scan.FetchRateLimit = envFloat("FETCH_RATE_LIMIT", cfg.Scan.FetchRateLimit)

	cfg.Embedding = EmbeddingConfig{
		URL:   os.Getenv("EMBEDDING_URL"),
		Cache: envBool("EMBEDDING_CACHE"),
	}
	cfg.Database = DatabaseConfig{
		URL:          os.Getenv("DATABASE_URL"),
		MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns),
		MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns),
	}
	cfg.Storage = StorageConfig{
		Bucket:        os.Getenv("S3_BUCKET"),
		Region:        os.Getenv("S3_REGION"),
		Endpoint:      os.Getenv("S3_ENDPOINT"),
		AccessKey:     os.Getenv("S3_ACCESS_KEY"),
		SecretKey:     os.Getenv("S3_SECRET_KEY"),
		PublicBaseURL: os.Getenv("S3_PUBLIC_BASE_URL"),
	}
	cfg.Web.Port = envInt("WEB_PORT", cfg.Web.Port)
	if host := os.Getenv("WEB_HOST"); host != "" {
		cfg.Web.Host = host
	}
	cfg.Web.AllowedOrigins = envList("WEB_ALLOWED_ORIGINS")

	return cfg
}

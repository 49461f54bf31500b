package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/djpapzin/papzincrew/internal/utils"
)

// Config holds the complete application configuration. One immutable value
// is built at startup and threaded through constructors; nothing below the
// composition root reads process environment state directly.
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server" json:"server"`

	// Database configuration
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Remote/fallback storage configuration
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Upload validation configuration
	Upload UploadConfig `yaml:"upload" json:"upload"`

	// Duplicate detection configuration
	Duplicates DuplicatesConfig `yaml:"duplicates" json:"duplicates"`

	// Cover art resolution configuration
	CoverArt CoverArtConfig `yaml:"cover_art" json:"cover_art"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `yaml:"host" json:"host" env:"PAPZIN_HOST" default:"0.0.0.0"`
	Port         int           `yaml:"port" json:"port" env:"PAPZIN_PORT" default:"8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout" env:"PAPZIN_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout" env:"PAPZIN_WRITE_TIMEOUT" default:"30s"`
	EnableCORS   bool          `yaml:"enable_cors" json:"enable_cors" env:"PAPZIN_ENABLE_CORS" default:"true"`
}

// DatabaseConfig holds catalog database configuration
type DatabaseConfig struct {
	Type         string `yaml:"type" json:"type" env:"DATABASE_TYPE" default:"sqlite"`
	Host         string `yaml:"host" json:"host" env:"POSTGRES_HOST" default:"localhost"`
	Port         int    `yaml:"port" json:"port" env:"POSTGRES_PORT" default:"5432"`
	Username     string `yaml:"username" json:"username" env:"POSTGRES_USER" default:"papzincrew"`
	Password     string `yaml:"password" json:"-" env:"POSTGRES_PASSWORD"`
	Database     string `yaml:"database" json:"database" env:"POSTGRES_DB" default:"papzincrew"`
	DataDir      string `yaml:"data_dir" json:"data_dir" env:"PAPZIN_DATA_DIR" default:"./data"`
	DatabasePath string `yaml:"database_path" json:"database_path" env:"PAPZIN_DATABASE_PATH"`
	LogQueries   bool   `yaml:"log_queries" json:"log_queries" env:"DB_LOG_QUERIES" default:"false"`
}

// StorageConfig holds remote object store and local fallback configuration.
// The remote store is an S3-compatible Backblaze B2 bucket.
type StorageConfig struct {
	B2Endpoint        string        `yaml:"b2_endpoint" json:"b2_endpoint" env:"B2_ENDPOINT"`
	B2Region          string        `yaml:"b2_region" json:"b2_region" env:"B2_REGION" default:"us-west-002"`
	B2Bucket          string        `yaml:"b2_bucket" json:"b2_bucket" env:"B2_BUCKET"`
	B2AccessKeyID     string        `yaml:"b2_access_key_id" json:"-" env:"B2_ACCESS_KEY_ID"`
	B2SecretAccessKey string        `yaml:"b2_secret_access_key" json:"-" env:"B2_SECRET_ACCESS_KEY"`
	MaxAttempts       int           `yaml:"max_attempts" json:"max_attempts" env:"B2_MAX_ATTEMPTS" default:"3"`
	AttemptTimeout    time.Duration `yaml:"attempt_timeout" json:"attempt_timeout" env:"B2_ATTEMPT_TIMEOUT" default:"15s"`
	RetryBaseDelay    time.Duration `yaml:"retry_base_delay" json:"retry_base_delay" env:"B2_RETRY_BASE_DELAY" default:"2s"`
	RetryMaxDelay     time.Duration `yaml:"retry_max_delay" json:"retry_max_delay" env:"B2_RETRY_MAX_DELAY" default:"30s"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" json:"backoff_multiplier" env:"B2_BACKOFF_MULTIPLIER" default:"2.0"`
	EnforceRemoteOnly bool          `yaml:"enforce_remote_only" json:"enforce_remote_only" env:"STORAGE_ENFORCE_REMOTE_ONLY" default:"false"`
	FallbackDir       string        `yaml:"fallback_dir" json:"fallback_dir" env:"UPLOAD_DIR" default:"./uploads"`
	MigratorEnabled   bool          `yaml:"migrator_enabled" json:"migrator_enabled" env:"STORAGE_MIGRATOR_ENABLED" default:"true"`
	MigratorInterval  time.Duration `yaml:"migrator_interval" json:"migrator_interval" env:"STORAGE_MIGRATOR_INTERVAL" default:"10m"`
}

// UploadConfig holds upload validation limits
type UploadConfig struct {
	MaxFileSize       int64    `yaml:"max_file_size" json:"max_file_size" env:"UPLOAD_MAX_FILE_SIZE" default:"104857600"`
	AllowedExtensions []string `yaml:"allowed_extensions" json:"allowed_extensions" env:"UPLOAD_ALLOWED_EXTENSIONS"`
}

// DuplicatesConfig holds the fuzzy duplicate detection knobs. The weights
// and threshold are deliberately tunable; the defaults are a starting point
// validated against near-duplicate corpora, not a final answer.
type DuplicatesConfig struct {
	TitleWeight       float64       `yaml:"title_weight" json:"title_weight" env:"DUP_TITLE_WEIGHT" default:"0.35"`
	ArtistWeight      float64       `yaml:"artist_weight" json:"artist_weight" env:"DUP_ARTIST_WEIGHT" default:"0.35"`
	DurationWeight    float64       `yaml:"duration_weight" json:"duration_weight" env:"DUP_DURATION_WEIGHT" default:"0.2"`
	SizeWeight        float64       `yaml:"size_weight" json:"size_weight" env:"DUP_SIZE_WEIGHT" default:"0.1"`
	Threshold         float64       `yaml:"threshold" json:"threshold" env:"DUP_THRESHOLD" default:"0.75"`
	DurationTolerance time.Duration `yaml:"duration_tolerance" json:"duration_tolerance" env:"DUP_DURATION_TOLERANCE" default:"10s"`
}

// CoverArtConfig holds cover art resolution and AI generation configuration
type CoverArtConfig struct {
	GeneratorURL    string        `yaml:"generator_url" json:"generator_url" env:"AI_ART_BASE_URL" default:"https://image.pollinations.ai/prompt"`
	GeneratorWidth  int           `yaml:"generator_width" json:"generator_width" env:"AI_ART_WIDTH" default:"1024"`
	GeneratorHeight int           `yaml:"generator_height" json:"generator_height" env:"AI_ART_HEIGHT" default:"1024"`
	RequestTimeout  time.Duration `yaml:"request_timeout" json:"request_timeout" env:"AI_ART_TIMEOUT" default:"60s"`
	MaxAttempts     int           `yaml:"max_attempts" json:"max_attempts" env:"AI_ART_MAX_ATTEMPTS" default:"2"`
	Workers         int           `yaml:"workers" json:"workers" env:"AI_ART_WORKERS" default:"2"`
	PlaceholderURL  string        `yaml:"placeholder_url" json:"placeholder_url" env:"AI_ART_PLACEHOLDER_URL" default:"/static/default-cover.png"`
	Enabled         bool          `yaml:"enabled" json:"enabled" env:"AI_ART_ENABLED" default:"true"`
}

// Default returns the default application configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			EnableCORS:   true,
		},
		Database: DatabaseConfig{
			Type:     "sqlite",
			Host:     "localhost",
			Port:     5432,
			Username: "papzincrew",
			Database: "papzincrew",
			DataDir:  "./data",
		},
		Storage: StorageConfig{
			B2Region:          "us-west-002",
			MaxAttempts:       3,
			AttemptTimeout:    15 * time.Second,
			RetryBaseDelay:    2 * time.Second,
			RetryMaxDelay:     30 * time.Second,
			BackoffMultiplier: 2.0,
			FallbackDir:       "./uploads",
			MigratorEnabled:   true,
			MigratorInterval:  10 * time.Minute,
		},
		Upload: UploadConfig{
			MaxFileSize: 100 * 1024 * 1024, // 100MB
			AllowedExtensions: []string{
				".mp3", ".flac", ".m4a", ".aac", ".ogg", ".wav", ".opus", ".aiff",
			},
		},
		Duplicates: DuplicatesConfig{
			TitleWeight:       0.35,
			ArtistWeight:      0.35,
			DurationWeight:    0.2,
			SizeWeight:        0.1,
			Threshold:         0.75,
			DurationTolerance: 10 * time.Second,
		},
		CoverArt: CoverArtConfig{
			GeneratorURL:    "https://image.pollinations.ai/prompt",
			GeneratorWidth:  1024,
			GeneratorHeight: 1024,
			RequestTimeout:  60 * time.Second,
			MaxAttempts:     2,
			Workers:         2,
			PlaceholderURL:  "/static/default-cover.png",
			Enabled:         true,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML/JSON file,
// and environment variable overrides, then validates it.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" && utils.FileExists(configPath) {
		if err := loadFromFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	cfg.applyDerived()

	return cfg, nil
}

// Validate performs basic sanity checks on the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Type != "sqlite" && c.Database.Type != "postgres" {
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	if c.Upload.MaxFileSize <= 0 {
		return fmt.Errorf("invalid max file size: %d", c.Upload.MaxFileSize)
	}

	if c.Storage.MaxAttempts < 1 {
		return fmt.Errorf("invalid storage max attempts: %d", c.Storage.MaxAttempts)
	}

	weightSum := c.Duplicates.TitleWeight + c.Duplicates.ArtistWeight +
		c.Duplicates.DurationWeight + c.Duplicates.SizeWeight
	if weightSum <= 0 {
		return fmt.Errorf("duplicate detection weights must sum to a positive value, got %f", weightSum)
	}

	if c.Duplicates.Threshold <= 0 || c.Duplicates.Threshold > 1 {
		return fmt.Errorf("invalid duplicate threshold: %f", c.Duplicates.Threshold)
	}

	return nil
}

// RemoteConfigured reports whether the remote object store is fully
// configured. An unconfigured remote store means every write lands on the
// local fallback (or fails under remote-only enforcement).
func (c *StorageConfig) RemoteConfigured() bool {
	return c.B2Endpoint != "" && c.B2Bucket != "" &&
		c.B2AccessKeyID != "" && c.B2SecretAccessKey != ""
}

func (c *Config) applyDerived() {
	if c.Database.DatabasePath == "" && c.Database.Type == "sqlite" {
		c.Database.DatabasePath = filepath.Join(c.Database.DataDir, "papzincrew.db")
	}
}

// Helper functions

func loadFromFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, config)
	case ".json":
		return json.Unmarshal(data, config)
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}
}

func loadStructFromEnv(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}

		// Handle nested structs recursively
		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envValue := os.Getenv(envTag)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set field %s: %w", fieldType.Name, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			duration, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(duration))
		} else {
			intVal, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(intVal)
		}
	case reflect.Float32, reflect.Float64:
		floatVal, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatVal)
	case reflect.Bool:
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolVal)
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			values := strings.Split(value, ",")
			for i, v := range values {
				values[i] = strings.TrimSpace(v)
			}
			field.Set(reflect.ValueOf(values))
		}
	default:
		return fmt.Errorf("unsupported field type: %v", field.Kind())
	}

	return nil
}

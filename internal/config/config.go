package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the feedback worker.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	AWS      AWSConfig      `yaml:"aws"`
	Queue    QueueConfig    `yaml:"queue"`
	Storage  StorageConfig  `yaml:"storage"`
	Feedback FeedbackConfig `yaml:"feedback"`
}

// ServerConfig holds the ops HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the listen address for the ops server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AWSConfig holds AWS client settings.
type AWSConfig struct {
	Region  string `yaml:"region"`
	Profile string `yaml:"profile"`
}

// QueueConfig holds feedback queue settings.
type QueueConfig struct {
	URL string `yaml:"url"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	TableName     string `yaml:"table_name"`
	ArchiveBucket string `yaml:"archive_bucket"` // empty disables envelope archival
}

// FeedbackConfig holds pipeline-specific settings.
type FeedbackConfig struct {
	EmailHashSecretName    string `yaml:"email_hash_secret_name"`
	EngagementTTLParamName string `yaml:"engagement_ttl_param_name"`
	DefaultEngagementTTL   int    `yaml:"default_engagement_ttl_days"`
}

// Load reads configuration from a YAML file, applies defaults, and then
// applies environment overrides. A .env file in the working directory is
// loaded first if present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	// Defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = "us-east-1"
	}
	if cfg.Feedback.EmailHashSecretName == "" {
		cfg.Feedback.EmailHashSecretName = "EMAIL_HASH_SECRET"
	}
	if cfg.Feedback.EngagementTTLParamName == "" {
		cfg.Feedback.EngagementTTLParamName = "ENGAGEMENT_TTL_DAYS"
	}
	if cfg.Feedback.DefaultEngagementTTL == 0 {
		cfg.Feedback.DefaultEngagementTTL = 90
	}

	// Environment overrides
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("AWS_REGION_OVERRIDE"); v != "" {
		cfg.AWS.Region = v
	}
	if v := os.Getenv("AWS_PROFILE_OVERRIDE"); v != "" {
		cfg.AWS.Profile = v
	}
	if v := os.Getenv("FEEDBACK_QUEUE_URL"); v != "" {
		cfg.Queue.URL = v
	}
	if v := os.Getenv("FEEDBACK_TABLE_NAME"); v != "" {
		cfg.Storage.TableName = v
	}
	if v := os.Getenv("FEEDBACK_ARCHIVE_BUCKET"); v != "" {
		cfg.Storage.ArchiveBucket = v
	}

	return &cfg, cfg.Validate()
}

// Validate checks that the settings a worker cannot run without are set.
func (c *Config) Validate() error {
	if c.Queue.URL == "" {
		return fmt.Errorf("queue.url is required")
	}
	if c.Storage.TableName == "" {
		return fmt.Errorf("storage.table_name is required")
	}
	return nil
}

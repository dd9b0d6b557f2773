package config

import (
	"net"
	"strconv"
	"time"

	"github.com/rpattn/vizflow/internal/db"
	"github.com/rpattn/vizflow/internal/processing"
)

// Config is the full service configuration.
type Config struct {
	Server     ServerConfig
	Database   db.Config
	Upload     UploadConfig
	Processing ProcessingConfig
	CORS       CORSConfig
	Logging    LoggingConfig
	Storage    StorageConfig
	Queue      QueueConfig
	Export     ExportConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	Environment     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Development reports whether detailed errors may be exposed to clients.
func (s ServerConfig) Development() bool {
	return s.Environment == "development"
}

type UploadConfig struct {
	MaxSize int64
	TempDir string
}

type ProcessingConfig struct {
	CSVCommand  string
	XMLCommand  string
	OCRCommand  string
	OCRLanguage string
	Timeout     time.Duration
}

// Settings converts the processing section into processor settings.
func (c *Config) Settings() processing.Settings {
	return processing.Settings{
		CSVCommand:  c.Processing.CSVCommand,
		XMLCommand:  c.Processing.XMLCommand,
		OCRCommand:  c.Processing.OCRCommand,
		OCRLanguage: c.Processing.OCRLanguage,
		Timeout:     c.Processing.Timeout,
		TempDir:     c.Upload.TempDir,
	}
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LoggingConfig struct {
	Level  string
	Format string
}

type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

type QueueConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Concurrency   int
	MaxRetry      int
}

type ExportConfig struct {
	MaxRows int
}

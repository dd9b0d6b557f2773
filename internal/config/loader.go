package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/docker/go-units"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const envPrefix = "VIZFLOW"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.environment", "production")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "admin")
	v.SetDefault("database.dbname", "vizflow")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 5)

	v.SetDefault("upload.max_size", "50MB")
	v.SetDefault("upload.temp_dir", os.TempDir())

	v.SetDefault("processing.csv_command", "python3 scripts/csv_processor.py")
	v.SetDefault("processing.xml_command", "python3 scripts/xml_processor.py")
	v.SetDefault("processing.ocr_command", "tesseract")
	v.SetDefault("processing.ocr_language", "eng")
	v.SetDefault("processing.timeout", "2m")

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.bucket", "vizflow-uploads")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.use_ssl", false)

	v.SetDefault("queue.enabled", false)
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.concurrency", 4)
	v.SetDefault("queue.max_retry", 3)

	v.SetDefault("export.max_rows", 50000)
}

// Load reads config.yaml from configPath (if present), a .env file in the
// working directory (if present) and VIZFLOW_* environment overrides.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config load: .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config load: %w", err)
		}
		logrus.Debug("no config.yaml found, using defaults and env vars")
	} else {
		logrus.WithField("file", v.ConfigFileUsed()).Debug("loaded config file")
	}

	cfg, err := fromViper(v)
	if err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) (*Config, error) {
	maxSize, err := units.RAMInBytes(v.GetString("upload.max_size"))
	if err != nil {
		return nil, fmt.Errorf("upload.max_size: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			Environment:     v.GetString("server.environment"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Upload: UploadConfig{
			MaxSize: maxSize,
			TempDir: v.GetString("upload.temp_dir"),
		},
		Processing: ProcessingConfig{
			CSVCommand:  v.GetString("processing.csv_command"),
			XMLCommand:  v.GetString("processing.xml_command"),
			OCRCommand:  v.GetString("processing.ocr_command"),
			OCRLanguage: v.GetString("processing.ocr_language"),
			Timeout:     v.GetDuration("processing.timeout"),
		},
		CORS: CORSConfig{
			AllowedOrigins: stringList(v.Get("cors.allowed_origins")),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		Storage: StorageConfig{
			Enabled:   v.GetBool("storage.enabled"),
			Endpoint:  v.GetString("storage.endpoint"),
			AccessKey: v.GetString("storage.access_key"),
			SecretKey: v.GetString("storage.secret_key"),
			Bucket:    v.GetString("storage.bucket"),
			Region:    v.GetString("storage.region"),
			UseSSL:    v.GetBool("storage.use_ssl"),
		},
		Queue: QueueConfig{
			Enabled:       v.GetBool("queue.enabled"),
			RedisAddr:     v.GetString("queue.redis_addr"),
			RedisPassword: v.GetString("queue.redis_password"),
			RedisDB:       v.GetInt("queue.redis_db"),
			Concurrency:   v.GetInt("queue.concurrency"),
			MaxRetry:      v.GetInt("queue.max_retry"),
		},
		Export: ExportConfig{
			MaxRows: v.GetInt("export.max_rows"),
		},
	}
	cfg.Database.Host = v.GetString("database.host")
	cfg.Database.Port = v.GetInt("database.port")
	cfg.Database.User = v.GetString("database.user")
	cfg.Database.Password = v.GetString("database.password")
	cfg.Database.DBName = v.GetString("database.dbname")
	cfg.Database.SSLMode = v.GetString("database.sslmode")
	cfg.Database.MaxConns = v.GetInt32("database.max_conns")

	return cfg, nil
}

// stringList accepts a YAML list or a comma separated env value.
func stringList(raw any) []string {
	var parts []string
	switch val := raw.(type) {
	case []string:
		parts = val
	case []any:
		for _, item := range val {
			parts = append(parts, fmt.Sprint(item))
		}
	case string:
		parts = strings.Split(val, ",")
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks that the configuration is usable.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "server.shutdown_timeout must be positive")
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "database.max_conns must be positive")
	}
	if c.Upload.MaxSize <= 0 {
		errs = append(errs, "upload.max_size must be positive")
	}
	if c.Processing.Timeout <= 0 {
		errs = append(errs, "processing.timeout must be positive")
	}
	if strings.TrimSpace(c.Processing.CSVCommand) == "" {
		errs = append(errs, "processing.csv_command is required")
	}
	if strings.TrimSpace(c.Processing.XMLCommand) == "" {
		errs = append(errs, "processing.xml_command is required")
	}
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Sprintf("logging.level %q is invalid", c.Logging.Level))
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		errs = append(errs, fmt.Sprintf("logging.format %q must be text or json", c.Logging.Format))
	}
	if c.Export.MaxRows <= 0 {
		errs = append(errs, "export.max_rows must be positive")
	}
	if c.Storage.Enabled && c.Storage.Bucket == "" {
		errs = append(errs, "storage.bucket is required when storage is enabled")
	}
	if c.Queue.Enabled {
		if !c.Storage.Enabled {
			errs = append(errs, "queue requires storage to be enabled")
		}
		if c.Queue.Concurrency <= 0 {
			errs = append(errs, "queue.concurrency must be positive")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ByteSize — размер в байтах, который в YAML и ENV задаётся строкой вида "4GiB" или числом.
type ByteSize int64

// UnmarshalYAML разбирает человекочитаемый размер.
func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	v, err := ParseByteSize(node.Value)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// MarshalYAML отдаёт размер в человекочитаемом виде.
func (b ByteSize) MarshalYAML() (any, error) {
	return b.String(), nil
}

func (b ByteSize) String() string {
	return units.BytesSize(float64(b))
}

// ParseByteSize понимает "0", "1024", "512MiB", "4GB" (единицы двоичные).
func ParseByteSize(s string) (ByteSize, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	n, err := units.RAMInBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return ByteSize(n), nil
}

type Config struct {
	ListenAddr         string        `yaml:"listen_addr" json:"listen_addr"`
	TempDir            string        `yaml:"temp_dir" json:"temp_dir"`
	UploadDir          string        `yaml:"upload_dir" json:"upload_dir"`
	PublicDir          string        `yaml:"public_dir" json:"public_dir"`
	MetaDSN            string        `yaml:"meta_dsn" json:"meta_dsn"`
	MaxFileSize        ByteSize      `yaml:"max_file_size" json:"max_file_size"`
	ScanTimeout        time.Duration `yaml:"scan_timeout" json:"scan_timeout"`
	AssembleTimeout    time.Duration `yaml:"assemble_timeout" json:"assemble_timeout"`
	CleanAfterAssemble bool          `yaml:"clean_after_assemble" json:"clean_after_assemble"`
	GCTTL              time.Duration `yaml:"gc_ttl" json:"gc_ttl"`
	GCInterval         time.Duration `yaml:"gc_interval" json:"gc_interval"`
	LogLevel           string        `yaml:"log_level" json:"log_level"`
	LogFormat          string        `yaml:"log_format" json:"log_format"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() *Config {
	return &Config{
		ListenAddr:      ":3000",
		TempDir:         "./tmp",
		UploadDir:       "./uploads",
		MetaDSN:         "memory://",
		MaxFileSize:     4 * units.GiB,
		ScanTimeout:     10 * time.Second,
		AssembleTimeout: 10 * time.Minute,
		GCTTL:           24 * time.Hour,
		GCInterval:      30 * time.Minute,
		LogLevel:        "info",
		LogFormat:       "json",
	}
}

// Load читает .env, YAML-конфигурацию поверх дефолтов, применяет ENV-переопределения и возвращает актуальную структуру.
// Отсутствие файла конфигурации не ошибка.
func Load() (*Config, error) {
	_ = godotenv.Load()

	c := Default()
	path := getenv("CONFIG_PATH", "./config.yaml")
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}

	return c, c.Validate()
}

func (c *Config) applyEnv() error {
	// ENV override
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("TEMP_DIR"); v != "" {
		c.TempDir = v
	}
	if v := os.Getenv("UPLOAD_DIR"); v != "" {
		c.UploadDir = v
	}
	if v := os.Getenv("PUBLIC_DIR"); v != "" {
		c.PublicDir = v
	}
	if v := os.Getenv("META_DSN"); v != "" {
		c.MetaDSN = v
	}
	if v := os.Getenv("MAX_FILE_SIZE"); v != "" {
		size, err := ParseByteSize(v)
		if err != nil {
			return err
		}
		c.MaxFileSize = size
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}

	return nil
}

// Validate проверяет обязательные поля.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.TempDir) == "" {
		return fmt.Errorf("temp_dir is not configured")
	}
	if strings.TrimSpace(c.UploadDir) == "" {
		return fmt.Errorf("upload_dir is not configured")
	}
	if c.MaxFileSize < 0 {
		return fmt.Errorf("max_file_size must not be negative")
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}

	return def
}

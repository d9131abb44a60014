package chunking

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/casevault/discovery-backend/internal/platform/envutil"
)

// Config bounds the assembler. Sizes are in characters of chunk text.
type Config struct {
	TargetSize int `yaml:"target_size"`
	MinSize    int `yaml:"min_size"`
	MaxSize    int `yaml:"max_size"`
	Overlap    int `yaml:"overlap"`
}

func DefaultConfig() Config {
	return Config{
		TargetSize: 1200,
		MinSize:    100,
		MaxSize:    2000,
		Overlap:    200,
	}
}

// LoadConfig layers, lowest to highest precedence: defaults, the optional
// YAML file named by CHUNKING_CONFIG, then CHUNK_* env overrides.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("CHUNKING_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read chunking config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse chunking config %s: %w", path, err)
		}
	}

	cfg.TargetSize = envutil.Int("CHUNK_TARGET_SIZE", cfg.TargetSize)
	cfg.MinSize = envutil.Int("CHUNK_MIN_SIZE", cfg.MinSize)
	cfg.MaxSize = envutil.Int("CHUNK_MAX_SIZE", cfg.MaxSize)
	cfg.Overlap = envutil.Int("CHUNK_OVERLAP", cfg.Overlap)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.MinSize <= 0 {
		return fmt.Errorf("chunking: min_size must be positive, got %d", c.MinSize)
	}
	if c.TargetSize < c.MinSize {
		return fmt.Errorf("chunking: target_size %d below min_size %d", c.TargetSize, c.MinSize)
	}
	if c.MaxSize < c.TargetSize {
		return fmt.Errorf("chunking: max_size %d below target_size %d", c.MaxSize, c.TargetSize)
	}
	if c.Overlap < 0 || c.Overlap >= c.TargetSize {
		return fmt.Errorf("chunking: overlap %d must be in [0, target_size)", c.Overlap)
	}
	return nil
}

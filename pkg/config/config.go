package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"companion/pkg/llm"
	"companion/pkg/prompt"
	"companion/pkg/storage"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM    llm.Config    `yaml:"llm"`
	Prompt prompt.Budget `yaml:"prompt"`

	PromptCacheSize int `yaml:"prompt_cache_size"`

	Conversation struct {
		MaxTurns int `yaml:"max_turns"`
	} `yaml:"conversation"`

	Archetypes struct {
		OverrideDir string `yaml:"override_dir"`
	} `yaml:"archetypes"`

	Media struct {
		FetchTimeout  time.Duration `yaml:"fetch_timeout"`
		UploadTimeout time.Duration `yaml:"upload_timeout"`
		MaxBytes      int64         `yaml:"max_bytes"`
		AllowLocalIPs bool          `yaml:"allow_local_ips"`
		PathPrefix    string        `yaml:"path_prefix"`
	} `yaml:"media"`

	Storage struct {
		Backend string `yaml:"backend"` // "fs" or "minio"
		FS      struct {
			Root      string `yaml:"root"`
			PublicURL string `yaml:"public_url"`
		} `yaml:"fs"`
		Minio storage.MinioConfig `yaml:"minio"`
	} `yaml:"storage"`

	Redis struct {
		URL        string        `yaml:"url"`
		Prefix     string        `yaml:"prefix"`
		TurnWindow int           `yaml:"turn_window"`
		TurnTTL    time.Duration `yaml:"turn_ttl"`
		MediaTTL   time.Duration `yaml:"media_ttl"`
		PersonaTTL time.Duration `yaml:"persona_ttl"`
	} `yaml:"redis"`

	Surreal struct {
		Host      string `yaml:"host"`
		Namespace string `yaml:"namespace"`
		Database  string `yaml:"database"`
		User      string `yaml:"-"`
		Pass      string `yaml:"-"`
	} `yaml:"surreal"`

	// Comma-separated, from LLM_API_KEYS
	LLMKeys string `yaml:"-"`
}

func LoadConfig(path string) (*Config, error) {
	config := &Config{}

	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		config.applyDefaults()
		return config, nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	err = yaml.Unmarshal(file, config)
	if err != nil {
		return nil, err
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyDefaults() {
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 1
	}
	if c.LLM.TopP == 0 {
		c.LLM.TopP = 1
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 1024
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 60 * time.Second
	}
	c.Prompt = c.Prompt.WithDefaults()
	if c.PromptCacheSize == 0 {
		c.PromptCacheSize = 256
	}
	if c.Conversation.MaxTurns == 0 {
		c.Conversation.MaxTurns = 20
	}
	if c.Media.FetchTimeout == 0 {
		c.Media.FetchTimeout = 20 * time.Second
	}
	if c.Media.UploadTimeout == 0 {
		c.Media.UploadTimeout = 30 * time.Second
	}
	if c.Media.MaxBytes == 0 {
		c.Media.MaxBytes = 15 << 20
	}
	if c.Media.PathPrefix == "" {
		c.Media.PathPrefix = "personas"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "fs"
	}
	if c.Storage.FS.Root == "" {
		c.Storage.FS.Root = "data/media"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "companion"
	}
	if c.Redis.TurnWindow == 0 {
		c.Redis.TurnWindow = 50
	}
	if c.Surreal.Namespace == "" {
		c.Surreal.Namespace = "companion"
	}
	if c.Surreal.Database == "" {
		c.Surreal.Database = "engine"
	}
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "fs", "minio":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Conversation.MaxTurns < 0 {
		return fmt.Errorf("conversation.max_turns must not be negative")
	}
	if c.Media.MaxBytes < 0 {
		return fmt.Errorf("media.max_bytes must not be negative")
	}
	return nil
}

// ApplyEnv copies secrets and deployment overrides from the environment.
// Call it after godotenv has loaded .env.
func (c *Config) ApplyEnv() {
	c.LLMKeys = os.Getenv("LLM_API_KEYS")
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}

	if v := os.Getenv("SURREAL_DB_HOST"); v != "" {
		c.Surreal.Host = v
	}
	c.Surreal.User = os.Getenv("SURREAL_DB_USER")
	c.Surreal.Pass = os.Getenv("SURREAL_DB_PASS")
	if v := os.Getenv("SURREAL_DB_NAMESPACE"); v != "" {
		c.Surreal.Namespace = v
	}
	if v := os.Getenv("SURREAL_DB_DATABASE"); v != "" {
		c.Surreal.Database = v
	}

	c.Storage.Minio.AccessKey = os.Getenv("S3_ACCESS_KEY")
	c.Storage.Minio.SecretKey = os.Getenv("S3_SECRET_KEY")
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = strings.ToLower(v)
	}
}

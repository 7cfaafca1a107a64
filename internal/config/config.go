package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// ErrMissingCredential is returned when HF_TOKEN is not configured.
var ErrMissingCredential = errors.New("missing HF_TOKEN")

const (
	BackendBolt   = "bolt"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendMySQL  = "mysql"
	BackendMemory = "memory"
)

// MissingCredentialMessage is shown before the process exits on ErrMissingCredential.
const MissingCredentialMessage = "Missing API Key! Please add HF_TOKEN to your environment."

type Config struct {
	HTTPAddr    string   `yaml:"http_addr" env:"HTTP_ADDR" env-default:":8080"`
	LogLevel    string   `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	AccessLog   bool     `yaml:"access_log" env:"ACCESS_LOG" env-default:"true"`
	CORSOrigins []string `yaml:"cors_origins" env:"CORS_ORIGINS" env-separator:","`

	// Secret shared by both inference endpoints.
	HFToken string `yaml:"-" env:"HF_TOKEN"`

	// store
	StoreBackend  string `yaml:"store_backend" env:"STORE_BACKEND" env-default:"bolt"`
	StorePath     string `yaml:"store_path" env:"STORE_PATH" env-default:"nextile_storage.db"`
	StoreName     string `yaml:"store_name" env:"STORE_NAME" env-default:"nextile_storage"`
	DBDSN         string `yaml:"db_dsn" env:"DB_DSN"`
	RedisAddr     string `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"127.0.0.1:6379"`
	RedisPassword string `yaml:"-" env:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"REDIS_DB" env-default:"0"`

	// chat provider
	ChatProvider          string `yaml:"chat_provider" env:"CHAT_PROVIDER" env-default:"huggingface"`
	ChatModel             string `yaml:"chat_model" env:"CHAT_MODEL" env-default:"meta-llama/Llama-3.2-3B-Instruct"`
	ChatBaseURL           string `yaml:"chat_base_url" env:"CHAT_BASE_URL" env-default:"https://router.huggingface.co/v1"`
	ChatMaxTokens         int    `yaml:"chat_max_tokens" env:"CHAT_MAX_TOKENS" env-default:"1000"`
	ChatTokenBudget       int    `yaml:"chat_token_budget" env:"CHAT_TOKEN_BUDGET" env-default:"0"`
	ChatContextWindowSize int    `yaml:"chat_context_window_size" env:"CHAT_CONTEXT_WINDOW_SIZE" env-default:"0"`

	OllamaBaseURL     string `yaml:"ollama_base_url" env:"OLLAMA_BASE_URL" env-default:"http://localhost:11434"`
	OpenRouterBaseURL string `yaml:"openrouter_base_url" env:"OPENROUTER_BASE_URL" env-default:"https://openrouter.ai/api/v1"`
	OpenRouterAPIKey  string `yaml:"-" env:"OPENROUTER_API_KEY"`
	OpenRouterSiteURL string `yaml:"openrouter_site_url" env:"OPENROUTER_SITE_URL"`
	OpenRouterAppName string `yaml:"openrouter_app_name" env:"OPENROUTER_APP_NAME" env-default:"Nextile AI"`

	// image provider
	ImageProvider string `yaml:"image_provider" env:"IMAGE_PROVIDER" env-default:"huggingface"`
	ImageModel    string `yaml:"image_model" env:"IMAGE_MODEL" env-default:"black-forest-labs/FLUX.1-schnell"`
	ImageBaseURL  string `yaml:"image_base_url" env:"IMAGE_BASE_URL" env-default:"https://router.huggingface.co/hf-inference/models"`
	OpenAIAPIKey  string `yaml:"-" env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `yaml:"openai_base_url" env:"OPENAI_BASE_URL"`

	PersonaPath   string `yaml:"persona_path" env:"PERSONA_PATH"`
	SessionSecret string `yaml:"-" env:"SESSION_SECRET"`

	// rabbitMQ, empty URL disables saved-conversation events
	RabbitURL         string `yaml:"rabbit_url" env:"RABBIT_URL"`
	RabbitQueue       string `yaml:"rabbit_queue" env:"RABBIT_QUEUE" env-default:"conversation_saved"`
	ArchiveDSN        string `yaml:"archive_dsn" env:"ARCHIVE_DSN" env-default:"file:nextile_archive.db"`
	ArchiveHTTPAddr   string `yaml:"archive_http_addr" env:"ARCHIVE_HTTP_ADDR" env-default:":8081"`
	WorkerConcurrency int    `yaml:"worker_concurrency" env:"WORKER_CONCURRENCY" env-default:"2"`

	TelegramAPIToken string `yaml:"-" env:"TELEGRAM_APITOKEN"`
}

// Load reads .env (if present), then the optional config file at path, then the
// environment. Environment values win over the file.
func Load(path string) (Config, error) {
	return load(path, true)
}

// LoadWithoutCredential is Load for processes that never call the inference
// endpoints, such as the archive worker.
func LoadWithoutCredential(path string) (Config, error) {
	return load(path, false)
}

func load(path string, requireCredential bool) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	var cfg Config
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}

	cfg.normalize()
	if err := cfg.validate(requireCredential); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	c.ChatProvider = strings.ToLower(strings.TrimSpace(c.ChatProvider))
	c.ImageProvider = strings.ToLower(strings.TrimSpace(c.ImageProvider))
	c.HFToken = strings.TrimSpace(c.HFToken)
	if c.ChatContextWindowSize < 0 || c.ChatContextWindowSize > 100 {
		c.ChatContextWindowSize = 0
	}
	if c.WorkerConcurrency <= 0 {
		c.WorkerConcurrency = 2
	}
	if c.WorkerConcurrency > 50 {
		c.WorkerConcurrency = 50
	}
}

// Validate checks the settings the process cannot start without.
func (c Config) Validate() error {
	return c.validate(true)
}

func (c Config) validate(requireCredential bool) error {
	if requireCredential && c.HFToken == "" {
		return ErrMissingCredential
	}
	switch c.StoreBackend {
	case BackendBolt, BackendRedis, BackendSQLite, BackendMySQL, BackendMemory:
	default:
		return fmt.Errorf("unsupported STORE_BACKEND=%q", c.StoreBackend)
	}
	if c.StoreBackend == BackendMySQL && c.DBDSN == "" {
		return errors.New("DB_DSN is required for the mysql store backend")
	}
	if c.StoreName == "" {
		return errors.New("STORE_NAME must not be empty")
	}
	return nil
}

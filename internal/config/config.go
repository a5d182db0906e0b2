package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	AppEnv   string `yaml:"app_env"`
	HTTPAddr string `yaml:"http_addr"`
	MCPAddr  string `yaml:"mcp_addr"`
	DataDir  string `yaml:"data_dir"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`

	SupabaseURL         string `yaml:"supabase_url"`
	SupabaseServiceKey  string `yaml:"supabase_service_key"`
	SupabaseImageBucket string `yaml:"supabase_image_bucket"`
	SupabaseVoiceBucket string `yaml:"supabase_voice_bucket"`

	LLMProvider  string `yaml:"llm_provider"`
	GeminiAPIKey string `yaml:"gemini_api_key"`
	LLMModel     string `yaml:"llm_model"`

	OpenAIAPIKey string `yaml:"openai_api_key"`

	QueueConcurrency int           `yaml:"queue_concurrency"`
	QueueMaxRetries  int           `yaml:"queue_max_retries"`
	QueueRetryBase   time.Duration `yaml:"queue_retry_base"`
	SaveWaitTimeout  time.Duration `yaml:"save_wait_timeout"`
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// Load builds the config from environment variables. When SYNAPSE_CONFIG
// points at a YAML file, values set there override the environment.
func Load() Config {
	cfg := Config{
		AppEnv:   getenv("APP_ENV", "development"),
		HTTPAddr: getenv("HTTP_ADDR", ":8080"),
		MCPAddr:  getenv("MCP_ADDR", ":8091"),
		DataDir:  getenv("DATA_DIR", "./data"),

		RedisAddr:     getenv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		SupabaseURL:         os.Getenv("SUPABASE_URL"),
		SupabaseServiceKey:  os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseImageBucket: getenv("SUPABASE_IMAGE_BUCKET", "images"),
		SupabaseVoiceBucket: getenv("SUPABASE_VOICE_BUCKET", "voice-audio"),

		LLMProvider:  getenv("LLM_PROVIDER", "gemini"),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		LLMModel:     getenv("LLM_MODEL", "gemini-1.5-flash"),

		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),

		QueueConcurrency: getenvInt("QUEUE_CONCURRENCY", 5),
		QueueMaxRetries:  getenvInt("QUEUE_MAX_RETRIES", 3),
		QueueRetryBase:   getenvDuration("QUEUE_RETRY_BASE", 5*time.Second),
		SaveWaitTimeout:  getenvDuration("SAVE_WAIT_TIMEOUT", 45*time.Second),
	}

	if path := os.Getenv("SYNAPSE_CONFIG"); path != "" {
		if b, err := os.ReadFile(path); err == nil {
			_ = yaml.Unmarshal(b, &cfg)
		}
	}
	return cfg
}

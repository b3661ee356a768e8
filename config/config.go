package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Config struct {
	ServerPort      string        `toml:"server_port"`
	ReadTimeout     time.Duration `toml:"read_timeout"`
	WriteTimeout    time.Duration `toml:"write_timeout"`
	IdleTimeout     time.Duration `toml:"idle_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`

	RateLimit         int           `toml:"rate_limit"`
	RateLimitInterval time.Duration `toml:"rate_limit_interval"`

	DataDir    string        `toml:"data_dir"`
	SessionTTL time.Duration `toml:"session_ttl"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	LogDir    string `toml:"log_dir"`

	Video     VideoConfig     `toml:"video"`
	Knowledge KnowledgeConfig `toml:"knowledge"`
}

type VideoConfig struct {
	MetadataProvider string        `toml:"metadata_provider"`
	YTDLPPath        string        `toml:"ytdlp_path"`
	HTTPTimeout      time.Duration `toml:"http_timeout"`
	TranscriptLangs  []string      `toml:"transcript_langs"`
}

type KnowledgeConfig struct {
	LLMProvider         string  `toml:"llm_provider"`
	LLMModel            string  `toml:"llm_model"`
	LLMTemperature      float64 `toml:"llm_temperature"`
	EmbedderProvider    string  `toml:"embedder_provider"`
	EmbedderModel       string  `toml:"embedder_model"`
	VectorStoreProvider string  `toml:"vector_store_provider"`
	ChunkSize           int     `toml:"chunk_size"`
	ChunkOverlap        int     `toml:"chunk_overlap"`
	TopK                int     `toml:"top_k"`
	RequestsPerSecond   int     `toml:"requests_per_second"`
}

func defaults() *Config {
	return &Config{
		ServerPort:        "8080",
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		RateLimit:         5,
		RateLimitInterval: 1 * time.Second,
		DataDir:           os.TempDir(),
		SessionTTL:        2 * time.Hour,
		LogLevel:          "info",
		LogFormat:         "text",
		Video: VideoConfig{
			MetadataProvider: "ytdlp",
			YTDLPPath:        "yt-dlp",
			HTTPTimeout:      30 * time.Second,
			TranscriptLangs:  []string{"en"},
		},
		Knowledge: KnowledgeConfig{
			LLMProvider:         "gemini",
			LLMModel:            "gemini-2.0-flash",
			LLMTemperature:      0.5,
			EmbedderProvider:    "gemini",
			EmbedderModel:       "text-embedding-004",
			VectorStoreProvider: "sqlite",
			ChunkSize:           1000,
			ChunkOverlap:        200,
			TopK:                5,
			RequestsPerSecond:   5,
		},
	}
}

// LoadConfig builds the configuration from defaults, then the optional TOML
// file named by CONFIG_FILE, then environment variables.
func LoadConfig() (*Config, error) {
	cfg := defaults()

	if path := GetEnv("CONFIG_FILE", ""); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, errors.Wrapf(err, "error decoding config file %s", path)
		}
		logrus.WithField("path", path).Info("Loaded config file")
	}

	cfg.ServerPort = GetEnv("SERVER_PORT", cfg.ServerPort)
	cfg.ReadTimeout = getEnvAsDuration("READ_TIMEOUT", cfg.ReadTimeout)
	cfg.WriteTimeout = getEnvAsDuration("WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.IdleTimeout = getEnvAsDuration("IDLE_TIMEOUT", cfg.IdleTimeout)
	cfg.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.RateLimit = getEnvAsInt("RATE_LIMIT", cfg.RateLimit)
	cfg.RateLimitInterval = getEnvAsDuration("RATE_LIMIT_INTERVAL", cfg.RateLimitInterval)
	cfg.DataDir = GetEnv("DATA_DIR", cfg.DataDir)
	cfg.SessionTTL = getEnvAsDuration("SESSION_TTL", cfg.SessionTTL)
	cfg.LogLevel = GetEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = GetEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.LogDir = GetEnv("LOG_DIR", cfg.LogDir)

	cfg.Video.MetadataProvider = GetEnv("METADATA_PROVIDER", cfg.Video.MetadataProvider)
	cfg.Video.YTDLPPath = GetEnv("YTDLP_PATH", cfg.Video.YTDLPPath)
	cfg.Video.HTTPTimeout = getEnvAsDuration("HTTP_TIMEOUT", cfg.Video.HTTPTimeout)
	cfg.Video.TranscriptLangs = getEnvAsStringSlice("TRANSCRIPT_LANGS", cfg.Video.TranscriptLangs)

	k := &cfg.Knowledge
	k.LLMProvider = GetEnv("LLM_PROVIDER", k.LLMProvider)
	k.LLMModel = GetEnv("LLM_MODEL", k.LLMModel)
	k.LLMTemperature = getEnvAsFloat("LLM_TEMPERATURE", k.LLMTemperature)
	k.EmbedderProvider = GetEnv("EMBEDDER_PROVIDER", k.EmbedderProvider)
	k.EmbedderModel = GetEnv("EMBEDDER_MODEL", k.EmbedderModel)
	k.VectorStoreProvider = GetEnv("VECTOR_STORE_PROVIDER", k.VectorStoreProvider)
	k.ChunkSize = getEnvAsInt("CHUNK_SIZE", k.ChunkSize)
	k.ChunkOverlap = getEnvAsInt("CHUNK_OVERLAP", k.ChunkOverlap)
	k.TopK = getEnvAsInt("TOP_K", k.TopK)
	k.RequestsPerSecond = getEnvAsInt("AI_REQUESTS_PER_SECOND", k.RequestsPerSecond)

	return cfg, nil
}

func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		logrus.WithFields(logrus.Fields{
			"key":          key,
			"value":        value,
			"defaultValue": defaultValue,
		}).Warn("Invalid duration, using default")
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		logrus.WithFields(logrus.Fields{
			"key":          key,
			"value":        value,
			"defaultValue": defaultValue,
		}).Warn("Invalid integer, using default")
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
		logrus.WithFields(logrus.Fields{
			"key":          key,
			"value":        value,
			"defaultValue": defaultValue,
		}).Warn("Invalid float, using default")
	}
	return defaultValue
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func ValidateConfig(cfg *Config) error {
	if cfg.ServerPort == "" {
		return errors.New("server port is required")
	}
	if cfg.DataDir == "" {
		return errors.New("data directory is required")
	}
	if cfg.ReadTimeout <= 0 {
		return errors.New("read timeout must be greater than 0")
	}
	if cfg.WriteTimeout <= 0 {
		return errors.New("write timeout must be greater than 0")
	}
	if cfg.IdleTimeout <= 0 {
		return errors.New("idle timeout must be greater than 0")
	}
	if cfg.SessionTTL <= 0 {
		return errors.New("session TTL must be greater than 0")
	}
	if cfg.RateLimit <= 0 || cfg.RateLimitInterval <= 0 {
		return errors.New("rate limit and interval must be greater than 0")
	}
	if cfg.Video.HTTPTimeout <= 0 {
		return errors.New("HTTP timeout must be greater than 0")
	}
	switch cfg.Video.MetadataProvider {
	case "ytdlp", "page":
	default:
		return errors.Errorf("unknown metadata provider %q", cfg.Video.MetadataProvider)
	}

	k := cfg.Knowledge
	if k.LLMProvider != "gemini" {
		return errors.Errorf("unknown LLM provider %q", k.LLMProvider)
	}
	if k.EmbedderProvider != "gemini" {
		return errors.Errorf("unknown embedder provider %q", k.EmbedderProvider)
	}
	if k.VectorStoreProvider != "sqlite" {
		return errors.Errorf("unknown vector store provider %q", k.VectorStoreProvider)
	}
	if k.ChunkSize <= 0 {
		return errors.New("chunk size must be greater than 0")
	}
	if k.ChunkOverlap < 0 || k.ChunkOverlap >= k.ChunkSize {
		return errors.New("chunk overlap must be between 0 and chunk size")
	}
	if k.TopK <= 0 {
		return errors.New("top k must be greater than 0")
	}
	if k.RequestsPerSecond <= 0 {
		return errors.New("AI requests per second must be greater than 0")
	}
	return nil
}

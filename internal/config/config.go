package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	ErrEmptyEnvironmentVariable  = errors.New("empty environment variable")
	ErrUnknownCompletionProvider = errors.New("unknown completion provider")
)

const (
	CompletionProviderOpenAI = "openai"
	CompletionProviderGemini = "gemini"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Twilio     TwilioConfig
	Deepgram   DeepgramConfig
	ElevenLabs ElevenLabsConfig
	Completion CompletionConfig
	Session    SessionConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int
	// BaseURL is the public https origin Twilio uses for webhooks.
	BaseURL string
	// BaseWSURL is the public wss origin Twilio uses for the media stream.
	BaseWSURL string
}

// TwilioConfig holds credentials for placing outbound calls
type TwilioConfig struct {
	AccountSID  string
	AuthToken   string
	PhoneNumber string
}

// DeepgramConfig holds speech-to-text settings
type DeepgramConfig struct {
	APIKey   string
	Model    string
	Language string
}

// ElevenLabsConfig holds text-to-speech settings
type ElevenLabsConfig struct {
	APIKey  string
	VoiceID string
	ModelID string
}

// CompletionConfig selects and configures the language model
type CompletionConfig struct {
	Provider     string
	OpenAIAPIKey string
	OpenAIModel  string
	GeminiAPIKey string
	GeminiModel  string
	MaxTokens    int
	Timeout      time.Duration
}

// SessionConfig holds per-call conversation settings
type SessionConfig struct {
	Persona            string
	Greeting           string
	FallbackUtterance  string
	SynthesisTimeout   time.Duration
	MaxQueuedTurns     int
	MaxTranscriberOpen int
}

// RedisConfig holds Redis connection settings used for rate limiting
type RedisConfig struct {
	Enabled        bool
	Host           string
	Port           int
	Password       string
	DB             int
	CreateCallsRPM int
}

// KafkaConfig holds event streaming configuration for call status events
type KafkaConfig struct {
	Brokers       string
	StatusTopic   string
	ConsumerGroup string
}

// Enabled reports whether a broker list was configured.
func (k KafkaConfig) Enabled() bool {
	return strings.TrimSpace(k.Brokers) != ""
}

// BrokerList splits the comma separated broker list.
func (k KafkaConfig) BrokerList() []string {
	var out []string
	for _, b := range strings.Split(k.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

const (
	defaultPersona = "You are Matilda, a friendly and concise phone assistant. " +
		"Keep every reply to one or two short sentences suitable for speaking aloud."
	defaultGreeting = "Hello, this is Matilda. How may I help you?"
	defaultFallback = "Sorry, I didn't quite catch that. Could you say it again?"
)

// Load reads and validates all required environment variables
func Load() (*Config, error) {
	if os.Getenv("GO_ENV") != "production" {
		if err := godotenv.Load("env.local"); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env.local: %w", err)
		}
	}
	return FromEnv()
}

// FromEnv builds the configuration from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	var err error

	// Server configuration
	serverPort := getEnvWithDefault("SERVER_PORT", "3000")
	cfg.Server.Port, err = strconv.Atoi(serverPort)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SERVER_PORT: %w", err)
	}
	cfg.Server.BaseURL = strings.TrimRight(getEnvWithDefault("BASE_URL", fmt.Sprintf("http://localhost:%d", cfg.Server.Port)), "/")
	cfg.Server.BaseWSURL = strings.TrimRight(getEnvWithDefault("BASE_WS_URL", fmt.Sprintf("ws://localhost:%d", cfg.Server.Port)), "/")

	// Twilio configuration
	if cfg.Twilio.AccountSID, err = requireEnv("TWILIO_ACCOUNT_SID"); err != nil {
		return nil, err
	}
	if cfg.Twilio.AuthToken, err = requireEnv("TWILIO_AUTH_TOKEN"); err != nil {
		return nil, err
	}
	if cfg.Twilio.PhoneNumber, err = requireEnv("TWILIO_PHONE_NUMBER"); err != nil {
		return nil, err
	}

	// Speech configuration
	if cfg.Deepgram.APIKey, err = requireEnv("DEEPGRAM_API_KEY"); err != nil {
		return nil, err
	}
	cfg.Deepgram.Model = getEnvWithDefault("DEEPGRAM_MODEL", "nova-2-phonecall")
	cfg.Deepgram.Language = getEnvWithDefault("DEEPGRAM_LANGUAGE", "en-US")

	if cfg.ElevenLabs.APIKey, err = requireEnv("ELEVENLABS_API_KEY"); err != nil {
		return nil, err
	}
	if cfg.ElevenLabs.VoiceID, err = requireEnv("ELEVENLABS_VOICE_ID"); err != nil {
		return nil, err
	}
	cfg.ElevenLabs.ModelID = getEnvWithDefault("ELEVENLABS_MODEL_ID", "eleven_flash_v2_5")

	// Completion configuration
	cfg.Completion.Provider = strings.ToLower(getEnvWithDefault("COMPLETION_PROVIDER", CompletionProviderOpenAI))
	switch cfg.Completion.Provider {
	case CompletionProviderOpenAI:
		if cfg.Completion.OpenAIAPIKey, err = requireEnv("OPENAI_API_KEY"); err != nil {
			return nil, err
		}
	case CompletionProviderGemini:
		if cfg.Completion.GeminiAPIKey, err = requireEnv("GOOGLE_AI_API_KEY"); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("COMPLETION_PROVIDER=%q: %w", cfg.Completion.Provider, ErrUnknownCompletionProvider)
	}
	cfg.Completion.OpenAIModel = getEnvWithDefault("OPENAI_MODEL", "gpt-4o-mini")
	cfg.Completion.GeminiModel = getEnvWithDefault("GEMINI_MODEL", "gemini-2.0-flash")
	if cfg.Completion.MaxTokens, err = getIntWithDefault("COMPLETION_MAX_TOKENS", 150); err != nil {
		return nil, err
	}
	if cfg.Completion.Timeout, err = getDurationWithDefault("COMPLETION_TIMEOUT", 8*time.Second); err != nil {
		return nil, err
	}

	// Session configuration
	cfg.Session.Persona = getEnvWithDefault("ASSISTANT_PERSONA", defaultPersona)
	cfg.Session.Greeting = getEnvWithDefault("ASSISTANT_GREETING", defaultGreeting)
	cfg.Session.FallbackUtterance = getEnvWithDefault("ASSISTANT_FALLBACK", defaultFallback)
	if cfg.Session.SynthesisTimeout, err = getDurationWithDefault("SYNTHESIS_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.Session.MaxQueuedTurns, err = getIntWithDefault("MAX_QUEUED_TURNS", 4); err != nil {
		return nil, err
	}
	if cfg.Session.MaxTranscriberOpen, err = getIntWithDefault("MAX_TRANSCRIBER_REOPENS", 2); err != nil {
		return nil, err
	}

	// Redis configuration
	cfg.Redis.Enabled = getEnvWithDefault("REDIS_ENABLED", "false") == "true"
	cfg.Redis.Host = getEnvWithDefault("REDIS_HOST", "localhost")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	if cfg.Redis.Port, err = getIntWithDefault("REDIS_PORT", 6379); err != nil {
		return nil, err
	}
	if cfg.Redis.DB, err = getIntWithDefault("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.Redis.CreateCallsRPM, err = getIntWithDefault("CREATE_CALLS_RPM", 10); err != nil {
		return nil, err
	}

	// Kafka configuration
	cfg.Kafka.Brokers = os.Getenv("KAFKA_BROKERS")
	cfg.Kafka.StatusTopic = getEnvWithDefault("KAFKA_STATUS_TOPIC", "call-status-events")
	cfg.Kafka.ConsumerGroup = getEnvWithDefault("KAFKA_CONSUMER_GROUP", "voice-server-events")

	return cfg, nil
}

// VoiceURL is the TwiML document Twilio fetches once the callee answers.
func (s ServerConfig) VoiceURL() string {
	return s.BaseURL + "/api/phone/voice"
}

// StatusCallbackURL receives call progress postbacks.
func (s ServerConfig) StatusCallbackURL() string {
	return s.BaseURL + "/api/phone/status"
}

// MediaStreamURL is the websocket Twilio streams call audio to.
func (s ServerConfig) MediaStreamURL() string {
	return s.BaseWSURL + "/api/phone/media-stream"
}

// requireEnv retrieves an environment variable or returns an error if empty
func requireEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s is not set: %w", key, ErrEmptyEnvironmentVariable)
	}
	return value, nil
}

// getEnvWithDefault retrieves an environment variable or returns a default value
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntWithDefault(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return v, nil
}

func getDurationWithDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return v, nil
}

package bootstrap

import (
	"context"
	"fmt"

	"voice-server/internal/api"
	deepgramClient "voice-server/internal/clients/deepgram"
	elevenLabsClient "voice-server/internal/clients/elevenlabs"
	"voice-server/internal/clients/googleai"
	kafkaClient "voice-server/internal/clients/kafka"
	openAIClient "voice-server/internal/clients/openai"
	redisClient "voice-server/internal/clients/redis"
	twilioClient "voice-server/internal/clients/twilio"
	"voice-server/internal/config"
	"voice-server/internal/observability"
	"voice-server/internal/ratelimit"
	"voice-server/internal/voice/speech"
	"voice-server/internal/voicecall/conversation"
	voiceCallHandler "voice-server/internal/voicecall/handler"
	voiceCallProcessor "voice-server/internal/voicecall/processor"
	"voice-server/internal/voicecall/session"

	"github.com/gin-gonic/gin"
)

// Dependencies holds all initialized application dependencies
type Dependencies struct {
	// Core
	Logger  *observability.Logger
	Metrics *observability.Metrics

	// Processors and handlers
	VoiceCallProcessor *voiceCallProcessor.VoiceCallProcessor
	VoiceCallHandler   voiceCallHandler.Handler

	// Optional middleware and health probes; nil when their backing service is disabled
	CreateCallLimit gin.HandlerFunc
	Health          api.HealthChecker

	// Clients (for cleanup)
	RedisClient   *redisClient.Client
	KafkaProducer *kafkaClient.Producer
}

// Initialize sets up all application dependencies
func Initialize(ctx context.Context, cfg *config.Config, logger *observability.Logger, metrics *observability.Metrics) (*Dependencies, error) {
	deps := &Dependencies{
		Logger:  logger,
		Metrics: metrics,
	}

	// Initialize speech clients
	transcriber, err := deepgramClient.NewClient(cfg.Deepgram.APIKey, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create deepgram client: %w", err)
	}
	synthesizer, err := elevenLabsClient.NewClient(cfg.ElevenLabs.APIKey, cfg.ElevenLabs.VoiceID, cfg.ElevenLabs.ModelID, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create elevenlabs client: %w", err)
	}

	// Initialize completion provider
	completer, err := newCompleter(ctx, cfg.Completion, logger)
	if err != nil {
		return nil, err
	}
	generator := conversation.NewGenerator(completer, conversation.GeneratorConfig{
		MaxTokens: cfg.Completion.MaxTokens,
		Timeout:   cfg.Completion.Timeout,
		Fallback:  cfg.Session.FallbackUtterance,
	}, logger, metrics)

	// Initialize Kafka producer for call status events
	var publisher voiceCallProcessor.EventPublisher
	if cfg.Kafka.Enabled() {
		deps.KafkaProducer = kafkaClient.NewProducer(kafkaClient.ProducerConfig{
			Brokers: cfg.Kafka.BrokerList(),
			Topic:   cfg.Kafka.StatusTopic,
		}, logger)
		publisher = deps.KafkaProducer
	}

	// Initialize Redis-backed rate limiting for call creation
	deps.RedisClient, err = redisClient.NewClient(cfg.Redis, logger)
	if err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}
	if deps.RedisClient != nil {
		limiter := ratelimit.NewService(deps.RedisClient, cfg.Redis.CreateCallsRPM, "create_call", logger)
		deps.CreateCallLimit = limiter.Middleware()
		deps.Health = deps.RedisClient
	}

	// Initialize voice call processor and handler
	deps.VoiceCallProcessor = voiceCallProcessor.New(
		twilioClient.NewClient(cfg.Twilio, logger),
		publisher,
		voiceCallProcessor.MediaServices{
			Transcriber: transcriber,
			Synthesizer: synthesizer,
			Responder:   generator,
		},
		voiceCallProcessor.Config{
			VoiceURL:          cfg.Server.VoiceURL(),
			StatusCallbackURL: cfg.Server.StatusCallbackURL(),
			MediaStreamURL:    cfg.Server.MediaStreamURL(),
			Session: session.Config{
				Persona:               cfg.Session.Persona,
				Greeting:              cfg.Session.Greeting,
				Transcription:         speech.TelephonyTranscription(cfg.Deepgram.Model, cfg.Deepgram.Language),
				SynthesisTimeout:      cfg.Session.SynthesisTimeout,
				MaxQueuedTurns:        cfg.Session.MaxQueuedTurns,
				MaxTranscriberReopens: cfg.Session.MaxTranscriberOpen,
			},
		},
		logger,
		metrics,
	)
	deps.VoiceCallHandler = voiceCallHandler.New(deps.VoiceCallProcessor, logger)

	return deps, nil
}

func newCompleter(ctx context.Context, cfg config.CompletionConfig, logger *observability.Logger) (conversation.Completer, error) {
	switch cfg.Provider {
	case config.CompletionProviderGemini:
		client, err := googleai.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, "", logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		return client, nil
	default:
		client, err := openAIClient.NewChatClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai client: %w", err)
		}
		return client, nil
	}
}

// Cleanup closes all resources that need cleanup
func (d *Dependencies) Cleanup() {
	ctx := context.Background()
	if d.KafkaProducer != nil {
		if err := d.KafkaProducer.Close(); err != nil {
			d.Logger.Error(ctx, "failed to close kafka producer", err)
		}
	}
	if d.RedisClient != nil {
		if err := d.RedisClient.Close(); err != nil {
			d.Logger.Error(ctx, "failed to close redis client", err)
		}
	}
}

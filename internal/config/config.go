package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr string
	DBDSN    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RabbitURL   string
	RabbitQueue string

	JWTSecret string

	// AI backend
	OpenAIAPIKey      string // empty is a handled condition, not a failure
	OpenAIBaseURL     string
	OpenAIModel       string
	OpenAIVisionModel string

	TranscriptLimit   int
	GenerationTimeout time.Duration // zero disables the per-generation budget
}

func Load() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		dsn = "chatserver.db"
	}

	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			redisDB = n
		}
	}

	rabbitQueue := os.Getenv("RABBIT_QUEUE")
	if rabbitQueue == "" {
		rabbitQueue = "room_events"
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret-change-me"
	}

	baseURL := os.Getenv("OPENAI_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}
	visionModel := os.Getenv("OPENAI_VISION_MODEL")
	if visionModel == "" {
		visionModel = model
	}

	transcriptLimit := 100
	if v := os.Getenv("CHAT_TRANSCRIPT_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			transcriptLimit = n
		}
	}

	var genTimeout time.Duration
	if v := os.Getenv("GENERATION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			genTimeout = d
		}
	}

	return Config{
		HTTPAddr: addr,
		DBDSN:    dsn,

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,

		RabbitURL:   os.Getenv("RABBIT_URL"),
		RabbitQueue: rabbitQueue,

		JWTSecret: secret,

		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:     baseURL,
		OpenAIModel:       model,
		OpenAIVisionModel: visionModel,

		TranscriptLimit:   transcriptLimit,
		GenerationTimeout: genTimeout,
	}
}

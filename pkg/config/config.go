package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	GigaChat  GigaChatConfig
	WhatsApp  WhatsAppConfig
	Assistant AssistantConfig
	Breaker   BreakerConfig
	Currency  CurrencyConfig
	Logger    LoggerConfig
}

type LoggerConfig struct {
	Level string
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
}

type JWTConfig struct {
	SecretKey  string
	Expiration time.Duration
}

type GigaChatConfig struct {
	APIKey             string
	Scope              string
	InsecureSkipVerify bool
	BaseURL            string
	AuthURL            string
	LiteModel          string // low-cost tier
	ProModel           string // high-reasoning tier, also used for vision
	EmbeddingModel     string
	Timeout            time.Duration
}

type WhatsAppConfig struct {
	Token         string
	PhoneNumberID string
	VerifyToken   string
	AppSecret     string
	GraphURL      string
}

type AssistantConfig struct {
	Timezone            string
	BaseCurrency        string
	ConfidenceThreshold float64
	CacheTTL            time.Duration
	MemoryTTL           time.Duration
	MemoryTurns         int
	CorrectionTTL       time.Duration
	ContextTopK         int
	SessionBackend      string // postgres | memory
	MessageTimeout      time.Duration
}

type BreakerConfig struct {
	FailureThreshold uint32
	CoolDown         time.Duration
	HalfOpenRequests uint32
	CallTimeout      time.Duration
}

type CurrencyConfig struct {
	APIURL   string
	CacheTTL time.Duration
}

func Load() (*Config, error) {
	// .env is optional; plain environment variables work too (Docker/K8s)
	for _, envFile := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	readTimeout, _ := strconv.Atoi(getEnv("SERVER_READ_TIMEOUT", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("SERVER_WRITE_TIMEOUT", "30"))
	jwtExp, _ := strconv.Atoi(getEnv("JWT_EXPIRATION_HOURS", "24"))
	gigaTimeout, _ := strconv.Atoi(getEnv("GIGACHAT_TIMEOUT_SECONDS", "60"))
	threshold, err := strconv.ParseFloat(getEnv("ASSISTANT_CONFIDENCE_THRESHOLD", "0.7"), 64)
	if err != nil {
		threshold = 0.7
	}
	cacheDays, _ := strconv.Atoi(getEnv("ASSISTANT_CACHE_TTL_DAYS", "7"))
	memoryHours, _ := strconv.Atoi(getEnv("ASSISTANT_MEMORY_TTL_HOURS", "24"))
	memoryTurns, _ := strconv.Atoi(getEnv("ASSISTANT_MEMORY_TURNS", "10"))
	correctionMinutes, _ := strconv.Atoi(getEnv("ASSISTANT_CORRECTION_TTL_MINUTES", "5"))
	topK, _ := strconv.Atoi(getEnv("ASSISTANT_CONTEXT_TOP_K", "3"))
	messageTimeout, _ := strconv.Atoi(getEnv("ASSISTANT_MESSAGE_TIMEOUT_SECONDS", "120"))
	failures, _ := strconv.Atoi(getEnv("BREAKER_FAILURE_THRESHOLD", "5"))
	coolDown, _ := strconv.Atoi(getEnv("BREAKER_COOLDOWN_SECONDS", "30"))
	probes, _ := strconv.Atoi(getEnv("BREAKER_HALF_OPEN_REQUESTS", "1"))
	callTimeout, _ := strconv.Atoi(getEnv("BREAKER_CALL_TIMEOUT_SECONDS", "45"))
	rateTTL, _ := strconv.Atoi(getEnv("CURRENCY_CACHE_TTL_MINUTES", "60"))
	maxConns, _ := strconv.Atoi(getEnv("DB_MAX_CONNS", "10"))

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  time.Duration(readTimeout) * time.Second,
			WriteTimeout: time.Duration(writeTimeout) * time.Second,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "finbot"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(maxConns),
		},
		JWT: JWTConfig{
			SecretKey:  getEnv("JWT_SECRET_KEY", "your-secret-key-change-in-production"),
			Expiration: time.Duration(jwtExp) * time.Hour,
		},
		GigaChat: GigaChatConfig{
			APIKey:             getEnv("GIGACHAT_API_KEY", ""),
			Scope:              getEnv("GIGACHAT_SCOPE", "GIGACHAT_API_PERS"),
			InsecureSkipVerify: getEnv("GIGACHAT_INSECURE_SKIP_VERIFY", "true") == "true",
			BaseURL:            getEnv("GIGACHAT_BASE_URL", "https://gigachat.devices.sberbank.ru/api/v1"),
			AuthURL:            getEnv("GIGACHAT_AUTH_URL", "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"),
			LiteModel:          getEnv("GIGACHAT_LITE_MODEL", "GigaChat"),
			ProModel:           getEnv("GIGACHAT_PRO_MODEL", "GigaChat-Max"),
			EmbeddingModel:     getEnv("GIGACHAT_EMBEDDING_MODEL", "Embeddings"),
			Timeout:            time.Duration(gigaTimeout) * time.Second,
		},
		WhatsApp: WhatsAppConfig{
			Token:         getEnv("WHATSAPP_TOKEN", ""),
			PhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
			VerifyToken:   getEnv("WHATSAPP_VERIFY_TOKEN", ""),
			AppSecret:     getEnv("WHATSAPP_APP_SECRET", ""),
			GraphURL:      getEnv("WHATSAPP_GRAPH_URL", "https://graph.facebook.com/v19.0"),
		},
		Assistant: AssistantConfig{
			Timezone:            getEnv("ASSISTANT_TIMEZONE", "America/Sao_Paulo"),
			BaseCurrency:        getEnv("ASSISTANT_BASE_CURRENCY", "BRL"),
			ConfidenceThreshold: threshold,
			CacheTTL:            time.Duration(cacheDays) * 24 * time.Hour,
			MemoryTTL:           time.Duration(memoryHours) * time.Hour,
			MemoryTurns:         memoryTurns,
			CorrectionTTL:       time.Duration(correctionMinutes) * time.Minute,
			ContextTopK:         topK,
			SessionBackend:      getEnv("SESSION_BACKEND", "postgres"),
			MessageTimeout:      time.Duration(messageTimeout) * time.Second,
		},
		Breaker: BreakerConfig{
			FailureThreshold: uint32(failures),
			CoolDown:         time.Duration(coolDown) * time.Second,
			HalfOpenRequests: uint32(probes),
			CallTimeout:      time.Duration(callTimeout) * time.Second,
		},
		Currency: CurrencyConfig{
			APIURL:   getEnv("CURRENCY_API_URL", "https://economia.awesomeapi.com.br"),
			CacheTTL: time.Duration(rateTTL) * time.Minute,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

// DSN builds a libpq-style connection string.
func (c DatabaseConfig) DSN() string {
	return "host=" + c.Host + " port=" + c.Port + " user=" + c.User +
		" password=" + c.Password + " dbname=" + c.DBName + " sslmode=" + c.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

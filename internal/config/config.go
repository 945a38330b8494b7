package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderHTTP   = "http"
	ProviderGemini = "gemini"
)

type Config struct {
	RPCBaseURL       string
	RPCTimeout       time.Duration
	AnalysisProvider string
	AnalysisAPIURL   string
	GeminiAPIKey     string
	DatabaseURL      string
	HTTPPort         string
	LogLevel         string
	LogFilePath      string
	JWTSecret        string
	SessionTTL       time.Duration
	PermissionsTTL   time.Duration
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		RPCBaseURL:       strings.TrimRight(getEnv("RPC_BASE_URL", ""), "/"),
		RPCTimeout:       time.Duration(getEnvAsInt("RPC_TIMEOUT_SECONDS", 0)) * time.Second,
		AnalysisProvider: strings.ToLower(getEnv("ANALYSIS_PROVIDER", ProviderHTTP)),
		AnalysisAPIURL:   getEnv("ANALYSIS_API_URL", ""),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		DatabaseURL:      getEnv("DATABASE_URL", "dms_assistant.db"),
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "INFO"),
		LogFilePath:      getEnv("LOG_FILE_PATH", "dms_assistant.log"),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		SessionTTL:       time.Duration(getEnvAsInt("SESSION_TTL_MINUTES", 60)) * time.Minute,
		PermissionsTTL:   time.Duration(getEnvAsInt("PERMISSIONS_TTL_MINUTES", 5)) * time.Minute,
	}

	if AppConfig.RPCBaseURL == "" {
		log.Fatal("RPC_BASE_URL environment variable is required")
	}

	if AppConfig.JWTSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}

	switch AppConfig.AnalysisProvider {
	case ProviderHTTP:
		if AppConfig.AnalysisAPIURL == "" {
			log.Fatal("ANALYSIS_API_URL environment variable is required for the http analysis provider")
		}
	case ProviderGemini:
		if AppConfig.GeminiAPIKey == "" {
			log.Fatal("GEMINI_API_KEY environment variable is required for the gemini analysis provider")
		}
	default:
		log.Fatalf("Unknown ANALYSIS_PROVIDER %q (expected %q or %q)", AppConfig.AnalysisProvider, ProviderHTTP, ProviderGemini)
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

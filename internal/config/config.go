package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DefaultPromptTemplate is the classification prompt sent to the model.
// %s is replaced with the message under analysis. It is configuration, not
// logic: override it with FRAUDWATCH_PROMPT_TEMPLATE to change providers
// or languages without touching the orchestrator.
const DefaultPromptTemplate = `Eres un analista de seguridad. Evalúa si el siguiente mensaje es potencialmente una estafa.
Devuelve tu respuesta SOLO en este formato JSON exacto sin añadir ningún otro texto:
{"diagnostico": "Estafa" o "No Estafa", "explicacion": "tu explicación aquí", "riesgo": número entre 0 y 100}

Mensaje:
%s`

// Config gathers every tunable the server reads from the environment.
type Config struct {
	Port         string
	DatabasePath string
	ScratchDir   string

	JWTSecret []byte
	TokenTTL  time.Duration

	GeminiAPIKey   string
	GeminiModel    string
	PromptTemplate string
	Language       string

	// Bounded timeout applied to each external provider call.
	ProviderTimeout time.Duration

	// Silence gate thresholds. Tunable policy, not structural.
	MinChunkBytes int
	MinRMS        float64

	// TTL for in-memory session transcript accumulation.
	SessionTTL time.Duration
}

// Load reads .env when present and assembles the configuration with
// development defaults.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:            getEnv("PORT", "8080"),
		DatabasePath:    getEnv("DATABASE_PATH", "fraudwatch.db"),
		ScratchDir:      getEnv("SCRATCH_DIR", os.TempDir()),
		JWTSecret:       []byte(getEnv("JWT_SECRET", "dev-secret-change-me")),
		TokenTTL:        getDuration("TOKEN_TTL", 24*time.Hour),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		PromptTemplate:  getEnv("FRAUDWATCH_PROMPT_TEMPLATE", DefaultPromptTemplate),
		Language:        getEnv("SPEECH_LANGUAGE", "es-ES"),
		ProviderTimeout: getDuration("PROVIDER_TIMEOUT", 30*time.Second),
		MinChunkBytes:   getInt("MIN_CHUNK_BYTES", 2000),
		MinRMS:          getFloat("MIN_RMS", 10),
		SessionTTL:      getDuration("SESSION_TTL", 30*time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

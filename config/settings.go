package config

import (
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

var defaultCORSOrigins = []string{"http://localhost:5173"}

// Settings is the process configuration read from the environment.
type Settings struct {
	APITitle   string
	APIVersion string
	Port       string

	CORSOrigins []string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	StorageBackend string // gcs|minio
	GCSBucket      string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	LLMBackend     string // gemini|vertex
	GeminiAPIKey   string
	GeminiModel    string
	EmbeddingModel string
	VertexProject  string
	VertexLocation string

	PayPalBaseURL   string
	PayPalClientID  string
	PayPalSecret    string
	PayPalWebhookID string

	MetricsUser         string
	MetricsPasswordHash string

	RateLimitPerMinute int
	WorkerConcurrency  int
	AutoMigrate        bool
	WebhookRetention   time.Duration
}

// Load reads Settings from the environment and fails fast on missing required keys.
func Load() (*Settings, error) {
	s := &Settings{
		APITitle:   getenv("API_TITLE", "TailorJob API"),
		APIVersion: getenv("API_VERSION", "1.0.0"),
		Port:       getenv("PORT", "8080"),

		CORSOrigins: parseOrigins(os.Getenv("CORS_ORIGINS")),

		JWTSecret:   os.Getenv("SUPABASE_JWT_SECRET"),
		JWTIssuer:   os.Getenv("SUPABASE_JWT_ISSUER"),
		JWTAudience: os.Getenv("SUPABASE_JWT_AUDIENCE"),

		StorageBackend: strings.ToLower(getenv("STORAGE_BACKEND", "gcs")),
		GCSBucket:      getenv("GCS_BUCKET", "cv-uploads"),
		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getenv("MINIO_BUCKET", "cv-uploads"),
		MinioUseSSL:    getbool("MINIO_USE_SSL", false),

		LLMBackend:     strings.ToLower(getenv("LLM_BACKEND", "gemini")),
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		GeminiModel:    getenv("GEMINI_MODEL", "gemini-2.5-flash"),
		EmbeddingModel: getenv("GEMINI_EMBEDDING_MODEL", "text-embedding-004"),
		VertexProject:  os.Getenv("VERTEX_PROJECT_ID"),
		VertexLocation: getenv("VERTEX_LOCATION", "us-central1"),

		PayPalBaseURL:   getenv("PAYPAL_BASE_URL", "https://api-m.sandbox.paypal.com"),
		PayPalClientID:  os.Getenv("PAYPAL_CLIENT_ID"),
		PayPalSecret:    os.Getenv("PAYPAL_SECRET"),
		PayPalWebhookID: os.Getenv("PAYPAL_WEBHOOK_ID"),

		MetricsUser:         os.Getenv("METRICS_USER"),
		MetricsPasswordHash: os.Getenv("METRICS_PASSWORD_HASH"),

		RateLimitPerMinute: getint("RATE_LIMIT_PER_MINUTE", 30),
		WorkerConcurrency:  getint("WORKER_CONCURRENCY", 2),
		AutoMigrate:        getbool("AUTO_MIGRATE", true),
		WebhookRetention:   time.Duration(getint("WEBHOOK_RETENTION_DAYS", 180)) * 24 * time.Hour,
	}

	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) validate() error {
	var errs []error
	if s.JWTSecret == "" {
		errs = append(errs, errors.New("SUPABASE_JWT_SECRET environment variable is not set"))
	}
	switch s.StorageBackend {
	case "gcs":
		if s.GCSBucket == "" {
			errs = append(errs, errors.New("GCS_BUCKET environment variable is not set"))
		}
	case "minio":
		if s.MinioEndpoint == "" {
			errs = append(errs, errors.New("MINIO_ENDPOINT environment variable is not set"))
		}
	default:
		errs = append(errs, errors.New("STORAGE_BACKEND must be gcs or minio"))
	}
	switch s.LLMBackend {
	case "gemini", "vertex", "none":
	default:
		errs = append(errs, errors.New("LLM_BACKEND must be gemini, vertex or none"))
	}
	return errors.Join(errs...)
}

// PayPalConfigured reports whether PayPal credentials are present.
func (s *Settings) PayPalConfigured() bool {
	return s.PayPalClientID != "" && s.PayPalSecret != ""
}

func parseOrigins(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultCORSOrigins
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err == nil {
		if len(out) == 0 {
			return defaultCORSOrigins
		}
		return out
	}
	// tolerate comma separated values
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultCORSOrigins
	}
	return out
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(key string, def bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Store     StoreConfig
	JWT       JWTConfig
	Storage   StorageConfig
	S3        S3Config
	Minio     MinioConfig
	Redis     RedisConfig
	Admission AdmissionConfig
	LLM       LLMConfig
	Pipeline  PipelineConfig
	Credits   CreditsConfig
	Reconcile ReconcileConfig
	Recording RecordingConfig
	CORS      CORSConfig
	Log       LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port          string        `mapstructure:"port"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace"`
	Environment   string        `mapstructure:"environment"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// StoreConfig selects the backing store for the ledger and history.
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // postgres | memory
}

// JWTConfig holds bearer token verification settings.
type JWTConfig struct {
	Secret         string        `mapstructure:"secret"`
	Issuer         string        `mapstructure:"issuer"`
	DevTokenExpiry time.Duration `mapstructure:"dev_token_expiry"`
}

// StorageConfig selects the object storage backend for case images.
type StorageConfig struct {
	Provider string `mapstructure:"provider"` // s3 | minio | none
	Bucket   string `mapstructure:"bucket"`
}

// S3Config holds AWS S3 settings.
type S3Config struct {
	Region        string `mapstructure:"region"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// MinioConfig holds settings for a self-hosted S3-compatible store.
type MinioConfig struct {
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	UseSSL        bool   `mapstructure:"use_ssl"`
	Region        string `mapstructure:"region"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the host:port Redis address.
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// AdmissionConfig caps concurrent real-pipeline runs per user.
type AdmissionConfig struct {
	MaxInFlightPerUser int           `mapstructure:"max_in_flight_per_user"`
	LeaseTTL           time.Duration `mapstructure:"lease_ttl"`
}

// ProviderConfig holds settings for a single external model provider.
type ProviderConfig struct {
	Provider    string `mapstructure:"provider"`
	APIKey      string `mapstructure:"api_key"`
	Model       string `mapstructure:"model"`
	BaseURL     string `mapstructure:"base_url"`
	MaxRetries  int    `mapstructure:"max_retries"`
	TimeoutSecs int    `mapstructure:"timeout_secs"`
}

// Timeout returns the configured HTTP timeout, or def when unset.
func (p *ProviderConfig) Timeout(def time.Duration) time.Duration {
	if p.TimeoutSecs <= 0 {
		return def
	}
	return time.Duration(p.TimeoutSecs) * time.Second
}

// Configured reports whether a provider has been selected.
func (p *ProviderConfig) Configured() bool {
	return p.Provider != ""
}

// LLMConfig holds one provider config per pipeline role.
type LLMConfig struct {
	Reasoning      ProviderConfig `mapstructure:"reasoning"`
	Research       ProviderConfig `mapstructure:"research"`
	Transcription  ProviderConfig `mapstructure:"transcription"`
	Vision         ProviderConfig `mapstructure:"vision"`
	VisionFallback ProviderConfig `mapstructure:"vision_fallback"`
	MaxConcurrent  int64          `mapstructure:"max_concurrent"`
}

// PipelineConfig holds orchestration limits and timeouts.
type PipelineConfig struct {
	RunTimeout           time.Duration `mapstructure:"run_timeout"`
	TranscriptionTimeout time.Duration `mapstructure:"transcription_timeout"`
	VisionTimeout        time.Duration `mapstructure:"vision_timeout"`
	ResearchTimeout      time.Duration `mapstructure:"research_timeout"`
	ReasoningTimeout     time.Duration `mapstructure:"reasoning_timeout"`
	StorageTimeout       time.Duration `mapstructure:"storage_timeout"`
	PersistAttempts      int           `mapstructure:"persist_attempts"`
	PersistBackoff       time.Duration `mapstructure:"persist_backoff"`
	DemoDelay            time.Duration `mapstructure:"demo_delay"`
	MaxImages            int           `mapstructure:"max_images"`
	MaxImageBytes        int64         `mapstructure:"max_image_bytes"`
	MaxAudioBytes        int64         `mapstructure:"max_audio_bytes"`
	UploadConcurrency    int           `mapstructure:"upload_concurrency"`
}

// CreditsConfig holds ledger settings.
type CreditsConfig struct {
	StartingGrant int `mapstructure:"starting_grant"`
}

// ReconcileConfig holds settings for the reservation reconcile worker.
type ReconcileConfig struct {
	PollInterval        time.Duration `mapstructure:"poll_interval"`
	BatchSize           int           `mapstructure:"batch_size"`
	Concurrency         int           `mapstructure:"concurrency"`
	StaleReservationTTL time.Duration `mapstructure:"stale_reservation_ttl"`
	CommitGrace         time.Duration `mapstructure:"commit_grace"`
}

// RecordingConfig holds server-side audio capture session settings.
type RecordingConfig struct {
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	MaxSessions   int           `mapstructure:"max_sessions"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate rejects combinations that would break ledger guarantees.
func (c *Config) Validate() error {
	if c.Pipeline.PersistAttempts <= 0 {
		return errors.New("pipeline.persist_attempts must be positive")
	}
	if c.Reconcile.StaleReservationTTL <= c.Pipeline.RunTimeout {
		return fmt.Errorf("reconcile.stale_reservation_ttl (%s) must exceed pipeline.run_timeout (%s)",
			c.Reconcile.StaleReservationTTL, c.Pipeline.RunTimeout)
	}
	if c.Store.Driver != "postgres" && c.Store.Driver != "memory" {
		return fmt.Errorf("unknown store driver: %s", c.Store.Driver)
	}
	if c.Credits.StartingGrant < 0 {
		return errors.New("credits.starting_grant must not be negative")
	}
	return nil
}

var providerRoles = []string{"reasoning", "research", "transcription", "vision", "vision_fallback"}

// Load reads configuration from environment variables with the CLINSIGHT_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CLINSIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "6m")
	v.SetDefault("server.shutdown_grace", "30s")
	v.SetDefault("server.environment", "development")

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "clinsight")
	v.SetDefault("db.password", "clinsight_secret")
	v.SetDefault("db.name", "clinsight_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)
	v.SetDefault("store.driver", "postgres")

	// JWT defaults
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.issuer", "clinsight")
	v.SetDefault("jwt.dev_token_expiry", "24h")

	// Object storage defaults
	v.SetDefault("storage.provider", "none")
	v.SetDefault("storage.bucket", "clinsight-cases")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.presign_expiry", 900)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.region", "us-east-1")
	v.SetDefault("minio.presign_expiry", 900)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("admission.max_in_flight_per_user", 2)
	v.SetDefault("admission.lease_ttl", "10m")

	// LLM defaults
	v.SetDefault("llm.reasoning.provider", "openai")
	v.SetDefault("llm.reasoning.model", "gpt-4o")
	v.SetDefault("llm.reasoning.timeout_secs", 180)
	v.SetDefault("llm.research.provider", "perplexity")
	v.SetDefault("llm.research.model", "sonar-pro")
	v.SetDefault("llm.research.timeout_secs", 90)
	v.SetDefault("llm.transcription.provider", "openai")
	v.SetDefault("llm.transcription.model", "whisper-1")
	v.SetDefault("llm.transcription.timeout_secs", 120)
	v.SetDefault("llm.vision.provider", "openai")
	v.SetDefault("llm.vision.model", "gpt-4o")
	v.SetDefault("llm.vision.timeout_secs", 90)
	v.SetDefault("llm.vision_fallback.provider", "")
	v.SetDefault("llm.vision_fallback.model", "gemini-2.5-flash")
	v.SetDefault("llm.vision_fallback.timeout_secs", 90)
	v.SetDefault("llm.max_concurrent", 16)
	for _, role := range providerRoles {
		v.SetDefault("llm."+role+".api_key", "")
		v.SetDefault("llm."+role+".base_url", "")
		v.SetDefault("llm."+role+".max_retries", 2)
	}

	// Pipeline defaults
	v.SetDefault("pipeline.run_timeout", "5m")
	v.SetDefault("pipeline.transcription_timeout", "2m")
	v.SetDefault("pipeline.vision_timeout", "90s")
	v.SetDefault("pipeline.research_timeout", "90s")
	v.SetDefault("pipeline.reasoning_timeout", "3m")
	v.SetDefault("pipeline.storage_timeout", "15s")
	v.SetDefault("pipeline.persist_attempts", 4)
	v.SetDefault("pipeline.persist_backoff", "500ms")
	v.SetDefault("pipeline.demo_delay", "2s")
	v.SetDefault("pipeline.max_images", 6)
	v.SetDefault("pipeline.max_image_bytes", 10<<20)
	v.SetDefault("pipeline.max_audio_bytes", 25<<20)
	v.SetDefault("pipeline.upload_concurrency", 3)

	v.SetDefault("credits.starting_grant", 3)

	// Reconcile worker defaults
	v.SetDefault("reconcile.poll_interval", "30s")
	v.SetDefault("reconcile.batch_size", 20)
	v.SetDefault("reconcile.concurrency", 4)
	v.SetDefault("reconcile.stale_reservation_ttl", "15m")
	v.SetDefault("reconcile.commit_grace", "1m")

	v.SetDefault("recording.session_ttl", "15m")
	v.SetDefault("recording.sweep_interval", "1m")
	v.SetDefault("recording.max_sessions", 1000)

	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                      "CLINSIGHT_SERVER_PORT",
		"server.read_timeout":              "CLINSIGHT_SERVER_READ_TIMEOUT",
		"server.write_timeout":             "CLINSIGHT_SERVER_WRITE_TIMEOUT",
		"server.shutdown_grace":            "CLINSIGHT_SERVER_SHUTDOWN_GRACE",
		"server.environment":               "CLINSIGHT_SERVER_ENVIRONMENT",
		"db.host":                          "CLINSIGHT_DB_HOST",
		"db.port":                          "CLINSIGHT_DB_PORT",
		"db.user":                          "CLINSIGHT_DB_USER",
		"db.password":                      "CLINSIGHT_DB_PASSWORD",
		"db.name":                          "CLINSIGHT_DB_NAME",
		"db.sslmode":                       "CLINSIGHT_DB_SSLMODE",
		"db.max_open":                      "CLINSIGHT_DB_MAX_OPEN",
		"db.max_idle":                      "CLINSIGHT_DB_MAX_IDLE",
		"store.driver":                     "CLINSIGHT_STORE_DRIVER",
		"jwt.secret":                       "CLINSIGHT_JWT_SECRET",
		"jwt.issuer":                       "CLINSIGHT_JWT_ISSUER",
		"jwt.dev_token_expiry":             "CLINSIGHT_JWT_DEV_TOKEN_EXPIRY",
		"storage.provider":                 "CLINSIGHT_STORAGE_PROVIDER",
		"storage.bucket":                   "CLINSIGHT_STORAGE_BUCKET",
		"s3.region":                        "CLINSIGHT_S3_REGION",
		"s3.endpoint":                      "CLINSIGHT_S3_ENDPOINT",
		"s3.access_key":                    "CLINSIGHT_S3_ACCESS_KEY",
		"s3.secret_key":                    "CLINSIGHT_S3_SECRET_KEY",
		"s3.presign_expiry":                "CLINSIGHT_S3_PRESIGN_EXPIRY",
		"minio.endpoint":                   "CLINSIGHT_MINIO_ENDPOINT",
		"minio.access_key":                 "CLINSIGHT_MINIO_ACCESS_KEY",
		"minio.secret_key":                 "CLINSIGHT_MINIO_SECRET_KEY",
		"minio.use_ssl":                    "CLINSIGHT_MINIO_USE_SSL",
		"minio.region":                     "CLINSIGHT_MINIO_REGION",
		"minio.presign_expiry":             "CLINSIGHT_MINIO_PRESIGN_EXPIRY",
		"redis.enabled":                    "CLINSIGHT_REDIS_ENABLED",
		"redis.host":                       "CLINSIGHT_REDIS_HOST",
		"redis.port":                       "CLINSIGHT_REDIS_PORT",
		"redis.password":                   "CLINSIGHT_REDIS_PASSWORD",
		"redis.db":                         "CLINSIGHT_REDIS_DB",
		"admission.max_in_flight_per_user": "CLINSIGHT_ADMISSION_MAX_IN_FLIGHT_PER_USER",
		"admission.lease_ttl":              "CLINSIGHT_ADMISSION_LEASE_TTL",
		"llm.max_concurrent":               "CLINSIGHT_LLM_MAX_CONCURRENT",
		"pipeline.run_timeout":             "CLINSIGHT_PIPELINE_RUN_TIMEOUT",
		"pipeline.transcription_timeout":   "CLINSIGHT_PIPELINE_TRANSCRIPTION_TIMEOUT",
		"pipeline.vision_timeout":          "CLINSIGHT_PIPELINE_VISION_TIMEOUT",
		"pipeline.research_timeout":        "CLINSIGHT_PIPELINE_RESEARCH_TIMEOUT",
		"pipeline.reasoning_timeout":       "CLINSIGHT_PIPELINE_REASONING_TIMEOUT",
		"pipeline.storage_timeout":         "CLINSIGHT_PIPELINE_STORAGE_TIMEOUT",
		"pipeline.persist_attempts":        "CLINSIGHT_PIPELINE_PERSIST_ATTEMPTS",
		"pipeline.persist_backoff":         "CLINSIGHT_PIPELINE_PERSIST_BACKOFF",
		"pipeline.demo_delay":              "CLINSIGHT_PIPELINE_DEMO_DELAY",
		"pipeline.max_images":              "CLINSIGHT_PIPELINE_MAX_IMAGES",
		"pipeline.max_image_bytes":         "CLINSIGHT_PIPELINE_MAX_IMAGE_BYTES",
		"pipeline.max_audio_bytes":         "CLINSIGHT_PIPELINE_MAX_AUDIO_BYTES",
		"pipeline.upload_concurrency":      "CLINSIGHT_PIPELINE_UPLOAD_CONCURRENCY",
		"credits.starting_grant":           "CLINSIGHT_CREDITS_STARTING_GRANT",
		"reconcile.poll_interval":          "CLINSIGHT_RECONCILE_POLL_INTERVAL",
		"reconcile.batch_size":             "CLINSIGHT_RECONCILE_BATCH_SIZE",
		"reconcile.concurrency":            "CLINSIGHT_RECONCILE_CONCURRENCY",
		"reconcile.stale_reservation_ttl":  "CLINSIGHT_RECONCILE_STALE_RESERVATION_TTL",
		"reconcile.commit_grace":           "CLINSIGHT_RECONCILE_COMMIT_GRACE",
		"recording.session_ttl":            "CLINSIGHT_RECORDING_SESSION_TTL",
		"recording.sweep_interval":         "CLINSIGHT_RECORDING_SWEEP_INTERVAL",
		"recording.max_sessions":           "CLINSIGHT_RECORDING_MAX_SESSIONS",
		"cors.allowed_origins":             "CLINSIGHT_CORS_ALLOWED_ORIGINS",
		"log.level":                        "CLINSIGHT_LOG_LEVEL",
		"log.format":                       "CLINSIGHT_LOG_FORMAT",
	}
	for _, role := range providerRoles {
		prefix := "CLINSIGHT_LLM_" + strings.ToUpper(role) + "_"
		for _, field := range []string{"provider", "api_key", "model", "base_url", "max_retries", "timeout_secs"} {
			envBindings["llm."+role+"."+field] = prefix + strings.ToUpper(field)
		}
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Railway/Heroku/Render set a PORT env var. Use it if CLINSIGHT_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("CLINSIGHT_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:          serverPort,
		ReadTimeout:   v.GetDuration("server.read_timeout"),
		WriteTimeout:  v.GetDuration("server.write_timeout"),
		ShutdownGrace: v.GetDuration("server.shutdown_grace"),
		Environment:   v.GetString("server.environment"),
	}
	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.Store = StoreConfig{Driver: v.GetString("store.driver")}
	cfg.JWT = JWTConfig{
		Secret:         v.GetString("jwt.secret"),
		Issuer:         v.GetString("jwt.issuer"),
		DevTokenExpiry: v.GetDuration("jwt.dev_token_expiry"),
	}
	cfg.Storage = StorageConfig{
		Provider: v.GetString("storage.provider"),
		Bucket:   v.GetString("storage.bucket"),
	}
	cfg.S3 = S3Config{
		Region:        v.GetString("s3.region"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		PresignExpiry: v.GetInt64("s3.presign_expiry"),
	}
	cfg.Minio = MinioConfig{
		Endpoint:      v.GetString("minio.endpoint"),
		AccessKey:     v.GetString("minio.access_key"),
		SecretKey:     v.GetString("minio.secret_key"),
		UseSSL:        v.GetBool("minio.use_ssl"),
		Region:        v.GetString("minio.region"),
		PresignExpiry: v.GetInt64("minio.presign_expiry"),
	}
	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("redis.enabled"),
		Host:     v.GetString("redis.host"),
		Port:     v.GetInt("redis.port"),
		Password: v.GetString("redis.password"),
		DB:       v.GetInt("redis.db"),
	}
	cfg.Admission = AdmissionConfig{
		MaxInFlightPerUser: v.GetInt("admission.max_in_flight_per_user"),
		LeaseTTL:           v.GetDuration("admission.lease_ttl"),
	}
	cfg.LLM = LLMConfig{
		Reasoning:      loadProvider(v, "reasoning"),
		Research:       loadProvider(v, "research"),
		Transcription:  loadProvider(v, "transcription"),
		Vision:         loadProvider(v, "vision"),
		VisionFallback: loadProvider(v, "vision_fallback"),
		MaxConcurrent:  v.GetInt64("llm.max_concurrent"),
	}
	cfg.Pipeline = PipelineConfig{
		RunTimeout:           v.GetDuration("pipeline.run_timeout"),
		TranscriptionTimeout: v.GetDuration("pipeline.transcription_timeout"),
		VisionTimeout:        v.GetDuration("pipeline.vision_timeout"),
		ResearchTimeout:      v.GetDuration("pipeline.research_timeout"),
		ReasoningTimeout:     v.GetDuration("pipeline.reasoning_timeout"),
		StorageTimeout:       v.GetDuration("pipeline.storage_timeout"),
		PersistAttempts:      v.GetInt("pipeline.persist_attempts"),
		PersistBackoff:       v.GetDuration("pipeline.persist_backoff"),
		DemoDelay:            v.GetDuration("pipeline.demo_delay"),
		MaxImages:            v.GetInt("pipeline.max_images"),
		MaxImageBytes:        v.GetInt64("pipeline.max_image_bytes"),
		MaxAudioBytes:        v.GetInt64("pipeline.max_audio_bytes"),
		UploadConcurrency:    v.GetInt("pipeline.upload_concurrency"),
	}
	cfg.Credits = CreditsConfig{StartingGrant: v.GetInt("credits.starting_grant")}
	cfg.Reconcile = ReconcileConfig{
		PollInterval:        v.GetDuration("reconcile.poll_interval"),
		BatchSize:           v.GetInt("reconcile.batch_size"),
		Concurrency:         v.GetInt("reconcile.concurrency"),
		StaleReservationTTL: v.GetDuration("reconcile.stale_reservation_ttl"),
		CommitGrace:         v.GetDuration("reconcile.commit_grace"),
	}

	cfg.Recording = RecordingConfig{
		SessionTTL:    v.GetDuration("recording.session_ttl"),
		SweepInterval: v.GetDuration("recording.sweep_interval"),
		MaxSessions:   v.GetInt("recording.max_sessions"),
	}

	// Parse CORS allowed origins from comma-separated string
	var corsOrigins []string
	for _, o := range strings.Split(v.GetString("cors.allowed_origins"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			corsOrigins = append(corsOrigins, o)
		}
	}
	cfg.CORS = CORSConfig{AllowedOrigins: corsOrigins}

	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadProvider(v *viper.Viper, role string) ProviderConfig {
	key := "llm." + role + "."
	return ProviderConfig{
		Provider:    v.GetString(key + "provider"),
		APIKey:      v.GetString(key + "api_key"),
		Model:       v.GetString(key + "model"),
		BaseURL:     v.GetString(key + "base_url"),
		MaxRetries:  v.GetInt(key + "max_retries"),
		TimeoutSecs: v.GetInt(key + "timeout_secs"),
	}
}

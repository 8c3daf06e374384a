package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	platformstrings "amsf/pkg/platform/strings"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Server captures process level configuration.
type Server struct {
	Addr        string
	Environment string
	DatabaseURL string
	// CRMFixture seeds the in-memory CRM when DatabaseURL is empty.
	CRMFixture string
	// CORSOrigins is empty when browsers are not expected to call the API.
	CORSOrigins []string

	Redis            RedisConfig
	Taxonomy         TaxonomyConfig
	RemoteValidation RemoteValidationConfig
	XBRL             XBRLConfig
	Artifacts        ArtifactConfig
	Audit            AuditConfig
	Submission       SubmissionConfig
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// ResultTTL bounds how long remote validation results stay cached.
	ResultTTL time.Duration
}

type TaxonomyConfig struct {
	// Path is empty when the embedded manifest should be used.
	Path string
}

type RemoteValidationConfig struct {
	Enabled    bool
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

type XBRLConfig struct {
	Strict bool
}

type ArtifactConfig struct {
	Dir       string
	S3Bucket  string
	AWSRegion string
}

type AuditConfig struct {
	KafkaBrokers []string
	Topic        string
}

type SubmissionConfig struct {
	LockTTL time.Duration
}

// IsProduction reports whether the process runs with production defaults.
func (s Server) IsProduction() bool {
	return s.Environment == EnvProduction
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	env := getEnv("AMSF_ENV", EnvDevelopment)
	if env != EnvDevelopment && env != EnvProduction {
		return Server{}, fmt.Errorf("AMSF_ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, env)
	}

	remoteEnabled, err := getBool("REMOTE_VALIDATION_ENABLED", false)
	if err != nil {
		return Server{}, err
	}
	remoteTimeout, err := getDuration("REMOTE_VALIDATION_TIMEOUT", 10*time.Second)
	if err != nil {
		return Server{}, err
	}
	maxRetries, err := getInt("REMOTE_VALIDATION_MAX_RETRIES", 2)
	if err != nil {
		return Server{}, err
	}
	if maxRetries < 0 {
		return Server{}, fmt.Errorf("REMOTE_VALIDATION_MAX_RETRIES must be >= 0")
	}
	remoteURL := strings.TrimRight(os.Getenv("REMOTE_VALIDATION_URL"), "/")
	if remoteEnabled && remoteURL == "" {
		return Server{}, fmt.Errorf("REMOTE_VALIDATION_URL is required when remote validation is enabled")
	}

	// Strict coercion is the default everywhere except production.
	strict, err := getBool("XBRL_STRICT", env != EnvProduction)
	if err != nil {
		return Server{}, err
	}
	lockTTL, err := getDuration("LOCK_TTL", 30*time.Minute)
	if err != nil {
		return Server{}, err
	}

	brokers := getList("KAFKA_BROKERS")

	return Server{
		Addr:        getEnv("AMSF_ADDR", ":8080"),
		Environment: env,
		DatabaseURL: os.Getenv("DATABASE_URL"),
		CRMFixture:  os.Getenv("CRM_FIXTURE"),
		CORSOrigins: getList("CORS_ALLOWED_ORIGINS"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			ResultTTL:    24 * time.Hour,
		},
		Taxonomy: TaxonomyConfig{Path: os.Getenv("TAXONOMY_PATH")},
		RemoteValidation: RemoteValidationConfig{
			Enabled:    remoteEnabled,
			BaseURL:    remoteURL,
			Timeout:    remoteTimeout,
			MaxRetries: maxRetries,
		},
		XBRL: XBRLConfig{Strict: strict},
		Artifacts: ArtifactConfig{
			Dir:       getEnv("ARTIFACT_DIR", "artifacts"),
			S3Bucket:  os.Getenv("ARTIFACT_S3_BUCKET"),
			AWSRegion: getEnv("AWS_REGION", "eu-west-3"),
		},
		Audit: AuditConfig{
			KafkaBrokers: brokers,
			Topic:        getEnv("AUDIT_TOPIC", "amsf.audit"),
		},
		Submission: SubmissionConfig{LockTTL: lockTTL},
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getList splits a comma separated variable, dropping blanks.
func getList(key string) []string {
	return platformstrings.SplitList(os.Getenv(key), ",")
}

func getBool(key string, fallback bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return v, nil
}

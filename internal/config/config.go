package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Image store backends.
const (
	BackendCloudinary = "cloudinary"
	BackendMinio      = "minio"
)

// Config holds the application's configuration values.
// Tags like `envconfig:"APP_PORT"` specify the environment variable name.
type Config struct {
	ServiceName string `envconfig:"SERVICE_NAME" default:"storefront-catalog"`
	AppEnv      string `envconfig:"APP_ENV" default:"development"` // development, staging, production
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`      // debug, info, warn, error
	HttpServer  ServerConfig
	GrpcServer  GrpcServerConfig
	Postgres    PostgresConfig
	Admin       AdminConfig
	ImageStore  ImageStoreConfig
	Images      ImageConfig
}

// ServerConfig holds HTTP server-specific configurations.
type ServerConfig struct {
	Port         string        `envconfig:"HTTP_SERVER_PORT" default:"8080"`
	TimeoutRead  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_READ" default:"30s"`
	TimeoutWrite time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_WRITE" default:"60s"`
	TimeoutIdle  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_IDLE" default:"60s"`
	// Upper bound on a multipart request body (five images plus fields).
	MaxUploadBytes int64 `envconfig:"HTTP_SERVER_MAX_UPLOAD_BYTES" default:"52428800"`
}

// GrpcServerConfig holds the port of the gRPC health endpoint.
type GrpcServerConfig struct {
	Port string `envconfig:"GRPC_SERVER_PORT" default:"9090"`
}

// PostgresConfig holds PostgreSQL database connection details.
type PostgresConfig struct {
	Host         string        `envconfig:"POSTGRES_HOST" required:"true"`
	Port         string        `envconfig:"POSTGRES_PORT" default:"5432"`
	User         string        `envconfig:"POSTGRES_USER" required:"true"`
	Password     string        `envconfig:"POSTGRES_PASSWORD" required:"true"`
	DBName       string        `envconfig:"POSTGRES_DBNAME" required:"true"`
	SSLMode      string        `envconfig:"POSTGRES_SSLMODE" default:"disable"`
	MaxOpenConns int           `envconfig:"POSTGRES_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns int           `envconfig:"POSTGRES_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLife  time.Duration `envconfig:"POSTGRES_CONN_MAX_LIFETIME" default:"30m"`
}

// DSN constructs the Data Source Name string for connecting to PostgreSQL.
func (pc *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		pc.Host, pc.Port, pc.User, pc.Password, pc.DBName, pc.SSLMode)
}

// AdminConfig holds the shared admin password and session cookie settings.
type AdminConfig struct {
	Password      string        `envconfig:"ADMIN_PASSWORD" required:"true"`
	SessionSecret string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	CookieName    string        `envconfig:"SESSION_COOKIE_NAME" default:"admin_session"`
}

// ImageStoreConfig selects and configures the remote asset host.
type ImageStoreConfig struct {
	Backend    string `envconfig:"IMAGE_STORE_BACKEND" default:"cloudinary"`
	Folder     string `envconfig:"IMAGE_STORE_FOLDER" default:"soft-toys"`
	Cloudinary CloudinaryConfig
	Minio      MinioConfig
}

// CloudinaryConfig holds Cloudinary account credentials.
type CloudinaryConfig struct {
	CloudName string `envconfig:"CLOUDINARY_CLOUD_NAME"`
	APIKey    string `envconfig:"CLOUDINARY_API_KEY"`
	APISecret string `envconfig:"CLOUDINARY_API_SECRET"`
}

// MinioConfig holds credentials for an S3-compatible bucket.
type MinioConfig struct {
	Endpoint  string `envconfig:"MINIO_ENDPOINT"`
	AccessKey string `envconfig:"MINIO_ACCESS_KEY"`
	SecretKey string `envconfig:"MINIO_SECRET_KEY"`
	Bucket    string `envconfig:"MINIO_BUCKET"`
	UseSSL    bool   `envconfig:"MINIO_USE_SSL" default:"true"`
}

// ImageConfig bounds the server-side image derivative.
type ImageConfig struct {
	MaxWidth  int   `envconfig:"IMAGE_MAX_WIDTH" default:"1600"`
	MaxHeight int   `envconfig:"IMAGE_MAX_HEIGHT" default:"1200"`
	MaxBytes  int64 `envconfig:"IMAGE_MAX_BYTES" default:"2097152"`
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	var errs []error
	switch c.ImageStore.Backend {
	case BackendCloudinary:
		cl := c.ImageStore.Cloudinary
		if cl.CloudName == "" || cl.APIKey == "" || cl.APISecret == "" {
			errs = append(errs, errors.New("cloudinary backend requires CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET"))
		}
	case BackendMinio:
		m := c.ImageStore.Minio
		if m.Endpoint == "" || m.AccessKey == "" || m.SecretKey == "" || m.Bucket == "" {
			errs = append(errs, errors.New("minio backend requires MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY and MINIO_BUCKET"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown IMAGE_STORE_BACKEND %q", c.ImageStore.Backend))
	}
	if c.Images.MaxWidth <= 0 || c.Images.MaxHeight <= 0 || c.Images.MaxBytes <= 0 {
		errs = append(errs, errors.New("image bounds must be positive"))
	}
	if len(c.Admin.SessionSecret) < 16 {
		errs = append(errs, errors.New("SESSION_SECRET must be at least 16 characters"))
	}
	return errors.Join(errs...)
}

// Load initializes the configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

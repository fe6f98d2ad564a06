package main

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sushihentaime/postboard/internal/common"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Environment    string   `mapstructure:"ENVIRONMENT"`
	Version        string   `mapstructure:"VERSION"`
	TrustedOrigins []string `mapstructure:"TRUSTED_ORIGINS"`
	TLSCertFile    string   `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile     string   `mapstructure:"TLS_KEY_FILE"`

	DBHost     string        `mapstructure:"POSTGRES_HOST"`
	DBPort     string        `mapstructure:"POSTGRES_PORT"`
	DBUser     string        `mapstructure:"POSTGRES_USER"`
	DBPassword string        `mapstructure:"POSTGRES_PASSWORD"`
	DBName     string        `mapstructure:"POSTGRES_DB"`
	DBTimeout  time.Duration `mapstructure:"DB_TIMEOUT"`

	MQHost     string `mapstructure:"RABBITMQ_HOST"`
	MQPort     string `mapstructure:"RABBITMQ_PORT"`
	MQUser     string `mapstructure:"RABBITMQ_USER"`
	MQPassword string `mapstructure:"RABBITMQ_PASSWORD"`

	MailHost     string `mapstructure:"MAIL_HOST"`
	MailPort     int    `mapstructure:"MAIL_PORT"`
	MailUser     string `mapstructure:"MAIL_USER"`
	MailPassword string `mapstructure:"MAIL_PASSWORD"`
	MailSender   string `mapstructure:"MAIL_SENDER"`

	JWTSecret string        `mapstructure:"JWT_SECRET"`
	JWTTTL    time.Duration `mapstructure:"JWT_TTL"`

	S3Bucket          string        `mapstructure:"S3_BUCKET"`
	S3Region          string        `mapstructure:"S3_REGION"`
	S3Endpoint        string        `mapstructure:"S3_ENDPOINT"`
	S3AccessKeyID     string        `mapstructure:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string        `mapstructure:"S3_SECRET_ACCESS_KEY"`
	S3UsePathStyle    bool          `mapstructure:"S3_USE_PATH_STYLE"`
	S3PublicBaseURL   string        `mapstructure:"S3_PUBLIC_BASE_URL"`
	S3Timeout         time.Duration `mapstructure:"S3_TIMEOUT"`

	DefaultCoverImage string `mapstructure:"DEFAULT_COVER_IMAGE"`
	MaxUploadBytes    int64  `mapstructure:"MAX_UPLOAD_BYTES"`

	RateLimitEnabled bool    `mapstructure:"RATE_LIMIT_ENABLED"`
	RateLimitRPS     float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst   int     `mapstructure:"RATE_LIMIT_BURST"`
}

var defaults = map[string]any{
	"PORT":                 "8080",
	"ENVIRONMENT":          "development",
	"VERSION":              "1.0.0",
	"TRUSTED_ORIGINS":      []string{},
	"TLS_CERT_FILE":        "",
	"TLS_KEY_FILE":         "",
	"POSTGRES_HOST":        "localhost",
	"POSTGRES_PORT":        "5432",
	"POSTGRES_USER":        "",
	"POSTGRES_PASSWORD":    "",
	"POSTGRES_DB":          "",
	"DB_TIMEOUT":           "5s",
	"RABBITMQ_HOST":        "localhost",
	"RABBITMQ_PORT":        "5672",
	"RABBITMQ_USER":        "guest",
	"RABBITMQ_PASSWORD":    "guest",
	"MAIL_HOST":            "",
	"MAIL_PORT":            587,
	"MAIL_USER":            "",
	"MAIL_PASSWORD":        "",
	"MAIL_SENDER":          "",
	"JWT_SECRET":           "",
	"JWT_TTL":              "168h",
	"S3_BUCKET":            "",
	"S3_REGION":            "us-east-1",
	"S3_ENDPOINT":          "",
	"S3_ACCESS_KEY_ID":     "",
	"S3_SECRET_ACCESS_KEY": "",
	"S3_USE_PATH_STYLE":    false,
	"S3_PUBLIC_BASE_URL":   "",
	"S3_TIMEOUT":           "10s",
	"DEFAULT_COVER_IMAGE":  "https://images.unsplash.com/photo-1543128639-4cb7e6eeef1b?auto=format&fit=crop&w=1470&q=80",
	"MAX_UPLOAD_BYTES":     5 << 20,
	"RATE_LIMIT_ENABLED":   true,
	"RATE_LIMIT_RPS":       2.0,
	"RATE_LIMIT_BURST":     4,
}

// loadConfig reads the dotenv file at path. Environment variables override
// the file, and the file may be absent.
func loadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	v := common.NewValidator()
	v.Check(c.JWTSecret != "", "JWT_SECRET", "must be provided")
	v.Check(c.Environment != "production" || len(c.JWTSecret) >= 32, "JWT_SECRET", "must be at least 32 characters long in production")
	v.Check(c.JWTTTL > 0, "JWT_TTL", "must be positive")
	v.Check(c.DefaultCoverImage != "", "DEFAULT_COVER_IMAGE", "must be provided")
	v.Check(c.MaxUploadBytes > 0, "MAX_UPLOAD_BYTES", "must be positive")
	v.Check(c.Environment != "production" || (c.TLSCertFile != "" && c.TLSKeyFile != ""), "TLS_CERT_FILE", "must be provided in production")
	if !v.Valid() {
		return v.ValidationError()
	}

	return nil
}

// addr accepts both "8080" and ":8080".
func (c *Config) addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

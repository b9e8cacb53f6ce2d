package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// parseEnv overlays configuration from the process environment, loading an
// optional .env file first. Malformed numeric values keep the previous
// setting; a malformed encryption key is an error, not a fallback.
func parseEnv(config *Config) error {
	_ = godotenv.Load()

	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	setString("PASSVAULT_ADDR", &config.EndpointAddr)
	setString("PASSVAULT_DATABASE_DSN", &config.DatabaseDSN)
	setString("PASSVAULT_JWT_SECRET", &config.JWTSecret)
	setString("PASSVAULT_BREACH_RANGE_URL", &config.BreachRangeURL)

	setString("PASSVAULT_SMTP_HOST", &config.SMTPHost)
	setString("PASSVAULT_SMTP_USERNAME", &config.SMTPUsername)
	setString("PASSVAULT_SMTP_PASSWORD", &config.SMTPPassword)
	setString("PASSVAULT_SMTP_FROM", &config.SMTPFrom)
	if v, ok := os.LookupEnv("PASSVAULT_SMTP_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			config.SMTPPort = port
		}
	}
	if v, ok := os.LookupEnv("PASSVAULT_SMTP_TLS"); ok {
		if tls, err := strconv.ParseBool(v); err == nil {
			config.SMTPTLS = tls
		}
	}

	setString("PASSVAULT_S3_BUCKET", &config.S3Bucket)
	setString("PASSVAULT_S3_REGION", &config.S3Region)
	setString("PASSVAULT_S3_ENDPOINT", &config.S3BaseEndpoint)
	setString("PASSVAULT_S3_ACCESS_KEY", &config.S3AccessKey)
	setString("PASSVAULT_S3_SECRET_KEY", &config.S3SecretKey)

	if raw, ok := os.LookupEnv("PASSVAULT_ENCRYPTION_KEY"); ok {
		key, err := decodeKey(raw)
		if err != nil {
			return err
		}
		config.EncryptionKey = key
	}
	return nil
}

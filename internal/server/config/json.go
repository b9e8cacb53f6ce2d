package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mvolkovs/passvault/internal/flagx"
	"github.com/mvolkovs/passvault/internal/timex"
)

// JsonConfig is the intermediate DTO for reading JSON configuration files.
// It uses timex.Duration for interval fields, which parses both string
// values such as "90s" and integer nanoseconds. The encryption key is
// intentionally absent: key material never lives in config files.
type JsonConfig struct {
	EndpointAddr                 *string         `json:"endpoint_addr"`
	DatabaseDSN                  *string         `json:"database_dsn"`
	JWTSecret                    *string         `json:"jwt_secret"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`
	BreachRangeURL               *string         `json:"breach_range_url"`
	BreachCheckTimeout           *timex.Duration `json:"breach_check_timeout"`
	SMTPHost                     *string         `json:"smtp_host"`
	SMTPPort                     *int            `json:"smtp_port"`
	SMTPUsername                 *string         `json:"smtp_username"`
	SMTPFrom                     *string         `json:"smtp_from"`
	SMTPTLS                      *bool           `json:"smtp_tls"`
	S3Bucket                     *string         `json:"s3_bucket"`
	S3Region                     *string         `json:"s3_region"`
	S3BaseEndpoint               *string         `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from the JSON file named by the -c or
// -config flags into the provided Config. Absent file means nothing to load;
// fields not present in the file keep their current values.
func parseJson(config *Config) error {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return nil
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("config file: %w", err)
	}

	if c.EndpointAddr != nil {
		config.EndpointAddr = *c.EndpointAddr
	}
	if c.DatabaseDSN != nil {
		config.DatabaseDSN = *c.DatabaseDSN
	}
	if c.JWTSecret != nil {
		config.JWTSecret = *c.JWTSecret
	}
	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration != nil {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.BreachRangeURL != nil {
		config.BreachRangeURL = *c.BreachRangeURL
	}
	if c.BreachCheckTimeout != nil {
		config.BreachCheckTimeout = c.BreachCheckTimeout.Duration
	}
	if c.SMTPHost != nil {
		config.SMTPHost = *c.SMTPHost
	}
	if c.SMTPPort != nil {
		config.SMTPPort = *c.SMTPPort
	}
	if c.SMTPUsername != nil {
		config.SMTPUsername = *c.SMTPUsername
	}
	if c.SMTPFrom != nil {
		config.SMTPFrom = *c.SMTPFrom
	}
	if c.SMTPTLS != nil {
		config.SMTPTLS = *c.SMTPTLS
	}
	if c.S3Bucket != nil {
		config.S3Bucket = *c.S3Bucket
	}
	if c.S3Region != nil {
		config.S3Region = *c.S3Region
	}
	if c.S3BaseEndpoint != nil {
		config.S3BaseEndpoint = *c.S3BaseEndpoint
	}

	return nil
}

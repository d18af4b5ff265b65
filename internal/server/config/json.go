package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/gophreview/internal/flagx"
	"github.com/dmitrijs2005/gophreview/internal/timex"
)

// JsonConfig is the on-disk form of Config. Durations use timex.Duration,
// which accepts both "1h" strings and integer nanoseconds.
type JsonConfig struct {
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	DatabaseDSN                  string         `json:"database_dsn"`
	PrivateKeyFile               string         `json:"private_key_file"`
	PublicKeyFile                string         `json:"public_key_file"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	LogLevel                     string         `json:"log_level"`
	MetricsPath                  string         `json:"metrics_path"`
	ShutdownTimeout              timex.Duration `json:"shutdown_timeout"`
	SignInRatePerMinute          int            `json:"sign_in_rate_per_minute"`
	SignInBurst                  int            `json:"sign_in_burst"`
	RedisAddr                    string         `json:"redis_addr"`
	S3RootUser                   string         `json:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password"`
	S3Region                     string         `json:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint"`
}

// parseJson loads the file named by -c or -config, if any, and copies every
// field it sets over config. Fields missing from the file keep their value.
// An unreadable file or invalid JSON panics.
func parseJson(config *Config, args []string) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags(args)

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.PrivateKeyFile, c.PrivateKeyFile)
	setString(&config.PublicKeyFile, c.PublicKeyFile)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.MetricsPath, c.MetricsPath)
	setDuration(&config.ShutdownTimeout, c.ShutdownTimeout)
	if c.SignInRatePerMinute > 0 {
		config.SignInRatePerMinute = c.SignInRatePerMinute
	}
	if c.SignInBurst > 0 {
		config.SignInBurst = c.SignInBurst
	}
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}

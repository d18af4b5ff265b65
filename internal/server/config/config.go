// Package config handles configuration for the server component,
// including defaults, JSON overlay, environment and command-line flags.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds runtime settings for the gophreview server.
//
// Fields:
//   - EndpointAddrHTTP: bind address for the public HTTP endpoint.
//   - DatabaseDSN: credential store DSN; the scheme selects postgres, mongodb or memory.
//   - PrivateKeyFile / PublicKeyFile: RS256 key pair, a local path or s3://bucket/key.
//   - AccessTokenValidityDuration / RefreshTokenValidityDuration: token lifetimes.
//   - LogLevel: debug, info, warn or error.
//   - MetricsPath: where prometheus metrics are served; empty disables them.
//   - ShutdownTimeout: how long in-flight requests may run after a stop signal.
//   - SignInRatePerMinute / SignInBurst: per-IP throttle for sign-up and sign-in.
//   - RedisAddr: shared rate limit store; empty keeps the limiter in memory.
//   - S3RootUser / S3RootPassword / S3Region / S3BaseEndpoint: S3-compatible
//     object storage holding the key pair.
type Config struct {
	EndpointAddrHTTP             string
	DatabaseDSN                  string
	PrivateKeyFile               string
	PublicKeyFile                string
	AccessTokenValidityDuration  time.Duration
	RefreshTokenValidityDuration time.Duration
	LogLevel                     string
	MetricsPath                  string
	ShutdownTimeout              time.Duration
	SignInRatePerMinute          int
	SignInBurst                  int
	RedisAddr                    string
	S3RootUser                   string
	S3RootPassword               string
	S3Region                     string
	S3BaseEndpoint               string
}

// LoadDefaults populates Config with development defaults.
// NOTE: the in-memory store loses every account on restart.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":9500"
	c.DatabaseDSN = "memory://"
	c.PrivateKeyFile = "private.key"
	c.PublicKeyFile = "public.key"
	c.AccessTokenValidityDuration = 1 * time.Hour
	c.RefreshTokenValidityDuration = 30 * 24 * time.Hour
	c.LogLevel = "info"
	c.MetricsPath = "/metrics"
	c.ShutdownTimeout = 10 * time.Second
	c.SignInRatePerMinute = 10
	c.SignInBurst = 5
	c.S3Region = "us-east-1"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, the environment and finally command-line flags.
func LoadConfig() *Config {
	return load(os.Args[1:], os.LookupEnv)
}

func load(args []string, lookup func(string) (string, bool)) *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg, args)
	parseEnv(cfg, lookup)
	parseFlags(cfg, args)
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return cfg
}

// Validate reports settings the server cannot run with.
func (c *Config) Validate() error {
	if c.AccessTokenValidityDuration <= 0 {
		return fmt.Errorf("access token validity must be positive, got %s", c.AccessTokenValidityDuration)
	}
	if c.RefreshTokenValidityDuration <= 0 {
		return fmt.Errorf("refresh token validity must be positive, got %s", c.RefreshTokenValidityDuration)
	}
	return nil
}

package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {

	// Test cases
	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "all flags", args: []string{
			"-a", "127.0.0.1:9090", "-d", "postgres://db", "-k", "priv.pem", "-K", "pub.pem",
			"-t", "15", "-r", "60", "-l", "debug", "-m", "/prom", "-q", "redis:6379",
			"-u", "user", "-p", "password", "-g", "us-west-1", "-e", "http://endpoint",
		}, expectPanic: false,
			expected: &Config{
				EndpointAddrHTTP:             "127.0.0.1:9090",
				DatabaseDSN:                  "postgres://db",
				PrivateKeyFile:               "priv.pem",
				PublicKeyFile:                "pub.pem",
				AccessTokenValidityDuration:  15 * time.Minute,
				RefreshTokenValidityDuration: 60 * time.Minute,
				LogLevel:                     "debug",
				MetricsPath:                  "/prom",
				RedisAddr:                    "redis:6379",
				S3RootUser:                   "user",
				S3RootPassword:               "password",
				S3Region:                     "us-west-1",
				S3BaseEndpoint:               "http://endpoint",
			}},
		{name: "foreign flags ignored", args: []string{"-config", "x.json", "-test.v", "-a", ":1"},
			expected: &Config{EndpointAddrHTTP: ":1"}},
		{name: "bad minutes", args: []string{"-t", "soon"}, expectPanic: true},
		{name: "zero access minutes", args: []string{"-t", "0"}, expectPanic: true},
		{name: "negative refresh minutes", args: []string{"-r=-5"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config, tt.args) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config, tt.args) })
			}
		})
	}
}

func TestParseFlags_KeepsLifetimesWhenAbsent(t *testing.T) {
	config := defaults()
	parseFlags(config, nil)
	assert.Empty(t, cmp.Diff(defaults(), config))
}

func TestParseFlags_KeepsSubMinuteLifetimes(t *testing.T) {
	config := &Config{
		AccessTokenValidityDuration:  30 * time.Second,
		RefreshTokenValidityDuration: 90 * time.Second,
	}
	parseFlags(config, []string{"-a", ":1"})
	assert.Equal(t, 30*time.Second, config.AccessTokenValidityDuration)
	assert.Equal(t, 90*time.Second, config.RefreshTokenValidityDuration)

	parseFlags(config, []string{"-r", "2"})
	assert.Equal(t, 30*time.Second, config.AccessTokenValidityDuration)
	assert.Equal(t, 2*time.Minute, config.RefreshTokenValidityDuration)
}

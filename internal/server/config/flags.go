package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophreview/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":9500")
//	-d string   database DSN
//	-k string   private key location
//	-K string   public key location
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-l string   log level
//	-m string   metrics path
//	-q string   redis address for the rate limiter
//	-u string   S3 root user
//	-p string   S3 root password
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// Notes:
//   - Only the flags defined here are picked out of args (flagx.ParseOwn),
//     so -c/-config and test runner flags do not collide.
//   - Duration flags are accepted as integers in minutes and must be positive.
//     A lifetime is only replaced when its flag is present, so sub-minute
//     values from JSON or defaults survive.
func parseFlags(config *Config, args []string) {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.PrivateKeyFile, "k", config.PrivateKeyFile, "private key file or s3://bucket/key")
	fs.StringVar(&config.PublicKeyFile, "K", config.PublicKeyFile, "public key file or s3://bucket/key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh_token_validity_duration (in minutes)")

	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.MetricsPath, "m", config.MetricsPath, "metrics path")
	fs.StringVar(&config.RedisAddr, "q", config.RedisAddr, "redis address")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := flagx.ParseOwn(fs, args); err != nil {
		panic(err)
	}

	fs.Visit(func(f *flag.Flag) {
		var minutes int
		var dst *time.Duration
		switch f.Name {
		case "t":
			minutes, dst = *accessTokenValidityDuration, &config.AccessTokenValidityDuration
		case "r":
			minutes, dst = *refreshTokenValidityDuration, &config.RefreshTokenValidityDuration
		default:
			return
		}
		if minutes <= 0 {
			panic(fmt.Errorf("flag -%s: token validity must be positive, got %d", f.Name, minutes))
		}
		*dst = time.Duration(minutes) * time.Minute
	})
}

package config

// parseEnv overlays the variables the service has always been deployed with.
// Unset variables leave the current value alone; set but empty ones clear it.
func parseEnv(config *Config, lookup func(string) (string, bool)) {
	vars := []struct {
		name   string
		target *string
	}{
		{"DB_URL", &config.DatabaseDSN},
		{"PRIVATE_KEY_FILE", &config.PrivateKeyFile},
		{"PUBLIC_KEY_FILE", &config.PublicKeyFile},
		{"LOG_LEVEL", &config.LogLevel},
		{"HTTP_ADDR", &config.EndpointAddrHTTP},
		{"REDIS_ADDR", &config.RedisAddr},
	}
	for _, v := range vars {
		if val, ok := lookup(v.name); ok {
			*v.target = val
		}
	}
}

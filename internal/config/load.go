package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. CAPTIONER_UPLOAD_DIR.
const EnvPrefix = "CAPTIONER"

// Load reads the configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", DefaultListenAddr)
	v.SetDefault("upload_dir", DefaultUploadDir)
	v.SetDefault("max_upload_bytes", DefaultMaxUploadBytes)
	v.SetDefault("max_concurrent_jobs", DefaultMaxConcurrentJobs)
	v.SetDefault("rate_limit_rps", DefaultRateLimitRPS)
	v.SetDefault("rate_limit_burst", DefaultRateLimitBurst)
	v.SetDefault("trust_proxy_headers", false)
	v.SetDefault("retention", DefaultRetention)
	v.SetDefault("sweep_interval", DefaultSweepInterval)
	v.SetDefault("min_free_bytes", DefaultMinFreeBytes)
	v.SetDefault("font_path", "")
	v.SetDefault("output_format", "mp4")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("shutdown_timeout", DefaultShutdownTimeout)
	v.SetDefault("verbose", false)
}

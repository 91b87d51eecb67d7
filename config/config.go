package config

import "github.com/kelseyhightower/envconfig"

type Config struct {
	HttpPort        uint16 `envconfig:"AGP_HTTP_SERVER_PORT" default:"8080" required:"true"`
	ThresholdsFile  string `envconfig:"AGP_THRESHOLDS_FILE"`
	IntakeDir       string `envconfig:"AGP_INTAKE_DIR"`
	ReportCacheSize int    `envconfig:"AGP_REPORT_CACHE_SIZE" default:"256"`
}

func New() *Config {
	return &Config{}
}

func (c *Config) LoadFromEnv() error {
	return envconfig.Process("", c)
}

func NewFromEnv() (*Config, error) {
	cfg := New()
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

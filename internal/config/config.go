// Package config handles configuration loading from YAML files, environment
// variables, and command-line flags.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all configuration for the ping sweeper.
type Config struct {
	Sweep    SweepConfig    `mapstructure:"sweep"`
	Server   ServerConfig   `mapstructure:"server"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
}

// SweepConfig holds the sweep engine settings. It is passed explicitly to
// the sweeper and reporters; there is no process-wide configuration state.
type SweepConfig struct {
	Concurrency int     `mapstructure:"concurrency"`
	TimeoutS    float64 `mapstructure:"timeout_s"`
	Count       int     `mapstructure:"count"`
	OnlyOnline  bool    `mapstructure:"only_online"`
	Quiet       bool    `mapstructure:"quiet"`
	RateLimit   int     `mapstructure:"rate_limit"`
	Probe       string  `mapstructure:"probe"`
	Privileged  bool    `mapstructure:"privileged"`
}

// ServerConfig holds HTTP service-mode configuration.
type ServerConfig struct {
	Listen       string `mapstructure:"listen"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// RabbitMQConfig holds the optional AMQP publisher configuration. An empty
// URL disables publishing.
type RabbitMQConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

// WebhookConfig holds the optional completion callback configuration. An
// empty URL disables the callback.
type WebhookConfig struct {
	URL string `mapstructure:"url"`
}

// Validate checks the sweep settings the same way the CLI contract does.
func (c SweepConfig) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be >= 1, got %d", c.Concurrency)
	}
	if c.TimeoutS <= 0 {
		return fmt.Errorf("timeout must be > 0, got %g", c.TimeoutS)
	}
	if c.Count < 1 {
		return fmt.Errorf("count must be >= 1, got %d", c.Count)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate-limit must be >= 0, got %d", c.RateLimit)
	}
	switch c.Probe {
	case "icmp", "system":
	default:
		return fmt.Errorf("probe must be icmp or system, got %q", c.Probe)
	}
	return nil
}

// Load reads configuration from files and environment variables, then lets
// any parsed command-line flags override both.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("pingsweep")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/pingsweep/")
	v.AddConfigPath(".")

	// Config file is optional.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	v.SetEnvPrefix("PINGSWEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	bindings := map[string]string{
		"sweep.concurrency": "concurrency",
		"sweep.timeout_s":   "timeout",
		"sweep.count":       "count",
		"sweep.only_online": "only-online",
		"sweep.quiet":       "quiet",
		"sweep.rate_limit":  "rate-limit",
		"sweep.probe":       "probe",
		"sweep.privileged":  "privileged",
		"server.listen":     "listen",
		"rabbitmq.url":      "amqp-url",
		"webhook.url":       "webhook-url",
	}

	for key, name := range bindings {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return err
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Sweep defaults
	v.SetDefault("sweep.concurrency", 200)
	v.SetDefault("sweep.timeout_s", 1.0)
	v.SetDefault("sweep.count", 1)
	v.SetDefault("sweep.only_online", false)
	v.SetDefault("sweep.quiet", false)
	v.SetDefault("sweep.rate_limit", 0)
	v.SetDefault("sweep.probe", "icmp")
	v.SetDefault("sweep.privileged", false)

	// Server defaults
	v.SetDefault("server.listen", ":8001")
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 30)

	// RabbitMQ defaults
	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.exchange", "sweep.events")

	// Webhook defaults
	v.SetDefault("webhook.url", "")
}

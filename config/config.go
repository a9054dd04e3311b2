package config

import (
	"time"

	"github.com/minescope/minescope"
	"github.com/spf13/viper"
)

// Config drives the serve subcommand. The probe settings bridge into the
// minescope package, the rest shapes the http api and process lifecycle.
type Config struct {
	Mode     string
	Timeout  time.Duration
	Protocol int

	Bind                string
	AllowOrigin         string
	AcceptProxyProtocol bool
	RateLimit           int
	RateCooldown        time.Duration

	PidFile string
	Debug   bool
}

func DefaultConfig() Config {
	return Config{
		Mode:         "auto",
		Timeout:      minescope.DefaultTimeout,
		Protocol:     minescope.DefaultProberConfig().Protocol,
		Bind:         ":8080",
		AllowOrigin:  "*",
		RateLimit:    10,
		RateCooldown: time.Second,
		PidFile:      "/var/run/minescope.pid",
	}
}

// ReadConfig loads the config file at path. An empty path means the file is
// optional: minescope.yml is searched in the working directory and
// /etc/minescope, and the defaults apply when nothing is found.
func ReadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
		return configFromViper(v), nil
	}

	v.SetConfigName("minescope")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/minescope/")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}
	return configFromViper(v), nil
}

func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()
	v.SetDefault("probe.mode", defaults.Mode)
	v.SetDefault("probe.timeout", defaults.Timeout)
	v.SetDefault("probe.protocol", defaults.Protocol)
	v.SetDefault("api.bind", defaults.Bind)
	v.SetDefault("api.allow_origin", defaults.AllowOrigin)
	v.SetDefault("api.accept_proxy_protocol", defaults.AcceptProxyProtocol)
	v.SetDefault("api.rate_limit", defaults.RateLimit)
	v.SetDefault("api.rate_cooldown", defaults.RateCooldown)
	v.SetDefault("pid_file", defaults.PidFile)
	v.SetDefault("debug", defaults.Debug)
}

func configFromViper(v *viper.Viper) Config {
	return Config{
		Mode:                v.GetString("probe.mode"),
		Timeout:             v.GetDuration("probe.timeout"),
		Protocol:            v.GetInt("probe.protocol"),
		Bind:                v.GetString("api.bind"),
		AllowOrigin:         v.GetString("api.allow_origin"),
		AcceptProxyProtocol: v.GetBool("api.accept_proxy_protocol"),
		RateLimit:           v.GetInt("api.rate_limit"),
		RateCooldown:        v.GetDuration("api.rate_cooldown"),
		PidFile:             v.GetString("pid_file"),
		Debug:               v.GetBool("debug"),
	}
}

// ProberConfig converts the probe part of the config for minescope.NewProber.
func (cfg Config) ProberConfig() minescope.ProberConfig {
	return minescope.ProberConfig{
		Timeout:  cfg.Timeout,
		Protocol: cfg.Protocol,
	}
}

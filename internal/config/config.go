// Package config loads relay settings from the environment.
package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"github.com/rendezvous-relay/relay/internal/keepalive"
)

// Environment keys.
const (
	KeyPort           = "PORT"
	KeyHost           = "RELAY_HOST"
	KeyPingInterval   = "RELAY_PING_INTERVAL"
	KeyWriteWait      = "RELAY_WRITE_WAIT"
	KeyMaxMessageSize = "RELAY_MAX_MESSAGE_SIZE"
	KeySendBuffer     = "RELAY_SEND_BUFFER"
	KeyLogLevel       = "RELAY_LOG_LEVEL"
	KeyLogFormat      = "RELAY_LOG_FORMAT"
	KeyMetricsAddr    = "RELAY_METRICS_ADDR"
)

// Config holds all configuration values.
type Config struct {
	Host           string
	Port           int
	PingInterval   time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
	SendBuffer     int
	LogLevel       string
	LogFormat      string

	// MetricsAddr is the listen address of the Prometheus endpoint. Metrics
	// are not served when it is empty.
	MetricsAddr string
}

// Default returns the configuration used when no environment is set.
func Default() *Config {
	return &Config{
		Port:           4444,
		PingInterval:   keepalive.DefaultInterval,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 1 << 20,
		SendBuffer:     256,
		LogLevel:       "info",
		LogFormat:      "json",
	}
}

// Load reads the configuration from environment variables, falling back to
// Default for unset keys.
func Load() (*Config, error) {
	def := Default()

	v := viper.New()
	v.SetDefault(KeyPort, strconv.Itoa(def.Port))
	v.SetDefault(KeyHost, def.Host)
	v.SetDefault(KeyPingInterval, def.PingInterval.String())
	v.SetDefault(KeyWriteWait, def.WriteWait.String())
	v.SetDefault(KeyMaxMessageSize, strconv.FormatInt(def.MaxMessageSize, 10))
	v.SetDefault(KeySendBuffer, strconv.Itoa(def.SendBuffer))
	v.SetDefault(KeyLogLevel, def.LogLevel)
	v.SetDefault(KeyLogFormat, def.LogFormat)
	v.SetDefault(KeyMetricsAddr, def.MetricsAddr)
	v.AutomaticEnv()

	cfg := &Config{
		Host:        v.GetString(KeyHost),
		LogLevel:    v.GetString(KeyLogLevel),
		LogFormat:   v.GetString(KeyLogFormat),
		MetricsAddr: v.GetString(KeyMetricsAddr),
	}

	var err error
	if cfg.Port, err = parseInt(v, KeyPort); err != nil {
		return nil, err
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("%s: port %d out of range", KeyPort, cfg.Port)
	}
	if cfg.PingInterval, err = parseDuration(v, KeyPingInterval); err != nil {
		return nil, err
	}
	if cfg.WriteWait, err = parseDuration(v, KeyWriteWait); err != nil {
		return nil, err
	}
	size, err := parseInt(v, KeyMaxMessageSize)
	if err != nil {
		return nil, err
	}
	cfg.MaxMessageSize = int64(size)
	if cfg.SendBuffer, err = parseInt(v, KeySendBuffer); err != nil {
		return nil, err
	}
	if cfg.SendBuffer <= 0 {
		return nil, fmt.Errorf("%s: must be positive", KeySendBuffer)
	}

	return cfg, nil
}

// ListenAddr returns the host:port the relay binds to.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func parseInt(v *viper.Viper, key string) (int, error) {
	n, err := strconv.Atoi(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive", key)
	}
	return d, nil
}

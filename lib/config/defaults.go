package config

import (
	"path/filepath"
	"time"

	"github.com/go-i2p/go-cbcservice/lib/protocol"
	"github.com/go-i2p/go-cbcservice/lib/session"
	"github.com/go-i2p/logger"
	"github.com/spf13/viper"
)

// ConfigDefaults contains every go-cbcservice setting. Defaults() holds the
// built-in values and CurrentConfig() the effective ones.
type ConfigDefaults struct {
	Service   ServiceDefaults   `yaml:"service"`
	Transport TransportDefaults `yaml:"transport"`
	Metrics   MetricsDefaults   `yaml:"metrics"`
	Client    ClientDefaults    `yaml:"client"`
}

// ServiceDefaults configures the session table and request loop.
type ServiceDefaults struct {
	// Capacity is the number of concurrent sessions
	// Default: 16
	Capacity int `yaml:"capacity"`

	// MaxMessageSize rejects longer messages; 0 disables the check
	// Default: 0
	MaxMessageSize int `yaml:"max_message_size"`

	// QueueSize bounds requests waiting for the loop
	// Default: 64
	QueueSize int `yaml:"queue_size"`
}

// TransportDefaults configures the socket listener.
type TransportDefaults struct {
	Enabled bool `yaml:"enabled"`

	// Network is "unix" or "tcp"
	// Default: unix
	Network string `yaml:"network"`

	// Address is a socket path or host:port
	// Default: $HOME/.go-cbcservice/cbc.sock
	Address string `yaml:"address"`

	// Default: 64
	MaxConnections int `yaml:"max_connections"`

	// RateLimit is frames per second per connection; 0 disables limiting
	// Default: 1000
	RateLimit float64 `yaml:"rate_limit"`

	// Default: 100
	RateBurst int `yaml:"rate_burst"`

	// SecretHash is a bcrypt hash clients must match; empty accepts all
	SecretHash string `yaml:"secret_hash"`
}

// MetricsDefaults configures the Prometheus endpoint.
type MetricsDefaults struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// ClientDefaults configures callers built from this config.
type ClientDefaults struct {
	// Timeout bounds each request
	// Default: 2 seconds
	Timeout time.Duration `yaml:"timeout"`
}

// Defaults returns the built-in configuration.
func Defaults() ConfigDefaults {
	return ConfigDefaults{
		Service: ServiceDefaults{
			Capacity:       16,
			MaxMessageSize: 0,
			QueueSize:      64,
		},
		Transport: TransportDefaults{
			Enabled:        true,
			Network:        "unix",
			Address:        filepath.Join(BuildDirPath(), "cbc.sock"),
			MaxConnections: 64,
			RateLimit:      1000,
			RateBurst:      100,
		},
		Metrics: MetricsDefaults{
			Enabled: false,
			Address: "localhost:9465",
		},
		Client: ClientDefaults{
			Timeout: 2 * time.Second,
		},
	}
}

// CurrentConfig reads the effective configuration from viper.
func CurrentConfig() ConfigDefaults {
	return ConfigDefaults{
		Service: ServiceDefaults{
			Capacity:       viper.GetInt("service.capacity"),
			MaxMessageSize: viper.GetInt("service.max_message_size"),
			QueueSize:      viper.GetInt("service.queue_size"),
		},
		Transport: TransportDefaults{
			Enabled:        viper.GetBool("transport.enabled"),
			Network:        viper.GetString("transport.network"),
			Address:        viper.GetString("transport.address"),
			MaxConnections: viper.GetInt("transport.max_connections"),
			RateLimit:      viper.GetFloat64("transport.rate_limit"),
			RateBurst:      viper.GetInt("transport.rate_burst"),
			SecretHash:     viper.GetString("transport.secret_hash"),
		},
		Metrics: MetricsDefaults{
			Enabled: viper.GetBool("metrics.enabled"),
			Address: viper.GetString("metrics.address"),
		},
		Client: ClientDefaults{
			Timeout: viper.GetDuration("client.timeout"),
		},
	}
}

// Validate checks if the provided configuration values are reasonable.
// Returns an error describing the first invalid value found.
func Validate(cfg ConfigDefaults) error {
	validators := []func() error{
		func() error { return validateService(cfg.Service) },
		func() error { return validateTransport(cfg.Transport) },
		func() error { return validateMetrics(cfg.Metrics) },
		func() error { return validateClient(cfg.Client) },
	}

	for _, validator := range validators {
		if err := validator(); err != nil {
			log.WithError(err).Error("configuration_validation_failed")
			return err
		}
	}
	log.WithField("at", "config.Validate").Debug("configuration_valid")
	return nil
}

func validateService(service ServiceDefaults) error {
	if service.Capacity < 1 || service.Capacity > session.MaxCapacity {
		log.WithFields(logger.Fields{
			"at":       "config.validateService",
			"capacity": service.Capacity,
			"maximum":  session.MaxCapacity,
		}).Error("invalid_service_configuration")
		return newValidationError("Service.Capacity must be between 1 and 65536")
	}
	if service.MaxMessageSize != 0 && service.MaxMessageSize <= protocol.HeaderSize {
		return newValidationError("Service.MaxMessageSize must be 0 or larger than the 5 byte header")
	}
	if service.QueueSize < 1 {
		return newValidationError("Service.QueueSize must be at least 1")
	}
	return nil
}

func validateTransport(transport TransportDefaults) error {
	if !transport.Enabled {
		return nil
	}
	if transport.Network != "unix" && transport.Network != "tcp" {
		log.WithField("network", transport.Network).Error("invalid_transport_configuration")
		return newValidationError("Transport.Network must be unix or tcp")
	}
	if transport.Address == "" {
		return newValidationError("Transport.Address must be set when the transport is enabled")
	}
	if transport.MaxConnections < 1 {
		return newValidationError("Transport.MaxConnections must be at least 1")
	}
	if transport.RateLimit < 0 {
		return newValidationError("Transport.RateLimit cannot be negative")
	}
	if transport.RateLimit > 0 && transport.RateBurst < 1 {
		return newValidationError("Transport.RateBurst must be at least 1")
	}
	return nil
}

func validateMetrics(metrics MetricsDefaults) error {
	if metrics.Enabled && metrics.Address == "" {
		return newValidationError("Metrics.Address must be set when metrics are enabled")
	}
	return nil
}

func validateClient(client ClientDefaults) error {
	if client.Timeout < time.Millisecond {
		return newValidationError("Client.Timeout must be at least 1 millisecond")
	}
	return nil
}

// validationError is returned when configuration validation fails
type validationError struct {
	message string
}

func newValidationError(message string) error {
	return &validationError{message: message}
}

func (e *validationError) Error() string {
	return "configuration validation failed: " + e.message
}

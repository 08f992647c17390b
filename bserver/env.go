package bserver

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap/zapcore"
)

// Environment defines the interface that all environment configurations must implement.
// Embed BaseEnvironment in your struct to satisfy this interface.
type Environment interface {
	base() BaseEnvironment
}

// BaseEnvironment contains the server configuration read from BD_* variables.
// Embed this in your custom environment struct.
type BaseEnvironment struct {
	// Addr is the address to listen on, a file path when Network is "unix".
	Addr        string        `env:"BD_ADDR" envDefault:":8080"`
	Network     string        `env:"BD_NETWORK" envDefault:"tcp"`
	ServiceName string        `env:"BD_SERVICE_NAME,required,notEmpty"`
	HealthPath  string        `env:"BD_HEALTH_PATH" envDefault:"/health"`
	MetricsPath string        `env:"BD_METRICS_PATH" envDefault:"/metrics"`
	LogLevel    zapcore.Level `env:"BD_LOG_LEVEL" envDefault:"info"`
	// OtelExporter is one of "stdout", "xrayudp" or "none".
	OtelExporter string `env:"BD_OTEL_EXPORTER" envDefault:"stdout"`

	TLSCertFile string `env:"BD_TLS_CERT_FILE"`
	TLSKeyFile  string `env:"BD_TLS_KEY_FILE"`
	// TLSSecretID names an AWS Secrets Manager secret holding a JSON document with the PEM encoded
	// certificate and key, read at the gjson paths below.
	TLSSecretID      string `env:"BD_TLS_SECRET_ID"`
	TLSSecretCertKey string `env:"BD_TLS_SECRET_CERT_PATH" envDefault:"cert"`
	TLSSecretKeyKey  string `env:"BD_TLS_SECRET_KEY_PATH" envDefault:"key"`

	// MaxConns limits the number of simultaneously accepted connections, 0 means no limit.
	MaxConns int  `env:"BD_MAX_CONNS" envDefault:"0"`
	H2C      bool `env:"BD_H2C" envDefault:"false"`

	ReadHeaderTimeout time.Duration `env:"BD_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ReadTimeout       time.Duration `env:"BD_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout      time.Duration `env:"BD_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout       time.Duration `env:"BD_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout   time.Duration `env:"BD_SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// BodyLimit bounds request bodies read by extractors, -1 means no limit.
	BodyLimit int64 `env:"BD_BODY_LIMIT" envDefault:"10485760"`
	// BufferLimit bounds buffered responses, -1 means no limit.
	BufferLimit int `env:"BD_BUFFER_LIMIT" envDefault:"-1"`
}

func (e BaseEnvironment) base() BaseEnvironment { return e }

var _ Environment = BaseEnvironment{}

// TLSEnabled reports whether TLS material is configured.
func (e BaseEnvironment) TLSEnabled() bool {
	return e.TLSSecretID != "" || e.TLSCertFile != ""
}

func (e BaseEnvironment) validate() error {
	switch e.Network {
	case "tcp", "tcp4", "tcp6", "unix":
	default:
		return errors.Newf("unsupported BD_NETWORK: %q (supported: tcp, tcp4, tcp6, unix)", e.Network)
	}

	if (e.TLSCertFile == "") != (e.TLSKeyFile == "") {
		return errors.New("BD_TLS_CERT_FILE and BD_TLS_KEY_FILE must be set together")
	}

	if e.TLSSecretID != "" && e.TLSCertFile != "" {
		return errors.New("BD_TLS_SECRET_ID cannot be combined with BD_TLS_CERT_FILE")
	}

	if e.TLSEnabled() && e.H2C {
		return errors.New("BD_H2C cannot be combined with TLS")
	}

	if e.MaxConns < 0 {
		return errors.Newf("BD_MAX_CONNS must not be negative, got: %d", e.MaxConns)
	}

	return nil
}

// ParseEnv parses environment variables into the given Environment type.
func ParseEnv[E Environment]() func() (E, error) {
	return func() (e E, err error) {
		if err := env.Parse(&e); err != nil {
			return e, errors.Wrap(err, "failed to parse environment")
		}

		if err := e.base().validate(); err != nil {
			return e, errors.Wrap(err, "invalid environment")
		}

		return e, nil
	}
}

package bservertest

import (
	"testing"
)

// Env provides a chainable builder for setting [bserver.BaseEnvironment] env vars
// via t.Setenv. Create one with [SetBaseEnv].
type Env struct {
	t testing.TB
}

// SetBaseEnv sets the [bserver.BaseEnvironment] env vars to sensible test defaults. The server
// listens on a random loopback port, use [App.URL] to reach it.
//
// Defaults:
//   - BD_ADDR: "127.0.0.1:0"
//   - BD_SERVICE_NAME: "test"
//   - BD_OTEL_EXPORTER: "none"
//   - BD_LOG_LEVEL: "error"
//   - AWS_REGION: "us-east-1"
//   - AWS_ACCESS_KEY_ID: "test"
//   - AWS_SECRET_ACCESS_KEY: "test"
//
// Use the returned [Env] to override individual values:
//
//	bservertest.SetBaseEnv(t).ServiceName("orders").HealthPath("/ready")
func SetBaseEnv(t testing.TB) *Env {
	t.Helper()
	t.Setenv("BD_ADDR", "127.0.0.1:0")
	t.Setenv("BD_SERVICE_NAME", "test")
	t.Setenv("BD_OTEL_EXPORTER", "none")
	t.Setenv("BD_LOG_LEVEL", "error")
	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	return &Env{t: t}
}

// ServiceName overrides BD_SERVICE_NAME.
func (e *Env) ServiceName(name string) *Env {
	e.t.Helper()
	e.t.Setenv("BD_SERVICE_NAME", name)
	return e
}

// HealthPath overrides BD_HEALTH_PATH.
func (e *Env) HealthPath(path string) *Env {
	e.t.Helper()
	e.t.Setenv("BD_HEALTH_PATH", path)
	return e
}

// MetricsPath overrides BD_METRICS_PATH.
func (e *Env) MetricsPath(path string) *Env {
	e.t.Helper()
	e.t.Setenv("BD_METRICS_PATH", path)
	return e
}

// BodyLimit overrides BD_BODY_LIMIT.
func (e *Env) BodyLimit(n string) *Env {
	e.t.Helper()
	e.t.Setenv("BD_BODY_LIMIT", n)
	return e
}

// H2C overrides BD_H2C.
func (e *Env) H2C(enabled bool) *Env {
	e.t.Helper()
	if enabled {
		e.t.Setenv("BD_H2C", "true")
	} else {
		e.t.Setenv("BD_H2C", "false")
	}
	return e
}

// Set sets an arbitrary variable, for fields of custom environments.
func (e *Env) Set(key, value string) *Env {
	e.t.Helper()
	e.t.Setenv(key, value)
	return e
}

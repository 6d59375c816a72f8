// Package infra holds the adapters behind the core interfaces: SQLite and
// in-memory repositories, the MQTT transport, metrics sinks and the Sentry
// monitor. Core packages never import infra.
package infra

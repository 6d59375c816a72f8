package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const defaultTopicPrefix = "elevators"

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker     string `json:"broker"`
	ClientID   string `json:"client_id"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	UseTLS     bool   `json:"use_tls"`
	ClientCert string `json:"client_cert"`
	ClientKey  string `json:"client_key"`
	CABundle   string `json:"ca_bundle"`
	AuthMethod string `json:"auth_method"`
	// TopicPrefix roots every topic: <prefix>/<id>/command,
	// <prefix>/<id>/heartbeat and <prefix>/status.
	TopicPrefix string `json:"topic_prefix"`
	// QoS per message kind: "command", "heartbeat", "status".
	QoS        map[string]byte `json:"qos"`
	LWTTopic   string          `json:"lwt_topic"`
	LWTPayload string          `json:"lwt_payload"`
	LWTQoS     byte            `json:"lwt_qos"`
	LWTRetain  bool            `json:"lwt_retain"`
	MaxRetries int             `json:"max_retries"`
	BackoffMS  int             `json:"backoff_ms"`
	TLSConfig  *tls.Config     `json:"-"`
}

func (c Config) prefix() string {
	if c.TopicPrefix == "" {
		return defaultTopicPrefix
	}
	return strings.TrimSuffix(c.TopicPrefix, "/")
}

func (c Config) qos(kind string) byte {
	if q, ok := c.QoS[kind]; ok {
		return q
	}
	return 0
}

// CommandTopic is the queue topic of car id.
func (c Config) CommandTopic(id int64) string {
	return fmt.Sprintf("%s/%d/command", c.prefix(), id)
}

// HeartbeatTopic is the heartbeat topic of car id.
func (c Config) HeartbeatTopic(id int64) string {
	return fmt.Sprintf("%s/%d/heartbeat", c.prefix(), id)
}

// StatusTopic carries the retained fleet status.
func (c Config) StatusTopic() string {
	return c.prefix() + "/status"
}

// ElevatorFromTopic extracts the car id from a per-car topic.
func (c Config) ElevatorFromTopic(topic string) (int64, bool) {
	parts := strings.Split(strings.TrimPrefix(topic, c.prefix()+"/"), "/")
	if len(parts) != 2 {
		return 0, false
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

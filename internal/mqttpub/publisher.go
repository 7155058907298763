// Package mqttpub publishes engine status updates to an MQTT broker
package mqttpub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/mrcode/nightscout-engine/internal/logger"
)

const publishTimeout = 5 * time.Second

// Config describes the broker connection
type Config struct {
	Broker      string `yaml:"broker"` // e.g. tcp://localhost:1883, empty disables MQTT
	ClientID    string `yaml:"clientId"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topicPrefix"`
}

// Enabled reports whether a broker is configured
func (c Config) Enabled() bool {
	return c.Broker != ""
}

// client is the part of mqtt.Client the publisher uses
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publisher sends status frames to <prefix>/status and failures to <prefix>/error
type Publisher struct {
	client client
	prefix string
	log    *slog.Logger
}

// Connect dials the broker and returns a ready publisher
func Connect(cfg Config, log *slog.Logger) (*Publisher, mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(publishTimeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(publishTimeout) {
		return nil, nil, fmt.Errorf("connecting to mqtt broker %s: timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, nil, fmt.Errorf("connecting to mqtt broker %s: %w", cfg.Broker, err)
	}
	return New(c, cfg.TopicPrefix, log), c, nil
}

// New wraps an already connected client
func New(c client, prefix string, log *slog.Logger) *Publisher {
	if prefix == "" {
		prefix = "nightscout"
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Publisher{client: c, prefix: prefix, log: log.With("component", "mqtt")}
}

// Publish sends a retained status frame
func (p *Publisher) Publish(payload any) {
	p.send("status", true, payload)
}

// PublishError sends a non-retained error frame
func (p *Publisher) PublishError(err error) {
	p.send("error", false, map[string]string{"error": err.Error()})
}

func (p *Publisher) send(suffix string, retained bool, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.log.Error("marshal mqtt payload", "error", err)
		return
	}

	topic := p.prefix + "/" + suffix
	token := p.client.Publish(topic, 0, retained, data)
	if !token.WaitTimeout(publishTimeout) {
		p.log.Warn("mqtt publish timed out", "topic", topic)
		return
	}
	if err := token.Error(); err != nil {
		p.log.Error("mqtt publish failed", "topic", topic, "error", err)
	}
}

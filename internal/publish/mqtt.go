package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
	"github.com/srg/btrelay/pkg/sensor"
)

// ErrNotConnected is returned by Publish before Connect succeeded or after
// the broker connection was lost.
var ErrNotConnected = errors.New("mqtt client not connected")

// MQTTConfig holds broker and topic settings.
type MQTTConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
	Retain      bool
	Timeout     time.Duration
}

// mqttClient is the part of mqtt.Client used here.
type mqttClient interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
	IsConnected() bool
}

// MQTTPublisher publishes each reading as JSON to <prefix>/<sid>/<subid>.
type MQTTPublisher struct {
	cfg    MQTTConfig
	client mqttClient
	logger *logrus.Logger

	mu        sync.RWMutex
	connected bool
}

// NewMQTTPublisher creates a publisher with an auto-reconnecting paho client.
// Connect must be called before publishing.
func NewMQTTPublisher(cfg MQTTConfig, logger *logrus.Logger) *MQTTPublisher {
	if logger == nil {
		logger = logrus.New()
	}
	p := &MQTTPublisher{cfg: withMQTTDefaults(cfg), logger: logger}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(p.cfg.Broker)
	opts.SetClientID(p.cfg.ClientID)
	if p.cfg.Username != "" {
		opts.SetUsername(p.cfg.Username)
		opts.SetPassword(p.cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(time.Minute)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		p.setConnected(true)
		logger.WithField("broker", p.cfg.Broker).Info("MQTT connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.setConnected(false)
		logger.WithError(err).Warn("MQTT connection lost")
	})

	p.client = mqtt.NewClient(opts)
	return p
}

func newMQTTPublisherWithClient(cfg MQTTConfig, client mqttClient, logger *logrus.Logger) *MQTTPublisher {
	if logger == nil {
		logger = logrus.New()
	}
	return &MQTTPublisher{cfg: withMQTTDefaults(cfg), client: client, logger: logger}
}

func withMQTTDefaults(cfg MQTTConfig) MQTTConfig {
	if cfg.ClientID == "" {
		cfg.ClientID = "btrelay"
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "btrelay"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return cfg
}

// Connect waits for the initial broker connection or ctx.
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	if p.IsConnected() {
		return nil
	}

	token := p.client.Connect()
	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			p.setConnected(true)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// Topic returns the topic a reading is published to.
func (p *MQTTPublisher) Topic(d sensor.Data) string {
	return fmt.Sprintf("%s/%08x/%d", strings.TrimSuffix(p.cfg.TopicPrefix, "/"), d.SID, d.SubID)
}

func (p *MQTTPublisher) Publish(ctx context.Context, d sensor.Data) error {
	if !p.IsConnected() {
		return ErrNotConnected
	}

	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal reading: %w", err)
	}

	topic := p.Topic(d)
	token := p.client.Publish(topic, p.cfg.QoS, p.cfg.Retain, payload)

	timer := time.NewTimer(p.cfg.Timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
	case <-timer.C:
		return fmt.Errorf("publish timeout for topic %s", topic)
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	p.logger.WithFields(logrus.Fields{
		"topic":   topic,
		"payload": string(payload),
	}).Debug("Published reading")
	return nil
}

func (p *MQTTPublisher) IsConnected() bool {
	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	return connected && p.client.IsConnected()
}

// Close disconnects from the broker. Safe to call more than once.
func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	p.setConnected(false)
	return nil
}

func (p *MQTTPublisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

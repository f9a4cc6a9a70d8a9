package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTTConfig configures the broker connection
type MQTTConfig struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
	Timeout     time.Duration
}

// Publisher is the part of the paho client the MQTT sender uses
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSender publishes reminders to device topics on an MQTT broker
type MQTTSender struct {
	publisher   Publisher
	client      mqtt.Client
	topicPrefix string
	qos         byte
	timeout     time.Duration
	logger      *zap.Logger
}

var deviceIDPattern = regexp.MustCompile(`^[A-Za-z0-9_\-:.]+$`)

// NewMQTTSender connects to the broker and returns a sender
func NewMQTTSender(cfg MQTTConfig, logger *zap.Logger) (*MQTTSender, error) {
	if cfg.BrokerURL == "" {
		return nil, fmt.Errorf("mqtt broker url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(cfg.Timeout).
		SetAutoReconnect(true).
		SetCleanSession(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", zap.Error(err))
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("timed out connecting to mqtt broker %s", cfg.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker: %w", err)
	}

	logger.Info("Connected to MQTT broker", zap.String("broker", cfg.BrokerURL))

	sender := NewMQTTSenderWithPublisher(client, cfg.TopicPrefix, cfg.QoS, cfg.Timeout, logger)
	sender.client = client
	return sender, nil
}

// NewMQTTSenderWithPublisher creates a sender around an existing publisher
func NewMQTTSenderWithPublisher(pub Publisher, topicPrefix string, qos byte, timeout time.Duration, logger *zap.Logger) *MQTTSender {
	if topicPrefix == "" {
		topicPrefix = "medalert/devices"
	}
	if qos > 2 {
		qos = 1
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MQTTSender{
		publisher:   pub,
		topicPrefix: strings.TrimRight(topicPrefix, "/"),
		qos:         qos,
		timeout:     timeout,
		logger:      logger,
	}
}

// Topic returns the reminder topic of a device
func (s *MQTTSender) Topic(deviceID string) string {
	return fmt.Sprintf("%s/%s/reminder", s.topicPrefix, deviceID)
}

// Send publishes msg to the device identified by target
func (s *MQTTSender) Send(ctx context.Context, target string, msg Message) error {
	deviceID := strings.TrimSpace(target)
	if !deviceIDPattern.MatchString(deviceID) {
		return Permanent("invalid device id %q", target)
	}

	payload, err := json.Marshal(NewDevicePayload(msg))
	if err != nil {
		return Permanent("failed to encode device payload: %v", err)
	}

	token := s.publisher.Publish(s.Topic(deviceID), s.qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.timeout):
		return fmt.Errorf("timed out publishing to %s", s.Topic(deviceID))
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", s.Topic(deviceID), err)
	}

	s.logger.Debug("MQTT reminder published",
		zap.String("device_id", deviceID),
		zap.String("medication_id", msg.MedicationID))
	return nil
}

// Close disconnects from the broker
func (s *MQTTSender) Close() {
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(250)
	}
}

package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// DefaultTopic is the topic pattern verdicts are published to.
const DefaultTopic = "posture/{session_id}/verdict"

// MQTTConfig holds MQTT broker settings.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// Topic may contain {session_id} and {user} placeholders.
	Topic string `yaml:"topic"`
	QoS   byte   `yaml:"qos"`
}

// Publisher is the part of mqtt.Client the recorder needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTRecorder publishes each verdict as a JSON message.
type MQTTRecorder struct {
	client Publisher
	topic  string
	qos    byte
}

type verdictMessage struct {
	SessionID    string  `json:"session_id"`
	User         string  `json:"user,omitempty"`
	Posture      string  `json:"posture"`
	PostureType  string  `json:"posture_type"`
	TorsoAngle   float64 `json:"torso_angle"`
	NeckAngle    float64 `json:"neck_angle"`
	ShoulderTilt float64 `json:"shoulder_tilt"`
	Timestamp    string  `json:"timestamp"`
}

// DialMQTT connects to the broker and returns a recorder publishing on it.
func DialMQTT(cfg MQTTConfig) (*MQTTRecorder, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		slog.Info("mqtt connected", "broker", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("mqtt connection lost", "error", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return NewMQTTRecorder(client, cfg.Topic, cfg.QoS), nil
}

// NewMQTTRecorder creates a recorder on an existing client. An empty topic
// uses DefaultTopic.
func NewMQTTRecorder(client Publisher, topic string, qos byte) *MQTTRecorder {
	if topic == "" {
		topic = DefaultTopic
	}
	return &MQTTRecorder{client: client, topic: topic, qos: qos}
}

// Record publishes the entry and waits for the broker acknowledgement or ctx.
func (r *MQTTRecorder) Record(ctx context.Context, e Entry) error {
	payload, err := json.Marshal(verdictMessage{
		SessionID:    e.SessionID,
		User:         e.User,
		Posture:      string(e.Verdict),
		PostureType:  string(e.Category),
		TorsoAngle:   e.Features.TorsoAngle,
		NeckAngle:    e.Features.NeckAngle,
		ShoulderTilt: e.Features.ShoulderTilt,
		Timestamp:    e.Time.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal verdict: %w", err)
	}

	topic := formatTopic(r.topic, e.SessionID, e.User)
	token := r.client.Publish(topic, r.qos, false, payload)

	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish verdict to %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (r *MQTTRecorder) Close() error {
	r.client.Disconnect(250)
	return nil
}

// formatTopic fills the {session_id} and {user} placeholders.
func formatTopic(pattern, sessionID, user string) string {
	return strings.NewReplacer("{session_id}", sessionID, "{user}", user).Replace(pattern)
}

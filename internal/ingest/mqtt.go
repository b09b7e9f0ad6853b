package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/good-yellow-bee/vitalguard/internal/models"
)

// Ingester is the ingestion entry point used by transports.
type Ingester interface {
	Ingest(ctx context.Context, r *models.Reading, source string) (*Result, error)
}

// MQTTConfig holds broker settings for MQTT ingestion.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	// Topic may contain one + wildcard standing for the device id.
	Topic string
	QoS   byte
	TLS   *TLSConfig // nil dials without TLS
}

// MQTTSubscriber feeds readings published by devices into the ingestion
// service.
type MQTTSubscriber struct {
	cfg       MQTTConfig
	svc       Ingester
	logger    *zap.Logger
	client    mqtt.Client
	connected atomic.Bool
	backoff   *backoff
}

// NewMQTTSubscriber creates a subscriber. It does not connect until Start.
func NewMQTTSubscriber(cfg MQTTConfig, svc Ingester, logger *zap.Logger) *MQTTSubscriber {
	if cfg.Topic == "" {
		cfg.Topic = "vitalguard/+/readings"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MQTTSubscriber{
		cfg:     cfg,
		svc:     svc,
		logger:  logger,
		backoff: newBackoff(time.Second, 30*time.Second),
	}
}

// Start connects, subscribes and blocks until ctx is cancelled. An
// unreachable broker is retried with backoff; the subscription is renewed
// on every reconnect.
func (s *MQTTSubscriber) Start(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.cfg.Broker)
	opts.SetClientID(s.cfg.ClientID)
	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
	}
	if s.cfg.Password != "" {
		opts.SetPassword(s.cfg.Password)
	}
	if s.cfg.TLS != nil {
		tlsConfig, err := loadClientTLS(*s.cfg.TLS)
		if err != nil {
			return fmt.Errorf("mqtt tls: %w", err)
		}
		opts.SetTLSConfig(tlsConfig)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		s.connected.Store(true)
		s.subscribe(ctx, c)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.connected.Store(false)
		s.logger.Warn("mqtt connection lost", zap.Error(err))
	})

	s.client = mqtt.NewClient(opts)
	for {
		token := s.client.Connect()
		token.Wait()
		err := token.Error()
		if err == nil {
			break
		}
		delay := s.backoff.next()
		s.logger.Warn("mqtt connect failed",
			zap.String("broker", s.cfg.Broker), zap.Duration("retry_in", delay), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
	s.backoff.reset()

	<-ctx.Done()
	s.client.Unsubscribe(s.cfg.Topic).WaitTimeout(time.Second)
	s.client.Disconnect(250)
	s.connected.Store(false)
	return nil
}

func (s *MQTTSubscriber) subscribe(ctx context.Context, c mqtt.Client) {
	token := c.Subscribe(s.cfg.Topic, s.cfg.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		if err := s.handleMessage(ctx, msg.Topic(), msg.Payload()); err != nil {
			s.logger.Warn("mqtt reading rejected",
				zap.String("topic", msg.Topic()), zap.Error(err))
		}
	})
	if token.Wait() && token.Error() != nil {
		s.logger.Error("mqtt subscribe failed", zap.String("topic", s.cfg.Topic), zap.Error(token.Error()))
		return
	}
	s.logger.Info("mqtt ingestion subscribed",
		zap.String("broker", s.cfg.Broker), zap.String("topic", s.cfg.Topic))
}

// IsConnected reports whether the broker connection is up.
func (s *MQTTSubscriber) IsConnected() bool {
	return s.connected.Load()
}

func (s *MQTTSubscriber) handleMessage(ctx context.Context, topic string, payload []byte) error {
	var r models.Reading
	if err := json.Unmarshal(payload, &r); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if r.DeviceID == "" {
		r.DeviceID = deviceIDFromTopic(s.cfg.Topic, topic)
	}
	_, err := s.svc.Ingest(ctx, &r, SourceMQTT)
	return err
}

// deviceIDFromTopic returns the topic segment matched by the + wildcard in
// pattern, or "" when there is none.
func deviceIDFromTopic(pattern, topic string) string {
	ps := strings.Split(pattern, "/")
	ts := strings.Split(topic, "/")
	for i, p := range ps {
		if p == "+" && i < len(ts) {
			return ts[i]
		}
	}
	return ""
}

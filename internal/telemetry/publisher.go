// Package telemetry forwards camera events to the kit's MQTT broker so
// the grow-room backend sees state changes, measurements and photos
// without polling the HTTP API.
package telemetry

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/AstroPlant/astroplant-camera-module/internal/events"
)

// Config describes the broker connection and what gets forwarded.
type Config struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	Username    string
	Password    string

	// PublishPhotos also uploads stored photos base64-encoded under
	// <prefix>/photo/<kind>. Off by default: composites are heavy for
	// the constrained links kits tend to sit on.
	PublishPhotos bool
}

// Publisher bridges the in-process event bus to MQTT. Events arrive on
// a buffered channel and are forwarded from a single goroutine, so a
// slow broker can never stall a running command.
type Publisher struct {
	cfg    Config
	bus    *events.Bus
	logger *slog.Logger

	client  mqtt.Client
	publish func(topic string, payload []byte) error

	events   chan any
	unsubs   []func()
	done     chan struct{}
	stopOnce sync.Once
}

// NewPublisher creates a publisher for the given broker. Nothing
// connects until Start.
func NewPublisher(cfg Config, bus *events.Bus, logger *slog.Logger) *Publisher {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "astroplant/camera"
	}

	opts := mqtt.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.SetKeepAlive(2 * time.Second)
	opts.SetPingTimeout(1 * time.Second)
	opts.SetAutoReconnect(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	p := &Publisher{
		cfg:    cfg,
		bus:    bus,
		logger: logger,
		client: mqtt.NewClient(opts),
		events: make(chan any, 64),
		done:   make(chan struct{}),
	}
	p.publish = p.publishMQTT
	return p
}

// Start connects to the broker and begins forwarding events.
func (p *Publisher) Start() error {
	if p.client != nil {
		if token := p.client.Connect(); token.Wait() && token.Error() != nil {
			return fmt.Errorf("failed to connect to broker %s: %w", p.cfg.Broker, token.Error())
		}
		p.logger.Info("Telemetry connected", "broker", p.cfg.Broker, "prefix", p.cfg.TopicPrefix)
	}

	p.unsubs = append(p.unsubs,
		events.SubscribeToChannel[events.StateChangedEvent](p.bus, p.events),
		events.SubscribeToChannel[events.CommandCompletedEvent](p.bus, p.events),
		events.SubscribeToChannel[events.ValueMeasuredEvent](p.bus, p.events),
		events.SubscribeToChannel[events.CalibrationCompletedEvent](p.bus, p.events),
		events.SubscribeToChannel[events.PhotoStoredEvent](p.bus, p.events),
	)
	go p.loop()
	return nil
}

// Stop unsubscribes from the bus and disconnects from the broker.
func (p *Publisher) Stop() {
	p.stopOnce.Do(func() {
		for _, unsub := range p.unsubs {
			unsub()
		}
		close(p.done)
		if p.client != nil && p.client.IsConnected() {
			p.client.Disconnect(250)
		}
	})
}

func (p *Publisher) loop() {
	for {
		select {
		case <-p.done:
			return
		case ev := <-p.events:
			p.forward(ev)
		}
	}
}

func (p *Publisher) forward(ev any) {
	switch e := ev.(type) {
	case events.StateChangedEvent:
		p.publishJSON("state", e)
	case events.CommandCompletedEvent:
		p.publishJSON("command", e)
	case events.ValueMeasuredEvent:
		p.publishJSON("measurement", e)
	case events.CalibrationCompletedEvent:
		p.publishJSON("calibration", e)
	case events.PhotoStoredEvent:
		p.publishJSON("photo", e)
		if p.cfg.PublishPhotos {
			p.publishPhoto(e)
		}
	}
}

func (p *Publisher) publishJSON(sub string, obj any) {
	payload, err := json.Marshal(obj)
	if err != nil {
		p.logger.Warn("Failed to encode telemetry payload", "topic", sub, "error", err)
		return
	}
	topic := p.cfg.TopicPrefix + "/" + sub
	if err := p.publish(topic, payload); err != nil {
		p.logger.Warn("Telemetry publish failed", "topic", topic, "error", err)
	}
}

// publishPhoto uploads the stored image base64-encoded, the format the
// backend ingests camera frames in.
func (p *Publisher) publishPhoto(e events.PhotoStoredEvent) {
	data, err := os.ReadFile(e.Path)
	if err != nil {
		p.logger.Warn("Failed to read photo for telemetry", "path", e.Path, "error", err)
		return
	}
	b64 := make([]byte, base64.StdEncoding.EncodedLen(len(data)))
	base64.StdEncoding.Encode(b64, data)

	topic := p.cfg.TopicPrefix + "/photo/" + e.Kind
	if err := p.publish(topic, b64); err != nil {
		p.logger.Warn("Telemetry photo publish failed", "topic", topic, "error", err)
	}
}

// publishMQTT sends one message at QoS 2: measurements must arrive
// exactly once or the backend double-counts them.
func (p *Publisher) publishMQTT(topic string, payload []byte) error {
	token := p.client.Publish(topic, 2, false, payload)
	token.Wait()
	return token.Error()
}

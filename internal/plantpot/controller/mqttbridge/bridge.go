// Package mqttbridge publishes the engine status to an MQTT broker and feeds
// commands received on the command topic into the engine's inbox.
package mqttbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/saturnblock/pythonplantpot/internal/log"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/command"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/config"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/engine"
)

// Availability payloads, retained on <prefix>/availability
const (
	Online  = "online"
	Offline = "offline"
)

// Backend is what the bridge needs from the controller
type Backend interface {
	Snapshot() engine.Snapshot
	Issue(cmd command.Command) (command.Command, error)
}

// Message is the JSON accepted on the command topic. ID deduplicates
// redeliveries and may be empty.
type Message struct {
	ID              string         `json:"id,omitempty"`
	Action          command.Action `json:"action"`
	AmountMl        int            `json:"amountMl,omitempty"`
	DurationSeconds int            `json:"durationSeconds,omitempty"`
}

// Bridge connects the engine to an MQTT broker
type Bridge struct {
	cfg     config.MQTTConfig
	backend Backend

	// Interval is the status publish period
	Interval time.Duration

	newClient func(*mqtt.ClientOptions) mqtt.Client
	seen      *deduper
}

// New creates a bridge. Run connects it.
func New(cfg config.MQTTConfig, backend Backend) *Bridge {
	return &Bridge{
		cfg:       cfg,
		backend:   backend,
		Interval:  5 * time.Second,
		newClient: mqtt.NewClient,
		seen:      newDeduper(10*time.Minute, 1024),
	}
}

// StatusTopic carries the retained engine snapshot
func (b *Bridge) StatusTopic() string { return b.cfg.TopicPrefix + "/status" }

// CommandTopic is subscribed for operator commands
func (b *Bridge) CommandTopic() string { return b.cfg.TopicPrefix + "/command" }

// AvailabilityTopic carries online/offline, with offline as the last will
func (b *Bridge) AvailabilityTopic() string { return b.cfg.TopicPrefix + "/availability" }

func (b *Bridge) options() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(b.cfg.Broker)
	// Unique suffix so a restarted controller does not kick its own stale session
	opts.SetClientID(fmt.Sprintf("%s-%s", b.cfg.ClientID, uuid.NewString()[:8]))
	opts.SetUsername(b.cfg.Username)
	opts.SetPassword(b.cfg.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetWill(b.AvailabilityTopic(), Offline, b.cfg.QoS, true)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		log.Info("MQTT connected to %s", b.cfg.Broker)
		b.subscribe(c)
		b.publish(c, b.AvailabilityTopic(), Online)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("MQTT connection lost: %v", err)
	})
	return opts
}

// connect dials the broker with exponential backoff until ctx is done
func (b *Bridge) connect(ctx context.Context) (mqtt.Client, error) {
	client := b.newClient(b.options())

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = time.Minute
	bo.MaxElapsedTime = 0

	err := backoff.Retry(func() error {
		token := client.Connect()
		token.Wait()
		if err := token.Error(); err != nil {
			log.DebugH2("MQTT connect to %s failed: %v", b.cfg.Broker, err)
			return err
		}
		return nil
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", b.cfg.Broker, err)
	}
	return client, nil
}

// Run connects, publishes status every Interval and serves the command topic
// until ctx is done
func (b *Bridge) Run(ctx context.Context) error {
	client, err := b.connect(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	return b.loop(ctx, client)
}

func (b *Bridge) loop(ctx context.Context, client mqtt.Client) error {
	ticker := time.NewTicker(b.Interval)
	defer ticker.Stop()

	b.PublishStatus(client)
	for {
		select {
		case <-ctx.Done():
			b.publish(client, b.AvailabilityTopic(), Offline)
			client.Unsubscribe(b.CommandTopic()).WaitTimeout(time.Second)
			client.Disconnect(250)
			log.Info("MQTT bridge stopped")
			return nil
		case <-ticker.C:
			if client.IsConnectionOpen() {
				b.PublishStatus(client)
			}
		}
	}
}

func (b *Bridge) subscribe(client mqtt.Client) {
	token := client.Subscribe(b.CommandTopic(), b.cfg.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		if err := b.HandleMessage(msg.Payload()); err != nil {
			log.Error("MQTT command rejected: %v", err)
		}
	})
	if token.Wait() && token.Error() != nil {
		log.Error("Error subscribing to topic %s: %v", b.CommandTopic(), token.Error())
		return
	}
	log.InfoH2("Subscribed to %s", b.CommandTopic())
}

// PublishStatus publishes the current snapshot, retained
func (b *Bridge) PublishStatus(client mqtt.Client) {
	payload, err := json.Marshal(b.backend.Snapshot())
	if err != nil {
		log.Error("MQTT status encode: %v", err)
		return
	}
	b.publish(client, b.StatusTopic(), payload)
}

func (b *Bridge) publish(client mqtt.Client, topic string, payload interface{}) {
	token := client.Publish(topic, b.cfg.QoS, true, payload)
	if !token.WaitTimeout(5 * time.Second) {
		log.DebugH2("MQTT publish to %s timed out", topic)
		return
	}
	if err := token.Error(); err != nil {
		log.DebugH2("MQTT publish to %s failed: %v", topic, err)
	}
}

// HandleMessage decodes a command message and issues it into the inbox
func (b *Bridge) HandleMessage(payload []byte) error {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("invalid command payload: %w", err)
	}
	if !b.seen.shouldProcess(msg.ID) {
		log.DebugH2("MQTT command %s already handled", msg.ID)
		return nil
	}

	issued, err := b.backend.Issue(command.Command{
		Action:          msg.Action,
		AmountMl:        msg.AmountMl,
		DurationSeconds: msg.DurationSeconds,
	})
	if err != nil {
		return err
	}
	log.Info("Queued %s from MQTT", issued)
	return nil
}

// Package mqtt wraps the paho client with the connect/retry and shutdown
// behavior the rest of the app relies on. Discovery and entity semantics live
// in the hass package; this one only moves bytes.
package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"blitzmap-server/internal/config"
)

const publishTimeout = 5 * time.Second

// Handler is called for each message on a subscribed topic. An alias, so
// callers can pass plain functions across package boundaries.
type Handler = func(topic string, payload []byte)

type Client struct {
	client    mqtt.Client
	cfg       config.Config
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once

	// subscriptions are replayed by OnConnect so they survive reconnects.
	subMu sync.Mutex
	subs  map[string]Handler
}

// AvailabilityTopic is where the broker announces us dead (last will) and
// where we announce ourselves alive after connecting.
func AvailabilityTopic(cfg config.Config) string {
	return cfg.MQTTBaseTopic + "/status"
}

func NewClient(cfg config.Config, logger *slog.Logger) *Client {
	c := &Client{
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		subs:   make(map[string]Handler),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)

	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	// Home Assistant flips our entities to unavailable when the broker
	// delivers this will after an unclean disconnect.
	opts.SetWill(AvailabilityTopic(cfg), "offline", 1, true)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		c.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
		c.resubscribe()
		if err := c.Publish(AvailabilityTopic(cfg), 1, true, []byte("online")); err != nil {
			logger.Warn("failed to announce availability", "error", err)
		}
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	c.client = mqtt.NewClient(opts)
	return c
}

// Connect establishes the broker connection, waiting until connected or the
// context is done. Respects Disconnect().
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.stopCh:
		return fmt.Errorf("client stopped")
	default:
	}

	if c.IsConnected() {
		return nil
	}

	token := c.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			// OnConnectHandler sets connected=true.
			return nil
		}

		select {
		case <-ctx.Done():
			c.client.Disconnect(0)
			return ctx.Err()
		case <-c.stopCh:
			c.client.Disconnect(0)
			return fmt.Errorf("client stopped")
		default:
		}
	}
}

// Publish sends a payload and waits for broker acknowledgement.
func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	if !c.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("publish to %s: %w", topic, token.Error())
	}
	c.logger.Debug("published", "topic", topic, "size", len(payload), "retained", retained)
	return nil
}

// Subscribe registers a handler for the topic. The subscription is replayed
// after every reconnect.
func (c *Client) Subscribe(topic string, handler Handler) error {
	c.subMu.Lock()
	c.subs[topic] = handler
	c.subMu.Unlock()

	if !c.IsConnected() {
		// OnConnect will pick it up.
		return nil
	}
	return c.subscribe(topic, handler)
}

func (c *Client) subscribe(topic string, handler Handler) error {
	token := c.client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout for topic %s", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, token.Error())
	}
	c.logger.Info("subscribed to mqtt topic", "topic", topic)
	return nil
}

func (c *Client) resubscribe() {
	c.subMu.Lock()
	subs := make(map[string]Handler, len(c.subs))
	for topic, handler := range c.subs {
		subs[topic] = handler
	}
	c.subMu.Unlock()

	for topic, handler := range subs {
		if err := c.subscribe(topic, handler); err != nil {
			c.logger.Error("resubscribe failed", "topic", topic, "error", err)
		}
	}
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

// Disconnect announces offline, stops the client, and closes the connection.
// Idempotent; after Disconnect, Connect returns "client stopped".
func (c *Client) Disconnect() {
	c.stopOnce.Do(func() { close(c.stopCh) })

	if c.client.IsConnected() {
		// Graceful goodbye; the will only fires on unclean disconnects.
		if err := c.Publish(AvailabilityTopic(c.cfg), 1, true, []byte("offline")); err != nil {
			c.logger.Warn("failed to announce offline", "error", err)
		}
		c.client.Disconnect(250)
	}

	c.setConnected(false)
	c.logger.Info("mqtt disconnected")
}

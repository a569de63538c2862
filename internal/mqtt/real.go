package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// DefaultOutboxSize bounds how many messages are held while disconnected.
const DefaultOutboxSize = 100

// Options configures a RealClient.
type Options struct {
	Broker     string
	ClientID   string
	OutboxSize int

	// Handler, if set, receives messages from TopicEvents. The subscription
	// is renewed on every reconnect.
	Handler Handler

	// Will is published by the broker if the connection drops uncleanly.
	Will *SystemEvent
}

// RealClient publishes to and subscribes on an actual MQTT broker.
type RealClient struct {
	client  paho.Client
	handler Handler

	mu     sync.Mutex
	outbox *outbox
}

// NewRealClient connects to the broker. If the broker is not reachable
// within the connect timeout the client keeps retrying in the background
// and queues outbound messages meanwhile.
func NewRealClient(o Options) (*RealClient, error) {
	if o.ClientID == "" {
		o.ClientID = "link-indicator"
	}
	if o.OutboxSize == 0 {
		o.OutboxSize = DefaultOutboxSize
	}

	c := &RealClient{
		handler: o.Handler,
		outbox:  newOutbox(o.OutboxSize),
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})
	if o.Will != nil {
		payload, err := FormatSystemPayload(*o.Will)
		if err != nil {
			return nil, fmt.Errorf("format will payload: %w", err)
		}
		opts.SetBinaryWill(TopicSystem, payload, 1, o.Will.Retained)
	}

	c.client = paho.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Printf("mqtt: %s not reachable yet, retrying in background", o.Broker)
		return c, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return c, nil
}

// onConnect runs on the first connect and every reconnect.
func (c *RealClient) onConnect(client paho.Client) {
	log.Printf("mqtt: connected")
	if c.handler != nil {
		token := client.Subscribe(TopicEvents, 1, func(_ paho.Client, msg paho.Message) {
			_ = Dispatch(c.handler, msg.Payload())
		})
		// Waiting inside the connect handler would block paho's router.
		go func() {
			if token.WaitTimeout(5*time.Second) && token.Error() != nil {
				log.Printf("mqtt: subscribe %s: %v", TopicEvents, token.Error())
			}
		}()
	}

	c.mu.Lock()
	queued, dropped := c.outbox.drain()
	c.mu.Unlock()
	if len(queued) == 0 {
		return
	}
	log.Printf("mqtt: replaying %d queued messages (%d dropped)", len(queued), dropped)
	for _, m := range queued {
		// Fire and forget: paho tracks QoS 1 delivery itself.
		client.Publish(m.topic, m.qos, m.retained, m.payload)
	}
}

func (c *RealClient) publish(topic string, qos byte, retained bool, payload []byte) error {
	c.mu.Lock()
	if !c.client.IsConnectionOpen() {
		c.outbox.push(pending{topic: topic, payload: payload, qos: qos, retained: retained})
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// PublishState sends an indicator state change. Retained so late
// subscribers see the current pattern.
func (c *RealClient) PublishState(change StateChange) error {
	payload, err := FormatStatePayload(change)
	if err != nil {
		return fmt.Errorf("format state payload: %w", err)
	}
	return c.publish(TopicState, 1, true, payload)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (c *RealClient) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) - we want lifecycle events delivered
	return c.publish(TopicSystem, 1, event.Retained, payload)
}

// IsConnected reports whether the broker connection is up.
func (c *RealClient) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Queued returns the number of messages awaiting reconnection.
func (c *RealClient) Queued() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outbox.len()
}

// Close disconnects from the broker.
func (c *RealClient) Close() error {
	c.client.Disconnect(1000) // 1 second timeout
	return nil
}

package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/hashicorp/go-hclog"

	"github.com/alarm-monitor/alarm-sensor/internal/logic"
)

// Options configures a RealPublisher.
type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Prefix   string

	// BufferSize is the number of messages kept while disconnected.
	BufferSize int

	// OnThreshold receives decoded threshold commands. It runs on the
	// paho callback goroutine and must not block.
	OnThreshold func(ThresholdCommand)

	Logger hclog.Logger
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	topics Topics
	logger hclog.Logger

	onThreshold func(ThresholdCommand)

	mu  sync.Mutex
	buf *ringBuffer
}

// NewRealPublisher creates a publisher and starts connecting to the broker.
// If the broker is not reachable within the connect timeout the publisher is
// still returned; paho keeps retrying and messages are buffered meanwhile.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	if o.Broker == "" {
		return nil, fmt.Errorf("no broker configured")
	}
	if o.ClientID == "" {
		o.ClientID = "alarm-sensor"
	}
	logger := o.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	p := &RealPublisher{
		topics:      NewTopics(o.Prefix),
		logger:      logger,
		onThreshold: o.OnThreshold,
		buf:         newRingBuffer(o.BufferSize, logger),
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "OFFLINE",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(p.topics.System, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warn("connection lost", "error", err)
		})
	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		logger.Warn("broker not reachable yet, retrying in background", "broker", o.Broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// onConnect (re)subscribes to commands and replays buffered messages.
// Subscriptions are not persisted by the broker for clean sessions.
func (p *RealPublisher) onConnect(c paho.Client) {
	p.logger.Info("connected", "prefix", p.topics.Prefix())

	if p.onThreshold != nil {
		token := c.Subscribe(p.topics.ThresholdFilter, 1, p.handleMessage)
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			p.logger.Error("subscribe failed", "topic", p.topics.ThresholdFilter, "error", token.Error())
		}
	}

	p.mu.Lock()
	dropped := p.buf.dropped()
	msgs := p.buf.drainAll()
	p.mu.Unlock()

	if len(msgs) == 0 {
		return
	}
	p.logger.Info("replaying buffered messages", "count", len(msgs), "dropped", dropped)
	for _, m := range msgs {
		// Asynchronous: the handler must return for paho to process acks.
		c.Publish(m.topic, m.qos, m.retained, m.payload)
	}
}

func (p *RealPublisher) handleMessage(_ paho.Client, msg paho.Message) {
	cmd, err := ParseThresholdCommand(p.topics, msg.Topic(), msg.Payload())
	if err != nil {
		p.logger.Warn("ignoring threshold command", "topic", msg.Topic(), "error", err)
		return
	}
	p.onThreshold(cmd)
}

// Publish sends a status change to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 1: the collector must see every reported change
	return p.publish(p.topics.Events, 1, false, payload)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	return p.publish(p.topics.System, 1, event.Retained, payload)
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	msg := bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained}

	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.buf.push(msg)
		p.mu.Unlock()
		return nil
	}

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		p.mu.Lock()
		p.buf.push(msg)
		p.mu.Unlock()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	return nil
}

// IsConnected reports whether the broker connection is currently up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Topics returns the topics in use.
func (p *RealPublisher) Topics() Topics {
	return p.topics
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}

// SendThreshold connects, publishes one threshold command and disconnects.
// The command is not retained so a restarted daemon keeps its stored value.
func SendThreshold(o Options, cmd ThresholdCommand) error {
	if o.Broker == "" {
		return fmt.Errorf("no broker configured")
	}
	if o.ClientID == "" {
		o.ClientID = "alarm-sensor-cli"
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID)
	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	defer client.Disconnect(250)

	topic := NewTopics(o.Prefix).Threshold(cmd.Channel)
	token = client.Publish(topic, 1, false, []byte(fmt.Sprintf("%d", cmd.Threshold)))
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

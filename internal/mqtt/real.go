package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/gpio-buttons/internal/button"
)

// bufferCapacity bounds how many messages are kept while disconnected.
const bufferCapacity = 256

// RealPublisher publishes to an actual MQTT broker.
// Messages published while disconnected are buffered and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	topic  string
	log    *zap.SugaredLogger

	mu  sync.Mutex
	buf *ringBuffer
}

// NewRealPublisher creates a publisher for the given broker. It connects in
// the background; the daemon keeps running while the broker is unreachable.
func NewRealPublisher(broker string, log *zap.SugaredLogger) *RealPublisher {
	p := &RealPublisher{
		topic: Topic,
		log:   log,
		buf:   newRingBuffer(bufferCapacity),
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("gpio-buttons").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(TopicSystem, willPayload(), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warnw("mqtt connection lost", "error", err)
		})

	p.client = paho.NewClient(opts)
	p.client.Connect()
	return p
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	pending, dropped := p.buf.drainAll()
	p.mu.Unlock()

	p.log.Infow("mqtt connected", "replaying", len(pending), "dropped_while_offline", dropped)
	for _, m := range pending {
		token := c.Publish(m.topic, m.qos, m.retained, m.payload)
		if !token.WaitTimeout(5 * time.Second) {
			p.log.Warnw("mqtt replay timeout", "message", m.label())
			continue
		}
		if err := token.Error(); err != nil {
			p.log.Warnw("mqtt replay failed", "message", m.label(), "error", err)
		}
	}
}

// IsConnected reports whether the client currently has an open connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Publish sends a button event to the MQTT broker.
func (p *RealPublisher) Publish(event button.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.send(bufferedMsg{
		topic:   p.topic,
		payload: payload,
		button:  event.Button,
		event:   event.Type,
	})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	return p.send(bufferedMsg{
		topic:    TopicSystem,
		payload:  payload,
		qos:      1,
		retained: event.Retained,
		event:    button.EventType(event.Event),
	})
}

func (p *RealPublisher) send(m bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		evicted, dropped := p.buf.push(m)
		n := p.buf.droppedSinceDrain()
		p.mu.Unlock()
		if dropped {
			if n == 1 {
				p.log.Warnw("mqtt buffer full, dropping oldest", "capacity", bufferCapacity)
			}
			p.log.Debugw("mqtt message dropped", "message", evicted.label())
		}
		return nil
	}

	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", m.label())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.label(), err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}

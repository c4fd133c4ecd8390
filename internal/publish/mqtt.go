package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Enigma-Deez/Roll-Call/internal/attendance"
	"github.com/Enigma-Deez/Roll-Call/internal/config"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
	queueSize      = 256
)

// ErrQueueFull is counted when an event is dropped because the broker is slow.
var ErrQueueFull = errors.New("mqtt publish queue full")

// client is the part of mqtt.Client the publisher uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
}

// MQTTPublisher sends session events to a broker from a background goroutine so
// session loops never wait on the network.
type MQTTPublisher struct {
	cfg    config.MQTTConfig
	encode Encoder
	conn   mqtt.Client
	client client

	queue chan attendance.Event
	done  chan struct{}
	once  sync.Once

	mu        sync.RWMutex
	published map[string]uint64
	errors    uint64
	dropped   uint64
	connected bool
	closed    bool
}

// NewMQTTPublisher creates a publisher for cfg. Call Connect before publishing.
func NewMQTTPublisher(cfg config.MQTTConfig) (*MQTTPublisher, error) {
	encode, err := EncoderFor(cfg.Encoding)
	if err != nil {
		return nil, err
	}
	return &MQTTPublisher{
		cfg:       cfg,
		encode:    encode,
		queue:     make(chan attendance.Event, queueSize),
		done:      make(chan struct{}),
		published: make(map[string]uint64),
	}, nil
}

// Connect dials the broker and starts the send loop.
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", p.cfg.Broker))
	opts.SetClientID(p.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		p.setConnected(true)
		slog.Info("publish: mqtt connection established", "broker", p.cfg.Broker, "client_id", p.cfg.ClientID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		p.setConnected(false)
		slog.Warn("publish: mqtt connection lost, will auto-reconnect", "broker", p.cfg.Broker, "error", err)
	}

	p.conn = mqtt.NewClient(opts)
	slog.Info("publish: connecting to mqtt broker", "broker", p.cfg.Broker)

	token := p.conn.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return errors.New("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	p.setConnected(true)
	p.start(ctx, p.conn)
	return nil
}

func (p *MQTTPublisher) start(ctx context.Context, c client) {
	p.client = c
	go p.run(ctx)
}

// Publish queues an event. It never blocks; a full queue drops the event.
func (p *MQTTPublisher) Publish(e attendance.Event) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return
	}
	select {
	case p.queue <- e:
		p.mu.RUnlock()
	default:
		p.mu.RUnlock()
		p.mu.Lock()
		p.dropped++
		p.mu.Unlock()
		slog.Warn("publish: event dropped", "type", e.Type, "session", e.SessionID, "error", ErrQueueFull)
	}
}

func (p *MQTTPublisher) run(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-p.queue:
			if !ok {
				return
			}
			if err := p.send(e); err != nil {
				slog.Warn("publish: event not delivered", "type", e.Type, "session", e.SessionID, "error", err)
			}
		}
	}
}

func (p *MQTTPublisher) send(e attendance.Event) error {
	payload, err := p.encode(e)
	if err != nil {
		p.countError()
		return fmt.Errorf("failed to encode event: %w", err)
	}

	topic := Topic(p.cfg.TopicPrefix, e)
	token := p.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		p.countError()
		return errors.New("publish timeout")
	}
	if err := token.Error(); err != nil {
		p.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	p.mu.Lock()
	p.published[topic]++
	p.mu.Unlock()
	slog.Debug("publish: event published", "topic", topic, "size", len(payload))
	return nil
}

// Close stops accepting events, sends what is queued and disconnects.
func (p *MQTTPublisher) Close() error {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()
		if p.client != nil {
			<-p.done
		}
		if p.conn != nil && p.conn.IsConnected() {
			p.conn.Disconnect(250)
			slog.Info("publish: mqtt disconnected")
		}
		p.setConnected(false)
	})
	return nil
}

// Stats contains publisher counters.
type Stats struct {
	Connected bool
	Published map[string]uint64
	Errors    uint64
	Dropped   uint64
}

// Stats returns a copy of the publisher counters.
func (p *MQTTPublisher) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	published := make(map[string]uint64, len(p.published))
	for k, v := range p.published {
		published[k] = v
	}
	return Stats{
		Connected: p.connected,
		Published: published,
		Errors:    p.errors,
		Dropped:   p.dropped,
	}
}

func (p *MQTTPublisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

func (p *MQTTPublisher) countError() {
	p.mu.Lock()
	p.errors++
	p.mu.Unlock()
}

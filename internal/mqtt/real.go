package mqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for one
	// connection attempt.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish
	// acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// disconnectQuiesce is the time allowed for pending operations on
	// disconnect, in milliseconds.
	disconnectQuiesce = 1000

	// eventBufferSize bounds the session event channel. Inbound
	// messages beyond it are dropped with a warning rather than
	// blocking the paho receive path.
	eventBufferSize = 32
)

// Config holds broker connection settings for a RealSession.
type Config struct {
	BrokerURL string // e.g. "tcp://192.168.1.200:1883" or "ssl://..."
	ClientID  string
	Username  string
	Password  string
	TLS       *tls.Config // nil disables TLS

	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	PublishTimeout time.Duration

	// Reconnect backoff: base delay doubled per failed attempt up to
	// the cap, plus jitter. MaxAttempts 0 retries forever.
	BackoffBase time.Duration
	BackoffCap  time.Duration
	MaxAttempts uint32

	// Subscriptions are (re-)issued on every successful connect.
	Subscriptions []string

	// StatusTopic, if set, carries a retained online/offline payload
	// plus a Last Will for crash detection.
	StatusTopic string
}

func (c *Config) applyDefaults() {
	if c.KeepAlive == 0 {
		c.KeepAlive = defaultKeepAlive
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.PublishTimeout == 0 {
		c.PublishTimeout = defaultPublishTimeout
	}
	if c.BackoffBase == 0 {
		c.BackoffBase = time.Second
	}
	if c.BackoffCap == 0 {
		c.BackoffCap = 60 * time.Second
	}
}

// RealSession talks to an actual MQTT broker. It owns its reconnect
// loop (paho auto-reconnect is disabled) so that backoff timing and
// the reconnect attempt counter stay observable.
type RealSession struct {
	cfg    Config
	logger *slog.Logger
	client paho.Client
	events chan Event
	lost   chan error
	rng    *rand.Rand

	mu        sync.Mutex
	connected bool
	pending   *latestBuffer
}

// NewRealSession creates a session bound to the configured broker.
// No connection is attempted until Run.
func NewRealSession(cfg Config, logger *slog.Logger) *RealSession {
	cfg.applyDefaults()

	s := &RealSession{
		cfg:     cfg,
		logger:  logger,
		events:  make(chan Event, eventBufferSize),
		lost:    make(chan error, 1),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		pending: newLatestBuffer(),
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetKeepAlive(cfg.KeepAlive)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if cfg.TLS != nil {
		opts.SetTLSConfig(cfg.TLS)
	}
	if cfg.StatusTopic != "" {
		opts.SetWill(cfg.StatusTopic, offlinePayload(cfg.ClientID, "unexpected_disconnect"), 1, true)
	}

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		s.setConnected(false)
		select {
		case s.lost <- err:
		default:
		}
	})

	s.client = paho.NewClient(opts)
	return s
}

// Events returns the session event stream.
func (s *RealSession) Events() <-chan Event {
	return s.events
}

// Run drives the connect/reconnect loop until ctx is cancelled. Each
// failed attempt emits a reconnecting event with the attempt count and
// sleeps the backoff delay; backoff sleeps observe cancellation.
func (s *RealSession) Run(ctx context.Context) {
	attempt := uint32(0)

	for {
		if ctx.Err() != nil {
			return
		}

		if attempt == 0 {
			s.emit(ctx, ConnectionChanged{State: StateConnecting})
		}

		if err := s.connect(); err != nil {
			attempt++
			s.logger.Warn("broker connection failed",
				"broker", s.cfg.BrokerURL, "attempt", attempt, "error", err)
			s.emit(ctx, ConnectionChanged{State: StateReconnecting, Attempt: attempt})

			if s.cfg.MaxAttempts > 0 && attempt >= s.cfg.MaxAttempts {
				s.logger.Error("reconnect ceiling reached, giving up", "attempts", attempt)
				return
			}

			delay := withJitter(delayForAttempt(attempt-1, s.cfg.BackoffBase, s.cfg.BackoffCap), s.cfg.BackoffCap, s.rng)
			if !sleepCtx(ctx, delay) {
				return
			}
			continue
		}

		attempt = 0
		s.afterConnect(ctx)

		select {
		case <-ctx.Done():
			s.shutdown()
			return
		case err := <-s.lost:
			s.logger.Warn("broker connection lost", "error", err)
			s.emit(ctx, ConnectionChanged{State: StateDisconnected})
		}
	}
}

func (s *RealSession) connect() error {
	token := s.client.Connect()
	if !token.WaitTimeout(s.cfg.ConnectTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, s.cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return nil
}

// afterConnect re-issues subscriptions, announces the session online,
// replays queued publishes, and finally surfaces the Connected event.
func (s *RealSession) afterConnect(ctx context.Context) {
	s.setConnected(true)

	for _, topic := range s.cfg.Subscriptions {
		token := s.client.Subscribe(topic, 1, s.onMessage)
		if !token.WaitTimeout(s.cfg.PublishTimeout) || token.Error() != nil {
			s.logger.Error("subscribe failed", "topic", topic, "error", token.Error())
		}
	}

	if s.cfg.StatusTopic != "" {
		token := s.client.Publish(s.cfg.StatusTopic, 1, true, onlinePayload(s.cfg.ClientID))
		token.WaitTimeout(s.cfg.PublishTimeout)
	}

	s.mu.Lock()
	queued := s.pending.drainAll()
	s.mu.Unlock()
	for _, msg := range queued {
		token := s.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
		if !token.WaitTimeout(s.cfg.PublishTimeout) || token.Error() != nil {
			s.logger.Warn("queued publish failed", "topic", msg.topic, "error", token.Error())
		}
	}
	if len(queued) > 0 {
		s.logger.Info("replayed queued publishes", "count", len(queued))
	}

	s.logger.Info("connected to broker", "broker", s.cfg.BrokerURL)
	s.emit(ctx, ConnectionChanged{State: StateConnected})
}

// onMessage forwards an inbound broker message to the event stream.
// The paho receive path must not block, so a full event channel drops
// the message with a warning.
func (s *RealSession) onMessage(_ paho.Client, msg paho.Message) {
	ev := Message{Topic: msg.Topic(), Payload: msg.Payload(), Retained: msg.Retained()}
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("event buffer full, dropping message", "topic", msg.Topic())
	}
}

// Publish sends a payload to the broker. While disconnected, retained
// publishes queue latest-only for replay after reconnect; everything
// else fails fast with ErrNotConnected.
func (s *RealSession) Publish(topic string, payload []byte, retain bool) error {
	var qos byte
	if retain {
		qos = 1
	}

	s.mu.Lock()
	if !s.connected {
		if retain {
			s.pending.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: true})
			s.mu.Unlock()
			return nil
		}
		s.mu.Unlock()
		return ErrNotConnected
	}
	s.mu.Unlock()

	token := s.client.Publish(topic, qos, retain, payload)
	if !token.WaitTimeout(s.cfg.PublishTimeout) {
		return ErrPublishTimeout
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// shutdown announces a graceful offline status (distinct from the LWT
// crash payload) and disconnects.
func (s *RealSession) shutdown() {
	if s.cfg.StatusTopic != "" && s.client.IsConnected() {
		token := s.client.Publish(s.cfg.StatusTopic, 1, true, offlinePayload(s.cfg.ClientID, "graceful_shutdown"))
		token.WaitTimeout(s.cfg.PublishTimeout)
	}
	s.client.Disconnect(disconnectQuiesce)
	s.setConnected(false)
}

func (s *RealSession) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}

func (s *RealSession) emit(ctx context.Context, ev Event) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

// sleepCtx sleeps for d, returning false if ctx was cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func onlinePayload(clientID string) string {
	return fmt.Sprintf(`{"status":"online","client_id":"%s","timestamp":"%s"}`,
		clientID, time.Now().UTC().Format(time.RFC3339))
}

func offlinePayload(clientID, reason string) string {
	return fmt.Sprintf(`{"status":"offline","client_id":"%s","reason":"%s","timestamp":"%s"}`,
		clientID, reason, time.Now().UTC().Format(time.RFC3339))
}

package trigger

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/Carmen-Shannon/oxy-blend/common"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultSubscribeTimeout  = 5 * time.Second
	defaultDisconnectQuiesce = 250 // milliseconds
	maxQoS                   = 2
)

var (
	// ErrMQTTConnect is returned when the broker connection cannot be established.
	ErrMQTTConnect = errors.New("trigger: mqtt connection failed")

	// ErrMQTTSubscribe is returned when the trigger topic subscription fails.
	ErrMQTTSubscribe = errors.New("trigger: mqtt subscribe failed")
)

// MQTTConfig describes the broker and topic an MQTTSource listens on.
type MQTTConfig struct {
	// Broker is the broker URL, for example tcp://localhost:1883.
	Broker string
	// ClientID identifies this process to the broker.
	ClientID string
	// Topic is the subscription pattern; MQTT wildcards are allowed.
	Topic string
	// QoS is the maximum QoS for received messages (0-2).
	QoS byte
	// Username and Password are sent when Username is set.
	Username string
	Password string
	// ConnectTimeout bounds the initial connection; 0 uses 10s.
	ConnectTimeout time.Duration
}

// mqttSource is the implementation of the MQTTSource interface.
type mqttSource struct {
	mu *sync.Mutex

	cfg    MQTTConfig
	bus    Bus
	logger *slog.Logger

	newClient func(*pahomqtt.ClientOptions) pahomqtt.Client
	client    pahomqtt.Client
	received  atomic.Uint64
	rejected  atomic.Uint64
}

// MQTTSource publishes triggers received on an MQTT topic onto a Bus.
// Payloads are decoded with Parse; the topic is recorded as the trigger source.
// Subscriptions are restored by the client whenever it reconnects.
type MQTTSource interface {
	// Start connects to the broker and subscribes to the trigger topic.
	//
	// Returns:
	//   - error: ErrMQTTConnect or ErrMQTTSubscribe wrapping the cause
	Start() error

	// Close disconnects from the broker. Safe to call when not started.
	Close()

	// Connected reports whether the client currently holds a broker connection.
	//
	// Returns:
	//   - bool: true if connected
	Connected() bool

	// Received returns the number of messages accepted and published onto the bus.
	//
	// Returns:
	//   - uint64: the accepted message count
	Received() uint64

	// Rejected returns the number of messages whose payload could not be decoded.
	//
	// Returns:
	//   - uint64: the rejected message count
	Rejected() uint64
}

var _ MQTTSource = &mqttSource{}

// NewMQTTSource creates an MQTTSource for cfg that publishes onto b. Panics if b is nil.
//
// Parameters:
//   - cfg: the broker and topic settings
//   - b: the bus receiving decoded triggers
//   - logger: the logger for connection and payload messages; nil uses slog.Default()
//
// Returns:
//   - MQTTSource: the new, unconnected source
func NewMQTTSource(cfg MQTTConfig, b Bus, logger *slog.Logger) MQTTSource {
	if b == nil {
		panic("trigger: NewMQTTSource requires a non-nil Bus")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	cfg.QoS = min(cfg.QoS, maxQoS)
	// brokers disconnect the older of two clients sharing an id
	cfg.ClientID = common.Coalesce(cfg.ClientID, "oxyblend-"+uuid.NewString())
	return &mqttSource{
		mu:        &sync.Mutex{},
		cfg:       cfg,
		bus:       b,
		logger:    logger.With("component", "mqtt_trigger", "topic", cfg.Topic),
		newClient: pahomqtt.NewClient,
	}
}

// clientOptions builds the paho options for the source.
func (s *mqttSource) clientOptions() *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(s.cfg.Broker)
	opts.SetClientID(s.cfg.ClientID)
	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
		opts.SetPassword(s.cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(s.cfg.ConnectTimeout)

	// resubscribe on every (re)connect; a clean session drops subscriptions
	opts.SetOnConnectHandler(func(c pahomqtt.Client) {
		token := c.Subscribe(s.cfg.Topic, s.cfg.QoS, s.onMessage)
		if token.WaitTimeout(defaultSubscribeTimeout) && token.Error() == nil {
			s.logger.Info("mqtt trigger source subscribed")
			return
		}
		s.logger.Error("mqtt trigger subscribe failed", "error", token.Error())
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		s.logger.Warn("mqtt trigger source connection lost", "error", err)
	})
	return opts
}

func (s *mqttSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return nil
	}
	if s.cfg.Topic == "" {
		return fmt.Errorf("%w: topic is empty", ErrMQTTSubscribe)
	}

	client := s.newClient(s.clientOptions())
	token := client.Connect()
	if !token.WaitTimeout(s.cfg.ConnectTimeout) {
		// stops the connect attempt still running in the background
		client.Disconnect(0)
		return fmt.Errorf("%w: timeout after %v", ErrMQTTConnect, s.cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return fmt.Errorf("%w: %w", ErrMQTTConnect, err)
	}
	s.client = client
	s.logger.Info("mqtt trigger source connected", "broker", s.cfg.Broker)
	return nil
}

func (s *mqttSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return
	}
	s.client.Disconnect(defaultDisconnectQuiesce)
	s.client = nil
	s.logger.Info("mqtt trigger source closed")
}

func (s *mqttSource) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client != nil && s.client.IsConnected()
}

func (s *mqttSource) Received() uint64 { return s.received.Load() }

func (s *mqttSource) Rejected() uint64 { return s.rejected.Load() }

// onMessage adapts handleMessage to the paho callback and keeps a bad payload from
// taking down the client's delivery goroutine.
func (s *mqttSource) onMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("mqtt trigger handler panic recovered", "panic", r)
		}
	}()
	if err := s.handleMessage(msg.Topic(), msg.Payload()); err != nil {
		s.logger.Warn("mqtt trigger rejected", "message_topic", msg.Topic(), "error", err)
	}
}

// handleMessage decodes one payload and publishes the trigger.
func (s *mqttSource) handleMessage(topic string, payload []byte) error {
	t, err := Parse(payload)
	if err != nil {
		s.rejected.Add(1)
		return err
	}
	t.Source = "mqtt:" + topic
	s.received.Add(1)
	s.bus.Publish(t)
	return nil
}

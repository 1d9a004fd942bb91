// Package mqtt provides a transport that delivers sealed messages over
// an MQTT broker. Each address key gets an inbox topic
// "{prefix}/inbox/{key}"; published messaging keys are announced as
// retained messages on "{prefix}/keys/{address}".
//
// MQTT brokers deliver live traffic but keep no history, so the
// transport maintains a local bbolt archive of everything seen on
// watched inbox topics; FetchHistory replays the archive in arrival
// order. An address only accumulates history while some transport
// instance watches its inbox.
package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/roomwire/roomwire-go/core"
	"github.com/roomwire/roomwire-go/core/crypto"
	"github.com/roomwire/roomwire-go/transport"
)

// Compile-time interface check.
var _ transport.Transport = (*Transport)(nil)

const (
	// DefaultTopicPrefix is the default MQTT topic prefix.
	DefaultTopicPrefix = "roomwire"

	connectTimeout = 30 * time.Second
	publishTimeout = 10 * time.Second
)

// Config holds the configuration for an MQTT transport.
type Config struct {
	// Broker is the MQTT broker URL (e.g., "tcp://broker.example.com:1883").
	Broker string
	// Username for MQTT authentication. Leave empty if not required.
	Username string
	// Password for MQTT authentication. Leave empty if not required.
	Password string
	// UseTLS enables TLS for the MQTT connection.
	UseTLS bool
	// ClientID is the MQTT client identifier. If empty, a random one is generated.
	ClientID string
	// TopicPrefix is the MQTT topic prefix (default: "roomwire").
	TopicPrefix string
	// ArchivePath is the bbolt file recording message history for
	// watched addresses. Required.
	ArchivePath string
	// Watch lists the addresses whose inbox topics are subscribed on
	// connect. More can be added later with the Watch method.
	Watch []core.Address
	// Logger is the logger to use. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Transport implements transport.Transport over MQTT.
type Transport struct {
	cfg     Config
	client  paho.Client
	archive *archive
	dedupe  *deduper
	log     *slog.Logger

	mu        sync.RWMutex
	connected bool
	watched   map[core.AddressKey]bool
}

// New creates a new MQTT transport with the given configuration.
func New(cfg Config) *Transport {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Transport{
		cfg:     cfg,
		dedupe:  newDeduper(defaultDedupeWindow),
		log:     cfg.Logger.WithGroup("mqtt"),
		watched: make(map[core.AddressKey]bool),
	}
}

// Start opens the local archive, connects to the MQTT broker, and
// subscribes to the key registry and the watched inbox topics.
func (t *Transport) Start(ctx context.Context) error {
	if t.cfg.Broker == "" {
		return errors.New("broker URL is required")
	}
	if t.cfg.ArchivePath == "" {
		return errors.New("archive path is required")
	}

	arch, err := openArchive(t.cfg.ArchivePath)
	if err != nil {
		return err
	}
	t.archive = arch

	for _, addr := range t.cfg.Watch {
		key, err := addr.Key()
		if err != nil {
			arch.Close()
			return fmt.Errorf("watch %s: %w", addr, err)
		}
		t.watched[key] = true
	}

	clientID := t.cfg.ClientID
	if clientID == "" {
		clientID = "roomwire-" + randomString(16)
	}

	opts := paho.NewClientOptions().
		AddBroker(t.cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(2 * time.Minute).
		SetKeepAlive(60 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetCleanSession(true).
		SetOnConnectHandler(t.onConnected).
		SetConnectionLostHandler(t.onConnectionLost)

	if t.cfg.Username != "" {
		opts.SetUsername(t.cfg.Username)
	}
	if t.cfg.Password != "" {
		opts.SetPassword(t.cfg.Password)
	}
	if t.cfg.UseTLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tls.VersionTLS12,
		})
	}

	t.client = paho.NewClient(opts)

	token := t.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		arch.Close()
		return fmt.Errorf("%w: connection timeout", transport.ErrTransport)
	}
	if token.Error() != nil {
		arch.Close()
		return fmt.Errorf("%w: connecting to broker: %v", transport.ErrTransport, token.Error())
	}

	return nil
}

// Stop disconnects from the broker and closes the archive.
func (t *Transport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client != nil {
		t.client.Disconnect(1000)
		t.connected = false
	}
	if t.archive != nil {
		return t.archive.Close()
	}
	return nil
}

// IsConnected returns true if the transport is connected to the broker.
func (t *Transport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected && t.client != nil && t.client.IsConnected()
}

// Watch subscribes to an address's inbox topic so its history starts
// accumulating in the local archive.
func (t *Transport) Watch(addr core.Address) error {
	key, err := addr.Key()
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.watched[key] = true
	connected := t.connected
	t.mu.Unlock()

	if connected {
		t.subscribeInbox(key)
	}
	return nil
}

// RegisterKey announces an address's messaging public key as a
// retained message, so late subscribers still see it.
func (t *Transport) RegisterKey(ctx context.Context, addr core.Address, pub [crypto.KeySize]byte) error {
	if !t.IsConnected() {
		return fmt.Errorf("%w: not connected", transport.ErrTransport)
	}

	payload := hex.EncodeToString(pub[:])
	topic := t.keysTopic(addr)
	token := t.client.Publish(topic, 1, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: timeout publishing key", transport.ErrTransport)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: publish key: %v", transport.ErrTransport, err)
	}

	// The broker echoes the retained announcement back, but record it
	// now so the key is visible before the echo arrives.
	return t.archive.putKey(addr, pub)
}

// LookupKey returns the announced key for an address, or nil if no
// announcement has been seen.
func (t *Transport) LookupKey(ctx context.Context, addr core.Address) (*[crypto.KeySize]byte, error) {
	return t.archive.getKey(addr)
}

// Submit publishes one sealed blob to every recipient's inbox topic.
// All copies share one message ID.
func (t *Transport) Submit(ctx context.Context, sender core.Address, recipients []core.Address, content []byte) (string, error) {
	if !t.IsConnected() {
		return "", fmt.Errorf("%w: not connected", transport.ErrTransport)
	}

	checksum := crypto.Checksum(content)
	msg := wireMessage{
		ID:       newMessageID(),
		Sender:   sender.Normalize().String(),
		Content:  content,
		Checksum: hex.EncodeToString(checksum[:]),
	}

	seen := make(map[core.Address]bool, len(recipients))
	for _, r := range recipients {
		addr := r.Normalize()
		if seen[addr] {
			continue
		}
		seen[addr] = true

		key, err := addr.Key()
		if err != nil {
			return "", fmt.Errorf("%w: %v", transport.ErrTransport, err)
		}
		msg.Recipient = addr.String()
		payload, err := json.Marshal(msg)
		if err != nil {
			return "", fmt.Errorf("%w: encode message: %v", transport.ErrTransport, err)
		}

		token := t.client.Publish(t.inboxTopic(key), 1, false, payload)
		if !token.WaitTimeout(publishTimeout) {
			return "", fmt.Errorf("%w: timeout publishing to %s", transport.ErrTransport, addr)
		}
		if err := token.Error(); err != nil {
			return "", fmt.Errorf("%w: publish to %s: %v", transport.ErrTransport, addr, err)
		}
	}
	return msg.ID, nil
}

// FetchHistory replays the archived history for an address key in
// arrival order.
func (t *Transport) FetchHistory(ctx context.Context, key core.AddressKey) ([]transport.Metadata, error) {
	return t.archive.history(key)
}

func (t *Transport) inboxTopic(key core.AddressKey) string {
	return t.cfg.TopicPrefix + "/inbox/" + key.String()
}

func (t *Transport) keysTopic(addr core.Address) string {
	return t.cfg.TopicPrefix + "/keys/" + addr.Normalize().String()
}

func (t *Transport) subscribeInbox(key core.AddressKey) {
	topic := t.inboxTopic(key)
	t.client.Subscribe(topic, 1, t.handleInbox)
	t.log.Debug("subscribed to inbox", "topic", topic)
}

func (t *Transport) onConnected(_ paho.Client) {
	t.mu.Lock()
	t.connected = true
	keys := make([]core.AddressKey, 0, len(t.watched))
	for key := range t.watched {
		keys = append(keys, key)
	}
	t.mu.Unlock()

	t.client.Subscribe(t.cfg.TopicPrefix+"/keys/#", 1, t.handleKeyAnnouncement)
	for _, key := range keys {
		t.subscribeInbox(key)
	}
	t.log.Info("connected to MQTT broker", "broker", t.cfg.Broker)
}

func (t *Transport) onConnectionLost(_ paho.Client, err error) {
	t.mu.Lock()
	t.connected = false
	t.mu.Unlock()

	t.log.Error("MQTT connection lost", "error", err)
}

func (t *Transport) handleInbox(_ paho.Client, message paho.Message) {
	key, ok := t.keyFromInboxTopic(message.Topic())
	if !ok {
		t.log.Debug("message on unexpected topic", "topic", message.Topic())
		return
	}

	var msg wireMessage
	if err := json.Unmarshal(message.Payload(), &msg); err != nil {
		t.log.Debug("failed to decode inbox message", "error", err)
		return
	}
	meta, err := msg.toMetadata()
	if err != nil {
		t.log.Debug("malformed inbox message", "error", err)
		return
	}

	// QoS 1 brokers may redeliver; only the first copy is archived.
	if t.dedupe.hasSeen(key, meta.ID) {
		t.log.Debug("dropping redelivered message", "message", meta.ID)
		return
	}

	if err := t.archive.append(key, meta); err != nil {
		t.log.Error("failed to archive message", "error", err, "message", meta.ID)
	}
}

func (t *Transport) handleKeyAnnouncement(_ paho.Client, message paho.Message) {
	parts := strings.Split(message.Topic(), "/")
	addr, err := core.ParseAddress(parts[len(parts)-1])
	if err != nil {
		t.log.Debug("key announcement with bad address", "topic", message.Topic())
		return
	}

	raw, err := hex.DecodeString(string(message.Payload()))
	if err != nil || len(raw) != crypto.KeySize {
		t.log.Debug("malformed key announcement", "address", addr.String())
		return
	}
	var pub [crypto.KeySize]byte
	copy(pub[:], raw)

	if err := t.archive.putKey(addr, pub); err != nil {
		t.log.Error("failed to record key announcement", "error", err)
	}
}

func (t *Transport) keyFromInboxTopic(topic string) (core.AddressKey, bool) {
	var key core.AddressKey
	prefix := t.cfg.TopicPrefix + "/inbox/"
	if !strings.HasPrefix(topic, prefix) {
		return key, false
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(topic, prefix))
	if err != nil || len(raw) != core.AddressKeySize {
		return key, false
	}
	copy(key[:], raw)
	return key, true
}

func newMessageID() string {
	return uuid.NewString()
}

func randomString(n int) string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rand.IntN(len(alphabet))]
	}
	return string(b)
}

// wireMessage is the JSON payload published to inbox topics.
type wireMessage struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Content   []byte `json:"content"`
	Checksum  string `json:"checksum"`
}

func (m wireMessage) toMetadata() (transport.Metadata, error) {
	meta := transport.Metadata{
		ID:        m.ID,
		Sender:    core.Address(m.Sender),
		Recipient: core.Address(m.Recipient),
		Content:   m.Content,
	}
	raw, err := hex.DecodeString(m.Checksum)
	if err != nil || len(raw) != len(meta.Checksum) {
		return meta, fmt.Errorf("malformed checksum on message %s", m.ID)
	}
	copy(meta.Checksum[:], raw)
	return meta, nil
}

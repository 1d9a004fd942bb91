// Package relay provides a transport backed by a roomwire relay
// server's HTTP API (see the relay and cmd/roomwire-relay packages).
package relay

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/roomwire/roomwire-go/core"
	"github.com/roomwire/roomwire-go/core/crypto"
	"github.com/roomwire/roomwire-go/relay/model"
	"github.com/roomwire/roomwire-go/transport"
)

// Compile-time interface check.
var _ transport.Transport = (*Transport)(nil)

// Config holds the configuration for a relay transport.
type Config struct {
	// BaseURL is the relay server URL (e.g. "http://relay.example.com:8080").
	BaseURL string
	// HTTPClient is the client used for requests. If nil, a client
	// with a 30 second timeout is used.
	HTTPClient *http.Client
	// Logger is the logger to use. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Transport implements transport.Transport over the relay HTTP API.
type Transport struct {
	cfg    Config
	http   *http.Client
	log    *slog.Logger
	mu     sync.RWMutex
	online bool
}

// New creates a relay transport with the given configuration.
func New(cfg Config) *Transport {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Transport{
		cfg:  cfg,
		http: httpClient,
		log:  cfg.Logger.WithGroup("relay"),
	}
}

// Start pings the relay to verify it is reachable.
func (t *Transport) Start(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.cfg.BaseURL+"/ping", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", transport.ErrTransport, err)
	}
	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: ping: %v", transport.ErrTransport, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: ping returned status %d", transport.ErrTransport, resp.StatusCode)
	}

	t.mu.Lock()
	t.online = true
	t.mu.Unlock()
	t.log.Info("connected to relay", "url", t.cfg.BaseURL)
	return nil
}

// Stop marks the transport as offline. There is no connection to tear
// down; requests are stateless.
func (t *Transport) Stop() error {
	t.mu.Lock()
	t.online = false
	t.mu.Unlock()
	return nil
}

// IsConnected returns true after a successful Start.
func (t *Transport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.online
}

// RegisterKey publishes an address's messaging public key.
func (t *Transport) RegisterKey(ctx context.Context, addr core.Address, pub [crypto.KeySize]byte) error {
	body := model.KeyRecord{PublicKey: hex.EncodeToString(pub[:])}
	resp, err := t.post(ctx, "/keys/"+addr.Normalize().String(), body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%w: register key returned status %d", transport.ErrTransport, resp.StatusCode)
	}
	return nil
}

// LookupKey returns the published key for an address, or nil if the
// relay has none.
func (t *Transport) LookupKey(ctx context.Context, addr core.Address) (*[crypto.KeySize]byte, error) {
	resp, err := t.get(ctx, "/keys/"+addr.Normalize().String())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound:
		return nil, nil
	case http.StatusOK:
	default:
		return nil, fmt.Errorf("%w: key lookup returned status %d", transport.ErrTransport, resp.StatusCode)
	}

	var rec model.KeyRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("%w: decode key record: %v", transport.ErrTransport, err)
	}
	raw, err := hex.DecodeString(rec.PublicKey)
	if err != nil || len(raw) != crypto.KeySize {
		return nil, fmt.Errorf("%w: malformed key record for %s", transport.ErrTransport, addr)
	}
	var pub [crypto.KeySize]byte
	copy(pub[:], raw)
	return &pub, nil
}

// Submit delivers one sealed blob to every recipient's history.
func (t *Transport) Submit(ctx context.Context, sender core.Address, recipients []core.Address, content []byte) (string, error) {
	req := model.SubmitRequest{
		Sender:  sender.Normalize().String(),
		Content: content,
	}
	for _, r := range recipients {
		req.Recipients = append(req.Recipients, r.Normalize().String())
	}

	resp, err := t.post(ctx, "/messages", req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return "", fmt.Errorf("%w: sender %s", transport.ErrAuthentication, sender)
	default:
		return "", fmt.Errorf("%w: submit returned status %d", transport.ErrTransport, resp.StatusCode)
	}

	var sr model.SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("%w: decode submit response: %v", transport.ErrTransport, err)
	}
	return sr.ID, nil
}

// FetchHistory returns the ordered history bound to an address key.
func (t *Transport) FetchHistory(ctx context.Context, key core.AddressKey) ([]transport.Metadata, error) {
	resp, err := t.get(ctx, "/history/"+key.String())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: history returned status %d", transport.ErrTransport, resp.StatusCode)
	}

	var history []model.Message
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return nil, fmt.Errorf("%w: decode history: %v", transport.ErrTransport, err)
	}

	out := make([]transport.Metadata, 0, len(history))
	for _, msg := range history {
		meta := transport.Metadata{
			ID:        msg.ID,
			Sender:    core.Address(msg.Sender),
			Recipient: core.Address(msg.Recipient),
			Content:   msg.Content,
		}
		raw, err := hex.DecodeString(msg.Checksum)
		if err != nil || len(raw) != len(meta.Checksum) {
			return nil, fmt.Errorf("%w: malformed checksum on message %s", transport.ErrTransport, msg.ID)
		}
		copy(meta.Checksum[:], raw)
		out = append(out, meta)
	}
	return out, nil
}

func (t *Transport) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", transport.ErrTransport, err)
	}
	resp, err := t.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", transport.ErrTransport, err)
	}
	return resp, nil
}

func (t *Transport) post(ctx context.Context, path string, body any) (*http.Response, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", transport.ErrTransport, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.BaseURL+path, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", transport.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", transport.ErrTransport, err)
	}
	return resp, nil
}

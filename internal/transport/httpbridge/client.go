// Package httpbridge carries relay payloads between two ledger processes
// over HTTP. The client side is a transport.Sender that posts JSON
// envelopes; the server side is an http.Handler that feeds them into the
// local relay.
package httpbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/louisbranch/questbridge/internal/ledger/domain"
)

// DeliverPath is the route the bridge server listens on.
const DeliverPath = "/v1/bridge/deliver"

const defaultRequestTimeout = 10 * time.Second

// envelope is the JSON wire form of one relayed message.
type envelope struct {
	SourceDomainID uint64         `json:"source_domain_id"`
	Source         domain.Address `json:"source"`
	Payload        []byte         `json:"payload"`
}

// errorBody is the JSON error shape returned by the bridge server.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ClientConfig wires a bridge client toward one counterpart process.
type ClientConfig struct {
	// BaseURL is the counterpart's bridge server root, for example
	// "http://localhost:8091".
	BaseURL string
	// LocalDomainID is stamped on every envelope as the source domain.
	LocalDomainID uint64
	// TargetDomainID is the only domain this client can reach.
	TargetDomainID uint64
	// HTTPClient overrides the default client when set.
	HTTPClient *http.Client
}

// Client posts completion payloads to a counterpart bridge server.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
}

// NewClient creates a bridge client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("bridge base url is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
	}, nil
}

// Send posts one envelope to the counterpart. A non-2xx response is a send
// failure; callers treat it like any other transport outage and roll back.
func (c *Client) Send(ctx context.Context, origin domain.Address, targetDomainID uint64, payload []byte) error {
	if targetDomainID != c.cfg.TargetDomainID {
		return fmt.Errorf("bridge client serves domain %d, not %d", c.cfg.TargetDomainID, targetDomainID)
	}

	body, err := json.Marshal(envelope{
		SourceDomainID: c.cfg.LocalDomainID,
		Source:         origin,
		Payload:        payload,
	})
	if err != nil {
		return fmt.Errorf("marshal bridge envelope: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + DeliverPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build bridge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deliver to domain %d: %w", targetDomainID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var remote errorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(raw, &remote) == nil && remote.Code != "" {
		return fmt.Errorf("bridge rejected delivery: %s: %s", remote.Code, remote.Message)
	}
	return fmt.Errorf("bridge rejected delivery: status %d", resp.StatusCode)
}

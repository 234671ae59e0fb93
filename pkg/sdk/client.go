// Package sdk is the Go client for the TrustMesh gateway. Agents embed it to
// register, stake collateral, and run escrow deals; the CLI is built on it.
//
// Quick start:
//
//	client := sdk.NewClient(sdk.Config{
//	    GatewayURL: "http://localhost:8080",
//	    AgentID:    "agent-7f3a",
//	})
//
//	deal, err := client.CreateDeal(ctx, "agent-b21c", 50, "translate corpus", 0)
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Config holds the SDK configuration.
type Config struct {
	// GatewayURL is the TrustMesh gateway endpoint (required).
	GatewayURL string

	// AgentID is this agent's verified identity, forwarded as X-Agent-ID.
	AgentID string

	// APIKey authenticates requests in deployments that front the gateway
	// with an identity layer.
	APIKey string

	// Timeout for gateway calls (default 30s).
	Timeout time.Duration
}

// Client is the TrustMesh gateway client.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a new SDK client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("sdk: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.GatewayURL+path, reader)
	if err != nil {
		return fmt.Errorf("sdk: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.AgentID != "" {
		req.Header.Set("X-Agent-ID", c.config.AgentID)
	}
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sdk: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("sdk: read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil || apiErr.Code == "" {
			apiErr.Code = "HTTP_ERROR"
			apiErr.Message = fmt.Sprintf("%s (status %d)", string(data), resp.StatusCode)
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("sdk: decode response: %w", err)
		}
	}
	return nil
}

// Register creates this agent's profile under the given display name.
func (c *Client) Register(ctx context.Context, name string) (*Agent, error) {
	var a Agent
	err := c.do(ctx, "POST", "/api/agents", map[string]string{"name": name}, &a)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Agent fetches an agent profile with its current reputation.
func (c *Client) Agent(ctx context.Context, identity string) (*Agent, error) {
	var a Agent
	if err := c.do(ctx, "GET", "/api/agents/"+identity, nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Agents lists all agents in registration order.
func (c *Client) Agents(ctx context.Context) ([]Agent, error) {
	var out []Agent
	if err := c.do(ctx, "GET", "/api/agents", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Reputation returns the bounded [0,1000] score; unregistered identities
// score 0.
func (c *Client) Reputation(ctx context.Context, identity string) (int, error) {
	var out struct {
		Reputation int `json:"reputation"`
	}
	if err := c.do(ctx, "GET", "/api/agents/"+identity+"/reputation", nil, &out); err != nil {
		return 0, err
	}
	return out.Reputation, nil
}

// Stake locks amount units of collateral.
func (c *Client) Stake(ctx context.Context, amount uint64) (*Agent, error) {
	var a Agent
	if err := c.do(ctx, "POST", "/api/stake", map[string]uint64{"amount": amount}, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// RequestUnstake starts (or restarts) the unstake cooldown.
func (c *Client) RequestUnstake(ctx context.Context) (*Agent, error) {
	var a Agent
	if err := c.do(ctx, "POST", "/api/unstake/request", struct{}{}, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Unstake withdraws amount units of collateral after the cooldown.
func (c *Client) Unstake(ctx context.Context, amount uint64) (*Agent, error) {
	var a Agent
	if err := c.do(ctx, "POST", "/api/unstake", map[string]uint64{"amount": amount}, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateDeal locks amount into escrow against the counterparty and returns
// the new deal. A zero expiry selects the protocol default.
func (c *Client) CreateDeal(ctx context.Context, counterparty string, amount uint64, description string, expiry time.Duration) (*Deal, error) {
	req := map[string]interface{}{
		"counterparty":   counterparty,
		"amount":         amount,
		"description":    description,
		"expiry_seconds": int64(expiry / time.Second),
	}
	var d Deal
	if err := c.do(ctx, "POST", "/api/deals", req, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Deal fetches a deal by id.
func (c *Client) Deal(ctx context.Context, id uint64) (*Deal, error) {
	var d Deal
	if err := c.do(ctx, "GET", fmt.Sprintf("/api/deals/%d", id), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// ConfirmDeal records this agent's confirmation; when both parties have
// confirmed, the deal completes.
func (c *Client) ConfirmDeal(ctx context.Context, id uint64) (*Deal, error) {
	var d Deal
	if err := c.do(ctx, "POST", fmt.Sprintf("/api/deals/%d/confirm", id), struct{}{}, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// DisputeDeal terminates the deal as disputed; the non-disputing party is
// slashed.
func (c *Client) DisputeDeal(ctx context.Context, id uint64) (*Deal, error) {
	var d Deal
	if err := c.do(ctx, "POST", fmt.Sprintf("/api/deals/%d/dispute", id), struct{}{}, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// CancelExpiredDeal cancels an expired deal; callable by any identity.
func (c *Client) CancelExpiredDeal(ctx context.Context, id uint64) (*Deal, error) {
	var d Deal
	if err := c.do(ctx, "POST", fmt.Sprintf("/api/deals/%d/cancel", id), struct{}{}, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Leaderboard returns all agents ranked by reputation.
func (c *Client) Leaderboard(ctx context.Context) ([]Agent, error) {
	var out []Agent
	if err := c.do(ctx, "GET", "/api/leaderboard", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats returns the engine-wide summary.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	if err := c.do(ctx, "GET", "/api/stats", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Fund credits free vault balance through the dev faucet. Available only on
// non-production gateways.
func (c *Client) Fund(ctx context.Context, identity string, amount uint64) error {
	req := map[string]interface{}{"identity": identity, "amount": amount}
	return c.do(ctx, "POST", "/api/vault/credit", req, nil)
}

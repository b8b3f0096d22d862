package apiclient

import (
	"fmt"
	"net/url"

	"github.com/marmos91/tcprelay/pkg/adapter"
)

// Health is the liveness probe payload.
type Health struct {
	Status  string `json:"-"`
	Service string `json:"service"`
}

// Readiness is the readiness probe payload.
type Readiness struct {
	ListenAddress     string `json:"listen_address"`
	ActiveConnections int32  `json:"active_connections"`
	Workers           int    `json:"workers"`
}

// Health calls GET /health.
func (c *Client) Health() (*Health, error) {
	var h Health
	env, err := c.get("/health", &h)
	if err != nil {
		return nil, err
	}
	h.Status = env.Status
	return &h, nil
}

// Ready calls GET /health/ready. A relay that is not listening yet yields
// an APIError for which IsUnavailable is true.
func (c *Client) Ready() (*Readiness, error) {
	var r Readiness
	if _, err := c.get("/health/ready", &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Connections lists live connections. A non-empty ip keeps only peers with
// that observed address.
func (c *Client) Connections(ip string) ([]adapter.ConnectionInfo, error) {
	path := "/api/v1/connections"
	if ip != "" {
		path += "?ip=" + url.QueryEscape(ip)
	}

	var conns []adapter.ConnectionInfo
	if _, err := c.get(path, &conns); err != nil {
		return nil, err
	}
	return conns, nil
}

// Connection fetches one connection by table id.
func (c *Client) Connection(id int) (*adapter.ConnectionInfo, error) {
	var conn adapter.ConnectionInfo
	if _, err := c.get(fmt.Sprintf("/api/v1/connections/%d", id), &conn); err != nil {
		return nil, err
	}
	return &conn, nil
}

// Stats fetches the relay counters.
func (c *Client) Stats() (*adapter.Stats, error) {
	var s adapter.Stats
	if _, err := c.get("/api/v1/stats", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

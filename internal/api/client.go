// internal/api/client.go
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/OCAP2/helmsync/pkg/streaming"
)

// Client talks to the authority server's HTTP surface.
type Client struct {
	baseURL    string
	userID     string
	httpClient *http.Client
}

// Health is the healthcheck body.
type Health struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
}

// New creates a new API client. userID is sent in the identity header when set.
func New(baseURL, userID string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userID:     userID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthcheck checks if the server is reachable.
func (c *Client) Healthcheck() (Health, error) {
	var h Health
	resp, err := c.get("/healthcheck")
	if err != nil {
		return h, fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return h, fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return h, fmt.Errorf("decode healthcheck: %w", err)
	}
	return h, nil
}

// Snapshot fetches the full vessel state of a space.
func (c *Client) Snapshot(space string) (streaming.SimulationUpdate, error) {
	var snap streaming.SimulationUpdate
	body, err := c.snapshotBody(space)
	if err != nil {
		return snap, err
	}
	defer body.Close()

	if err := json.NewDecoder(body).Decode(&snap); err != nil {
		return snap, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// Export writes the snapshot of a space to filePath as gzipped JSON.
func (c *Client) Export(space, filePath string) (int64, error) {
	body, err := c.snapshotBody(space)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	f, err := os.Create(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	n, err := io.Copy(gz, body)
	if err != nil {
		return n, fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := gz.Close(); err != nil {
		return n, fmt.Errorf("failed to finish gzip stream: %w", err)
	}
	return n, f.Close()
}

func (c *Client) snapshotBody(space string) (io.ReadCloser, error) {
	resp, err := c.get("/api/v1/spaces/" + url.PathEscape(space) + "/snapshot")
	if err != nil {
		return nil, fmt.Errorf("snapshot request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("snapshot returned status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func (c *Client) get(path string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.userID != "" {
		req.Header.Set("X-User-Id", c.userID)
	}
	return c.httpClient.Do(req)
}

package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/stuntlytics/stuntlytics/internal/config"
)

// Searcher issues one aggregation/search request and returns the raw response
// body. Implementations must honor ctx cancellation; callers own closing the
// returned reader.
type Searcher interface {
	Search(ctx context.Context, index string, body map[string]any) (io.ReadCloser, error)
}

// Client wraps the Elasticsearch client.
type Client struct {
	esClient *es.Client
	config   *config.ElasticsearchConfig
}

// NewClient creates a new Elasticsearch client and verifies the connection.
func NewClient(cfg *config.ElasticsearchConfig) (*Client, error) {
	addresses := []string{cfg.URL}
	if !strings.HasPrefix(cfg.URL, "http://") && !strings.HasPrefix(cfg.URL, "https://") {
		addresses = []string{"http://" + cfg.URL}
	}

	clientConfig := es.Config{
		Addresses: addresses,
	}
	if cfg.Username != "" {
		clientConfig.Username = cfg.Username
		clientConfig.Password = cfg.Password
	}

	esClient, err := es.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	client := &Client{
		esClient: esClient,
		config:   cfg,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping elasticsearch: %w", err)
	}

	return client, nil
}

// Ping verifies the Elasticsearch connection.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.esClient.Ping(c.esClient.Ping.WithContext(ctx))
	if err != nil {
		return &ConnError{Endpoint: c.config.URL, Op: "ping", Err: err}
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return &ConnError{
			Endpoint: c.config.URL,
			Op:       "ping",
			Err:      fmt.Errorf("status %d: %s", res.StatusCode, string(body)),
		}
	}

	return nil
}

// Info returns the Elasticsearch server version string.
func (c *Client) Info(ctx context.Context) (string, error) {
	res, err := c.esClient.Info(c.esClient.Info.WithContext(ctx))
	if err != nil {
		return "", &ConnError{Endpoint: c.config.URL, Op: "info", Err: err}
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return "", &ConnError{
			Endpoint: c.config.URL,
			Op:       "info",
			Err:      fmt.Errorf("status %d: %s", res.StatusCode, string(body)),
		}
	}

	var info struct {
		Version struct {
			Number string `json:"number"`
		} `json:"version"`
	}
	if err := json.NewDecoder(res.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("parse info response: %w", err)
	}
	return info.Version.Number, nil
}

// Search executes one search/aggregation request against the given index.
// Attempt-once: there is no retry on transient failure.
func (c *Client) Search(ctx context.Context, index string, body map[string]any) (io.ReadCloser, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	res, err := c.esClient.Search(
		c.esClient.Search.WithContext(ctx),
		c.esClient.Search.WithIndex(index),
		c.esClient.Search.WithBody(&buf),
		c.esClient.Search.WithTimeout(c.config.Timeout),
	)
	if err != nil {
		return nil, &ConnError{Endpoint: c.config.URL, Op: "search " + index, Err: err}
	}

	if res.IsError() {
		defer func() {
			_ = res.Body.Close()
		}()
		raw, _ := io.ReadAll(res.Body)
		return nil, &ConnError{
			Endpoint: c.config.URL,
			Op:       "search " + index,
			Err:      fmt.Errorf("status %d: %s", res.StatusCode, string(raw)),
		}
	}

	return res.Body, nil
}

// HealthCheck checks Elasticsearch cluster health.
func (c *Client) HealthCheck(ctx context.Context) error {
	res, err := c.esClient.Cluster.Health(
		c.esClient.Cluster.Health.WithContext(ctx),
	)
	if err != nil {
		return &ConnError{Endpoint: c.config.URL, Op: "cluster health", Err: err}
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return &ConnError{
			Endpoint: c.config.URL,
			Op:       "cluster health",
			Err:      fmt.Errorf("status %d: %s", res.StatusCode, string(body)),
		}
	}

	return nil
}

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"example.com/retailpos/terminal/config"
	"example.com/retailpos/terminal/internal/models"

	"github.com/pkg/errors"
)

// Client is a typed wrapper around the store backend's REST API
type Client struct {
	baseURL    string
	healthPath string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a backend API client
func NewClient(cfg config.BackendConfig) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		healthPath: cfg.HealthPath,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// CreateSale submits a translated sale payload and returns the canonical
// sale the backend created
func (c *Client) CreateSale(ctx context.Context, req *models.SaleCreateRequest) (*models.ServerSale, error) {
	var sale models.ServerSale
	if err := c.do(ctx, http.MethodPost, "/sales", nil, req, &sale); err != nil {
		return nil, err
	}
	return &sale, nil
}

// FetchProductsByIDs batch-fetches the current state of the given products
func (c *Client) FetchProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = strconv.FormatInt(id, 10)
	}
	query := url.Values{"ids": {strings.Join(strIDs, ",")}}

	var products []models.Product
	if err := c.do(ctx, http.MethodGet, "/products", query, nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// FetchProducts fetches the full product catalog
func (c *Client) FetchProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := c.do(ctx, http.MethodGet, "/products", nil, nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// FetchClients fetches the full client list
func (c *Client) FetchClients(ctx context.Context) ([]models.Client, error) {
	var clients []models.Client
	if err := c.do(ctx, http.MethodGet, "/clients", nil, nil, &clients); err != nil {
		return nil, err
	}
	return clients, nil
}

// CheckHealth probes the backend's health endpoint
func (c *Client) CheckHealth(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, c.healthPath, nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to marshal request body")
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "request to %s failed", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.Errorf("backend returned %d for %s %s: %s",
			resp.StatusCode, method, path, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, fmt.Sprintf("failed to decode response from %s", path))
	}
	return nil
}

package sap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrNotFound = errors.New("record not found")
)

const (
	// OData entity sets exposed by the plant master-data service.
	TelephoneEntitySet = "TELEPHONEADDRSet"
	PostalEntitySet    = "PLANTPOSTALADDRSet"

	maxResponseSizeBytes = 2 << 20
)

type Config struct {
	BaseURL  string        `envconfig:"BASE_URL" split_words:"true" required:"true"`
	Username string        `envconfig:"USERNAME" split_words:"true" required:"true"`
	Password string        `envconfig:"PASSWORD" split_words:"true" required:"true"`
	Client   string        `envconfig:"CLIENT" split_words:"true"`
	Timeout  time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
}

// Option customizes the Client.
type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// Record is one OData entity, keyed by backend field name.
type Record map[string]any

// Client talks OData v2 to the plant master-data backend: basic auth,
// sap-client query part, CSRF token handshake for writes.
type Client struct {
	baseURL    string
	username   string
	password   string
	sapClient  string
	httpClient *http.Client
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("sap base url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid sap base url: %w", err)
	}
	if strings.TrimSpace(cfg.Username) == "" || strings.TrimSpace(cfg.Password) == "" {
		return nil, errors.New("sap username and password are required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		baseURL:   baseURL,
		username:  strings.TrimSpace(cfg.Username),
		password:  cfg.Password,
		sapClient: strings.TrimSpace(cfg.Client),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c, nil
}

// ListAddresses fetches every record of an entity set, unwrapping the OData
// v2 {"d":{"results":[...]}} envelope.
func (c *Client) ListAddresses(ctx context.Context, entitySet string) ([]Record, error) {
	raw, _, err := c.do(ctx, http.MethodGet, c.collectionURL(entitySet), nil, nil)
	if err != nil {
		return nil, err
	}

	var body struct {
		D struct {
			Results []Record `json:"results"`
		} `json:"d"`
		Value []Record `json:"value"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode %s list: %w", entitySet, err)
	}
	if body.D.Results != nil {
		return body.D.Results, nil
	}
	return body.Value, nil
}

// GetAddressByPlant fetches one record by its PLANT key. Returns ErrNotFound
// when the backend answers 404.
func (c *Client) GetAddressByPlant(ctx context.Context, entitySet, plant string) (Record, error) {
	if strings.TrimSpace(plant) == "" {
		return nil, errors.New("plant is required")
	}

	raw, status, err := c.do(ctx, http.MethodGet, c.keyURL(entitySet, plant), nil, nil)
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s plant=%s", ErrNotFound, entitySet, plant)
	}
	if err != nil {
		return nil, err
	}

	var body struct {
		D Record `json:"d"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode %s record: %w", entitySet, err)
	}
	if body.D != nil {
		return body.D, nil
	}

	var flat Record
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("decode %s record: %w", entitySet, err)
	}
	return flat, nil
}

// UpsertAddress creates or updates the record identified by its PLANT field.
// Empty-valued fields are stripped; an existing record is PATCHed with
// If-Match: *, a new one is POSTed to the entity set.
func (c *Client) UpsertAddress(ctx context.Context, entitySet string, fields map[string]string) (Record, error) {
	clean := make(map[string]string, len(fields))
	for k, v := range fields {
		if strings.TrimSpace(v) != "" {
			clean[k] = v
		}
	}

	plant := clean["PLANT"]
	if plant == "" {
		return nil, errors.New("PLANT must be provided to identify the record")
	}

	exists := true
	if _, err := c.GetAddressByPlant(ctx, entitySet, plant); err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		exists = false
	}

	token, err := c.fetchCSRFToken(ctx, entitySet)
	if err != nil {
		return nil, err
	}
	writeHeaders := map[string]string{
		"X-CSRF-Token":     token,
		"X-Requested-With": "XMLHttpRequest",
		"If-Match":         "*",
	}

	payload, err := json.Marshal(clean)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", entitySet, err)
	}

	if exists {
		log.Info().Str("entity_set", entitySet).Str("plant", plant).Msg("updating address record")
		if _, _, err := c.do(ctx, http.MethodPatch, c.keyURL(entitySet, plant), payload, writeHeaders); err != nil {
			return nil, fmt.Errorf("update %s plant=%s: %w", entitySet, plant, err)
		}
		return Record{"PLANT": plant, "action": "updated"}, nil
	}

	log.Info().Str("entity_set", entitySet).Str("plant", plant).Msg("creating address record")
	raw, _, err := c.do(ctx, http.MethodPost, c.collectionURL(entitySet), payload, writeHeaders)
	if err != nil {
		return nil, fmt.Errorf("create %s plant=%s: %w", entitySet, plant, err)
	}

	created := Record{"PLANT": plant, "action": "created"}
	if len(raw) > 0 {
		var body struct {
			D Record `json:"d"`
		}
		if err := json.Unmarshal(raw, &body); err == nil && body.D != nil {
			created = body.D
		}
	}
	return created, nil
}

// fetchCSRFToken performs the X-CSRF-Token: Fetch handshake the backend
// requires before any write.
func (c *Client) fetchCSRFToken(ctx context.Context, entitySet string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.collectionURL(entitySet), nil)
	if err != nil {
		return "", fmt.Errorf("build csrf request: %w", err)
	}
	c.decorate(req, map[string]string{
		"X-CSRF-Token":     "Fetch",
		"X-Requested-With": "XMLHttpRequest",
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch csrf token: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSizeBytes))

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("csrf fetch status=%d", resp.StatusCode)
	}
	token := resp.Header.Get("X-CSRF-Token")
	if token == "" {
		return "", errors.New("backend returned no csrf token")
	}
	return token, nil
}

func (c *Client) do(ctx context.Context, method, rawURL string, body []byte, headers map[string]string) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("build %s request: %w", method, err)
	}
	c.decorate(req, headers)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("execute %s %s: %w", method, rawURL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, resp.StatusCode, fmt.Errorf("backend status=%d body=%s", resp.StatusCode, string(raw))
	}
	return raw, resp.StatusCode, nil
}

func (c *Client) decorate(req *http.Request, headers map[string]string) {
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
}

func (c *Client) collectionURL(entitySet string) string {
	return c.withQuery(c.baseURL + "/" + entitySet)
}

func (c *Client) keyURL(entitySet, plant string) string {
	return c.withQuery(fmt.Sprintf("%s/%s(PLANT='%s')", c.baseURL, entitySet, url.QueryEscape(plant)))
}

// withQuery appends sap-client and $format=json consistently.
func (c *Client) withQuery(base string) string {
	parts := make([]string, 0, 2)
	if c.sapClient != "" {
		parts = append(parts, "sap-client="+c.sapClient)
	}
	parts = append(parts, "$format=json")
	return base + "?" + strings.Join(parts, "&")
}

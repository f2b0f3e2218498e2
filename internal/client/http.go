package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/alfredjeanlab/airpuck/internal/model"
)

// HTTPClient implements RecordsAPI against the service's HTTP/JSON REST API.
type HTTPClient struct {
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(h *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithRateLimit caps outgoing requests at rps per second. Callers block
// until a token is available or their context ends. rps <= 0 disables it.
func WithRateLimit(rps float64) HTTPOption {
	return func(c *HTTPClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// NewHTTPClient creates a client that sends token as a Bearer credential on
// every request.
func NewHTTPClient(token string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		token:      token,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// fieldsBody is the request body of create, update and replace calls.
type fieldsBody struct {
	Fields model.Fields `json:"fields"`
}

func (c *HTTPClient) ListRecords(ctx context.Context, endpoint string, opts *ListOptions) ([]*model.Record, error) {
	target := endpoint
	if opts != nil && opts.MaxRecords > 0 {
		target += "?maxRecords=" + strconv.Itoa(opts.MaxRecords)
	}
	var resp ListRecordsResponse
	if err := c.doJSON(ctx, http.MethodGet, target, nil, &resp); err != nil {
		return nil, err
	}
	records := make([]*model.Record, 0, len(resp.Records))
	for _, r := range resp.Records {
		if r != nil {
			records = append(records, r)
		}
	}
	return records, nil
}

func (c *HTTPClient) GetRecord(ctx context.Context, endpoint, id string) (*model.Record, error) {
	var rec model.Record
	if err := c.doJSON(ctx, http.MethodGet, recordURL(endpoint, id), nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *HTTPClient) CreateRecord(ctx context.Context, endpoint string, fields model.Fields) (*model.Record, error) {
	var rec model.Record
	if err := c.doJSON(ctx, http.MethodPost, endpoint, fieldsBody{Fields: fields}, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *HTTPClient) UpdateRecord(ctx context.Context, endpoint, id string, fields model.Fields) (*model.Record, error) {
	var rec model.Record
	if err := c.doJSON(ctx, http.MethodPatch, recordURL(endpoint, id), fieldsBody{Fields: fields}, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *HTTPClient) ReplaceRecord(ctx context.Context, endpoint, id string, fields model.Fields) (*model.Record, error) {
	var rec model.Record
	if err := c.doJSON(ctx, http.MethodPut, recordURL(endpoint, id), fieldsBody{Fields: fields}, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *HTTPClient) DeleteRecord(ctx context.Context, endpoint, id string) error {
	return c.doJSON(ctx, http.MethodDelete, recordURL(endpoint, id), nil, nil)
}

// --- internal helpers ---

// APIError is a non-200 response from the service.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	switch {
	case e.Type != "" && e.Message != "":
		return fmt.Sprintf("HTTP %d: %s: %s", e.StatusCode, e.Type, e.Message)
	case e.Type != "":
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Type)
	default:
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
}

// decodeAPIError reads the service's error body, which is either
// {"error":"TYPE"} or {"error":{"type":"TYPE","message":"..."}}.
func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &envelope) != nil || len(envelope.Error) == 0 {
		apiErr.Message = string(bytes.TrimSpace(body))
		return apiErr
	}
	var asString string
	if json.Unmarshal(envelope.Error, &asString) == nil {
		apiErr.Type = asString
		return apiErr
	}
	var detail struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if json.Unmarshal(envelope.Error, &detail) == nil {
		apiErr.Type = detail.Type
		apiErr.Message = detail.Message
		return apiErr
	}
	apiErr.Message = string(envelope.Error)
	return apiErr
}

// doJSON performs an HTTP request with an optional JSON body and decodes the
// JSON response into result. Only status 200 counts as success. If result is
// nil the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, method, target string, body any, result any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp.StatusCode, respBody)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}

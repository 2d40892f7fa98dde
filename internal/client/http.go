package client

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

	"github.com/alfredjeanlab/evreg/internal/catalog"
	"github.com/alfredjeanlab/evreg/internal/model"
	"github.com/alfredjeanlab/evreg/internal/registration"
	"github.com/alfredjeanlab/evreg/internal/rpc"
)

// HTTPClient implements Client over the HTTP/JSON API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a client targeting the given base URL
// (e.g. "http://localhost:8080").
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

func (c *HTTPClient) ListEvents(ctx context.Context, req rpc.ListEventsRequest) (*catalog.EventPage, error) {
	q := url.Values{}
	for k, v := range map[string]string{
		"category":  req.Category,
		"search":    req.Search,
		"status":    req.Status,
		"nextToken": req.NextToken,
	} {
		if v != "" {
			q.Set(k, v)
		}
	}
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}
	path := "/v1/events"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var page catalog.EventPage
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *HTTPClient) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	var resp struct {
		Event *model.Event `json:"event"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/events/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Event, nil
}

func (c *HTTPClient) Register(ctx context.Context, req registration.Request) (*registration.Result, error) {
	body := map[string]any{
		"attendeeEmail": req.AttendeeEmail,
		"attendeeName":  req.AttendeeName,
	}
	if req.GroupSize != 0 {
		body["groupSize"] = req.GroupSize
	}
	var res registration.Result
	path := "/v1/events/" + url.PathEscape(req.EventID) + "/registrations"
	if err := c.doJSON(ctx, http.MethodPost, path, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) ListRegistrations(ctx context.Context, eventID string) ([]*model.Registration, error) {
	var list registrationList
	path := "/v1/events/" + url.PathEscape(eventID) + "/registrations"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list.Registrations, nil
}

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// Stream opens the server-sent-events stream filtered to topics and returns
// the response body. The caller closes it.
func (c *HTTPClient) Stream(ctx context.Context, topics []string) (io.ReadCloser, error) {
	path := "/v1/stream"
	if len(topics) > 0 {
		path += "?topics=" + url.QueryEscape(strings.Join(topics, ","))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		return nil, decodeAPIError(resp.StatusCode, data)
	}
	return resp.Body, nil
}

// doJSON performs an HTTP request with optional JSON body and decodes the
// JSON response into result.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
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
	if resp.StatusCode >= 400 {
		return decodeAPIError(resp.StatusCode, respBody)
	}
	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func decodeAPIError(status int, body []byte) *APIError {
	var envelope struct {
		Error struct {
			Code      model.Code `json:"code"`
			Message   string     `json:"message"`
			Ambiguous bool       `json:"ambiguous"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error.Code != "" {
		return &APIError{
			StatusCode: status,
			Code:       envelope.Error.Code,
			Message:    envelope.Error.Message,
			Ambiguous:  envelope.Error.Ambiguous,
		}
	}
	return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
}

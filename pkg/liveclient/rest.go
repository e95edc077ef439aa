package liveclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrAlreadyDeleted is returned by Delete when the server reports the
// notification does not exist. Callers treat it as success.
var ErrAlreadyDeleted = errors.New("liveclient: notification already deleted")

const defaultRESTTimeout = 15 * time.Second

// RESTClient calls the notification endpoints of the Savora API.
type RESTClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// RESTOption customises a RESTClient.
type RESTOption func(*RESTClient)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(client *http.Client) RESTOption {
	return func(c *RESTClient) {
		if client != nil {
			c.http = client
		}
	}
}

// NewRESTClient constructs a client for the given API base URL, e.g.
// https://host/api.
func NewRESTClient(baseURL, token string, opts ...RESTOption) (*RESTClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("liveclient: base url is required")
	}

	c := &RESTClient{
		baseURL: baseURL,
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: defaultRESTTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetToken swaps the bearer credential used for subsequent calls.
func (c *RESTClient) SetToken(token string) {
	c.token = strings.TrimSpace(token)
}

// ListOptions filter a notification page request.
type ListOptions struct {
	Page     int
	PageSize int
	Type     string
	Unread   *bool
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Meta *struct {
		Page    int  `json:"page"`
		PerPage int  `json:"per_page"`
		HasMore bool `json:"has_more"`
	} `json:"meta"`
}

// List fetches one page of notifications.
func (c *RESTClient) List(ctx context.Context, opts ListOptions) ([]Notification, bool, error) {
	query := url.Values{}
	if opts.Page > 0 {
		query.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PageSize > 0 {
		query.Set("page_size", strconv.Itoa(opts.PageSize))
	}
	if t := strings.TrimSpace(opts.Type); t != "" {
		query.Set("type", t)
	}
	if opts.Unread != nil {
		query.Set("unread", strconv.FormatBool(*opts.Unread))
	}

	endpoint := c.baseURL + "/notifications"
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	env, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, err
	}

	var records []Notification
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &records); err != nil {
			return nil, false, fmt.Errorf("liveclient: decode notifications: %w", err)
		}
	}

	hasMore := env.Meta != nil && env.Meta.HasMore
	return records, hasMore, nil
}

// UnreadCount fetches the server-side unread counter.
func (c *RESTClient) UnreadCount(ctx context.Context) (int64, error) {
	env, err := c.do(ctx, http.MethodGet, c.baseURL+"/notifications/unread-count", nil)
	if err != nil {
		return 0, err
	}

	var payload struct {
		UnreadCount int64 `json:"unread_count"`
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return 0, fmt.Errorf("liveclient: decode unread count: %w", err)
	}
	return payload.UnreadCount, nil
}

// MarkRead marks a batch of notifications as read.
func (c *RESTClient) MarkRead(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	body := map[string]any{"ids": ids}
	_, err := c.do(ctx, http.MethodPost, c.baseURL+"/notifications/mark-read", body)
	return err
}

// MarkAllRead marks every notification as read.
func (c *RESTClient) MarkAllRead(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, c.baseURL+"/notifications/mark-all-read", nil)
	return err
}

// Delete removes a notification. A 404 maps to ErrAlreadyDeleted.
func (c *RESTClient) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("liveclient: notification id is required")
	}
	_, err := c.do(ctx, http.MethodDelete, c.baseURL+"/notifications/"+url.PathEscape(id), nil)
	var status *statusError
	if errors.As(err, &status) && status.code == http.StatusNotFound {
		return ErrAlreadyDeleted
	}
	return err
}

type statusError struct {
	code    int
	message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.message, e.code)
}

func (c *RESTClient) do(ctx context.Context, method, endpoint string, body any) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("liveclient: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("liveclient: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("liveclient: %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && resp.StatusCode < 400 {
		return nil, fmt.Errorf("liveclient: decode response: %w", err)
	}

	if resp.StatusCode >= 400 || !env.Success {
		message := "request failed"
		if env.Error != nil && env.Error.Message != "" {
			message = env.Error.Message
		}
		return nil, fmt.Errorf("liveclient: %s %s: %w", method, endpoint, &statusError{code: resp.StatusCode, message: message})
	}

	return &env, nil
}

package sdk

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

	"github.com/google/uuid"

	"github.com/BuzzLyutic/todo-query/internal/model"
	"github.com/BuzzLyutic/todo-query/pkg/respond"
)

// Client talks to the todos HTTP API. Each method performs exactly one round
// trip and never retries.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
}

const (
	defaultAPIBase   = "http://127.0.0.1:8080"
	defaultUserAgent = "todoctl/0.1"
	todosPath        = "/api/todos"
	timePath         = "/api/time"
)

// NewClient builds a Client for the API at apiBase (host:port or URL).
// The transport has no timeout of its own; callers bound requests with ctx.
func NewClient(apiBase string) (*Client, error) {
	base, err := parseBaseURL(apiBase)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL:   base,
		http:      &http.Client{},
		userAgent: defaultUserAgent,
	}, nil
}

// List fetches todos. A zero filter returns all of them.
func (c *Client) List(ctx context.Context, filter model.TodoFilter) ([]model.Todo, error) {
	rel := &url.URL{Path: todosPath}
	if status := strings.TrimSpace(filter.Status); status != "" {
		rel.RawQuery = url.Values{"status": []string{status}}.Encode()
	}
	var todos []model.Todo
	if err := c.do(ctx, http.MethodGet, rel, nil, nil, &todos); err != nil {
		return nil, err
	}
	if todos == nil {
		todos = []model.Todo{}
	}
	return todos, nil
}

// Create posts a new todo. The idempotency key makes retries of the same
// logical create safe; one is generated when empty.
func (c *Client) Create(ctx context.Context, in model.CreateTodo, idempotencyKey string) (model.Todo, error) {
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}
	header := http.Header{}
	header.Set("Idempotency-Key", idempotencyKey)

	var todo model.Todo
	err := c.do(ctx, http.MethodPost, &url.URL{Path: todosPath}, header, in, &todo)
	return todo, err
}

// Update merges the patch onto the stored todo.
func (c *Client) Update(ctx context.Context, patch model.TodoPatch) (model.Todo, error) {
	var todo model.Todo
	err := c.do(ctx, http.MethodPut, &url.URL{Path: todosPath}, nil, patch, &todo)
	return todo, err
}

// Delete removes the todo and returns the deleted record.
func (c *Client) Delete(ctx context.Context, id int64) (model.Todo, error) {
	var todo model.Todo
	err := c.do(ctx, http.MethodDelete, &url.URL{Path: todosPath}, nil, model.DeleteTodo{ID: id}, &todo)
	return todo, err
}

// Time returns the server clock.
func (c *Client) Time(ctx context.Context) (time.Time, error) {
	var payload model.ServerTime
	if err := c.do(ctx, http.MethodGet, &url.URL{Path: timePath}, nil, nil, &payload); err != nil {
		return time.Time{}, err
	}
	return payload.Time, nil
}

func (c *Client) do(ctx context.Context, method string, rel *url.URL, header http.Header, body, dest any) error {
	reqURL := c.baseURL.ResolveReference(rel)
	fail := func(status int, message string, err error) error {
		return &RequestError{Method: method, Path: rel.Path, Status: status, Message: message, Err: err}
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fail(0, "", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(resp.StatusCode, errorMessage(resp), nil)
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fail(resp.StatusCode, "decode response", err)
	}
	return nil
}

func errorMessage(resp *http.Response) string {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(raw) == 0 {
		return http.StatusText(resp.StatusCode)
	}
	var body respond.ErrorBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}

func parseBaseURL(apiBase string) (*url.URL, error) {
	trimmed := strings.TrimSpace(apiBase)
	if trimmed == "" {
		trimmed = defaultAPIBase
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api base %q: %w", apiBase, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

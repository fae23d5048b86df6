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
	"time"
)

// Client provides typed access to the task tracker API for interactive tools.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = "http://localhost:8080"
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents an error response from the API.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.baseURL + path
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg := extractError(resp.Body)
		return APIError{Status: resp.StatusCode, Message: msg}
	}

	if v == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(body io.Reader) string {
	if body == nil {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
	}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return ""
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	return strings.TrimSpace(payload.Message)
}

// AuthResponse captures the token payload emitted by register and login.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// RegisterInput is the signup payload.
type RegisterInput struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// Register creates an account and returns its first token.
func (c *Client) Register(ctx context.Context, input RegisterInput) (AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", input, "", &resp); err != nil {
		return AuthResponse{}, err
	}
	return resp, nil
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, email, password string) (AuthResponse, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
	}
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, "", &resp); err != nil {
		return AuthResponse{}, err
	}
	return resp, nil
}

// User reflects API user payloads.
type User struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

// Me returns the profile of the token holder.
func (c *Client) Me(ctx context.Context, token string) (User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/api/users/me", nil, token, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// Category groups tasks.
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	UserEmail   string `json:"userEmail"`
}

// CategoryInput is the create/update payload for a category.
type CategoryInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ListCategories returns the caller's categories.
func (c *Client) ListCategories(ctx context.Context, token string) ([]Category, error) {
	var categories []Category
	if err := c.do(ctx, http.MethodGet, "/api/category", nil, token, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// CreateCategory adds a category owned by the caller.
func (c *Client) CreateCategory(ctx context.Context, token string, input CategoryInput) (Category, error) {
	var category Category
	if err := c.do(ctx, http.MethodPost, "/api/category", input, token, &category); err != nil {
		return Category{}, err
	}
	return category, nil
}

// DeleteCategory removes a category that no task references.
func (c *Client) DeleteCategory(ctx context.Context, token string, id int64) error {
	path := fmt.Sprintf("/api/category/%d", id)
	return c.do(ctx, http.MethodDelete, path, nil, token, nil)
}

// Task is a task as rendered by the API.
type Task struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Status       string    `json:"status"`
	UserEmail    string    `json:"userEmail"`
	CategoryName string    `json:"categoryName"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TaskInput is the create/update payload for a task.
type TaskInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	CategoryID  int64  `json:"categoryId"`
}

// TaskPage is one page of tasks.
type TaskPage struct {
	Content       []Task `json:"content"`
	Page          int    `json:"page"`
	Size          int    `json:"size"`
	TotalElements int64  `json:"totalElements"`
	TotalPages    int    `json:"totalPages"`
}

// ListTasks returns the caller's tasks, optionally narrowed to one status.
func (c *Client) ListTasks(ctx context.Context, token, status string) ([]Task, error) {
	path := "/api/tasks"
	if strings.TrimSpace(status) != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var tasks []Task
	if err := c.do(ctx, http.MethodGet, path, nil, token, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// FilterTasks runs a filter expression such as `status = "DONE" AND category_id = 3`.
func (c *Client) FilterTasks(ctx context.Context, token, filter string) ([]Task, error) {
	path := "/api/tasks/filter?filter=" + url.QueryEscape(filter)
	var tasks []Task
	if err := c.do(ctx, http.MethodGet, path, nil, token, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// PageTasks fetches a page of the caller's tasks. sort takes the form "field,dir".
func (c *Client) PageTasks(ctx context.Context, token string, page, size int, sort string) (TaskPage, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	if size > 0 {
		query.Set("size", strconv.Itoa(size))
	}
	if strings.TrimSpace(sort) != "" {
		query.Set("sort", sort)
	}
	var result TaskPage
	if err := c.do(ctx, http.MethodGet, "/api/tasks/paged?"+query.Encode(), nil, token, &result); err != nil {
		return TaskPage{}, err
	}
	return result, nil
}

// GetTask fetches one task.
func (c *Client) GetTask(ctx context.Context, token string, id int64) (Task, error) {
	path := fmt.Sprintf("/api/tasks/%d", id)
	var task Task
	if err := c.do(ctx, http.MethodGet, path, nil, token, &task); err != nil {
		return Task{}, err
	}
	return task, nil
}

// CreateTask adds a task owned by the caller.
func (c *Client) CreateTask(ctx context.Context, token string, input TaskInput) (Task, error) {
	var task Task
	if err := c.do(ctx, http.MethodPost, "/api/tasks", input, token, &task); err != nil {
		return Task{}, err
	}
	return task, nil
}

// UpdateTask replaces the mutable fields of a task.
func (c *Client) UpdateTask(ctx context.Context, token string, id int64, input TaskInput) (Task, error) {
	path := fmt.Sprintf("/api/tasks/%d", id)
	var task Task
	if err := c.do(ctx, http.MethodPut, path, input, token, &task); err != nil {
		return Task{}, err
	}
	return task, nil
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, token string, id int64) error {
	path := fmt.Sprintf("/api/tasks/%d", id)
	return c.do(ctx, http.MethodDelete, path, nil, token, nil)
}

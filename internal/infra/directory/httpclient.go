package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	domain "routecast/internal/domain/directory"
)

var (
	_ domain.Directory = (*HTTPClient)(nil)
	_ domain.Tasks     = (*HTTPClient)(nil)
)

// HTTPClient talks to the document management system's directory API for
// employee, deputy and task lookups.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPClient creates a new directory client.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// EmployeesByID fetches all employees for the given ids in one call.
// Unknown ids are simply absent from the result.
func (c *HTTPClient) EmployeesByID(ctx context.Context, ids []string) ([]domain.Employee, error) {
	var employees []domain.Employee
	if err := c.get(ctx, "/employees", url.Values{"ids": {strings.Join(ids, ",")}}, &employees); err != nil {
		return nil, fmt.Errorf("fetching employees: %w", err)
	}
	return employees, nil
}

// DeputiesFor fetches the active deputy relations for the given principals.
func (c *HTTPClient) DeputiesFor(ctx context.Context, ids []string) ([]domain.DeputyRelation, error) {
	var relations []domain.DeputyRelation
	if err := c.get(ctx, "/deputies", url.Values{"ids": {strings.Join(ids, ",")}}, &relations); err != nil {
		return nil, fmt.Errorf("fetching deputies: %w", err)
	}
	return relations, nil
}

// TaskByID fetches one task. Returns nil, nil when the id is unknown.
func (c *HTTPClient) TaskByID(ctx context.Context, id string) (*domain.Task, error) {
	var task domain.Task
	err := c.get(ctx, "/tasks/"+url.PathEscape(id), nil, &task)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching task: %w", err)
	}
	return &task, nil
}

// statusError carries the upstream HTTP status for absence detection.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("directory API status %d: %s", e.status, e.body)
}

func isNotFound(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.status == http.StatusNotFound
}

func (c *HTTPClient) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/fentz26/worklog/internal/models"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// Client wraps HTTP calls to the Worklog API on behalf of one user.
type Client struct {
	baseURL    string
	userID     string
	role       string
	httpClient *http.Client
}

// NewClient creates a new API client with timeout
func NewClient(baseURL, userID, role string) *Client {
	return &Client{
		baseURL: baseURL,
		userID:  userID,
		role:    role,
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
}

func (c *Client) do(method, path string, data, out interface{}) error {
	var body io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return err
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-User-ID", c.userID)
	req.Header.Set("X-User-Role", c.role)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			return fmt.Errorf("API error: %s", e.Error)
		}
		return fmt.Errorf("API error (%d)", resp.StatusCode)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// TaskTree fetches the caller's visible tasks as a hierarchy.
func (c *Client) TaskTree(status string) ([]models.Task, error) {
	q := url.Values{"tree": {"true"}}
	if status != "" {
		q.Set("status", status)
	}
	var roots []models.Task
	if err := c.do(http.MethodGet, "/tasks?"+q.Encode(), nil, &roots); err != nil {
		return nil, err
	}
	return roots, nil
}

// TaskDetail fetches a task and splits its edges by direction.
func (c *Client) TaskDetail(id string) (*TaskDetail, error) {
	var t models.Task
	if err := c.do(http.MethodGet, "/tasks/"+id, nil, &t); err != nil {
		return nil, err
	}
	var edges []models.DependencyEdge
	if err := c.do(http.MethodGet, "/tasks/"+id+"/dependencies", nil, &edges); err != nil {
		return nil, err
	}

	d := &TaskDetail{Task: t}
	for _, e := range edges {
		if e.TaskID == id {
			d.BlockedBy = append(d.BlockedBy, e)
		} else {
			d.Blocking = append(d.Blocking, e)
		}
	}
	return d, nil
}

// CreateTask creates a task, optionally under a parent.
func (c *Client) CreateTask(title, parentID string) (*models.Task, error) {
	body := map[string]string{"title": title, "parent_task_id": parentID}
	var t models.Task
	if err := c.do(http.MethodPost, "/tasks", body, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CompleteTask marks a task completed.
func (c *Client) CompleteTask(id string) error {
	return c.do(http.MethodPost, "/tasks/"+id+"/complete", nil, nil)
}

// AppendNote adds a timestamped note to a task.
func (c *Client) AppendNote(id, note string) error {
	return c.do(http.MethodPatch, "/tasks/"+id, map[string]string{"append_note": note}, nil)
}

// AddDependency records that taskID cannot start until dependsOn is done.
func (c *Client) AddDependency(taskID, dependsOn string) error {
	body := map[string]string{"task_id": taskID, "depends_on_task_id": dependsOn}
	return c.do(http.MethodPost, "/dependencies", body, nil)
}

// ActiveTimer returns the caller's running entry, or nil.
func (c *Client) ActiveTimer() (*models.TimeLogEntry, error) {
	var resp struct {
		Timer *models.TimeLogEntry `json:"timer"`
	}
	if err := c.do(http.MethodGet, "/timers/active", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Timer, nil
}

// StartTimer starts a timer against a task.
func (c *Client) StartTimer(taskID, description string) (*models.TimeLogEntry, error) {
	body := map[string]string{"task_id": taskID, "description": description}
	var e models.TimeLogEntry
	if err := c.do(http.MethodPost, "/timers", body, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// StopTimer stops a running entry.
func (c *Client) StopTimer(id string) (*models.TimeLogEntry, error) {
	var e models.TimeLogEntry
	if err := c.do(http.MethodPost, "/timers/"+id+"/stop", nil, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Stats fetches the caller's productivity stats for the daemon's default window.
func (c *Client) Stats() (*models.ProductivityStats, error) {
	var s models.ProductivityStats
	if err := c.do(http.MethodGet, "/stats", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// CheckHealth checks if the daemon is healthy
func (c *Client) CheckHealth() (bool, error) {
	var health struct {
		OK bool `json:"ok"`
	}
	if err := c.do(http.MethodGet, "/health", nil, &health); err != nil {
		return false, err
	}
	return health.OK, nil
}

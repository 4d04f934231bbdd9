package costlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Costline HTTP API client.
type Client struct {
	BaseURL    string
	ProjectID  string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, projectID string) *Client {
	return &Client{
		BaseURL:   baseURL,
		ProjectID: projectID,
		Timeout:   10 * time.Second,
	}
}

// Project represents the API project model.
type Project struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Number        string `json:"number"`
	Client        string `json:"client,omitempty"`
	TotalBudget   string `json:"total_budget"`
	StartDate     string `json:"start_date,omitempty"`
	TargetEndDate string `json:"target_end_date,omitempty"`
	Status        string `json:"status"`
}

// Activity represents a baseline schedule entry.
type Activity struct {
	ID            string `json:"id"`
	ProjectID     string `json:"project_id"`
	Name          string `json:"name"`
	PlannedStart  string `json:"planned_start"`
	PlannedFinish string `json:"planned_finish"`
	BudgetedCost  string `json:"budgeted_cost"`
	DependsOn     string `json:"depends_on,omitempty"`
	Status        string `json:"status"`
}

// Expenditure represents a spend log entry.
type Expenditure struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	ActivityID  string `json:"activity_id,omitempty"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
	ReferenceID string `json:"reference_id,omitempty"`
	Amount      string `json:"amount"`
	SpendDate   string `json:"spend_date"`
}

// Event represents an activity audit entry.
type Event struct {
	ID         int64  `json:"id"`
	ActivityID string `json:"activity_id"`
	EventType  string `json:"event_type"`
	EventDate  string `json:"event_date"`
	RecordedBy string `json:"recorded_by"`
}

// Metrics is the earned-value snapshot returned by the API.
type Metrics struct {
	ProjectID      string  `json:"project_id"`
	ProjectName    string  `json:"project_name"`
	ProjectNumber  string  `json:"project_number"`
	TotalBudget    string  `json:"total_budget"`
	TotalSpent     string  `json:"total_spent"`
	Remaining      string  `json:"remaining"`
	EarnedValue    string  `json:"earned_value"`
	PlannedValue   string  `json:"planned_value"`
	PctComplete    float64 `json:"pct_complete"`
	BudgetUsedPct  float64 `json:"budget_used_pct"`
	CPI            float64 `json:"cpi"`
	SPI            float64 `json:"spi"`
	Forecast       string  `json:"forecast"`
	BurnRate       string  `json:"burn_rate"`
	DaysRemaining  *int    `json:"days_remaining,omitempty"`
	BudgetHealth   string  `json:"budget_health"`
	ScheduleHealth string  `json:"schedule_health"`
}

// BurndownPoint is one day of a burndown series.
type BurndownPoint struct {
	Date      string `json:"date"`
	Remaining string `json:"remaining"`
}

// Burndown is the budget trajectory returned by the API.
type Burndown struct {
	ProjectID   string          `json:"project_id"`
	TotalBudget string          `json:"total_budget"`
	Status      string          `json:"status"`
	Ideal       []BurndownPoint `json:"ideal"`
	Actual      []BurndownPoint `json:"actual"`
	Forecast    []BurndownPoint `json:"forecast"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateProject registers a project and rebinds the client to it.
func (c *Client) CreateProject(ctx context.Context, name, number string, totalBudget float64) (Project, error) {
	body := map[string]any{
		"name":         name,
		"number":       number,
		"total_budget": totalBudget,
	}
	var resp Project
	if err := c.do(ctx, http.MethodPost, "v0/projects", body, &resp); err != nil {
		return resp, err
	}
	c.ProjectID = resp.ID
	return resp, nil
}

// AddActivity appends to the project's baseline schedule. dependsOn may be
// empty.
func (c *Client) AddActivity(ctx context.Context, name, plannedStart, plannedFinish string, budgetedCost float64, dependsOn string) (Activity, error) {
	body := map[string]any{
		"name":           name,
		"planned_start":  plannedStart,
		"planned_finish": plannedFinish,
		"budgeted_cost":  budgetedCost,
	}
	if dependsOn != "" {
		body["depends_on"] = dependsOn
	}
	var resp Activity
	err := c.do(ctx, http.MethodPost, c.projectPath("activities"), body, &resp)
	return resp, err
}

// Schedule returns the project's baseline schedule.
func (c *Client) Schedule(ctx context.Context) ([]Activity, error) {
	var resp struct {
		Activities []Activity `json:"activities"`
	}
	err := c.do(ctx, http.MethodGet, c.projectPath("schedule"), nil, &resp)
	return resp.Activities, err
}

// TransitionActivity advances an activity to Active or Complete. eventDate is
// optional YYYY-MM-DD for backfilled transitions.
func (c *Client) TransitionActivity(ctx context.Context, activityID, targetStatus, actor, eventDate string) (Activity, error) {
	body := map[string]any{
		"target_status": targetStatus,
		"actor":         actor,
	}
	if eventDate != "" {
		body["event_date"] = eventDate
	}
	var resp Activity
	endpoint := fmt.Sprintf("v0/activities/%s/transition", url.PathEscape(activityID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// RecordExpenditure appends to the expenditure log.
func (c *Client) RecordExpenditure(ctx context.Context, category string, amount float64, spendDate, description string) (Expenditure, error) {
	body := map[string]any{
		"category":    category,
		"amount":      amount,
		"spend_date":  spendDate,
		"description": description,
	}
	var resp Expenditure
	err := c.do(ctx, http.MethodPost, c.projectPath("expenditures"), body, &resp)
	return resp, err
}

// Events returns the project's activity audit trail.
func (c *Client) Events(ctx context.Context) ([]Event, error) {
	var resp struct {
		Events []Event `json:"events"`
	}
	err := c.do(ctx, http.MethodGet, c.projectPath("events"), nil, &resp)
	return resp.Events, err
}

// Metrics returns the project's earned-value snapshot.
func (c *Client) Metrics(ctx context.Context) (Metrics, error) {
	var resp Metrics
	err := c.do(ctx, http.MethodGet, c.projectPath("metrics"), nil, &resp)
	return resp, err
}

// Burndown returns the project's budget trajectory.
func (c *Client) Burndown(ctx context.Context) (Burndown, error) {
	var resp Burndown
	err := c.do(ctx, http.MethodGet, c.projectPath("burndown"), nil, &resp)
	return resp, err
}

// PortfolioSummary returns metrics for every project.
func (c *Client) PortfolioSummary(ctx context.Context) ([]Metrics, error) {
	var resp struct {
		Projects []Metrics `json:"projects"`
	}
	err := c.do(ctx, http.MethodGet, "v0/portfolio/summary", nil, &resp)
	return resp.Projects, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) projectPath(p string) string {
	project := url.PathEscape(c.ProjectID)
	return fmt.Sprintf("v0/projects/%s/%s", project, strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

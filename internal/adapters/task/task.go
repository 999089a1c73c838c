// Package task dispatches the reminder leg of a meeting descriptor to a
// Todoist-shaped tasks API.
package task

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/slotbot-ai/slotbot/internal/adapters"
	"github.com/slotbot-ai/slotbot/internal/model"
)

// Client creates, updates and closes reminder tasks.
type Client struct {
	client *resty.Client
}

// New creates a Client against baseURL. The descriptor ID rides in the
// X-Request-Id header, which the API deduplicates on.
func New(baseURL string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)

	return &Client{client: c}
}

// priorityHigh is the Todoist-style urgent priority (4 is highest).
const priorityHigh = 4

type taskBody struct {
	Content     string `json:"content"`
	Description string `json:"description,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
	Priority    int    `json:"priority,omitempty"`
}

type taskResponse struct {
	ID string `json:"id"`
}

// taskContent renders the reminder line for a descriptor.
func taskContent(d *model.MeetingDescriptor) string {
	if d.Location != "" {
		return fmt.Sprintf("Meeting: %s at %s", d.Title, d.Location)
	}
	return fmt.Sprintf("Meeting: %s", d.Title)
}

func buildTaskBody(d *model.MeetingDescriptor) *taskBody {
	return &taskBody{
		Content:     taskContent(d),
		Description: "Starts " + d.Start.Format("Mon Jan 2 at 3:04 PM"),
		DueDate:     d.Start.Format("2006-01-02"),
		Priority:    priorityHigh,
	}
}

// CreateTask creates a reminder task for the descriptor and returns its ID.
func (c *Client) CreateTask(ctx context.Context, d *model.MeetingDescriptor) (string, adapters.Outcome, error) {
	var out taskResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("X-Request-Id", d.DescriptorID).
		SetBody(buildTaskBody(d)).
		SetResult(&out).
		Post("/tasks")
	if err != nil {
		return "", adapters.ClassifyErr(err), fmt.Errorf("task create: %w", err)
	}
	if oc := adapters.ClassifyHTTP(resp.StatusCode()); oc != adapters.OutcomeSuccess {
		return "", oc, fmt.Errorf("task create status %d: %s", resp.StatusCode(), resp.String())
	}
	if out.ID == "" {
		return "", adapters.OutcomeTransient, fmt.Errorf("task create: empty task id")
	}
	return out.ID, adapters.OutcomeSuccess, nil
}

// UpdateTask rewrites the reminder after a reschedule.
func (c *Client) UpdateTask(ctx context.Context, taskID string, d *model.MeetingDescriptor) (adapters.Outcome, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("X-Request-Id", d.DescriptorID).
		SetBody(buildTaskBody(d)).
		Post(fmt.Sprintf("/tasks/%s", taskID))
	if err != nil {
		return adapters.ClassifyErr(err), fmt.Errorf("task update: %w", err)
	}
	if oc := adapters.ClassifyHTTP(resp.StatusCode()); oc != adapters.OutcomeSuccess {
		return oc, fmt.Errorf("task update status %d: %s", resp.StatusCode(), resp.String())
	}
	return adapters.OutcomeSuccess, nil
}

// DeleteTask removes a reminder. 404 counts as success.
func (c *Client) DeleteTask(ctx context.Context, taskID string) (adapters.Outcome, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		Delete(fmt.Sprintf("/tasks/%s", taskID))
	if err != nil {
		return adapters.ClassifyErr(err), fmt.Errorf("task delete: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return adapters.OutcomeSuccess, nil
	}
	if oc := adapters.ClassifyHTTP(resp.StatusCode()); oc != adapters.OutcomeSuccess {
		return oc, fmt.Errorf("task delete status %d: %s", resp.StatusCode(), resp.String())
	}
	return adapters.OutcomeSuccess, nil
}

// HealthPing implements health.HealthPinger.
func (c *Client) HealthPing(ctx context.Context) error {
	resp, err := c.client.R().SetContext(ctx).Get("/tasks")
	if err != nil {
		return err
	}
	if resp.StatusCode() >= 500 {
		return fmt.Errorf("task status %d", resp.StatusCode())
	}
	return nil
}

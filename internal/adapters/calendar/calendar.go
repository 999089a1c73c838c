// Package calendar dispatches the calendar leg of a meeting descriptor to a
// Google-Calendar-shaped events API.
package calendar

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/slotbot-ai/slotbot/internal/adapters"
	"github.com/slotbot-ai/slotbot/internal/model"
)

// Client creates, updates and deletes calendar events.
type Client struct {
	client     *resty.Client
	calendarID string
}

// New creates a Client against baseURL. Every request carries the
// descriptor ID as an Idempotency-Key header so that a retried create after
// an ambiguous failure lands on the same event.
func New(baseURL, calendarID string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)

	return &Client{client: c, calendarID: calendarID}
}

type eventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone,omitempty"`
}

type attendee struct {
	Email string `json:"email"`
}

type eventBody struct {
	Summary     string     `json:"summary"`
	Location    string     `json:"location,omitempty"`
	Description string     `json:"description,omitempty"`
	Start       eventTime  `json:"start"`
	End         eventTime  `json:"end"`
	Attendees   []attendee `json:"attendees,omitempty"`
}

type eventResponse struct {
	ID string `json:"id"`
}

func buildEventBody(d *model.MeetingDescriptor) *eventBody {
	body := &eventBody{
		Summary:  d.Title,
		Location: d.Location,
		Start:    eventTime{DateTime: d.Start.Format(time.RFC3339), TimeZone: d.Start.Location().String()},
		End:      eventTime{DateTime: d.End.Format(time.RFC3339), TimeZone: d.End.Location().String()},
	}
	if d.Modality == model.ModalityVirtual {
		body.Description = "Virtual meeting"
	}
	for _, p := range d.Participants {
		body.Attendees = append(body.Attendees, attendee{Email: p})
	}
	return body
}

// CreateEvent creates an event for the descriptor and returns its external ID.
func (c *Client) CreateEvent(ctx context.Context, d *model.MeetingDescriptor) (string, adapters.Outcome, error) {
	var out eventResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", d.DescriptorID).
		SetBody(buildEventBody(d)).
		SetResult(&out).
		Post(fmt.Sprintf("/calendars/%s/events", c.calendarID))
	if err != nil {
		return "", adapters.ClassifyErr(err), fmt.Errorf("calendar create: %w", err)
	}
	if oc := adapters.ClassifyHTTP(resp.StatusCode()); oc != adapters.OutcomeSuccess {
		return "", oc, fmt.Errorf("calendar create status %d: %s", resp.StatusCode(), resp.String())
	}
	if out.ID == "" {
		return "", adapters.OutcomeTransient, fmt.Errorf("calendar create: empty event id")
	}
	return out.ID, adapters.OutcomeSuccess, nil
}

// UpdateEvent moves or retitles an existing event.
func (c *Client) UpdateEvent(ctx context.Context, eventID string, d *model.MeetingDescriptor) (adapters.Outcome, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", d.DescriptorID).
		SetBody(buildEventBody(d)).
		Put(fmt.Sprintf("/calendars/%s/events/%s", c.calendarID, eventID))
	if err != nil {
		return adapters.ClassifyErr(err), fmt.Errorf("calendar update: %w", err)
	}
	if oc := adapters.ClassifyHTTP(resp.StatusCode()); oc != adapters.OutcomeSuccess {
		return oc, fmt.Errorf("calendar update status %d: %s", resp.StatusCode(), resp.String())
	}
	return adapters.OutcomeSuccess, nil
}

// DeleteEvent removes an event. A 404 counts as success: the event is gone
// either way, and cancel retries must stay idempotent.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) (adapters.Outcome, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		Delete(fmt.Sprintf("/calendars/%s/events/%s", c.calendarID, eventID))
	if err != nil {
		return adapters.ClassifyErr(err), fmt.Errorf("calendar delete: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return adapters.OutcomeSuccess, nil
	}
	if oc := adapters.ClassifyHTTP(resp.StatusCode()); oc != adapters.OutcomeSuccess {
		return oc, fmt.Errorf("calendar delete status %d: %s", resp.StatusCode(), resp.String())
	}
	return adapters.OutcomeSuccess, nil
}

// HealthPing implements health.HealthPinger.
func (c *Client) HealthPing(ctx context.Context) error {
	resp, err := c.client.R().SetContext(ctx).Get(fmt.Sprintf("/calendars/%s", c.calendarID))
	if err != nil {
		return err
	}
	if resp.StatusCode() >= 500 {
		return fmt.Errorf("calendar status %d", resp.StatusCode())
	}
	return nil
}

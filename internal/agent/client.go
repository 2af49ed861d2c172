package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"kitchenprint/internal/models"
	"kitchenprint/internal/worker"
)

// HTTPError is a non-2xx response from the dispatch server.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// Is makes client errors (other than rate limiting) permanent for retry purposes.
func (e *HTTPError) Is(target error) bool {
	return target == worker.ErrPermanent &&
		e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusTooManyRequests
}

// Client calls the agent protocol endpoints with the device bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Poll claims pending jobs for this device.
func (c *Client) Poll(ctx context.Context) ([]models.AgentJob, error) {
	var resp models.PollResponse
	if err := c.doGet(ctx, c.baseURL+"/agent/jobs", &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

func (c *Client) Ack(ctx context.Context, jobID int64, status, errMsg string) error {
	endpoint := fmt.Sprintf("%s/agent/jobs/%d/ack", c.baseURL, jobID)
	return c.doPost(ctx, endpoint, models.AckRequest{Status: status, ErrorMessage: errMsg}, nil)
}

// Heartbeat reports liveness and returns the server time.
func (c *Client) Heartbeat(ctx context.Context, report models.HeartbeatRequest) (time.Time, error) {
	var resp models.HeartbeatResponse
	if err := c.doPost(ctx, c.baseURL+"/agent/heartbeat", report, &resp); err != nil {
		return time.Time{}, err
	}
	return resp.ServerTime, nil
}

func (c *Client) doGet(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	c.addHeaders(req)
	return c.do(req, out)
}

func (c *Client) doPost(ctx context.Context, endpoint string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.addHeaders(req)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var body models.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return &HTTPError{StatusCode: resp.StatusCode, Message: body.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) addHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
}

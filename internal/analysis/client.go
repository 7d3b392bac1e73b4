package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

// ErrUnhealthy is returned by Healthy when the analyzer responds but is not
// ready to accept work.
var ErrUnhealthy = errors.New("analyzer not healthy")

// Client talks to an onset-analysis service. The service accepts a WAV
// upload, runs its detector offline, and exposes the result by task id.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the analyzer at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Healthy performs a single health check.
func (c *Client) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

// WaitForHealthy blocks until the analyzer passes a health check or the
// context is cancelled.
func (c *Client) WaitForHealthy(ctx context.Context) error {
	for {
		if err := c.Healthy(ctx); err == nil {
			log.Println("[analysis] analyzer is healthy")
			return nil
		}
		log.Println("[analysis] analyzer not ready, retrying in 5s...")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}

type submitResponse struct {
	TaskID string `json:"task_id"`
	Error  string `json:"error"`
}

type taskResponse struct {
	Status string  `json:"status"` // queued, running, done, failed
	Error  string  `json:"error"`
	Result *Result `json:"result"`
}

// Analyze uploads the audio file at path and polls until the analyzer
// finishes, then validates and returns the result.
func (c *Client) Analyze(ctx context.Context, path string, poll time.Duration) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", f)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit analysis: %w", err)
	}
	var sub submitResponse
	err = json.NewDecoder(resp.Body).Decode(&sub)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("decode submit response: %w", err)
	}
	if sub.Error != "" {
		return nil, fmt.Errorf("analyzer rejected %s: %s", path, sub.Error)
	}
	if sub.TaskID == "" {
		return nil, fmt.Errorf("analyzer returned no task id for %s", path)
	}

	log.Printf("[analysis] submitted %s as task %s", path, sub.TaskID)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(poll):
		}

		task, err := c.queryTask(ctx, sub.TaskID)
		if err != nil {
			return nil, err
		}
		switch task.Status {
		case "done":
			if task.Result == nil {
				return nil, fmt.Errorf("task %s done without result", sub.TaskID)
			}
			if err := task.Result.Validate(); err != nil {
				return nil, fmt.Errorf("task %s: %w", sub.TaskID, err)
			}
			log.Printf("[analysis] task %s finished: %d peaks, %d candidates",
				sub.TaskID, len(task.Result.Peaks), len(task.Result.Candidates))
			return task.Result, nil
		case "failed":
			return nil, fmt.Errorf("task %s failed: %s", sub.TaskID, task.Error)
		}
	}
}

func (c *Client) queryTask(ctx context.Context, id string) (*taskResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/result/"+id, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query task %s: %w", id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("query task %s: status %d", id, resp.StatusCode)
	}
	var task taskResponse
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return nil, fmt.Errorf("decode task %s: %w", id, err)
	}
	// An answer with no status would keep the poll loop spinning forever.
	if task.Status == "" {
		return nil, fmt.Errorf("task %s: response carries no status", id)
	}
	return &task, nil
}
